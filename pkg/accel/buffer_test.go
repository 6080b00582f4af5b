package accel

import (
	"testing"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_Vectors(t *testing.T) {
	b := NewBuffer(2, 3)
	src := []geometry.Vector3D{{X: 1, Y: 2, Z: 3}, {X: -0.5, Y: 0, Z: 8}}
	require.NoError(t, b.SetVectors(src))

	got, err := b.Vectors()
	require.NoError(t, err)
	assert.Equal(t, src, got)
	assert.Equal(t, 2, b.Count())
	assert.Equal(t, 3, b.Stride())
}

func TestBuffer_SizeChecks(t *testing.T) {
	b := NewBuffer(2, 3)
	assert.ErrorIs(t, b.SetData(make([]float32, 5)), ErrBufferSize)
	assert.ErrorIs(t, b.GetData(make([]float32, 7)), ErrBufferSize)
	assert.ErrorIs(t, b.SetVectors(make([]geometry.Vector3D, 3)), ErrBufferSize)

	scalar := NewBuffer(4, 1)
	assert.ErrorIs(t, scalar.SetVectors(make([]geometry.Vector3D, 4)), ErrBufferSize)
	_, err := scalar.Vectors()
	assert.ErrorIs(t, err, ErrBufferSize)
}

func TestBuffer_Release(t *testing.T) {
	b := NewBuffer(1, 3)
	b.Release()
	b.Release()
	assert.True(t, b.Released())
	assert.ErrorIs(t, b.SetData(make([]float32, 3)), ErrBufferReleased)
	_, err := b.Vectors()
	assert.ErrorIs(t, err, ErrBufferReleased)
}

func TestPackUnpackVectors(t *testing.T) {
	src := []geometry.Vector3D{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}}
	packed := PackVectors(src, nil)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, packed)

	// dst with enough capacity is reused
	reused := PackVectors(src[:1], packed)
	assert.Equal(t, []float32{1, 2, 3}, reused)

	assert.Equal(t, src, UnpackVectors([]float32{1, 2, 3, 4, 5, 6, 7}, nil))

	raw := make([]float32, 6)
	StoreVector(raw, 1, geometry.Vector3D{X: 9, Y: 8, Z: 7})
	assert.Equal(t, geometry.Vector3D{X: 9, Y: 8, Z: 7}, VectorAt(raw, 1))
}

func TestUniforms(t *testing.T) {
	u := NewUniforms()
	u.SetFloats("center", 1, 2, 3)
	u.SetFloat("dt", 0.25)
	u.SetInt("n", 12)

	assert.Equal(t, 3, u.Len("center"))
	assert.Equal(t, 2.0, u.Component("center", 1))
	assert.Equal(t, 0.0, u.Component("center", 3))
	assert.Equal(t, 0.25, u.Float("dt"))
	assert.Equal(t, 12, u.Int("n"))
	assert.False(t, u.Has("missing"))
	assert.Equal(t, 0.0, u.Float("missing"))

	c := u.Clone()
	u.SetFloats("center", 9)
	assert.Equal(t, 3, c.Len("center"))
	assert.Equal(t, 1.0, c.Float("center"))
}

func TestUniforms_IntegersAreExact(t *testing.T) {
	u := NewUniforms()
	n := 1<<24 + 1
	u.SetInt("n", n)
	assert.Equal(t, n, u.Int("n"), "float32 would round to 1<<24")
	assert.Equal(t, 1, u.Len("n"))
	assert.True(t, u.Has("n"))
	assert.Equal(t, n, u.Clone().Int("n"))

	u.SetFloat("n", 2.5)
	assert.Equal(t, 2, u.Int("n"), "a float parameter replaces the integer one")
	assert.Equal(t, 2.5, u.Float("n"))
	u.SetInt("n", 7)
	assert.Equal(t, 7.0, u.Float("n"))
}
