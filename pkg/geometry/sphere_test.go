package geometry

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomPointsInSphere_WithinRadius(t *testing.T) {
	center := Vector3D{X: 3, Y: -2, Z: 10}
	for _, n := range []int{0, 1, 2, 17, 1000} {
		for _, radius := range []float64{0, 0.5, 5, 250} {
			rng := rand.New(rand.NewPCG(uint64(n), 42))
			points := RandomPointsInSphere(rng, n, center, radius)
			require.Len(t, points, n)
			for _, p := range points {
				assert.LessOrEqual(t, p.DistanceTo(center), radius+Epsilon,
					"point %v outside sphere of radius %v", p, radius)
			}
		}
	}
}

func TestRandomPointsInSphere_NegativeCount(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	points := RandomPointsInSphere(rng, -3, Zero, 1)
	assert.NotNil(t, points)
	assert.Empty(t, points)
}

func TestRandomPointsInSphere_Deterministic(t *testing.T) {
	a := RandomPointsInSphere(rand.New(rand.NewPCG(7, 7)), 64, Zero, 10)
	b := RandomPointsInSphere(rand.New(rand.NewPCG(7, 7)), 64, Zero, 10)
	assert.Equal(t, a, b)
}

func TestRandomPointsInSphere_DenserTowardCenter(t *testing.T) {
	// With a linear radius draw, about half of the points fall inside R/2.
	// A volume-uniform draw would put only an eighth of them there.
	rng := rand.New(rand.NewPCG(99, 1))
	const n = 20000
	points := RandomPointsInSphere(rng, n, Zero, 1)
	inner := 0
	for _, p := range points {
		if p.Len() < 0.5 {
			inner++
		}
	}
	ratio := float64(inner) / n
	assert.InDelta(t, 0.5, ratio, 0.03)
}

func TestBounds(t *testing.T) {
	b := NewCubeBounds(Vector3D{X: 1, Y: 1, Z: 1}, 10)
	assert.True(t, b.Extents().Eq(Splat(5)))
	assert.True(t, b.Min().Eq(Splat(-4)))
	assert.True(t, b.Max().Eq(Splat(6)))
	assert.True(t, b.Contains(Vector3D{X: 6, Y: -4, Z: 0}))
	assert.False(t, b.Contains(Vector3D{X: 6.1, Y: 0, Z: 0}))
}
