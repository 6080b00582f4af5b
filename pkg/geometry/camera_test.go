package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func frontCamera() *Camera {
	c := NewCamera(Zero, 10, Vector2D{X: 320, Y: 240})
	c.Yaw, c.Pitch = 0, 0
	return c
}

func TestCamera_ProjectFront(t *testing.T) {
	c := frontCamera()

	tests := []struct {
		name  string
		p     Vector3D
		want  Vector2D
		depth float64
	}{
		{"target", Zero, Vector2D{X: 320, Y: 240}, 0},
		{"right", Vector3D{X: 1}, Vector2D{X: 330, Y: 240}, 0},
		{"up is screen up", Vector3D{Y: 2}, Vector2D{X: 320, Y: 220}, 0},
		{"towards camera", Vector3D{Z: 3}, Vector2D{X: 320, Y: 240}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, depth := c.Project(tt.p)
			assert.True(t, got.Eq(tt.want), "got %v, want %v", got, tt.want)
			assert.InDelta(t, tt.depth, depth, 1e-12)
		})
	}
}

func TestCamera_ProjectSide(t *testing.T) {
	c := frontCamera()
	c.Orbit(math.Pi/2, 0)

	// looking down -X, the -Z axis is on the right
	got, depth := c.Project(Vector3D{Z: -1})
	assert.InDelta(t, 330, got.X, 1e-9)
	assert.InDelta(t, 240, got.Y, 1e-9)
	assert.InDelta(t, 0, depth, 1e-9)

	_, depth = c.Project(Vector3D{X: 1})
	assert.InDelta(t, 1, depth, 1e-9)
}

func TestCamera_BasisOrthonormal(t *testing.T) {
	c := NewCamera(Vector3D{X: 4, Y: -1}, 50, Vector2D{})
	for _, yaw := range []float64{0, 0.3, 2, -1.2} {
		for _, pitch := range []float64{-1.5, -0.4, 0, 0.9, 1.5} {
			c.Yaw, c.Pitch = yaw, pitch
			right, up, backward := c.Basis()
			assert.InDelta(t, 1, right.Len(), 1e-9)
			assert.InDelta(t, 1, up.Len(), 1e-9)
			assert.InDelta(t, 1, backward.Len(), 1e-9)
			assert.InDelta(t, 0, right.Dot(up), 1e-9)
			assert.InDelta(t, 0, right.Dot(backward), 1e-9)
			assert.InDelta(t, 0, up.Dot(backward), 1e-9)
		}
	}
}

func TestCamera_ProjectionNeverStretches(t *testing.T) {
	c := NewCamera(Zero, 25, Vector2D{X: 100, Y: 100})
	c.Orbit(0.7, -0.2)
	a := Vector3D{X: 1, Y: 2, Z: 3}
	b := Vector3D{X: -2, Y: 0.5, Z: 1}
	pa, _ := c.Project(a)
	pb, _ := c.Project(b)
	assert.LessOrEqual(t, pa.DistanceTo(pb), c.Pixels(a.DistanceTo(b))+1e-9)
}

func TestCamera_Limits(t *testing.T) {
	c := NewCamera(Zero, 10, Vector2D{})
	c.Orbit(0, 10)
	assert.Equal(t, MaxPitch, c.Pitch)
	c.Orbit(0, -20)
	assert.Equal(t, -MaxPitch, c.Pitch)

	c.Zoom(1e9)
	assert.Equal(t, MaxScale, c.Scale)
	c.Zoom(1e-9)
	assert.Equal(t, MinScale, c.Scale)
	c.Zoom(-1)
	assert.Equal(t, MinScale, c.Scale, "non positive factors are ignored")

	c.FitRadius(10, 480)
	assert.InDelta(t, 20, c.Scale, 1e-9)
	c.FitRadius(0, 480)
	assert.InDelta(t, 20, c.Scale, 1e-9)
}
