package geometry

import "math"

// Camera limits.
const (
	MaxPitch = math.Pi/2 - 0.05
	MinScale = 1.0
	MaxScale = 2000.0
)

// worldUp is the +Y axis.
var worldUp = Vector3D{Y: 1}

// Camera is an orthographic orbit camera. It looks at Target from the direction given
// by Yaw (around +Y) and Pitch (above the XZ plane), and maps Target to Screen.
// Scale is the number of pixels per world unit.
type Camera struct {
	Target Vector3D
	Yaw    float64
	Pitch  float64
	Scale  float64
	Screen Vector2D
}

// NewCamera returns a camera slightly above and to the side of target.
func NewCamera(target Vector3D, scale float64, screen Vector2D) *Camera {
	c := &Camera{Target: target, Yaw: 0.6, Pitch: 0.35, Screen: screen}
	c.SetScale(scale)
	return c
}

// Orbit rotates the camera around its target. The pitch is clamped short of the poles.
func (c *Camera) Orbit(dYaw, dPitch float64) {
	c.Yaw = math.Mod(c.Yaw+dYaw, 2*math.Pi)
	c.Pitch = math.Max(-MaxPitch, math.Min(MaxPitch, c.Pitch+dPitch))
}

// Zoom multiplies the scale by factor.
func (c *Camera) Zoom(factor float64) {
	if factor > 0 {
		c.SetScale(c.Scale * factor)
	}
}

// SetScale sets the scale, clamped to [MinScale, MaxScale].
func (c *Camera) SetScale(scale float64) {
	c.Scale = math.Max(MinScale, math.Min(MaxScale, scale))
}

// FitRadius picks the scale that shows a sphere of the given radius in a viewport of
// height pixels.
func (c *Camera) FitRadius(radius, height float64) {
	if radius > 0 && height > 0 {
		c.SetScale(height / (2.4 * radius))
	}
}

// Basis returns the camera right, up and backward unit vectors. Backward points from
// the target towards the camera.
func (c *Camera) Basis() (right, up, backward Vector3D) {
	cp := math.Cos(c.Pitch)
	backward = Vector3D{X: cp * math.Sin(c.Yaw), Y: math.Sin(c.Pitch), Z: cp * math.Cos(c.Yaw)}
	right = worldUp.Cross(backward).Normalize()
	up = backward.Cross(right)
	return right, up, backward
}

// Project maps p to the screen. Depth grows towards the camera: draw in increasing
// depth order so that near agents cover far ones.
func (c *Camera) Project(p Vector3D) (screen Vector2D, depth float64) {
	right, up, backward := c.Basis()
	rel := p.Sub(c.Target)
	screen = Vector2D{
		X: c.Screen.X + rel.Dot(right)*c.Scale,
		Y: c.Screen.Y - rel.Dot(up)*c.Scale,
	}
	return screen, rel.Dot(backward)
}

// Pixels converts a world length to pixels.
func (c *Camera) Pixels(length float64) float64 {
	return length * c.Scale
}
