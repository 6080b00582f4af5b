package geometry

import (
	"math"
	"math/rand/v2"
)

// RandomPointsInSphere returns n random points inside the sphere of the given center and radius.
// The direction is uniform on the unit sphere, but the distance from the center is drawn
// uniformly in [0, radius) instead of with a cube-root scaling, so the density grows toward
// the center. Initial flocks rely on that tighter clustering.
// The caller owns rng: using distinct generators makes concurrent calls safe,
// and a seeded generator makes the output reproducible.
func RandomPointsInSphere(rng *rand.Rand, n int, center Vector3D, radius float64) []Vector3D {
	if n <= 0 {
		return []Vector3D{}
	}
	points := make([]Vector3D, n)
	for i := range points {
		theta := rng.Float64() * 2 * math.Pi
		z0 := rng.Float64()*2 - 1
		rxy := math.Sqrt(1 - z0*z0)
		dir := Vector3D{
			X: rxy * math.Cos(theta),
			Y: rxy * math.Sin(theta),
			Z: z0,
		}
		r := rng.Float64() * radius
		points[i] = center.Add(dir.Mul(r))
	}
	return points
}

// Bounds is an axis aligned bounding box given by its center and full size.
type Bounds struct {
	Center Vector3D
	Size   Vector3D
}

// NewCubeBounds returns a cube of edge length size centered on center.
func NewCubeBounds(center Vector3D, size float64) Bounds {
	return Bounds{Center: center, Size: Splat(size)}
}

// Extents returns the half size of the box.
func (b Bounds) Extents() Vector3D {
	return b.Size.Mul(0.5)
}

// Min returns the lowest corner.
func (b Bounds) Min() Vector3D {
	return b.Center.Sub(b.Extents())
}

// Max returns the highest corner.
func (b Bounds) Max() Vector3D {
	return b.Center.Add(b.Extents())
}

// Contains reports whether p lies inside the box, borders included.
func (b Bounds) Contains(p Vector3D) bool {
	lo, hi := b.Min(), b.Max()
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}
