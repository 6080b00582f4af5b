package flock

import (
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

const (
	// minSeparation is the smallest surface-to-surface distance between two agents.
	minSeparation = 0.01
	avoidanceGain = 10.0
)

// agentState is a read-only view of the previous tick's flock state.
type agentState interface {
	Len() int
	Position(i int) geometry.Vector3D
	Velocity(i int) geometry.Vector3D
}

// packedState is an agentState over stride-3 float32 buffers, the layout shared by
// the host arrays of the CPU backend and the device buffers.
type packedState struct {
	positions  []float32
	velocities []float32
	n          int
}

func (s packedState) Len() int                         { return s.n }
func (s packedState) Position(i int) geometry.Vector3D { return accel.VectorAt(s.positions, i) }
func (s packedState) Velocity(i int) geometry.Vector3D { return accel.VectorAt(s.velocities, i) }

// steer computes the new velocity of agent i from the state of its neighbours.
// It is shared by every backend so that they agree on the result.
func steer(i int, s agentState, p *Params) geometry.Vector3D {
	me := s.Position(i)

	var avoidance, cohesion, alignment geometry.Vector3D
	cohesionCount, alignmentCount := 0, 0

	for j, n := 0, s.Len(); j < n; j++ {
		if j == i {
			continue
		}
		d := s.Position(j).Sub(me)
		dir := d.Normalize()
		dist := d.Len() - 2*p.AgentRadius
		if dist <= minSeparation {
			dist = minSeparation
		}
		if dist >= p.ViewRange {
			continue
		}

		if p.Avoidance.Active && dist < p.Avoidance.Radius {
			avoidance = avoidance.Add(dir.Mul(-avoidanceGain * (p.Avoidance.Radius - dist)))
		}
		if p.Cohesion.Active && dist > minSeparation {
			cohesion = cohesion.Add(dir.Mul(dist))
			cohesionCount++
		}
		if p.Alignment.Active {
			v := s.Velocity(j)
			if speed := v.Len(); speed > 0 {
				alignment = alignment.Add(v.Mul(p.DriveFactor / speed))
				alignmentCount++
			}
		}
	}
	if cohesionCount > 0 {
		cohesion = cohesion.Div(float64(cohesionCount))
	}
	if alignmentCount > 0 {
		alignment = alignment.Div(float64(alignmentCount))
	}

	var bounding geometry.Vector3D
	if p.BoundingSphere.Active {
		offset := me.Sub(p.Center)
		if dist := offset.Len(); dist > p.BoundingSphere.Radius {
			bounding = offset.Normalize().Mul(p.BoundingSphere.Radius - dist)
		}
	}

	wAlignment := p.Alignment.EffectiveWeight()
	wAvoidance := p.Avoidance.EffectiveWeight()
	wCohesion := p.Cohesion.EffectiveWeight()
	wBounding := p.BoundingSphere.EffectiveWeight()
	sum := wAlignment + wAvoidance + wCohesion + wBounding
	if sum == 0 {
		return geometry.Zero
	}
	return alignment.Mul(wAlignment).
		Add(avoidance.Mul(wAvoidance)).
		Add(cohesion.Mul(wCohesion)).
		Add(bounding.Mul(wBounding)).
		Div(sum)
}
