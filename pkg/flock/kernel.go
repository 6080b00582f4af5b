package flock

import (
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Kernel names of the flock compute program.
const (
	UpdateKernel = "k_UpdatePosition"
	KeepKernel   = "k_KeepPosition"

	// GroupSize is the number of agents per work-group.
	GroupSize = 64
)

// Buffer bindings.
const (
	bindPositions  = "agent_positions"
	bindVelocities = "agent_velocities"
)

// Uniform names.
const (
	uFlockCenter          = "flock_center"
	uDriveFactor          = "drive_factor"
	uDeltaTime            = "delta_time"
	uAgentSizeRadius      = "agent_size_radius"
	uAgentViewRange       = "agent_view_range"
	uNumAgents            = "num_agents"
	uAvoidanceParams      = "avoidance_params"
	uCohesionParams       = "cohesion_params"
	uAlignmentParams      = "alignment_params"
	uBoundingSphereParams = "bounding_sphere_params"
)

// ComputeProgram returns the flock compute program with its two kernels.
func ComputeProgram() *accel.Program {
	return accel.NewProgram("flock").
		AddKernel(UpdateKernel, GroupSize, updatePosition).
		AddKernel(KeepKernel, GroupSize, keepPosition)
}

// writeUniforms marshals the tick parameters into u.
func writeUniforms(u *accel.Uniforms, p Params) {
	u.SetFloats(uFlockCenter, p.Center.X, p.Center.Y, p.Center.Z)
	u.SetFloat(uDriveFactor, p.DriveFactor)
	u.SetFloat(uDeltaTime, p.DeltaTime)
	u.SetFloat(uAgentSizeRadius, p.AgentRadius)
	u.SetFloat(uAgentViewRange, p.ViewRange)
	u.SetInt(uNumAgents, p.NumAgents)
	u.SetFloats(uAvoidanceParams, p.Avoidance.ActivityFactor(), p.Avoidance.Weight, p.Avoidance.Radius)
	u.SetFloats(uCohesionParams, p.Cohesion.ActivityFactor(), p.Cohesion.Weight)
	u.SetFloats(uAlignmentParams, p.Alignment.ActivityFactor(), p.Alignment.Weight)
	u.SetFloats(uBoundingSphereParams, p.BoundingSphere.ActivityFactor(), p.BoundingSphere.Weight, p.BoundingSphere.Radius)
}

// readUniforms is the kernel side of writeUniforms. Real values travel as float32, so
// the caller sees them rounded to single precision; the agent count is exact.
func readUniforms(u *accel.Uniforms) Params {
	behaviour := func(name string) BehaviourParameters {
		return BehaviourParameters{
			Active: u.Component(name, 0) != 0,
			Weight: u.Component(name, 1),
			Radius: u.Component(name, 2),
		}
	}
	return Params{
		Center: geometry.Vector3D{
			X: u.Component(uFlockCenter, 0),
			Y: u.Component(uFlockCenter, 1),
			Z: u.Component(uFlockCenter, 2),
		},
		NumAgents:      u.Int(uNumAgents),
		DriveFactor:    u.Float(uDriveFactor),
		DeltaTime:      u.Float(uDeltaTime),
		AgentRadius:    u.Float(uAgentSizeRadius),
		ViewRange:      u.Float(uAgentViewRange),
		Avoidance:      behaviour(uAvoidanceParams),
		Cohesion:       behaviour(uCohesionParams),
		Alignment:      behaviour(uAlignmentParams),
		BoundingSphere: behaviour(uBoundingSphereParams),
	}
}

// updatePosition is the body of k_UpdatePosition for agent id.
func updatePosition(id int, inv *accel.Invocation) {
	p := readUniforms(inv.Uniforms)
	if id >= p.NumAgents {
		return
	}
	state := packedState{
		positions:  inv.Read(bindPositions),
		velocities: inv.Read(bindVelocities),
		n:          p.NumAgents,
	}
	v := steer(id, state, &p)
	accel.StoreVector(inv.Write(bindVelocities), id, v)
	accel.StoreVector(inv.Write(bindPositions), id, state.Position(id).Add(v.Mul(p.DeltaTime)))
}

// keepPosition is the body of k_KeepPosition: agents stop where they are.
func keepPosition(id int, inv *accel.Invocation) {
	if id >= inv.Uniforms.Int(uNumAgents) {
		return
	}
	accel.StoreVector(inv.Write(bindVelocities), id, geometry.Zero)
}
