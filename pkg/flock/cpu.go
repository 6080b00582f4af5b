package flock

import (
	"fmt"
	"math/rand/v2"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// CPUBackend is the in-process reference implementation of the flock update.
// Agent state is kept in single precision, in the same layout as the device buffers,
// so that it matches the accelerator backend step for step.
type CPUBackend struct {
	logger log.Logger

	positions      []float32
	velocities     []float32
	nextPositions  []float32
	nextVelocities []float32
	numAgents      int

	buffer *accel.Buffer
	grid   *spatialGrid
}

var _ Backend = (*CPUBackend)(nil)

// NewCPUBackend returns an uninitialized CPU backend.
func NewCPUBackend(opts ...BackendOption) *CPUBackend {
	o := newBackendOptions(opts)
	b := &CPUBackend{logger: o.logger}
	if o.grid {
		b.grid = newSpatialGrid()
	}
	return b
}

// Name implements Backend.
func (b *CPUBackend) Name() string { return "cpu" }

// Initialize implements Backend.
func (b *CPUBackend) Initialize(p Params, rng *rand.Rand) error {
	if p.NumAgents <= 0 {
		return fmt.Errorf("%w: numAgents must be > 0, got %d", ErrInvalidConfig, p.NumAgents)
	}
	b.Dispose()

	n := p.NumAgents
	b.positions = accel.PackVectors(geometry.RandomPointsInSphere(rng, n, p.Center, p.FlockRadius), nil)
	b.velocities = make([]float32, n*3)
	b.nextPositions = make([]float32, n*3)
	b.nextVelocities = make([]float32, n*3)
	b.numAgents = n

	b.buffer = accel.NewBuffer(n, 3)
	if err := b.buffer.SetData(b.positions); err != nil {
		b.Dispose()
		return fmt.Errorf("cpu backend: upload initial positions: %w", err)
	}
	b.logger.Debugf("cpu backend: %d agents sampled around %v (radius %.2f)", n, p.Center, p.FlockRadius)
	return nil
}

// Update implements Backend. Every agent reads the state of the previous tick.
func (b *CPUBackend) Update(p Params) error {
	if b.buffer == nil {
		return ErrNotInitialized
	}
	if err := checkAgentCount(p, b.numAgents); err != nil {
		return err
	}
	state := packedState{positions: b.positions, velocities: b.velocities, n: b.numAgents}
	useGrid := b.grid != nil && neighbourhood(&p) > 0
	if useGrid {
		b.grid.rebuild(state, neighbourhood(&p))
	}
	for i := 0; i < b.numAgents; i++ {
		var v geometry.Vector3D
		if useGrid {
			v = steerNear(i, state, b.grid, &p)
		} else {
			v = steer(i, state, &p)
		}
		pos := state.Position(i).Add(v.Mul(p.DeltaTime))
		accel.StoreVector(b.nextVelocities, i, v)
		accel.StoreVector(b.nextPositions, i, pos)
	}
	b.positions, b.nextPositions = b.nextPositions, b.positions
	b.velocities, b.nextVelocities = b.nextVelocities, b.velocities

	if err := b.buffer.SetData(b.positions); err != nil {
		return fmt.Errorf("cpu backend: upload positions: %w", err)
	}
	return nil
}

// Dispose implements Backend.
func (b *CPUBackend) Dispose() {
	if b.buffer != nil {
		b.buffer.Release()
	}
	b.buffer = nil
	b.positions, b.velocities = nil, nil
	b.nextPositions, b.nextVelocities = nil, nil
	b.numAgents = 0
}

// Positions implements Backend.
func (b *CPUBackend) Positions() *accel.Buffer { return b.buffer }

// Velocities returns a copy of the agent velocities of the last tick.
func (b *CPUBackend) Velocities() []geometry.Vector3D {
	return accel.UnpackVectors(b.velocities, nil)
}
