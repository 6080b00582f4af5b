package flock

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// AcceleratorBackend runs the flock update as a compute kernel on an accel.Device.
// Update only submits work: it returns as soon as the dispatch is queued. Reads of the
// position buffer are ordered behind it by the device queue.
type AcceleratorBackend struct {
	device  accel.Device
	program *accel.Program
	kernel  string
	logger  log.Logger

	handle     accel.KernelHandle
	positions  *accel.Buffer
	velocities *accel.Buffer
	uniforms   *accel.Uniforms
	numAgents  int
	last       *accel.Fence
	inFlight   []*accel.Fence
	failed     error
}

var _ Backend = (*AcceleratorBackend)(nil)

// NewAcceleratorBackend returns an uninitialized backend dispatching on device.
func NewAcceleratorBackend(device accel.Device, opts ...BackendOption) *AcceleratorBackend {
	o := newBackendOptions(opts)
	return &AcceleratorBackend{
		device:  device,
		program: o.program,
		kernel:  o.kernel,
		logger:  o.logger,
	}
}

// Name implements Backend.
func (b *AcceleratorBackend) Name() string { return "accelerator" }

// Initialize implements Backend. It fails when the device is unavailable or the
// program lacks the kernel; there is no fallback to another backend.
func (b *AcceleratorBackend) Initialize(p Params, rng *rand.Rand) error {
	if b.device == nil {
		return fmt.Errorf("accelerator backend: %w", accel.ErrDeviceUnavailable)
	}
	if p.NumAgents <= 0 {
		return fmt.Errorf("%w: numAgents must be > 0, got %d", ErrInvalidConfig, p.NumAgents)
	}
	b.Dispose()

	handle, err := b.device.FindKernel(b.program, b.kernel)
	if err != nil {
		return fmt.Errorf("accelerator backend: %w", err)
	}
	n := p.NumAgents
	positions, err := b.device.NewBuffer(n, 3)
	if err != nil {
		return fmt.Errorf("accelerator backend: allocate positions: %w", err)
	}
	velocities, err := b.device.NewBuffer(n, 3)
	if err != nil {
		positions.Release()
		return fmt.Errorf("accelerator backend: allocate velocities: %w", err)
	}
	initial := geometry.RandomPointsInSphere(rng, n, p.Center, p.FlockRadius)
	if err := positions.SetVectors(initial); err != nil {
		positions.Release()
		velocities.Release()
		return fmt.Errorf("accelerator backend: upload initial positions: %w", err)
	}

	b.handle = handle
	b.positions = positions
	b.velocities = velocities
	b.uniforms = accel.NewUniforms()
	b.numAgents = n
	b.logger.Debugf("accelerator backend: %d agents on device %q, kernel %s, %d work-groups",
		n, b.device.Name(), handle, accel.GroupsFor(n, handle.GroupSize()))
	return nil
}

// Update implements Backend.
func (b *AcceleratorBackend) Update(p Params) error {
	if b.positions == nil {
		return ErrNotInitialized
	}
	if err := checkAgentCount(p, b.numAgents); err != nil {
		return err
	}
	if err := b.checkCompleted(); err != nil {
		return err
	}
	writeUniforms(b.uniforms, p)
	fence, err := b.device.Dispatch(b.handle, accel.GroupsFor(b.numAgents, b.handle.GroupSize()), b.uniforms, accel.Bindings{
		bindPositions:  b.positions,
		bindVelocities: b.velocities,
	})
	if err != nil {
		return fmt.Errorf("accelerator backend: dispatch %s: %w", b.handle, err)
	}
	b.last = fence
	b.inFlight = append(b.inFlight, fence)
	return nil
}

// checkCompleted forgets the dispatches that have finished and returns the first
// failure among them. A failure is kept until the backend is initialized again.
func (b *AcceleratorBackend) checkCompleted() error {
	if b.failed != nil {
		return b.failed
	}
	done := 0
	for _, f := range b.inFlight {
		if !f.Completed() {
			break
		}
		done++
		if err := f.Err(); err != nil {
			b.failed = fmt.Errorf("accelerator backend: kernel %s: %w", b.handle, err)
			break
		}
	}
	b.inFlight = append(b.inFlight[:0], b.inFlight[done:]...)
	return b.failed
}

// Wait blocks until the last dispatched tick has completed and returns the first
// dispatch failure, if any.
func (b *AcceleratorBackend) Wait(ctx context.Context) error {
	if b.last == nil {
		return b.failed
	}
	if err := b.last.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	return b.checkCompleted()
}

// LastFence returns the completion token of the last dispatch, nil before the first tick.
func (b *AcceleratorBackend) LastFence() *accel.Fence { return b.last }

// Dispose implements Backend. Releases are queued behind in-flight dispatches.
func (b *AcceleratorBackend) Dispose() {
	if b.positions != nil {
		b.positions.Release()
	}
	if b.velocities != nil {
		b.velocities.Release()
	}
	b.positions, b.velocities = nil, nil
	b.uniforms = nil
	b.numAgents = 0
	b.last = nil
	b.inFlight = nil
	b.failed = nil
}

// Positions implements Backend.
func (b *AcceleratorBackend) Positions() *accel.Buffer { return b.positions }

// Velocities reads the velocity buffer back. Only diagnostics use it.
func (b *AcceleratorBackend) Velocities() ([]geometry.Vector3D, error) {
	if b.velocities == nil {
		return nil, ErrNotInitialized
	}
	return b.velocities.Vectors()
}
