package flock

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
)

var (
	// ErrNotInitialized is returned by Update before Initialize or after Dispose.
	ErrNotInitialized = errors.New("flock: backend not initialized")
	// ErrAgentCountChanged is returned when a tick asks for a different population than
	// the one allocated at Initialize.
	ErrAgentCountChanged = errors.New("flock: agent count changed while running")
)

// Backend owns the agent state of one flock and advances it tick by tick.
// Backends are driven by a single goroutine.
type Backend interface {
	// Name is a short identifier such as "cpu" or "accelerator".
	Name() string
	// Initialize allocates the state of p.NumAgents agents: positions sampled in the
	// sphere of radius p.FlockRadius around p.Center, zero velocities.
	Initialize(p Params, rng *rand.Rand) error
	// Update advances every agent by p.DeltaTime.
	Update(p Params) error
	// Dispose releases the state. It is safe to call on a disposed backend.
	Dispose()
	// Positions is the per-agent position buffer, nil while not initialized.
	Positions() *accel.Buffer
}

// BackendOption configures the CPU and accelerator backends.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger  log.Logger
	program *accel.Program
	kernel  string
	grid    bool
}

func newBackendOptions(opts []BackendOption) backendOptions {
	o := backendOptions{
		logger: log.DiscardLogger,
		kernel: UpdateKernel,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.program == nil {
		o.program = ComputeProgram()
	}
	return o
}

// WithBackendLogger sets the backend logger.
func WithBackendLogger(l log.Logger) BackendOption {
	return func(o *backendOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProgram replaces the compute program used by the accelerator backend.
func WithProgram(p *accel.Program) BackendOption {
	return func(o *backendOptions) { o.program = p }
}

// WithKernel selects the kernel dispatched by the accelerator backend each tick.
// KeepKernel freezes the flock in place.
func WithKernel(name string) BackendOption {
	return func(o *backendOptions) { o.kernel = name }
}

// WithNeighbourGrid makes the CPU backend look for neighbours in a spatial grid
// instead of scanning every agent. The results do not change.
func WithNeighbourGrid() BackendOption {
	return func(o *backendOptions) { o.grid = true }
}

func checkAgentCount(p Params, allocated int) error {
	if p.NumAgents != allocated {
		return fmt.Errorf("%w: allocated %d, tick asks for %d", ErrAgentCountChanged, allocated, p.NumAgents)
	}
	return nil
}
