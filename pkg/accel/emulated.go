package accel

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/tochemey/goakt/v3/log"
	"golang.org/x/sync/errgroup"
)

// EmulatedDevice runs kernels on the host behind a single in-order command queue.
// Work-groups of a dispatch run either one after the other (WithSequential) or
// spread over a bounded set of goroutines. Because every work item reads the
// dispatch-start snapshot of its bindings, both modes give the same results.
type EmulatedDevice struct {
	name       string
	sequential bool
	workers    int
	depth      int
	logger     log.Logger

	mu     sync.RWMutex
	closed bool
	cmds   chan command
	wg     sync.WaitGroup

	dispatches atomic.Uint64
	workItems  atomic.Uint64
}

var _ Device = (*EmulatedDevice)(nil)

type command struct {
	run   func() error
	fence *Fence
}

// Option configures an EmulatedDevice.
type Option func(*EmulatedDevice)

// WithSequential executes work-groups in order on the queue goroutine.
func WithSequential() Option {
	return func(d *EmulatedDevice) { d.sequential = true }
}

// WithWorkers bounds the number of goroutines running work-groups in parallel.
func WithWorkers(n int) Option {
	return func(d *EmulatedDevice) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithQueueDepth sets how many commands can wait in the queue before Dispatch blocks.
func WithQueueDepth(n int) Option {
	return func(d *EmulatedDevice) {
		if n > 0 {
			d.depth = n
		}
	}
}

// WithLogger sets the device logger.
func WithLogger(l log.Logger) Option {
	return func(d *EmulatedDevice) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithName sets the device name.
func WithName(name string) Option {
	return func(d *EmulatedDevice) { d.name = name }
}

// NewEmulatedDevice starts the command queue of a new device.
func NewEmulatedDevice(opts ...Option) *EmulatedDevice {
	d := &EmulatedDevice{
		name:    "emulated",
		workers: runtime.GOMAXPROCS(0),
		depth:   16,
		logger:  log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cmds = make(chan command, d.depth)
	d.wg.Add(1)
	go d.loop()
	d.logger.Infof("accel device %q ready (workers=%d sequential=%t)", d.name, d.workers, d.sequential)
	return d
}

// Name implements Device.
func (d *EmulatedDevice) Name() string { return d.name }

// Stats returns how many dispatches and work items the device has executed.
func (d *EmulatedDevice) Stats() (dispatches, workItems uint64) {
	return d.dispatches.Load(), d.workItems.Load()
}

// NewBuffer implements Device.
func (d *EmulatedDevice) NewBuffer(count, stride int) (*Buffer, error) {
	if count < 1 || stride < 1 {
		return nil, fmt.Errorf("%w: cannot allocate %d x %d", ErrBufferSize, count, stride)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDeviceUnavailable
	}
	b := NewBuffer(count, stride)
	b.owner = d
	return b, nil
}

// FindKernel implements Device.
func (d *EmulatedDevice) FindKernel(program *Program, name string) (KernelHandle, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return KernelHandle{}, ErrDeviceUnavailable
	}
	if program == nil {
		return KernelHandle{}, fmt.Errorf("%w: %q (no program)", ErrKernelNotFound, name)
	}
	spec, ok := program.kernels[name]
	if !ok {
		return KernelHandle{}, fmt.Errorf("%w: %q in program %q", ErrKernelNotFound, name, program.name)
	}
	return KernelHandle{program: program.name, name: name, spec: spec}, nil
}

// Dispatch implements Device.
func (d *EmulatedDevice) Dispatch(kernel KernelHandle, groups int, uniforms *Uniforms, bindings Bindings) (*Fence, error) {
	if !kernel.valid() {
		return nil, fmt.Errorf("%w: %q", ErrKernelNotFound, kernel.name)
	}
	if groups < 1 {
		return nil, fmt.Errorf("%w: %d work-groups", ErrInvalidDispatch, groups)
	}
	bound := make(Bindings, len(bindings))
	for name, b := range bindings {
		if b == nil || b.owner != d {
			return nil, fmt.Errorf("%w: binding %q does not belong to device %q", ErrInvalidDispatch, name, d.name)
		}
		bound[name] = b
	}
	var u *Uniforms
	if uniforms != nil {
		u = uniforms.Clone()
	} else {
		u = NewUniforms()
	}
	return d.submit(func() error {
		return d.execute(kernel, groups, u, bound)
	})
}

// Finish implements Device.
func (d *EmulatedDevice) Finish() (*Fence, error) {
	return d.submit(func() error { return nil })
}

// Close implements Device. Pending commands complete before Close returns.
func (d *EmulatedDevice) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.cmds)
	d.mu.Unlock()

	d.wg.Wait()
	dispatches, items := d.Stats()
	d.logger.Infof("accel device %q closed after %d dispatches (%d work items)", d.name, dispatches, items)
	return nil
}

func (d *EmulatedDevice) submit(fn func() error) (*Fence, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil, ErrDeviceUnavailable
	}
	f := newFence()
	d.cmds <- command{run: fn, fence: f}
	return f, nil
}

func (d *EmulatedDevice) loop() {
	defer d.wg.Done()
	for cmd := range d.cmds {
		cmd.fence.signal(safeRun(cmd.run))
	}
}

func safeRun(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCommandPanicked, r)
		}
	}()
	return fn()
}

// execute runs on the queue goroutine.
func (d *EmulatedDevice) execute(kernel KernelHandle, groups int, u *Uniforms, bound Bindings) error {
	// the same buffer may be bound under several names
	unique := make(map[*Buffer][]float32, len(bound))
	for _, b := range bound {
		if _, seen := unique[b]; seen {
			continue
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		unique[b] = nil
	}

	inv := &Invocation{
		Uniforms: u,
		read:     make(map[string][]float32, len(bound)),
		write:    make(map[string][]float32, len(bound)),
	}
	for name, b := range bound {
		if b.released {
			return fmt.Errorf("%w: binding %q", ErrBufferReleased, name)
		}
		snap := unique[b]
		if snap == nil {
			snap = b.snapshot()
			unique[b] = snap
		}
		inv.read[name] = snap
		inv.write[name] = b.data
	}

	groupSize := kernel.GroupSize()
	total := groups * groupSize
	if d.sequential || d.workers <= 1 || groups == 1 {
		for id := 0; id < total; id++ {
			kernel.spec.fn(id, inv)
		}
	} else if err := d.executeParallel(kernel, groups, inv); err != nil {
		return err
	}

	d.dispatches.Add(1)
	d.workItems.Add(uint64(total))
	return nil
}

func (d *EmulatedDevice) executeParallel(kernel KernelHandle, groups int, inv *Invocation) error {
	groupSize := kernel.GroupSize()
	chunk := (groups + d.workers - 1) / d.workers

	var g errgroup.Group
	g.SetLimit(d.workers)
	for first := 0; first < groups; first += chunk {
		last := min(first+chunk, groups)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: kernel %s in groups [%d,%d): %v", ErrCommandPanicked, kernel, first, last, r)
				}
			}()
			for id := first * groupSize; id < last*groupSize; id++ {
				kernel.spec.fn(id, inv)
			}
			return nil
		})
	}
	return g.Wait()
}
