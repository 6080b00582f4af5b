// Package simulation orchestrates the flock handlers: it keeps one of them active,
// starts and stops it, forwards frame ticks and configuration patches, and notifies
// listeners of every change. The Controller runs as a goakt actor.
package simulation

import (
	"errors"
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	golog "github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
)

// Handler names, in the order used by SelectHandlerIndex.
const (
	HandlerAccelerator = "accelerator"
	HandlerCPU         = "cpu"
)

var (
	// ErrUnknownHandler is returned when selecting a handler that does not exist.
	ErrUnknownHandler = errors.New("simulation: unknown handler")
	// ErrNoHandler is returned by NewController without handlers.
	ErrNoHandler = errors.New("simulation: no handler")
)

// lockedWhileRunning lists the configuration members the controller refuses to patch
// while the simulation runs.
var lockedWhileRunning = []string{"numAgents", "flockRadius"}

// EventKind tells what changed.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventHandlerChanged
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventStopped:
		return "stopped"
	case EventHandlerChanged:
		return "handler-changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is sent to listeners. Config is the configuration of the active handler, so
// that a UI can bind to the new instance after a handler change.
type Event struct {
	Kind    EventKind
	Handler string
	RunID   string
	Config  *flock.Config
}

// Listener receives controller events on the controller goroutine.
type Listener func(Event)

// Controller owns a set of named flock handlers, exactly one of which is active.
// Only the active handler is ever enabled.
type Controller struct {
	handlers map[string]*flock.Handler
	order    []string
	active   string
	running  bool

	listeners []Listener
	recorder  *telemetry.Recorder
	gizmos    flock.Gizmos
	logger    golog.Logger

	tickErrors      uint64
	telemetryErrors uint64
}

var _ actor.Actor = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithListener registers a listener. Listeners must be registered before the
// controller is spawned.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, l) }
}

// WithRecorder records telemetry after every tick.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithGizmos draws the active handler gizmos before every tick.
func WithGizmos(g flock.Gizmos) Option {
	return func(c *Controller) { c.gizmos = g }
}

// WithLogger sets the logger used outside of the actor context.
func WithLogger(l golog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController returns a controller whose active handler is the first one.
func NewController(handlers []*flock.Handler, opts ...Option) (*Controller, error) {
	if len(handlers) == 0 {
		return nil, ErrNoHandler
	}
	c := &Controller{
		handlers: make(map[string]*flock.Handler, len(handlers)),
		logger:   golog.DiscardLogger,
	}
	for _, h := range handlers {
		if _, dup := c.handlers[h.Name()]; dup {
			return nil, fmt.Errorf("simulation: duplicate handler %q", h.Name())
		}
		c.handlers[h.Name()] = h
		c.order = append(c.order, h.Name())
	}
	c.active = c.order[0]
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PreStart implements actor.Actor.
func (c *Controller) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("flock controller starting with handlers %v", c.order)
	return nil
}

// Receive implements actor.Actor.
//
//	*durationpb.Duration    tick by the frame delta (Tell, no response)
//	*wrapperspb.BoolValue   start (true) or stop (false)
//	*wrapperspb.StringValue select a handler by name
//	*wrapperspb.Int32Value  select a handler by index
//	*structpb.Struct        patch the configuration
//	*emptypb.Empty          status
//
// Every message but the tick is answered with the status as a *structpb.Struct.
func (c *Controller) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("flock controller started, active handler %q", c.active)

	case *durationpb.Duration:
		if err := c.Tick(msg.AsDuration().Seconds()); err != nil {
			ctx.Logger().Errorf("flock tick failed, stopping %q: %v", c.active, err)
			c.StopSimulation()
		}

	case *wrapperspb.BoolValue:
		var err error
		if msg.GetValue() {
			err = c.StartSimulation()
		} else {
			c.StopSimulation()
		}
		c.respond(ctx, err)

	case *wrapperspb.StringValue:
		c.respond(ctx, c.SelectHandler(msg.GetValue()))

	case *wrapperspb.Int32Value:
		c.respond(ctx, c.SelectHandlerIndex(int(msg.GetValue())))

	case *structpb.Struct:
		c.respond(ctx, c.PatchConfig(msg.AsMap()))

	case *emptypb.Empty:
		c.respond(ctx, nil)

	default:
		ctx.Unhandled()
	}
}

// PostStop implements actor.Actor. The active handler is disabled.
func (c *Controller) PostStop(ctx *actor.Context) error {
	c.StopSimulation()
	ctx.ActorSystem().Logger().Infof("flock controller stopped (%d failed ticks, %d telemetry failures)",
		c.tickErrors, c.telemetryErrors)
	return nil
}

func (c *Controller) respond(ctx *actor.ReceiveContext, err error) {
	if err != nil {
		ctx.Logger().Warnf("flock controller: %v", err)
	}
	status := c.Status()
	if err != nil {
		status.Error = err.Error()
	}
	resp, perr := status.toProto()
	if perr != nil {
		ctx.Logger().Errorf("flock controller: encode status: %v", perr)
		return
	}
	ctx.Response(resp)
}

// Active returns the active handler.
func (c *Controller) Active() *flock.Handler { return c.handlers[c.active] }

// Handlers returns the handler names in selection order.
func (c *Controller) Handlers() []string {
	return append([]string(nil), c.order...)
}

// Running reports whether the active handler is enabled.
func (c *Controller) Running() bool { return c.running }

// StartSimulation enables the active handler. Starting a running simulation does nothing.
func (c *Controller) StartSimulation() error {
	if c.running {
		return nil
	}
	h := c.Active()
	if err := h.Enable(); err != nil {
		return err
	}
	c.running = true
	c.logger.Infof("simulation started on %q (run %s)", h.Name(), h.RunID())
	c.emit(EventStarted)
	return nil
}

// StopSimulation disables the active handler. Stopping a stopped simulation does nothing.
func (c *Controller) StopSimulation() {
	if !c.running {
		return
	}
	c.Active().Disable()
	c.running = false
	c.logger.Infof("simulation stopped on %q", c.active)
	c.emit(EventStopped)
}

// SelectHandler makes name the active handler. A running simulation moves to the new
// handler: the old one is disabled before the new one is enabled.
func (c *Controller) SelectHandler(name string) error {
	next, ok := c.handlers[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownHandler, name)
	}
	if name == c.active {
		return nil
	}
	previous := c.active
	if c.running {
		c.Active().Disable()
		if err := next.Enable(); err != nil {
			if rerr := c.Active().Enable(); rerr != nil {
				c.running = false
				c.emit(EventStopped)
			}
			return fmt.Errorf("switch to %q: %w", name, err)
		}
	}
	c.active = name
	c.logger.Infof("active flock handler %q -> %q", previous, name)
	c.emit(EventHandlerChanged)
	return nil
}

// SelectHandlerIndex selects the handler at index i of Handlers.
func (c *Controller) SelectHandlerIndex(i int) error {
	if i < 0 || i >= len(c.order) {
		return fmt.Errorf("%w: index %d", ErrUnknownHandler, i)
	}
	return c.SelectHandler(c.order[i])
}

// Tick advances the active handler by deltaTime seconds. It does nothing while stopped.
func (c *Controller) Tick(deltaTime float64) error {
	if !c.running {
		return nil
	}
	h := c.Active()
	if c.gizmos != nil {
		if err := h.DrawGizmos(c.gizmos); err != nil {
			return err
		}
	}
	start := time.Now()
	if err := h.Tick(deltaTime); err != nil {
		c.tickErrors++
		return err
	}
	if c.recorder == nil {
		return nil
	}
	positions, err := h.Positions().Vectors()
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}
	cfg := h.Config()
	_, err = c.recorder.Observe(telemetry.Sample{
		RunID:          h.RunID(),
		Backend:        h.Backend().Name(),
		Tick:           h.Ticks(),
		DeltaTime:      deltaTime,
		Duration:       time.Since(start),
		Center:         h.Center(),
		BoundingRadius: cfg.BoundingSphere.Radius,
		Positions:      positions,
	})
	if err != nil {
		// telemetry failures never stop the run
		c.telemetryErrors++
		if c.telemetryErrors == 1 {
			c.logger.Warnf("flock telemetry failed, further failures are only counted: %v", err)
		}
	}
	return nil
}

// TelemetryErrors is the number of ticks whose statistics could not be recorded.
func (c *Controller) TelemetryErrors() uint64 { return c.telemetryErrors }

// PatchConfig merges patch into the configuration of every handler. The agent count
// and the flock radius cannot change while running.
func (c *Controller) PatchConfig(patch map[string]any) error {
	if c.running {
		for _, key := range lockedWhileRunning {
			if _, ok := patch[key]; ok {
				return fmt.Errorf("%w: %s", flock.ErrLockedWhileRunning, key)
			}
		}
	}
	seen := make(map[*flock.Config]bool, len(c.handlers))
	for _, name := range c.orderActiveFirst() {
		h := c.handlers[name]
		if seen[h.Config()] {
			continue
		}
		seen[h.Config()] = true
		if err := h.Reconfigure(func(cfg *flock.Config) error { return cfg.ApplyPatch(patch) }); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) orderActiveFirst() []string {
	names := []string{c.active}
	for _, name := range c.order {
		if name != c.active {
			names = append(names, name)
		}
	}
	return names
}

// Status describes the controller state.
func (c *Controller) Status() Status {
	h := c.Active()
	return Status{
		Running:   c.running,
		Handler:   c.active,
		RunID:     h.RunID(),
		Ticks:     h.Ticks(),
		NumAgents: h.Config().NumAgents,
	}
}

func (c *Controller) emit(kind EventKind) {
	h := c.Active()
	ev := Event{Kind: kind, Handler: h.Name(), RunID: h.RunID(), Config: h.Config()}
	for _, l := range c.listeners {
		l(ev)
	}
}
