package flock

import (
	"errors"
	"fmt"
	"image/color"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

var (
	// ErrNotEnabled is returned when ticking a disabled handler.
	ErrNotEnabled = errors.New("flock: handler is not enabled")
	// ErrLockedWhileRunning is returned when a reconfiguration changes a setting that
	// is fixed between Enable and Disable.
	ErrLockedWhileRunning = errors.New("flock: setting is locked while running")
)

// renderBoundsFactor scales the flock radius into the culling bounds given to the renderer.
const renderBoundsFactor = 10

// Gizmo colors.
var (
	FlockRadiusColor    = color.NRGBA{R: 0, G: 255, B: 255, A: 51} // cyan, alpha 0.2
	BoundingSphereColor = color.NRGBA{R: 0, G: 255, B: 0, A: 31}   // green, alpha 0.12
)

// Renderer consumes the position buffer after every tick, drawing one instance of mesh
// per agent.
type Renderer interface {
	DrawInstanced(positions *accel.Buffer, mesh *Mesh, scale float64, bounds geometry.Bounds)
}

// Gizmos draws editor helpers.
type Gizmos interface {
	DrawSphere(center geometry.Vector3D, radius float64, c color.NRGBA)
}

type nopRenderer struct{}

func (nopRenderer) DrawInstanced(*accel.Buffer, *Mesh, float64, geometry.Bounds) {}

// State is the lifecycle state of a Handler.
type State int

const (
	Disabled State = iota
	Enabled
)

func (s State) String() string {
	if s == Enabled {
		return "enabled"
	}
	return "disabled"
}

// Handler drives one Backend through its lifecycle: Enable allocates and seeds the
// agents, Tick advances and renders them, Disable frees them.
// A Handler is not safe for concurrent use; the simulation controller owns it.
type Handler struct {
	name     string
	cfg      *Config
	backend  Backend
	renderer Renderer
	logger   log.Logger
	rng      *rand.Rand

	state     State
	center    geometry.Vector3D
	numAgents int
	runID     string
	ticks     uint64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRenderer sets the consumer of the position buffer.
func WithRenderer(r Renderer) HandlerOption {
	return func(h *Handler) {
		if r != nil {
			h.renderer = r
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l log.Logger) HandlerOption {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSeed makes the initial agent positions reproducible.
func WithSeed(seed uint64) HandlerOption {
	return func(h *Handler) { h.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// NewHandler returns a disabled handler named name driving backend with cfg.
// Several handlers may share the same cfg.
func NewHandler(name string, backend Backend, cfg *Config, opts ...HandlerOption) *Handler {
	h := &Handler{
		name:     name,
		cfg:      cfg,
		backend:  backend,
		renderer: nopRenderer{},
		logger:   log.DiscardLogger,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name returns the handler name.
func (h *Handler) Name() string { return h.name }

// Config returns the configuration the handler reads on every tick.
func (h *Handler) Config() *Config { return h.cfg }

// Backend returns the backend driven by the handler.
func (h *Handler) Backend() Backend { return h.backend }

// State returns the lifecycle state.
func (h *Handler) State() State { return h.state }

// Enabled reports whether the handler is running.
func (h *Handler) Enabled() bool { return h.state == Enabled }

// Center is the flock center captured at Enable and refreshed on every tick.
func (h *Handler) Center() geometry.Vector3D { return h.center }

// RunID identifies the current or last run; every Enable starts a new one.
func (h *Handler) RunID() string { return h.runID }

// Ticks is the number of ticks of the current run.
func (h *Handler) Ticks() uint64 { return h.ticks }

// Positions is the position buffer of the running backend, nil while disabled.
func (h *Handler) Positions() *accel.Buffer { return h.backend.Positions() }

// Enable validates the configuration and initializes the backend. Enabling an enabled
// handler does nothing.
func (h *Handler) Enable() error {
	if h.state == Enabled {
		return nil
	}
	if h.cfg == nil {
		return fmt.Errorf("%w: no configuration", ErrInvalidConfig)
	}
	if err := h.cfg.Ready(); err != nil {
		return fmt.Errorf("enable %s: %w", h.name, err)
	}
	if err := h.cfg.Validate(); err != nil {
		return fmt.Errorf("enable %s: %w", h.name, err)
	}

	h.center = h.cfg.Origin().Position()
	p := h.cfg.Params(h.center, 0)
	if err := h.backend.Initialize(p, h.rng); err != nil {
		return fmt.Errorf("enable %s: %w", h.name, err)
	}
	h.numAgents = p.NumAgents
	h.runID = uuid.NewString()
	h.ticks = 0
	h.state = Enabled
	h.logger.Infof("flock handler %q enabled: run=%s backend=%s agents=%d center=%v",
		h.name, h.runID, h.backend.Name(), h.numAgents, h.center)
	return nil
}

// Tick advances the flock by deltaTime seconds and hands the positions to the renderer.
func (h *Handler) Tick(deltaTime float64) error {
	if h.state != Enabled {
		return ErrNotEnabled
	}
	if origin := h.cfg.Origin(); origin != nil {
		h.center = origin.Position()
	}
	p := h.cfg.Params(h.center, deltaTime)
	if p.NumAgents != h.numAgents {
		return fmt.Errorf("tick %s: %w: enabled with %d, config has %d",
			h.name, ErrAgentCountChanged, h.numAgents, p.NumAgents)
	}
	if err := h.backend.Update(p); err != nil {
		return fmt.Errorf("tick %s: %w", h.name, err)
	}
	h.ticks++
	h.logger.Debugf("flock handler %q tick %d dt=%.4f", h.name, h.ticks, deltaTime)

	bounds := geometry.NewCubeBounds(h.center, h.cfg.FlockRadius*renderBoundsFactor)
	h.renderer.DrawInstanced(h.backend.Positions(), h.cfg.AgentMesh, h.cfg.AgentScale, bounds)
	return nil
}

// Disable releases the agent state. Disabling a disabled handler does nothing.
func (h *Handler) Disable() {
	if h.state == Disabled {
		return
	}
	h.backend.Dispose()
	h.state = Disabled
	h.logger.Infof("flock handler %q disabled: run=%s after %d ticks", h.name, h.runID, h.ticks)
}

// DrawGizmos draws the flock radius and the bounding sphere around the origin.
func (h *Handler) DrawGizmos(g Gizmos) error {
	origin := h.cfg.Origin()
	if origin == nil {
		return ErrMissingOrigin
	}
	center := origin.Position()
	g.DrawSphere(center, h.cfg.FlockRadius, FlockRadiusColor)
	g.DrawSphere(center, h.cfg.BoundingSphere.Radius, BoundingSphereColor)
	return nil
}

// Reconfigure applies edit to a copy of the configuration, validates it and swaps it
// in. While the handler is enabled the agent count cannot change and the origin and
// the mesh cannot be removed.
func (h *Handler) Reconfigure(edit func(*Config) error) error {
	next := h.cfg.Clone()
	if err := edit(next); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if h.state == Enabled {
		if next.NumAgents != h.numAgents {
			return fmt.Errorf("%w: numAgents %d -> %d", ErrLockedWhileRunning, h.numAgents, next.NumAgents)
		}
		if err := next.Ready(); err != nil {
			return fmt.Errorf("reconfigure %s: %w", h.name, err)
		}
	}
	*h.cfg = *next
	return nil
}
