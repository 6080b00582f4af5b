package viewer

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/ui"
)

const (
	panelWidth  = 260.0
	orbitSpeed  = 0.01 // radians per pixel
	zoomStep    = 1.1
	minAgentPix = 1.5
)

var (
	background = color.RGBA{R: 12, G: 14, B: 22, A: 255}
	nearColor  = color.RGBA{R: 255, G: 220, B: 120, A: 255}
	farColor   = color.RGBA{R: 90, G: 60, B: 140, A: 255}
)

// Game is the ebiten front end of a controller actor.
type Game struct {
	ctx    context.Context
	pid    *actor.PID
	sink   *FrameSink
	logger log.Logger

	width, height int
	camera        *geometry.Camera
	panel         *ui.UIPanel
	bindings      []*binding
	startButton   *ui.Button
	handlerButton *ui.Button
	fps           *telemetry.FramerateCounter

	cfg      *flock.Config
	frame    *Frame
	status   simulation.Status
	message  string
	lastTick time.Time

	orbiting bool
	orbitAt  geometry.Vector2D
	order    []int
	depth    []float64
	screen   []geometry.Vector2D
}

// NewGame builds the viewer of the controller pid. cfg is only read to initialize the
// widgets; later values come from the controller events.
func NewGame(ctx context.Context, pid *actor.PID, sink *FrameSink, cfg *flock.Config, width, height int, logger log.Logger) *Game {
	if logger == nil {
		logger = log.DiscardLogger
	}
	g := &Game{
		ctx:    ctx,
		pid:    pid,
		sink:   sink,
		logger: logger,
		width:  width,
		height: height,
		cfg:    cfg.Clone(),
		fps:    telemetry.NewFramerateCounter(),
	}
	g.panel = ui.NewUIPanel(10, 50, panelWidth, float64(height)-60)
	g.bindings = buildPanel(g.panel, g.cfg)
	g.startButton = ui.NewButton(10, 10, 120, 30, "Start", g.toggleRunning)
	g.handlerButton = ui.NewButton(140, 10, 130, 30, "Backend", g.nextHandler)
	g.resetCamera()

	if status, err := simulation.QueryStatus(ctx, pid); err == nil {
		g.setStatus(status)
	} else {
		g.logger.Warnf("viewer: query status: %v", err)
	}
	return g
}

func (g *Game) resetCamera() {
	viewport := geometry.Vector2D{X: panelWidth + (float64(g.width)-panelWidth)/2, Y: float64(g.height) / 2}
	center := geometry.Zero
	if o := g.cfg.Origin(); o != nil {
		center = o.Position()
	}
	g.camera = geometry.NewCamera(center, 10, viewport)
	radius := math.Max(g.cfg.FlockRadius, g.cfg.BoundingSphere.Radius)
	g.camera.FitRadius(radius, float64(g.height))
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}
	now := time.Now()
	if g.lastTick.IsZero() {
		g.lastTick = now
	}
	dt := now.Sub(g.lastTick)
	g.lastTick = now
	g.fps.Update(dt)

	g.drain()

	ptr := ui.ReadPointer()
	g.panel.Update(ptr)
	g.startButton.Update(ptr)
	g.handlerButton.Update(ptr)
	g.handleKeys()
	g.handleCamera(ptr)

	if patch := collectPatch(g.bindings); patch != nil {
		g.patch(patch)
	}
	if g.status.Running {
		if err := simulation.Tick(g.ctx, g.pid, dt); err != nil {
			g.message = err.Error()
		}
	}
	return nil
}

// drain picks up the controller events and the latest frame.
func (g *Game) drain() {
	for {
		select {
		case ev := <-g.sink.Events():
			g.onEvent(ev)
			continue
		default:
		}
		break
	}
	select {
	case f := <-g.sink.Frames():
		g.frame = f
		g.camera.Target = f.Bounds.Center
	default:
	}
}

func (g *Game) onEvent(ev simulation.Event) {
	g.logger.Debugf("viewer: %s on %q", ev.Kind, ev.Handler)
	if ev.Config != nil {
		g.cfg = ev.Config
		for _, b := range g.bindings {
			b.sync(g.cfg)
		}
	}
	g.status.Handler = ev.Handler
	g.status.RunID = ev.RunID
	switch ev.Kind {
	case simulation.EventStarted:
		g.status.Running = true
	case simulation.EventStopped:
		g.status.Running = false
		g.frame = nil
	}
	g.refreshControls()
}

func (g *Game) setStatus(s simulation.Status) {
	g.status = s
	g.refreshControls()
}

func (g *Game) refreshControls() {
	for _, b := range g.bindings {
		b.lock(g.status.Running)
	}
	if g.status.Running {
		g.startButton.Label = "Stop"
	} else {
		g.startButton.Label = "Start"
	}
	g.handlerButton.Label = g.status.Handler
}

func (g *Game) toggleRunning() {
	var (
		s   simulation.Status
		err error
	)
	if g.status.Running {
		s, err = simulation.Stop(g.ctx, g.pid)
	} else {
		s, err = simulation.Start(g.ctx, g.pid)
	}
	g.report(s, err)
}

func (g *Game) nextHandler() {
	next := simulation.HandlerCPU
	if g.status.Handler == simulation.HandlerCPU {
		next = simulation.HandlerAccelerator
	}
	s, err := simulation.Select(g.ctx, g.pid, next)
	g.report(s, err)
}

func (g *Game) patch(patch map[string]any) {
	s, err := simulation.Patch(g.ctx, g.pid, patch)
	if err == nil {
		// mirror the accepted change for the widgets
		err = g.cfg.ApplyPatch(patch)
	}
	if err != nil {
		for _, b := range g.bindings {
			b.sync(g.cfg)
		}
	}
	g.report(s, err)
}

func (g *Game) report(s simulation.Status, err error) {
	if err != nil {
		g.message = err.Error()
		g.logger.Warnf("viewer: %v", err)
	} else {
		g.message = ""
	}
	if s.Handler != "" {
		g.setStatus(s)
	}
}

func (g *Game) handleKeys() {
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.toggleRunning()
	case inpututil.IsKeyJustPressed(ebiten.KeyB):
		g.nextHandler()
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.resetCamera()
	}
}

// handleCamera orbits with a right drag and zooms with the wheel outside the panel.
func (g *Game) handleCamera(ptr ui.Pointer) {
	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		if g.orbiting {
			d := ptr.Position.Sub(g.orbitAt)
			g.camera.Orbit(-d.X*orbitSpeed, d.Y*orbitSpeed)
		}
		g.orbiting = true
		g.orbitAt = ptr.Position
	} else {
		g.orbiting = false
	}
	if ptr.Wheel != 0 && !g.panel.Contains(ptr) {
		g.camera.Zoom(math.Pow(zoomStep, ptr.Wheel))
	}
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	if g.frame != nil {
		g.drawSpheres(screen)
		g.drawAgents(screen)
	}
	g.panel.Draw(screen)
	g.startButton.Draw(screen)
	g.handlerButton.Draw(screen)
	g.drawHUD(screen)
}

func (g *Game) drawSpheres(screen *ebiten.Image) {
	for _, s := range g.frame.Spheres {
		p, _ := g.camera.Project(s.Center)
		r := float32(g.camera.Pixels(s.Radius))
		vector.FillCircle(screen, float32(p.X), float32(p.Y), r, s.Color, true)
		edge := s.Color
		edge.A = 160
		vector.StrokeCircle(screen, float32(p.X), float32(p.Y), r, 1, edge, true)
	}
}

// drawAgents paints the agents back to front, shaded by depth.
func (g *Game) drawAgents(screen *ebiten.Image) {
	f := g.frame
	n := len(f.Positions)
	g.order = g.order[:0]
	g.depth = slices.Grow(g.depth[:0], n)[:n]
	g.screen = slices.Grow(g.screen[:0], n)[:n]

	for i, p := range f.Positions {
		if !f.Bounds.Contains(p) {
			continue
		}
		g.screen[i], g.depth[i] = g.camera.Project(p)
		g.order = append(g.order, i)
	}
	slices.SortFunc(g.order, func(a, b int) int {
		switch {
		case g.depth[a] < g.depth[b]:
			return -1
		case g.depth[a] > g.depth[b]:
			return 1
		}
		return 0
	})

	span := math.Max(g.cfg.FlockRadius, g.cfg.BoundingSphere.Radius)
	radius := float32(math.Max(minAgentPix, g.camera.Pixels(f.AgentRadius)))
	for _, i := range g.order {
		t := 0.5 + g.depth[i]/(2*span)
		p := g.screen[i]
		vector.FillCircle(screen, float32(p.X), float32(p.Y), radius, shade(t), true)
	}
}

// shade blends the far and near colours, t in [0, 1] from far to near.
func shade(t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	mix := func(a, b uint8) uint8 { return uint8(float64(a) + (float64(b)-float64(a))*t) }
	return color.RGBA{
		R: mix(farColor.R, nearColor.R),
		G: mix(farColor.G, nearColor.G),
		B: mix(farColor.B, nearColor.B),
		A: 255,
	}
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	state := "stopped"
	if g.status.Running {
		state = "running"
	}
	agents := 0
	if g.frame != nil {
		agents = len(g.frame.Positions)
	}
	msg := fmt.Sprintf("%s  TPS: %.0f\nbackend: %s (%s)\nagents: %d  dropped frames: %d\n[space] start/stop  [b] backend  [r] camera",
		g.fps, ebiten.ActualTPS(), g.status.Handler, state, agents, g.sink.Dropped())
	if g.message != "" {
		msg += "\n\n" + g.message
	}
	ebitenutil.DebugPrintAt(screen, msg, int(panelWidth)+30, 10)
}

// Layout implements ebiten.Game.
func (g *Game) Layout(int, int) (int, int) { return g.width, g.height }
