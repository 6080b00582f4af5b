package simulation

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tochemey/goakt/v3/actor"
	golog "github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/telemetry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) listen(ev Event) { l.events = append(l.events, ev) }

func (l *eventLog) kinds() []EventKind {
	kinds := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

type countingGizmos struct{ spheres int }

func (g *countingGizmos) DrawSphere(geometry.Vector3D, float64, color.NRGBA) { g.spheres++ }

func newTestHandlers(t *testing.T) (*flock.Config, []*flock.Handler) {
	t.Helper()
	device := accel.NewEmulatedDevice(accel.WithSequential())
	t.Cleanup(func() { _ = device.Close() })

	cfg := flock.DefaultConfig()
	cfg.NumAgents = 16
	return cfg, []*flock.Handler{
		flock.NewHandler(HandlerAccelerator, flock.NewAcceleratorBackend(device), cfg, flock.WithSeed(1)),
		flock.NewHandler(HandlerCPU, flock.NewCPUBackend(), cfg, flock.WithSeed(1)),
	}
}

func newTestController(t *testing.T, opts ...Option) (*Controller, *eventLog) {
	t.Helper()
	_, handlers := newTestHandlers(t)
	events := &eventLog{}
	c, err := NewController(handlers, append(opts, WithListener(events.listen))...)
	require.NoError(t, err)
	return c, events
}

func TestNewController_Errors(t *testing.T) {
	_, err := NewController(nil)
	assert.ErrorIs(t, err, ErrNoHandler)

	cfg := flock.DefaultConfig()
	_, err = NewController([]*flock.Handler{
		flock.NewHandler("cpu", flock.NewCPUBackend(), cfg),
		flock.NewHandler("cpu", flock.NewCPUBackend(), cfg),
	})
	assert.ErrorContains(t, err, "duplicate")
}

func TestController_StartStop(t *testing.T) {
	c, events := newTestController(t)
	assert.Equal(t, []string{HandlerAccelerator, HandlerCPU}, c.Handlers())
	assert.Equal(t, HandlerAccelerator, c.Active().Name())

	require.NoError(t, c.Tick(0.02), "ticking while stopped is ignored")
	assert.Equal(t, uint64(0), c.Active().Ticks())

	require.NoError(t, c.StartSimulation())
	require.NoError(t, c.StartSimulation())
	assert.True(t, c.Running())
	assert.True(t, c.Active().Enabled())

	require.NoError(t, c.Tick(0.02))
	require.NoError(t, c.Tick(0.02))
	assert.Equal(t, uint64(2), c.Status().Ticks)

	c.StopSimulation()
	c.StopSimulation()
	assert.False(t, c.Running())
	assert.False(t, c.Active().Enabled())

	assert.Equal(t, []EventKind{EventStarted, EventStopped}, events.kinds())
	assert.Equal(t, HandlerAccelerator, events.events[0].Handler)
	assert.NotEmpty(t, events.events[0].RunID)
}

func TestController_StartFailure(t *testing.T) {
	c, events := newTestController(t)
	c.Active().Config().SetOrigin(nil)

	assert.ErrorIs(t, c.StartSimulation(), flock.ErrMissingOrigin)
	assert.False(t, c.Running())
	assert.Empty(t, events.events)
}

func TestController_SwapWhileRunning(t *testing.T) {
	c, events := newTestController(t)
	require.NoError(t, c.StartSimulation())
	accelerator := c.Active()

	require.NoError(t, c.SelectHandler(HandlerCPU))
	assert.Equal(t, HandlerCPU, c.Active().Name())
	assert.True(t, c.Active().Enabled())
	assert.False(t, accelerator.Enabled(), "only one handler is enabled")
	assert.True(t, c.Running())

	require.NoError(t, c.SelectHandler(HandlerCPU), "selecting the active handler is a no-op")
	require.NoError(t, c.SelectHandlerIndex(0))
	assert.Equal(t, HandlerAccelerator, c.Active().Name())
	assert.True(t, accelerator.Enabled())

	assert.ErrorIs(t, c.SelectHandler("gpu"), ErrUnknownHandler)
	assert.ErrorIs(t, c.SelectHandlerIndex(2), ErrUnknownHandler)
	assert.ErrorIs(t, c.SelectHandlerIndex(-1), ErrUnknownHandler)

	assert.Equal(t, []EventKind{EventStarted, EventHandlerChanged, EventHandlerChanged}, events.kinds())
	changed := events.events[1]
	assert.Equal(t, HandlerCPU, changed.Handler)
	assert.Same(t, c.Active().Config(), changed.Config)
}

func TestController_SwapWhileStopped(t *testing.T) {
	c, events := newTestController(t)
	require.NoError(t, c.SelectHandler(HandlerCPU))
	assert.False(t, c.Active().Enabled())
	assert.Equal(t, []EventKind{EventHandlerChanged}, events.kinds())
}

func TestController_PatchConfig(t *testing.T) {
	c, _ := newTestController(t)
	cfg := c.Active().Config()

	require.NoError(t, c.PatchConfig(map[string]any{"numAgents": 32, "flockRadius": 4.0}))
	assert.Equal(t, 32, cfg.NumAgents)
	assert.Equal(t, 4.0, cfg.FlockRadius)

	require.NoError(t, c.StartSimulation())
	assert.ErrorIs(t, c.PatchConfig(map[string]any{"numAgents": 8}), flock.ErrLockedWhileRunning)
	assert.ErrorIs(t, c.PatchConfig(map[string]any{"flockRadius": 2.0}), flock.ErrLockedWhileRunning)

	require.NoError(t, c.PatchConfig(map[string]any{
		"agentViewRange": 2.0,
		"cohesion":       map[string]any{"active": false},
	}))
	assert.Equal(t, 2.0, cfg.Alignment.Radius)
	assert.False(t, cfg.Cohesion.Active)
	require.NoError(t, c.Tick(0.02))

	assert.ErrorIs(t, c.PatchConfig(map[string]any{"driveFactor": "fast"}), flock.ErrInvalidConfig)
}

func TestController_TickRecordsTelemetry(t *testing.T) {
	var buf bytes.Buffer
	recorder := telemetry.NewRecorder(telemetry.WithOutput(telemetry.NewCSVWriter(&buf)))
	gizmos := &countingGizmos{}
	c, _ := newTestController(t, WithRecorder(recorder), WithGizmos(gizmos))

	require.NoError(t, c.StartSimulation())
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Tick(0.02))
	}
	assert.Equal(t, uint64(3), recorder.Samples())
	last := recorder.Last()
	assert.Equal(t, "accelerator", last.Backend)
	assert.Equal(t, uint64(3), last.Tick)
	assert.Equal(t, 16, last.Agents)
	assert.Equal(t, c.Active().RunID(), last.RunID)
	assert.Equal(t, 6, gizmos.spheres)

	rows, err := telemetry.ReadCSV(&buf)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestController_PatchCannotDropMeshWhileRunning(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.StartSimulation())

	assert.ErrorIs(t, c.PatchConfig(map[string]any{"agentMesh": nil}), flock.ErrMissingMesh)
	assert.NotNil(t, c.Active().Config().AgentMesh)
	require.NoError(t, c.Tick(0.02))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestController_TelemetryFailureKeepsRunning(t *testing.T) {
	recorder := telemetry.NewRecorder(telemetry.WithOutput(telemetry.NewCSVWriter(failingWriter{})))
	c, events := newTestController(t, WithRecorder(recorder))

	require.NoError(t, c.StartSimulation())
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Tick(0.02))
	}
	assert.True(t, c.Running())
	assert.Equal(t, uint64(3), c.Active().Ticks())
	assert.Equal(t, uint64(3), c.TelemetryErrors())
	assert.Equal(t, uint64(3), recorder.Samples(), "statistics are still computed")
	assert.Equal(t, []EventKind{EventStarted}, events.kinds())
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "started", EventStarted.String())
	assert.Equal(t, "stopped", EventStopped.String())
	assert.Equal(t, "handler-changed", EventHandlerChanged.String())
	assert.Equal(t, "event(9)", EventKind(9).String())
}

func TestStatusProto(t *testing.T) {
	s := Status{Running: true, Handler: "cpu", RunID: "abc", Ticks: 12, NumAgents: 50, Error: "nope"}
	st, err := s.toProto()
	require.NoError(t, err)
	assert.Equal(t, s, statusFromProto(st))
}

func TestController_Actor(t *testing.T) {
	ctx := context.Background()
	system, err := actor.NewActorSystem("flock-test", actor.WithLogger(golog.DiscardLogger))
	require.NoError(t, err)
	require.NoError(t, system.Start(ctx))
	t.Cleanup(func() { _ = system.Stop(ctx) })

	c, events := newTestController(t)
	pid, err := system.Spawn(ctx, "controller", c)
	require.NoError(t, err)

	status, err := Start(ctx, pid)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, HandlerAccelerator, status.Handler)
	assert.Equal(t, 16, status.NumAgents)

	for i := 0; i < 5; i++ {
		require.NoError(t, Tick(ctx, pid, 20*time.Millisecond))
	}
	status, err = Drain(ctx, pid, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), status.Ticks)

	_, err = Patch(ctx, pid, map[string]any{"numAgents": 4})
	assert.ErrorIs(t, err, ErrRejected)

	status, err = Patch(ctx, pid, map[string]any{"driveFactor": 2})
	require.NoError(t, err)
	assert.True(t, status.Running)

	status, err = Select(ctx, pid, HandlerCPU)
	require.NoError(t, err)
	assert.Equal(t, HandlerCPU, status.Handler)
	assert.Equal(t, uint64(0), status.Ticks, "the new handler starts a fresh run")

	_, err = Select(ctx, pid, "gpu")
	assert.ErrorIs(t, err, ErrRejected)

	status, err = SelectIndex(ctx, pid, 0)
	require.NoError(t, err)
	assert.Equal(t, HandlerAccelerator, status.Handler)

	status, err = Stop(ctx, pid)
	require.NoError(t, err)
	assert.False(t, status.Running)

	status, err = QueryStatus(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, HandlerAccelerator, status.Handler)

	assert.Equal(t, []EventKind{
		EventStarted, EventHandlerChanged, EventHandlerChanged, EventStopped,
	}, events.kinds())
}
