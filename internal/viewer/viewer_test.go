package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/ui"
)

func positionsBuffer(t *testing.T, points ...geometry.Vector3D) *accel.Buffer {
	t.Helper()
	b := accel.NewBuffer(len(points), 3)
	require.NoError(t, b.SetVectors(points))
	return b
}

func TestFrameSink_KeepsLatestFrame(t *testing.T) {
	sink := NewFrameSink(nil)
	mesh := &flock.Mesh{Name: "cone", Extents: geometry.Vector3D{X: 0.1, Y: 0.1, Z: 0.2}}
	bounds := geometry.NewCubeBounds(geometry.Zero, 100)

	sink.DrawSphere(geometry.Zero, 10, flock.FlockRadiusColor)
	sink.DrawInstanced(positionsBuffer(t, geometry.Vector3D{X: 1}), mesh, 2, bounds)
	sink.DrawInstanced(positionsBuffer(t, geometry.Vector3D{X: 2}, geometry.Vector3D{X: 3}), mesh, 2, bounds)

	assert.Equal(t, uint64(1), sink.Dropped())
	f := <-sink.Frames()
	require.Len(t, f.Positions, 2)
	assert.Equal(t, 3.0, f.Positions[1].X)
	assert.InDelta(t, 0.4, f.AgentRadius, 1e-9)
	assert.Empty(t, f.Spheres, "gizmos belong to the frame that followed them")

	select {
	case <-sink.Frames():
		t.Fatal("only one frame is kept")
	default:
	}
}

func TestFrameSink_Gizmos(t *testing.T) {
	sink := NewFrameSink(nil)
	sink.DrawSphere(geometry.Vector3D{Y: 1}, 10, flock.FlockRadiusColor)
	sink.DrawSphere(geometry.Vector3D{Y: 1}, 80, flock.BoundingSphereColor)
	sink.DrawInstanced(positionsBuffer(t, geometry.Zero), &flock.Mesh{}, 1, geometry.NewCubeBounds(geometry.Zero, 1))

	f := <-sink.Frames()
	require.Len(t, f.Spheres, 2)
	assert.Equal(t, 80.0, f.Spheres[1].Radius)
	assert.Equal(t, flock.BoundingSphereColor, f.Spheres[1].Color)
	assert.Equal(t, 0.0, f.AgentRadius)
}

func TestFrameSink_ReleasedBuffer(t *testing.T) {
	sink := NewFrameSink(nil)
	b := positionsBuffer(t, geometry.Zero)
	b.Release()
	sink.DrawInstanced(b, &flock.Mesh{}, 1, geometry.Bounds{})
	select {
	case <-sink.Frames():
		t.Fatal("no frame for a released buffer")
	default:
	}
}

func TestFrameSink_ListenClonesConfig(t *testing.T) {
	sink := NewFrameSink(nil)
	cfg := flock.DefaultConfig()
	sink.Listen(simulation.Event{Kind: simulation.EventStarted, Handler: "cpu", Config: cfg})
	cfg.NumAgents = 7

	ev := <-sink.Events()
	assert.Equal(t, simulation.EventStarted, ev.Kind)
	assert.NotSame(t, cfg, ev.Config)
	assert.Equal(t, 50, ev.Config.NumAgents)

	for i := 0; i < 20; i++ {
		sink.Listen(simulation.Event{Kind: simulation.EventStopped})
	}
	assert.Len(t, sink.Events(), 16, "events beyond the buffer are dropped")
}

func TestSetPath(t *testing.T) {
	doc := map[string]any{}
	setPath(doc, []string{"driveFactor"}, 2.0)
	setPath(doc, []string{"avoidance", "weight"}, 10.0)
	setPath(doc, []string{"avoidance", "active"}, false)
	assert.Equal(t, map[string]any{
		"driveFactor": 2.0,
		"avoidance":   map[string]any{"weight": 10.0, "active": false},
	}, doc)
}

func TestBindings(t *testing.T) {
	cfg := flock.DefaultConfig()
	panel := ui.NewUIPanel(0, 0, 260, 2000)
	bindings := buildPanel(panel, cfg)
	assert.Nil(t, collectPatch(bindings))

	find := func(path ...string) *binding {
		for _, b := range bindings {
			if assert.ObjectsAreEqual(path, b.path) {
				return b
			}
		}
		t.Fatalf("no binding for %v", path)
		return nil
	}

	agents := find("numAgents")
	assert.Equal(t, 50.0, agents.slider.Value)
	assert.True(t, agents.locked)
	assert.True(t, find("flockRadius").locked)
	assert.False(t, find("driveFactor").locked)
	assert.Equal(t, 80.0, find("boundingSphere", "weight").slider.Value)

	// user changes go through the widgets
	panel.Update(ui.Pointer{
		Position:    geometry.Vector2D{X: agents.slider.X + agents.slider.W, Y: agents.slider.Y + 1},
		Pressed:     true,
		JustPressed: true,
	})
	panel.Update(ui.Pointer{})
	active := find("cohesion", "active").checkbox
	panel.Update(ui.Pointer{
		Position:    geometry.Vector2D{X: active.X + 1, Y: active.Y + 1},
		Pressed:     true,
		JustPressed: true,
	})

	patch := collectPatch(bindings)
	assert.Equal(t, map[string]any{
		"numAgents": 5000,
		"cohesion":  map[string]any{"active": false},
	}, patch)
	assert.Nil(t, collectPatch(bindings), "changes are reported once")

	for _, b := range bindings {
		b.lock(true)
	}
	assert.True(t, agents.slider.Disabled)
	assert.False(t, find("driveFactor").slider.Disabled)

	next := cfg.Clone()
	next.DriveFactor = 3
	next.Alignment.Active = false
	for _, b := range bindings {
		b.sync(next)
	}
	assert.Equal(t, 3.0, find("driveFactor").slider.Value)
	assert.False(t, find("alignment", "active").checkbox.Value)
	assert.Nil(t, collectPatch(bindings), "syncing is not a user change")
}
