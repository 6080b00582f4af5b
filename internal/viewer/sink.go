// Package viewer renders the flock with ebiten. The controller actor draws into a
// FrameSink; the ebiten loop picks the latest frame up on its own goroutine and sends
// commands back to the controller.
package viewer

import (
	"image/color"
	"sync/atomic"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flock-simulation/internal/simulation"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/accel"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

// Sphere is a gizmo.
type Sphere struct {
	Center geometry.Vector3D
	Radius float64
	Color  color.NRGBA
}

// Frame is what the viewer draws for one tick.
type Frame struct {
	Positions   []geometry.Vector3D
	AgentRadius float64
	Bounds      geometry.Bounds
	Spheres     []Sphere
}

// FrameSink implements flock.Renderer and flock.Gizmos. It must be driven by the
// controller goroutine; the frames and events it produces can be read from any other.
type FrameSink struct {
	frames  chan *Frame
	events  chan simulation.Event
	pending []Sphere
	logger  log.Logger

	dropped atomic.Uint64
}

var (
	_ flock.Renderer = (*FrameSink)(nil)
	_ flock.Gizmos   = (*FrameSink)(nil)
)

// NewFrameSink returns a sink keeping at most one undrawn frame.
func NewFrameSink(logger log.Logger) *FrameSink {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &FrameSink{
		frames: make(chan *Frame, 1),
		events: make(chan simulation.Event, 16),
		logger: logger,
	}
}

// DrawSphere queues a gizmo for the next frame.
func (s *FrameSink) DrawSphere(center geometry.Vector3D, radius float64, c color.NRGBA) {
	s.pending = append(s.pending, Sphere{Center: center, Radius: radius, Color: c})
}

// DrawInstanced snapshots the positions into a frame. A frame the viewer has not
// picked up yet is replaced.
func (s *FrameSink) DrawInstanced(positions *accel.Buffer, mesh *flock.Mesh, scale float64, bounds geometry.Bounds) {
	vectors, err := positions.Vectors()
	if err != nil {
		s.logger.Warnf("viewer: read positions: %v", err)
		return
	}
	frame := &Frame{
		Positions:   vectors,
		AgentRadius: mesh.BoundingRadius() * scale,
		Bounds:      bounds,
		Spheres:     s.pending,
	}
	s.pending = nil

	for {
		select {
		case s.frames <- frame:
			return
		default:
		}
		select {
		case <-s.frames:
			s.dropped.Add(1)
		default:
		}
	}
}

// Listen is a simulation.Listener. The configuration is cloned so that the viewer
// never reads the one the controller mutates.
func (s *FrameSink) Listen(ev simulation.Event) {
	if ev.Config != nil {
		ev.Config = ev.Config.Clone()
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warnf("viewer: event %s dropped", ev.Kind)
	}
}

// Frames delivers the rendered frames.
func (s *FrameSink) Frames() <-chan *Frame { return s.frames }

// Events delivers the controller events.
func (s *FrameSink) Events() <-chan simulation.Event { return s.events }

// Dropped counts the frames replaced before the viewer drew them.
func (s *FrameSink) Dropped() uint64 { return s.dropped.Load() }
