// Package flock holds the boid flock simulation engine: the flock configuration,
// the Backend contract with its CPU and accelerator implementations, and the Handler
// that drives a backend through its enable / tick / disable lifecycle.
package flock

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

var (
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("flock: invalid configuration")
	// ErrMissingOrigin is returned when a handler is enabled without an origin.
	ErrMissingOrigin = errors.New("flock: origin is not set")
	// ErrMissingMesh is returned when a handler is enabled without an agent mesh.
	ErrMissingMesh = errors.New("flock: agent mesh is not set")
)

// BehaviourParameters configures one of the four steering behaviours.
type BehaviourParameters struct {
	Active bool    `json:"active" yaml:"active"`
	Weight float64 `json:"weight" yaml:"weight"` // [0, 100]
	Radius float64 `json:"radius" yaml:"radius"`
}

// ActivityFactor is 1 for an active behaviour and 0 otherwise.
func (b BehaviourParameters) ActivityFactor() float64 {
	if b.Active {
		return 1
	}
	return 0
}

// EffectiveWeight is Weight * ActivityFactor.
func (b BehaviourParameters) EffectiveWeight() float64 {
	return b.Weight * b.ActivityFactor()
}

// Mesh describes the shape instanced for every agent.
type Mesh struct {
	Name    string            `json:"name" yaml:"name"`
	Extents geometry.Vector3D `json:"extents" yaml:"extents"` // half size of the bounding box
}

// BoundingRadius is the largest half extent of the mesh bounding box, 0 for a nil mesh.
func (m *Mesh) BoundingRadius() float64 {
	if m == nil {
		return 0
	}
	return m.Extents.MaxComponent()
}

// Origin is the scene point the flock is attached to. It may move between ticks.
type Origin interface {
	Position() geometry.Vector3D
}

// StaticOrigin is an Origin that never moves.
type StaticOrigin geometry.Vector3D

// Position implements Origin.
func (o StaticOrigin) Position() geometry.Vector3D { return geometry.Vector3D(o) }

// MovingOrigin is an Origin that can be moved from another goroutine.
type MovingOrigin struct {
	mu  sync.RWMutex
	pos geometry.Vector3D
}

// NewMovingOrigin returns an origin initially at p.
func NewMovingOrigin(p geometry.Vector3D) *MovingOrigin {
	return &MovingOrigin{pos: p}
}

// Position implements Origin.
func (o *MovingOrigin) Position() geometry.Vector3D {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pos
}

// MoveTo sets the new position.
func (o *MovingOrigin) MoveTo(p geometry.Vector3D) {
	o.mu.Lock()
	o.pos = p
	o.mu.Unlock()
}

// Config is the flock configuration shared by the handlers of a simulation.
// Cohesion.Radius and Alignment.Radius are not independent settings: Validate binds
// both to AgentViewRange, and every mutation path calls Validate.
type Config struct {
	FlockRadius    float64 `json:"flockRadius" yaml:"flockRadius"`
	NumAgents      int     `json:"numAgents" yaml:"numAgents"`
	DriveFactor    float64 `json:"driveFactor" yaml:"driveFactor"`
	AgentViewRange float64 `json:"agentViewRange" yaml:"agentViewRange"`

	Avoidance      BehaviourParameters `json:"avoidance" yaml:"avoidance"`
	Cohesion       BehaviourParameters `json:"cohesion" yaml:"cohesion"`
	Alignment      BehaviourParameters `json:"alignment" yaml:"alignment"`
	BoundingSphere BehaviourParameters `json:"boundingSphere" yaml:"boundingSphere"`

	AgentMesh  *Mesh   `json:"agentMesh" yaml:"agentMesh"`
	AgentScale float64 `json:"agentScale" yaml:"agentScale"`

	origin Origin
}

// DefaultConfig returns a valid configuration centered on the world origin.
func DefaultConfig() *Config {
	cfg := &Config{
		FlockRadius:    10,
		NumAgents:      50,
		DriveFactor:    1,
		AgentViewRange: 1,
		Avoidance:      BehaviourParameters{Active: true, Weight: 50, Radius: 0.5},
		Cohesion:       BehaviourParameters{Active: true, Weight: 30},
		Alignment:      BehaviourParameters{Active: true, Weight: 40},
		BoundingSphere: BehaviourParameters{Active: true, Weight: 80, Radius: 10},
		AgentMesh: &Mesh{
			Name:    "cone",
			Extents: geometry.Vector3D{X: 0.1, Y: 0.1, Z: 0.2},
		},
		AgentScale: 1,
		origin:     StaticOrigin{},
	}
	_ = cfg.Validate()
	return cfg
}

// Origin returns the origin the flock follows, nil when unset.
func (c *Config) Origin() Origin { return c.origin }

// SetOrigin attaches the flock to a new origin.
func (c *Config) SetOrigin(o Origin) { c.origin = o }

// AgentRadius is the bounding radius of the agent mesh.
func (c *Config) AgentRadius() float64 {
	return c.AgentMesh.BoundingRadius()
}

// EffectiveViewRange is the agent view range including the agent own size.
func (c *Config) EffectiveViewRange() float64 {
	return c.AgentViewRange + c.AgentRadius()
}

// Validate binds the cohesion and alignment radii to the view range, then checks
// every value. It is the only place where that propagation happens.
func (c *Config) Validate() error {
	c.Cohesion.Radius = c.AgentViewRange
	c.Alignment.Radius = c.AgentViewRange

	var errs []error
	if !(c.FlockRadius > 0) {
		errs = append(errs, fmt.Errorf("flockRadius must be > 0, got %v", c.FlockRadius))
	}
	if c.NumAgents <= 0 {
		errs = append(errs, fmt.Errorf("numAgents must be > 0, got %d", c.NumAgents))
	}
	if c.AgentViewRange < 0 {
		errs = append(errs, fmt.Errorf("agentViewRange must be >= 0, got %v", c.AgentViewRange))
	}
	for _, nb := range c.behaviours() {
		b := nb.params
		if b.Weight < 0 || b.Weight > 100 {
			errs = append(errs, fmt.Errorf("%s.weight must be in [0, 100], got %v", nb.name, b.Weight))
		}
		if b.Radius < 0 {
			errs = append(errs, fmt.Errorf("%s.radius must be >= 0, got %v", nb.name, b.Radius))
		}
	}
	if m := c.AgentMesh; m != nil && (m.Extents.X < 0 || m.Extents.Y < 0 || m.Extents.Z < 0) {
		errs = append(errs, fmt.Errorf("agentMesh.extents must be >= 0, got %v", m.Extents))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Ready reports whether the references needed to run a simulation are set.
func (c *Config) Ready() error {
	if c.origin == nil {
		return ErrMissingOrigin
	}
	if c.AgentMesh == nil {
		return ErrMissingMesh
	}
	return nil
}

type namedBehaviour struct {
	name   string
	params BehaviourParameters
}

// behaviours lists the behaviours in document order.
func (c *Config) behaviours() []namedBehaviour {
	return []namedBehaviour{
		{"avoidance", c.Avoidance},
		{"cohesion", c.Cohesion},
		{"alignment", c.Alignment},
		{"boundingSphere", c.BoundingSphere},
	}
}

// Clone returns a deep copy sharing the same origin.
func (c *Config) Clone() *Config {
	cp := *c
	if c.AgentMesh != nil {
		mesh := *c.AgentMesh
		cp.AgentMesh = &mesh
	}
	return &cp
}

// Params takes the snapshot of the configuration used by one tick.
func (c *Config) Params(center geometry.Vector3D, deltaTime float64) Params {
	return Params{
		Center:         center,
		NumAgents:      c.NumAgents,
		FlockRadius:    c.FlockRadius,
		DriveFactor:    c.DriveFactor,
		DeltaTime:      deltaTime,
		AgentRadius:    c.AgentRadius(),
		ViewRange:      c.EffectiveViewRange(),
		Avoidance:      c.Avoidance,
		Cohesion:       c.Cohesion,
		Alignment:      c.Alignment,
		BoundingSphere: c.BoundingSphere,
	}
}

// configAlias drops the methods of Config to avoid recursive marshalling.
type configAlias Config

type configJSON struct {
	*configAlias
	Origin *geometry.Vector3D `json:"origin,omitempty"`
}

// MarshalJSON writes the current origin position next to the settings.
func (c *Config) MarshalJSON() ([]byte, error) {
	doc := configJSON{configAlias: (*configAlias)(c)}
	if c.origin != nil {
		p := c.origin.Position()
		doc.Origin = &p
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the settings; an "origin" member attaches a StaticOrigin.
func (c *Config) UnmarshalJSON(data []byte) error {
	doc := configJSON{configAlias: (*configAlias)(c)}
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Origin != nil {
		c.origin = StaticOrigin(*doc.Origin)
	}
	return nil
}

// Params is an immutable snapshot of the configuration for a single tick.
type Params struct {
	Center      geometry.Vector3D
	NumAgents   int
	FlockRadius float64
	DriveFactor float64
	DeltaTime   float64
	AgentRadius float64
	ViewRange   float64 // effective view range

	Avoidance      BehaviourParameters
	Cohesion       BehaviourParameters
	Alignment      BehaviourParameters
	BoundingSphere BehaviourParameters
}
