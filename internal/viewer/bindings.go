package viewer

import (
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/ui"
)

// binding ties a widget to one member of the configuration document.
type binding struct {
	path     []string
	slider   *ui.Slider
	checkbox *ui.Checkbox
	number   func(*flock.Config) float64
	flag     func(*flock.Config) bool
	integer  bool
	locked   bool // cannot change while the simulation runs
}

// changed returns the value the user picked, if any.
func (b *binding) changed() (any, bool) {
	switch {
	case b.slider != nil && b.slider.Changed():
		if b.integer {
			return int(b.slider.Value), true
		}
		return b.slider.Value, true
	case b.checkbox != nil && b.checkbox.Changed():
		return b.checkbox.Value, true
	}
	return nil, false
}

func (b *binding) sync(cfg *flock.Config) {
	if b.slider != nil && b.number != nil {
		b.slider.SetValue(b.number(cfg))
	}
	if b.checkbox != nil && b.flag != nil {
		b.checkbox.Value = b.flag(cfg)
	}
}

func (b *binding) lock(running bool) {
	if !b.locked {
		return
	}
	if b.slider != nil {
		b.slider.Disabled = running
	}
	if b.checkbox != nil {
		b.checkbox.Disabled = running
	}
}

// setPath stores value under path in doc, creating the intermediate objects.
func setPath(doc map[string]any, path []string, value any) {
	for _, key := range path[:len(path)-1] {
		child, ok := doc[key].(map[string]any)
		if !ok {
			child = map[string]any{}
			doc[key] = child
		}
		doc = child
	}
	doc[path[len(path)-1]] = value
}

// collectPatch merges every user change into one patch document, nil without change.
func collectPatch(bindings []*binding) map[string]any {
	var patch map[string]any
	for _, b := range bindings {
		v, ok := b.changed()
		if !ok {
			continue
		}
		if patch == nil {
			patch = map[string]any{}
		}
		setPath(patch, b.path, v)
	}
	return patch
}

// buildPanel creates the configuration panel and its bindings.
func buildPanel(p *ui.UIPanel, cfg *flock.Config) []*binding {
	var bindings []*binding
	num := func(label string, min, max float64, get func(*flock.Config) float64, path ...string) *binding {
		b := &binding{path: path, slider: p.AddSlider(label, min, max, get(cfg)), number: get}
		bindings = append(bindings, b)
		return b
	}
	flag := func(label string, get func(*flock.Config) bool, path ...string) {
		bindings = append(bindings, &binding{path: path, checkbox: p.AddCheckbox(label, get(cfg)), flag: get})
	}
	behaviour := func(title, key string, get func(*flock.Config) *flock.BehaviourParameters, withRadius bool) {
		p.AddSection(title)
		flag("Active", func(c *flock.Config) bool { return get(c).Active }, key, "active")
		num("Weight", 0, 100, func(c *flock.Config) float64 { return get(c).Weight }, key, "weight")
		if withRadius {
			num("Radius", 0, 50, func(c *flock.Config) float64 { return get(c).Radius }, key, "radius")
		}
	}

	p.AddSection("Flock (locked while running)")
	agents := p.AddIntSlider("Agents", 1, 5000, cfg.NumAgents)
	bindings = append(bindings, &binding{
		path: []string{"numAgents"}, slider: agents, integer: true, locked: true,
		number: func(c *flock.Config) float64 { return float64(c.NumAgents) },
	})
	num("Flock radius", 0.5, 100, func(c *flock.Config) float64 { return c.FlockRadius }, "flockRadius").locked = true

	p.AddSection("Motion")
	num("Drive factor", 0, 10, func(c *flock.Config) float64 { return c.DriveFactor }, "driveFactor")
	num("View range", 0, 20, func(c *flock.Config) float64 { return c.AgentViewRange }, "agentViewRange")
	num("Agent scale", 0.1, 10, func(c *flock.Config) float64 { return c.AgentScale }, "agentScale")

	behaviour("Avoidance", "avoidance", func(c *flock.Config) *flock.BehaviourParameters { return &c.Avoidance }, true)
	behaviour("Cohesion", "cohesion", func(c *flock.Config) *flock.BehaviourParameters { return &c.Cohesion }, false)
	behaviour("Alignment", "alignment", func(c *flock.Config) *flock.BehaviourParameters { return &c.Alignment }, false)
	behaviour("Bounding sphere", "boundingSphere", func(c *flock.Config) *flock.BehaviourParameters { return &c.BoundingSphere }, true)
	p.EndSection()
	return bindings
}
