package flock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lao-tseu-is-alive/go-flock-simulation/pkg/geometry"
)

func TestParseConfig_JSON(t *testing.T) {
	doc := `{
		"numAgents": 128,
		"agentViewRange": 2.5,
		"cohesion": {"active": false, "weight": 10, "radius": 99},
		"origin": {"x": 1, "y": 0, "z": -1}
	}`
	cfg, err := ParseConfig([]byte(doc), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, 128, cfg.NumAgents)
	assert.False(t, cfg.Cohesion.Active)
	assert.Equal(t, 10.0, cfg.Cohesion.Weight)
	assert.Equal(t, 2.5, cfg.Cohesion.Radius, "radius follows the view range")
	assert.Equal(t, 2.5, cfg.Alignment.Radius)
	assert.Equal(t, StaticOrigin{X: 1, Z: -1}, cfg.Origin())
	// untouched members keep their defaults
	assert.Equal(t, DefaultConfig().FlockRadius, cfg.FlockRadius)
	assert.Equal(t, "cone", cfg.AgentMesh.Name)
}

func TestParseConfig_YAML(t *testing.T) {
	doc := `
flockRadius: 4
numAgents: 10
boundingSphere:
  active: true
  weight: 100
  radius: 1
agentMesh:
  name: sphere
  extents: {x: 0.5, y: 0.5, z: 0.5}
`
	cfg, err := ParseConfig([]byte(doc), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.FlockRadius)
	assert.Equal(t, 10, cfg.NumAgents)
	assert.Equal(t, BehaviourParameters{Active: true, Weight: 100, Radius: 1}, cfg.BoundingSphere)
	assert.Equal(t, 0.5, cfg.AgentRadius())
}

func TestParseConfig_Rejects(t *testing.T) {
	tests := map[string]string{
		"unknown member":   `{"numAgentz": 3}`,
		"weight too large": `{"avoidance": {"weight": 150}}`,
		"fractional count": `{"numAgents": 2.5}`,
		"zero radius":      `{"flockRadius": 0}`,
		"not an object":    `[1, 2]`,
		"broken json":      `{"numAgents": `,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc), FormatJSON)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_WriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.NumAgents = 77
	cfg.Alignment.Active = false
	cfg.SetOrigin(StaticOrigin{Y: 3})

	path := filepath.Join(dir, "flock.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "numAgents: 77")
	assert.NotContains(t, string(raw), "{", "block style expected")

	back, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.NumAgents, back.NumAgents)
	assert.Equal(t, cfg.Alignment, back.Alignment)
	assert.Equal(t, *cfg.AgentMesh, *back.AgentMesh)
	assert.Equal(t, StaticOrigin{Y: 3}, back.Origin())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"numAgents": 0}`), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("a/b.yaml"))
	assert.Equal(t, FormatYAML, FormatOf("b.YML"))
	assert.Equal(t, FormatJSON, FormatOf("b.json"))
	assert.Equal(t, FormatJSON, FormatOf("b"))
}

func TestApplyPatch(t *testing.T) {
	cfg := DefaultConfig()
	origin := NewMovingOrigin(geometry.Vector3D{X: 2})
	cfg.SetOrigin(origin)

	err := cfg.ApplyPatch(map[string]any{
		"agentViewRange": 3,
		"avoidance":      map[string]any{"weight": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.AgentViewRange)
	assert.Equal(t, 3.0, cfg.Cohesion.Radius)
	assert.Equal(t, 5.0, cfg.Avoidance.Weight)
	assert.True(t, cfg.Avoidance.Active, "nested members not in the patch are kept")
	assert.Equal(t, 0.5, cfg.Avoidance.Radius)
	assert.Same(t, origin, cfg.Origin(), "origin object is kept")

	require.NoError(t, cfg.ApplyPatch(map[string]any{"origin": map[string]any{"x": 0, "y": 1, "z": 0}}))
	assert.Equal(t, StaticOrigin{Y: 1}, cfg.Origin())
}

func TestApplyPatch_InvalidLeavesConfigUntouched(t *testing.T) {
	cfg := DefaultConfig()
	before := cfg.Clone()

	assert.ErrorIs(t, cfg.ApplyPatch(map[string]any{"numAgents": 0}), ErrInvalidConfig)
	assert.ErrorIs(t, cfg.ApplyPatch(map[string]any{"speed": 3}), ErrInvalidConfig)
	assert.ErrorIs(t, cfg.ApplyPatch(map[string]any{"cohesion": map[string]any{"weight": -1}}), ErrInvalidConfig)

	assert.Equal(t, before.NumAgents, cfg.NumAgents)
	assert.Equal(t, before.Cohesion, cfg.Cohesion)
}

func TestLoadConfig_SampleFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "flock.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.NumAgents)
	assert.Equal(t, 1.5, cfg.Alignment.Radius)
	assert.Equal(t, cfg.FlockRadius, cfg.BoundingSphere.Radius)
}
