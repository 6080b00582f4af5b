package flock

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed flock.schema.json
var schemaSource string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// Schema returns the compiled JSON schema of a flock configuration document.
func Schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("flock.schema.json", schemaSource)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Format is the encoding of a configuration document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatOf guesses the format from the file extension, defaulting to JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadConfig reads a JSON or YAML configuration file, validates it against the schema
// and merges it over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := ParseConfig(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a configuration document. Members missing from the document keep
// their DefaultConfig value.
func ParseConfig(data []byte, format Format) (*Config, error) {
	doc, err := decodeDocument(data, format)
	if err != nil {
		return nil, err
	}
	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config document: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPatch merges patch, a partial configuration document, into c. The merged
// document must satisfy the schema and Validate; on error c is left untouched.
// The origin is only replaced when the patch has an "origin" member.
func (c *Config) ApplyPatch(patch map[string]any) error {
	current, err := c.document()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(mergeDocuments(current, patch))
	if err != nil {
		return fmt.Errorf("failed to encode patched config: %w", err)
	}
	// round trip so that Go values such as int become JSON numbers for the validator
	merged, err := decodeDocument(raw, FormatJSON)
	if err != nil {
		return err
	}
	if err := validateDocument(merged); err != nil {
		return err
	}
	next := c.Clone()
	if err := json.Unmarshal(raw, next); err != nil {
		return fmt.Errorf("failed to unmarshal patched config: %w", err)
	}
	if _, ok := patch["origin"]; !ok {
		next.origin = c.origin
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = *next
	return nil
}

// WriteYAML writes the effective configuration to path.
func (c *Config) WriteYAML(path string) error {
	out, err := c.MarshalYAMLDocument()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MarshalYAMLDocument encodes the configuration as block style YAML, keeping the
// member order of the JSON encoding.
func (c *Config) MarshalYAMLDocument() ([]byte, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	// JSON is valid YAML: parse it into a node tree, then drop the flow styles.
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("failed to convert config to yaml: %w", err)
	}
	clearStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return out, nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		clearStyle(child)
	}
}

func (c *Config) document() (map[string]any, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return doc, nil
}

// decodeDocument returns the generic JSON value of a document: maps, slices, float64,
// strings, booleans and nil, as the schema validator expects.
func decodeDocument(data []byte, format Format) (any, error) {
	var doc any
	switch format {
	case FormatYAML:
		var y any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("failed to decode config yaml: %w", err)
		}
		raw, err := json.Marshal(y)
		if err != nil {
			return nil, fmt.Errorf("config yaml is not representable as json: %w", err)
		}
		data = raw
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	return doc, nil
}

func validateDocument(doc any) error {
	sch, err := Schema()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// mergeDocuments returns base with patch merged in, recursing into nested objects.
// Neither input is modified.
func mergeDocuments(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := out[k].(map[string]any); ok {
				out[k] = mergeDocuments(cur, sub)
				continue
			}
		}
		out[k] = v
	}
	return out
}
