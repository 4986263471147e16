package samplesheet

import (
	_ "embed"
	"fmt"

	"github.com/goccy/go-yaml"
)

// ColumnType controls how a column is edited and validated.
type ColumnType string

const (
	ColumnText     ColumnType = "text"
	ColumnNumeric  ColumnType = "numeric"
	ColumnDropdown ColumnType = "dropdown"
)

// Column describes one samplesheet column.
type Column struct {
	Key      string     `yaml:"key"`
	Label    string     `yaml:"label"`
	Type     ColumnType `yaml:"type"`
	Required bool       `yaml:"required"`
	Options  []string   `yaml:"options,omitempty"`
	Default  string     `yaml:"default,omitempty"`
	HelpText string     `yaml:"help,omitempty"`
}

// Schema maps pipeline names to column layouts.
type Schema struct {
	Fallback  string              `yaml:"fallback"`
	Pipelines map[string][]Column `yaml:"pipelines"`
}

//go:embed columns.yaml
var builtinSchema []byte

var defaultSchema = mustLoadSchema(builtinSchema)

// LoadSchema decodes a YAML column schema.
func LoadSchema(data []byte) (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("decode column schema: %w", err)
	}
	if _, ok := schema.Pipelines[schema.Fallback]; !ok {
		return nil, fmt.Errorf("fallback pipeline %q has no columns", schema.Fallback)
	}
	for name, cols := range schema.Pipelines {
		for i, col := range cols {
			if col.Key == "" {
				return nil, fmt.Errorf("pipeline %q column %d: missing key", name, i)
			}
			if col.Type == "" {
				schema.Pipelines[name][i].Type = ColumnText
			}
		}
	}
	return &schema, nil
}

func mustLoadSchema(data []byte) *Schema {
	schema, err := LoadSchema(data)
	if err != nil {
		panic(err)
	}
	return schema
}

// Columns returns the layout for pipeline, falling back to the schema's
// fallback layout for unknown or empty names.
func (s *Schema) Columns(pipeline string) []Column {
	if cols, ok := s.Pipelines[pipeline]; ok {
		return cols
	}
	return s.Pipelines[s.Fallback]
}

// ColumnsFor returns the built-in layout for pipeline.
func ColumnsFor(pipeline string) []Column {
	return defaultSchema.Columns(pipeline)
}
