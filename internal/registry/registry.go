// Package registry holds the static table definitions that drive every tier of
// the warehouse layout. A definition names an external table (ext_*), the glob of
// gzip TSV files it reads, how many header lines to skip and the column layout.
// The source view (src_*) and staging table (stg_*) names are derived from it.
package registry

import (
	"fmt"
	"regexp"
	"strings"
)

// ScalarType is the column type as declared on the external table.
type ScalarType string

const (
	String  ScalarType = "STRING"
	Integer ScalarType = "INTEGER"
	Float   ScalarType = "FLOAT"
)

// Mode is the column nullability.
type Mode string

const (
	Nullable Mode = "NULLABLE"
	Required Mode = "REQUIRED"
)

// Tier name prefixes.
const (
	ExternalPrefix = "ext_"
	SourcePrefix   = "src_"
	StagingPrefix  = "stg_"
)

// SampleIDColumn is the column every src_/stg_ object leads with and the staging
// clustering key.
const SampleIDColumn = "sample_id"

// Column describes one TSV column. Cast and NullIf only affect the staging tier:
// an empty Cast passes the column through untouched.
type Column struct {
	Name   string     `yaml:"name" validate:"required,identifier"`
	Type   ScalarType `yaml:"type" validate:"required,oneof=STRING INTEGER FLOAT"`
	Mode   Mode       `yaml:"mode,omitempty" validate:"omitempty,oneof=NULLABLE REQUIRED"`
	Cast   ScalarType `yaml:"cast,omitempty" validate:"omitempty,oneof=STRING INTEGER FLOAT"`
	NullIf *string    `yaml:"null_if,omitempty"`
}

// EffectiveMode defaults an unset mode to NULLABLE.
func (c Column) EffectiveMode() Mode {
	if c.Mode == "" {
		return Nullable
	}
	return c.Mode
}

// TableDefinition is one raw data file category.
type TableDefinition struct {
	Name     string   `yaml:"name" validate:"required,startswith=ext_,identifier"`
	Path     string   `yaml:"path" validate:"required,contains=*"`
	SkipRows int      `yaml:"skip_rows" validate:"gte=0"`
	Columns  []Column `yaml:"columns" validate:"required,min=1,dive"`
}

// Glob resolves Path against bucket. Absolute paths (with a URI scheme) are
// returned unchanged.
func (d TableDefinition) Glob(bucket string) string {
	if strings.Contains(d.Path, "://") {
		return d.Path
	}
	return strings.TrimRight(bucket, "/") + "/" + strings.TrimLeft(d.Path, "/")
}

// Suffix is the name without the ext_ prefix.
func (d TableDefinition) Suffix() string {
	return strings.TrimPrefix(d.Name, ExternalPrefix)
}

func (d TableDefinition) SourceViewName() string {
	return SourcePrefix + d.Suffix()
}

func (d TableDefinition) StagingTableName() string {
	return StagingPrefix + d.Suffix()
}

// ColumnNames returns the column names in file order.
func (d TableDefinition) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

func (d TableDefinition) clone() TableDefinition {
	out := d
	out.Columns = make([]Column, len(d.Columns))
	for i, c := range d.Columns {
		out.Columns[i] = c
		if c.NullIf != nil {
			v := *c.NullIf
			out.Columns[i].NullIf = &v
		}
	}
	return out
}

// Registry is an ordered, validated, immutable set of definitions.
type Registry struct {
	definitions []TableDefinition
	index       map[string]int
}

// New validates defs and returns a registry that preserves their order.
func New(defs []TableDefinition) (*Registry, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}
	r := &Registry{
		definitions: make([]TableDefinition, len(defs)),
		index:       make(map[string]int, len(defs)),
	}
	for i, d := range defs {
		r.definitions[i] = d.clone()
		r.index[d.Name] = i
	}
	return r, nil
}

// Definitions returns a copy of every definition in registry order.
func (r *Registry) Definitions() []TableDefinition {
	out := make([]TableDefinition, len(r.definitions))
	for i, d := range r.definitions {
		out[i] = d.clone()
	}
	return out
}

// Get looks a definition up by its ext_ name.
func (r *Registry) Get(name string) (TableDefinition, bool) {
	i, ok := r.index[name]
	if !ok {
		return TableDefinition{}, false
	}
	return r.definitions[i].clone(), true
}

func (r *Registry) Len() int {
	return len(r.definitions)
}

// SampleIDPattern is the regular expression that captures the path segment
// immediately after /<marker>/.
func SampleIDPattern(marker string) string {
	return fmt.Sprintf("/%s/([^/]+)/", regexp.QuoteMeta(marker))
}

// ExtractSampleID applies SampleIDPattern to a storage path. ok is false when the
// path does not match, which corresponds to a NULL sample_id in the warehouse.
func ExtractSampleID(path, marker string) (string, bool) {
	re := regexp.MustCompile(SampleIDPattern(marker))
	m := re.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
