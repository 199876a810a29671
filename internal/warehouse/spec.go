package warehouse

import (
	"cmdwh/internal/registry"
)

// External table file format constants.
const (
	SourceFormatCSV = "CSV"
	CompressionGzip = "GZIP"
	TabDelimiter    = "\t"
)

// ExternalTableSpec is everything needed to declare an external table.
type ExternalTableSpec struct {
	Name         string
	SourceURIs   []string
	SourceFormat string
	Delimiter    string
	Compression  string
	SkipRows     int
	Schema       []Field
	// Definition is the registry entry the spec was built from.
	Definition registry.TableDefinition
}

// NewExternalTableSpec declares a definition as a gzip TSV external table with
// the definition's exact column order and header skip.
func NewExternalTableSpec(def registry.TableDefinition, bucket string) ExternalTableSpec {
	schema := make([]Field, len(def.Columns))
	for i, c := range def.Columns {
		schema[i] = Field{Name: c.Name, Type: string(c.Type), Mode: string(c.EffectiveMode())}
	}
	return ExternalTableSpec{
		Name:         def.Name,
		SourceURIs:   []string{def.Glob(bucket)},
		SourceFormat: SourceFormatCSV,
		Delimiter:    TabDelimiter,
		Compression:  CompressionGzip,
		SkipRows:     def.SkipRows,
		Schema:       schema,
		Definition:   def,
	}
}

// ViewSpec is a logical view. Source names the object the view reads from.
type ViewSpec struct {
	Name   string
	Query  string
	Source string
}

// MaterializeSpec is a full-refresh write of Query into Name.
type MaterializeSpec struct {
	Name       string
	Query      string
	Clustering []string
	Source     string
}
