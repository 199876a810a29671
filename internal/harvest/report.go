// Package harvest snapshots every object of the warehouse namespace into a
// MetadataReport and writes it as table_metadata.json.
package harvest

import (
	"encoding/json"
	"time"
)

// DefaultOutputFile is where the report is written when no path is given.
const DefaultOutputFile = "table_metadata.json"

// maxSourceURIs caps the source_uris list of an external table; the full count
// goes to num_source_uris.
const maxSourceURIs = 3

// Report is the on-disk metadata report.
type Report struct {
	MetadataGenerated string                    `json:"metadata_generated"`
	ProjectID         string                    `json:"project_id"`
	DatasetID         string                    `json:"dataset_id"`
	DatasetLocation   string                    `json:"dataset_location"`
	DatasetCreated    *string                   `json:"dataset_created"`
	DatasetModified   *string                   `json:"dataset_modified"`
	Tables            map[string]*TableMetadata `json:"tables"`
	Summary           Summary                   `json:"summary"`
}

// Summary aggregates the successfully read objects.
type Summary struct {
	TotalTables int            `json:"total_tables"`
	ByType      map[string]int `json:"by_type"`
	ByPrefix    map[string]int `json:"by_prefix"`
	TotalRows   int64          `json:"total_rows"`
	TotalSizeGB float64        `json:"total_size_gb"`
}

// TableMetadata is one object snapshot. When Error is set only the table id
// and the error are serialized.
type TableMetadata struct {
	TableID          string          `json:"table_id"`
	FullTableID      string          `json:"full_table_id"`
	TableType        string          `json:"table_type"`
	Created          *string         `json:"created"`
	Modified         *string         `json:"modified"`
	Schema           []FieldMetadata `json:"schema"`
	NumFields        int             `json:"num_fields"`
	NumRows          *int64          `json:"num_rows"`
	NumBytes         *int64          `json:"num_bytes"`
	SizeGB           *float64        `json:"size_gb"`
	ClusteringFields []string        `json:"clustering_fields"`
	ViewQuery        *string         `json:"view_query,omitempty"`
	ExternalConfig   *ExternalConfig `json:"external_config,omitempty"`

	Labels map[string]string `json:"labels,omitempty"`

	Error string `json:"-"`
}

type errorMarker struct {
	TableID string `json:"table_id"`
	Error   string `json:"error"`
}

// MarshalJSON writes the error marker for failed objects.
func (t *TableMetadata) MarshalJSON() ([]byte, error) {
	if t.Error != "" {
		return json.Marshal(errorMarker{TableID: t.TableID, Error: t.Error})
	}
	type plain TableMetadata
	return json.Marshal((*plain)(t))
}

// Failed reports whether metadata could not be read.
func (t *TableMetadata) Failed() bool {
	return t.Error != ""
}

type FieldMetadata struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Mode        string  `json:"mode"`
	Description *string `json:"description"`
}

type ExternalConfig struct {
	SourceFormat  string      `json:"source_format"`
	SourceURIs    []string    `json:"source_uris"`
	NumSourceURIs int         `json:"num_source_uris"`
	Compression   string      `json:"compression"`
	CSVOptions    *CSVOptions `json:"csv_options,omitempty"`
}

type CSVOptions struct {
	SkipLeadingRows int64  `json:"skip_leading_rows"`
	FieldDelimiter  string `json:"field_delimiter"`
}

// Names returns the table ids in sorted order.
func (r *Report) Names() []string {
	return sortedKeys(r.Tables)
}

func timestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
