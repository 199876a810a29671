package warehouse

import (
	"strings"
	"time"
)

// ObjectType is the normalized kind of a catalog object.
type ObjectType string

const (
	TypeTable         ObjectType = "TABLE"
	TypeView          ObjectType = "VIEW"
	TypeExternalTable ObjectType = "EXTERNAL_TABLE"
)

// NormalizeObjectType maps backend spellings ("BASE TABLE", "EXTERNAL",
// "MATERIALIZED_VIEW" ...) onto the three types. Unknown kinds are upper-cased
// and passed through.
func NormalizeObjectType(kind string) ObjectType {
	k := strings.ToUpper(strings.TrimSpace(kind))
	k = strings.ReplaceAll(k, " ", "_")
	switch k {
	case "TABLE", "BASE_TABLE", "REGULAR":
		return TypeTable
	case "VIEW":
		return TypeView
	case "EXTERNAL", "EXTERNAL_TABLE":
		return TypeExternalTable
	default:
		return ObjectType(k)
	}
}

// ObjectRef is a listing entry.
type ObjectRef struct {
	Name string
	Type ObjectType
}

// Field is one schema column.
type Field struct {
	Name        string
	Type        string
	Mode        string
	Description string
}

// ExternalConfig describes the files behind an external table.
type ExternalConfig struct {
	SourceFormat    string
	SourceURIs      []string
	Compression     string
	FieldDelimiter  string
	SkipLeadingRows int64
	// CSV is false when the backend did not report delimiter options.
	CSV bool
}

// Object is the metadata of one catalog object. NumRows and NumBytes are nil
// when the backend cannot report them.
type Object struct {
	Name       string
	FullID     string
	Type       ObjectType
	Created    time.Time
	Modified   time.Time
	Schema     []Field
	NumRows    *int64
	NumBytes   *int64
	Clustering []string
	ViewQuery  string
	External   *ExternalConfig
	Labels     map[string]string
}

// Int64 is a helper for the optional counters.
func Int64(v int64) *int64 {
	return &v
}
