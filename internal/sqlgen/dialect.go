// Package sqlgen builds the SQL text for the source, staging and verification
// tiers. Queries are already interpolated; every identifier comes from a
// validated registry.
package sqlgen

import (
	"fmt"
	"strings"

	"cmdwh/internal/registry"
)

// QueryBuilder is implemented by every builder in this package.
type QueryBuilder interface {
	Build() (string, error)
}

// Dialect isolates the warehouse-specific spelling of the handful of
// expressions the tiers need.
type Dialect interface {
	Name() string
	// Table returns the fully qualified, quoted reference to name in the
	// dialect's namespace.
	Table(name string) string
	// Ident renders a column identifier.
	Ident(name string) string
	// FileNameExpr is the expression yielding the full storage path of the
	// file a row was read from.
	FileNameExpr() string
	RegexpExtract(expr, pattern string) string
	SafeCast(expr string, to registry.ScalarType) string
	NullIf(expr, sentinel string) string
	StringLiteral(s string) string
}

// BigQuery renders GoogleSQL.
type BigQuery struct {
	Project string
	Dataset string
}

func (BigQuery) Name() string { return "bigquery" }

func (b BigQuery) Table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", b.Project, b.Dataset, name)
}

func (BigQuery) Ident(name string) string { return name }

func (BigQuery) FileNameExpr() string { return "_FILE_NAME" }

func (b BigQuery) RegexpExtract(expr, pattern string) string {
	if strings.ContainsAny(pattern, "'\n") {
		return fmt.Sprintf("REGEXP_EXTRACT(%s, %s)", expr, b.StringLiteral(pattern))
	}
	return fmt.Sprintf("REGEXP_EXTRACT(%s, r'%s')", expr, pattern)
}

func (BigQuery) SafeCast(expr string, to registry.ScalarType) string {
	return fmt.Sprintf("SAFE_CAST(%s AS %s)", expr, bigQueryType(to))
}

func (b BigQuery) NullIf(expr, sentinel string) string {
	return fmt.Sprintf("NULLIF(%s, %s)", expr, b.StringLiteral(sentinel))
}

func (BigQuery) StringLiteral(s string) string {
	return "'" + backslashEscaper.Replace(s) + "'"
}

func bigQueryType(t registry.ScalarType) string {
	switch t {
	case registry.Integer:
		return "INT64"
	case registry.Float:
		return "FLOAT64"
	default:
		return "STRING"
	}
}

// Snowflake renders Snowflake SQL. Identifiers are always double-quoted so the
// lower-case registry names survive. StageURL is the URL the external stage
// points at; METADATA$FILENAME is relative to it.
type Snowflake struct {
	Database string
	Schema   string
	StageURL string
}

func (Snowflake) Name() string { return "snowflake" }

func (s Snowflake) Table(name string) string {
	return quoteDouble(s.Database) + "." + quoteDouble(s.Schema) + "." + quoteDouble(name)
}

func (Snowflake) Ident(name string) string { return quoteDouble(name) }

func (s Snowflake) FileNameExpr() string {
	return fmt.Sprintf("(%s || METADATA$FILENAME)", s.StringLiteral(strings.TrimRight(s.StageURL, "/")+"/"))
}

func (s Snowflake) RegexpExtract(expr, pattern string) string {
	return fmt.Sprintf("REGEXP_SUBSTR(%s, %s, 1, 1, 'e', 1)", expr, s.StringLiteral(pattern))
}

// SafeCast goes through TO_VARCHAR because TRY_CAST only accepts strings.
func (Snowflake) SafeCast(expr string, to registry.ScalarType) string {
	return fmt.Sprintf("TRY_CAST(TO_VARCHAR(%s) AS %s)", expr, SnowflakeType(to))
}

func (s Snowflake) NullIf(expr, sentinel string) string {
	return fmt.Sprintf("NULLIF(%s, %s)", expr, s.StringLiteral(sentinel))
}

func (Snowflake) StringLiteral(str string) string {
	return "'" + backslashEscaper.Replace(str) + "'"
}

// SnowflakeType maps a registry type to the Snowflake column type.
func SnowflakeType(t registry.ScalarType) string {
	switch t {
	case registry.Integer:
		return "NUMBER(38,0)"
	case registry.Float:
		return "FLOAT"
	default:
		return "VARCHAR"
	}
}

var backslashEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\t", `\t`, "\n", `\n`)

func quoteDouble(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
