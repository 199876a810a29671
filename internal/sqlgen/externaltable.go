package sqlgen

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cmdwh/internal/registry"
)

// SplitGlob splits a relative glob at the last path separator before the first
// wildcard. prefix is the static directory part (with a trailing slash, or
// empty) and rest is everything after it.
func SplitGlob(glob string) (prefix, rest string) {
	i := strings.IndexAny(glob, "*?[")
	if i < 0 {
		i = len(glob)
	}
	slash := strings.LastIndex(glob[:i], "/")
	if slash < 0 {
		return "", glob
	}
	return glob[:slash+1], glob[slash+1:]
}

// GlobToRegex translates a storage glob into a regular expression. A '*'
// matches any run of characters including separators, as object store
// wildcards do.
func GlobToRegex(glob string) string {
	var sb strings.Builder
	literal := strings.Builder{}
	flush := func() {
		if literal.Len() > 0 {
			sb.WriteString(regexp.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}
	for _, r := range glob {
		switch r {
		case '*':
			flush()
			sb.WriteString(".*")
		case '?':
			flush()
			sb.WriteString(".")
		default:
			literal.WriteRune(r)
		}
	}
	flush()
	return sb.String()
}

// ExternalTableOptions are the Snowflake-specific inputs to the DDL.
type ExternalTableOptions struct {
	// Stage is the external stage name including the leading '@'.
	Stage string
	// StageURL is the storage URL the stage points at.
	StageURL string
	// Glob is the fully resolved storage glob of the definition.
	Glob string
}

type createExternalTableBuilder struct {
	dialect Snowflake
	def     registry.TableDefinition
	opts    ExternalTableOptions
}

// NewCreateExternalTable builds the CREATE EXTERNAL TABLE IF NOT EXISTS
// statement for a definition on Snowflake. Columns are virtual columns over
// VALUE:cN in file order.
func NewCreateExternalTable(dialect Snowflake, def registry.TableDefinition, opts ExternalTableOptions) QueryBuilder {
	return &createExternalTableBuilder{dialect: dialect, def: def, opts: opts}
}

func (q *createExternalTableBuilder) Build() (string, error) {
	if err := checkDefinition(q.dialect, q.def); err != nil {
		return "", err
	}
	if !strings.HasPrefix(q.opts.Stage, "@") {
		return "", fmt.Errorf("stage %q must start with '@'", q.opts.Stage)
	}
	if q.opts.Glob == "" {
		return "", errors.New("glob cannot be empty")
	}

	root := strings.TrimRight(q.opts.StageURL, "/") + "/"
	if !strings.HasPrefix(q.opts.Glob, root) {
		return "", fmt.Errorf("glob %s is outside stage url %s", q.opts.Glob, q.opts.StageURL)
	}
	prefix, rest := SplitGlob(strings.TrimPrefix(q.opts.Glob, root))

	pattern := GlobToRegex(rest)
	if !strings.HasPrefix(pattern, ".*") {
		pattern = ".*/" + pattern
	}

	cols := make([]string, len(q.def.Columns))
	for i, c := range q.def.Columns {
		typ := SnowflakeType(c.Type)
		cols[i] = fmt.Sprintf("%s %s AS (VALUE:c%d::%s)", q.dialect.Ident(c.Name), typ, i+1, typ)
	}

	var sb strings.Builder
	sb.WriteString("CREATE EXTERNAL TABLE IF NOT EXISTS ")
	sb.WriteString(q.dialect.Table(q.def.Name))
	sb.WriteString(" (\n  ")
	sb.WriteString(strings.Join(cols, ",\n  "))
	sb.WriteString("\n)\n")
	sb.WriteString(fmt.Sprintf("LOCATION = %s/%s\n", q.opts.Stage, prefix))
	sb.WriteString("AUTO_REFRESH = FALSE\n")
	sb.WriteString(fmt.Sprintf("PATTERN = %s\n", q.dialect.StringLiteral(pattern)))
	sb.WriteString(fmt.Sprintf("FILE_FORMAT = (TYPE = CSV FIELD_DELIMITER = %s COMPRESSION = GZIP SKIP_HEADER = %d)",
		q.dialect.StringLiteral("\t"), q.def.SkipRows))
	return sb.String(), nil
}

type createViewBuilder struct {
	dialect Snowflake
	name    string
	query   QueryBuilder
}

// NewCreateView wraps a query in CREATE OR REPLACE VIEW.
func NewCreateView(dialect Snowflake, name string, query QueryBuilder) QueryBuilder {
	return &createViewBuilder{dialect: dialect, name: name, query: query}
}

func (q *createViewBuilder) Build() (string, error) {
	body, err := q.query.Build()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s", q.dialect.Table(q.name), body), nil
}

type createTableAsBuilder struct {
	dialect    Snowflake
	name       string
	clustering []string
	query      QueryBuilder
}

// NewCreateTableAs wraps a query in CREATE OR REPLACE TABLE ... AS, which gives
// full-refresh semantics.
func NewCreateTableAs(dialect Snowflake, name string, clustering []string, query QueryBuilder) QueryBuilder {
	return &createTableAsBuilder{dialect: dialect, name: name, clustering: clustering, query: query}
}

func (q *createTableAsBuilder) Build() (string, error) {
	body, err := q.query.Build()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("CREATE OR REPLACE TABLE ")
	sb.WriteString(q.dialect.Table(q.name))
	if len(q.clustering) > 0 {
		keys := make([]string, len(q.clustering))
		for i, k := range q.clustering {
			keys[i] = q.dialect.Ident(k)
		}
		sb.WriteString(" CLUSTER BY (")
		sb.WriteString(strings.Join(keys, ", "))
		sb.WriteString(")")
	}
	sb.WriteString(" AS\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// RawQuery adapts an already rendered statement to QueryBuilder.
type RawQuery string

func (q RawQuery) Build() (string, error) {
	if strings.TrimSpace(string(q)) == "" {
		return "", errors.New("query cannot be empty")
	}
	return string(q), nil
}
