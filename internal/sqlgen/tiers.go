package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	"cmdwh/internal/registry"
)

type sourceViewBuilder struct {
	dialect Dialect
	def     registry.TableDefinition
	marker  string
}

// NewSourceView builds the body of src_<name>: the path-derived sample_id
// followed by every registry column, untouched, read from ext_<name>. No
// casting and no filtering happen in this tier.
func NewSourceView(dialect Dialect, def registry.TableDefinition, marker string) QueryBuilder {
	return &sourceViewBuilder{dialect: dialect, def: def, marker: marker}
}

func (q *sourceViewBuilder) Build() (string, error) {
	if err := checkDefinition(q.dialect, q.def); err != nil {
		return "", err
	}
	if q.marker == "" {
		return "", errors.New("sample marker cannot be empty for source views")
	}

	selects := make([]string, 0, len(q.def.Columns)+1)
	selects = append(selects, SampleIDExpr(q.dialect, q.marker)+" AS "+q.dialect.Ident(registry.SampleIDColumn))
	for _, c := range q.def.Columns {
		selects = append(selects, q.dialect.Ident(c.Name))
	}
	return selectStatement(selects, q.dialect.Table(q.def.Name), "", 0), nil
}

type stagingQueryBuilder struct {
	dialect Dialect
	def     registry.TableDefinition
}

// NewStagingQuery builds the full-refresh query for stg_<name>. Columns with a
// Cast are safe-cast (invalid values become NULL), NullIf sentinels are mapped to
// NULL first, and rows without a sample_id are dropped.
func NewStagingQuery(dialect Dialect, def registry.TableDefinition) QueryBuilder {
	return &stagingQueryBuilder{dialect: dialect, def: def}
}

func (q *stagingQueryBuilder) Build() (string, error) {
	if err := checkDefinition(q.dialect, q.def); err != nil {
		return "", err
	}

	sampleID := q.dialect.Ident(registry.SampleIDColumn)
	selects := make([]string, 0, len(q.def.Columns)+1)
	selects = append(selects, sampleID)
	for _, c := range q.def.Columns {
		selects = append(selects, StagingColumnExpr(q.dialect, c))
	}
	return selectStatement(selects, q.dialect.Table(q.def.SourceViewName()), sampleID+" IS NOT NULL", 0), nil
}

// StagingColumnExpr renders one staging select item.
func StagingColumnExpr(dialect Dialect, c registry.Column) string {
	ident := dialect.Ident(c.Name)
	if c.Cast == "" {
		if c.NullIf != nil {
			return dialect.NullIf(ident, *c.NullIf) + " AS " + ident
		}
		return ident
	}
	expr := ident
	if c.NullIf != nil {
		expr = dialect.NullIf(expr, *c.NullIf)
	}
	return dialect.SafeCast(expr, c.Cast) + " AS " + ident
}

// SampleIDExpr is the sample identifier extraction over the file path.
func SampleIDExpr(dialect Dialect, marker string) string {
	return dialect.RegexpExtract(dialect.FileNameExpr(), registry.SampleIDPattern(marker))
}

type sampleQueryBuilder struct {
	dialect Dialect
	table   string
	marker  string
	limit   int
}

// NewSampleQuery reads a bounded number of rows from an external table with the
// derived sample_id next to the raw file name, for manual sanity checks.
func NewSampleQuery(dialect Dialect, table, marker string, limit int) QueryBuilder {
	return &sampleQueryBuilder{dialect: dialect, table: table, marker: marker, limit: limit}
}

func (q *sampleQueryBuilder) Build() (string, error) {
	if q.table == "" {
		return "", errors.New("table cannot be empty for sample queries")
	}
	if q.limit <= 0 {
		return "", fmt.Errorf("limit must be positive, got %d", q.limit)
	}
	selects := []string{
		q.dialect.FileNameExpr() + " AS " + q.dialect.Ident("file_name"),
		SampleIDExpr(q.dialect, q.marker) + " AS " + q.dialect.Ident(registry.SampleIDColumn),
		"*",
	}
	return selectStatement(selects, q.dialect.Table(q.table), "", q.limit), nil
}

type countQueryBuilder struct {
	dialect Dialect
	table   string
}

// CountColumn is the alias the row count is returned under.
const CountColumn = "row_count"

func NewCountQuery(dialect Dialect, table string) QueryBuilder {
	return &countQueryBuilder{dialect: dialect, table: table}
}

func (q *countQueryBuilder) Build() (string, error) {
	if q.table == "" {
		return "", errors.New("table cannot be empty for count queries")
	}
	return fmt.Sprintf("SELECT COUNT(*) AS %s FROM %s", q.dialect.Ident(CountColumn), q.dialect.Table(q.table)), nil
}

func checkDefinition(dialect Dialect, def registry.TableDefinition) error {
	if dialect == nil {
		return errors.New("dialect cannot be nil")
	}
	if def.Name == "" {
		return errors.New("table name cannot be empty")
	}
	if len(def.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", def.Name)
	}
	return nil
}

func selectStatement(selects []string, from, where string, limit int) string {
	var sb strings.Builder
	sb.WriteString("SELECT\n  ")
	sb.WriteString(strings.Join(selects, ",\n  "))
	sb.WriteString("\nFROM ")
	sb.WriteString(from)
	if where != "" {
		sb.WriteString("\nWHERE ")
		sb.WriteString(where)
	}
	if limit > 0 {
		sb.WriteString(fmt.Sprintf("\nLIMIT %d", limit))
	}
	return sb.String()
}
