package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"cmdwh/internal/sqlgen"
	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

var _ warehouse.Catalog = (*Service)(nil)

func (s *Service) Namespace() warehouse.Namespace {
	return warehouse.Namespace{Project: s.config.Database, Dataset: s.config.Schema}
}

func (s *Service) Dialect() sqlgen.Dialect {
	return s.dialect()
}

func (s *Service) dialect() sqlgen.Snowflake {
	return sqlgen.Snowflake{Database: s.config.Database, Schema: s.config.Schema, StageURL: s.config.StageURL}
}

// infoSchema returns the qualified name of an information_schema view in the
// configured database.
func (s *Service) infoSchema(view string) string {
	return s.dialect().Ident(s.config.Database) + ".information_schema." + view
}

func (s *Service) GetNamespace(ctx context.Context) (*warehouse.NamespaceInfo, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT created, last_altered, CURRENT_REGION() FROM %s WHERE schema_name = ?",
		s.infoSchema("schemata"))

	var (
		created  sql.NullTime
		modified sql.NullTime
		region   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, s.config.Schema).Scan(&created, &modified, &region)
	switch {
	case err == sql.ErrNoRows:
		return nil, warehouse.ErrNamespaceNotFound
	case err != nil && strings.Contains(err.Error(), "does not exist"):
		return nil, warehouse.ErrNamespaceNotFound
	case err != nil:
		return nil, errors.Wrap(err, errors.ErrCodeMetadataFetchFailed, "Failed to get schema metadata").
			WithContext("namespace", s.Namespace().String())
	}

	return &warehouse.NamespaceInfo{
		Namespace: s.Namespace(),
		Location:  region.String,
		Created:   created.Time,
		Modified:  modified.Time,
	}, nil
}

func (s *Service) objectExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE table_schema = ? AND table_name = ?", s.infoSchema("tables"))
	var n int
	if err := s.db.QueryRowContext(ctx, query, s.config.Schema, name).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateExternalTable checks for an existing object first so the result
// distinguishes Created from AlreadyExists; the DDL itself is IF NOT EXISTS.
func (s *Service) CreateExternalTable(ctx context.Context, spec warehouse.ExternalTableSpec) (warehouse.CreateResult, error) {
	if !s.connected {
		return "", errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}
	qualified := s.Namespace().Qualified(spec.Name)

	exists, err := s.objectExists(ctx, spec.Name)
	if err != nil {
		return "", errors.ObjectError(errors.ErrCodeObjectCreateFailed, qualified, err)
	}
	if exists {
		return warehouse.AlreadyExists, nil
	}
	if len(spec.SourceURIs) == 0 {
		return "", errors.ObjectError(errors.ErrCodeObjectCreateFailed, qualified, fmt.Errorf("no source uri"))
	}

	def := spec.Definition
	def.SkipRows = spec.SkipRows
	ddl, err := sqlgen.NewCreateExternalTable(s.dialect(), def, sqlgen.ExternalTableOptions{
		Stage:    s.config.Stage,
		StageURL: s.config.StageURL,
		Glob:     spec.SourceURIs[0],
	}).Build()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeQueryBuild, "Failed to build external table DDL").
			WithContext("object", qualified)
	}

	execCtx, cancel := s.getContext(ctx)
	defer cancel()
	if err := s.exec(execCtx, errors.ErrCodeObjectCreateFailed, spec.Name, ddl); err != nil {
		return "", err
	}
	return warehouse.Created, nil
}

func (s *Service) CreateOrReplaceView(ctx context.Context, spec warehouse.ViewSpec) (warehouse.CreateResult, error) {
	if !s.connected {
		return "", errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}
	qualified := s.Namespace().Qualified(spec.Name)

	exists, err := s.objectExists(ctx, spec.Name)
	if err != nil {
		return "", errors.ObjectError(errors.ErrCodeViewCreateFailed, qualified, err)
	}

	stmt, err := sqlgen.NewCreateView(s.dialect(), spec.Name, sqlgen.RawQuery(spec.Query)).Build()
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeQueryBuild, "Failed to build view DDL").
			WithContext("object", qualified)
	}

	execCtx, cancel := s.getContext(ctx)
	defer cancel()
	if err := s.exec(execCtx, errors.ErrCodeViewCreateFailed, spec.Name, stmt); err != nil {
		return "", err
	}
	if exists {
		return warehouse.Replaced, nil
	}
	return warehouse.Created, nil
}

// Materialize rewrites the table in one CREATE OR REPLACE TABLE ... AS
// statement.
func (s *Service) Materialize(ctx context.Context, spec warehouse.MaterializeSpec) error {
	stmt, err := sqlgen.NewCreateTableAs(s.dialect(), spec.Name, spec.Clustering, sqlgen.RawQuery(spec.Query)).Build()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeQueryBuild, "Failed to build staging DDL").
			WithContext("object", s.Namespace().Qualified(spec.Name))
	}

	execCtx, cancel := s.queryContext(ctx)
	defer cancel()
	return s.exec(execCtx, errors.ErrCodeMaterializeFailed, spec.Name, stmt)
}

func (s *Service) ListObjects(ctx context.Context) ([]warehouse.ObjectRef, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT table_name, table_type FROM %s WHERE table_schema = ? ORDER BY table_name",
		s.infoSchema("tables"))
	rows, err := s.db.QueryContext(ctx, query, s.config.Schema)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeListFailed, "Failed to list tables").
			WithContext("namespace", s.Namespace().String())
	}
	defer rows.Close()

	var refs []warehouse.ObjectRef
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeListFailed, "Failed to scan table listing")
		}
		refs = append(refs, warehouse.ObjectRef{Name: name, Type: warehouse.NormalizeObjectType(kind)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeListFailed, "Failed to list tables")
	}
	return refs, nil
}

func (s *Service) GetObject(ctx context.Context, name string) (*warehouse.Object, error) {
	if !s.connected {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database")
	}
	ctx, cancel := s.getContext(ctx)
	defer cancel()

	qualified := s.Namespace().Qualified(name)
	fail := func(err error) error {
		return errors.ObjectError(errors.ErrCodeMetadataFetchFailed, qualified, err)
	}

	query := fmt.Sprintf(
		"SELECT table_type, created, last_altered, row_count, bytes, clustering_key FROM %s WHERE table_schema = ? AND table_name = ?",
		s.infoSchema("tables"))

	var (
		kind       string
		created    sql.NullTime
		modified   sql.NullTime
		rowCount   sql.NullInt64
		bytes      sql.NullInt64
		clustering sql.NullString
	)
	err := s.db.QueryRowContext(ctx, query, s.config.Schema, name).
		Scan(&kind, &created, &modified, &rowCount, &bytes, &clustering)
	if err == sql.ErrNoRows {
		return nil, warehouse.ErrObjectNotFound
	}
	if err != nil {
		return nil, fail(err)
	}

	obj := &warehouse.Object{
		Name:       name,
		FullID:     qualified,
		Type:       warehouse.NormalizeObjectType(kind),
		Created:    created.Time,
		Modified:   modified.Time,
		Clustering: ParseClusteringKey(clustering.String),
	}
	if rowCount.Valid {
		obj.NumRows = warehouse.Int64(rowCount.Int64)
	}
	if bytes.Valid {
		obj.NumBytes = warehouse.Int64(bytes.Int64)
	}

	if obj.Schema, err = s.columns(ctx, name); err != nil {
		return nil, fail(err)
	}

	switch obj.Type {
	case warehouse.TypeView:
		if obj.ViewQuery, err = s.viewDefinition(ctx, name); err != nil {
			return nil, fail(err)
		}
	case warehouse.TypeExternalTable:
		if obj.External, err = s.externalConfig(ctx, name); err != nil {
			return nil, fail(err)
		}
	}
	return obj, nil
}

func (s *Service) columns(ctx context.Context, name string) ([]warehouse.Field, error) {
	query := fmt.Sprintf(
		"SELECT column_name, data_type, is_nullable, comment FROM %s WHERE table_schema = ? AND table_name = ? ORDER BY ordinal_position",
		s.infoSchema("columns"))
	rows, err := s.db.QueryContext(ctx, query, s.config.Schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []warehouse.Field
	for rows.Next() {
		var (
			col, typ, nullable string
			comment            sql.NullString
		)
		if err := rows.Scan(&col, &typ, &nullable, &comment); err != nil {
			return nil, err
		}
		mode := "NULLABLE"
		if strings.EqualFold(nullable, "NO") {
			mode = "REQUIRED"
		}
		fields = append(fields, warehouse.Field{Name: col, Type: typ, Mode: mode, Description: comment.String})
	}
	return fields, rows.Err()
}

func (s *Service) viewDefinition(ctx context.Context, name string) (string, error) {
	query := fmt.Sprintf("SELECT view_definition FROM %s WHERE table_schema = ? AND table_name = ?", s.infoSchema("views"))
	var def sql.NullString
	if err := s.db.QueryRowContext(ctx, query, s.config.Schema, name).Scan(&def); err != nil && err != sql.ErrNoRows {
		return "", err
	}
	return def.String, nil
}

func (s *Service) externalConfig(ctx context.Context, name string) (*warehouse.ExternalConfig, error) {
	query := fmt.Sprintf("SELECT location, file_format_type FROM %s WHERE table_schema = ? AND table_name = ?",
		s.infoSchema("external_tables"))
	var location, format sql.NullString
	if err := s.db.QueryRowContext(ctx, query, s.config.Schema, name).Scan(&location, &format); err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	var ddl string
	ddlQuery := fmt.Sprintf("SELECT GET_DDL('TABLE', %s)", s.dialect().StringLiteral(s.dialect().Table(name)))
	if err := s.db.QueryRowContext(ctx, ddlQuery).Scan(&ddl); err != nil {
		return nil, err
	}

	ext := ParseExternalTableDDL(ddl)
	if format.String != "" {
		ext.SourceFormat = format.String
	}
	if location.String != "" && len(ext.SourceURIs) == 0 {
		ext.SourceURIs = []string{location.String}
	}
	return ext, nil
}
