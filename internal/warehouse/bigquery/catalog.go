// Package bigquery implements warehouse.Catalog on Google BigQuery.
package bigquery

import (
	"context"
	"net/http"
	"time"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"cmdwh/internal/sqlgen"
	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

// Config holds the BigQuery connection settings.
type Config struct {
	Project         string
	Dataset         string
	Location        string
	CredentialsFile string
	// QueryTimeout bounds query jobs. Zero waits indefinitely.
	QueryTimeout time.Duration
}

// Catalog is a BigQuery dataset.
type Catalog struct {
	client  *bq.Client
	ns      warehouse.Namespace
	timeout time.Duration
}

var _ warehouse.Catalog = (*Catalog)(nil)

// NewCatalog creates the client. Credentials come from CredentialsFile when set,
// otherwise from application default credentials.
func NewCatalog(ctx context.Context, cfg Config) (*Catalog, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := bq.NewClient(ctx, cfg.Project, opts...)
	if err != nil {
		return nil, errors.ConnectionError("Failed to create BigQuery client", err).
			WithContext("project", cfg.Project)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}

	return &Catalog{
		client:  client,
		ns:      warehouse.Namespace{Project: cfg.Project, Dataset: cfg.Dataset},
		timeout: cfg.QueryTimeout,
	}, nil
}

func (c *Catalog) Namespace() warehouse.Namespace { return c.ns }

func (c *Catalog) Dialect() sqlgen.Dialect {
	return sqlgen.BigQuery{Project: c.ns.Project, Dataset: c.ns.Dataset}
}

func (c *Catalog) dataset() *bq.Dataset {
	return c.client.Dataset(c.ns.Dataset)
}

func (c *Catalog) GetNamespace(ctx context.Context) (*warehouse.NamespaceInfo, error) {
	md, err := c.dataset().Metadata(ctx)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, warehouse.ErrNamespaceNotFound
		}
		return nil, errors.Wrap(err, errors.ErrCodeMetadataFetchFailed, "Failed to get dataset metadata").
			WithContext("namespace", c.ns.String())
	}
	return &warehouse.NamespaceInfo{
		Namespace: c.ns,
		Location:  md.Location,
		Created:   md.CreationTime,
		Modified:  md.LastModifiedTime,
	}, nil
}

func (c *Catalog) CreateExternalTable(ctx context.Context, spec warehouse.ExternalTableSpec) (warehouse.CreateResult, error) {
	meta := &bq.TableMetadata{
		ExternalDataConfig: &bq.ExternalDataConfig{
			SourceFormat: bq.DataFormat(spec.SourceFormat),
			SourceURIs:   spec.SourceURIs,
			Compression:  bq.Compression(spec.Compression),
			Schema:       toSchema(spec.Schema),
			Options: &bq.CSVOptions{
				FieldDelimiter:  spec.Delimiter,
				SkipLeadingRows: int64(spec.SkipRows),
			},
		},
	}

	err := c.dataset().Table(spec.Name).Create(ctx, meta)
	switch {
	case err == nil:
		return warehouse.Created, nil
	case isStatus(err, http.StatusConflict):
		return warehouse.AlreadyExists, nil
	default:
		return "", errors.ObjectError(errors.ErrCodeObjectCreateFailed, c.ns.Qualified(spec.Name), err)
	}
}

func (c *Catalog) CreateOrReplaceView(ctx context.Context, spec warehouse.ViewSpec) (warehouse.CreateResult, error) {
	table := c.dataset().Table(spec.Name)

	err := table.Create(ctx, &bq.TableMetadata{ViewQuery: spec.Query})
	if err == nil {
		return warehouse.Created, nil
	}
	if !isStatus(err, http.StatusConflict) {
		return "", errors.ObjectError(errors.ErrCodeViewCreateFailed, c.ns.Qualified(spec.Name), err)
	}

	if _, err := table.Update(ctx, bq.TableMetadataToUpdate{ViewQuery: spec.Query}, ""); err != nil {
		return "", errors.ObjectError(errors.ErrCodeViewCreateFailed, c.ns.Qualified(spec.Name), err)
	}
	return warehouse.Replaced, nil
}

func (c *Catalog) Materialize(ctx context.Context, spec warehouse.MaterializeSpec) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	q := c.client.Query(spec.Query)
	q.Dst = c.dataset().Table(spec.Name)
	q.WriteDisposition = bq.WriteTruncate
	q.CreateDisposition = bq.CreateIfNeeded
	if len(spec.Clustering) > 0 {
		q.Clustering = &bq.Clustering{Fields: spec.Clustering}
	}

	fail := func(err error) *errors.AppError {
		return errors.ObjectError(errors.ErrCodeMaterializeFailed, c.ns.Qualified(spec.Name), err)
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fail(err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fail(err)
	}
	if err := status.Err(); err != nil {
		return fail(err).WithContext("job_id", job.ID())
	}
	return nil
}

func (c *Catalog) ListObjects(ctx context.Context) ([]warehouse.ObjectRef, error) {
	var refs []warehouse.ObjectRef
	it := c.dataset().Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			if isStatus(err, http.StatusNotFound) {
				return nil, warehouse.ErrNamespaceNotFound
			}
			return nil, errors.Wrap(err, errors.ErrCodeListFailed, "Failed to list tables").
				WithContext("namespace", c.ns.String())
		}
		refs = append(refs, warehouse.ObjectRef{Name: t.TableID})
	}
	return refs, nil
}

func (c *Catalog) GetObject(ctx context.Context, name string) (*warehouse.Object, error) {
	md, err := c.dataset().Table(name).Metadata(ctx)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, warehouse.ErrObjectNotFound
		}
		return nil, errors.ObjectError(errors.ErrCodeMetadataFetchFailed, c.ns.Qualified(name), err)
	}
	return toObject(name, md), nil
}

func (c *Catalog) Query(ctx context.Context, sql string) ([]warehouse.Row, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	it, err := c.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, errors.QueryError("Query failed", sql, err)
	}

	var rows []warehouse.Row
	for {
		var values map[string]bq.Value
		err := it.Next(&values)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.QueryError("Failed to read query results", sql, err)
		}
		row := make(warehouse.Row, len(values))
		for k, v := range values {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Catalog) Close() error {
	return c.client.Close()
}

func (c *Catalog) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

func isStatus(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}
