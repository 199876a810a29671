package harvest

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

// Harvester reads the catalog of one namespace.
type Harvester struct {
	catalog warehouse.Catalog
	now     func() time.Time
}

func NewHarvester(catalog warehouse.Catalog) *Harvester {
	return &Harvester{catalog: catalog, now: time.Now}
}

// Harvest snapshots every object in name order. Namespace and listing failures
// are returned as errors; a failure on a single object becomes an error
// marker in the report.
func (h *Harvester) Harvest(ctx context.Context) (*Report, error) {
	logger := zerolog.Ctx(ctx)
	ns := h.catalog.Namespace()

	info, err := h.catalog.GetNamespace(ctx)
	if err != nil {
		return nil, namespaceError(err, ns)
	}

	refs, err := h.catalog.ListObjects(ctx)
	if err != nil {
		if errors.Is(err, warehouse.ErrNamespaceNotFound) {
			return nil, namespaceError(err, ns)
		}
		return nil, errors.Wrap(err, errors.ErrCodeListFailed, "Failed to list objects").
			WithContext("namespace", ns.String())
	}

	report := &Report{
		MetadataGenerated: h.now().UTC().Format("2006-01-02T15:04:05.000000"),
		ProjectID:         ns.Project,
		DatasetID:         ns.Dataset,
		DatasetLocation:   info.Location,
		DatasetCreated:    timestamp(info.Created),
		DatasetModified:   timestamp(info.Modified),
		Tables:            make(map[string]*TableMetadata, len(refs)),
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	for _, ref := range refs {
		logger.Info().Str("table", ns.Qualified(ref.Name)).Msg("Gathering metadata")

		obj, err := h.catalog.GetObject(ctx, ref.Name)
		if err != nil {
			wrapped := errors.ObjectError(errors.ErrCodeMetadataFetchFailed, ns.Qualified(ref.Name), err)
			logger.Error().Err(wrapped).Str("table", ns.Qualified(ref.Name)).Msg("Failed to get metadata")
			report.Tables[ref.Name] = &TableMetadata{TableID: ref.Name, Error: err.Error()}
			continue
		}
		report.Tables[ref.Name] = describe(ns, obj)
	}

	report.Summary = Summarize(report.Tables)
	logger.Info().
		Int("total_tables", report.Summary.TotalTables).
		Int64("total_rows", report.Summary.TotalRows).
		Float64("total_size_gb", report.Summary.TotalSizeGB).
		Msg("Metadata collected")
	return report, nil
}

// describe converts catalog metadata to its report form. Counters are set for
// tables and external tables, the query for views and the file configuration
// for external tables.
func describe(ns warehouse.Namespace, obj *warehouse.Object) *TableMetadata {
	t := &TableMetadata{
		TableID:          obj.Name,
		FullTableID:      ns.Qualified(obj.Name),
		TableType:        string(obj.Type),
		Created:          timestamp(obj.Created),
		Modified:         timestamp(obj.Modified),
		Schema:           make([]FieldMetadata, 0, len(obj.Schema)),
		NumFields:        len(obj.Schema),
		ClusteringFields: []string{},
		Labels:           obj.Labels,
	}
	for _, f := range obj.Schema {
		field := FieldMetadata{Name: f.Name, Type: f.Type, Mode: f.Mode}
		if f.Description != "" {
			desc := f.Description
			field.Description = &desc
		}
		t.Schema = append(t.Schema, field)
	}
	if len(obj.Clustering) > 0 {
		t.ClusteringFields = append(t.ClusteringFields, obj.Clustering...)
	}

	if hasCounters(obj.Type) {
		rows, bytes := counter(obj.NumRows), counter(obj.NumBytes)
		size := sizeGB(bytes)
		t.NumRows, t.NumBytes, t.SizeGB = rows, bytes, &size
	}

	if obj.Type == warehouse.TypeView {
		q := obj.ViewQuery
		t.ViewQuery = &q
	}

	if obj.Type == warehouse.TypeExternalTable && obj.External != nil {
		ext := obj.External
		uris := ext.SourceURIs
		if len(uris) > maxSourceURIs {
			uris = uris[:maxSourceURIs]
		}
		t.ExternalConfig = &ExternalConfig{
			SourceFormat:  ext.SourceFormat,
			SourceURIs:    append([]string{}, uris...),
			NumSourceURIs: len(ext.SourceURIs),
			Compression:   ext.Compression,
		}
		if ext.CSV {
			t.ExternalConfig.CSVOptions = &CSVOptions{
				SkipLeadingRows: ext.SkipLeadingRows,
				FieldDelimiter:  ext.FieldDelimiter,
			}
		}
	}
	return t
}

// counter reports an unknown count as zero.
func counter(n *int64) *int64 {
	if n == nil {
		return warehouse.Int64(0)
	}
	return warehouse.Int64(*n)
}

func namespaceError(err error, ns warehouse.Namespace) error {
	if errors.Is(err, warehouse.ErrNamespaceNotFound) {
		return errors.NamespaceMissingError(ns.String(), "", err)
	}
	return errors.Wrap(err, errors.ErrCodeMetadataFetchFailed, "Failed to read namespace").
		WithSeverity(errors.SeverityCritical).
		WithContext("namespace", ns.String())
}
