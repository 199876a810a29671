package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cmdwh/internal/registry"
	"cmdwh/internal/sqlgen"
	"cmdwh/internal/warehouse"
	"cmdwh/pkg/errors"
)

// DefaultSampleLimit bounds the verification read of each external table.
const DefaultSampleLimit = 3

// ExternalOptions configure the external table stage.
type ExternalOptions struct {
	Bucket string
	Marker string
	// Location goes into the remediation hint when the namespace is missing.
	Location    string
	Verify      bool
	SampleLimit int
}

// ExternalProvisioner declares one external table per registry definition.
type ExternalProvisioner struct {
	catalog  warehouse.Catalog
	registry *registry.Registry
	opts     ExternalOptions
}

func NewExternalProvisioner(catalog warehouse.Catalog, reg *registry.Registry, opts ExternalOptions) *ExternalProvisioner {
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = DefaultSampleLimit
	}
	return &ExternalProvisioner{catalog: catalog, registry: reg, opts: opts}
}

func (p *ExternalProvisioner) Name() string { return "external" }

// Run checks the namespace, then creates every external table. Existing tables
// are left untouched. A missing namespace is fatal and nothing is created.
func (p *ExternalProvisioner) Run(ctx context.Context) *Report {
	logger := zerolog.Ctx(ctx)
	ns := p.catalog.Namespace()
	report := newReport(p.Name(), ns)

	if err := CheckNamespace(ctx, p.catalog, p.opts.Location); err != nil {
		report.Fatal = err
		logger.Error().Err(err).Str("namespace", ns.String()).Msg("Namespace check failed")
		return report.finish()
	}
	logger.Info().Str("namespace", ns.String()).Msg("Namespace exists")

	for _, def := range p.registry.Definitions() {
		qualified := ns.Qualified(def.Name)
		spec := warehouse.NewExternalTableSpec(def, p.opts.Bucket)

		start := time.Now()
		result, err := p.catalog.CreateExternalTable(ctx, spec)
		outcome := Outcome{
			Definition: def.Name,
			Object:     def.Name,
			Tier:       TierExternal,
			Result:     result,
			Duration:   time.Since(start),
		}
		if err != nil {
			outcome.Err = objectError(errors.ErrCodeObjectCreateFailed, qualified, err)
			logger.Error().Err(err).Str("table", qualified).Msg("Failed to create external table")
			report.add(outcome)
			continue
		}

		logger.Info().
			Str("table", qualified).
			Str("result", string(result)).
			Strs("source_uris", spec.SourceURIs).
			Int("skip_rows", spec.SkipRows).
			Msg("External table ready")
		report.add(outcome)

		if p.opts.Verify {
			p.verify(ctx, report, def.Name)
		}
	}

	if defs := p.registry.Definitions(); len(defs) > 0 {
		if q, err := sqlgen.NewSampleQuery(p.catalog.Dialect(), defs[0].Name, p.opts.Marker, 10).Build(); err == nil {
			report.Examples = append(report.Examples, q)
		}
	}

	logger.Info().
		Int("succeeded", report.Succeeded(TierExternal)).
		Int("total", p.registry.Len()).
		Msg("External tables processed")
	return report.finish()
}

// verify reads a few rows back with the derived sample id. Failures are noted
// and never change the outcome.
func (p *ExternalProvisioner) verify(ctx context.Context, report *Report, table string) {
	logger := zerolog.Ctx(ctx)
	qualified := report.Namespace.Qualified(table)

	query, err := sqlgen.NewSampleQuery(p.catalog.Dialect(), table, p.opts.Marker, p.opts.SampleLimit).Build()
	if err != nil {
		report.Notes = append(report.Notes, errors.Wrap(err, errors.ErrCodeQueryBuild, "Failed to build sample query").
			WithContext("object", qualified))
		return
	}

	rows, err := p.catalog.Query(ctx, query)
	if err != nil {
		note := objectError(errors.ErrCodeVerificationFailed, qualified, err)
		report.Notes = append(report.Notes, note)
		logger.Warn().Err(err).Str("table", qualified).Msg("Verification failed")
		return
	}

	for _, row := range rows {
		s := Sample{Table: table, FileName: stringValue(row, "file_name")}
		if v, ok := row.Value(registry.SampleIDColumn); ok && v != nil {
			s.SampleID, s.Matched = fmt.Sprint(v), true
		}
		report.Samples = append(report.Samples, s)
		logger.Debug().Str("table", qualified).Str("sample_id", s.SampleID).Msg("Sample row")
	}
}

// CheckNamespace verifies the dataset exists. A missing namespace becomes a
// critical error carrying the command that creates it.
func CheckNamespace(ctx context.Context, catalog warehouse.Catalog, location string) error {
	_, err := catalog.GetNamespace(ctx)
	if err == nil {
		return nil
	}
	ns := catalog.Namespace()
	if errors.Is(err, warehouse.ErrNamespaceNotFound) {
		return errors.NamespaceMissingError(ns.String(), Remediation(catalog.Dialect(), ns, location), err)
	}
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr.WithSeverity(errors.SeverityCritical)
	}
	return errors.Wrap(err, errors.ErrCodeMetadataFetchFailed, "Failed to check namespace").
		WithSeverity(errors.SeverityCritical).
		WithContext("namespace", ns.String())
}

// Remediation is the command that creates a missing namespace.
func Remediation(dialect sqlgen.Dialect, ns warehouse.Namespace, location string) string {
	if sf, ok := dialect.(sqlgen.Snowflake); ok {
		return fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s.%s;", sf.Ident(ns.Project), sf.Ident(ns.Dataset))
	}
	if location == "" {
		location = "US"
	}
	return fmt.Sprintf("bq mk --dataset --location=%s %s", location, ns.String())
}

func objectError(code errors.ErrorCode, qualified string, err error) error {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return errors.ObjectError(code, qualified, err)
}

func stringValue(row warehouse.Row, column string) string {
	v, ok := row.Value(column)
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
