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

// Confirmer asks before the costly materialization phase. Returning false
// skips phase 2.
type Confirmer func(ctx context.Context, tables []string) (bool, error)

// StagingOptions configure the source/staging stage.
type StagingOptions struct {
	Marker       string
	VerifyCounts bool
	Confirm      Confirmer
}

// StagingProvisioner creates src_ views over the external tables and
// materializes stg_ tables from them.
type StagingProvisioner struct {
	catalog  warehouse.Catalog
	registry *registry.Registry
	opts     StagingOptions
}

func NewStagingProvisioner(catalog warehouse.Catalog, reg *registry.Registry, opts StagingOptions) *StagingProvisioner {
	return &StagingProvisioner{catalog: catalog, registry: reg, opts: opts}
}

func (p *StagingProvisioner) Name() string { return "staging" }

// Run creates every view, then materializes every staging table. The two
// phases are independent per definition: a failed view does not stop the
// attempt to materialize its table, which then fails on its own.
func (p *StagingProvisioner) Run(ctx context.Context) *Report {
	logger := zerolog.Ctx(ctx)
	ns := p.catalog.Namespace()
	report := newReport(p.Name(), ns)
	report.States = make(map[string]TierState, p.registry.Len())

	defs := p.registry.Definitions()
	for _, def := range defs {
		report.States[def.Name] = StateNoView
	}

	logger.Info().Str("namespace", ns.String()).Msg("Creating source views")
	for _, def := range defs {
		outcome := p.createView(ctx, def)
		if outcome.OK() {
			report.States[def.Name] = StateViewCreated
		}
		report.add(outcome)
	}
	logger.Info().
		Int("succeeded", report.Succeeded(TierSource)).
		Int("total", len(defs)).
		Msg("Source views processed")

	if p.opts.Confirm != nil {
		names := make([]string, len(defs))
		for i, def := range defs {
			names[i] = ns.Qualified(def.StagingTableName())
		}
		ok, err := p.opts.Confirm(ctx, names)
		if err != nil {
			report.Fatal = errors.Wrap(err, errors.ErrCodeInternal, "Confirmation failed")
			return report.finish()
		}
		if !ok {
			logger.Warn().Msg("Staging tables skipped")
			return report.finish()
		}
	}

	logger.Info().Msg("Materializing staging tables, this scans all external data")
	for _, def := range defs {
		outcome := p.materialize(ctx, def)
		if outcome.OK() {
			report.States[def.Name] = StateStaged
		}
		report.add(outcome)
	}
	staged := report.Succeeded(TierStaging)
	logger.Info().Int("succeeded", staged).Int("total", len(defs)).Msg("Staging tables processed")

	if p.opts.VerifyCounts && staged > 0 && len(defs) > 0 {
		report.Counts = VerifyCounts(ctx, p.catalog, defs[0])
	}
	report.Examples = p.examples(defs)

	return report.finish()
}

func (p *StagingProvisioner) createView(ctx context.Context, def registry.TableDefinition) Outcome {
	logger := zerolog.Ctx(ctx)
	name := def.SourceViewName()
	qualified := p.catalog.Namespace().Qualified(name)
	outcome := Outcome{Definition: def.Name, Object: name, Tier: TierSource}

	start := time.Now()
	defer func() { outcome.Duration = time.Since(start) }()

	query, err := sqlgen.NewSourceView(p.catalog.Dialect(), def, p.opts.Marker).Build()
	if err != nil {
		outcome.Err = errors.Wrap(err, errors.ErrCodeQueryBuild, "Failed to build source view").WithContext("object", qualified)
		return outcome
	}

	result, err := p.catalog.CreateOrReplaceView(ctx, warehouse.ViewSpec{Name: name, Query: query, Source: def.Name})
	if err != nil {
		outcome.Err = objectError(errors.ErrCodeViewCreateFailed, qualified, err)
		logger.Error().Err(err).Str("view", qualified).Msg("Failed to create view")
		return outcome
	}
	outcome.Result = result
	logger.Info().Str("view", qualified).Str("result", string(result)).Msg("View ready")
	return outcome
}

func (p *StagingProvisioner) materialize(ctx context.Context, def registry.TableDefinition) (outcome Outcome) {
	logger := zerolog.Ctx(ctx)
	name := def.StagingTableName()
	qualified := p.catalog.Namespace().Qualified(name)
	outcome = Outcome{Definition: def.Name, Object: name, Tier: TierStaging}

	start := time.Now()
	defer func() { outcome.Duration = time.Since(start) }()

	query, err := sqlgen.NewStagingQuery(p.catalog.Dialect(), def).Build()
	if err != nil {
		outcome.Err = errors.Wrap(err, errors.ErrCodeQueryBuild, "Failed to build staging query").WithContext("object", qualified)
		return outcome
	}

	logger.Info().Str("table", qualified).Msg("Creating table (this may take a while)")
	err = p.catalog.Materialize(ctx, warehouse.MaterializeSpec{
		Name:       name,
		Query:      query,
		Clustering: []string{registry.SampleIDColumn},
		Source:     def.SourceViewName(),
	})
	if err != nil {
		outcome.Err = objectError(errors.ErrCodeMaterializeFailed, qualified, err)
		logger.Error().Err(err).Str("table", qualified).Msg("Failed to create table")
		return outcome
	}
	outcome.Result = warehouse.Replaced

	obj, err := p.catalog.GetObject(ctx, name)
	if err != nil {
		logger.Warn().Err(err).Str("table", qualified).Msg("Table created but metadata unavailable")
		return outcome
	}
	outcome.Rows, outcome.Bytes = obj.NumRows, obj.NumBytes

	event := logger.Info().Str("table", qualified)
	if obj.NumRows != nil {
		event = event.Int64("rows", *obj.NumRows)
	}
	event.Str("size", fmt.Sprintf("%.2f GB", outcome.SizeGB())).Msg("Table created")
	return outcome
}

func (p *StagingProvisioner) examples(defs []registry.TableDefinition) []string {
	if len(defs) == 0 {
		return nil
	}
	d := p.catalog.Dialect()
	def := defs[0]
	sampleID := d.Ident(registry.SampleIDColumn)
	cols := sampleID
	for _, c := range def.ColumnNames() {
		cols += ", " + d.Ident(c)
	}
	return []string{
		fmt.Sprintf("SELECT %s\nFROM %s\nLIMIT 10", cols, d.Table(def.SourceViewName())),
		fmt.Sprintf("SELECT %s\nFROM %s\nWHERE %s = %s\nLIMIT 10", cols, d.Table(def.StagingTableName()), sampleID, d.StringLiteral("<sample_id>")),
		fmt.Sprintf("SELECT %s, COUNT(DISTINCT %s) AS sample_count\nFROM %s\nGROUP BY 1\nORDER BY sample_count DESC\nLIMIT 10",
			d.Ident(def.Columns[0].Name), sampleID, d.Table(def.StagingTableName())),
	}
}
