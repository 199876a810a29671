// Package pipeline runs the provisioning stages as an ordered sequence. Each
// stage reports how many objects it handled; a fatal stage stops the run while
// per-object failures only show up in the result.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"cmdwh/pkg/errors"
)

// Stage names in their canonical order.
const (
	StageExternal = "external"
	StageStaging  = "staging"
	StageHarvest  = "harvest"
)

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context) StageReport
}

// StageReport summarizes a stage run. Detail carries the stage's own report
// for rendering.
type StageReport struct {
	Name      string
	Succeeded int
	Total     int
	Fatal     error
	Failures  []error
	Duration  time.Duration
	Detail    any
}

// OK is true when the stage ran and nothing failed.
func (r StageReport) OK() bool {
	return r.Fatal == nil && len(r.Failures) == 0
}

// Pipeline is an ordered list of stages.
type Pipeline struct {
	stages []Stage
}

func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Result is the outcome of a pipeline run.
type Result struct {
	Stages []StageReport
	// StoppedAt names the fatal stage, if any. Later stages did not run.
	StoppedAt string
}

// Run executes the stages in order. A stage whose report carries a fatal error
// stops the pipeline; a cancelled context stops it before the next stage.
func (p *Pipeline) Run(ctx context.Context) Result {
	logger := zerolog.Ctx(ctx)
	var result Result

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			result.Stages = append(result.Stages, StageReport{
				Name:  stage.Name(),
				Fatal: errors.Wrap(err, errors.ErrCodeInternal, "Pipeline cancelled").WithSeverity(errors.SeverityCritical),
			})
			result.StoppedAt = stage.Name()
			return result
		}

		logger.Info().Str("stage", stage.Name()).Msg("Stage started")
		start := time.Now()
		report := stage.Run(ctx)
		if report.Name == "" {
			report.Name = stage.Name()
		}
		if report.Duration == 0 {
			report.Duration = time.Since(start)
		}
		result.Stages = append(result.Stages, report)

		event := logger.Info()
		if !report.OK() {
			event = logger.Warn()
		}
		event.Str("stage", report.Name).
			Int("succeeded", report.Succeeded).
			Int("total", report.Total).
			Dur("duration", report.Duration).
			Msg("Stage finished")

		if report.Fatal != nil {
			logger.Error().Err(report.Fatal).Str("stage", report.Name).Msg("Pipeline stopped")
			result.StoppedAt = report.Name
			return result
		}
	}
	return result
}

// Failures counts per-object failures across every stage.
func (r Result) Failures() int {
	n := 0
	for _, s := range r.Stages {
		n += len(s.Failures)
	}
	return n
}

// ExitErr applies the exit policy. A fatal stage is an error, except a missing
// namespace, which only stops the run unless strict is set. With strict set
// any per-object failure is an error as well.
func (r Result) ExitErr(strict bool) error {
	for _, s := range r.Stages {
		if s.Fatal == nil {
			continue
		}
		if !strict && errors.HasCode(s.Fatal, errors.ErrCodeNamespaceMissing) {
			return nil
		}
		return s.Fatal
	}
	if strict {
		if n := r.Failures(); n > 0 {
			return errors.New(errors.ErrCodeInternal, fmt.Sprintf("%d object(s) failed", n)).
				WithContext("strict", true)
		}
	}
	return nil
}
