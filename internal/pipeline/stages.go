package pipeline

import (
	"context"

	"cmdwh/internal/harvest"
	"cmdwh/internal/provision"
)

// Provisioner is implemented by the external and staging provisioners.
type Provisioner interface {
	Name() string
	Run(ctx context.Context) *provision.Report
}

type provisionStage struct {
	p Provisioner
}

// Provisioning adapts a provisioner to a pipeline stage.
func Provisioning(p Provisioner) Stage {
	return provisionStage{p: p}
}

func (s provisionStage) Name() string { return s.p.Name() }

func (s provisionStage) Run(ctx context.Context) StageReport {
	report := s.p.Run(ctx)
	out := StageReport{
		Name:     s.p.Name(),
		Total:    len(report.Outcomes),
		Fatal:    report.Fatal,
		Duration: report.Duration(),
		Detail:   report,
	}
	for _, o := range report.Outcomes {
		if o.OK() {
			out.Succeeded++
		} else {
			out.Failures = append(out.Failures, o.Err)
		}
	}
	return out
}

type harvestStage struct {
	h      *harvest.Harvester
	output string
}

// Harvesting adapts the harvester to a pipeline stage that also writes the
// report to output.
func Harvesting(h *harvest.Harvester, output string) Stage {
	return harvestStage{h: h, output: output}
}

func (harvestStage) Name() string { return StageHarvest }

func (s harvestStage) Run(ctx context.Context) StageReport {
	out := StageReport{Name: StageHarvest}
	report, err := s.h.Harvest(ctx)
	if err != nil {
		out.Fatal = err
		return out
	}
	out.Detail = report
	out.Total = len(report.Tables)
	for _, name := range report.Names() {
		t := report.Tables[name]
		if t.Failed() {
			out.Failures = append(out.Failures, harvestFailure{table: name, msg: t.Error})
			continue
		}
		out.Succeeded++
	}
	if err := harvest.WriteFile(report, s.output); err != nil {
		out.Fatal = err
	}
	return out
}

type harvestFailure struct {
	table string
	msg   string
}

func (e harvestFailure) Error() string {
	return e.table + ": " + e.msg
}
