// Package provision creates the external (ext_), source (src_) and staging
// (stg_) tiers from the table registry. Every object is processed
// independently; failures are recorded as typed outcomes instead of aborting
// the run.
package provision

import (
	"time"

	"cmdwh/internal/warehouse"
)

// Tier identifies the layer an object belongs to.
type Tier string

const (
	TierExternal Tier = "external"
	TierSource   Tier = "source"
	TierStaging  Tier = "staging"
)

// TierState tracks how far a definition progressed through the staging stage.
type TierState string

const (
	StateNoView      TierState = "NO_VIEW"
	StateViewCreated TierState = "VIEW_CREATED"
	StateStaged      TierState = "STAGED"
)

// Outcome is the result of provisioning one object.
type Outcome struct {
	Definition string
	Object     string
	Tier       Tier
	Result     warehouse.CreateResult
	// Rows and Bytes are set for materialized tables when metadata was readable.
	Rows     *int64
	Bytes    *int64
	Duration time.Duration
	Err      error
}

// OK reports whether the object was provisioned.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// SizeGB is Bytes in GiB, or zero when unknown.
func (o Outcome) SizeGB() float64 {
	if o.Bytes == nil {
		return 0
	}
	return float64(*o.Bytes) / (1 << 30)
}

// Sample is one verification row read back from an external table.
type Sample struct {
	Table    string
	FileName string
	SampleID string
	// Matched is false when the path did not yield a sample id.
	Matched bool
}

// Count is one row count read during verification.
type Count struct {
	Table string
	Rows  int64
	Err   error
}

// Report is what a stage run produced.
type Report struct {
	Stage     string
	Namespace warehouse.Namespace
	Started   time.Time
	Finished  time.Time
	// Fatal is set when the stage could not run at all.
	Fatal    error
	Outcomes []Outcome
	States   map[string]TierState
	Samples  []Sample
	Counts   []Count
	// Notes are failures in optional steps (verification) that do not affect
	// the outcome of the stage.
	Notes []error
	// Examples are ready-to-run queries for the objects just provisioned.
	Examples []string
}

func newReport(stage string, ns warehouse.Namespace) *Report {
	return &Report{Stage: stage, Namespace: ns, Started: time.Now()}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) finish() *Report {
	r.Finished = time.Now()
	return r
}

// Tier returns the outcomes of one tier in registry order.
func (r *Report) Tier(t Tier) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Tier == t {
			out = append(out, o)
		}
	}
	return out
}

// Succeeded counts successful outcomes of a tier.
func (r *Report) Succeeded(t Tier) int {
	n := 0
	for _, o := range r.Tier(t) {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed returns every failed outcome.
func (r *Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

// OK is true when the stage ran and every object succeeded.
func (r *Report) OK() bool {
	return r.Fatal == nil && len(r.Failed()) == 0
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
