// Package report turns a pipeline result into a presentable summary and
// renders it as a terminal table, Markdown, JSON or YAML.
package report

import (
	"time"

	"github.com/abyrne55/verifier-log-analysis/internal/outcome"
	"github.com/abyrne55/verifier-log-analysis/internal/pipeline"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
	"github.com/abyrne55/verifier-log-analysis/internal/stats"
)

// Report is the full analysis summary.
type Report struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
	Since       time.Time `json:"since" yaml:"since"`
	Until       time.Time `json:"until" yaml:"until"`
	HCPFilter   string    `json:"hcp_filter" yaml:"hcp_filter"`

	RowsRead     int `json:"rows_read" yaml:"rows_read"`
	RowsInWindow int `json:"rows_in_window" yaml:"rows_in_window"`
	Duplicates   int `json:"duplicate_rows" yaml:"duplicate_rows"`

	// Total is the number of deduplicated records that were classified.
	Total    int            `json:"total_records" yaml:"total_records"`
	Outcomes []OutcomeCount `json:"outcomes" yaml:"outcomes"`
	Matrix   stats.Counts   `json:"confusion_matrix" yaml:"confusion_matrix"`
	Metrics  []stats.Metric `json:"metrics" yaml:"metrics"`

	FalsePositives []FalsePositive       `json:"false_positives" yaml:"false_positives"`
	LogsFetched    bool                  `json:"logs_fetched" yaml:"logs_fetched"`
	Endpoints      []stats.EndpointCount `json:"egress_endpoints" yaml:"egress_endpoints"`
}

// OutcomeCount is one row of the per-outcome summary.
type OutcomeCount struct {
	Outcome outcome.Outcome `json:"outcome" yaml:"outcome"`
	Count   int             `json:"count" yaml:"count"`
}

// FalsePositive identifies a cluster the verifier flagged without cause.
type FalsePositive struct {
	ClusterID   string          `json:"cid" yaml:"cid"`
	ClusterName string          `json:"cname,omitempty" yaml:"cname,omitempty"`
	State       record.OCMState `json:"ocm_state,omitempty" yaml:"ocm_state,omitempty"`
	Display     string          `json:"display" yaml:"display"`
	// HCP is "true", "false" or "n/a" when the topology was not looked up.
	HCP       string   `json:"hcp" yaml:"hcp"`
	LogURL    string   `json:"log_download_url,omitempty" yaml:"log_download_url,omitempty"`
	Endpoints []string `json:"egress_endpoints,omitempty" yaml:"egress_endpoints,omitempty"`
}

// Meta describes the run that produced a result.
type Meta struct {
	Source      string
	Config      pipeline.Config
	GeneratedAt time.Time
}

// Build assembles a Report. It does no I/O.
func Build(res *pipeline.Result, meta Meta) *Report {
	since, until := meta.Config.Window()
	r := &Report{
		GeneratedAt:  meta.GeneratedAt.UTC(),
		Source:       meta.Source,
		Since:        since,
		Until:        until,
		HCPFilter:    meta.Config.HCP.String(),
		RowsRead:     res.RowsRead,
		RowsInWindow: res.RowsInWindow,
		Duplicates:   res.Duplicates,
		Total:        len(res.Records),
		Matrix:       res.Counts,
		Metrics:      res.Metrics.List(),
		LogsFetched:  res.Endpoints != nil,
	}
	for _, o := range outcome.All {
		r.Outcomes = append(r.Outcomes, OutcomeCount{Outcome: o, Count: res.Counts.Of(o)})
	}

	r.FalsePositives = make([]FalsePositive, 0, len(res.Tally[outcome.FalsePositive]))
	for _, rec := range res.Tally[outcome.FalsePositive] {
		fp := FalsePositive{
			ClusterID:   rec.ClusterID,
			ClusterName: rec.ClusterName,
			State:       rec.State,
			Display:     rec.String(),
			HCP:         "n/a",
			LogURL:      rec.LogURL,
			Endpoints:   res.Endpoints[rec.ClusterID],
		}
		if hosted, ok := res.Hosted[rec.ClusterID]; ok {
			fp.HCP = boolString(hosted)
		}
		r.FalsePositives = append(r.FalsePositives, fp)
	}

	r.Endpoints = stats.EndpointFrequency(res.FalsePositiveEndpoints())
	return r
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
