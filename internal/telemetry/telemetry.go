// Package telemetry exposes the result of an analysis run as Prometheus
// gauges, written in the text exposition format for the node-exporter
// textfile collector.
package telemetry

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abyrne55/verifier-log-analysis/internal/report"
)

const namespace = "verifier_analysis"

// Collector holds the gauges of one run on a private registry.
type Collector struct {
	reg *prometheus.Registry

	rowsRead    prometheus.Gauge
	rowsWindow  prometheus.Gauge
	duplicates  prometheus.Gauge
	records     prometheus.Gauge
	outcomes    *prometheus.GaugeVec
	metrics     *prometheus.GaugeVec
	fpEndpoints *prometheus.GaugeVec
	hcpLookups  prometheus.Gauge
	generated   prometheus.Gauge
}

// NewCollector registers every gauge on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	gauge := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	return &Collector{
		reg:        reg,
		rowsRead:   gauge("rows_read", "Input rows parsed"),
		rowsWindow: gauge("rows_in_window", "Input rows inside the analysis window"),
		duplicates: gauge("duplicate_rows", "Rows identical to an earlier row of the same cluster"),
		records:    gauge("records", "Deduplicated cluster records classified"),
		outcomes: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outcome_records",
			Help: "Classified records per confusion-matrix outcome",
		}, []string{"outcome"}),
		metrics: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "metric_ratio",
			Help: "Derived detection metric; absent when undefined",
		}, []string{"metric"}),
		fpEndpoints: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "false_positive_endpoint_records",
			Help: "False-positive records whose verifier log names the endpoint",
		}, []string{"endpoint"}),
		hcpLookups: gauge("hcp_lookups", "External topology lookups performed"),
		generated:  gauge("generated_timestamp_seconds", "Unix time the report was generated"),
	}
}

// Observe sets every gauge from rep. lookups is the number of topology
// lookups performed during the run.
func (c *Collector) Observe(rep *report.Report, lookups int64) {
	c.rowsRead.Set(float64(rep.RowsRead))
	c.rowsWindow.Set(float64(rep.RowsInWindow))
	c.duplicates.Set(float64(rep.Duplicates))
	c.records.Set(float64(rep.Total))
	for _, oc := range rep.Outcomes {
		c.outcomes.WithLabelValues(oc.Outcome.String()).Set(float64(oc.Count))
	}
	c.metrics.Reset()
	for _, m := range rep.Metrics {
		if v, err := m.Ratio(); err == nil {
			c.metrics.WithLabelValues(strings.ToLower(m.ID)).Set(v)
		}
	}
	c.fpEndpoints.Reset()
	for _, ep := range rep.Endpoints {
		c.fpEndpoints.WithLabelValues(ep.Endpoint).Set(float64(ep.Count))
	}
	c.hcpLookups.Set(float64(lookups))
	if !rep.GeneratedAt.IsZero() {
		c.generated.Set(float64(rep.GeneratedAt.Unix()))
	}
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// WriteTextfile atomically writes the gauges to path.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
