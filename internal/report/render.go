package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/abyrne55/verifier-log-analysis/internal/format"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
)

// Format selects a renderer.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	JSON     Format = "json"
	YAML     Format = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []Format{Text, Markdown, JSON, YAML}

// ParseFormat validates s.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return Text, nil
	case "md":
		return Markdown, nil
	case Text, Markdown, JSON, YAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text, markdown, json or yaml)", s)
}

// Render writes r to w in format f.
func Render(w io.Writer, r *Report, f Format) error {
	switch f {
	case Text, "":
		return writeTables(w, r, format.ASCII)
	case Markdown:
		return writeTables(w, r, format.Markdown)
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

func writeTables(w io.Writer, r *Report, mode format.Mode) error {
	var b strings.Builder
	heading := func(s string) {
		if mode == format.Markdown {
			fmt.Fprintf(&b, "## %s\n\n", s)
		} else {
			fmt.Fprintf(&b, "=== %s ===\n", s)
		}
	}
	table := func(t *format.Table) {
		b.WriteString(t.String())
		b.WriteString("\n\n")
	}

	if mode == format.Markdown {
		b.WriteString("# Verifier log analysis\n\n")
	} else {
		b.WriteString("Verifier log analysis\n\n")
	}
	fmt.Fprintf(&b, "Source: %s\n", format.OrNA(r.Source))
	fmt.Fprintf(&b, "Window: %s .. %s\n",
		format.Timestamp(r.Since, record.MinTime), format.Timestamp(r.Until, record.MaxTime))
	fmt.Fprintf(&b, "HCP filter: %s\n", r.HCPFilter)
	fmt.Fprintf(&b, "Rows read: %d (in window: %d, duplicates: %d)\n", r.RowsRead, r.RowsInWindow, r.Duplicates)
	fmt.Fprintf(&b, "Total deduplicated records: %d\n\n", r.Total)

	heading("Outcomes")
	outcomes := format.NewTable(mode).Header("Outcome", "Count").
		Columns(format.Column{Number: 2, Align: format.AlignRight})
	for _, oc := range r.Outcomes {
		outcomes.Row(oc.Outcome.String(), oc.Count)
	}
	outcomes.Footer("TOTAL", r.Total)
	table(outcomes)

	heading("Confusion matrix")
	table(format.NewTable(mode).
		Header("", "Detected positive", "Detected negative").
		Row("Actual positive", fmt.Sprintf("TP %d", r.Matrix.TP), fmt.Sprintf("FN %d", r.Matrix.FN)).
		Row("Actual negative", fmt.Sprintf("FP %d", r.Matrix.FP), fmt.Sprintf("TN %d", r.Matrix.TN)))

	heading("Metrics")
	metrics := format.NewTable(mode).Header("ID", "Metric", "Value", "Ratio").
		Columns(format.Column{Number: 3, Align: format.AlignRight}, format.Column{Number: 4, Align: format.AlignRight})
	for _, m := range r.Metrics {
		metrics.Row(m.ID, m.Name, m.Percent(), fmt.Sprintf("%d/%d", m.Numerator, m.Denominator))
	}
	table(metrics)

	heading(fmt.Sprintf("False positives (%d)", len(r.FalsePositives)))
	if len(r.FalsePositives) == 0 {
		b.WriteString("none\n\n")
	} else {
		fps := format.NewTable(mode).Header("Cluster", "HCP", "Record", "Log URL", "Endpoints")
		if mode == format.ASCII {
			fps.Columns(format.Column{Number: 4, MaxWidth: 60})
		}
		for _, fp := range r.FalsePositives {
			fps.Row(fp.ClusterID, fp.HCP, fp.Display, format.OrNA(fp.LogURL), strings.Join(fp.Endpoints, ", "))
		}
		table(fps)
	}

	heading("Egress failure endpoints")
	switch {
	case !r.LogsFetched:
		b.WriteString("logs not fetched (use --fetch-logs)\n")
	case len(r.Endpoints) == 0:
		b.WriteString("none\n")
	default:
		eps := format.NewTable(mode).Header("Endpoint", "False positives").
			Columns(format.Column{Number: 2, Align: format.AlignRight})
		for _, ep := range r.Endpoints {
			eps.Row(ep.Endpoint, ep.Count)
		}
		b.WriteString(eps.String())
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
