package report

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/abyrne55/verifier-log-analysis/internal/outcome"
	"github.com/abyrne55/verifier-log-analysis/internal/pipeline"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
	"github.com/abyrne55/verifier-log-analysis/internal/stats"
)

const csvHeader = "timestamp,cid,cname,ocm_state,ocm_inflight_states,found_verifier_s3_logs,found_all_tests_passed,found_egress_failures,log_download_url\n"

func run(t *testing.T, csv string) *pipeline.Result {
	t.Helper()
	src, err := record.NewReader(strings.NewReader(csvHeader + csv))
	if err != nil {
		t.Fatal(err)
	}
	p, err := pipeline.New(pipeline.Config{})
	if err != nil {
		t.Fatal(err)
	}
	res, err := p.Run(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

var generated = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func sample(t *testing.T) *Report {
	t.Helper()
	res := run(t,
		"2023-06-01T00:00:00Z,c1,tp,ready,,true,false,true,\n"+
			"2023-06-01T00:00:00Z,c2,tn,ready,,true,true,false,\n"+
			"2023-06-01T00:00:00Z,c3,fp,ready,\"[\"\"failed\"\"]\",true,false,false,https://logs.example.com/c3\n"+
			"2023-06-01T00:00:00Z,c3,fp,ready,\"[\"\"failed\"\"]\",true,false,false,https://logs.example.com/c3\n")
	res.Hosted = map[string]bool{"c3": true}
	res.Endpoints = map[string][]string{"c3": {"quay.io:443"}}
	return Build(res, Meta{Source: "cron.csv", GeneratedAt: generated})
}

func TestBuild(t *testing.T) {
	r := sample(t)

	if r.Total != 3 || r.RowsRead != 4 || r.Duplicates != 1 {
		t.Errorf("total=%d rows=%d duplicates=%d", r.Total, r.RowsRead, r.Duplicates)
	}
	if !r.Since.Equal(record.MinTime) || !r.Until.Equal(record.MaxTime) {
		t.Errorf("default window not applied: %v .. %v", r.Since, r.Until)
	}
	wantOutcomes := []OutcomeCount{
		{outcome.TruePositive, 1}, {outcome.TrueNegative, 1}, {outcome.FalsePositive, 1},
		{outcome.FalseNegative, 0}, {outcome.Unknown, 0},
	}
	if diff := cmp.Diff(wantOutcomes, r.Outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
	wantFP := []FalsePositive{{
		ClusterID:   "c3",
		ClusterName: "fp",
		State:       record.StateReady,
		Display:     "<CVR.fp ready [failed,]>",
		HCP:         "true",
		LogURL:      "https://logs.example.com/c3",
		Endpoints:   []string{"quay.io:443"},
	}}
	if diff := cmp.Diff(wantFP, r.FalsePositives); diff != "" {
		t.Errorf("false positives mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]stats.EndpointCount{{Endpoint: "quay.io:443", Count: 1}}, r.Endpoints); diff != "" {
		t.Errorf("endpoints mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_HCPNotLookedUp(t *testing.T) {
	res := run(t, "2023-06-01T00:00:00Z,c3,,ready,,true,false,false,\n")
	r := Build(res, Meta{})
	if len(r.FalsePositives) != 1 || r.FalsePositives[0].HCP != "n/a" {
		t.Errorf("false positives = %+v", r.FalsePositives)
	}
	if r.LogsFetched || len(r.Endpoints) != 0 {
		t.Errorf("no endpoints expected without fetched logs: %+v", r.Endpoints)
	}
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sample(t), Text); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Total deduplicated records: 3",
		"Window: - .. -",
		"TRUE_POSITIVE",
		"TP 1",
		"Precision",
		"50.0%",
		"<CVR.fp ready [failed,]>",
		"quay.io:443",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in text report:\n%s", want, out)
		}
	}
}

func TestRender_UndefinedMetrics(t *testing.T) {
	var buf bytes.Buffer
	r := Build(run(t, ""), Meta{})
	if err := Render(&buf, r, Markdown); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "| FDR") || !strings.Contains(out, "undefined") {
		t.Errorf("expected undefined FDR row:\n%s", out)
	}
	if !strings.Contains(out, "Total deduplicated records: 0") {
		t.Errorf("expected empty total:\n%s", out)
	}
	if !strings.Contains(out, "logs not fetched") {
		t.Errorf("expected fetch hint:\n%s", out)
	}
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Render(&buf, sample(t), JSON); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Total    int `json:"total_records"`
		Outcomes []struct {
			Outcome string `json:"outcome"`
			Count   int    `json:"count"`
		} `json:"outcomes"`
		Metrics []stats.Metric `json:"metrics"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if got.Total != 3 || got.Outcomes[2].Outcome != "FALSE_POSITIVE" {
		t.Errorf("unexpected JSON: %+v", got)
	}
	if got.Metrics[0].ID != "FDR" || got.Metrics[0].Value == nil || *got.Metrics[0].Value != 0.5 {
		t.Errorf("unexpected FDR: %+v", got.Metrics[0])
	}
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := Build(run(t, ""), Meta{})
	if err := Render(&buf, r, YAML); err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, buf.String())
	}
	if got["total_records"] != 0 || got["hcp_filter"] != "all" {
		t.Errorf("unexpected YAML: %v", got)
	}
	metrics := got["metrics"].([]any)
	if first := metrics[0].(map[string]any); first["value"] != nil {
		t.Errorf("undefined metric should encode as null, got %v", first["value"])
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		if got, err := ParseFormat(string(f)); err != nil || got != f {
			t.Errorf("ParseFormat(%q) = %q, %v", f, got, err)
		}
	}
	if got, _ := ParseFormat("MD"); got != Markdown {
		t.Errorf("ParseFormat(MD) = %q", got)
	}
	if _, err := ParseFormat("html"); err == nil {
		t.Error("expected error for html")
	}
}
