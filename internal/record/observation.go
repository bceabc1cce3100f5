// Package record parses verifier cron job rows into typed observations.
//
// One row is one verification run against one cluster. Rows are validated
// strictly: a missing cluster id, a malformed timestamp, an unknown
// enumerated state or a non-boolean token in a boolean column is a
// *ParseError. Only the log URL is lenient; a malformed URL is dropped.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Input column names.
const (
	ColTimestamp         = "timestamp"
	ColClusterID         = "cid"
	ColClusterName       = "cname"
	ColOCMState          = "ocm_state"
	ColInFlightStates    = "ocm_inflight_states"
	ColFoundVerifierLogs = "found_verifier_s3_logs"
	ColFoundAllPassed    = "found_all_tests_passed"
	ColFoundEgressFail   = "found_egress_failures"
	ColLogDownloadURL    = "log_download_url"
)

// Columns lists every input column in canonical order.
var Columns = []string{
	ColTimestamp, ColClusterID, ColClusterName, ColOCMState, ColInFlightStates,
	ColFoundVerifierLogs, ColFoundAllPassed, ColFoundEgressFail, ColLogDownloadURL,
}

var (
	ErrMissingClusterID     = errors.New("cluster id is required")
	ErrInvalidTimestamp     = errors.New("invalid ISO-8601 timestamp")
	ErrUnknownOCMState      = errors.New("unknown cluster state")
	ErrUnknownInFlightState = errors.New("unknown in-flight check state")
	ErrInvalidInFlightList  = errors.New("in-flight states must be a JSON list of strings")
	ErrInvalidBool          = errors.New("expected true, false or blank")
)

// ParseError describes a row that could not be turned into an Observation.
type ParseError struct {
	Line  int // 1-based input line; 0 when the row did not come from a file
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: field %s=%q: %v", e.Line, e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Row holds the raw string fields of one input row keyed by column name.
// Absent keys read as blank.
type Row map[string]string

// Observation is one parsed verifier run. Optional fields use their zero
// value for "absent"; InFlight is nil when absent and empty when the run
// recorded an empty list.
type Observation struct {
	Timestamp         time.Time       `json:"timestamp" yaml:"timestamp"`
	ClusterID         string          `json:"cid" yaml:"cid"`
	ClusterName       string          `json:"cname,omitempty" yaml:"cname,omitempty"`
	State             OCMState        `json:"ocm_state,omitempty" yaml:"ocm_state,omitempty"`
	InFlight          []InFlightState `json:"ocm_inflight_states,omitempty" yaml:"ocm_inflight_states,omitempty"`
	FoundVerifierLogs TriState        `json:"found_verifier_s3_logs" yaml:"found_verifier_s3_logs"`
	FoundAllPassed    TriState        `json:"found_all_tests_passed" yaml:"found_all_tests_passed"`
	FoundEgressFail   TriState        `json:"found_egress_failures" yaml:"found_egress_failures"`
	LogURL            string          `json:"log_download_url,omitempty" yaml:"log_download_url,omitempty"`
}

// Before orders observations by timestamp.
func (o Observation) Before(other Observation) bool { return o.Timestamp.Before(other.Timestamp) }

// Fingerprint identifies an observation by content. Two rows with the same
// fingerprint are the same run recorded twice.
func (o Observation) Fingerprint() string {
	var b strings.Builder
	b.WriteString(o.Timestamp.UTC().Format(time.RFC3339Nano))
	for _, s := range []string{o.ClusterID, o.ClusterName, string(o.State), o.LogURL} {
		b.WriteByte('\x1f')
		b.WriteString(s)
	}
	b.WriteByte('\x1f')
	if o.InFlight == nil {
		b.WriteByte('-')
	}
	for _, s := range o.InFlight {
		b.WriteString(string(s))
		b.WriteByte(',')
	}
	fmt.Fprintf(&b, "\x1f%d%d%d", o.FoundVerifierLogs, o.FoundAllPassed, o.FoundEgressFail)
	return b.String()
}

// Parse validates one raw row.
func Parse(row Row) (Observation, error) {
	var o Observation

	raw := row[ColTimestamp]
	ts, err := ParseTime(raw)
	if err != nil {
		return o, &ParseError{Field: ColTimestamp, Value: raw, Err: err}
	}
	o.Timestamp = ts

	o.ClusterID = strings.TrimSpace(row[ColClusterID])
	if isNully(o.ClusterID) {
		return o, &ParseError{Field: ColClusterID, Value: row[ColClusterID], Err: ErrMissingClusterID}
	}

	if name := strings.TrimSpace(row[ColClusterName]); !isNully(name) {
		o.ClusterName = name
	}

	if raw := row[ColOCMState]; !isNully(raw) {
		if o.State, err = ParseOCMState(raw); err != nil {
			return o, &ParseError{Field: ColOCMState, Value: raw, Err: err}
		}
	}

	if raw := row[ColInFlightStates]; !isNully(raw) {
		if o.InFlight, err = parseInFlightList(raw); err != nil {
			return o, &ParseError{Field: ColInFlightStates, Value: raw, Err: err}
		}
	}

	for _, f := range []struct {
		col string
		dst *TriState
	}{
		{ColFoundVerifierLogs, &o.FoundVerifierLogs},
		{ColFoundAllPassed, &o.FoundAllPassed},
		{ColFoundEgressFail, &o.FoundEgressFail},
	} {
		if *f.dst, err = ParseTriState(row[f.col]); err != nil {
			return o, &ParseError{Field: f.col, Value: row[f.col], Err: err}
		}
	}

	if raw := strings.TrimSpace(row[ColLogDownloadURL]); IsValidURL(raw) {
		o.LogURL = raw
	}
	return o, nil
}

func parseInFlightList(raw string) ([]InFlightState, error) {
	var names []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &names); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInFlightList, err)
	}
	out := make([]InFlightState, 0, len(names))
	for _, n := range names {
		st, err := ParseInFlightState(n)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// IsValidURL reports whether s is an absolute http(s) URL with a host.
func IsValidURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isNully reports whether an optional string field carries no value.
func isNully(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "null":
		return true
	}
	return false
}
