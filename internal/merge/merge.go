// Package merge folds every observation of one cluster into a single record.
//
// Field policies:
//
//	found_egress_failures   sticky-true: any true wins, then any false, else unknown
//	found_all_tests_passed  unanimity: any false wins, then any true, else unknown
//	found_verifier_s3_logs  any-true: same lattice as found_egress_failures
//	ocm_state, in-flight    most recent non-absent value by timestamp
//	log_download_url        most recent non-absent value by timestamp
//	cname                   earliest non-absent value by timestamp
//
// Unknown never overrides a definite value. Timestamp ties are broken by
// comparing the values themselves, so the result does not depend on the
// order observations are folded in. Re-adding an observation that was
// already folded is a no-op.
package merge

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/abyrne55/verifier-log-analysis/internal/record"
)

// ErrClusterMismatch is returned when an observation of another cluster
// is added to a record.
var ErrClusterMismatch = errors.New("observation belongs to a different cluster")

// Record is the cumulative knowledge about one cluster.
type Record struct {
	ClusterID         string                 `json:"cid" yaml:"cid"`
	ClusterName       string                 `json:"cname,omitempty" yaml:"cname,omitempty"`
	State             record.OCMState        `json:"ocm_state,omitempty" yaml:"ocm_state,omitempty"`
	InFlight          []record.InFlightState `json:"ocm_inflight_states,omitempty" yaml:"ocm_inflight_states,omitempty"`
	FoundVerifierLogs record.TriState        `json:"found_verifier_s3_logs" yaml:"found_verifier_s3_logs"`
	FoundAllPassed    record.TriState        `json:"found_all_tests_passed" yaml:"found_all_tests_passed"`
	FoundEgressFail   record.TriState        `json:"found_egress_failures" yaml:"found_egress_failures"`
	LogURL            string                 `json:"log_download_url,omitempty" yaml:"log_download_url,omitempty"`
	FirstSeen         time.Time              `json:"first_seen" yaml:"first_seen"`
	LastSeen          time.Time              `json:"last_seen" yaml:"last_seen"`

	nameAt     time.Time
	stateAt    time.Time
	inFlightAt time.Time
	urlAt      time.Time
	seeded     bool
	seen       map[string]struct{}
}

// New starts a record from the first observation of a cluster.
func New(o record.Observation) *Record {
	r := &Record{ClusterID: o.ClusterID, seen: make(map[string]struct{})}
	r.fold(o)
	return r
}

// Add folds o into r. It reports false when o was already folded.
func (r *Record) Add(o record.Observation) (bool, error) {
	if o.ClusterID != r.ClusterID {
		return false, fmt.Errorf("%w: record %s, observation %s", ErrClusterMismatch, r.ClusterID, o.ClusterID)
	}
	if _, dup := r.seen[o.Fingerprint()]; dup {
		return false, nil
	}
	r.fold(o)
	return true, nil
}

// Observations returns the number of distinct observations folded into r.
func (r *Record) Observations() int { return len(r.seen) }

func (r *Record) fold(o record.Observation) {
	r.seen[o.Fingerprint()] = struct{}{}
	ts := o.Timestamp

	if !r.seeded || ts.Before(r.FirstSeen) {
		r.FirstSeen = ts
	}
	if !r.seeded || ts.After(r.LastSeen) {
		r.LastSeen = ts
	}
	r.seeded = true

	r.FoundEgressFail = anyTrue(r.FoundEgressFail, o.FoundEgressFail)
	r.FoundVerifierLogs = anyTrue(r.FoundVerifierLogs, o.FoundVerifierLogs)
	r.FoundAllPassed = unanimous(r.FoundAllPassed, o.FoundAllPassed)

	if o.ClusterName != "" && (r.ClusterName == "" || ts.Before(r.nameAt) ||
		(ts.Equal(r.nameAt) && o.ClusterName < r.ClusterName)) {
		r.ClusterName, r.nameAt = o.ClusterName, ts
	}
	if o.State != "" && newer(string(r.State), r.stateAt, string(o.State), ts) {
		r.State, r.stateAt = o.State, ts
	}
	if o.LogURL != "" && newer(r.LogURL, r.urlAt, o.LogURL, ts) {
		r.LogURL, r.urlAt = o.LogURL, ts
	}
	if o.InFlight != nil && (r.InFlight == nil || newer(joinStates(r.InFlight), r.inFlightAt, joinStates(o.InFlight), ts)) {
		r.InFlight, r.inFlightAt = slices.Clone(o.InFlight), ts
	}
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	c.InFlight = slices.Clone(r.InFlight)
	c.seen = make(map[string]struct{}, len(r.seen))
	for k := range r.seen {
		c.seen[k] = struct{}{}
	}
	return &c
}

// String renders r the way the analysis report lists records.
func (r *Record) String() string {
	name := r.ClusterName
	if name == "" {
		name = r.ClusterID
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<CVR.%s %s", name, r.State)
	if r.InFlight != nil {
		b.WriteString(" [")
		for _, s := range r.InFlight {
			b.WriteString(string(s))
			b.WriteByte(',')
		}
		b.WriteByte(']')
	}
	b.WriteByte('>')
	return b.String()
}

func anyTrue(a, b record.TriState) record.TriState {
	switch {
	case a == record.True || b == record.True:
		return record.True
	case a == record.False || b == record.False:
		return record.False
	default:
		return record.Unknown
	}
}

func unanimous(a, b record.TriState) record.TriState {
	switch {
	case a == record.False || b == record.False:
		return record.False
	case a == record.True || b == record.True:
		return record.True
	default:
		return record.Unknown
	}
}

// newer reports whether the candidate value should replace the current one
// under the most-recent-wins policy.
func newer(cur string, curAt time.Time, cand string, candAt time.Time) bool {
	if cur == "" {
		return true
	}
	if candAt.Equal(curAt) {
		return cand > cur
	}
	return candAt.After(curAt)
}

func joinStates(ss []record.InFlightState) string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = string(s)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
