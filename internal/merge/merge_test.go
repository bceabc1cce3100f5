package merge

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abyrne55/verifier-log-analysis/internal/record"
)

var t0 = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

func obs(hours int, mut func(*record.Observation)) record.Observation {
	o := record.Observation{
		Timestamp:         t0.Add(time.Duration(hours) * time.Hour),
		ClusterID:         "c1",
		FoundVerifierLogs: record.True,
		FoundAllPassed:    record.True,
		FoundEgressFail:   record.False,
	}
	if mut != nil {
		mut(&o)
	}
	return o
}

var cmpRecord = cmp.AllowUnexported(Record{})

func fold(t *testing.T, os ...record.Observation) *Record {
	t.Helper()
	r := New(os[0])
	for _, o := range os[1:] {
		if _, err := r.Add(o); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	return r
}

func permutations(in []record.Observation) [][]record.Observation {
	if len(in) <= 1 {
		return [][]record.Observation{append([]record.Observation(nil), in...)}
	}
	var out [][]record.Observation
	for i := range in {
		rest := make([]record.Observation, 0, len(in)-1)
		rest = append(rest, in[:i]...)
		rest = append(rest, in[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]record.Observation{in[i]}, p...))
		}
	}
	return out
}

func TestAdd_Idempotent(t *testing.T) {
	a := obs(0, func(o *record.Observation) { o.ClusterName = "alpha"; o.State = record.StateInstalling })
	b := obs(2, func(o *record.Observation) {
		o.FoundEgressFail = record.True
		o.FoundAllPassed = record.False
		o.State = record.StateReady
		o.InFlight = []record.InFlightState{record.InFlightFailed}
		o.LogURL = "https://logs.example.com/b"
	})

	r := fold(t, a, b)
	want := r.Clone()

	added, err := r.Add(b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added {
		t.Error("re-adding the same observation should report false")
	}
	if diff := cmp.Diff(want, r, cmpRecord); diff != "" {
		t.Errorf("merge(merge(a,b),b) != merge(a,b) (-want +got):\n%s", diff)
	}
	if r.Observations() != 2 {
		t.Errorf("Observations() = %d, want 2", r.Observations())
	}
}

func TestFold_OrderIndependent(t *testing.T) {
	set := []record.Observation{
		obs(0, func(o *record.Observation) { o.ClusterName = "first"; o.State = record.StateValidating }),
		obs(1, func(o *record.Observation) { o.FoundEgressFail = record.True; o.LogURL = "https://l/1" }),
		obs(2, func(o *record.Observation) {
			o.FoundAllPassed = record.False
			o.InFlight = []record.InFlightState{record.InFlightPassed}
		}),
		obs(3, func(o *record.Observation) {
			o.ClusterName = "renamed"
			o.FoundVerifierLogs = record.Unknown
			o.FoundAllPassed = record.Unknown
			o.FoundEgressFail = record.Unknown
			o.State = record.StateReady
		}),
		// Same instant as the previous row with a different state: the tie-break
		// must not depend on fold order.
		obs(3, func(o *record.Observation) { o.State = record.StateError }),
	}

	var want *Record
	for _, p := range permutations(set) {
		got := fold(t, p...)
		if want == nil {
			want = got
			continue
		}
		if diff := cmp.Diff(want, got, cmpRecord); diff != "" {
			t.Fatalf("fold order changed result (-first +this):\n%s", diff)
		}
	}

	if want.FoundEgressFail != record.True {
		t.Errorf("FoundEgressFail = %v, want sticky true", want.FoundEgressFail)
	}
	if want.FoundAllPassed != record.False {
		t.Errorf("FoundAllPassed = %v, want false", want.FoundAllPassed)
	}
	if want.FoundVerifierLogs != record.True {
		t.Errorf("FoundVerifierLogs = %v, want true", want.FoundVerifierLogs)
	}
	if want.ClusterName != "first" {
		t.Errorf("ClusterName = %q, want first non-empty", want.ClusterName)
	}
	if want.State != record.StateReady {
		t.Errorf("State = %q, want the lexically greater of the tied latest states", want.State)
	}
	if want.LogURL != "https://l/1" {
		t.Errorf("LogURL = %q, want the only URL seen", want.LogURL)
	}
	if !want.FirstSeen.Equal(t0) || !want.LastSeen.Equal(t0.Add(3*time.Hour)) {
		t.Errorf("seen window = [%v, %v]", want.FirstSeen, want.LastSeen)
	}
}

func TestFold_SeenWindowAtMinTime(t *testing.T) {
	at := func(ts time.Time) record.Observation {
		return record.Observation{Timestamp: ts, ClusterID: "c1"}
	}
	early, late := at(record.MinTime), at(record.MinTime.Add(time.Hour))
	for _, order := range [][]record.Observation{{early, late}, {late, early}} {
		r := fold(t, order...)
		if !r.FirstSeen.Equal(record.MinTime) || !r.LastSeen.Equal(late.Timestamp) {
			t.Errorf("seen window = [%v, %v], want [%v, %v]", r.FirstSeen, r.LastSeen, record.MinTime, late.Timestamp)
		}
	}
}

func TestFold_TriStatePolicies(t *testing.T) {
	u, f, tr := record.Unknown, record.False, record.True
	tests := []struct {
		name          string
		a, b          record.TriState
		wantEgress    record.TriState
		wantAllPassed record.TriState
	}{
		{"unknown+unknown", u, u, u, u},
		{"unknown+false", u, f, f, f},
		{"unknown+true", u, tr, tr, tr},
		{"false+false", f, f, f, f},
		{"true+false", tr, f, tr, f},
		{"true+true", tr, tr, tr, tr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := obs(0, func(o *record.Observation) {
				o.FoundEgressFail, o.FoundAllPassed, o.FoundVerifierLogs = tc.a, tc.a, tc.a
			})
			b := obs(1, func(o *record.Observation) {
				o.FoundEgressFail, o.FoundAllPassed, o.FoundVerifierLogs = tc.b, tc.b, tc.b
			})
			r := fold(t, a, b)
			if r.FoundEgressFail != tc.wantEgress {
				t.Errorf("FoundEgressFail = %v, want %v", r.FoundEgressFail, tc.wantEgress)
			}
			if r.FoundVerifierLogs != tc.wantEgress {
				t.Errorf("FoundVerifierLogs = %v, want %v", r.FoundVerifierLogs, tc.wantEgress)
			}
			if r.FoundAllPassed != tc.wantAllPassed {
				t.Errorf("FoundAllPassed = %v, want %v", r.FoundAllPassed, tc.wantAllPassed)
			}
		})
	}
}

func TestFold_MostRecentLiveSignals(t *testing.T) {
	older := obs(0, func(o *record.Observation) {
		o.State = record.StateInstalling
		o.InFlight = []record.InFlightState{record.InFlightRunning}
		o.LogURL = "https://l/old"
	})
	newer := obs(5, func(o *record.Observation) {
		o.State = record.StateReady
		o.InFlight = []record.InFlightState{record.InFlightPassed}
		o.LogURL = "https://l/new"
	})
	blank := obs(9, nil)

	r := fold(t, newer, older, blank)
	if r.State != record.StateReady {
		t.Errorf("State = %q, want ready", r.State)
	}
	if diff := cmp.Diff([]record.InFlightState{record.InFlightPassed}, r.InFlight); diff != "" {
		t.Errorf("InFlight mismatch:\n%s", diff)
	}
	if r.LogURL != "https://l/new" {
		t.Errorf("LogURL = %q, want newest", r.LogURL)
	}
}

func TestAdd_ClusterMismatch(t *testing.T) {
	r := New(obs(0, nil))
	_, err := r.Add(obs(1, func(o *record.Observation) { o.ClusterID = "other" }))
	if !errors.Is(err, ErrClusterMismatch) {
		t.Fatalf("expected ErrClusterMismatch, got %v", err)
	}
}

func TestIndex_IdenticalRowsCollapse(t *testing.T) {
	for _, n := range []int{1, 2, 10} {
		x := NewIndex()
		for i := 0; i < n; i++ {
			x.Add(obs(0, nil))
		}
		if x.Len() != 1 {
			t.Errorf("n=%d: Len() = %d, want 1", n, x.Len())
		}
		if x.Duplicates() != n-1 {
			t.Errorf("n=%d: Duplicates() = %d, want %d", n, x.Duplicates(), n-1)
		}
	}
}

func TestIndex_FirstSeenOrder(t *testing.T) {
	x := NewIndex()
	for _, id := range []string{"b", "a", "b", "c", "a"} {
		x.Add(obs(0, func(o *record.Observation) { o.ClusterID = id }))
	}
	if diff := cmp.Diff([]string{"b", "a", "c"}, x.ClusterIDs()); diff != "" {
		t.Errorf("ClusterIDs mismatch:\n%s", diff)
	}
	if r, ok := x.Get("a"); !ok || r.ClusterID != "a" {
		t.Errorf("Get(a) = %v, %v", r, ok)
	}
}

func TestRecord_String(t *testing.T) {
	r := New(obs(0, func(o *record.Observation) {
		o.State = record.StateReady
		o.InFlight = []record.InFlightState{record.InFlightPassed, record.InFlightFailed}
	}))
	if got, want := r.String(), "<CVR.c1 ready [passed,failed,]>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	r.ClusterName = "named"
	r.InFlight = nil
	if got, want := r.String(), "<CVR.named ready>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
