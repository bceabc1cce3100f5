package hcp

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClassifier_CachesPerID(t *testing.T) {
	var calls atomic.Int32
	c := NewClassifier(LookupFunc(func(_ context.Context, id string) (bool, error) {
		calls.Add(1)
		return id == "hosted", nil
	}))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		got, err := c.IsHostedControlPlane(ctx, "hosted")
		if err != nil || !got {
			t.Fatalf("hosted: got %v, %v", got, err)
		}
		got, err = c.IsHostedControlPlane(ctx, "classic")
		if err != nil || got {
			t.Fatalf("classic: got %v, %v", got, err)
		}
	}
	if calls.Load() != 2 {
		t.Errorf("external calls = %d, want 2", calls.Load())
	}
	if c.Calls() != 2 || c.Len() != 2 {
		t.Errorf("Calls() = %d, Len() = %d, want 2, 2", c.Calls(), c.Len())
	}
}

func TestClassifier_ConcurrentCallersShareOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewClassifier(LookupFunc(func(_ context.Context, _ string) (bool, error) {
		calls.Add(1)
		<-release
		return true, nil
	}))

	const callers = 20
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := c.IsHostedControlPlane(context.Background(), "same")
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
			}
			results[i] = got
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("external calls = %d, want 1", calls.Load())
	}
	for i, r := range results {
		if !r {
			t.Errorf("caller %d saw false", i)
		}
	}
}

func TestClassifier_FailureSurfacedAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("connection refused")
	c := NewClassifier(LookupFunc(func(_ context.Context, _ string) (bool, error) {
		calls.Add(1)
		return false, boom
	}))

	for i := 0; i < 3; i++ {
		_, err := c.IsHostedControlPlane(context.Background(), "c1")
		var le *LookupError
		if !errors.As(err, &le) {
			t.Fatalf("expected *LookupError, got %v", err)
		}
		if le.ClusterID != "c1" || !errors.Is(err, boom) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("external calls = %d, want 1 (no retry)", calls.Load())
	}
}

func TestClassifier_Prefetch(t *testing.T) {
	var calls atomic.Int32
	c := NewClassifier(LookupFunc(func(_ context.Context, id string) (bool, error) {
		calls.Add(1)
		return len(id) > 2, nil
	}))
	ids := []string{"a", "bbb", "cc", "dddd", "a", "bbb"}
	if err := c.Prefetch(context.Background(), ids, 3); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("external calls = %d, want 4 unique", calls.Load())
	}
	got, _ := c.IsHostedControlPlane(context.Background(), "dddd")
	if !got {
		t.Error("dddd should be hosted")
	}
	if calls.Load() != 4 {
		t.Error("cached answer should not trigger another call")
	}
}

func TestClassifier_PrefetchReturnsLookupError(t *testing.T) {
	c := NewClassifier(LookupFunc(func(_ context.Context, id string) (bool, error) {
		if id == "bad" {
			return false, errors.New("503")
		}
		return false, nil
	}))
	err := c.Prefetch(context.Background(), []string{"ok", "bad"}, 1)
	var le *LookupError
	if !errors.As(err, &le) || le.ClusterID != "bad" {
		t.Fatalf("expected LookupError for bad, got %v", err)
	}
}

func TestClassifier_ResolveKeepsGoing(t *testing.T) {
	c := NewClassifier(LookupFunc(func(ctx context.Context, id string) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if id == "bad1" || id == "bad2" {
			return false, errors.New("404")
		}
		return id == "hosted", nil
	}))
	err := c.Resolve(context.Background(), []string{"bad1", "hosted", "bad2", "classic"}, 1)
	if err == nil {
		t.Fatal("expected joined error")
	}
	for _, id := range []string{"bad1", "bad2"} {
		if !strings.Contains(err.Error(), id) {
			t.Errorf("joined error misses %s: %v", id, err)
		}
	}
	// Failures did not cancel the remaining lookups.
	if hosted, err := c.IsHostedControlPlane(context.Background(), "hosted"); err != nil || !hosted {
		t.Errorf("hosted = %v, %v", hosted, err)
	}
	if c.Calls() != 4 {
		t.Errorf("Calls() = %d, want 4", c.Calls())
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		in           string
		want         Filter
		keepHosted   bool
		keepClassic  bool
		needsLookups bool
	}{
		{"", All, true, true, false},
		{"only", Only, true, false, true},
		{"EXCLUDE", Exclude, false, true, true},
	}
	for _, tc := range tests {
		f, err := ParseFilter(tc.in)
		if err != nil {
			t.Fatalf("ParseFilter(%q): %v", tc.in, err)
		}
		if f != tc.want || f.Keep(true) != tc.keepHosted || f.Keep(false) != tc.keepClassic || f.NeedsLookup() != tc.needsLookups {
			t.Errorf("ParseFilter(%q) = %v with unexpected behavior", tc.in, f)
		}
	}
	if _, err := ParseFilter("sometimes"); err == nil {
		t.Error("expected error for unknown filter")
	}
}
