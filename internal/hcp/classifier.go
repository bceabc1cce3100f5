// Package hcp answers whether a cluster uses the hosted-control-plane
// topology. Answers come from an external service and are memoized for the
// lifetime of one Classifier, which the caller owns for one run.
package hcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Lookuper performs the external topology lookup for one cluster.
type Lookuper interface {
	IsHostedCluster(ctx context.Context, clusterID string) (bool, error)
}

// LookupFunc adapts a function to Lookuper.
type LookupFunc func(ctx context.Context, clusterID string) (bool, error)

func (f LookupFunc) IsHostedCluster(ctx context.Context, clusterID string) (bool, error) {
	return f(ctx, clusterID)
}

// LookupError reports a failed topology lookup. A failed lookup is never
// read as "not hosted".
type LookupError struct {
	ClusterID string
	Err       error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("hcp lookup for cluster %s: %v", e.ClusterID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

type answer struct {
	hosted bool
	err    error
}

// Classifier memoizes lookups. At most one external call is executed per
// cluster id, failures included: a failed id keeps returning the same
// LookupError and is not retried.
type Classifier struct {
	lookup Lookuper
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]answer
	group singleflight.Group
	calls atomic.Int64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// NewClassifier returns an empty classifier backed by l.
func NewClassifier(l Lookuper, opts ...Option) *Classifier {
	c := &Classifier{
		lookup: l,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:  make(map[string]answer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsHostedControlPlane returns the cached answer for clusterID, performing
// the external lookup on first use. Concurrent callers for the same id
// share one call.
func (c *Classifier) IsHostedControlPlane(ctx context.Context, clusterID string) (bool, error) {
	if a, ok := c.cached(clusterID); ok {
		return a.hosted, a.err
	}
	v, _, _ := c.group.Do(clusterID, func() (any, error) {
		// A caller that missed the cache may arrive after another flight for
		// the same id already finished.
		if a, ok := c.cached(clusterID); ok {
			return a, nil
		}
		c.calls.Add(1)
		hosted, err := c.lookup.IsHostedCluster(ctx, clusterID)
		a := answer{hosted: hosted}
		if err != nil {
			a.err = &LookupError{ClusterID: clusterID, Err: err}
			c.logger.WarnContext(ctx, "hcp lookup failed", "cid", clusterID, "error", err)
		} else {
			c.logger.DebugContext(ctx, "hcp lookup", "cid", clusterID, "hosted", hosted)
		}
		c.mu.Lock()
		c.cache[clusterID] = a
		c.mu.Unlock()
		return a, nil
	})
	a := v.(answer)
	return a.hosted, a.err
}

func (c *Classifier) cached(clusterID string) (answer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.cache[clusterID]
	return a, ok
}

// Prefetch resolves ids with at most parallel lookups in flight and returns
// the first LookupError encountered.
func (c *Classifier) Prefetch(ctx context.Context, ids []string, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := c.IsHostedControlPlane(gctx, id)
			return err
		})
	}
	return g.Wait()
}

// Resolve looks up every id like Prefetch but does not stop at the first
// failure. It returns all LookupErrors joined.
func (c *Classifier) Resolve(ctx context.Context, ids []string, parallel int) error {
	if parallel < 1 {
		parallel = 1
	}
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(parallel)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := c.IsHostedControlPlane(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Calls returns the number of external lookups executed so far.
func (c *Classifier) Calls() int64 { return c.calls.Load() }

// Len returns the number of cached answers.
func (c *Classifier) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
