// Package pipeline runs one analysis: parse, merge, filter, classify,
// aggregate. Every stage takes its input explicitly and nothing is shared
// between runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/abyrne55/verifier-log-analysis/internal/egress"
	"github.com/abyrne55/verifier-log-analysis/internal/hcp"
	"github.com/abyrne55/verifier-log-analysis/internal/merge"
	"github.com/abyrne55/verifier-log-analysis/internal/outcome"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
	"github.com/abyrne55/verifier-log-analysis/internal/stats"
)

// Source yields observations until io.EOF. *record.Reader is a Source.
type Source interface {
	Read() (record.Observation, error)
}

// Config selects which observations and clusters are analyzed.
type Config struct {
	// Since and Until bound observation timestamps inclusively. Zero values
	// mean record.MinTime and record.MaxTime.
	Since    time.Time
	Until    time.Time
	HCP      hcp.Filter
	Parallel int
}

// Window returns the effective inclusive bounds.
func (c Config) Window() (since, until time.Time) {
	since, until = c.Since, c.Until
	if since.IsZero() {
		since = record.MinTime
	}
	if until.IsZero() {
		until = record.MaxTime
	}
	return since, until
}

// Result is everything the report needs from one run.
type Result struct {
	RowsRead     int
	RowsInWindow int
	Duplicates   int
	Merged       int // clusters seen in the window, before topology filtering
	Records      []*merge.Record
	Tally        stats.Tally
	Counts       stats.Counts
	Metrics      stats.Metrics

	// Hosted holds topology answers for clusters that were looked up.
	Hosted map[string]bool
	// Endpoints maps false-positive cluster ids to the egress endpoints in
	// their verifier log. Nil when logs were not fetched.
	Endpoints map[string][]string
}

// Pipeline wires the stages with optional external collaborators.
type Pipeline struct {
	cfg        Config
	classifier *hcp.Classifier
	fetcher    *egress.Fetcher
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClassifier enables topology lookups. Required when the config
// filters by topology; otherwise it only annotates false positives.
func WithClassifier(c *hcp.Classifier) Option { return func(p *Pipeline) { p.classifier = c } }

// WithEndpointFetcher enables downloading false-positive verifier logs.
func WithEndpointFetcher(f *egress.Fetcher) Option { return func(p *Pipeline) { p.fetcher = f } }

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// New validates cfg and returns a Pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(p)
	}
	since, until := cfg.Window()
	if since.After(until) {
		return nil, fmt.Errorf("invalid window: since %s is after until %s",
			since.Format(time.RFC3339), until.Format(time.RFC3339))
	}
	if cfg.HCP.NeedsLookup() && p.classifier == nil {
		return nil, errors.New("hcp filter requires a topology classifier")
	}
	if p.cfg.Parallel < 1 {
		p.cfg.Parallel = 1
	}
	return p, nil
}

// Run consumes src and produces the analysis result.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Result, error) {
	res := &Result{}

	idx, err := p.ingest(src, res)
	if err != nil {
		return nil, err
	}
	res.Merged = idx.Len()
	res.Duplicates = idx.Duplicates()
	p.logger.InfoContext(ctx, "merged observations",
		"rows", res.RowsRead, "in_window", res.RowsInWindow, "clusters", res.Merged, "duplicates", res.Duplicates)

	res.Records, err = p.filterTopology(ctx, idx.Records(), res)
	if err != nil {
		return nil, err
	}

	res.Tally = Classify(res.Records)
	res.Counts = res.Tally.Counts()
	res.Metrics = stats.Compute(res.Counts)

	if err := p.annotateFalsePositives(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// ingest reads every row, drops rows outside the window and folds the rest
// by cluster id. The first malformed row aborts the run.
func (p *Pipeline) ingest(src Source, res *Result) (*merge.Index, error) {
	since, until := p.cfg.Window()
	idx := merge.NewIndex()
	for {
		o, err := src.Read()
		if errors.Is(err, io.EOF) {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}
		res.RowsRead++
		if o.Timestamp.Before(since) || o.Timestamp.After(until) {
			continue
		}
		res.RowsInWindow++
		idx.Add(o)
	}
}

func (p *Pipeline) filterTopology(ctx context.Context, recs []*merge.Record, res *Result) ([]*merge.Record, error) {
	if !p.cfg.HCP.NeedsLookup() {
		return recs, nil
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ClusterID
	}
	if err := p.classifier.Prefetch(ctx, ids, p.cfg.Parallel); err != nil {
		return nil, err
	}
	res.Hosted = make(map[string]bool, len(recs))
	kept := make([]*merge.Record, 0, len(recs))
	for _, r := range recs {
		hosted, err := p.classifier.IsHostedControlPlane(ctx, r.ClusterID)
		if err != nil {
			return nil, err
		}
		res.Hosted[r.ClusterID] = hosted
		if p.cfg.HCP.Keep(hosted) {
			kept = append(kept, r)
		}
	}
	p.logger.InfoContext(ctx, "applied hcp filter", "filter", p.cfg.HCP.String(),
		"kept", len(kept), "dropped", len(recs)-len(kept), "lookups", p.classifier.Calls())
	return kept, nil
}

// Classify buckets each record by outcome.
func Classify(recs []*merge.Record) stats.Tally {
	t := stats.NewTally()
	for _, r := range recs {
		t.Add(outcome.Classify(r), r)
	}
	return t
}

func (p *Pipeline) annotateFalsePositives(ctx context.Context, res *Result) error {
	fps := res.Tally[outcome.FalsePositive]
	if len(fps) == 0 {
		return nil
	}

	if p.classifier != nil {
		if res.Hosted == nil {
			res.Hosted = make(map[string]bool, len(fps))
		}
		ids := make([]string, 0, len(fps))
		for _, r := range fps {
			ids = append(ids, r.ClusterID)
		}
		if err := p.classifier.Prefetch(ctx, ids, p.cfg.Parallel); err != nil {
			return err
		}
		for _, id := range ids {
			hosted, err := p.classifier.IsHostedControlPlane(ctx, id)
			if err != nil {
				return err
			}
			res.Hosted[id] = hosted
		}
	}

	if p.fetcher != nil {
		urls := make([]string, 0, len(fps))
		for _, r := range fps {
			urls = append(urls, r.LogURL)
		}
		byURL, err := p.fetcher.EndpointsFor(ctx, urls, p.cfg.Parallel)
		if err != nil {
			return fmt.Errorf("fetch false-positive logs: %w", err)
		}
		res.Endpoints = make(map[string][]string, len(fps))
		for _, r := range fps {
			res.Endpoints[r.ClusterID] = byURL[r.LogURL]
		}
		p.logger.InfoContext(ctx, "fetched false-positive logs", "logs", len(byURL))
	}
	return nil
}

// FalsePositiveEndpoints returns one endpoint list per false positive, in
// tally order, for frequency counting.
func (r *Result) FalsePositiveEndpoints() [][]string {
	if r.Endpoints == nil {
		return nil
	}
	fps := r.Tally[outcome.FalsePositive]
	out := make([][]string, 0, len(fps))
	for _, rec := range fps {
		out = append(out, r.Endpoints[rec.ClusterID])
	}
	return out
}
