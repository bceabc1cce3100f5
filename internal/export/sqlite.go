// Package export writes the outcome of one analysis run to a standalone
// SQLite file for ad hoc querying. Snapshots are write-only: nothing reads
// them back into a later run.
package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/abyrne55/verifier-log-analysis/internal/merge"
	"github.com/abyrne55/verifier-log-analysis/internal/outcome"
	"github.com/abyrne55/verifier-log-analysis/internal/pipeline"
	"github.com/abyrne55/verifier-log-analysis/internal/record"
	"github.com/abyrne55/verifier-log-analysis/internal/report"
)

// ErrExists is returned when the snapshot path is already taken.
var ErrExists = errors.New("snapshot file already exists")

// Snapshot is an open snapshot database.
type Snapshot struct {
	db *sql.DB
}

// Create makes a new SQLite file at path with the snapshot schema. The
// parent directory is created when missing; an existing file is never
// overwritten.
func Create(path string) (*Snapshot, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%s: %w", path, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersion); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set schema version: %w", err)
	}
	return &Snapshot{db: db}, nil
}

// Close closes the database.
func (s *Snapshot) Close() error { return s.db.Close() }

// WriteRun stores one run in a single transaction and returns its row id.
func (s *Snapshot) WriteRun(ctx context.Context, rep *report.Report, res *pipeline.Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out, err := tx.ExecContext(ctx, `INSERT INTO runs
		(generated_at, source, since, until, hcp_filter, rows_read, rows_in_window, duplicate_rows, total_records, logs_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iso(rep.GeneratedAt), nullString(rep.Source), iso(rep.Since), iso(rep.Until), rep.HCPFilter,
		rep.RowsRead, rep.RowsInWindow, rep.Duplicates, rep.Total, rep.LogsFetched)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := out.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	recStmt, err := tx.PrepareContext(ctx, `INSERT INTO records
		(run_id, cid, cname, ocm_state, ocm_inflight_states, found_verifier_s3_logs, found_all_tests_passed,
		 found_egress_failures, log_download_url, first_seen, last_seen, observations, outcome, hcp, egress_endpoints)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare records: %w", err)
	}
	defer recStmt.Close()

	for _, o := range outcome.All {
		for _, r := range res.Tally[o] {
			if err := insertRecord(ctx, recStmt, runID, r, o, res); err != nil {
				return 0, fmt.Errorf("insert record %s: %w", r.ClusterID, err)
			}
		}
	}

	for _, m := range rep.Metrics {
		var value sql.NullFloat64
		if m.Value != nil {
			value = sql.NullFloat64{Float64: *m.Value, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO metrics(run_id, id, name, numerator, denominator, value) VALUES (?, ?, ?, ?, ?, ?)",
			runID, m.ID, m.Name, m.Numerator, m.Denominator, value); err != nil {
			return 0, fmt.Errorf("insert metric %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func insertRecord(ctx context.Context, stmt *sql.Stmt, runID int64, r *merge.Record, o outcome.Outcome, res *pipeline.Result) error {
	var inflight sql.NullString
	if r.InFlight != nil {
		b, err := json.Marshal(r.InFlight)
		if err != nil {
			return err
		}
		inflight = sql.NullString{String: string(b), Valid: true}
	}
	var hosted sql.NullBool
	if h, ok := res.Hosted[r.ClusterID]; ok {
		hosted = sql.NullBool{Bool: h, Valid: true}
	}
	var endpoints sql.NullString
	if eps, ok := res.Endpoints[r.ClusterID]; ok {
		b, err := json.Marshal(eps)
		if err != nil {
			return err
		}
		endpoints = sql.NullString{String: string(b), Valid: true}
	}
	_, err := stmt.ExecContext(ctx,
		runID, r.ClusterID, nullString(r.ClusterName), nullString(string(r.State)), inflight,
		triState(r.FoundVerifierLogs), triState(r.FoundAllPassed), triState(r.FoundEgressFail),
		nullString(r.LogURL), iso(r.FirstSeen), iso(r.LastSeen), r.Observations(), o.String(), hosted, endpoints)
	return err
}

// Write creates a snapshot at path holding one run.
func Write(ctx context.Context, path string, rep *report.Report, res *pipeline.Result) error {
	s, err := Create(path)
	if err != nil {
		return err
	}
	if _, err := s.WriteRun(ctx, rep, res); err != nil {
		_ = s.Close()
		return err
	}
	return s.Close()
}

func iso(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func triState(t record.TriState) sql.NullBool {
	return sql.NullBool{Bool: t == record.True, Valid: t.Known()}
}
