package export

// schemaVersion identifies the snapshot layout for downstream readers.
const schemaVersion = 1

// schema is the snapshot DDL. Tri-state columns hold NULL for unknown.
var schema = `
CREATE TABLE schema_version (version INTEGER NOT NULL);

CREATE TABLE runs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	generated_at   TEXT NOT NULL,
	source         TEXT,
	since          TEXT NOT NULL,
	until          TEXT NOT NULL,
	hcp_filter     TEXT NOT NULL,
	rows_read      INTEGER NOT NULL,
	rows_in_window INTEGER NOT NULL,
	duplicate_rows INTEGER NOT NULL,
	total_records  INTEGER NOT NULL,
	logs_fetched   INTEGER NOT NULL
);

CREATE TABLE records (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id                 INTEGER NOT NULL REFERENCES runs(id),
	cid                    TEXT NOT NULL,
	cname                  TEXT,
	ocm_state              TEXT,
	ocm_inflight_states    TEXT,
	found_verifier_s3_logs INTEGER,
	found_all_tests_passed INTEGER,
	found_egress_failures  INTEGER,
	log_download_url       TEXT,
	first_seen             TEXT NOT NULL,
	last_seen              TEXT NOT NULL,
	observations           INTEGER NOT NULL,
	outcome                TEXT NOT NULL,
	hcp                    INTEGER,
	egress_endpoints       TEXT,
	UNIQUE(run_id, cid)
);

CREATE INDEX idx_records_outcome ON records(run_id, outcome);

CREATE TABLE metrics (
	run_id      INTEGER NOT NULL REFERENCES runs(id),
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	numerator   INTEGER NOT NULL,
	denominator INTEGER NOT NULL,
	value       REAL,
	PRIMARY KEY (run_id, id)
);
`
