package store

import "database/sql"

// schemaVersion is recorded in schema_meta after a successful migrate().
const schemaVersion = "1"

// migrate creates the schema if absent (spec.md §6.1) and is idempotent:
// CREATE TABLE IF NOT EXISTS / INSERT OR IGNORE throughout, so calling it
// against an already-migrated database is a no-op beyond re-asserting
// db_schema_version.
func migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pages (
			id                TEXT PRIMARY KEY,
			url               TEXT NOT NULL,
			canonical_url     TEXT,
			title             TEXT NOT NULL,
			fetched_at        TEXT NOT NULL,
			content_hash      TEXT,
			extractor_version TEXT NOT NULL,
			mode              TEXT NOT NULL,
			source            TEXT NOT NULL,
			page_json         TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_url ON pages (url)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_fetched_at ON pages (fetched_at DESC)`,
		`CREATE TABLE IF NOT EXISTS links (
			from_page_id TEXT NOT NULL REFERENCES pages(id),
			to_url       TEXT NOT NULL,
			text         TEXT,
			rel          TEXT,
			is_internal  INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (from_page_id, to_url)
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_jobs (
			id            TEXT PRIMARY KEY,
			status        TEXT NOT NULL,
			seed_url_json TEXT NOT NULL,
			created_at    TEXT NOT NULL,
			finished_at   TEXT,
			options_json  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_queue (
			id            TEXT PRIMARY KEY,
			job_id        TEXT NOT NULL REFERENCES crawl_jobs(id),
			url           TEXT NOT NULL,
			depth         INTEGER NOT NULL,
			priority      INTEGER NOT NULL,
			next_fetch_at TEXT NOT NULL,
			domain        TEXT NOT NULL,
			status        TEXT NOT NULL,
			retries       INTEGER NOT NULL DEFAULT 0,
			last_error    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crawl_queue_claim ON crawl_queue (job_id, status, next_fetch_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_crawl_queue_job_url ON crawl_queue (job_id, url)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			name               TEXT PRIMARY KEY,
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL,
			storage_state_path TEXT NOT NULL,
			notes              TEXT,
			headed             INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS actions_log (
			id           TEXT PRIMARY KEY,
			session_name TEXT NOT NULL REFERENCES sessions(name),
			url          TEXT NOT NULL,
			action_json  TEXT NOT NULL,
			result_json  TEXT NOT NULL,
			created_at   TEXT NOT NULL
		)`,
		`INSERT OR IGNORE INTO schema_meta (key, value) VALUES ('db_schema_version', '` + schemaVersion + `')`,
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
