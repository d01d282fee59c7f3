package store

/*
Responsibilities

- Durable home for pages, links, crawl jobs, the crawl queue, sessions and
  the action log (spec.md §4.6, §6.1)
- Atomic queue claim so two pollers never process the same row
- Content-hash–based idempotency: savePage never double-persists the same
  content for a URL

The crawl engine owns in-memory scheduler caches; this package owns
everything that must survive a restart.
*/

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/webxcore/webx/internal/extractor"
	"github.com/webxcore/webx/pkg/failure"
	"github.com/webxcore/webx/pkg/fileutil"
	"github.com/webxcore/webx/pkg/hashutil"

	_ "modernc.org/sqlite"
)

// Store is the durable backing described by spec.md §4.6. All methods are
// safe for concurrent use; SQLite's WAL mode permits concurrent readers plus
// one writer, which is what the single-process engine in internal/engine
// relies on.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path in WAL mode
// and runs migrate(). Pass ":memory:" for an ephemeral, test-only store.
func Open(path string) (*Store, failure.ClassifiedError) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if dirErr := fileutil.EnsureDir(dir); dirErr != nil {
			return nil, &StoreError{Message: dirErr.Error(), Cause: ErrCauseMigration}
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &StoreError{Message: err.Error(), Cause: ErrCauseMigration}
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, &StoreError{Message: err.Error(), Cause: ErrCauseMigration}
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// SavePage upserts page by id, then atomically replaces its link set.
// spec.md §4.6: "Atomic with respect to the page's link set."
func (s *Store) SavePage(ctx context.Context, page extractor.Page) failure.ClassifiedError {
	pageJSON, err := json.Marshal(page)
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pages (id, url, canonical_url, title, fetched_at, content_hash, extractor_version, mode, source, page_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			canonical_url = excluded.canonical_url,
			title = excluded.title,
			fetched_at = excluded.fetched_at,
			content_hash = excluded.content_hash,
			extractor_version = excluded.extractor_version,
			mode = excluded.mode,
			source = excluded.source,
			page_json = excluded.page_json
	`, page.ID, page.URL, nullableString(page.CanonicalURL), page.Title, formatTime(page.FetchedAt),
		nullableString(page.ContentHash), page.ExtractorVersion, string(page.Mode), string(page.Source), string(pageJSON))
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE from_page_id = ?`, page.ID); err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	for _, link := range page.Links {
		isInternal := 0
		if link.IsInternal {
			isInternal = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO links (from_page_id, to_url, text, rel, is_internal)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(from_page_id, to_url) DO UPDATE SET
				text = excluded.text, rel = excluded.rel, is_internal = excluded.is_internal
		`, page.ID, link.URL, link.Text, link.Rel, isInternal)
		if err != nil {
			return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	return nil
}

// GetPageByID returns the page with the given id, or ok=false if absent.
func (s *Store) GetPageByID(ctx context.Context, id string) (extractor.Page, bool, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, `SELECT page_json FROM pages WHERE id = ?`, id)
	var pageJSON string
	if err := row.Scan(&pageJSON); err != nil {
		if err == sql.ErrNoRows {
			return extractor.Page{}, false, nil
		}
		return extractor.Page{}, false, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	var page extractor.Page
	if err := json.Unmarshal([]byte(pageJSON), &page); err != nil {
		return extractor.Page{}, false, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}
	return page, true, nil
}

// GetLatestPageByUrl returns the most recently fetched page for url (max
// fetched_at), or ok=false if none exists.
func (s *Store) GetLatestPageByUrl(ctx context.Context, url string) (extractor.Page, bool, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, `
		SELECT page_json FROM pages WHERE url = ? ORDER BY fetched_at DESC LIMIT 1
	`, url)
	var pageJSON string
	if err := row.Scan(&pageJSON); err != nil {
		if err == sql.ErrNoRows {
			return extractor.Page{}, false, nil
		}
		return extractor.Page{}, false, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	var page extractor.Page
	if err := json.Unmarshal([]byte(pageJSON), &page); err != nil {
		return extractor.Page{}, false, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}
	return page, true, nil
}

// QueriedPage is a single queryPages hit with its relevance score.
type QueriedPage struct {
	Page  extractor.Page
	Score float64
}

// QueryPages performs a substring scan over title and page_json, newest
// first, scoring each hit score = max(0, 1 - 0.05*rank) per spec.md §4.6.
func (s *Store) QueryPages(ctx context.Context, text string, limit int) ([]QueriedPage, failure.ClassifiedError) {
	like := "%" + strings.ReplaceAll(text, "%", "\\%") + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT page_json FROM pages
		WHERE title LIKE ? ESCAPE '\' OR page_json LIKE ? ESCAPE '\'
		ORDER BY fetched_at DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	defer rows.Close()

	var out []QueriedPage
	rank := 0
	for rows.Next() {
		var pageJSON string
		if err := rows.Scan(&pageJSON); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
		}
		var page extractor.Page
		if err := json.Unmarshal([]byte(pageJSON), &page); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
		}
		score := 1 - 0.05*float64(rank)
		if score < 0 {
			score = 0
		}
		out = append(out, QueriedPage{Page: page, Score: score})
		rank++
	}
	return out, nil
}

// CreateCrawlJob inserts a new job, id = sha256_16(seedUrls.join("|")+":"+now),
// status pending.
func (s *Store) CreateCrawlJob(ctx context.Context, seedURLs []string, options CrawlOptions) (string, failure.ClassifiedError) {
	now := time.Now().UTC()
	id := hashutil.Sha256_16(strings.Join(seedURLs, "|") + ":" + formatTime(now))

	seedJSON, err := json.Marshal(seedURLs)
	if err != nil {
		return "", &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return "", &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crawl_jobs (id, status, seed_url_json, created_at, finished_at, options_json)
		VALUES (?, ?, ?, ?, NULL, ?)
	`, id, string(JobPending), string(seedJSON), formatTime(now), string(optionsJSON))
	if err != nil {
		return "", &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	return id, nil
}

// SetCrawlJobStatus transitions a job's status, stamping finished_at when
// the new status is terminal (finished or failed).
func (s *Store) SetCrawlJobStatus(ctx context.Context, jobID string, status JobStatus) failure.ClassifiedError {
	var finishedAt any
	if status == JobFinished || status == JobFailed {
		finishedAt = formatTime(time.Now())
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE crawl_jobs SET status = ?, finished_at = COALESCE(?, finished_at) WHERE id = ?
	`, string(status), finishedAt, jobID)
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &StoreError{Message: jobID, Cause: ErrCauseUnknownJob}
	}
	return nil
}

// GetCrawlJob fetches a single job by id.
func (s *Store) GetCrawlJob(ctx context.Context, jobID string) (CrawlJob, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, seed_url_json, created_at, finished_at, options_json
		FROM crawl_jobs WHERE id = ?
	`, jobID)
	return scanCrawlJob(row)
}

func scanCrawlJob(row *sql.Row) (CrawlJob, failure.ClassifiedError) {
	var job CrawlJob
	var status, seedJSON, createdAt, optionsJSON string
	var finishedAt sql.NullString
	if err := row.Scan(&job.ID, &status, &seedJSON, &createdAt, &finishedAt, &optionsJSON); err != nil {
		if err == sql.ErrNoRows {
			return CrawlJob{}, &StoreError{Message: "job not found", Cause: ErrCauseUnknownJob}
		}
		return CrawlJob{}, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	job.Status = JobStatus(status)
	job.CreatedAt = parseTime(createdAt)
	if finishedAt.Valid {
		t := parseTime(finishedAt.String)
		job.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(seedJSON), &job.SeedURLs); err != nil {
		return CrawlJob{}, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}
	if err := json.Unmarshal([]byte(optionsJSON), &job.Options); err != nil {
		return CrawlJob{}, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
	}
	return job, nil
}

// EnqueueUrl inserts a queue row, ignoring the insert if (jobId, url)
// already exists (spec.md §3 uniqueness invariant).
func (s *Store) EnqueueUrl(ctx context.Context, jobID, url string, depth, priority int) failure.ClassifiedError {
	id := hashutil.Sha256_16(jobID + ":" + url)
	host := hostOf(url)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO crawl_queue (id, job_id, url, depth, priority, next_fetch_at, domain, status, retries, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
	`, id, jobID, url, depth, priority, formatTime(time.Now()), host, string(QueuePending))
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	return nil
}

func hostOf(rawURL string) string {
	if idx := strings.Index(rawURL, "://"); idx >= 0 {
		rest := rawURL[idx+3:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			return rest[:slash]
		}
		return rest
	}
	return rawURL
}

// ClaimNextQueueItem atomically claims one pending, due row for jobID using
// a single UPDATE ... WHERE id = (SELECT ... LIMIT 1) RETURNING statement,
// so concurrent callers never observe the same row (spec.md §4.6,
// SPEC_FULL §E.1). Order: priority DESC, depth ASC, next_fetch_at ASC, then
// row id as the final, implementation-defined tie-break.
func (s *Store) ClaimNextQueueItem(ctx context.Context, jobID string) (CrawlQueueItem, bool, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE crawl_queue
		SET status = 'processing'
		WHERE id = (
			SELECT id FROM crawl_queue
			WHERE job_id = ? AND status = 'pending' AND next_fetch_at <= ?
			ORDER BY priority DESC, depth ASC, next_fetch_at ASC, id ASC
			LIMIT 1
		)
		RETURNING id, job_id, url, depth, priority, next_fetch_at, domain, status, retries, last_error
	`, jobID, formatTime(time.Now()))

	item, err := scanQueueItem(row)
	if err != nil {
		if storeErr, ok := err.(*StoreError); ok && storeErr.Cause == ErrCauseUnknownQueueRow {
			return CrawlQueueItem{}, false, nil
		}
		return CrawlQueueItem{}, false, err
	}
	return item, true, nil
}

func scanQueueItem(row *sql.Row) (CrawlQueueItem, failure.ClassifiedError) {
	var item CrawlQueueItem
	var nextFetchAt, status string
	var lastError sql.NullString
	err := row.Scan(&item.ID, &item.JobID, &item.URL, &item.Depth, &item.Priority,
		&nextFetchAt, &item.Domain, &status, &item.Retries, &lastError)
	if err != nil {
		if err == sql.ErrNoRows {
			return CrawlQueueItem{}, &StoreError{Message: "no claimable row", Cause: ErrCauseUnknownQueueRow}
		}
		return CrawlQueueItem{}, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	item.NextFetchAt = parseTime(nextFetchAt)
	item.Status = QueueItemStatus(status)
	if lastError.Valid {
		item.LastError = lastError.String
	}
	return item, nil
}

// CompleteQueueItem transitions a row from processing to done.
func (s *Store) CompleteQueueItem(ctx context.Context, id string) failure.ClassifiedError {
	_, err := s.db.ExecContext(ctx, `UPDATE crawl_queue SET status = 'done' WHERE id = ?`, id)
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	return nil
}

const (
	maxQueueItemRetries  = 3
	defaultRetryDelayMs  = 1500
)

// FailQueueItem increments retries; at >= maxQueueItemRetries the row is
// marked failed, otherwise it is returned to pending with an exponential-ish
// linear backoff: next_fetch_at = now + retries*retryDelayMs (spec.md §4.6).
func (s *Store) FailQueueItem(ctx context.Context, id, errMessage string, retryDelayMs int) failure.ClassifiedError {
	if retryDelayMs <= 0 {
		retryDelayMs = defaultRetryDelayMs
	}

	row := s.db.QueryRowContext(ctx, `SELECT retries FROM crawl_queue WHERE id = ?`, id)
	var retries int
	if err := row.Scan(&retries); err != nil {
		if err == sql.ErrNoRows {
			return &StoreError{Message: id, Cause: ErrCauseUnknownQueueRow}
		}
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	retries++

	if retries >= maxQueueItemRetries {
		_, err := s.db.ExecContext(ctx, `
			UPDATE crawl_queue SET status = 'failed', retries = ?, last_error = ? WHERE id = ?
		`, retries, errMessage, id)
		if err != nil {
			return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
		}
		return nil
	}

	nextFetchAt := time.Now().Add(time.Duration(retries*retryDelayMs) * time.Millisecond)
	_, err := s.db.ExecContext(ctx, `
		UPDATE crawl_queue SET status = 'pending', retries = ?, next_fetch_at = ?, last_error = ? WHERE id = ?
	`, retries, formatTime(nextFetchAt), errMessage, id)
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	return nil
}

// GetCrawlJobStatus joins the job row with aggregated per-status queue
// counts.
func (s *Store) GetCrawlJobStatus(ctx context.Context, jobID string) (CrawlJobStatus, failure.ClassifiedError) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, seed_url_json, created_at, finished_at, options_json
		FROM crawl_jobs WHERE id = ?
	`, jobID)
	job, err := scanCrawlJob(row)
	if err != nil {
		return CrawlJobStatus{}, err
	}

	rows, dbErr := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM crawl_queue WHERE job_id = ? GROUP BY status
	`, jobID)
	if dbErr != nil {
		return CrawlJobStatus{}, &StoreError{Message: dbErr.Error(), Cause: ErrCauseQuery}
	}
	defer rows.Close()

	var stats QueueStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return CrawlJobStatus{}, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
		}
		switch QueueItemStatus(status) {
		case QueuePending:
			stats.Pending = count
		case QueueProcessing:
			stats.Processing = count
		case QueueDone:
			stats.Done = count
		case QueueFailed:
			stats.Failed = count
		}
	}

	return CrawlJobStatus{Job: job, Stats: stats}, nil
}

// GetCrawlPages joins done queue rows to their pages, newest first.
func (s *Store) GetCrawlPages(ctx context.Context, jobID string, limit int) ([]extractor.Page, failure.ClassifiedError) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.page_json
		FROM crawl_queue q
		JOIN pages p ON p.url = q.url
		WHERE q.job_id = ? AND q.status = 'done'
		ORDER BY p.fetched_at DESC
		LIMIT ?
	`, jobID, limit)
	if err != nil {
		return nil, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	defer rows.Close()

	var out []extractor.Page
	for rows.Next() {
		var pageJSON string
		if err := rows.Scan(&pageJSON); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
		}
		var page extractor.Page
		if err := json.Unmarshal([]byte(pageJSON), &page); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
		}
		out = append(out, page)
	}
	return out, nil
}

// ListActiveCrawlJobs returns jobs with status in {pending, running},
// oldest first.
func (s *Store) ListActiveCrawlJobs(ctx context.Context) ([]CrawlJob, failure.ClassifiedError) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, seed_url_json, created_at, finished_at, options_json
		FROM crawl_jobs
		WHERE status IN ('pending', 'running')
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	defer rows.Close()

	var out []CrawlJob
	for rows.Next() {
		var job CrawlJob
		var status, seedJSON, createdAt, optionsJSON string
		var finishedAt sql.NullString
		if err := rows.Scan(&job.ID, &status, &seedJSON, &createdAt, &finishedAt, &optionsJSON); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
		}
		job.Status = JobStatus(status)
		job.CreatedAt = parseTime(createdAt)
		if finishedAt.Valid {
			t := parseTime(finishedAt.String)
			job.FinishedAt = &t
		}
		if err := json.Unmarshal([]byte(seedJSON), &job.SeedURLs); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
		}
		if err := json.Unmarshal([]byte(optionsJSON), &job.Options); err != nil {
			return nil, &StoreError{Message: err.Error(), Cause: ErrCauseSerialization}
		}
		out = append(out, job)
	}
	return out, nil
}

// TouchLastSuccess upserts schema_meta["last_success_{kind}"] = now, a
// generic hook the crawl engine (kind="crawl") and the out-of-scope
// search/open/action collaborators share (SPEC_FULL §C.2).
func (s *Store) TouchLastSuccess(ctx context.Context, kind string) failure.ClassifiedError {
	key := fmt.Sprintf("last_success_%s", kind)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schema_meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, formatTime(time.Now()))
	if err != nil {
		return &StoreError{Message: err.Error(), Cause: ErrCauseQuery}
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
