package engine

/*
Responsibilities

- Own the engine boundary spec.md §6.3 describes: start, status, next,
  processActiveJobsOnce
- Run exactly one processJobOnce per active job per tick (spec.md §4.7)
- Hold the in-process scheduler caches (domainState) that must not be
  durable: last-fetch time and latency EMA per host, one-time
  sitemap-seeding bookkeeping per job

Everything that must survive a restart lives in internal/store; everything
here is rebuilt from durable state (ListActiveCrawlJobs) the next time a
process starts.
*/

import (
	"context"
	"time"

	"github.com/webxcore/webx/internal/appconfig"
	"github.com/webxcore/webx/internal/extractor"
	"github.com/webxcore/webx/internal/fetcher"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/internal/robots"
	"github.com/webxcore/webx/internal/store"
	"github.com/webxcore/webx/pkg/failure"
	"github.com/webxcore/webx/pkg/urlutil"
)

// Engine is the crawl engine: the single-consumer periodic worker described
// by spec.md §4.7/§6.3, built on internal/store for durable state and
// internal/robots, internal/fetcher, internal/extractor as collaborators.
type Engine struct {
	store   *store.Store
	robot   *robots.Robot
	fetcher fetcher.Fetcher
	extract *extractor.Extractor
	cfg     appconfig.Config
	logger  *logging.Logger

	domains *domainState
}

// New wires an Engine from its collaborators. cfg supplies the process
// defaults used by Start to resolve a caller's partial CrawlOptions.
func New(st *store.Store, robot *robots.Robot, htmlFetcher fetcher.Fetcher, extract *extractor.Extractor, cfg appconfig.Config, logger *logging.Logger) *Engine {
	return &Engine{
		store:   st,
		robot:   robot,
		fetcher: htmlFetcher,
		extract: extract,
		cfg:     cfg,
		logger:  logger,
		domains: newDomainState(),
	}
}

// Start normalizes seedUrls, resolves options against process defaults,
// creates the job, enqueues the seeds, and marks the job running (spec.md
// §4.7 start()).
func (e *Engine) Start(ctx context.Context, seedUrls []string, opts appconfig.StartOptions) (string, failure.ClassifiedError) {
	options := clampOptions(e.cfg.ResolveOptions(opts))

	var normalizedSeeds []string
	seen := make(map[string]bool)
	for _, raw := range seedUrls {
		normalized, ok := urlutil.Normalize(raw, nil)
		if !ok {
			continue
		}
		s := normalized.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		normalizedSeeds = append(normalizedSeeds, s)
	}

	if len(normalizedSeeds) == 0 {
		return "", &EngineError{Message: "no seed URL normalized to a valid http(s) URL", Cause: ErrCauseNoValidSeeds}
	}

	jobID, err := e.store.CreateCrawlJob(ctx, normalizedSeeds, options)
	if err != nil {
		return "", err
	}

	for i, seed := range normalizedSeeds {
		priority := 140 - i
		if enqueueErr := e.store.EnqueueUrl(ctx, jobID, seed, 0, priority); enqueueErr != nil {
			return "", enqueueErr
		}
	}

	if err := e.store.SetCrawlJobStatus(ctx, jobID, store.JobRunning); err != nil {
		return "", err
	}

	return jobID, nil
}

// Status returns the job's durable status plus live queue stats.
func (e *Engine) Status(ctx context.Context, jobID string) (store.CrawlJobStatus, failure.ClassifiedError) {
	status, err := e.store.GetCrawlJobStatus(ctx, jobID)
	if err != nil {
		if storeErr, ok := err.(*store.StoreError); ok && storeErr.Cause == store.ErrCauseUnknownJob {
			return store.CrawlJobStatus{}, &EngineError{Message: jobID, Cause: ErrCauseUnknownJob}
		}
		return store.CrawlJobStatus{}, err
	}
	return status, nil
}

// Next returns up to limit pages already crawled for jobID (spec.md §6.3).
func (e *Engine) Next(ctx context.Context, jobID string, limit int) ([]extractor.Page, failure.ClassifiedError) {
	return e.store.GetCrawlPages(ctx, jobID, limit)
}

// ProcessActiveJobsOnce runs exactly one processJobOnce per currently active
// job, per spec.md §4.7's worker tick. Intended to be called by a host loop
// every CRAWLER_POLL_MS.
func (e *Engine) ProcessActiveJobsOnce(ctx context.Context) {
	jobs, err := e.store.ListActiveCrawlJobs(ctx)
	if err != nil {
		if e.logger != nil {
			e.logger.Error("list active jobs failed", logging.AttrCause, err.Error())
		}
		return
	}

	for _, job := range jobs {
		e.processJobOnce(ctx, job)
	}
}

// uniqueOrigins returns up to limit unique scheme://host origins across
// seedURLs, in first-seen order (spec.md §4.7 step 2: "first 6 unique
// origins across seeds").
func uniqueOrigins(seedURLs []string, limit int) []string {
	seen := make(map[string]bool)
	var origins []string
	for _, raw := range seedURLs {
		normalized, ok := urlutil.Normalize(raw, nil)
		if !ok {
			continue
		}
		origin := normalized.Scheme + "://" + normalized.Host
		if seen[origin] {
			continue
		}
		seen[origin] = true
		origins = append(origins, origin)
		if len(origins) >= limit {
			break
		}
	}
	return origins
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
