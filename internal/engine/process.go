package engine

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/webxcore/webx/internal/extractor"
	"github.com/webxcore/webx/internal/fetcher"
	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/internal/store"
	"github.com/webxcore/webx/pkg/urlutil"
)

const maxInitSitemapOrigins = 6

// sitemapSeedPriority is the fixed priority sitemap-discovered URLs enter
// the queue at (spec.md §4.7 step 2), distinct from a seed's own
// 140-index priority band and a discovered link's scoreDiscoveredUrl band.
const sitemapSeedPriority = 120

const failedWithoutProgressThreshold = 25

// processJobOnce runs one tick of spec.md §4.7's numbered algorithm for a
// single job. It never returns an error to the caller: every failure that
// isn't a terminal job-status transition is logged and/or folded into
// failQueueItem, per the spec's "swallow failures" and "on any exception"
// language.
func (e *Engine) processJobOnce(ctx context.Context, job store.CrawlJob) {
	status, err := e.store.GetCrawlJobStatus(ctx, job.ID)
	if err != nil {
		e.logErr("get job status failed", job.ID, err)
		return
	}

	// Step 1.
	if status.Stats.Done >= job.Options.MaxPages {
		e.finishJob(ctx, job.ID)
		return
	}

	// Step 2.
	if job.Options.SeedFromSitemaps {
		e.seedFromSitemapsOnce(ctx, job)
	}

	// Step 3.
	item, ok, err := e.store.ClaimNextQueueItem(ctx, job.ID)
	if err != nil {
		e.logErr("claim queue item failed", job.ID, err)
		return
	}
	if !ok {
		if status.Stats.Pending == 0 && status.Stats.Processing == 0 {
			e.finishJob(ctx, job.ID)
		}
		return
	}

	if processErr := e.processClaimedItem(ctx, job, item); processErr != nil {
		e.failItemAndMaybeFailJob(ctx, job.ID, item.ID, processErr.Error())
	}
}

// processClaimedItem implements spec.md §4.7 steps 4-11. A non-nil return
// triggers step 12's failQueueItem path; a nil return means the item was
// already resolved (completed or, for steps 4-6's normal-skip paths,
// completed without having been fetched).
func (e *Engine) processClaimedItem(ctx context.Context, job store.CrawlJob, item store.CrawlQueueItem) error {
	// Step 4.
	if item.Depth > job.Options.MaxDepth {
		return e.store.CompleteQueueItem(ctx, item.ID)
	}

	// Step 5.
	normalized, ok := urlutil.Normalize(item.URL, nil)
	if !ok {
		return e.store.CompleteQueueItem(ctx, item.ID)
	}
	seedHosts := seedHostSet(job.SeedURLs)
	if !shouldQueue(normalized, job.Options, seedHosts) {
		return e.store.CompleteQueueItem(ctx, item.ID)
	}

	// Step 6.
	if job.Options.RespectRobots {
		decision, robotsErr := e.robot.Decide(ctx, normalized)
		if robotsErr != nil {
			return robotsErr
		}
		if !decision.Allowed {
			return e.store.CompleteQueueItem(ctx, item.ID)
		}
	}

	// Step 7.
	host := strings.ToLower(normalized.Hostname())
	base := time.Duration(job.Options.PerDomainDelayMs) * time.Millisecond
	avgLatency := time.Duration(e.domains.avgLatencyMs(host)) * time.Millisecond
	suggested := e.robot.SuggestedDelay(normalized, base, avgLatency, job.Options.AdaptiveDelay)
	elapsed := time.Duration(nowMs()-e.domains.lastFetch(host)) * time.Millisecond
	if wait := suggested - elapsed; wait > 0 {
		sleepCtx(ctx, wait)
	}

	// Step 8.
	fetchStart := time.Now()
	fetchResult, fetchErr := e.fetcher.Fetch(ctx, fetcher.NewFetchParam(normalized, e.cfg.UserAgent()))
	if fetchErr != nil {
		return fetchErr
	}
	e.domains.observeLatency(host, time.Since(fetchStart).Milliseconds())

	mode := extractor.ModeCompact
	if job.Options.Mode == "full" {
		mode = extractor.ModeFull
	}
	page, extractErr := e.extract.Extract(extractor.ExtractInput{
		URL:       fetchResult.URL(),
		HTML:      fetchResult.Body(),
		Mode:      mode,
		Source:    extractor.SourceStatic,
		FetchedAt: fetchResult.FetchedAt(),
	})
	if extractErr != nil {
		return extractErr
	}

	// Step 9.
	responseURL := fetchResult.URL().String()
	existing, found, getErr := e.store.GetLatestPageByUrl(ctx, responseURL)
	if getErr != nil {
		return getErr
	}
	if !found && responseURL != normalized.String() {
		existing, found, getErr = e.store.GetLatestPageByUrl(ctx, normalized.String())
		if getErr != nil {
			return getErr
		}
	}
	if !found || existing.ContentHash != page.ContentHash {
		if saveErr := e.store.SavePage(ctx, page); saveErr != nil {
			return saveErr
		}
		if touchErr := e.store.TouchLastSuccess(ctx, "crawl"); touchErr != nil {
			return touchErr
		}
	}

	// Step 10.
	if err := e.store.CompleteQueueItem(ctx, item.ID); err != nil {
		return err
	}
	e.domains.touchLastFetch(host, nowMs())

	// Step 11.
	nextDepth := item.Depth + 1
	if nextDepth <= job.Options.MaxDepth {
		if err := e.discoverAndEnqueue(ctx, job, page, fetchResult.URL(), nextDepth, seedHosts); err != nil {
			return err
		}
	}

	return nil
}

// discoverAndEnqueue normalizes each discovered link against pageURL and
// enqueues the ones shouldQueue admits, scored by scoreDiscoveredUrl
// (spec.md §4.7 step 11).
func (e *Engine) discoverAndEnqueue(ctx context.Context, job store.CrawlJob, page extractor.Page, pageURL url.URL, nextDepth int, seedHosts map[string]bool) error {
	if len(job.SeedURLs) == 0 {
		return nil
	}
	seedHostURL, ok := urlutil.Normalize(job.SeedURLs[0], nil)
	if !ok {
		return nil
	}
	var seedURLValues []url.URL
	for _, raw := range job.SeedURLs {
		if parsed, ok := urlutil.Normalize(raw, nil); ok {
			seedURLValues = append(seedURLValues, parsed)
		}
	}
	seedKeywords := urlutil.ExtractSeedKeywords(seedURLValues)

	for _, link := range page.Links {
		normalized, ok := urlutil.Normalize(link.URL, &pageURL)
		if !ok {
			continue
		}
		if !shouldQueue(normalized, job.Options, seedHosts) {
			continue
		}
		priority := urlutil.ScoreDiscoveredUrl(normalized, nextDepth, urlutil.ScoreDiscoveredUrlParams{
			SeedHost:     seedHostURL.Host,
			SeedKeywords: seedKeywords,
		})
		if err := e.store.EnqueueUrl(ctx, job.ID, normalized.String(), nextDepth, priority); err != nil {
			return err
		}
	}
	return nil
}

// seedFromSitemapsOnce runs spec.md §4.7 step 2 at most once per job per
// process lifetime; failures (robots fetch, sitemap fetch, enqueue) are
// swallowed per the spec's explicit instruction.
func (e *Engine) seedFromSitemapsOnce(ctx context.Context, job store.CrawlJob) {
	if e.domains.markInitialized(job.ID) {
		return
	}

	seedHosts := seedHostSet(job.SeedURLs)
	for _, origin := range uniqueOrigins(job.SeedURLs, maxInitSitemapOrigins) {
		urls := e.robot.DiscoverSitemapUrls(ctx, origin, job.Options.MaxSitemapUrls)
		if len(urls) == 0 || e.domains.seenSitemapContent(job.ID, urls) {
			continue
		}
		for _, raw := range urls {
			normalized, ok := urlutil.Normalize(raw, nil)
			if !ok {
				continue
			}
			if !shouldQueue(normalized, job.Options, seedHosts) {
				continue
			}
			_ = e.store.EnqueueUrl(ctx, job.ID, normalized.String(), 0, sitemapSeedPriority)
		}
	}
}

func (e *Engine) finishJob(ctx context.Context, jobID string) {
	if err := e.store.SetCrawlJobStatus(ctx, jobID, store.JobFinished); err != nil {
		e.logErr("set job finished failed", jobID, err)
	}
}

// failItemAndMaybeFailJob implements spec.md §4.7 step 12: failQueueItem,
// then fail the job outright if it has accumulated more than 25 failures
// with zero completions.
func (e *Engine) failItemAndMaybeFailJob(ctx context.Context, jobID, itemID, message string) {
	if err := e.store.FailQueueItem(ctx, itemID, message, 0); err != nil {
		e.logErr("fail queue item failed", jobID, err)
		return
	}
	status, err := e.store.GetCrawlJobStatus(ctx, jobID)
	if err != nil {
		e.logErr("get job status failed", jobID, err)
		return
	}
	if status.Stats.Failed > failedWithoutProgressThreshold && status.Stats.Done == 0 {
		if err := e.store.SetCrawlJobStatus(ctx, jobID, store.JobFailed); err != nil {
			e.logErr("set job failed failed", jobID, err)
		}
	}
}

func (e *Engine) logErr(msg, jobID string, err error) {
	if e.logger == nil {
		return
	}
	e.logger.Warn(msg, logging.AttrJobID, jobID, logging.AttrCause, err.Error())
}
