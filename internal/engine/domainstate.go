package engine

import (
	"math"
	"strings"
	"sync"

	"github.com/webxcore/webx/pkg/hashutil"
	"github.com/webxcore/webx/pkg/limiter"
)

// domainPerformance tracks a host's mean fetch latency as a capped running
// average (spec.md §4.7 step 8): avg ← round((avg·n + latency)/(n+1)),
// n ← min(50, n+1).
type domainPerformance struct {
	avgLatencyMs int64
	samples      int
}

const maxLatencySamples = 50

func (p *domainPerformance) observe(latencyMs int64) {
	avg := math.Round((float64(p.avgLatencyMs)*float64(p.samples) + float64(latencyMs)) / float64(p.samples+1))
	p.avgLatencyMs = int64(avg)
	if p.samples < maxLatencySamples {
		p.samples++
	}
}

// domainState is the crawl engine's in-process scheduler cache (spec.md
// §4.7): per-host last-fetch time and performance EMA, plus the set of jobs
// whose one-time sitemap-seeding initialization has already run this
// process lifetime.
//
// Last-fetch bookkeeping is delegated to pkg/limiter's ConcurrentRateLimiter
// rather than a hand-rolled map: its hostTimings map and RWMutex already give
// us the thread-safe per-host timestamp store spec.md §5 requires across a
// parallelized processActiveJobsOnce. We use it purely as that timestamp
// store (MarkLastFetchAsNow/GetHostTimings); the limiter has no crawl-delay,
// backoff or jitter computation — internal/robots.SuggestedDelay makes that
// decision with the latency EMA below.
type domainState struct {
	mu                  sync.Mutex
	timings             *limiter.ConcurrentRateLimiter
	performance         map[string]*domainPerformance
	initializedJobs     map[string]bool
	sitemapFingerprints map[string]bool
}

func newDomainState() *domainState {
	return &domainState{
		timings:             limiter.NewConcurrentRateLimiter(),
		performance:         make(map[string]*domainPerformance),
		initializedJobs:     make(map[string]bool),
		sitemapFingerprints: make(map[string]bool),
	}
}

func (d *domainState) lastFetch(host string) int64 {
	timing, ok := d.timings.GetHostTimings()[host]
	if !ok {
		return 0
	}
	return timing.LastFetchAt().UnixMilli()
}

func (d *domainState) touchLastFetch(host string, _ int64) {
	d.timings.MarkLastFetchAsNow(host)
}

func (d *domainState) avgLatencyMs(host string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	perf, ok := d.performance[host]
	if !ok {
		return 0
	}
	return perf.avgLatencyMs
}

func (d *domainState) observeLatency(host string, latencyMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	perf, ok := d.performance[host]
	if !ok {
		perf = &domainPerformance{}
		d.performance[host] = perf
	}
	perf.observe(latencyMs)
}

// markInitialized reports whether jobID's sitemap-seeding step had already
// run, and records it as run either way (so callers get a single
// test-and-set instead of racing between check and mark).
func (d *domainState) markInitialized(jobID string) (alreadyDone bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	alreadyDone = d.initializedJobs[jobID]
	d.initializedJobs[jobID] = true
	return alreadyDone
}

// seenSitemapContent fingerprints a discovered sitemap URL set with blake3
// (fast, non-cryptographic — this is a dedup cache, not a security hash) and
// reports whether an identical set was already processed for jobID during
// this process's lifetime. Scoped to jobID (not shared across jobs) so a
// job with multiple seed origins that happen to share one sitemap (e.g. a
// subdomain and its apex) skips redoing the normalize/shouldQueue/EnqueueUrl
// work for the second origin's identical URL list, without ever skipping
// seeding for a different job that needs the same URLs in its own queue.
func (d *domainState) seenSitemapContent(jobID string, urls []string) bool {
	fingerprint, err := hashutil.HashBytes([]byte(strings.Join(urls, "\n")), hashutil.HashAlgoBLAKE3)
	if err != nil {
		return false
	}
	key := jobID + ":" + fingerprint

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sitemapFingerprints[key] {
		return true
	}
	d.sitemapFingerprints[key] = true
	return false
}
