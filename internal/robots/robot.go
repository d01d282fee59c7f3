package robots

/*
Responsibilities

- Fetch robots.txt per origin, cached with a 6h TTL
- Enforce allow/disallow rules before a claimed queue item is fetched
- Suggest a per-origin crawl delay derived from robots.txt + observed latency
- Discover sitemap URLs for seed expansion

Robots checks occur after a URL is claimed from the frontier, before it is fetched.
*/

import (
	"context"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/webxcore/webx/internal/logging"
	"github.com/webxcore/webx/internal/robots/cache"
	"github.com/webxcore/webx/pkg/failure"
)

const DefaultCacheTTL = 6 * time.Hour

type cachedRuleSet struct {
	rules     ruleSet
	expiresAt time.Time
}

// Robot is the per-process robots.txt decision component: fetch, cache
// (TTL-bounded, independent of the fetcher's raw-response cache), and
// evaluate allow/disallow + suggested delay for a candidate URL.
type Robot struct {
	fetcher   *RobotsFetcher
	userAgent string
	ttl       time.Duration

	mu    sync.RWMutex
	rules map[string]cachedRuleSet
}

// NewRobot constructs a Robot. Pass ttl <= 0 to use DefaultCacheTTL.
func NewRobot(logger *logging.Logger, userAgent string, ttl time.Duration) *Robot {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Robot{
		fetcher:   NewRobotsFetcher(logger, userAgent, cache.NewMemoryCache()),
		userAgent: userAgent,
		ttl:       ttl,
		rules:     make(map[string]cachedRuleSet),
	}
}

// Decide evaluates whether target may be crawled under the cached robots.txt
// rules for its origin, fetching (and caching) the rules if absent or
// expired.
func (r *Robot) Decide(ctx context.Context, target url.URL) (Decision, failure.ClassifiedError) {
	rules, err := r.rulesForOrigin(ctx, target)
	if err != nil {
		return Decision{}, err
	}
	return canCrawl(target, rules), nil
}

// SuggestedDelay computes suggestedDelay(base, rules, avgLatency, adaptive)
// per spec.md §4.2 for target's origin, using already-cached rules if
// present (never triggers a fetch).
func (r *Robot) SuggestedDelay(target url.URL, base time.Duration, avgLatency time.Duration, adaptive bool) time.Duration {
	r.mu.RLock()
	entry, ok := r.rules[originKey(target)]
	r.mu.RUnlock()

	var crawlDelay time.Duration
	if ok {
		if cd := entry.rules.CrawlDelay(); cd != nil {
			crawlDelay = *cd
		}
	}

	delay := base
	if crawlDelay > delay {
		delay = crawlDelay
	}
	if adaptive && avgLatency > 0 {
		adaptiveDelay := time.Duration(math.Round(float64(avgLatency) * 1.4))
		if adaptiveDelay > delay {
			delay = adaptiveDelay
		}
	}
	return delay
}

// DiscoverSitemapUrls expands the origin's robots-declared (or conventional)
// sitemap(s) into up to limit page URLs, per spec.md §4.7 step 2. Uses the
// same cached rules as Decide.
func (r *Robot) DiscoverSitemapUrls(ctx context.Context, origin string, limit int) []string {
	parsed, err := url.Parse(origin)
	if err != nil {
		return nil
	}
	rules, classifiedErr := r.rulesForOrigin(ctx, *parsed)
	if classifiedErr != nil {
		return nil
	}
	return r.fetcher.DiscoverSitemapUrls(ctx, rules, origin, limit)
}

func (r *Robot) rulesForOrigin(ctx context.Context, target url.URL) (ruleSet, failure.ClassifiedError) {
	key := originKey(target)
	now := time.Now()

	r.mu.RLock()
	entry, ok := r.rules[key]
	r.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		return entry.rules, nil
	}

	result, err := r.fetcher.Fetch(ctx, target.Scheme, target.Host)
	if err != nil {
		return ruleSet{}, err
	}

	mapped := MapResponseToRuleSet(result.Response, r.userAgent, result.FetchedAt)

	r.mu.Lock()
	r.rules[key] = cachedRuleSet{rules: mapped, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()

	return mapped, nil
}

func originKey(u url.URL) string {
	return u.Scheme + "://" + u.Host
}

// canCrawl compares the longest matching allow path length to the longest
// matching disallow path length; if both are 0, allowed; otherwise the URL
// is allowed iff allow-length >= disallow-length. The bare "/" rule is
// ignored per spec.md §4.2 (it would otherwise make every disallow entry a
// perpetual tie-loser or tie-winner depending on direction).
func canCrawl(target url.URL, rules ruleSet) Decision {
	if !rules.hasGroups {
		return Decision{Url: target, Allowed: true, Reason: EmptyRuleSet}
	}
	if !rules.matchedGroup {
		return Decision{Url: target, Allowed: true, Reason: UserAgentNotMatched}
	}

	path := target.Path
	if path == "" {
		path = "/"
	}

	allowLen := longestMatch(path, rules.allowRules)
	disallowLen := longestMatch(path, rules.disallowRules)

	var delay *time.Duration
	if d := rules.CrawlDelay(); d != nil {
		delay = d
	}

	if allowLen == 0 && disallowLen == 0 {
		return Decision{Url: target, Allowed: true, Reason: NoMatchingRules, CrawlDelay: delay}
	}
	if allowLen >= disallowLen {
		return Decision{Url: target, Allowed: true, Reason: AllowedByRobots, CrawlDelay: delay}
	}
	return Decision{Url: target, Allowed: false, Reason: DisallowedByRobots, CrawlDelay: delay}
}

func longestMatch(path string, rules []pathRule) int {
	best := 0
	for _, rule := range rules {
		if rule.prefix == "/" {
			continue
		}
		if strings.HasPrefix(path, rule.prefix) && len(rule.prefix) > best {
			best = len(rule.prefix)
		}
	}
	return best
}
