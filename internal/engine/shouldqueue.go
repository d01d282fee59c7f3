package engine

import (
	"net/url"
	"strings"

	"github.com/webxcore/webx/internal/store"
	"github.com/webxcore/webx/pkg/urlutil"
)

// shouldQueue gates every URL that wants to enter crawl_queue, seed or
// discovered (spec.md §4.7): must be crawlable and not nuisance; host must
// be in allowDomains if provided, else in the job's seed-host set; host must
// not be in denyDomains.
func shouldQueue(u url.URL, options store.CrawlOptions, seedHosts map[string]bool) bool {
	if !urlutil.IsLikelyCrawlable(u) {
		return false
	}
	if urlutil.IsNuisance(u.String()) {
		return false
	}

	host := strings.ToLower(u.Hostname())

	for _, deny := range options.DenyDomains {
		if strings.EqualFold(deny, host) {
			return false
		}
	}

	if len(options.AllowDomains) > 0 {
		for _, allow := range options.AllowDomains {
			if strings.EqualFold(allow, host) {
				return true
			}
		}
		return false
	}

	return seedHosts[host]
}

// seedHostSet derives the set of hosts a job's seed URLs belong to, used by
// shouldQueue when allowDomains was not specified.
func seedHostSet(seedURLs []string) map[string]bool {
	hosts := make(map[string]bool, len(seedURLs))
	for _, raw := range seedURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		hosts[strings.ToLower(parsed.Hostname())] = true
	}
	return hosts
}
