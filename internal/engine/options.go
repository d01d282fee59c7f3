package engine

import "github.com/webxcore/webx/internal/store"

// clampOptions enforces the bounds table in spec.md §6.2. ResolveOptions
// (internal/appconfig) already fills omitted fields with process defaults;
// this clamps whatever value — default or caller-supplied — lands outside
// the documented range.
func clampOptions(o store.CrawlOptions) store.CrawlOptions {
	o.MaxPages = clampInt(o.MaxPages, 1, 10000)
	o.MaxDepth = clampInt(o.MaxDepth, 0, 10)
	if o.Mode != "full" {
		o.Mode = "compact"
	}
	if o.PerDomainDelayMs < 0 {
		o.PerDomainDelayMs = 0
	}
	if o.MaxSitemapUrls < 0 {
		o.MaxSitemapUrls = 0
	}
	return o
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
