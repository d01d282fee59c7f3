package robots

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	maxSitemapExpansions = 12
	maxSitemapQueueSize  = 30
)

type sitemapURLSet struct {
	XMLName xml.Name      `xml:"urlset"`
	URLs    []sitemapLoc  `xml:"url"`
}

type sitemapIndex struct {
	XMLName xml.Name     `xml:"sitemapindex"`
	Maps    []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// DiscoverSitemapUrls expands rules.sitemaps (or "{origin}/sitemap.xml" if
// none are declared) into up to limit page URLs, following sitemap indexes
// up to maxSitemapExpansions fetches with a queue capped at
// maxSitemapQueueSize, per spec.md §4.2.
func (f *RobotsFetcher) DiscoverSitemapUrls(ctx context.Context, rules ruleSet, origin string, limit int) []string {
	seeds := rules.Sitemaps()
	if len(seeds) == 0 {
		seeds = []string{strings.TrimSuffix(origin, "/") + "/sitemap.xml"}
	}

	queue := append([]string{}, seeds...)
	visited := make(map[string]bool)
	var pageURLs []string
	expansions := 0

	for len(queue) > 0 && expansions < maxSitemapExpansions && len(pageURLs) < limit {
		next := queue[0]
		queue = queue[1:]

		if visited[next] {
			continue
		}
		visited[next] = true
		expansions++

		body, isIndexHint, err := f.fetchSitemapBody(ctx, next)
		if err != nil {
			continue
		}

		locs, isIndex := parseSitemapLocs(body)
		isIndex = isIndex || isIndexHint

		for _, loc := range locs {
			if isIndex || strings.Contains(strings.ToLower(loc), "sitemap") {
				if len(queue) < maxSitemapQueueSize {
					queue = append(queue, loc)
				}
				continue
			}
			pageURLs = append(pageURLs, loc)
			if len(pageURLs) >= limit {
				break
			}
		}
	}

	if len(pageURLs) > limit {
		pageURLs = pageURLs[:limit]
	}
	return pageURLs
}

func (f *RobotsFetcher) fetchSitemapBody(ctx context.Context, sitemapURL string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return "", false, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, fmt.Errorf("sitemap fetch %s: status %d", sitemapURL, resp.StatusCode)
	}

	const maxSize = 5 * 1024 * 1024
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize))
	if err != nil {
		return "", false, err
	}
	return string(data), false, nil
}

// parseSitemapLocs extracts <loc> values from either a <urlset> or a
// <sitemapindex> document, reporting which shape was found.
func parseSitemapLocs(body string) (locs []string, isIndex bool) {
	var index sitemapIndex
	if err := xml.Unmarshal([]byte(body), &index); err == nil && len(index.Maps) > 0 {
		for _, m := range index.Maps {
			if m.Loc != "" {
				locs = append(locs, m.Loc)
			}
		}
		return locs, true
	}

	var urlset sitemapURLSet
	if err := xml.Unmarshal([]byte(body), &urlset); err == nil {
		for _, u := range urlset.URLs {
			if u.Loc != "" {
				locs = append(locs, u.Loc)
			}
		}
	}
	return locs, strings.Contains(body, "<sitemapindex")
}
