package urlutil

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Canonicalize applies a deterministic normalization to a URL, producing a canonical form.
// It maps equivalent URL spellings to a single canonical representation.
//
// The normalization follows these rules:
//   - Scheme and host are lowercased
//   - Path is cleaned (repeated "/" collapsed, trailing slash removed except for root)
//   - Fragments are removed
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Query keys beginning "utm_" (case-insensitive) and a fixed tracking-key
//     set are dropped; remaining keys are sorted lexicographically
//
// Properties:
//   - Pure: no state, no memory
//   - Deterministic: same input always produces same output
//   - Idempotent: Canonicalize(Canonicalize(url)) == Canonicalize(url)
//   - Context-free: does not depend on crawl history
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = lowerASCII(canonical.Scheme)
	canonical.Host = lowerASCII(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	canonical.Path = collapseSlashes(canonical.Path)
	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	canonical.RawQuery = dropTrackingParams(canonical.Query()).Encode()
	canonical.ForceQuery = false

	return canonical
}

// trackingQueryKeys is the fixed set of non-utm_ tracking keys dropped by
// normalize, in addition to any key beginning "utm_".
var trackingQueryKeys = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"igshid":  true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
	"source":  true,
	"spm":     true,
}

// dropTrackingParams removes tracking query keys and returns the remaining
// keys sorted lexicographically, preserving each key's original value order.
func dropTrackingParams(values url.Values) url.Values {
	kept := url.Values{}
	for key, vals := range values {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") || trackingQueryKeys[lower] {
			continue
		}
		kept[key] = vals
	}
	return kept
}

// Normalize parses input (resolving it against base if provided), rejects
// anything but http(s), and applies Canonicalize. Returns false if the input
// cannot be parsed into an http(s) URL.
func Normalize(input string, base *url.URL) (url.URL, bool) {
	parsed, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return url.URL{}, false
	}

	if base != nil {
		parsed = base.ResolveReference(parsed)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return url.URL{}, false
	}
	if parsed.Host == "" {
		return url.URL{}, false
	}

	return Canonicalize(*parsed), true
}

// nuisancePathExtensions are known binary/asset extensions that make a URL
// unlikely to be worth crawling as a document.
var nuisancePathExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".svg": true, ".ico": true, ".bmp": true, ".tiff": true,
	".zip": true, ".tar": true, ".gz": true, ".rar": true, ".7z": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true, ".webm": true,
	".css": true, ".js": true,
	".pdf": true, ".json": true, ".xml": true, ".rss": true, ".atom": true,
}

// IsLikelyCrawlable reports whether url is http(s) and its path does not end
// in a known binary/asset extension.
func IsLikelyCrawlable(u url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	ext := strings.ToLower(path.Ext(u.Path))
	return !nuisancePathExtensions[ext]
}

// nuisanceExactPaths are well-known non-content paths.
var nuisanceExactPaths = map[string]bool{
	"/robots.txt": true,
	"/sitemap.xml": true,
	"/ads.txt": true,
}

// nuisancePathSubstrings mark application/transactional surfaces that are
// not worth crawling as documents.
var nuisancePathSubstrings = []string{
	"/wp-json/", "/api/", "/graphql", "/cdn-cgi/",
	"/cart", "/checkout", "/login", "/signin", "/account", "/admin",
}

// IsNuisance reports whether rawURL points at a known non-content surface.
// An unparseable URL is treated as nuisance.
func IsNuisance(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}

	if nuisanceExactPaths[parsed.Path] {
		return true
	}

	for _, substr := range nuisancePathSubstrings {
		if strings.Contains(parsed.Path, substr) {
			return true
		}
	}

	return false
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

var seedKeywordStopwords = map[string]bool{
	"www": true, "http": true, "https": true,
	"index": true, "html": true, "php": true,
}

// ExtractSeedKeywords tokenizes host+path of each seed URL on non-alphanumeric
// runs, keeps tokens of length >= 3 that aren't stopwords, and caps the
// result at 30 keywords (first-seen order, deduplicated).
func ExtractSeedKeywords(seedURLs []url.URL) []string {
	seen := make(map[string]bool)
	var keywords []string

	for _, u := range seedURLs {
		tokens := nonAlphanumeric.Split(strings.ToLower(u.Host+u.Path), -1)
		for _, tok := range tokens {
			if len(tok) < 3 || seedKeywordStopwords[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			keywords = append(keywords, tok)
			if len(keywords) >= 30 {
				return keywords
			}
		}
	}

	return keywords
}

var docPathPattern = regexp.MustCompile(`(?i)(docs|guide|blog|article|help|support|reference)`)

// ScoreDiscoveredUrlParams bundles the seed context ScoreDiscoveredUrl scores
// a discovered link against.
type ScoreDiscoveredUrlParams struct {
	SeedHost     string
	SeedKeywords []string
}

// ScoreDiscoveredUrl scores a freshly discovered link in [1, 150]:
// starts at 100, penalizes cross-host/depth/path-length/query-presence,
// rewards seed-keyword matches and doc-like paths.
func ScoreDiscoveredUrl(u url.URL, nextDepth int, params ScoreDiscoveredUrlParams) int {
	score := 100

	if !strings.EqualFold(u.Host, params.SeedHost) {
		score -= 25
	}

	score -= 3 * pathSegmentCount(u.Path)
	score -= 7 * nextDepth

	if u.RawQuery != "" {
		score -= 8
	}

	haystack := strings.ToLower(u.Host + u.Path)
	matches := 0
	for _, kw := range params.SeedKeywords {
		if strings.Contains(haystack, kw) {
			matches++
		}
	}
	keywordBonus := matches * 4
	if keywordBonus > 20 {
		keywordBonus = 20
	}
	score += keywordBonus

	if docPathPattern.MatchString(u.Path) {
		score += 6
	}

	return clamp(score, 1, 150)
}

func pathSegmentCount(p string) int {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return 0
	}
	return len(strings.Split(trimmed, "/"))
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// lowerASCII converts ASCII characters to lowercase without allocating.
// This is faster than strings.ToLower for ASCII-only strings.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

// stripTrailingSlash removes trailing slashes from a path.
func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}

// collapseSlashes collapses runs of repeated "/" in a path into one.
func collapseSlashes(p string) string {
	if !strings.Contains(p, "//") {
		return p
	}
	var b strings.Builder
	prevSlash := false
	for _, r := range p {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
