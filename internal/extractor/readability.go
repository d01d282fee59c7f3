package extractor

import (
	"bytes"
	"net/url"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// readabilityPass runs go-readability's Mozilla-Readability-derived
// algorithm over the full document per spec.md §4.3 step 2. It returns the
// article title and its content root node, and ok=false if readability
// found no article content, in which case the caller falls back to
// DomExtractor's layered heuristic.
func readabilityPass(htmlBytes []byte, pageURL *url.URL) (title string, contentNode *html.Node, ok bool) {
	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err != nil || article.Node == nil {
		return "", nil, false
	}
	return article.Title, article.Node, true
}
