package normalize

// TruncationResult holds the outcome of truncating a markdown document to a
// rune budget at the nearest block boundary.
type TruncationResult struct {
	content   []byte
	truncated bool
}

func NewTruncationResult(content []byte, truncated bool) TruncationResult {
	return TruncationResult{content: content, truncated: truncated}
}

// Content returns the (possibly truncated) markdown bytes.
func (r TruncationResult) Content() []byte { return r.content }

// Truncated reports whether the input exceeded the rune budget.
func (r TruncationResult) Truncated() bool { return r.truncated }
