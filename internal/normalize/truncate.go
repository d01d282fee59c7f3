// Package normalize truncates rendered Markdown to a rune budget without
// splitting inside a block, per the full-mode Page.Markdown feature.
package normalize

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

const DefaultMaxRunes = 4000

// TruncateAtBlockBoundary parses content to discover its top-level block
// boundaries, then keeps as many leading blocks as fit within maxRunes
// runes, joined on a blank line. Content at or under the budget is returned
// unchanged.
func TruncateAtBlockBoundary(content []byte, maxRunes int) (TruncationResult, *TruncationError) {
	if len([]rune(string(content))) <= maxRunes {
		return NewTruncationResult(content, false), nil
	}

	p := parser.New()
	doc := markdown.Parse(content, p)
	if doc == nil {
		return TruncationResult{}, &TruncationError{
			Message: "parser returned nil document",
			Cause:   ErrCauseParseFailure,
		}
	}

	blockCount := 0
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if node == doc {
			return ast.GoToNext
		}
		if entering && node.GetParent() == doc {
			blockCount++
		}
		return ast.GoToNext
	})

	blocks := splitIntoBlocks(content)
	if blockCount > 0 && blockCount < len(blocks) {
		blocks = blocks[:blockCount]
	}

	var kept []string
	runeBudget := 0
	for _, block := range blocks {
		blockRunes := len([]rune(block))
		if runeBudget > 0 && runeBudget+2+blockRunes > maxRunes {
			break
		}
		kept = append(kept, block)
		runeBudget += blockRunes + 2
	}

	if len(kept) == 0 && len(blocks) > 0 {
		kept = []string{truncateRunes(blocks[0], maxRunes)}
	}

	return NewTruncationResult([]byte(strings.Join(kept, "\n\n")), true), nil
}

// splitIntoBlocks splits markdown source on blank lines, keeping fenced
// code blocks (```...```) intact even when they contain blank lines.
func splitIntoBlocks(content []byte) []string {
	lines := strings.Split(string(content), "\n")

	var blocks []string
	var current []string
	inFence := false

	flush := func() {
		if joined := strings.Join(current, "\n"); strings.TrimSpace(joined) != "" {
			blocks = append(blocks, joined)
		}
		current = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			current = append(current, line)
			continue
		}
		if trimmed == "" && !inFence {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return blocks
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
