package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateAtBlockBoundary_UnderBudget(t *testing.T) {
	content := []byte("# Title\n\nShort body.")
	result, err := TruncateAtBlockBoundary(content, DefaultMaxRunes)
	require.Nil(t, err)
	require.False(t, result.Truncated())
	require.Equal(t, content, result.Content())
}

func TestTruncateAtBlockBoundary_OverBudget(t *testing.T) {
	var blocks []string
	for i := 0; i < 2000; i++ {
		blocks = append(blocks, "paragraph text that repeats to pad length")
	}
	content := []byte(strings.Join(blocks, "\n\n"))

	result, err := TruncateAtBlockBoundary(content, DefaultMaxRunes)
	require.Nil(t, err)
	require.True(t, result.Truncated())
	require.LessOrEqual(t, len([]rune(string(result.Content()))), DefaultMaxRunes+50)
	require.True(t, strings.HasPrefix(string(result.Content()), blocks[0]))
}

func TestTruncateAtBlockBoundary_DoesNotSplitFencedCodeBlock(t *testing.T) {
	content := []byte("# Title\n\n```\nline one\n\nline two\n```\n\nAfter.")
	result, err := TruncateAtBlockBoundary(content, 1)
	require.Nil(t, err)
	require.True(t, result.Truncated())
	require.Equal(t, 0, strings.Count(string(result.Content()), "```")%2)
}
