package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSinglePartHasNoTag(t *testing.T) {
	m := Message{Header: "Hello", Blocks: []string{"block one", "block two"}}
	parts := Split(m, 1600)
	require.Len(t, parts, 1)
	assert.Equal(t, "Hello\n\nblock one\n\nblock two", parts[0])
	assert.NotContains(t, parts[0], "[1/1]")
}

func TestSplitTagsAndLimits(t *testing.T) {
	blocks := make([]string, 8)
	for i := range blocks {
		blocks[i] = strings.Repeat("x", 120)
	}
	m := Message{Header: "Digest", Blocks: blocks, Footer: "... and more"}

	parts := Split(m, 300)
	require.Greater(t, len(parts), 1)

	for i, p := range parts {
		assert.LessOrEqual(t, len(p), 300, "part %d too long", i)
		assert.True(t, strings.HasPrefix(p, "[") && strings.Contains(p, "] "), "part %d missing tag", i)
	}
	assert.Contains(t, parts[0], "[1/")
	assert.Contains(t, parts[len(parts)-1], "... and more")
}

func TestSplitNeverCutsInsideBlock(t *testing.T) {
	blocks := []string{
		"• Role A - Acme\n  Leeds\n  https://example.com/a",
		"• Role B - Acme\n  York\n  https://example.com/b",
		"• Role C - Acme\n  Hull\n  https://example.com/c",
	}
	m := Message{Header: "New roles", Blocks: blocks}

	parts := Split(m, 90)
	joined := strings.Join(parts, "\n---\n")
	for _, b := range blocks {
		assert.Contains(t, joined, b)
	}
}

func TestSplitThreeDigitPartCountsStayUnderLimit(t *testing.T) {
	// With over 99 parts the "[100/150] " tag is wider than a two-digit
	// one; the reserve must grow with the count or parts overrun.
	blocks := make([]string, 150)
	for i := range blocks {
		blocks[i] = strings.Repeat("x", 10)
	}
	limit := 20

	parts := Split(Message{Blocks: blocks}, limit)
	require.Greater(t, len(parts), 99)
	for i, p := range parts {
		assert.LessOrEqual(t, len(p), limit, "part %d overruns: %q", i, p)
	}
	assert.True(t, strings.HasPrefix(parts[99], "[100/"), "got %q", parts[99])
}

func TestSplitOversizedSingleBlockStillEmitted(t *testing.T) {
	// A block larger than the limit can't be honored; it still goes out
	// as its own part rather than being dropped.
	big := strings.Repeat("y", 500)
	parts := Split(Message{Blocks: []string{big}}, 100)
	require.Len(t, parts, 1)
	assert.Contains(t, parts[0], big)
}
