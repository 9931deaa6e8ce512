package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0xabc", ShortHash("0xabc"))
	assert.Equal(t, "0x123456…cdef", ShortHash("0x1234567890abcdef1234567890abcdef"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("  hello ", 10))
	assert.Equal(t, "hel…", Truncate("hello world", 4))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", FormatTime(nil))
	assert.Equal(t, "-", FormatTime(&time.Time{}))

	ts := time.Date(2025, 3, 4, 5, 6, 0, 0, time.Local)
	assert.Equal(t, "2025-03-04 05:06", FormatTime(&ts))
}

func TestWrapText(t *testing.T) {
	out := WrapText("one two three four five six", 12, "  ")
	for _, line := range strings.Split(out, "\n") {
		assert.True(t, strings.HasPrefix(line, "  "), "line %q is not indented", line)
	}
	assert.Contains(t, out, "three")
}

func TestFormatList(t *testing.T) {
	out := FormatList([]string{"first", "second"}, "-")
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")

	assert.Contains(t, FormatList([]string{"x"}, ""), "•")
	assert.Empty(t, FormatList(nil, "-"))
}

func TestStatusColors(t *testing.T) {
	assert.Equal(t, Theme.Success, StatusColors("completed"))
	assert.Equal(t, Theme.Warning, StatusColors("in_progress"))
	assert.Equal(t, Theme.Subtle, StatusColors("not_started"))
}

func TestRenderMarkdownKeepsContent(t *testing.T) {
	out := RenderMarkdown("# Swap\n\nSwap some tokens", 80)
	assert.Contains(t, out, "Swap some tokens")
}
