package handlers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))

	out := truncate("abcdef", 3)
	assert.Equal(t, "abc\n...", out)

	// "é" is two bytes; cutting at 2 would split it.
	out = truncate("aé"+strings.Repeat("x", 10), 2)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "a\n...", out)

	out = truncate(strings.Repeat("ü", 3000), maxSummaryLen)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), maxSummaryLen+len("\n..."))
}
