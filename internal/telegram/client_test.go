package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitByBytesKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 5)

	parts := splitByBytes(text, 4)
	assert.Equal(t, []string{"éé", "éé", "é"}, parts)
	for _, p := range parts {
		assert.True(t, utf8.ValidString(p))
	}
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestSplitByBytesShortText(t *testing.T) {
	assert.Equal(t, []string{"hi"}, splitByBytes("hi", maxMessageBytes))
}

func TestTruncateByBytes(t *testing.T) {
	assert.Equal(t, "ab", truncateByBytes("abé", 3))
	assert.Equal(t, "abc", truncateByBytes("abc", 3))
}
