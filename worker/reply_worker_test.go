package worker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunesShortStringUntouched(t *testing.T) {
	assert.Equal(t, "hola", truncateRunes("hola", replySnippetLimit))
}

func TestTruncateRunesKeepsRuneBoundary(t *testing.T) {
	// The cap lands inside the two-byte "é".
	s := strings.Repeat("x", replySnippetLimit-1) + "ééé"

	out := truncateRunes(s, replySnippetLimit)

	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), replySnippetLimit)
	assert.Equal(t, strings.Repeat("x", replySnippetLimit-1), out)
}

func TestTruncateRunesExactBoundary(t *testing.T) {
	s := strings.Repeat("ñ", replySnippetLimit/2)
	assert.Equal(t, s, truncateRunes(s, replySnippetLimit))
}
