package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInjectTrackingAddsPixel(t *testing.T) {
	html := "<p>Hello</p>"
	out := InjectTracking(html, "https://track.example.com", "lead-1", "s1")

	assert.True(t, strings.HasPrefix(out, html))
	assert.Contains(t, out, "https://track.example.com/track/open/lead-1/")
	assert.Contains(t, out, `width="1" height="1"`)
}

func TestInjectTrackingRewritesLinks(t *testing.T) {
	html := `<p>See <a href="https://example.com/offer">the offer</a></p>`
	out := InjectTracking(html, "https://track.example.com", "lead-1", "s1")

	assert.Contains(t, out, "https://track.example.com/track/click/lead-1/")
	assert.Contains(t, out, "url=https%3A%2F%2Fexample.com%2Foffer")
	assert.NotContains(t, out, `href="https://example.com/offer"`)
}

func TestGenerateClickTrackURLEscapesTarget(t *testing.T) {
	url := GenerateClickTrackURL("https://track.example.com", "lead-1", "s1", "https://example.com/a?b=c&d=e")

	assert.Contains(t, url, "/track/click/lead-1/")
	assert.Contains(t, url, "url=https%3A%2F%2Fexample.com%2Fa%3Fb%3Dc%26d%3De")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "1 days", FormatDuration(36*time.Hour))
	assert.Equal(t, "2.5 hours", FormatDuration(150*time.Minute))
	assert.Equal(t, "30.0 minutes", FormatDuration(30*time.Minute))
}
