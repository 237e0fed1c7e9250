package content

import (
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderer() *TemplateRenderer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewTemplateRenderer(logger)
}

func TestRenderPersonalization(t *testing.T) {
	r := testRenderer()

	c, err := r.Render("intro_email", map[string]string{
		"first_name": "Dana",
		"company":    "Acme",
		"product":    "the analytics suite",
	}, "email", "en")
	require.NoError(t, err)

	assert.Contains(t, c.Subject, "Dana")
	assert.Contains(t, c.Subject, "Acme")
	assert.Contains(t, c.Body, "the analytics suite")
	assert.Equal(t, "en", c.Metadata["variant_id"])
}

func TestRenderDefaultsForMissingFields(t *testing.T) {
	r := testRenderer()

	c, err := r.Render("cart_recovery_whatsapp", nil, "whatsapp", "")
	require.NoError(t, err)

	assert.Contains(t, c.Body, "there")
	assert.Contains(t, c.Body, "WELCOME")
}

func TestRenderLanguageVariants(t *testing.T) {
	r := testRenderer()

	es, err := r.Render("intro_email", map[string]string{"first_name": "Luz"}, "email", "es")
	require.NoError(t, err)
	assert.Contains(t, es.Body, "Hola Luz")
	assert.Equal(t, "es", es.Metadata["variant_id"])

	// An unknown language falls back to English.
	fr, err := r.Render("intro_email", nil, "email", "fr")
	require.NoError(t, err)
	assert.Contains(t, fr.Body, "Hi there")
	assert.Equal(t, "fallback", fr.Metadata["variant_id"])
}

func TestRenderUnknownTemplateDegrades(t *testing.T) {
	r := testRenderer()

	c, err := r.Render("no_such_template", nil, "email", "en")
	require.Error(t, err)
	require.NotNil(t, c)
	assert.Empty(t, c.Body)
	assert.Equal(t, "fallback", c.Metadata["variant_id"])
}

func TestMobileBodyTruncation(t *testing.T) {
	r := testRenderer()

	c, err := r.Render("cold_lead_sms", map[string]string{
		"product": strings.Repeat("very long product name ", 30),
	}, "sms", "en")
	require.NoError(t, err)

	assert.LessOrEqual(t, len(c.Body), MobileBodyLimit)
	assert.True(t, strings.HasSuffix(c.Body, "..."))
	assert.Equal(t, "true", c.Metadata["truncated"])
}

func TestEmailBodyNotTruncated(t *testing.T) {
	r := testRenderer()

	long := strings.Repeat("long product description ", 30)
	c, err := r.Render("intro_email", map[string]string{"product": long}, "email", "en")
	require.NoError(t, err)

	assert.Contains(t, c.Body, long)
	assert.Equal(t, "false", c.Metadata["truncated"])
}

func TestMobileTruncationKeepsRuneBoundary(t *testing.T) {
	// Multi-byte runes straddle the cut position.
	body := strings.Repeat("x", MobileBodyLimit-4) + strings.Repeat("é", 10)

	out, truncated := enforceMobileRules(body)

	assert.True(t, truncated)
	assert.True(t, utf8.ValidString(out))
	assert.LessOrEqual(t, len(out), MobileBodyLimit)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestSpanishMobileTruncationStaysValid(t *testing.T) {
	r := testRenderer()

	c, err := r.Render("cart_recovery_whatsapp", map[string]string{
		"first_name": "Íñigo",
		"product":    strings.Repeat("artículo de categoría única ", 20),
	}, "whatsapp", "en")
	require.NoError(t, err)

	assert.Equal(t, "true", c.Metadata["truncated"])
	assert.True(t, utf8.ValidString(c.Body))
	assert.LessOrEqual(t, len(c.Body), MobileBodyLimit)
}

func TestEnforceMobileRules(t *testing.T) {
	short, truncated := enforceMobileRules("Click here to see more. Learn more about us. Reply now!")
	assert.False(t, truncated)
	assert.Equal(t, "Tap! to see more. More info about us. Reply!!", short)

	body, truncated := enforceMobileRules(strings.Repeat("x", 400))
	assert.True(t, truncated)
	assert.Len(t, body, MobileBodyLimit)
}
