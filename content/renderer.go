package content

import (
	"bytes"
	"fmt"
	"regexp"
	"text/template"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Content is the rendered output for one message.
type Content struct {
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Metadata map[string]string `json:"metadata"`
}

// Renderer produces channel-ready content for a template. A failed
// render must degrade to empty content; callers never see a panic.
type Renderer interface {
	Render(templateID string, personalization map[string]string, channel, lang string) (*Content, error)
}

// MobileBodyLimit is the hard cap for sms/whatsapp bodies.
const MobileBodyLimit = 320

// Embedded message templates, keyed by template ID then language.
var messageTemplates = map[string]map[string]struct {
	Subject string
	Body    string
}{
	"intro_email": {
		"en": {
			Subject: "{{.first_name}}, a quick intro from {{.company}}",
			Body:    "Hi {{.first_name}},\n\nI wanted to reach out about {{.product}}. Would you be open to a short call this week?\n\nBest,\n{{.sender_name}}",
		},
		"es": {
			Subject: "{{.first_name}}, una breve presentación de {{.company}}",
			Body:    "Hola {{.first_name}},\n\nQuería contarte sobre {{.product}}. ¿Tienes unos minutos esta semana?\n\nSaludos,\n{{.sender_name}}",
		},
	},
	"followup_email": {
		"en": {
			Subject: "Following up, {{.first_name}}",
			Body:    "Hi {{.first_name}},\n\nJust checking in on my last note about {{.product}}. Happy to share more details, reply now and I'll send them over.\n\nBest,\n{{.sender_name}}",
		},
	},
	"final_email": {
		"en": {
			Subject: "Closing the loop, {{.first_name}}",
			Body:    "Hi {{.first_name}},\n\nI'll stop here unless I hear back. If {{.product}} becomes relevant later, you know where to find me.\n\nBest,\n{{.sender_name}}",
		},
	},
	"cart_recovery_whatsapp": {
		"en": {
			Body: "Hey {{.first_name}}! You left {{.product}} in your cart. Use code {{.offer_code}} to finish your order: {{.short_url}}",
		},
	},
	"cold_lead_sms": {
		"en": {
			Body: "Hi {{.first_name}}, still interested in {{.product}}? Grab {{.offer_code}} here: {{.short_url}}",
		},
	},
}

// Short-form replacements applied to sms/whatsapp bodies.
var ctaReplacements = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`(?i)click here`), "Tap!"},
	{regexp.MustCompile(`(?i)learn more`), "More info"},
	{regexp.MustCompile(`(?i)shop now`), "Shop!"},
	{regexp.MustCompile(`(?i)see details`), "Details"},
	{regexp.MustCompile(`(?i)contact us`), "Msg us!"},
	{regexp.MustCompile(`(?i)reply now`), "Reply!"},
}

// TemplateRenderer renders the embedded template set.
type TemplateRenderer struct {
	logger *logrus.Logger
}

func NewTemplateRenderer(logger *logrus.Logger) *TemplateRenderer {
	if logger == nil {
		logger = logrus.New()
	}
	return &TemplateRenderer{logger: logger}
}

// Degraded is the fallback content returned when rendering fails.
func Degraded() *Content {
	return &Content{
		Subject:  "",
		Body:     "",
		Metadata: map[string]string{"variant_id": "fallback"},
	}
}

func (r *TemplateRenderer) Render(templateID string, personalization map[string]string, channel, lang string) (*Content, error) {
	variants, ok := messageTemplates[templateID]
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"template_id": templateID,
			"channel":     channel,
		}).Error("Template not found")
		return Degraded(), fmt.Errorf("template %q not found", templateID)
	}

	if lang == "" {
		lang = "en"
	}
	variant, ok := variants[lang]
	variantID := lang
	if !ok {
		variant = variants["en"]
		variantID = "fallback"
	}

	data := withDefaults(personalization)

	subject, err := renderText(templateID+"_subject", variant.Subject, data)
	if err != nil {
		r.logger.WithField("template_id", templateID).WithError(err).Error("Subject render failed")
		return Degraded(), err
	}
	body, err := renderText(templateID+"_body", variant.Body, data)
	if err != nil {
		r.logger.WithField("template_id", templateID).WithError(err).Error("Body render failed")
		return Degraded(), err
	}

	truncated := false
	if channel == "sms" || channel == "whatsapp" {
		body, truncated = enforceMobileRules(body)
		if truncated {
			r.logger.WithFields(logrus.Fields{
				"template_id": templateID,
				"lang":        lang,
			}).Warn("Mobile content truncated")
		}
	}

	return &Content{
		Subject: subject,
		Body:    body,
		Metadata: map[string]string{
			"variant_id": variantID,
			"truncated":  fmt.Sprintf("%t", truncated),
		},
	}, nil
}

func renderText(name, text string, data map[string]string) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func withDefaults(personalization map[string]string) map[string]string {
	data := map[string]string{
		"first_name":  "there",
		"product":     "our product",
		"offer_code":  "WELCOME",
		"short_url":   "bit.ly/offer",
		"company":     "our team",
		"sender_name": "The Team",
	}
	for k, v := range personalization {
		if v != "" {
			data[k] = v
		}
	}
	return data
}

// enforceMobileRules shortens common CTAs and truncates the body to the
// mobile limit. The cut never splits a multi-byte rune.
func enforceMobileRules(body string) (string, bool) {
	for _, cta := range ctaReplacements {
		body = cta.pattern.ReplaceAllString(body, cta.repl)
	}
	if len(body) > MobileBodyLimit {
		cut := MobileBodyLimit - 3
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		return body[:cut] + "...", true
	}
	return body, false
}
