package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"leadflow/content"
	"leadflow/models"
	"leadflow/store"
)

// Trigger rule parameters. The rule list is fixed and hand-authored;
// this is not a pluggable rule language.
const (
	cartAbandonAge   = 60 * time.Minute
	cartCooldown     = 120 * time.Minute
	nudgeCooldown    = 180 * time.Minute
	coldScoreCeiling = 3
	coldMinEmailSent = 2
)

// Trigger and suppression identifiers used in audit entries.
const (
	TriggerCartRecovery = "cart_recovery"
	TriggerColdNudge    = "cold_lead_nudge"
	TriggerReplyAck     = "reply_ack"
	TriggerUnsubscribe  = "unsubscribe"
	TriggerNone         = "no_trigger"

	ReasonCooldownOrMissingWhatsApp = "cooldown_or_missing_whatsapp"
	ReasonCooldownOrMissingPhone    = "cooldown_or_missing_phone"
	ReasonReplyReceived             = "reply_received"
	ReasonUnsubscribed              = "unsubscribed"
)

var replyEventTypes = map[string]bool{
	"email_reply":    true,
	"linkedin_reply": true,
	"sms_reply":      true,
	"whatsapp_reply": true,
}

// Messenger is the outbound send collaborator consumed by the trigger
// evaluator.
type Messenger interface {
	SendSMS(leadID, toNumber, body string) *models.MessageEvent
	SendWhatsApp(leadID, toNumber, body string) *models.MessageEvent
}

// Evaluator is the contract the scorer and progressor call after every
// persisted state change.
type Evaluator interface {
	EvaluateAndTrigger(state *models.LeadState) *models.MessageEvent
}

// TriggerEvaluator inspects a freshly persisted lead state and fires at
// most one out-of-band message per evaluation, or explicitly suppresses.
// It never mutates the lead state; its only side effect besides sending
// is one audit record per call.
type TriggerEvaluator struct {
	audit     store.AuditStore
	messenger Messenger
	renderer  content.Renderer
	cooldowns *CooldownGuard
	metrics   Metrics
	logger    *logrus.Logger
	notify    func(*models.TriggerAudit)
	now       func() time.Time
}

func NewTriggerEvaluator(audit store.AuditStore, messenger Messenger, renderer content.Renderer, metrics Metrics, logger *logrus.Logger) *TriggerEvaluator {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &TriggerEvaluator{
		audit:     audit,
		messenger: messenger,
		renderer:  renderer,
		cooldowns: NewCooldownGuard(),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// SetNotify registers a sink that receives a copy of every audit entry,
// used for the live trigger feed.
func (te *TriggerEvaluator) SetNotify(fn func(*models.TriggerAudit)) {
	te.notify = fn
}

// EvaluateAndTrigger walks the rule list in priority order. The first
// rule whose precondition holds decides the whole evaluation: either a
// message goes out and its event is returned, or the lead is suppressed
// and nil is returned. Later rules are not consulted that cycle.
func (te *TriggerEvaluator) EvaluateAndTrigger(state *models.LeadState) *models.MessageEvent {
	if state == nil {
		return nil
	}
	now := te.now().UTC()

	// Rule 1: cart recovery over whatsapp.
	if abandonedAt, ok := cartAbandonedAt(state); ok && now.Sub(abandonedAt) > cartAbandonAge {
		whatsapp := state.Metadata["whatsapp"]
		if whatsapp != "" && te.cooldowns.CheckAndReserve(state.LeadID, models.ChannelWhatsApp, cartCooldown, now) {
			body := te.renderBody("cart_recovery_whatsapp", state, models.ChannelWhatsApp)
			event := te.messenger.SendWhatsApp(state.LeadID, whatsapp, body)
			te.metrics.TriggerFired(TriggerCartRecovery, models.ChannelWhatsApp)
			te.recordAudit(state.LeadID, TriggerCartRecovery, models.ChannelWhatsApp, string(event.Status), map[string]string{
				"message_id": event.MessageID,
			})
			return event
		}
		te.metrics.TriggerSuppressed(ReasonCooldownOrMissingWhatsApp)
		te.recordAudit(state.LeadID, TriggerCartRecovery, models.ChannelWhatsApp, "suppressed", map[string]string{
			"reason": ReasonCooldownOrMissingWhatsApp,
		})
		return nil
	}

	// Rule 2: cold-lead nudge over sms.
	if state.EngagementScore < coldScoreCeiling && countEvents(state, "email_sent") >= coldMinEmailSent {
		phone := state.Metadata["phone"]
		if phone != "" && te.cooldowns.CheckAndReserve(state.LeadID, models.ChannelSMS, nudgeCooldown, now) {
			body := te.renderBody("cold_lead_sms", state, models.ChannelSMS)
			event := te.messenger.SendSMS(state.LeadID, phone, body)
			te.metrics.TriggerFired(TriggerColdNudge, models.ChannelSMS)
			te.recordAudit(state.LeadID, TriggerColdNudge, models.ChannelSMS, string(event.Status), map[string]string{
				"message_id": event.MessageID,
			})
			return event
		}
		te.metrics.TriggerSuppressed(ReasonCooldownOrMissingPhone)
		te.recordAudit(state.LeadID, TriggerColdNudge, models.ChannelSMS, "suppressed", map[string]string{
			"reason": ReasonCooldownOrMissingPhone,
		})
		return nil
	}

	// Rule 3: a reply on any channel pauses all reactive outreach.
	if hasReplyEvent(state) {
		te.metrics.TriggerSuppressed(ReasonReplyReceived)
		te.recordAudit(state.LeadID, TriggerReplyAck, "all", "suppressed", map[string]string{
			"reason": ReasonReplyReceived,
		})
		return nil
	}

	// Rule 4: unsubscribed leads are never triggered.
	if countEvents(state, "unsubscribe") > 0 {
		te.metrics.TriggerSuppressed(ReasonUnsubscribed)
		te.recordAudit(state.LeadID, TriggerUnsubscribe, "all", "suppressed", map[string]string{
			"reason": ReasonUnsubscribed,
		})
		return nil
	}

	// No rule matched.
	te.recordAudit(state.LeadID, TriggerNone, "none", "skipped", map[string]string{})
	return nil
}

func (te *TriggerEvaluator) renderBody(templateID string, state *models.LeadState, channel string) string {
	lang := state.Metadata["lang"]
	personalization := map[string]string{
		"first_name": state.Metadata["first_name"],
		"product":    state.Metadata["product"],
		"offer_code": state.Metadata["offer_code"],
		"short_url":  state.Metadata["short_url"],
	}
	if channel == models.ChannelWhatsApp {
		if v := state.Metadata["cart_product"]; v != "" {
			personalization["product"] = v
		}
		if v := state.Metadata["cart_offer_code"]; v != "" {
			personalization["offer_code"] = v
		}
		if v := state.Metadata["cart_url"]; v != "" {
			personalization["short_url"] = v
		}
	}

	rendered, err := te.renderer.Render(templateID, personalization, channel, lang)
	if err != nil {
		te.logger.WithFields(logrus.Fields{
			"lead_id":     state.LeadID,
			"template_id": templateID,
		}).WithError(err).Error("Trigger content render failed, sending degraded body")
		return content.Degraded().Body
	}
	return rendered.Body
}

// recordAudit writes one structured entry per evaluation. Audit failures
// are logged and never abort the evaluation.
func (te *TriggerEvaluator) recordAudit(leadID, triggerType, channel, status string, details map[string]string) {
	entry := &models.TriggerAudit{
		LeadID:      leadID,
		TriggerType: triggerType,
		Channel:     channel,
		Status:      status,
		Details:     details,
	}
	if err := te.audit.AppendAudit(entry); err != nil {
		te.logger.WithFields(logrus.Fields{
			"lead_id":      leadID,
			"trigger_type": triggerType,
		}).WithError(err).Error("Failed to append trigger audit")
	}
	te.logger.WithFields(logrus.Fields{
		"lead_id":      leadID,
		"trigger_type": triggerType,
		"channel":      channel,
		"status":       status,
	}).Info("Trigger evaluated")
	if te.notify != nil {
		te.notify(entry)
	}
}

func cartAbandonedAt(state *models.LeadState) (time.Time, bool) {
	raw := state.Metadata["cart_abandoned_at"]
	if raw == "" {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		// Timestamps written without a zone are treated as UTC.
		at, err = time.ParseInLocation("2006-01-02T15:04:05", raw, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
	}
	return at, true
}

func countEvents(state *models.LeadState, eventType string) int {
	n := 0
	for _, e := range state.EngagementHistory {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

func hasReplyEvent(state *models.LeadState) bool {
	for _, e := range state.EngagementHistory {
		if replyEventTypes[e.EventType] {
			return true
		}
	}
	return false
}
