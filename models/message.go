package models

import (
	"time"

	"gorm.io/gorm"
)

// Message channels
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
	ChannelLinkedIn = "linkedin"
)

// MessageStatus is the delivery outcome reported by the messenger.
type MessageStatus string

const (
	MessageQueued   MessageStatus = "queued"
	MessageSent     MessageStatus = "sent"
	MessageFailed   MessageStatus = "failed"
	MessageOptedOut MessageStatus = "opted_out"
)

// MessageEvent is the result of a single outbound send attempt.
type MessageEvent struct {
	MessageID string            `json:"message_id"`
	LeadID    string            `json:"lead_id"`
	Channel   string            `json:"channel"`
	Status    MessageStatus     `json:"status"`
	Content   string            `json:"content,omitempty"`
	SentAt    time.Time         `json:"sent_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// TriggerAudit is one structured audit entry per trigger evaluation,
// written whether the evaluation fired, suppressed or matched nothing.
type TriggerAudit struct {
	gorm.Model
	LeadID      string            `gorm:"not null;index" json:"lead_id"`
	TriggerType string            `gorm:"not null" json:"trigger_type"`
	Channel     string            `json:"channel"`
	Status      string            `gorm:"not null" json:"status"`
	Details     map[string]string `gorm:"type:jsonb;serializer:json" json:"details"`
}
