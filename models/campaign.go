package models

import (
	"gorm.io/gorm"
)

// DefaultMaxAttempts applies when a stage definition does not set its
// own attempt budget.
const DefaultMaxAttempts = 3

// DefaultChannel applies when a stage definition does not name a
// delivery channel.
const DefaultChannel = "email"

// StageDefinition describes one step of a campaign sequence as supplied
// by the sequence definition source. It is copied into each lead's
// SequenceStages at initialization and never consulted again for that
// lead.
type StageDefinition struct {
	StageID     string `json:"stage_id" validate:"required"`
	TemplateID  string `json:"template_id" validate:"required"`
	Channel     string `json:"channel"`
	DelayHours  int    `json:"delay_hours" validate:"min=0"`
	MaxAttempts int    `json:"max_attempts" validate:"min=0"`
}

// CampaignSequence is the durable per-campaign record holding the stage
// definitions that were in force when its leads were initialized.
type CampaignSequence struct {
	gorm.Model
	CampaignID string `gorm:"uniqueIndex;not null" json:"campaign_id"`
	Name       string `json:"name"`

	Stages []StageDefinition `gorm:"type:jsonb;serializer:json" json:"stages"`
}
