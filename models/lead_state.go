package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// LeadStatus is the lifecycle status of a lead inside a campaign sequence.
type LeadStatus string

const (
	LeadStatusActive       LeadStatus = "active"
	LeadStatusPaused       LeadStatus = "paused"
	LeadStatusCompleted    LeadStatus = "completed"
	LeadStatusFailed       LeadStatus = "failed"
	LeadStatusUnsubscribed LeadStatus = "unsubscribed"
)

// Stage statuses
const (
	StagePending   = "pending"
	StageCompleted = "completed"
)

// EngagementEvent is a single observed interaction with a lead.
type EngagementEvent struct {
	EventType  string            `json:"event_type"`
	Timestamp  time.Time         `json:"timestamp"`
	ScoreDelta int               `json:"score_delta"`
	Metadata   map[string]string `json:"metadata"`
}

// SequenceStage is one scripted step of a lead's sequence. DelayHours is
// the minimum wait after the previous stage completed before this stage
// may fire.
type SequenceStage struct {
	StageID     string     `json:"stage_id"`
	TemplateID  string     `json:"template_id"`
	Channel     string     `json:"channel"`
	DelayHours  int        `json:"delay_hours"`
	CompletedAt *time.Time `json:"completed_at"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
}

// LeadState is the canonical per-lead record shared by the scorer, the
// progressor and the trigger evaluator. LeadID and CampaignID are
// immutable after creation; the stage list is fixed-length, set once at
// initialization.
type LeadState struct {
	gorm.Model
	LeadID     string `gorm:"uniqueIndex;not null" json:"lead_id"`
	CampaignID string `gorm:"not null;index" json:"campaign_id"`

	Status          LeadStatus `gorm:"default:'active';index" json:"status"`
	CurrentStage    int        `gorm:"default:0" json:"current_stage"`
	EngagementScore int        `gorm:"default:0" json:"engagement_score"`
	LastTouch       time.Time  `json:"last_touch"`

	SequenceStages    []SequenceStage   `gorm:"type:jsonb;serializer:json" json:"sequence_stages"`
	EngagementHistory []EngagementEvent `gorm:"type:jsonb;serializer:json" json:"engagement_history"`
	Metadata          map[string]string `gorm:"type:jsonb;serializer:json" json:"metadata"`
}

// AddEngagementEvent appends an event, applies its score delta and moves
// LastTouch forward. The history is append-only.
func (s *LeadState) AddEngagementEvent(eventType string, scoreDelta int, metadata map[string]string, at time.Time) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	s.EngagementHistory = append(s.EngagementHistory, EngagementEvent{
		EventType:  eventType,
		Timestamp:  at,
		ScoreDelta: scoreDelta,
		Metadata:   metadata,
	})
	s.EngagementScore += scoreDelta
	s.LastTouch = at
}

// NextStage returns the current pending stage, or nil when the sequence
// is exhausted.
func (s *LeadState) NextStage() *SequenceStage {
	if s.CurrentStage >= len(s.SequenceStages) {
		return nil
	}
	return &s.SequenceStages[s.CurrentStage]
}

// PreviousStage returns the stage before the current one, or nil for the
// first stage.
func (s *LeadState) PreviousStage() *SequenceStage {
	if s.CurrentStage == 0 || s.CurrentStage > len(s.SequenceStages) {
		return nil
	}
	return &s.SequenceStages[s.CurrentStage-1]
}

// CompleteCurrentStage marks the current stage completed at the given
// time and advances the stage index.
func (s *LeadState) CompleteCurrentStage(at time.Time) {
	if s.CurrentStage >= len(s.SequenceStages) {
		return
	}
	stage := &s.SequenceStages[s.CurrentStage]
	stage.CompletedAt = &at
	stage.Status = StageCompleted
	s.CurrentStage++
}

// IncrementAttempts bumps the failure counter of the current stage. The
// stage index never moves on failure.
func (s *LeadState) IncrementAttempts() {
	if s.CurrentStage < len(s.SequenceStages) {
		s.SequenceStages[s.CurrentStage].Attempts++
	}
}

// ShouldRetryStage reports whether the current stage is still within its
// allowed attempt budget.
func (s *LeadState) ShouldRetryStage() bool {
	if s.CurrentStage >= len(s.SequenceStages) {
		return false
	}
	stage := s.SequenceStages[s.CurrentStage]
	return stage.Attempts < stage.MaxAttempts
}

// ShouldPause reports whether the engagement score has dropped below the
// given threshold.
func (s *LeadState) ShouldPause(minScore int) bool {
	return s.EngagementScore < minScore
}

// Pause transitions the lead from ACTIVE to PAUSED.
func (s *LeadState) Pause() error {
	if s.Status != LeadStatusActive {
		return fmt.Errorf("cannot pause lead in status %q", s.Status)
	}
	s.Status = LeadStatusPaused
	return nil
}

// Resume transitions the lead from PAUSED back to ACTIVE. Resuming from
// any other status is rejected.
func (s *LeadState) Resume() error {
	if s.Status != LeadStatusPaused {
		return fmt.Errorf("cannot resume lead in status %q", s.Status)
	}
	s.Status = LeadStatusActive
	return nil
}

// Complete transitions the lead to the terminal COMPLETED status.
func (s *LeadState) Complete() error {
	if s.Status != LeadStatusActive {
		return fmt.Errorf("cannot complete lead in status %q", s.Status)
	}
	s.Status = LeadStatusCompleted
	return nil
}

// Fail transitions the lead to the terminal FAILED status. Max-attempts
// exhaustion is a normal outcome, not an error.
func (s *LeadState) Fail() error {
	if s.Status != LeadStatusActive && s.Status != LeadStatusPaused {
		return fmt.Errorf("cannot fail lead in status %q", s.Status)
	}
	s.Status = LeadStatusFailed
	return nil
}

// Terminate forces the lead to UNSUBSCRIBED. A lead may unsubscribe from
// any status; the transition is terminal.
func (s *LeadState) Terminate() error {
	if s.Status == LeadStatusUnsubscribed {
		return fmt.Errorf("lead already unsubscribed")
	}
	s.Status = LeadStatusUnsubscribed
	return nil
}
