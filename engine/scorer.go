package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"leadflow/models"
	"leadflow/store"
)

// scoreRules maps event types to score deltas. Unknown event types
// contribute zero; the vocabulary is open on purpose so collaborators
// can record informational events (email_sent, sms_reply, ...) without
// touching the table.
var scoreRules = map[string]int{
	"email_open":  1,
	"email_click": 3,
	"email_reply": 5,
	"unsubscribe": -10,
	"bounce":      -5,
	"spam_report": -15,
}

// ScoreDelta returns the scoring delta for an event type.
func ScoreDelta(eventType string) int {
	return scoreRules[eventType]
}

// Scorer converts inbound engagement events into score and status
// changes on the shared lead state.
type Scorer struct {
	store    store.LeadStore
	triggers Evaluator
	metrics  Metrics
	crm      CRMHandoff
	logger   *logrus.Logger
	now      func() time.Time
}

func NewScorer(leadStore store.LeadStore, triggers Evaluator, metrics Metrics, logger *logrus.Logger) *Scorer {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Scorer{
		store:    leadStore,
		triggers: triggers,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// TrackEvent appends an engagement event, applies its score delta and
// persists the state, then hands the fresh state to the trigger
// evaluator. A lead with no stored state is a logged no-op. Trigger
// evaluation problems never surface to the caller.
func (s *Scorer) TrackEvent(leadID, eventType string, metadata map[string]string) error {
	state, err := s.store.Load(leadID)
	if err != nil {
		return err
	}
	if state == nil {
		s.logger.WithFields(logrus.Fields{
			"lead_id":    leadID,
			"event_type": eventType,
		}).Warn("Lead state not found for event")
		return nil
	}

	delta := ScoreDelta(eventType)
	state.AddEngagementEvent(eventType, delta, metadata, s.now().UTC())

	if err := s.store.Save(state); err != nil {
		return err
	}

	s.metrics.EventTracked(eventType)
	s.metrics.LeadScore(leadID, state.CampaignID, state.EngagementScore)

	s.logger.WithFields(logrus.Fields{
		"lead_id":     leadID,
		"event_type":  eventType,
		"score_delta": delta,
		"new_score":   state.EngagementScore,
	}).Info("Engagement event tracked")

	s.evaluateTriggers(leadID, eventType)

	// A reply qualifies the lead for CRM handoff.
	if s.crm != nil && replyEventTypes[eventType] {
		handed := s.crm.Push(state)
		s.logger.WithFields(logrus.Fields{
			"lead_id":    leadID,
			"event_type": eventType,
			"handed_off": handed,
		}).Info("CRM handoff on reply")
	}
	return nil
}

// SetCRMHandoff registers an optional CRM sink that receives leads when
// they reply.
func (s *Scorer) SetCRMHandoff(h CRMHandoff) {
	s.crm = h
}

// evaluateTriggers reloads the just-persisted state and runs the trigger
// evaluator on it, so the evaluation always observes the state after the
// event that provoked it.
func (s *Scorer) evaluateTriggers(leadID, eventType string) {
	fresh, err := s.store.Load(leadID)
	if err != nil || fresh == nil {
		s.logger.WithFields(logrus.Fields{
			"lead_id":    leadID,
			"event_type": eventType,
		}).WithError(err).Error("Could not reload state for trigger evaluation")
		return
	}
	result := s.triggers.EvaluateAndTrigger(fresh)
	fields := logrus.Fields{
		"lead_id":    leadID,
		"event_type": eventType,
	}
	if result != nil {
		fields["trigger_status"] = result.Status
		fields["trigger_channel"] = result.Channel
	}
	s.logger.WithFields(fields).Info("Trigger evaluation after engagement event")
}

// GetLeadScore returns the current engagement score, zero when the lead
// is unknown.
func (s *Scorer) GetLeadScore(leadID string) (int, error) {
	state, err := s.store.Load(leadID)
	if err != nil {
		return 0, err
	}
	if state == nil {
		return 0, nil
	}
	return state.EngagementScore, nil
}

// GetEngagementHistory returns the ordered event history, empty when the
// lead is unknown.
func (s *Scorer) GetEngagementHistory(leadID string) ([]models.EngagementEvent, error) {
	state, err := s.store.Load(leadID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return []models.EngagementEvent{}, nil
	}
	return state.EngagementHistory, nil
}

// ShouldPauseLead reports whether the lead's score has dropped below
// minScore. Unknown leads are never paused.
func (s *Scorer) ShouldPauseLead(leadID string, minScore int) (bool, error) {
	state, err := s.store.Load(leadID)
	if err != nil {
		return false, err
	}
	if state == nil {
		return false, nil
	}
	return state.ShouldPause(minScore), nil
}

// ResetLeadScore clears the score and empties the history. Status is
// untouched.
func (s *Scorer) ResetLeadScore(leadID string) error {
	state, err := s.store.Load(leadID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	state.EngagementScore = 0
	state.EngagementHistory = []models.EngagementEvent{}
	if err := s.store.Save(state); err != nil {
		return err
	}

	s.metrics.LeadScore(leadID, state.CampaignID, 0)
	s.logger.WithField("lead_id", leadID).Info("Lead score reset")
	return nil
}
