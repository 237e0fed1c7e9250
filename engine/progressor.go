package engine

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"leadflow/content"
	"leadflow/models"
	"leadflow/store"
)

// Action describes the next scripted send for a lead. Producing an
// action has no side effect on attempts or the stage index; those only
// change through CompleteStage.
type Action struct {
	StageID    string            `json:"stage_id"`
	TemplateID string            `json:"template_id"`
	Channel    string            `json:"channel"`
	Content    *content.Content  `json:"content"`
	Metadata   map[string]string `json:"metadata"`
}

// Progressor advances leads through their scripted campaign stages.
type Progressor struct {
	store     store.LeadStore
	sequences store.SequenceStore
	renderer  content.Renderer
	scorer    *Scorer
	triggers  Evaluator
	metrics   Metrics
	crm       CRMHandoff
	logger    *logrus.Logger
	now       func() time.Time
}

// SetCRMHandoff registers an optional CRM sink that receives leads when
// they complete their sequence.
func (p *Progressor) SetCRMHandoff(h CRMHandoff) {
	p.crm = h
}

func NewProgressor(leadStore store.LeadStore, sequences store.SequenceStore, renderer content.Renderer, scorer *Scorer, triggers Evaluator, metrics Metrics, logger *logrus.Logger) *Progressor {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Progressor{
		store:     leadStore,
		sequences: sequences,
		renderer:  renderer,
		scorer:    scorer,
		triggers:  triggers,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// InitializeLeadSequence creates the lead's state from the campaign's
// stage definitions and records the definitions against the campaign.
// A lead is initialized exactly once.
func (p *Progressor) InitializeLeadSequence(leadID, campaignID string, defs []models.StageDefinition, metadata map[string]string) (*models.LeadState, error) {
	existing, err := p.store.Load(leadID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("lead %s already has a sequence", leadID)
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("campaign %s has no stage definitions", campaignID)
	}

	stages := make([]models.SequenceStage, 0, len(defs))
	for _, def := range defs {
		maxAttempts := def.MaxAttempts
		if maxAttempts == 0 {
			maxAttempts = models.DefaultMaxAttempts
		}
		channel := def.Channel
		if channel == "" {
			channel = models.DefaultChannel
		}
		stages = append(stages, models.SequenceStage{
			StageID:     def.StageID,
			TemplateID:  def.TemplateID,
			Channel:     channel,
			DelayHours:  def.DelayHours,
			Status:      models.StagePending,
			MaxAttempts: maxAttempts,
		})
	}

	if metadata == nil {
		metadata = map[string]string{}
	}
	state := &models.LeadState{
		LeadID:            leadID,
		CampaignID:        campaignID,
		Status:            models.LeadStatusActive,
		CurrentStage:      0,
		LastTouch:         p.now().UTC(),
		SequenceStages:    stages,
		EngagementHistory: []models.EngagementEvent{},
		Metadata:          metadata,
	}
	if err := p.store.Save(state); err != nil {
		return nil, err
	}

	if err := p.sequences.SaveSequence(&models.CampaignSequence{
		CampaignID: campaignID,
		Stages:     defs,
	}); err != nil {
		p.logger.WithField("campaign_id", campaignID).WithError(err).Error("Failed to record campaign sequence")
	}

	p.logger.WithFields(logrus.Fields{
		"lead_id":     leadID,
		"campaign_id": campaignID,
		"stages":      len(stages),
	}).Info("Lead sequence initialized")
	return state, nil
}

// GetNextAction decides whether the lead's current stage should fire
// now. It returns nil without touching attempts or the stage index when
// the lead is not ACTIVE, should pause, is mid-delay, or has exhausted
// its stages. Repeated calls before CompleteStage return the same
// action.
func (p *Progressor) GetNextAction(leadID, campaignID string) (*Action, error) {
	state, err := p.store.Load(leadID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		p.logger.WithField("lead_id", leadID).Warn("Lead state not found for next action")
		return nil, nil
	}
	if state.Status != models.LeadStatusActive {
		return nil, nil
	}

	pause, err := p.scorer.ShouldPauseLead(leadID, 0)
	if err != nil {
		return nil, err
	}
	if pause {
		if err := state.Pause(); err == nil {
			if err := p.store.Save(state); err != nil {
				return nil, err
			}
		}
		p.logger.WithFields(logrus.Fields{
			"lead_id": leadID,
			"score":   state.EngagementScore,
		}).Info("Lead paused on low engagement")
		return nil, nil
	}

	stage := state.NextStage()
	if stage == nil {
		if err := state.Complete(); err == nil {
			if err := p.store.Save(state); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	// Delay gate: the stage may only fire once its delay has elapsed
	// since the previous stage completed.
	if prev := state.PreviousStage(); prev != nil && prev.CompletedAt != nil {
		readyAt := prev.CompletedAt.Add(time.Duration(stage.DelayHours) * time.Hour)
		if p.now().UTC().Before(readyAt) {
			return nil, nil
		}
	}

	rendered, err := p.renderer.Render(stage.TemplateID, state.Metadata, stage.Channel, state.Metadata["lang"])
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"lead_id":     leadID,
			"template_id": stage.TemplateID,
		}).WithError(err).Error("Content render failed, returning degraded action")
		rendered = content.Degraded()
	}

	p.metrics.SequenceProgressed(campaignID, stage.StageID)

	return &Action{
		StageID:    stage.StageID,
		TemplateID: stage.TemplateID,
		Channel:    stage.Channel,
		Content:    rendered,
		Metadata: map[string]string{
			"lead_id":     leadID,
			"campaign_id": campaignID,
			"stage":       stage.StageID,
			"attempt":     strconv.Itoa(stage.Attempts + 1),
		},
	}, nil
}

// CompleteStage records the outcome of an attempted stage send. Success
// advances the stage index; failure burns an attempt and, once the
// budget is exhausted, fails the lead while leaving the stage index
// where it is. Either way the fresh state goes through the trigger
// evaluator.
func (p *Progressor) CompleteStage(leadID, campaignID string, success bool) error {
	state, err := p.store.Load(leadID)
	if err != nil {
		return err
	}
	if state == nil {
		p.logger.WithField("lead_id", leadID).Warn("Lead state not found for stage completion")
		return nil
	}

	if success {
		state.CompleteCurrentStage(p.now().UTC())
		if state.CurrentStage >= len(state.SequenceStages) {
			if err := state.Complete(); err != nil {
				p.logger.WithField("lead_id", leadID).WithError(err).Warn("Sequence exhausted in non-active status")
			}
		}
	} else {
		state.IncrementAttempts()
		if !state.ShouldRetryStage() {
			if err := state.Fail(); err != nil {
				p.logger.WithField("lead_id", leadID).WithError(err).Warn("Attempts exhausted in non-active status")
			}
		}
	}

	if err := p.store.Save(state); err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"lead_id":     leadID,
		"campaign_id": campaignID,
		"success":     success,
		"new_status":  state.Status,
		"stage_index": state.CurrentStage,
	}).Info("Stage completed")

	p.evaluateTriggers(leadID, campaignID)

	// A finished sequence hands the lead off to the CRM.
	if p.crm != nil && state.Status == models.LeadStatusCompleted {
		handed := p.crm.Push(state)
		p.logger.WithFields(logrus.Fields{
			"lead_id":     leadID,
			"campaign_id": campaignID,
			"handed_off":  handed,
		}).Info("CRM handoff on sequence completion")
	}
	return nil
}

// evaluateTriggers reloads the persisted state so the evaluation always
// observes the state after the stage change. Evaluation problems are
// logged, never propagated.
func (p *Progressor) evaluateTriggers(leadID, campaignID string) {
	fresh, err := p.store.Load(leadID)
	if err != nil || fresh == nil {
		p.logger.WithFields(logrus.Fields{
			"lead_id":     leadID,
			"campaign_id": campaignID,
		}).WithError(err).Error("Could not reload state for trigger evaluation")
		return
	}
	p.triggers.EvaluateAndTrigger(fresh)
	p.logger.WithFields(logrus.Fields{
		"lead_id":     leadID,
		"campaign_id": campaignID,
		"stage":       fresh.CurrentStage,
		"status":      fresh.Status,
	}).Info("Trigger evaluation after stage advancement")
}

// PauseSequence forces an ACTIVE lead to PAUSED.
func (p *Progressor) PauseSequence(leadID string) error {
	return p.transition(leadID, "Sequence paused", func(state *models.LeadState) error {
		return state.Pause()
	})
}

// ResumeSequence returns a PAUSED lead to ACTIVE. Resuming from any
// other status is rejected.
func (p *Progressor) ResumeSequence(leadID string) error {
	return p.transition(leadID, "Sequence resumed", func(state *models.LeadState) error {
		return state.Resume()
	})
}

// TerminateSequence moves the lead to the terminal UNSUBSCRIBED status.
func (p *Progressor) TerminateSequence(leadID, reason string) error {
	return p.transition(leadID, "Sequence terminated ("+reason+")", func(state *models.LeadState) error {
		return state.Terminate()
	})
}

func (p *Progressor) transition(leadID, message string, fn func(*models.LeadState) error) error {
	state, err := p.store.Load(leadID)
	if err != nil {
		return err
	}
	if state == nil {
		p.logger.WithField("lead_id", leadID).Warn("Lead state not found for transition")
		return nil
	}
	if err := fn(state); err != nil {
		return err
	}
	if err := p.store.Save(state); err != nil {
		return err
	}
	p.logger.WithFields(logrus.Fields{
		"lead_id":     leadID,
		"campaign_id": state.CampaignID,
		"status":      state.Status,
	}).Info(message)
	return nil
}
