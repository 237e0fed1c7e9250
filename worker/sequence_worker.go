package worker

import (
	"context"
	"log"
	"time"

	"leadflow/config"
	"leadflow/engine"
	"leadflow/messaging"
	"leadflow/models"
	"leadflow/store"
	"leadflow/utils"
)

const activeLeadBatchSize = 200

// SequenceWorker drives scripted sequence progression. Each tick it asks
// the progressor for the next action of every active lead and dispatches
// whatever is due. All state changes go through the progressor; the
// worker itself is stateless.
type SequenceWorker struct {
	Store      *store.GormStore
	Progressor *engine.Progressor
	Scorer     *engine.Scorer
	Messenger  *messaging.PersonalMessenger
	Logger     *log.Logger
	Interval   time.Duration
}

func NewSequenceWorker(st *store.GormStore, progressor *engine.Progressor, scorer *engine.Scorer, messenger *messaging.PersonalMessenger, logger *log.Logger) *SequenceWorker {
	interval := time.Duration(config.AppConfig.SequenceTickSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &SequenceWorker{
		Store:      st,
		Progressor: progressor,
		Scorer:     scorer,
		Messenger:  messenger,
		Logger:     logger,
		Interval:   interval,
	}
}

func (sw *SequenceWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	sw.Logger.Printf("Sequence worker started (tick every %s)", utils.FormatDuration(sw.Interval))

	ticker := time.NewTicker(sw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.Logger.Println("Sequence worker shutting down...")
			return
		case <-ticker.C:
			sw.processActiveLeads()
		}
	}
}

func (sw *SequenceWorker) processActiveLeads() {
	leads, err := sw.Store.ListActiveLeads(activeLeadBatchSize)
	if err != nil {
		sw.Logger.Printf("Error listing active leads: %v", err)
		return
	}

	for i := range leads {
		lead := &leads[i]
		action, err := sw.Progressor.GetNextAction(lead.LeadID, lead.CampaignID)
		if err != nil {
			sw.Logger.Printf("Error computing next action for lead %s: %v", lead.LeadID, err)
			continue
		}
		if action == nil {
			continue
		}
		sw.dispatch(lead, action)
	}
}

// dispatch sends one scripted action and reports the outcome back to the
// progressor so the attempt budget stays accurate.
func (sw *SequenceWorker) dispatch(lead *models.LeadState, action *engine.Action) {
	var success bool

	switch action.Channel {
	case models.ChannelEmail:
		success = sw.sendEmail(lead, action)
	case models.ChannelSMS:
		to := lead.Metadata["phone"]
		if to == "" {
			sw.Logger.Printf("Lead %s has no phone number for sms stage %s", lead.LeadID, action.StageID)
		} else {
			event := sw.Messenger.SendSMS(lead.LeadID, to, action.Content.Body)
			success = event.Status == models.MessageSent
		}
	case models.ChannelWhatsApp:
		to := lead.Metadata["whatsapp"]
		if to == "" {
			sw.Logger.Printf("Lead %s has no whatsapp number for stage %s", lead.LeadID, action.StageID)
		} else {
			event := sw.Messenger.SendWhatsApp(lead.LeadID, to, action.Content.Body)
			success = event.Status == models.MessageSent
		}
	default:
		sw.Logger.Printf("Unknown channel %q for lead %s stage %s", action.Channel, lead.LeadID, action.StageID)
	}

	if err := sw.Progressor.CompleteStage(lead.LeadID, lead.CampaignID, success); err != nil {
		sw.Logger.Printf("Error completing stage %s for lead %s: %v", action.StageID, lead.LeadID, err)
		return
	}

	if success {
		eventType := action.Channel + "_sent"
		if err := sw.Scorer.TrackEvent(lead.LeadID, eventType, map[string]string{
			"stage_id": action.StageID,
			"attempt":  action.Metadata["attempt"],
		}); err != nil {
			sw.Logger.Printf("Error tracking %s for lead %s: %v", eventType, lead.LeadID, err)
		}
	}
}

func (sw *SequenceWorker) sendEmail(lead *models.LeadState, action *engine.Action) bool {
	to := lead.Metadata["email"]
	if to == "" {
		sw.Logger.Printf("Lead %s has no email address for stage %s", lead.LeadID, action.StageID)
		return false
	}

	body := utils.InjectTracking(action.Content.Body, config.AppConfig.TrackingBaseURL, lead.LeadID, action.StageID)
	return sw.Messenger.SendEmail(lead.LeadID, to, action.Content.Subject, body)
}
