package engine

// Metrics receives the engine's observability signals. Implementations
// are owned by the process lifecycle, not by the engine; the engine only
// emits.
type Metrics interface {
	EventTracked(eventType string)
	LeadScore(leadID, campaignID string, score int)
	SequenceProgressed(campaignID, stageID string)
	TriggerFired(triggerType, channel string)
	TriggerSuppressed(reason string)
}

// NopMetrics discards all signals. It is the default when no recorder is
// injected.
type NopMetrics struct{}

func (NopMetrics) EventTracked(string)                 {}
func (NopMetrics) LeadScore(string, string, int)       {}
func (NopMetrics) SequenceProgressed(string, string)   {}
func (NopMetrics) TriggerFired(string, string)         {}
func (NopMetrics) TriggerSuppressed(string)            {}
