package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics implements engine.Metrics on top of a Prometheus registry.
type PromMetrics struct {
	engagementEvents   *prometheus.CounterVec
	leadScores         *prometheus.GaugeVec
	sequenceProgress   *prometheus.CounterVec
	triggersFired      *prometheus.CounterVec
	triggersSuppressed *prometheus.CounterVec
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PromMetrics{
		engagementEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_engagement_events_total",
			Help: "Number of engagement events by type",
		}, []string{"event_type"}),
		leadScores: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "leadflow_lead_scores",
			Help: "Current engagement scores for leads",
		}, []string{"lead_id", "campaign_id"}),
		sequenceProgress: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_sequence_progress_total",
			Help: "Number of leads progressing through sequence stages",
		}, []string{"campaign_id", "stage_id"}),
		triggersFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_triggers_fired_total",
			Help: "Number of triggers fired",
		}, []string{"type", "channel"}),
		triggersSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadflow_triggers_suppressed_total",
			Help: "Number of triggers suppressed",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.engagementEvents,
		m.leadScores,
		m.sequenceProgress,
		m.triggersFired,
		m.triggersSuppressed,
	)
	return m
}

func (m *PromMetrics) EventTracked(eventType string) {
	m.engagementEvents.WithLabelValues(eventType).Inc()
}

func (m *PromMetrics) LeadScore(leadID, campaignID string, score int) {
	m.leadScores.WithLabelValues(leadID, campaignID).Set(float64(score))
}

func (m *PromMetrics) SequenceProgressed(campaignID, stageID string) {
	m.sequenceProgress.WithLabelValues(campaignID, stageID).Inc()
}

func (m *PromMetrics) TriggerFired(triggerType, channel string) {
	m.triggersFired.WithLabelValues(triggerType, channel).Inc()
}

func (m *PromMetrics) TriggerSuppressed(reason string) {
	m.triggersSuppressed.WithLabelValues(reason).Inc()
}
