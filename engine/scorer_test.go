package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/models"
)

func newTestScorer(t *testing.T) (*Scorer, *memoryStore, *fakeEvaluator) {
	t.Helper()
	st := newMemoryStore()
	eval := &fakeEvaluator{}
	return NewScorer(st, eval, nil, quietLogger()), st, eval
}

func TestTrackEventAccumulatesScore(t *testing.T) {
	scorer, st, _ := newTestScorer(t)
	require.NoError(t, st.Save(activeLead("lead-1", "camp-1")))

	require.NoError(t, scorer.TrackEvent("lead-1", "email_open", nil))
	require.NoError(t, scorer.TrackEvent("lead-1", "email_click", nil))
	require.NoError(t, scorer.TrackEvent("lead-1", "email_reply", nil))

	score, err := scorer.GetLeadScore("lead-1")
	require.NoError(t, err)
	assert.Equal(t, 9, score)

	history, err := scorer.GetEngagementHistory("lead-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "email_open", history[0].EventType)
	assert.Equal(t, "email_click", history[1].EventType)
	assert.Equal(t, "email_reply", history[2].EventType)
	assert.Equal(t, 5, history[2].ScoreDelta)
}

func TestTrackEventNegativeEvents(t *testing.T) {
	scorer, st, _ := newTestScorer(t)
	require.NoError(t, st.Save(activeLead("lead-1", "camp-1")))

	require.NoError(t, scorer.TrackEvent("lead-1", "email_open", nil))
	require.NoError(t, scorer.TrackEvent("lead-1", "unsubscribe", nil))

	score, err := scorer.GetLeadScore("lead-1")
	require.NoError(t, err)
	assert.Equal(t, -9, score)
}

func TestTrackEventUnknownTypeScoresZero(t *testing.T) {
	scorer, st, _ := newTestScorer(t)
	require.NoError(t, st.Save(activeLead("lead-1", "camp-1")))

	require.NoError(t, scorer.TrackEvent("lead-1", "email_sent", map[string]string{"stage_id": "s1"}))

	score, err := scorer.GetLeadScore("lead-1")
	require.NoError(t, err)
	assert.Equal(t, 0, score)

	// The event still lands in the history.
	history, err := scorer.GetEngagementHistory("lead-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "s1", history[0].Metadata["stage_id"])
}

func TestTrackEventUnknownLeadIsNoOp(t *testing.T) {
	scorer, st, eval := newTestScorer(t)

	require.NoError(t, scorer.TrackEvent("ghost", "email_open", nil))

	state, err := st.Load("ghost")
	require.NoError(t, err)
	assert.Nil(t, state)
	assert.Equal(t, 0, eval.calls())
}

func TestTrackEventRunsTriggerEvaluationOnFreshState(t *testing.T) {
	scorer, st, eval := newTestScorer(t)
	require.NoError(t, st.Save(activeLead("lead-1", "camp-1")))

	require.NoError(t, scorer.TrackEvent("lead-1", "email_open", nil))

	require.Equal(t, 1, eval.calls())
	evaluated := eval.states[0]
	require.Len(t, evaluated.EngagementHistory, 1)
	assert.Equal(t, 1, evaluated.EngagementScore)
}

func TestReplyEventPushesLeadToCRM(t *testing.T) {
	scorer, st, _ := newTestScorer(t)
	handoff := &fakeHandoff{}
	scorer.SetCRMHandoff(handoff)
	require.NoError(t, st.Save(activeLead("lead-1", "camp-1")))

	require.NoError(t, scorer.TrackEvent("lead-1", "email_open", nil))
	assert.Equal(t, 0, handoff.count())

	require.NoError(t, scorer.TrackEvent("lead-1", "email_reply", nil))

	require.Equal(t, 1, handoff.count())
	assert.Equal(t, "lead-1", handoff.pushed[0].LeadID)
	assert.Equal(t, 6, handoff.pushed[0].EngagementScore)

	require.NoError(t, scorer.TrackEvent("lead-1", "whatsapp_reply", nil))
	assert.Equal(t, 2, handoff.count())
}

func TestShouldPauseLead(t *testing.T) {
	scorer, st, _ := newTestScorer(t)

	lead := activeLead("lead-1", "camp-1")
	lead.EngagementScore = -9
	require.NoError(t, st.Save(lead))

	pause, err := scorer.ShouldPauseLead("lead-1", 0)
	require.NoError(t, err)
	assert.True(t, pause)

	pause, err = scorer.ShouldPauseLead("unknown", 0)
	require.NoError(t, err)
	assert.False(t, pause)
}

func TestResetLeadScore(t *testing.T) {
	scorer, st, _ := newTestScorer(t)

	lead := activeLead("lead-1", "camp-1")
	lead.Status = models.LeadStatusPaused
	require.NoError(t, st.Save(lead))
	require.NoError(t, scorer.TrackEvent("lead-1", "spam_report", nil))

	require.NoError(t, scorer.ResetLeadScore("lead-1"))

	state, err := st.Load("lead-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.EngagementScore)
	assert.Empty(t, state.EngagementHistory)
	// Resetting the score never resurrects the lead.
	assert.Equal(t, models.LeadStatusPaused, state.Status)
}
