package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoStageLead() *LeadState {
	return &LeadState{
		LeadID:     "lead-1",
		CampaignID: "camp-1",
		Status:     LeadStatusActive,
		SequenceStages: []SequenceStage{
			{StageID: "s1", TemplateID: "intro_email", Channel: "email", Status: StagePending, MaxAttempts: 3},
			{StageID: "s2", TemplateID: "followup_email", Channel: "email", DelayHours: 24, Status: StagePending, MaxAttempts: 3},
		},
		Metadata: map[string]string{},
	}
}

func TestAddEngagementEvent(t *testing.T) {
	lead := twoStageLead()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	lead.AddEngagementEvent("email_click", 3, map[string]string{"url": "https://example.com"}, at)
	lead.AddEngagementEvent("bounce", -5, nil, at.Add(time.Minute))

	assert.Equal(t, -2, lead.EngagementScore)
	require.Len(t, lead.EngagementHistory, 2)
	assert.Equal(t, "email_click", lead.EngagementHistory[0].EventType)
	assert.Equal(t, at.Add(time.Minute), lead.LastTouch)
}

func TestCompleteCurrentStageAdvances(t *testing.T) {
	lead := twoStageLead()
	at := time.Now().UTC()

	lead.CompleteCurrentStage(at)

	assert.Equal(t, 1, lead.CurrentStage)
	assert.Equal(t, StageCompleted, lead.SequenceStages[0].Status)
	require.NotNil(t, lead.SequenceStages[0].CompletedAt)
	assert.Equal(t, StagePending, lead.SequenceStages[1].Status)

	// Past the last stage the call is a no-op.
	lead.CompleteCurrentStage(at)
	lead.CompleteCurrentStage(at)
	assert.Equal(t, 2, lead.CurrentStage)
}

func TestNextAndPreviousStage(t *testing.T) {
	lead := twoStageLead()

	require.NotNil(t, lead.NextStage())
	assert.Equal(t, "s1", lead.NextStage().StageID)
	assert.Nil(t, lead.PreviousStage())

	lead.CompleteCurrentStage(time.Now().UTC())
	assert.Equal(t, "s2", lead.NextStage().StageID)
	assert.Equal(t, "s1", lead.PreviousStage().StageID)

	lead.CompleteCurrentStage(time.Now().UTC())
	assert.Nil(t, lead.NextStage())
}

func TestShouldRetryStage(t *testing.T) {
	lead := twoStageLead()

	assert.True(t, lead.ShouldRetryStage())
	lead.IncrementAttempts()
	lead.IncrementAttempts()
	assert.True(t, lead.ShouldRetryStage())
	lead.IncrementAttempts()
	assert.False(t, lead.ShouldRetryStage())
	assert.Equal(t, 0, lead.CurrentStage)
}

func TestStatusTransitions(t *testing.T) {
	lead := twoStageLead()

	require.NoError(t, lead.Pause())
	assert.Equal(t, LeadStatusPaused, lead.Status)
	require.Error(t, lead.Pause())
	require.Error(t, lead.Complete())

	require.NoError(t, lead.Resume())
	assert.Equal(t, LeadStatusActive, lead.Status)
	require.Error(t, lead.Resume())

	require.NoError(t, lead.Complete())
	require.Error(t, lead.Fail())
}

func TestFailFromPaused(t *testing.T) {
	lead := twoStageLead()
	require.NoError(t, lead.Pause())
	require.NoError(t, lead.Fail())
	assert.Equal(t, LeadStatusFailed, lead.Status)
}

func TestTerminateFromAnyStatus(t *testing.T) {
	for _, status := range []LeadStatus{LeadStatusActive, LeadStatusPaused, LeadStatusCompleted, LeadStatusFailed} {
		lead := twoStageLead()
		lead.Status = status
		require.NoError(t, lead.Terminate(), "from %s", status)
		assert.Equal(t, LeadStatusUnsubscribed, lead.Status)
		require.Error(t, lead.Terminate())
	}
}

func TestShouldPause(t *testing.T) {
	lead := twoStageLead()
	assert.False(t, lead.ShouldPause(0))
	lead.EngagementScore = -1
	assert.True(t, lead.ShouldPause(0))
	assert.False(t, lead.ShouldPause(-5))
}
