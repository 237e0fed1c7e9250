package integrations

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/models"
)

func crmTestLead() *models.LeadState {
	return &models.LeadState{
		LeadID:          "lead-1",
		CampaignID:      "camp-1",
		Status:          models.LeadStatusCompleted,
		EngagementScore: 8,
		EngagementHistory: []models.EngagementEvent{
			{EventType: "email_reply", ScoreDelta: 5},
		},
		Metadata: map[string]string{
			"email":      "lead@example.com",
			"phone":      "+15551112222",
			"first_name": "Dana",
		},
	}
}

func TestPushDeliversPayload(t *testing.T) {
	var got leadPayload
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewCRMClient(Config{WebhookURL: srv.URL, APIKey: "secret"}, log.New(io.Discard, "", 0))

	require.True(t, c.Push(crmTestLead()))

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "lead-1", got.LeadID)
	assert.Equal(t, "lead@example.com", got.Email)
	assert.Equal(t, "Dana", got.Name)
	assert.Equal(t, 8, got.EngagementScore)
	assert.Equal(t, string(models.LeadStatusCompleted), got.Status)
	assert.Equal(t, "pending", got.HandoffStatus)
	assert.Equal(t, "hubspot", got.CRMDestination)
	assert.False(t, got.HandoffTime.IsZero())
	require.Len(t, got.EngagementHistory, 1)
}

func TestPushReportsWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewCRMClient(Config{WebhookURL: srv.URL}, log.New(io.Discard, "", 0))
	assert.False(t, c.Push(crmTestLead()))
}

func TestPushDisabledWithoutWebhook(t *testing.T) {
	c := NewCRMClient(Config{}, log.New(io.Discard, "", 0))
	assert.False(t, c.Enabled())
	assert.False(t, c.Push(crmTestLead()))
}
