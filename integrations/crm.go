package integrations

import (
	"encoding/json"
	"log"
	"time"

	"github.com/valyala/fasthttp"

	"leadflow/models"
)

// Config carries the CRM webhook settings. An empty WebhookURL disables
// handoff.
type Config struct {
	WebhookURL  string
	APIKey      string
	Destination string
}

// leadPayload is the handoff document POSTed to the CRM webhook.
type leadPayload struct {
	LeadID            string                   `json:"lead_id"`
	CampaignID        string                   `json:"campaign_id"`
	Email             string                   `json:"email,omitempty"`
	Phone             string                   `json:"phone,omitempty"`
	Name              string                   `json:"name,omitempty"`
	Company           string                   `json:"company,omitempty"`
	Status            string                   `json:"status"`
	EngagementScore   int                      `json:"engagement_score"`
	EngagementHistory []models.EngagementEvent `json:"engagement_history"`
	Metadata          map[string]string        `json:"metadata"`
	HandoffTime       time.Time                `json:"handoff_time"`
	HandoffStatus     string                   `json:"handoff_status"`
	CRMDestination    string                   `json:"crm_destination"`
}

// CRMClient hands finished or engaged leads off to an external CRM over
// a webhook. Handoff is best effort: failures are logged and reported as
// false, never raised to the engine.
type CRMClient struct {
	cfg    Config
	client *fasthttp.Client
	logger *log.Logger
	now    func() time.Time
}

func NewCRMClient(cfg Config, logger *log.Logger) *CRMClient {
	if cfg.Destination == "" {
		cfg.Destination = "hubspot"
	}
	return &CRMClient{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Enabled reports whether a webhook destination is configured.
func (c *CRMClient) Enabled() bool {
	return c.cfg.WebhookURL != ""
}

// Push delivers the lead's full state to the CRM webhook.
func (c *CRMClient) Push(state *models.LeadState) bool {
	if !c.Enabled() {
		return false
	}

	payload := leadPayload{
		LeadID:            state.LeadID,
		CampaignID:        state.CampaignID,
		Email:             state.Metadata["email"],
		Phone:             state.Metadata["phone"],
		Name:              state.Metadata["first_name"],
		Company:           state.Metadata["company"],
		Status:            string(state.Status),
		EngagementScore:   state.EngagementScore,
		EngagementHistory: state.EngagementHistory,
		Metadata:          state.Metadata,
		HandoffTime:       c.now().UTC(),
		HandoffStatus:     "pending",
		CRMDestination:    c.cfg.Destination,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Printf("CRM handoff failed for lead %s: %v", state.LeadID, err)
		return false
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.WebhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.SetBody(body)

	if err := c.client.Do(req, resp); err != nil {
		c.logger.Printf("CRM handoff failed for lead %s: %v", state.LeadID, err)
		return false
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		c.logger.Printf("CRM handoff failed for lead %s: webhook returned status %d", state.LeadID, resp.StatusCode())
		return false
	}

	c.logger.Printf("CRM handoff success for lead %s to %s", state.LeadID, c.cfg.Destination)
	return true
}
