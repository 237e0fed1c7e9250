package messaging

import (
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gopkg.in/gomail.v2"

	"leadflow/models"
)

// RateLimiter is a sliding one-minute window limiter for a single
// channel.
type RateLimiter struct {
	mu           sync.Mutex
	maxPerMinute int
	stamps       []time.Time
}

func NewRateLimiter(maxPerMinute int) *RateLimiter {
	return &RateLimiter{maxPerMinute: maxPerMinute}
}

func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	kept := rl.stamps[:0]
	for _, t := range rl.stamps {
		if now.Sub(t) < time.Minute {
			kept = append(kept, t)
		}
	}
	rl.stamps = kept

	if len(rl.stamps) >= rl.maxPerMinute {
		return false
	}
	rl.stamps = append(rl.stamps, now)
	return true
}

// OptOutManager tracks leads that must never be messaged again.
type OptOutManager struct {
	mu    sync.RWMutex
	leads map[string]struct{}
}

func NewOptOutManager() *OptOutManager {
	return &OptOutManager{leads: make(map[string]struct{})}
}

func (om *OptOutManager) IsOptedOut(leadID string) bool {
	om.mu.RLock()
	defer om.mu.RUnlock()
	_, ok := om.leads[leadID]
	return ok
}

func (om *OptOutManager) OptOut(leadID string) {
	om.mu.Lock()
	defer om.mu.Unlock()
	om.leads[leadID] = struct{}{}
}

// Config carries the provider credentials for outbound messaging. With
// empty SMS credentials sends are simulated, which keeps local
// development and tests off the wire.
type Config struct {
	ProviderBaseURL string
	AccountSID      string
	AuthToken       string
	SMSFrom         string
	WhatsAppFrom    string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
}

// PersonalMessenger sends out-of-band messages on behalf of the trigger
// evaluator and scripted messages for the sequence worker.
type PersonalMessenger struct {
	cfg    Config
	client *fasthttp.Client
	logger *log.Logger

	smsLimiter      *RateLimiter
	whatsappLimiter *RateLimiter
	optOuts         *OptOutManager
}

func NewPersonalMessenger(cfg Config, logger *log.Logger) *PersonalMessenger {
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = "https://api.twilio.com"
	}
	return &PersonalMessenger{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		logger:          logger,
		smsLimiter:      NewRateLimiter(30),
		whatsappLimiter: NewRateLimiter(20),
		optOuts:         NewOptOutManager(),
	}
}

// OptOuts exposes the opt-out set so inbound opt-out events can be
// recorded by other components.
func (pm *PersonalMessenger) OptOuts() *OptOutManager {
	return pm.optOuts
}

// SendSMS sends a text message. Any status other than SENT is a
// non-fatal failure for the caller to log, never to retry here.
func (pm *PersonalMessenger) SendSMS(leadID, toNumber, body string) *models.MessageEvent {
	return pm.send(leadID, models.ChannelSMS, pm.cfg.SMSFrom, toNumber, body, pm.smsLimiter)
}

// SendWhatsApp sends a WhatsApp message with the same result shape as
// SendSMS.
func (pm *PersonalMessenger) SendWhatsApp(leadID, toNumber, body string) *models.MessageEvent {
	from := "whatsapp:" + pm.cfg.WhatsAppFrom
	to := "whatsapp:" + toNumber
	return pm.send(leadID, models.ChannelWhatsApp, from, to, body, pm.whatsappLimiter)
}

func (pm *PersonalMessenger) send(leadID, channel, from, to, body string, limiter *RateLimiter) *models.MessageEvent {
	event := &models.MessageEvent{
		MessageID: uuid.New().String(),
		LeadID:    leadID,
		Channel:   channel,
		Content:   body,
		SentAt:    time.Now().UTC(),
		Metadata:  map[string]string{},
	}

	if pm.optOuts.IsOptedOut(leadID) {
		event.Status = models.MessageOptedOut
		event.Metadata["reason"] = "opted_out"
		return event
	}

	if !limiter.Allow() {
		event.Status = models.MessageFailed
		event.Metadata["reason"] = "rate_limited"
		pm.logger.Printf("%s send rate limited for lead %s", channel, leadID)
		return event
	}

	// Simulated send when no provider credentials are configured.
	if pm.cfg.AccountSID == "" || pm.cfg.AuthToken == "" {
		event.Status = models.MessageSent
		pm.logger.Printf("Simulated %s send to lead %s (message %s)", channel, leadID, event.MessageID)
		return event
	}

	providerID, err := pm.postToProvider(from, to, body)
	if err != nil {
		event.Status = models.MessageFailed
		event.Metadata["error"] = err.Error()
		pm.logger.Printf("%s send failed for lead %s: %v", channel, leadID, err)
		return event
	}
	if providerID != "" {
		event.MessageID = providerID
	}
	event.Status = models.MessageSent
	pm.logger.Printf("%s sent to lead %s (message %s)", channel, leadID, event.MessageID)
	return event
}

func (pm *PersonalMessenger) postToProvider(from, to, body string) (string, error) {
	uri := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", pm.cfg.ProviderBaseURL, pm.cfg.AccountSID)

	args := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(args)
	args.Set("From", from)
	args.Set("To", to)
	args.Set("Body", body)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.SetBody(args.QueryString())

	auth := pm.cfg.AccountSID + ":" + pm.cfg.AuthToken
	req.Header.Set("Authorization", "Basic "+basicAuth(auth))

	if err := pm.client.Do(req, resp); err != nil {
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", fmt.Errorf("provider returned status %d", resp.StatusCode())
	}
	return "", nil
}

func basicAuth(credentials string) string {
	return base64.StdEncoding.EncodeToString([]byte(credentials))
}

// SendEmail delivers an email over SMTP. Returns false on any failure;
// the engine treats that as a non-fatal send failure.
func (pm *PersonalMessenger) SendEmail(leadID, toEmail, subject, body string) bool {
	if pm.optOuts.IsOptedOut(leadID) {
		pm.logger.Printf("Email suppressed for opted-out lead %s", leadID)
		return false
	}

	// Simulated send when SMTP is not configured.
	if pm.cfg.SMTPHost == "" {
		pm.logger.Printf("Simulated email send to lead %s", leadID)
		return true
	}

	m := gomail.NewMessage()
	m.SetHeader("From", pm.cfg.FromEmail)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	d := gomail.NewDialer(pm.cfg.SMTPHost, pm.cfg.SMTPPort, pm.cfg.SMTPUsername, pm.cfg.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		pm.logger.Printf("Email send failed for lead %s: %v", leadID, err)
		return false
	}
	return true
}
