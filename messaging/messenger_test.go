package messaging

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/models"
)

func testMessenger() *PersonalMessenger {
	// No provider or SMTP credentials, so every send is simulated.
	return NewPersonalMessenger(Config{
		SMSFrom:      "+15550000000",
		WhatsAppFrom: "+15550000001",
	}, log.New(io.Discard, "", 0))
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(2)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestOptOutManager(t *testing.T) {
	om := NewOptOutManager()

	assert.False(t, om.IsOptedOut("lead-1"))
	om.OptOut("lead-1")
	assert.True(t, om.IsOptedOut("lead-1"))
	assert.False(t, om.IsOptedOut("lead-2"))
}

func TestSimulatedSMSSend(t *testing.T) {
	pm := testMessenger()

	event := pm.SendSMS("lead-1", "+15551112222", "hello")

	require.NotNil(t, event)
	assert.Equal(t, models.MessageSent, event.Status)
	assert.Equal(t, models.ChannelSMS, event.Channel)
	assert.NotEmpty(t, event.MessageID)
}

func TestSendBlockedForOptedOutLead(t *testing.T) {
	pm := testMessenger()
	pm.OptOuts().OptOut("lead-1")

	event := pm.SendWhatsApp("lead-1", "+15551112222", "hello")

	assert.Equal(t, models.MessageOptedOut, event.Status)
	assert.Equal(t, "opted_out", event.Metadata["reason"])

	// Other leads are unaffected.
	other := pm.SendWhatsApp("lead-2", "+15551113333", "hello")
	assert.Equal(t, models.MessageSent, other.Status)
}

func TestSMSRateLimitReported(t *testing.T) {
	pm := testMessenger()

	var last *models.MessageEvent
	for i := 0; i < 31; i++ {
		last = pm.SendSMS("lead-1", "+15551112222", "hello")
	}

	require.NotNil(t, last)
	assert.Equal(t, models.MessageFailed, last.Status)
	assert.Equal(t, "rate_limited", last.Metadata["reason"])
}

func TestSimulatedEmailSend(t *testing.T) {
	pm := testMessenger()

	assert.True(t, pm.SendEmail("lead-1", "lead@example.com", "Hello", "<p>Hi</p>"))

	pm.OptOuts().OptOut("lead-1")
	assert.False(t, pm.SendEmail("lead-1", "lead@example.com", "Hello", "<p>Hi</p>"))
}
