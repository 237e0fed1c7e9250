package engine

import (
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"leadflow/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryStore backs the store contracts for tests. It hands out copies
// so mutations only become visible through Save, like the real store.
type memoryStore struct {
	mu     sync.Mutex
	leads  map[string]*models.LeadState
	seqs   map[string]*models.CampaignSequence
	audits []models.TriggerAudit
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		leads: make(map[string]*models.LeadState),
		seqs:  make(map[string]*models.CampaignSequence),
	}
}

func copyState(state *models.LeadState) *models.LeadState {
	cp := *state
	cp.SequenceStages = append([]models.SequenceStage(nil), state.SequenceStages...)
	cp.EngagementHistory = append([]models.EngagementEvent(nil), state.EngagementHistory...)
	cp.Metadata = make(map[string]string, len(state.Metadata))
	for k, v := range state.Metadata {
		cp.Metadata[k] = v
	}
	return &cp
}

func (m *memoryStore) Load(leadID string) (*models.LeadState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.leads[leadID]
	if !ok {
		return nil, nil
	}
	return copyState(state), nil
}

func (m *memoryStore) Save(state *models.LeadState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[state.LeadID] = copyState(state)
	return nil
}

func (m *memoryStore) LoadSequence(campaignID string) (*models.CampaignSequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seqs[campaignID], nil
}

func (m *memoryStore) SaveSequence(seq *models.CampaignSequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[seq.CampaignID] = seq
	return nil
}

func (m *memoryStore) AppendAudit(entry *models.TriggerAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, *entry)
	return nil
}

func (m *memoryStore) ListAudit(leadID string, limit int) ([]models.TriggerAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TriggerAudit
	for i := len(m.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audits[i].LeadID == leadID {
			out = append(out, m.audits[i])
		}
	}
	return out, nil
}

func (m *memoryStore) lastAudit() *models.TriggerAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.audits) == 0 {
		return nil
	}
	return &m.audits[len(m.audits)-1]
}

type sentMessage struct {
	LeadID string
	To     string
	Body   string
}

// fakeMessenger records sends and always reports success.
type fakeMessenger struct {
	mu       sync.Mutex
	sms      []sentMessage
	whatsapp []sentMessage
}

func (f *fakeMessenger) SendSMS(leadID, toNumber, body string) *models.MessageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sms = append(f.sms, sentMessage{LeadID: leadID, To: toNumber, Body: body})
	return &models.MessageEvent{
		MessageID: "sms-1",
		LeadID:    leadID,
		Channel:   models.ChannelSMS,
		Status:    models.MessageSent,
		SentAt:    time.Now().UTC(),
	}
}

func (f *fakeMessenger) SendWhatsApp(leadID, toNumber, body string) *models.MessageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whatsapp = append(f.whatsapp, sentMessage{LeadID: leadID, To: toNumber, Body: body})
	return &models.MessageEvent{
		MessageID: "wa-1",
		LeadID:    leadID,
		Channel:   models.ChannelWhatsApp,
		Status:    models.MessageSent,
		SentAt:    time.Now().UTC(),
	}
}

// fakeEvaluator records evaluations without firing anything.
type fakeEvaluator struct {
	mu     sync.Mutex
	states []*models.LeadState
}

func (f *fakeEvaluator) EvaluateAndTrigger(state *models.LeadState) *models.MessageEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, state)
	return nil
}

func (f *fakeEvaluator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}

// fakeHandoff records CRM pushes and always reports success.
type fakeHandoff struct {
	mu     sync.Mutex
	pushed []*models.LeadState
}

func (f *fakeHandoff) Push(state *models.LeadState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, state)
	return true
}

func (f *fakeHandoff) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushed)
}

func activeLead(leadID, campaignID string) *models.LeadState {
	return &models.LeadState{
		LeadID:            leadID,
		CampaignID:        campaignID,
		Status:            models.LeadStatusActive,
		SequenceStages:    []models.SequenceStage{},
		EngagementHistory: []models.EngagementEvent{},
		Metadata:          map[string]string{},
	}
}
