package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"leadflow/models"
)

// LeadStore owns the canonical per-lead record. Load returns (nil, nil)
// when no state exists for the lead; only genuine store failures surface
// as errors.
//
// The engine performs a read-modify-write cycle on every call. The store
// does not serialize concurrent cycles for the same lead: two concurrent
// callers (an inbound event and a scheduler tick) can race and one
// party's update can be silently dropped. Resolving that (per-lead
// locking, optimistic versioning, a transactional store) is the
// implementation's concern, behind this interface.
type LeadStore interface {
	Load(leadID string) (*models.LeadState, error)
	Save(state *models.LeadState) error
}

// SequenceStore holds the per-campaign stage definitions used at
// sequence initialization.
type SequenceStore interface {
	LoadSequence(campaignID string) (*models.CampaignSequence, error)
	SaveSequence(seq *models.CampaignSequence) error
}

// AuditStore is the append-only trigger audit log.
type AuditStore interface {
	AppendAudit(entry *models.TriggerAudit) error
	ListAudit(leadID string, limit int) ([]models.TriggerAudit, error)
}

// GormStore backs the store contracts with Postgres through GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Load(leadID string) (*models.LeadState, error) {
	var state models.LeadState
	err := s.db.Where("lead_id = ?", leadID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead state: %w", err)
	}
	return &state, nil
}

func (s *GormStore) Save(state *models.LeadState) error {
	if err := s.db.Save(state).Error; err != nil {
		return fmt.Errorf("failed to save lead state: %w", err)
	}
	return nil
}

func (s *GormStore) LoadSequence(campaignID string) (*models.CampaignSequence, error) {
	var seq models.CampaignSequence
	err := s.db.Where("campaign_id = ?", campaignID).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign sequence: %w", err)
	}
	return &seq, nil
}

func (s *GormStore) SaveSequence(seq *models.CampaignSequence) error {
	var existing models.CampaignSequence
	err := s.db.Where("campaign_id = ?", seq.CampaignID).First(&existing).Error
	if err == nil {
		seq.ID = existing.ID
		seq.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to look up campaign sequence: %w", err)
	}
	if err := s.db.Save(seq).Error; err != nil {
		return fmt.Errorf("failed to save campaign sequence: %w", err)
	}
	return nil
}

func (s *GormStore) AppendAudit(entry *models.TriggerAudit) error {
	if err := s.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append trigger audit: %w", err)
	}
	return nil
}

func (s *GormStore) ListAudit(leadID string, limit int) ([]models.TriggerAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.TriggerAudit
	err := s.db.Where("lead_id = ?", leadID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list trigger audit: %w", err)
	}
	return entries, nil
}

// FindLeadByEmail locates a lead state whose metadata carries the given
// email address. Used by the reply worker to attribute inbound mail.
func (s *GormStore) FindLeadByEmail(email string) (*models.LeadState, error) {
	var state models.LeadState
	err := s.db.Where("metadata ->> 'email' = ?", email).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead by email: %w", err)
	}
	return &state, nil
}

// ListActiveLeads returns lead states eligible for scheduler processing.
func (s *GormStore) ListActiveLeads(limit int) ([]models.LeadState, error) {
	if limit <= 0 {
		limit = 200
	}
	var states []models.LeadState
	err := s.db.Where("status = ?", models.LeadStatusActive).
		Order("updated_at ASC").
		Limit(limit).
		Find(&states).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active leads: %w", err)
	}
	return states, nil
}
