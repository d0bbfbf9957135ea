package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tradeco/backoffice/internal/domain/efactura"
	"github.com/tradeco/backoffice/internal/domain/shared"
)

// companyProfileKey is the settings-table row holding the issuer identity
const companyProfileKey = "company_profile"

// CompanyProfile is the issuer identity stamped on every outgoing fiscal
// document. It changes rarely and is read on every submission.
type CompanyProfile struct {
	Name    string `json:"name"`
	TaxID   string `json:"tax_id"`
	RegCode string `json:"reg_code"`
	IBAN    string `json:"iban"`
}

// Validate checks the fields required on wire documents
func (p *CompanyProfile) Validate() error {
	if p.Name == "" {
		return shared.NewValidationError("Company name is required")
	}
	if p.TaxID == "" {
		return shared.NewValidationError("Company tax ID is required")
	}
	if p.RegCode == "" {
		return shared.NewValidationError("Company registration code is required")
	}
	return nil
}

// Issuer maps the profile onto the wire-document issuer snapshot
func (p *CompanyProfile) Issuer() efactura.Issuer {
	return efactura.Issuer{
		Name:    p.Name,
		TaxID:   p.TaxID,
		RegCode: p.RegCode,
		IBAN:    p.IBAN,
	}
}

// SettingModel is the GORM model for the key-value settings table
type SettingModel struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string `gorm:"type:jsonb;not null;default:'{}'"`
	UpdatedAt time.Time
}

// TableName specifies the table name for SettingModel
func (SettingModel) TableName() string {
	return "settings"
}

// ProfileStore loads and saves the company profile
type ProfileStore interface {
	Load(ctx context.Context) (*CompanyProfile, error)
	Save(ctx context.Context, profile *CompanyProfile) error
}

// GormCompanyProfileStore persists the company profile as a settings row
type GormCompanyProfileStore struct {
	db *gorm.DB
}

// NewGormCompanyProfileStore creates a new company profile store
func NewGormCompanyProfileStore(db *gorm.DB) *GormCompanyProfileStore {
	return &GormCompanyProfileStore{db: db}
}

// Load reads the profile, returning an invalid-state error when the company
// has never been configured
func (s *GormCompanyProfileStore) Load(ctx context.Context) (*CompanyProfile, error) {
	var model SettingModel
	err := s.db.WithContext(ctx).Where("key = ?", companyProfileKey).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewInvalidStateError("Company profile is not configured")
		}
		return nil, fmt.Errorf("failed to load company profile: %w", err)
	}

	var profile CompanyProfile
	if err := json.Unmarshal([]byte(model.Value), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode company profile: %w", err)
	}
	return &profile, nil
}

// Save validates and upserts the profile
func (s *GormCompanyProfileStore) Save(ctx context.Context, profile *CompanyProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to encode company profile: %w", err)
	}

	model := SettingModel{Key: companyProfileKey, Value: string(value), UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).
		Where("key = ?", companyProfileKey).
		Assign(map[string]interface{}{"value": model.Value, "updated_at": model.UpdatedAt}).
		FirstOrCreate(&SettingModel{}, SettingModel{Key: companyProfileKey}).Error
	if err != nil {
		return fmt.Errorf("failed to save company profile: %w", err)
	}
	return nil
}

// Issuer implements the issuer provider directly on the uncached store
func (s *GormCompanyProfileStore) Issuer(ctx context.Context) (efactura.Issuer, error) {
	profile, err := s.Load(ctx)
	if err != nil {
		return efactura.Issuer{}, err
	}
	return profile.Issuer(), nil
}

// Ensure the store satisfies the profile store contract
var _ ProfileStore = (*GormCompanyProfileStore)(nil)
