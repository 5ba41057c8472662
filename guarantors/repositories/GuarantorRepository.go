package repositories

import (
	"errors"
	"fmt"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GuarantorRepository interface {
	GetGuarantorByPhone(phoneNumber string) (*models.Guarantor, error)
	GetGuarantorsByTenant(tenantID uuid.UUID) ([]models.Guarantor, error)
	UpsertGuarantor(guarantor *models.Guarantor) (*models.Guarantor, bool, error)
	UpdateWhatsAppStatus(id uuid.UUID, status models.WhatsAppStatus) error
	UpdateDocumentsStatus(id uuid.UUID, statusMap models.DocumentStatusMap) error
}

type guarantorRepository struct {
	DB *gorm.DB
}

// NewGuarantorRepository initializes a new guarantor repository
func NewGuarantorRepository(db *gorm.DB) GuarantorRepository {
	return &guarantorRepository{DB: db}
}

func (gr *guarantorRepository) GetGuarantorByPhone(phoneNumber string) (*models.Guarantor, error) {
	var guarantor models.Guarantor
	if err := gr.DB.First(&guarantor, "phone_number = ?", phoneNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get guarantor by phone: %w", err)
	}
	return &guarantor, nil
}

func (gr *guarantorRepository) GetGuarantorsByTenant(tenantID uuid.UUID) ([]models.Guarantor, error) {
	var guarantors []models.Guarantor
	if err := gr.DB.Where("tenant_id = ?", tenantID).Order("guarantor_number ASC").Find(&guarantors).Error; err != nil {
		return nil, fmt.Errorf("failed to get guarantors for tenant: %w", err)
	}
	return guarantors, nil
}

// UpsertGuarantor creates the guarantor for its (tenant, slot) pair or
// refreshes the contact details of an existing row. The second return value
// reports whether a row already existed, which callers use to avoid
// re-sending the introduction message.
func (gr *guarantorRepository) UpsertGuarantor(guarantor *models.Guarantor) (*models.Guarantor, bool, error) {
	var existing models.Guarantor
	err := gr.DB.
		Where("tenant_id = ? AND guarantor_number = ?", guarantor.TenantID, guarantor.GuarantorNumber).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := gr.DB.Create(guarantor).Error; err != nil {
			config.Logger.Error("Failed to create guarantor",
				zap.String("tenantID", guarantor.TenantID.String()),
				zap.Int("slot", guarantor.GuarantorNumber),
				zap.Error(err),
			)
			return nil, false, fmt.Errorf("failed to create guarantor: %w", err)
		}
		return guarantor, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up guarantor: %w", err)
	}

	updates := map[string]interface{}{
		"full_name":    guarantor.FullName,
		"phone_number": guarantor.PhoneNumber,
	}
	if guarantor.Email != nil {
		updates["email"] = guarantor.Email
	}
	if err := gr.DB.Model(&existing).Updates(updates).Error; err != nil {
		return nil, true, fmt.Errorf("failed to update guarantor: %w", err)
	}
	return &existing, true, nil
}

func (gr *guarantorRepository) UpdateWhatsAppStatus(id uuid.UUID, status models.WhatsAppStatus) error {
	if err := gr.DB.Model(&models.Guarantor{}).Where("id = ?", id).Update("whatsapp_status", status).Error; err != nil {
		return fmt.Errorf("failed to update guarantor whatsapp status: %w", err)
	}
	return nil
}

func (gr *guarantorRepository) UpdateDocumentsStatus(id uuid.UUID, statusMap models.DocumentStatusMap) error {
	encoded, err := models.EncodeDocumentStatus(statusMap)
	if err != nil {
		return err
	}
	if err := gr.DB.Model(&models.Guarantor{}).Where("id = ?", id).Update("documents_status", encoded).Error; err != nil {
		return fmt.Errorf("failed to update guarantor documents status: %w", err)
	}
	return nil
}
