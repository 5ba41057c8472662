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

type TenantRepository interface {
	CreateTenant(tenant *models.Tenant) (*models.Tenant, error)
	GetTenantByID(id uuid.UUID) (*models.Tenant, error)
	GetTenantByPhone(phoneNumber string) (*models.Tenant, error)
	UpdateTenantFields(id uuid.UUID, fields map[string]interface{}) error
	UpdateWhatsAppStatus(id uuid.UUID, status models.WhatsAppStatus) error
	UpdateDocumentsStatus(id uuid.UUID, statusMap models.DocumentStatusMap) error
	LinkGuarantor(tenantID uuid.UUID, slot int, guarantorID uuid.UUID) error
	GetFilteredTenants(limit, offset int, filters map[string]string) ([]models.Tenant, int64, error)
	GetStuckTenants(before int64) ([]models.Tenant, error)
}

type tenantRepository struct {
	DB *gorm.DB
}

// NewTenantRepository initializes a new tenant repository
func NewTenantRepository(db *gorm.DB) TenantRepository {
	return &tenantRepository{DB: db}
}

func (tr *tenantRepository) CreateTenant(tenant *models.Tenant) (*models.Tenant, error) {
	if err := tr.DB.Create(tenant).Error; err != nil {
		config.Logger.Error("Failed to create tenant", zap.String("phoneNumber", tenant.PhoneNumber), zap.Error(err))
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return tenant, nil
}

func (tr *tenantRepository) GetTenantByID(id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := tr.DB.Preload("Guarantors").First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by id: %w", err)
	}
	return &tenant, nil
}

// GetTenantByPhone returns nil without error when no tenant matches; the
// webhook handler treats that as an unknown sender.
func (tr *tenantRepository) GetTenantByPhone(phoneNumber string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := tr.DB.Preload("Guarantors").First(&tenant, "phone_number = ?", phoneNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by phone: %w", err)
	}
	return &tenant, nil
}

func (tr *tenantRepository) UpdateTenantFields(id uuid.UUID, fields map[string]interface{}) error {
	if err := tr.DB.Model(&models.Tenant{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		config.Logger.Error("Failed to update tenant fields", zap.String("tenantID", id.String()), zap.Error(err))
		return fmt.Errorf("failed to update tenant: %w", err)
	}
	return nil
}

func (tr *tenantRepository) UpdateWhatsAppStatus(id uuid.UUID, status models.WhatsAppStatus) error {
	return tr.UpdateTenantFields(id, map[string]interface{}{"whatsapp_status": status})
}

func (tr *tenantRepository) UpdateDocumentsStatus(id uuid.UUID, statusMap models.DocumentStatusMap) error {
	encoded, err := models.EncodeDocumentStatus(statusMap)
	if err != nil {
		return err
	}
	return tr.UpdateTenantFields(id, map[string]interface{}{"documents_status": encoded})
}

// LinkGuarantor records a guarantor against slot 1 or 2 on the tenant row.
func (tr *tenantRepository) LinkGuarantor(tenantID uuid.UUID, slot int, guarantorID uuid.UUID) error {
	column := "guarantor_1_id"
	if slot == 2 {
		column = "guarantor_2_id"
	}
	if err := tr.DB.Model(&models.Tenant{}).Where("id = ?", tenantID).Update(column, guarantorID).Error; err != nil {
		config.Logger.Error("Failed to link guarantor",
			zap.String("tenantID", tenantID.String()),
			zap.Int("slot", slot),
			zap.Error(err),
		)
		return fmt.Errorf("failed to link guarantor: %w", err)
	}
	return nil
}

func (tr *tenantRepository) GetFilteredTenants(limit, offset int, filters map[string]string) ([]models.Tenant, int64, error) {
	var tenants []models.Tenant
	var total int64

	query := tr.DB.Model(&models.Tenant{})
	if status, ok := filters["whatsapp_status"]; ok && status != "" {
		query = query.Where("whatsapp_status = ?", status)
	}
	if property, ok := filters["property_name"]; ok && property != "" {
		query = query.Where("property_name ILIKE ?", "%"+property+"%")
	}
	if search, ok := filters["search"]; ok && search != "" {
		query = query.Where("full_name ILIKE ? OR phone_number ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count tenants: %w", err)
	}
	if err := query.Preload("Guarantors").Order("created_at DESC").Limit(limit).Offset(offset).Find(&tenants).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get filtered tenants: %w", err)
	}
	return tenants, total, nil
}

// GetStuckTenants returns in-progress tenants whose last update is older
// than the given unix timestamp. The cron sweep marks them stuck.
func (tr *tenantRepository) GetStuckTenants(before int64) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := tr.DB.
		Where("whatsapp_status = ?", models.WhatsAppInProgress).
		Where("updated_at < to_timestamp(?)", before).
		Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to get stuck tenants: %w", err)
	}
	return tenants, nil
}
