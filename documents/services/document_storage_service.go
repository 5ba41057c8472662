package services

import (
	"fmt"
	"mime"
	"path"
	"time"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/db/models"
	"tenant-onboarding-backend/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DocumentStorageService persists uploaded document files under a per-party
// folder and builds the status record stored on the party row.
type DocumentStorageService struct {
	storage utils.FileStorage
}

func NewDocumentStorageService(storage utils.FileStorage) *DocumentStorageService {
	return &DocumentStorageService{storage: storage}
}

// StoreTenantDocument saves a tenant's uploaded file and returns its
// storage reference.
func (ds *DocumentStorageService) StoreTenantDocument(tenantID uuid.UUID, docType models.DocumentType, data []byte, mimeType string) (string, error) {
	return ds.store(path.Join("tenants", tenantID.String()), docType, data, mimeType)
}

// StoreGuarantorDocument saves a guarantor's uploaded file and returns its
// storage reference.
func (ds *DocumentStorageService) StoreGuarantorDocument(guarantorID uuid.UUID, docType models.DocumentType, data []byte, mimeType string) (string, error) {
	return ds.store(path.Join("guarantors", guarantorID.String()), docType, data, mimeType)
}

func (ds *DocumentStorageService) store(folder string, docType models.DocumentType, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document payload")
	}

	fileName := fmt.Sprintf("%s_%d%s", docType, time.Now().UTC().UnixMilli(), extensionFor(mimeType))
	ref, err := ds.storage.SaveBytes(path.Join(folder, fileName), data)
	if err != nil {
		config.Logger.Error("Failed to store document file",
			zap.String("folder", folder),
			zap.String("documentType", string(docType)),
			zap.Error(err),
		)
		return "", err
	}

	config.Logger.Info("Stored document file",
		zap.String("ref", ref),
		zap.String("documentType", string(docType)),
		zap.Int("bytes", len(data)),
	)
	return ref, nil
}

// BuildRecord turns a validation outcome into the record kept in the
// party's documents_status column.
func BuildRecord(status models.DocumentStatus, storageRef string, extracted map[string]any, errs, warnings []string, confidence float64) models.DocumentRecord {
	return models.DocumentRecord{
		Status:        status,
		StorageRef:    storageRef,
		ExtractedData: extracted,
		Errors:        errs,
		Warnings:      warnings,
		Confidence:    confidence,
		UpdatedAt:     time.Now().UTC(),
	}
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
