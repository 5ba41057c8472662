package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type DocumentType string

const (
	DocumentIDCard         DocumentType = "id_card"
	DocumentSephach        DocumentType = "sephach"
	DocumentPayslips       DocumentType = "payslips"
	DocumentPNL            DocumentType = "pnl"
	DocumentBankStatements DocumentType = "bank_statements"
)

// KnownDocumentType reports whether t is one of the five collected types.
func KnownDocumentType(t DocumentType) bool {
	switch t {
	case DocumentIDCard, DocumentSephach, DocumentPayslips, DocumentPNL, DocumentBankStatements:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentValidated  DocumentStatus = "validated"
	DocumentRejected   DocumentStatus = "rejected"
	DocumentError      DocumentStatus = "error"
)

type OccupationClass string

const (
	OccupationSalaried     OccupationClass = "salaried"
	OccupationSelfEmployed OccupationClass = "self_employed"
)

// DocumentRecord is one entry of a party's documents_status map.
type DocumentRecord struct {
	Status        DocumentStatus `json:"status"`
	StorageRef    string         `json:"storage_ref,omitempty"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	Warnings      []string       `json:"warnings,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// DocumentStatusMap maps document type to its latest record for a party.
type DocumentStatusMap map[DocumentType]DocumentRecord

// GuarantorRequiredDocuments is the set a guarantor must have validated
// before counting as completed.
var GuarantorRequiredDocuments = []DocumentType{
	DocumentIDCard,
	DocumentSephach,
	DocumentPayslips,
	DocumentBankStatements,
}

// Covers reports whether every document in required is validated.
func (m DocumentStatusMap) Covers(required []DocumentType) bool {
	for _, t := range required {
		if m[t].Status != DocumentValidated {
			return false
		}
	}
	return true
}

// ParseDocumentStatus decodes a documents_status JSON column. A null or
// empty column yields an empty map.
func ParseDocumentStatus(raw datatypes.JSON) (DocumentStatusMap, error) {
	m := DocumentStatusMap{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeDocumentStatus encodes a status map back into the JSON column form.
func EncodeDocumentStatus(m DocumentStatusMap) (datatypes.JSON, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
