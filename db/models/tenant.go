package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type WhatsAppStatus string

const (
	WhatsAppNotStarted WhatsAppStatus = "not_started"
	WhatsAppInProgress WhatsAppStatus = "in_progress"
	WhatsAppCompleted  WhatsAppStatus = "completed"
	WhatsAppStuck      WhatsAppStatus = "stuck"
)

// Tenant is the primary onboarding party. Records are pre-provisioned by the
// back office before the tenant's first WhatsApp contact.
type Tenant struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	FullName    string    `gorm:"not null" json:"full_name"`
	PhoneNumber string    `gorm:"not null;uniqueIndex" json:"phone_number"`
	IDNumber    *string   `json:"id_number"` // National ID, extracted from the validated ID card

	// Lease facts confirmed during the conversation
	PropertyName      string          `json:"property_name"`
	ApartmentNumber   string          `json:"apartment_number"`
	NumberOfRooms     int             `json:"number_of_rooms"`
	MonthlyRentAmount decimal.Decimal `gorm:"type:decimal(12,2)" json:"monthly_rent_amount"`
	MoveInDate        *time.Time      `json:"move_in_date"`

	// Collected during PERSONAL_INFO
	Occupation       *string `json:"occupation"`
	FamilyStatus     *string `json:"family_status"`
	NumberOfChildren int     `gorm:"default:0" json:"number_of_children"`

	WhatsAppStatus  WhatsAppStatus `gorm:"type:varchar(20);default:'not_started'" json:"whatsapp_status"`
	DocumentsStatus datatypes.JSON `json:"documents_status"`

	// Free-text correction requests escalated from the CONFIRMATION step
	CorrectionNotes *string `gorm:"type:text" json:"correction_notes"`

	Guarantor1ID *uuid.UUID  `gorm:"type:uuid" json:"guarantor1_id"`
	Guarantor2ID *uuid.UUID  `gorm:"type:uuid" json:"guarantor2_id"`
	Guarantors   []Guarantor `gorm:"foreignKey:TenantID" json:"guarantors,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
