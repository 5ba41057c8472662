package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Guarantor is a dependent party vouching for a tenant. Each tenant has at
// most two, distinguished by GuarantorNumber (1 or 2).
type Guarantor struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	TenantID        uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_tenant_guarantor_number" json:"tenant_id"`
	GuarantorNumber int       `gorm:"not null;uniqueIndex:idx_tenant_guarantor_number" json:"guarantor_number"`
	FullName        string    `gorm:"not null" json:"full_name"`
	PhoneNumber     string    `gorm:"not null;index" json:"phone_number"`
	Email           *string   `json:"email"`

	WhatsAppStatus  WhatsAppStatus `gorm:"type:varchar(20);default:'not_started'" json:"whatsapp_status"`
	DocumentsStatus datatypes.JSON `json:"documents_status"`

	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (g *Guarantor) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}
