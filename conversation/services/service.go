package services

import (
	"strconv"

	"tenant-onboarding-backend/db/models"

	"github.com/google/uuid"
)

// Message is the normalized inbound descriptor the orchestrators consume.
// The transport layer has already verified the webhook and downloaded any
// media by the time a Message reaches this package.
type Message struct {
	Phone      string
	Text       string
	HasMedia   bool
	MediaBytes []byte
	MimeType   string
}

// DocumentStore persists raw uploads and returns a storage reference. Only
// the reference is kept on the party row.
type DocumentStore interface {
	StoreTenantDocument(tenantID uuid.UUID, docType models.DocumentType, data []byte, mimeType string) (string, error)
	StoreGuarantorDocument(guarantorID uuid.UUID, docType models.DocumentType, data []byte, mimeType string) (string, error)
}

// ProgressEvent is pushed to the admin live feed after each handled message.
type ProgressEvent struct {
	Party    models.PartyType        `json:"party"`
	Phone    string                  `json:"phone"`
	Stage    models.ConversationStage `json:"stage"`
	TenantID *uuid.UUID              `json:"tenant_id,omitempty"`
}

// ProgressBroadcaster fans progress events out to connected dashboards.
type ProgressBroadcaster interface {
	BroadcastProgress(event ProgressEvent)
}

// coerceInt reads an int out of the loosely-typed parsed fields, where JSON
// numbers arrive as float64.
func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func coerceString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}
