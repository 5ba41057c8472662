package models

import (
	"time"

	"github.com/google/uuid"
)

type PartyType string

const (
	PartyTenant    PartyType = "tenant"
	PartyGuarantor PartyType = "guarantor"
)

// ConversationStage identifies where a party is in its flow. Tenant and
// guarantor topologies share this enum; each party type only ever visits
// the stages its transition table names.
type ConversationStage string

const (
	StageGreeting     ConversationStage = "GREETING"
	StageConfirmation ConversationStage = "CONFIRMATION"
	StagePersonalInfo ConversationStage = "PERSONAL_INFO"
	StageDocuments    ConversationStage = "DOCUMENTS"
	StageGuarantor1   ConversationStage = "GUARANTOR_1"
	StageGuarantor2   ConversationStage = "GUARANTOR_2"
	StageCompleted    ConversationStage = "COMPLETED"
)

// PersonalField is the PERSONAL_INFO sub-cursor.
type PersonalField string

const (
	FieldOccupation       PersonalField = "occupation"
	FieldFamilyStatus     PersonalField = "family_status"
	FieldNumberOfChildren PersonalField = "number_of_children"
)

// ConversationContext carries the in-flight cursors for a conversation.
// Each stage reads only its own fields; a timeout reset discards the whole
// struct along with the stage.
type ConversationContext struct {
	TenantID    *uuid.UUID `json:"tenant_id,omitempty"`
	GuarantorID *uuid.UUID `json:"guarantor_id,omitempty"`

	// PERSONAL_INFO cursor
	PendingField PersonalField `json:"pending_field,omitempty"`

	// DOCUMENTS cursor; always a member of the sequence derived for the
	// party at that point
	CurrentDocument DocumentType `json:"current_document,omitempty"`

	// GUARANTOR_1 / GUARANTOR_2 cursor
	GuarantorSlot int `json:"guarantor_slot,omitempty"`

	// Occupation classification once resolved; nil until then
	OccupationClass *OccupationClass `json:"occupation_class,omitempty"`
}

// ConversationState is the per-phone-number conversation record. It lives in
// Redis keyed by phone number and is overwritten on every transition.
type ConversationState struct {
	PhoneNumber     string              `json:"phone_number"`
	PartyType       PartyType           `json:"party_type"`
	CurrentState    ConversationStage   `json:"current_state"`
	Context         ConversationContext `json:"context"`
	LastMessageTime time.Time           `json:"last_message_time"`
}

// InitialStage returns the stage a fresh conversation starts in.
func InitialStage(party PartyType) ConversationStage {
	return StageGreeting
}
