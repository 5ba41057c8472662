package engine

import (
	"fmt"

	"tenant-onboarding-backend/db/models"
)

// Event is something the orchestrator established about the inbound message
// after the gateway validated it. Transitions are keyed by (stage, event).
type Event string

const (
	EventTenantMatched     Event = "TENANT_MATCHED"
	EventDetailsConfirmed  Event = "DETAILS_CONFIRMED"
	EventPersonalInfoDone  Event = "PERSONAL_INFO_DONE"
	EventAllDocumentsValid Event = "ALL_DOCUMENTS_VALID"
	EventGuarantorProvided Event = "GUARANTOR_PROVIDED"
	EventIntroduced        Event = "INTRODUCED"
)

// Machine is a closed transition table over conversation stages. Both party
// types instantiate the same engine with their own topology; any transition
// not present in the table is rejected, which keeps stages forward-only.
type Machine struct {
	initial     models.ConversationStage
	transitions map[models.ConversationStage]map[Event]models.ConversationStage
}

func New(initial models.ConversationStage) *Machine {
	return &Machine{
		initial:     initial,
		transitions: make(map[models.ConversationStage]map[Event]models.ConversationStage),
	}
}

func (m *Machine) addTransition(from models.ConversationStage, ev Event, to models.ConversationStage) *Machine {
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[Event]models.ConversationStage)
	}
	m.transitions[from][ev] = to
	return m
}

// Initial returns the stage a reset conversation re-enters.
func (m *Machine) Initial() models.ConversationStage {
	return m.initial
}

// Next resolves the transition for (from, ev). The boolean is false when the
// table has no such edge; the caller leaves the state unchanged.
func (m *Machine) Next(from models.ConversationStage, ev Event) (models.ConversationStage, bool) {
	to, ok := m.transitions[from][ev]
	return to, ok
}

// Knows reports whether the topology contains the stage at all, either as a
// source or as a target. Unknown stages come from legacy or corrupted
// records and need an explicit recovery path.
func (m *Machine) Knows(stage models.ConversationStage) bool {
	if stage == m.initial {
		return true
	}
	if _, ok := m.transitions[stage]; ok {
		return true
	}
	for _, edges := range m.transitions {
		for _, to := range edges {
			if to == stage {
				return true
			}
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the stage.
func (m *Machine) IsTerminal(stage models.ConversationStage) bool {
	return m.Knows(stage) && len(m.transitions[stage]) == 0
}

// Step resolves a transition or returns an error naming the rejected edge.
func (m *Machine) Step(from models.ConversationStage, ev Event) (models.ConversationStage, error) {
	to, ok := m.Next(from, ev)
	if !ok {
		return from, fmt.Errorf("no transition from %s on %s", from, ev)
	}
	return to, nil
}

// TenantMachine builds the primary party topology:
// GREETING → CONFIRMATION → PERSONAL_INFO → DOCUMENTS → GUARANTOR_1 →
// GUARANTOR_2 → COMPLETED.
func TenantMachine() *Machine {
	return New(models.StageGreeting).
		addTransition(models.StageGreeting, EventTenantMatched, models.StageConfirmation).
		addTransition(models.StageConfirmation, EventDetailsConfirmed, models.StagePersonalInfo).
		addTransition(models.StagePersonalInfo, EventPersonalInfoDone, models.StageDocuments).
		addTransition(models.StageDocuments, EventAllDocumentsValid, models.StageGuarantor1).
		addTransition(models.StageGuarantor1, EventGuarantorProvided, models.StageGuarantor2).
		addTransition(models.StageGuarantor2, EventGuarantorProvided, models.StageCompleted)
}

// GuarantorMachine builds the dependent party topology:
// GREETING → DOCUMENTS → COMPLETED.
func GuarantorMachine() *Machine {
	return New(models.StageGreeting).
		addTransition(models.StageGreeting, EventIntroduced, models.StageDocuments).
		addTransition(models.StageDocuments, EventAllDocumentsValid, models.StageCompleted)
}
