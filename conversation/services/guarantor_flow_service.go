package services

import (
	"context"
	"time"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/conversation/engine"
	"tenant-onboarding-backend/conversation/sequencer"
	"tenant-onboarding-backend/db/models"
	grepos "tenant-onboarding-backend/guarantors/repositories"
	isvc "tenant-onboarding-backend/internal/services"

	"go.uber.org/zap"
)

// GuarantorFlowService drives a dependent party's conversation. Guarantor
// conversations open directly at DOCUMENTS; the introduction sent when the
// tenant supplied their details stands in for the greeting.
type GuarantorFlowService struct {
	machine    *engine.Machine
	guarantors grepos.GuarantorRepository
	gateway    isvc.ValidationGateway
	store      DocumentStore
	completion *CompletionService
}

func NewGuarantorFlowService(
	guarantors grepos.GuarantorRepository,
	gateway isvc.ValidationGateway,
	store DocumentStore,
	completion *CompletionService,
) *GuarantorFlowService {
	return &GuarantorFlowService{
		machine:    engine.GuarantorMachine(),
		guarantors: guarantors,
		gateway:    gateway,
		store:      store,
		completion: completion,
	}
}

func (s *GuarantorFlowService) Handle(ctx context.Context, guarantor *models.Guarantor, state *models.ConversationState, msg Message) (string, error) {
	switch state.CurrentState {
	case models.StageCompleted:
		return alreadyCompletedMessage, nil
	case models.StageDocuments:
		// fall through below
	default:
		// Conversations stored under an older schema, or greetings that
		// never transitioned, land here. Recover into DOCUMENTS rather
		// than stranding the guarantor.
		config.Logger.Warn("Recovering guarantor conversation from unexpected stage",
			zap.String("phoneNumber", state.PhoneNumber),
			zap.String("stage", string(state.CurrentState)),
		)
		state.CurrentState = models.StageDocuments
	}
	return s.handleDocuments(ctx, guarantor, state, msg)
}

func (s *GuarantorFlowService) handleDocuments(ctx context.Context, guarantor *models.Guarantor, state *models.ConversationState, msg Message) (string, error) {
	current := state.Context.CurrentDocument
	if current == "" || !models.KnownDocumentType(current) {
		current = s.firstOutstandingDocument(guarantor)
		state.Context.CurrentDocument = current
	}

	if !msg.HasMedia {
		return expectDocumentMessage(current), nil
	}

	ref, err := s.store.StoreGuarantorDocument(guarantor.ID, current, msg.MediaBytes, msg.MimeType)
	if err != nil {
		config.Logger.Error("Failed to store guarantor document", zap.Error(err))
		return documentErrorMessage(current), nil
	}

	outcome := s.gateway.ValidateDocument(ctx, current, msg.MediaBytes, msg.MimeType, isvc.PartyContext{
		FullName: guarantor.FullName,
	})

	if err := s.persistGuarantorDocument(guarantor, current, ref, outcome); err != nil {
		return safeFallbackMessage, err
	}

	switch outcome.Status {
	case models.DocumentValidated:
		return s.advanceGuarantorDocument(ctx, guarantor, state, current)
	case models.DocumentRejected:
		return documentRejectedMessage(current, outcome.Errors, outcome.Warnings), nil
	default:
		return documentErrorMessage(current), nil
	}
}

// firstOutstandingDocument resumes a recovered conversation at the first
// document not yet validated.
func (s *GuarantorFlowService) firstOutstandingDocument(guarantor *models.Guarantor) models.DocumentType {
	statusMap, err := models.ParseDocumentStatus(guarantor.DocumentsStatus)
	if err != nil {
		return sequencer.GuarantorSequence()[0]
	}
	for _, docType := range sequencer.GuarantorSequence() {
		if record, ok := statusMap[docType]; !ok || record.Status != models.DocumentValidated {
			return docType
		}
	}
	return sequencer.GuarantorSequence()[0]
}

func (s *GuarantorFlowService) persistGuarantorDocument(guarantor *models.Guarantor, docType models.DocumentType, ref string, outcome isvc.DocumentOutcome) error {
	statusMap, err := models.ParseDocumentStatus(guarantor.DocumentsStatus)
	if err != nil {
		config.Logger.Warn("Resetting unreadable guarantor documents_status", zap.String("guarantorID", guarantor.ID.String()), zap.Error(err))
		statusMap = models.DocumentStatusMap{}
	}
	statusMap[docType] = models.DocumentRecord{
		Status:        outcome.Status,
		StorageRef:    ref,
		ExtractedData: outcome.ExtractedFields,
		Errors:        outcome.Errors,
		Warnings:      outcome.Warnings,
		Confidence:    outcome.Confidence,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := s.guarantors.UpdateDocumentsStatus(guarantor.ID, statusMap); err != nil {
		return err
	}
	encoded, err := models.EncodeDocumentStatus(statusMap)
	if err == nil {
		guarantor.DocumentsStatus = encoded
	}
	return nil
}

func (s *GuarantorFlowService) advanceGuarantorDocument(ctx context.Context, guarantor *models.Guarantor, state *models.ConversationState, current models.DocumentType) (string, error) {
	next, ok, err := sequencer.NextGuarantorDocument(current)
	if err != nil {
		config.Logger.Error("Document sequencer rejected current document",
			zap.String("current", string(current)),
			zap.Error(err),
		)
		return safeFallbackMessage, nil
	}
	if ok {
		state.Context.CurrentDocument = next
		return documentRequestMessage(next), nil
	}

	stage, err := s.machine.Step(state.CurrentState, engine.EventAllDocumentsValid)
	if err != nil {
		return safeFallbackMessage, err
	}
	state.CurrentState = stage
	state.Context.CurrentDocument = ""

	if err := s.guarantors.UpdateWhatsAppStatus(guarantor.ID, models.WhatsAppCompleted); err != nil {
		config.Logger.Error("Failed to mark guarantor completed", zap.String("guarantorID", guarantor.ID.String()), zap.Error(err))
	}
	guarantor.WhatsAppStatus = models.WhatsAppCompleted

	if err := s.completion.OnGuarantorCompleted(ctx, guarantor.TenantID); err != nil {
		// The guarantor's own completion stands; the fan-in will fire
		// again on the other guarantor's completion or via the sweep.
		config.Logger.Error("Completion fan-in failed",
			zap.String("tenantID", guarantor.TenantID.String()),
			zap.Error(err),
		)
	}
	return guarantorDoneMessage, nil
}
