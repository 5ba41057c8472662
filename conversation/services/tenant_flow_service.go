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
	"tenant-onboarding-backend/notifications"
	trepos "tenant-onboarding-backend/tenants/repositories"
	"tenant-onboarding-backend/utils"

	convrepos "tenant-onboarding-backend/conversation/repositories"

	"go.uber.org/zap"
)

// TenantFlowService drives the primary party's conversation:
// GREETING → CONFIRMATION → PERSONAL_INFO → DOCUMENTS → GUARANTOR_1 →
// GUARANTOR_2 → COMPLETED.
type TenantFlowService struct {
	machine       *engine.Machine
	tenants       trepos.TenantRepository
	guarantors    grepos.GuarantorRepository
	conversations convrepos.ConversationRepository
	gateway       isvc.ValidationGateway
	store         DocumentStore
	notifier      notifications.Notifier
}

func NewTenantFlowService(
	tenants trepos.TenantRepository,
	guarantors grepos.GuarantorRepository,
	conversations convrepos.ConversationRepository,
	gateway isvc.ValidationGateway,
	store DocumentStore,
	notifier notifications.Notifier,
) *TenantFlowService {
	return &TenantFlowService{
		machine:       engine.TenantMachine(),
		tenants:       tenants,
		guarantors:    guarantors,
		conversations: conversations,
		gateway:       gateway,
		store:         store,
		notifier:      notifier,
	}
}

// Handle processes one inbound message. It mutates state in place; the
// session manager persists it afterwards. The returned string is the reply
// to send, empty when no reply is needed.
func (s *TenantFlowService) Handle(ctx context.Context, tenant *models.Tenant, state *models.ConversationState, msg Message) (string, error) {
	switch state.CurrentState {
	case models.StageGreeting:
		return s.handleGreeting(tenant, state)
	case models.StageConfirmation:
		return s.handleConfirmation(ctx, tenant, state, msg)
	case models.StagePersonalInfo:
		return s.handlePersonalInfo(ctx, tenant, state, msg)
	case models.StageDocuments:
		return s.handleDocuments(ctx, tenant, state, msg)
	case models.StageGuarantor1, models.StageGuarantor2:
		return s.handleGuarantorContact(ctx, tenant, state, msg)
	case models.StageCompleted:
		return alreadyCompletedMessage, nil
	default:
		// No defined recovery for a tenant conversation in a foreign
		// stage; answer safely and leave the state for inspection.
		config.Logger.Error("Tenant conversation in unknown stage",
			zap.String("phoneNumber", state.PhoneNumber),
			zap.String("stage", string(state.CurrentState)),
		)
		return safeFallbackMessage, nil
	}
}

func (s *TenantFlowService) handleGreeting(tenant *models.Tenant, state *models.ConversationState) (string, error) {
	next, err := s.machine.Step(state.CurrentState, engine.EventTenantMatched)
	if err != nil {
		return safeFallbackMessage, err
	}
	state.CurrentState = next
	state.Context.TenantID = &tenant.ID

	if tenant.WhatsAppStatus == models.WhatsAppNotStarted {
		if err := s.tenants.UpdateWhatsAppStatus(tenant.ID, models.WhatsAppInProgress); err != nil {
			config.Logger.Error("Failed to mark tenant in progress", zap.Error(err))
		}
	}
	return greetingMessage(tenant), nil
}

func (s *TenantFlowService) handleConfirmation(ctx context.Context, tenant *models.Tenant, state *models.ConversationState, msg Message) (string, error) {
	outcome := s.gateway.Interpret(ctx, isvc.QuestionContext{
		Kind:     isvc.QuestionConfirmation,
		Question: "Are the rental details correct?",
	}, msg.Text)

	switch confirmed := outcome.ParsedFields["confirmed"].(type) {
	case bool:
		if !confirmed {
			s.recordCorrection(tenant, msg.Text)
			return correctionAcknowledgement, nil
		}
	default:
		return "Sorry, I didn't catch that.\n\n" + confirmationMessage(tenant), nil
	}

	next, err := s.machine.Step(state.CurrentState, engine.EventDetailsConfirmed)
	if err != nil {
		return safeFallbackMessage, err
	}
	state.CurrentState = next
	state.Context.PendingField = models.FieldOccupation
	return askOccupation, nil
}

// recordCorrection appends the tenant's free-text correction for back-office
// review; the details themselves are fixed outside the conversation.
func (s *TenantFlowService) recordCorrection(tenant *models.Tenant, text string) {
	notes := text
	if tenant.CorrectionNotes != nil && *tenant.CorrectionNotes != "" {
		notes = *tenant.CorrectionNotes + "\n" + text
	}
	if err := s.tenants.UpdateTenantFields(tenant.ID, map[string]interface{}{"correction_notes": notes}); err != nil {
		config.Logger.Error("Failed to record correction note", zap.String("tenantID", tenant.ID.String()), zap.Error(err))
	}
}

func (s *TenantFlowService) handlePersonalInfo(ctx context.Context, tenant *models.Tenant, state *models.ConversationState, msg Message) (string, error) {
	field := state.Context.PendingField
	if field == "" {
		field = models.FieldOccupation
		state.Context.PendingField = field
	}

	switch field {
	case models.FieldOccupation:
		outcome := s.gateway.Interpret(ctx, isvc.QuestionContext{Kind: isvc.QuestionOccupation, Question: askOccupation}, msg.Text)
		occupation, ok := coerceString(outcome.ParsedFields["occupation"])
		if !outcome.IsValid || !ok {
			return retryPrompt(outcome.Feedback, askOccupation), nil
		}

		class := s.gateway.ClassifyOccupation(ctx, occupation)
		state.Context.OccupationClass = &class
		if err := s.tenants.UpdateTenantFields(tenant.ID, map[string]interface{}{"occupation": occupation}); err != nil {
			return safeFallbackMessage, err
		}
		state.Context.PendingField = models.FieldFamilyStatus
		return askFamilyStatus, nil

	case models.FieldFamilyStatus:
		outcome := s.gateway.Interpret(ctx, isvc.QuestionContext{Kind: isvc.QuestionFamilyStatus, Question: askFamilyStatus}, msg.Text)
		status, ok := coerceString(outcome.ParsedFields["family_status"])
		if !outcome.IsValid || !ok {
			return retryPrompt(outcome.Feedback, askFamilyStatus), nil
		}
		if err := s.tenants.UpdateTenantFields(tenant.ID, map[string]interface{}{"family_status": status}); err != nil {
			return safeFallbackMessage, err
		}
		state.Context.PendingField = models.FieldNumberOfChildren
		return askNumberOfChildren, nil

	case models.FieldNumberOfChildren:
		outcome := s.gateway.Interpret(ctx, isvc.QuestionContext{Kind: isvc.QuestionNumberOfChildren, Question: askNumberOfChildren}, msg.Text)
		count, ok := coerceInt(outcome.ParsedFields["number_of_children"])
		if !outcome.IsValid || !ok {
			return retryPrompt(outcome.Feedback, askNumberOfChildren), nil
		}
		if err := s.tenants.UpdateTenantFields(tenant.ID, map[string]interface{}{"number_of_children": count}); err != nil {
			return safeFallbackMessage, err
		}

		next, err := s.machine.Step(state.CurrentState, engine.EventPersonalInfoDone)
		if err != nil {
			return safeFallbackMessage, err
		}
		state.CurrentState = next
		state.Context.PendingField = ""
		state.Context.CurrentDocument = sequencer.TenantSequence(state.Context.OccupationClass)[0]
		return documentRequestMessage(state.Context.CurrentDocument), nil
	}

	config.Logger.Error("Unknown personal-info field", zap.String("field", string(field)))
	return safeFallbackMessage, nil
}

func (s *TenantFlowService) handleDocuments(ctx context.Context, tenant *models.Tenant, state *models.ConversationState, msg Message) (string, error) {
	current := state.Context.CurrentDocument
	if current == "" {
		current = sequencer.TenantSequence(state.Context.OccupationClass)[0]
		state.Context.CurrentDocument = current
	}

	// Occupation may have resolved after the financial slot was queued on
	// the payslips default; substitute before accepting anything.
	if state.Context.OccupationClass != nil && isFinancialSlot(current) {
		correct := sequencer.FinancialDocumentFor(*state.Context.OccupationClass)
		if correct != current {
			config.Logger.Info("Substituting financial document for occupation class",
				zap.String("phoneNumber", state.PhoneNumber),
				zap.String("was", string(current)),
				zap.String("now", string(correct)),
			)
			current = correct
			state.Context.CurrentDocument = correct
		}
	}

	if !msg.HasMedia {
		return expectDocumentMessage(current), nil
	}

	ref, err := s.store.StoreTenantDocument(tenant.ID, current, msg.MediaBytes, msg.MimeType)
	if err != nil {
		config.Logger.Error("Failed to store tenant document", zap.Error(err))
		return documentErrorMessage(current), nil
	}

	idNumber := ""
	if tenant.IDNumber != nil {
		idNumber = *tenant.IDNumber
	}
	outcome := s.gateway.ValidateDocument(ctx, current, msg.MediaBytes, msg.MimeType, isvc.PartyContext{
		FullName: tenant.FullName,
		IDNumber: idNumber,
	})

	if err := s.persistTenantDocument(tenant, current, ref, outcome); err != nil {
		return safeFallbackMessage, err
	}

	switch outcome.Status {
	case models.DocumentValidated:
		return s.advanceTenantDocument(tenant, state, current, outcome)
	case models.DocumentRejected:
		return documentRejectedMessage(current, outcome.Errors, outcome.Warnings), nil
	default:
		return documentErrorMessage(current), nil
	}
}

func (s *TenantFlowService) persistTenantDocument(tenant *models.Tenant, docType models.DocumentType, ref string, outcome isvc.DocumentOutcome) error {
	statusMap, err := models.ParseDocumentStatus(tenant.DocumentsStatus)
	if err != nil {
		config.Logger.Warn("Resetting unreadable tenant documents_status", zap.String("tenantID", tenant.ID.String()), zap.Error(err))
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
	if err := s.tenants.UpdateDocumentsStatus(tenant.ID, statusMap); err != nil {
		return err
	}
	encoded, err := models.EncodeDocumentStatus(statusMap)
	if err == nil {
		tenant.DocumentsStatus = encoded
	}
	return nil
}

func (s *TenantFlowService) advanceTenantDocument(tenant *models.Tenant, state *models.ConversationState, current models.DocumentType, outcome isvc.DocumentOutcome) (string, error) {
	if current == models.DocumentIDCard {
		if idNumber, ok := coerceString(outcome.ExtractedFields["id_number"]); ok {
			if err := s.tenants.UpdateTenantFields(tenant.ID, map[string]interface{}{"id_number": idNumber}); err != nil {
				config.Logger.Error("Failed to persist extracted ID number", zap.Error(err))
			} else {
				tenant.IDNumber = &idNumber
			}
		}
	}

	next, ok, err := sequencer.NextTenantDocument(current, state.Context.OccupationClass)
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
	state.Context.GuarantorSlot = 1
	return "Your documents are all approved!\n\n" + askGuarantorMessage(1), nil
}

func (s *TenantFlowService) handleGuarantorContact(ctx context.Context, tenant *models.Tenant, state *models.ConversationState, msg Message) (string, error) {
	slot := 1
	if state.CurrentState == models.StageGuarantor2 {
		slot = 2
	}

	outcome := s.gateway.Interpret(ctx, isvc.QuestionContext{
		Kind:     isvc.QuestionGuarantorContact,
		Question: askGuarantorMessage(slot),
	}, msg.Text)

	name, nameOK := coerceString(outcome.ParsedFields["name"])
	phone, phoneOK := coerceString(outcome.ParsedFields["phone"])
	if !outcome.IsValid || !nameOK || !phoneOK {
		return retryPrompt(outcome.Feedback, askGuarantorMessage(slot)), nil
	}
	phone = utils.NormalizePhoneNumber(phone)

	guarantor := &models.Guarantor{
		TenantID:        tenant.ID,
		GuarantorNumber: slot,
		FullName:        name,
		PhoneNumber:     phone,
		WhatsAppStatus:  models.WhatsAppInProgress,
	}
	saved, existed, err := s.guarantors.UpsertGuarantor(guarantor)
	if err != nil {
		return safeFallbackMessage, err
	}
	if err := s.tenants.LinkGuarantor(tenant.ID, slot, saved.ID); err != nil {
		return safeFallbackMessage, err
	}

	// A fresh guarantor gets its conversation opened at DOCUMENTS; the
	// introduction message below stands in for its greeting. A retried
	// submission must not repeat the introduction.
	if !existed {
		if err := s.conversations.PutState(ctx, &models.ConversationState{
			PhoneNumber:  phone,
			PartyType:    models.PartyGuarantor,
			CurrentState: models.StageDocuments,
			Context: models.ConversationContext{
				TenantID:        &tenant.ID,
				GuarantorID:     &saved.ID,
				CurrentDocument: models.DocumentIDCard,
			},
			LastMessageTime: time.Now().UTC(),
		}); err != nil {
			config.Logger.Error("Failed to initialize guarantor conversation", zap.String("phoneNumber", phone), zap.Error(err))
		}
		if err := s.notifier.NotifyAsync(ctx, phone, guarantorIntroMessage(saved, tenant)); err != nil {
			// The transition stands even if the introduction could not
			// be queued; the sweep catches silent guarantors.
			config.Logger.Error("Failed to queue guarantor introduction", zap.String("phoneNumber", phone), zap.Error(err))
		}
	}

	next, err := s.machine.Step(state.CurrentState, engine.EventGuarantorProvided)
	if err != nil {
		return safeFallbackMessage, err
	}
	state.CurrentState = next

	if slot == 1 {
		state.Context.GuarantorSlot = 2
		return "Thanks! " + askGuarantorMessage(2), nil
	}
	state.Context.GuarantorSlot = 0
	return tenantWaitingMessage, nil
}

func isFinancialSlot(docType models.DocumentType) bool {
	return docType == models.DocumentPayslips || docType == models.DocumentPNL
}

func retryPrompt(feedback, question string) string {
	if feedback != "" {
		return feedback
	}
	return question
}
