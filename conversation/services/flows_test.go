package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"tenant-onboarding-backend/db/models"
	isvc "tenant-onboarding-backend/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	conversations *fakeConversationRepo
	tenants       *fakeTenantRepo
	guarantors    *fakeGuarantorRepo
	gateway       *fakeGateway
	notifier      *fakeNotifier
	completion    *CompletionService
	tenantFlow    *TenantFlowService
	guarantorFlow *GuarantorFlowService
	manager       *SessionManager
}

func newTestEnv(t *testing.T, tenants []*models.Tenant, guarantors []*models.Guarantor) *testEnv {
	t.Helper()
	env := &testEnv{
		conversations: newFakeConversationRepo(),
		tenants:       newFakeTenantRepo(tenants...),
		guarantors:    newFakeGuarantorRepo(guarantors...),
		gateway:       &fakeGateway{},
		notifier:      &fakeNotifier{},
	}
	env.completion = NewCompletionService(env.tenants, env.guarantors, env.conversations, env.notifier)
	env.tenantFlow = NewTenantFlowService(env.tenants, env.guarantors, env.conversations, env.gateway, fakeDocumentStore{}, env.notifier)
	env.guarantorFlow = NewGuarantorFlowService(env.guarantors, env.gateway, fakeDocumentStore{}, env.completion)
	env.manager = NewSessionManager(env.conversations, env.tenants, env.guarantors, env.tenantFlow, env.guarantorFlow, nil, DefaultConversationTimeout)
	return env
}

func sampleTenant() *models.Tenant {
	moveIn := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	return &models.Tenant{
		ID:                uuid.New(),
		FullName:          "David Cohen",
		PhoneNumber:       "972541234567",
		PropertyName:      "Herzl 12",
		ApartmentNumber:   "4",
		NumberOfRooms:     3,
		MonthlyRentAmount: decimal.NewFromInt(6500),
		MoveInDate:        &moveIn,
		WhatsAppStatus:    models.WhatsAppNotStarted,
	}
}

func textMessage(phone, text string) Message {
	return Message{Phone: phone, Text: text}
}

func mediaMessage(phone string) Message {
	return Message{Phone: phone, HasMedia: true, MediaBytes: []byte("file"), MimeType: "application/pdf"}
}

func validatedStatusMap(t *testing.T, docs []models.DocumentType) datatypes.JSON {
	t.Helper()
	statusMap := models.DocumentStatusMap{}
	for _, d := range docs {
		statusMap[d] = models.DocumentRecord{Status: models.DocumentValidated, UpdatedAt: time.Now().UTC()}
	}
	encoded, err := models.EncodeDocumentStatus(statusMap)
	require.NoError(t, err)
	return encoded
}

func TestTenantHappyPath(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	env.gateway.validate = func(docType models.DocumentType) isvc.DocumentOutcome {
		out := isvc.DocumentOutcome{Status: models.DocumentValidated, Confidence: 0.9}
		if docType == models.DocumentIDCard {
			out.ExtractedFields = map[string]any{"id_number": "123456789", "name": "David Cohen"}
		}
		return out
	}
	ctx := context.Background()
	phone := tenant.PhoneNumber

	reply, err := env.manager.HandleMessage(ctx, textMessage(phone, "hi"))
	require.NoError(t, err)
	assert.Contains(t, reply, "Herzl 12")
	assert.Contains(t, reply, "Is everything correct?")
	assert.Equal(t, models.WhatsAppInProgress, tenant.WhatsAppStatus)

	reply, err = env.manager.HandleMessage(ctx, textMessage(phone, "yes"))
	require.NoError(t, err)
	assert.Equal(t, askOccupation, reply)

	reply, err = env.manager.HandleMessage(ctx, textMessage(phone, "software engineer"))
	require.NoError(t, err)
	assert.Equal(t, askFamilyStatus, reply)
	require.NotNil(t, tenant.Occupation)
	assert.Equal(t, "software engineer", *tenant.Occupation)

	reply, err = env.manager.HandleMessage(ctx, textMessage(phone, "married"))
	require.NoError(t, err)
	assert.Equal(t, askNumberOfChildren, reply)

	reply, err = env.manager.HandleMessage(ctx, textMessage(phone, "2"))
	require.NoError(t, err)
	assert.Contains(t, reply, "ID card")
	assert.Equal(t, 2, tenant.NumberOfChildren)

	// ID card, sephach, payslips, bank statements in order
	for _, expected := range []string{"sephach", "payslips", "bank statements"} {
		reply, err = env.manager.HandleMessage(ctx, mediaMessage(phone))
		require.NoError(t, err)
		assert.Contains(t, reply, expected)
	}
	require.NotNil(t, tenant.IDNumber)
	assert.Equal(t, "123456789", *tenant.IDNumber)

	reply, err = env.manager.HandleMessage(ctx, mediaMessage(phone))
	require.NoError(t, err)
	assert.Contains(t, reply, "first guarantor")

	reply, err = env.manager.HandleMessage(ctx, textMessage(phone, "Moshe Levi 0521112233"))
	require.NoError(t, err)
	assert.Contains(t, reply, "second guarantor")
	assert.Equal(t, 1, env.guarantors.count())
	assert.Equal(t, 1, env.notifier.sent())

	reply, err = env.manager.HandleMessage(ctx, textMessage(phone, "Sara Mizrahi 0534445566"))
	require.NoError(t, err)
	assert.Equal(t, tenantWaitingMessage, reply)
	assert.Equal(t, 2, env.guarantors.count())

	state, err := env.conversations.GetState(ctx, phone)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, models.StageCompleted, state.CurrentState)
	require.NotNil(t, tenant.Guarantor1ID)
	require.NotNil(t, tenant.Guarantor2ID)
}

func TestConfirmationRejectionRecordsCorrection(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	ctx := context.Background()

	_, err := env.manager.HandleMessage(ctx, textMessage(tenant.PhoneNumber, "hi"))
	require.NoError(t, err)

	reply, err := env.manager.HandleMessage(ctx, textMessage(tenant.PhoneNumber, "no, the rent is wrong"))
	require.NoError(t, err)
	assert.Equal(t, correctionAcknowledgement, reply)

	state, err := env.conversations.GetState(ctx, tenant.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, models.StageConfirmation, state.CurrentState)
	require.NotNil(t, tenant.CorrectionNotes)
	assert.Contains(t, *tenant.CorrectionNotes, "rent is wrong")
}

func TestTimeoutResetsBeforeProcessing(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	ctx := context.Background()

	stale := &models.ConversationState{
		PhoneNumber:  tenant.PhoneNumber,
		PartyType:    models.PartyTenant,
		CurrentState: models.StageDocuments,
		Context: models.ConversationContext{
			TenantID:        &tenant.ID,
			CurrentDocument: models.DocumentPayslips,
		},
		LastMessageTime: time.Now().UTC().Add(-25 * time.Hour),
	}
	require.NoError(t, env.conversations.PutState(ctx, stale))

	reply, err := env.manager.HandleMessage(ctx, textMessage(tenant.PhoneNumber, "hello again"))
	require.NoError(t, err)
	assert.Contains(t, reply, "Is everything correct?")

	state, err := env.conversations.GetState(ctx, tenant.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, models.StageConfirmation, state.CurrentState)
	assert.Empty(t, state.Context.CurrentDocument, "in-flight context must not survive the reset")
}

func TestRecentConversationNotReset(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	ctx := context.Background()

	require.NoError(t, env.conversations.PutState(ctx, &models.ConversationState{
		PhoneNumber:     tenant.PhoneNumber,
		PartyType:       models.PartyTenant,
		CurrentState:    models.StageDocuments,
		Context:         models.ConversationContext{TenantID: &tenant.ID, CurrentDocument: models.DocumentSephach},
		LastMessageTime: time.Now().UTC().Add(-time.Hour),
	}))

	reply, err := env.manager.HandleMessage(ctx, textMessage(tenant.PhoneNumber, "what now?"))
	require.NoError(t, err)
	assert.Contains(t, reply, "ID appendix")
}

func TestFinancialSlotSubstitution(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	ctx := context.Background()

	selfEmployed := models.OccupationSelfEmployed
	require.NoError(t, env.conversations.PutState(ctx, &models.ConversationState{
		PhoneNumber:  tenant.PhoneNumber,
		PartyType:    models.PartyTenant,
		CurrentState: models.StageDocuments,
		Context: models.ConversationContext{
			TenantID:        &tenant.ID,
			CurrentDocument: models.DocumentPayslips,
			OccupationClass: &selfEmployed,
		},
		LastMessageTime: time.Now().UTC(),
	}))

	var validated []models.DocumentType
	env.gateway.validate = func(docType models.DocumentType) isvc.DocumentOutcome {
		validated = append(validated, docType)
		return isvc.DocumentOutcome{Status: models.DocumentValidated}
	}

	reply, err := env.manager.HandleMessage(ctx, textMessage(tenant.PhoneNumber, "which document?"))
	require.NoError(t, err)
	assert.Contains(t, reply, "profit-and-loss")

	reply, err = env.manager.HandleMessage(ctx, mediaMessage(tenant.PhoneNumber))
	require.NoError(t, err)
	require.Equal(t, []models.DocumentType{models.DocumentPNL}, validated)
	assert.Contains(t, reply, "bank statements")
}

func TestGuarantorUpsertIdempotentUnderRetry(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	ctx := context.Background()

	state := &models.ConversationState{
		PhoneNumber:  tenant.PhoneNumber,
		PartyType:    models.PartyTenant,
		CurrentState: models.StageGuarantor1,
		Context:      models.ConversationContext{TenantID: &tenant.ID, GuarantorSlot: 1},
	}

	_, err := env.tenantFlow.Handle(ctx, tenant, state, textMessage(tenant.PhoneNumber, "Moshe Levi 0521112233"))
	require.NoError(t, err)

	// Redelivered webhook replays the same message against the same stage.
	state.CurrentState = models.StageGuarantor1
	_, err = env.tenantFlow.Handle(ctx, tenant, state, textMessage(tenant.PhoneNumber, "Moshe Levi 0521112233"))
	require.NoError(t, err)

	assert.Equal(t, 1, env.guarantors.count(), "retry must update, not duplicate")
	assert.Equal(t, 1, env.notifier.sent(), "introduction must not repeat")
}

func TestGuarantorRejectionKeepsState(t *testing.T) {
	tenant := sampleTenant()
	guarantor := &models.Guarantor{
		ID:              uuid.New(),
		TenantID:        tenant.ID,
		GuarantorNumber: 1,
		FullName:        "Moshe Levi",
		PhoneNumber:     "972521112233",
		WhatsAppStatus:  models.WhatsAppInProgress,
	}
	env := newTestEnv(t, []*models.Tenant{tenant}, []*models.Guarantor{guarantor})
	ctx := context.Background()

	require.NoError(t, env.conversations.PutState(ctx, &models.ConversationState{
		PhoneNumber:  guarantor.PhoneNumber,
		PartyType:    models.PartyGuarantor,
		CurrentState: models.StageDocuments,
		Context: models.ConversationContext{
			TenantID:        &tenant.ID,
			GuarantorID:     &guarantor.ID,
			CurrentDocument: models.DocumentIDCard,
		},
		LastMessageTime: time.Now().UTC(),
	}))

	env.gateway.validate = func(docType models.DocumentType) isvc.DocumentOutcome {
		return isvc.DocumentOutcome{Status: models.DocumentRejected, Errors: []string{"name mismatch"}}
	}

	reply, err := env.manager.HandleMessage(ctx, mediaMessage(guarantor.PhoneNumber))
	require.NoError(t, err)
	assert.Contains(t, reply, "name mismatch")

	state, err := env.conversations.GetState(ctx, guarantor.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, models.StageDocuments, state.CurrentState)
	assert.Equal(t, models.DocumentIDCard, state.Context.CurrentDocument)
}

func TestGuarantorUnknownStageRecoversToDocuments(t *testing.T) {
	tenant := sampleTenant()
	guarantor := &models.Guarantor{
		ID:              uuid.New(),
		TenantID:        tenant.ID,
		GuarantorNumber: 1,
		FullName:        "Moshe Levi",
		PhoneNumber:     "972521112233",
	}
	env := newTestEnv(t, []*models.Tenant{tenant}, []*models.Guarantor{guarantor})
	ctx := context.Background()

	require.NoError(t, env.conversations.PutState(ctx, &models.ConversationState{
		PhoneNumber:     guarantor.PhoneNumber,
		PartyType:       models.PartyGuarantor,
		CurrentState:    models.ConversationStage("LEGACY_STATE"),
		LastMessageTime: time.Now().UTC(),
	}))

	reply, err := env.manager.HandleMessage(ctx, textMessage(guarantor.PhoneNumber, "hello?"))
	require.NoError(t, err)
	assert.Contains(t, reply, "ID card")

	state, err := env.conversations.GetState(ctx, guarantor.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, models.StageDocuments, state.CurrentState)
}

func TestGuarantorCompletionTriggersFanIn(t *testing.T) {
	tenant := sampleTenant()
	tenant.WhatsAppStatus = models.WhatsAppInProgress

	done := validatedStatusMap(t, models.GuarantorRequiredDocuments)
	g1 := &models.Guarantor{
		ID: uuid.New(), TenantID: tenant.ID, GuarantorNumber: 1,
		FullName: "Moshe Levi", PhoneNumber: "972521112233",
		WhatsAppStatus: models.WhatsAppCompleted, DocumentsStatus: done,
	}
	g2 := &models.Guarantor{
		ID: uuid.New(), TenantID: tenant.ID, GuarantorNumber: 2,
		FullName: "Sara Mizrahi", PhoneNumber: "972534445566",
		WhatsAppStatus: models.WhatsAppInProgress,
		DocumentsStatus: validatedStatusMap(t, []models.DocumentType{
			models.DocumentIDCard, models.DocumentSephach, models.DocumentPayslips,
		}),
	}
	env := newTestEnv(t, []*models.Tenant{tenant}, []*models.Guarantor{g1, g2})
	ctx := context.Background()

	require.NoError(t, env.conversations.PutState(ctx, &models.ConversationState{
		PhoneNumber:  g2.PhoneNumber,
		PartyType:    models.PartyGuarantor,
		CurrentState: models.StageDocuments,
		Context: models.ConversationContext{
			TenantID:        &tenant.ID,
			GuarantorID:     &g2.ID,
			CurrentDocument: models.DocumentBankStatements,
		},
		LastMessageTime: time.Now().UTC(),
	}))

	reply, err := env.manager.HandleMessage(ctx, mediaMessage(g2.PhoneNumber))
	require.NoError(t, err)
	assert.Equal(t, guarantorDoneMessage, reply)

	assert.Equal(t, models.WhatsAppCompleted, g2.WhatsAppStatus)
	assert.Equal(t, models.WhatsAppCompleted, tenant.WhatsAppStatus)
	require.Equal(t, 1, env.notifier.sent())
	assert.Equal(t, tenant.PhoneNumber, env.notifier.to[0])
	assert.Equal(t, tenantAllDoneMessage, env.notifier.messages[0])
}

func TestFanInNotifiesExactlyOnceUnderConcurrency(t *testing.T) {
	tenant := sampleTenant()
	tenant.WhatsAppStatus = models.WhatsAppInProgress

	done := validatedStatusMap(t, models.GuarantorRequiredDocuments)
	g1 := &models.Guarantor{ID: uuid.New(), TenantID: tenant.ID, GuarantorNumber: 1, PhoneNumber: "972521112233", DocumentsStatus: done}
	g2 := &models.Guarantor{ID: uuid.New(), TenantID: tenant.ID, GuarantorNumber: 2, PhoneNumber: "972534445566", DocumentsStatus: done}
	env := newTestEnv(t, []*models.Tenant{tenant}, []*models.Guarantor{g1, g2})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = env.completion.OnGuarantorCompleted(context.Background(), tenant.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, env.notifier.sent(), "fan-in must notify exactly once")
	assert.Equal(t, models.WhatsAppCompleted, tenant.WhatsAppStatus)
}

func TestFanInWaitsForBothGuarantors(t *testing.T) {
	tenant := sampleTenant()
	done := validatedStatusMap(t, models.GuarantorRequiredDocuments)
	g1 := &models.Guarantor{ID: uuid.New(), TenantID: tenant.ID, GuarantorNumber: 1, PhoneNumber: "972521112233", DocumentsStatus: done}
	env := newTestEnv(t, []*models.Tenant{tenant}, []*models.Guarantor{g1})

	require.NoError(t, env.completion.OnGuarantorCompleted(context.Background(), tenant.ID))
	assert.Zero(t, env.notifier.sent())
	assert.NotEqual(t, models.WhatsAppCompleted, tenant.WhatsAppStatus)
}

func TestUnknownSenderBecomesTenant(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	ctx := context.Background()

	reply, err := env.manager.HandleMessage(ctx, textMessage("0549998877", "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	created, err := env.tenants.GetTenantByPhone("972549998877")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, models.WhatsAppInProgress, created.WhatsAppStatus)
}

func TestGuarantorLookupWinsOverTenant(t *testing.T) {
	tenant := sampleTenant()
	guarantor := &models.Guarantor{
		ID:              uuid.New(),
		TenantID:        tenant.ID,
		GuarantorNumber: 1,
		FullName:        "Moshe Levi",
		PhoneNumber:     tenant.PhoneNumber, // same person, both roles
	}
	env := newTestEnv(t, []*models.Tenant{tenant}, []*models.Guarantor{guarantor})

	reply, err := env.manager.HandleMessage(context.Background(), textMessage(tenant.PhoneNumber, "hello"))
	require.NoError(t, err)
	assert.Contains(t, reply, "ID card", "guarantor flow should have answered")
}

func TestTenantUnknownStageAnswersSafely(t *testing.T) {
	tenant := sampleTenant()
	env := newTestEnv(t, []*models.Tenant{tenant}, nil)
	ctx := context.Background()

	require.NoError(t, env.conversations.PutState(ctx, &models.ConversationState{
		PhoneNumber:     tenant.PhoneNumber,
		PartyType:       models.PartyTenant,
		CurrentState:    models.ConversationStage("???"),
		LastMessageTime: time.Now().UTC(),
	}))

	reply, err := env.manager.HandleMessage(ctx, textMessage(tenant.PhoneNumber, "hi"))
	require.NoError(t, err)
	assert.Equal(t, safeFallbackMessage, reply)
}
