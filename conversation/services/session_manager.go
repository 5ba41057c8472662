package services

import (
	"context"
	"time"

	"tenant-onboarding-backend/config"
	convrepos "tenant-onboarding-backend/conversation/repositories"
	"tenant-onboarding-backend/db/models"
	grepos "tenant-onboarding-backend/guarantors/repositories"
	trepos "tenant-onboarding-backend/tenants/repositories"
	"tenant-onboarding-backend/utils"

	"go.uber.org/zap"
)

// DefaultConversationTimeout is how long a conversation may sit idle before
// the next message restarts it from the beginning.
const DefaultConversationTimeout = 24 * time.Hour

// SessionManager is the entry point for inbound messages. It resolves the
// sender to a party, loads or initializes the conversation, applies the
// idle-timeout reset, and dispatches to the right flow.
type SessionManager struct {
	conversations convrepos.ConversationRepository
	tenants       trepos.TenantRepository
	guarantors    grepos.GuarantorRepository
	tenantFlow    *TenantFlowService
	guarantorFlow *GuarantorFlowService
	broadcaster   ProgressBroadcaster
	timeout       time.Duration
	now           func() time.Time
}

func NewSessionManager(
	conversations convrepos.ConversationRepository,
	tenants trepos.TenantRepository,
	guarantors grepos.GuarantorRepository,
	tenantFlow *TenantFlowService,
	guarantorFlow *GuarantorFlowService,
	broadcaster ProgressBroadcaster,
	timeout time.Duration,
) *SessionManager {
	if timeout <= 0 {
		timeout = DefaultConversationTimeout
	}
	return &SessionManager{
		conversations: conversations,
		tenants:       tenants,
		guarantors:    guarantors,
		tenantFlow:    tenantFlow,
		guarantorFlow: guarantorFlow,
		broadcaster:   broadcaster,
		timeout:       timeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// HandleMessage processes one inbound message end to end and returns the
// reply text, empty when no reply should be sent.
func (m *SessionManager) HandleMessage(ctx context.Context, msg Message) (string, error) {
	phone := utils.NormalizePhoneNumber(msg.Phone)
	msg.Phone = phone

	// Guarantor numbers win the lookup: a person can plausibly appear as
	// both a guarantor and a prospective tenant, and an active guarantor
	// flow takes precedence.
	guarantor, err := m.guarantors.GetGuarantorByPhone(phone)
	if err != nil {
		return "", err
	}
	if guarantor != nil {
		return m.handleGuarantorMessage(ctx, guarantor, msg)
	}

	tenant, err := m.tenants.GetTenantByPhone(phone)
	if err != nil {
		return "", err
	}
	if tenant == nil {
		tenant, err = m.tenants.CreateTenant(&models.Tenant{
			PhoneNumber:    phone,
			WhatsAppStatus: models.WhatsAppNotStarted,
		})
		if err != nil {
			return "", err
		}
		config.Logger.Info("Created tenant from first contact", zap.String("phoneNumber", phone))
	}
	return m.handleTenantMessage(ctx, tenant, msg)
}

func (m *SessionManager) handleTenantMessage(ctx context.Context, tenant *models.Tenant, msg Message) (string, error) {
	state, err := m.loadState(ctx, msg.Phone)
	if err != nil {
		return "", err
	}
	if state == nil {
		state = &models.ConversationState{
			PhoneNumber:  msg.Phone,
			PartyType:    models.PartyTenant,
			CurrentState: models.InitialStage(models.PartyTenant),
			Context:      models.ConversationContext{TenantID: &tenant.ID},
		}
	} else if m.expired(state) {
		m.resetState(state, models.InitialStage(models.PartyTenant), models.ConversationContext{TenantID: &tenant.ID})
	}

	reply, err := m.tenantFlow.Handle(ctx, tenant, state, msg)
	if err != nil {
		config.Logger.Error("Tenant flow failed",
			zap.String("phoneNumber", msg.Phone),
			zap.String("stage", string(state.CurrentState)),
			zap.Error(err),
		)
	}
	return reply, m.commit(ctx, state)
}

func (m *SessionManager) handleGuarantorMessage(ctx context.Context, guarantor *models.Guarantor, msg Message) (string, error) {
	state, err := m.loadState(ctx, msg.Phone)
	if err != nil {
		return "", err
	}
	freshContext := models.ConversationContext{
		TenantID:        &guarantor.TenantID,
		GuarantorID:     &guarantor.ID,
		CurrentDocument: models.DocumentIDCard,
	}
	if state == nil {
		// The introduction normally opens this conversation; recover if
		// the record went missing.
		config.Logger.Warn("Guarantor conversation missing, initializing at documents",
			zap.String("phoneNumber", msg.Phone),
		)
		state = &models.ConversationState{
			PhoneNumber:  msg.Phone,
			PartyType:    models.PartyGuarantor,
			CurrentState: models.StageDocuments,
			Context:      freshContext,
		}
	} else if m.expired(state) {
		m.resetState(state, models.StageDocuments, freshContext)
	}

	reply, err := m.guarantorFlow.Handle(ctx, guarantor, state, msg)
	if err != nil {
		config.Logger.Error("Guarantor flow failed",
			zap.String("phoneNumber", msg.Phone),
			zap.String("stage", string(state.CurrentState)),
			zap.Error(err),
		)
	}
	return reply, m.commit(ctx, state)
}

func (m *SessionManager) loadState(ctx context.Context, phone string) (*models.ConversationState, error) {
	return m.conversations.GetState(ctx, phone)
}

func (m *SessionManager) expired(state *models.ConversationState) bool {
	return !state.LastMessageTime.IsZero() && m.now().Sub(state.LastMessageTime) > m.timeout
}

// resetState restarts an idle conversation before the new message is
// processed. In-flight context is discarded wholesale; only party linkage
// survives.
func (m *SessionManager) resetState(state *models.ConversationState, initial models.ConversationStage, fresh models.ConversationContext) {
	config.Logger.Info("Resetting idle conversation",
		zap.String("phoneNumber", state.PhoneNumber),
		zap.String("previousStage", string(state.CurrentState)),
		zap.Time("lastMessageTime", state.LastMessageTime),
	)
	state.CurrentState = initial
	state.Context = fresh
}

func (m *SessionManager) commit(ctx context.Context, state *models.ConversationState) error {
	state.LastMessageTime = m.now()
	if err := m.conversations.PutState(ctx, state); err != nil {
		return err
	}
	if m.broadcaster != nil {
		m.broadcaster.BroadcastProgress(ProgressEvent{
			Party:    state.PartyType,
			Phone:    state.PhoneNumber,
			Stage:    state.CurrentState,
			TenantID: state.Context.TenantID,
		})
	}
	return nil
}
