package services

import (
	"context"
	"time"

	"tenant-onboarding-backend/config"
	convrepos "tenant-onboarding-backend/conversation/repositories"
	"tenant-onboarding-backend/db/models"
	grepos "tenant-onboarding-backend/guarantors/repositories"
	"tenant-onboarding-backend/notifications"
	trepos "tenant-onboarding-backend/tenants/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// completionGuardTTL bounds the exactly-once flag; after it expires the
// tenant row already reads completed, so a late re-trigger is a no-op.
const completionGuardTTL = 30 * 24 * time.Hour

// CompletionService aggregates guarantor completions for a tenant. When
// both guarantors have every required document validated, the tenant is
// marked completed and told so exactly once.
type CompletionService struct {
	tenants       trepos.TenantRepository
	guarantors    grepos.GuarantorRepository
	conversations convrepos.ConversationRepository
	notifier      notifications.Notifier
}

func NewCompletionService(
	tenants trepos.TenantRepository,
	guarantors grepos.GuarantorRepository,
	conversations convrepos.ConversationRepository,
	notifier notifications.Notifier,
) *CompletionService {
	return &CompletionService{
		tenants:       tenants,
		guarantors:    guarantors,
		conversations: conversations,
		notifier:      notifier,
	}
}

// OnGuarantorCompleted re-checks the tenant's guarantors and fires the
// completion side effects when everyone is done. Safe to call repeatedly
// and from concurrent workers; the once-flag makes the notification
// exactly-once.
func (s *CompletionService) OnGuarantorCompleted(ctx context.Context, tenantID uuid.UUID) error {
	guarantors, err := s.guarantors.GetGuarantorsByTenant(tenantID)
	if err != nil {
		return err
	}
	if len(guarantors) < 2 {
		return nil
	}

	for _, g := range guarantors {
		statusMap, err := models.ParseDocumentStatus(g.DocumentsStatus)
		if err != nil || !statusMap.Covers(models.GuarantorRequiredDocuments) {
			return nil
		}
	}

	acquired, err := s.conversations.AcquireOnce(ctx, completionKey(tenantID), completionGuardTTL)
	if err != nil {
		return err
	}
	if !acquired {
		// Another completion event got here first.
		return nil
	}

	tenant, err := s.tenants.GetTenantByID(tenantID)
	if err != nil || tenant == nil {
		releaseErr := s.conversations.ReleaseOnce(ctx, completionKey(tenantID))
		if releaseErr != nil {
			config.Logger.Error("Failed to release completion flag", zap.Error(releaseErr))
		}
		return err
	}

	if err := s.tenants.UpdateWhatsAppStatus(tenantID, models.WhatsAppCompleted); err != nil {
		if releaseErr := s.conversations.ReleaseOnce(ctx, completionKey(tenantID)); releaseErr != nil {
			config.Logger.Error("Failed to release completion flag", zap.Error(releaseErr))
		}
		return err
	}

	if err := s.notifier.NotifyAsync(ctx, tenant.PhoneNumber, tenantAllDoneMessage); err != nil {
		// Status is already committed; release the flag so a later
		// trigger can retry just the notification.
		if releaseErr := s.conversations.ReleaseOnce(ctx, completionKey(tenantID)); releaseErr != nil {
			config.Logger.Error("Failed to release completion flag", zap.Error(releaseErr))
		}
		return err
	}

	config.Logger.Info("Tenant onboarding completed",
		zap.String("tenantID", tenantID.String()),
		zap.String("phoneNumber", tenant.PhoneNumber),
	)
	return nil
}

func completionKey(tenantID uuid.UUID) string {
	return "tenant_completed:" + tenantID.String()
}
