package services

import (
	"fmt"
	"strings"
	"time"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/db/models"
	trepos "tenant-onboarding-backend/tenants/repositories"
	"tenant-onboarding-backend/utils"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// stuckAfter is how long an in-progress onboarding may sit without activity
// before the back office is alerted.
const stuckAfter = 48 * time.Hour

// StuckSweepService periodically marks silent in-progress tenants as stuck
// and emails the back office a digest.
type StuckSweepService struct {
	tenants    trepos.TenantRepository
	alertEmail string
}

func NewStuckSweepService(tenants trepos.TenantRepository) *StuckSweepService {
	return &StuckSweepService{
		tenants:    tenants,
		alertEmail: config.GetEnv("ONBOARDING_ALERT_EMAIL"),
	}
}

// Schedule registers the sweep on the given cron runner, hourly.
func (s *StuckSweepService) Schedule(c *cron.Cron) error {
	_, err := c.AddFunc("@hourly", s.Run)
	return err
}

// Run executes one sweep pass.
func (s *StuckSweepService) Run() {
	cutoff := time.Now().UTC().Add(-stuckAfter).Unix()
	tenants, err := s.tenants.GetStuckTenants(cutoff)
	if err != nil {
		config.Logger.Error("Stuck sweep query failed", zap.Error(err))
		return
	}
	if len(tenants) == 0 {
		return
	}

	var digest strings.Builder
	for _, t := range tenants {
		if err := s.tenants.UpdateWhatsAppStatus(t.ID, models.WhatsAppStuck); err != nil {
			config.Logger.Error("Failed to mark tenant stuck",
				zap.String("tenantID", t.ID.String()),
				zap.Error(err),
			)
			continue
		}
		config.Logger.Warn("Tenant onboarding marked stuck",
			zap.String("tenantID", t.ID.String()),
			zap.String("phoneNumber", t.PhoneNumber),
			zap.Time("lastActivity", t.UpdatedAt),
		)
		fmt.Fprintf(&digest, "- %s (%s), last activity %s\n",
			t.FullName, t.PhoneNumber, t.UpdatedAt.Format("02/01/2006 15:04"))
	}

	if s.alertEmail == "" || digest.Len() == 0 {
		return
	}
	subject := fmt.Sprintf("%d onboarding conversation(s) stuck", len(tenants))
	body := "The following tenants have gone silent mid-onboarding:\n\n" + digest.String()
	if err := utils.SendEmail(s.alertEmail, subject, body); err != nil {
		config.Logger.Error("Failed to send stuck-onboarding digest", zap.Error(err))
	}
}
