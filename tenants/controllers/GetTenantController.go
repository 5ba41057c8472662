package controllers

import (
	"tenant-onboarding-backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GetTenantController returns one tenant with its guarantors, for the
// onboarding detail view.
func (tc *TenantController) GetTenantController(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid tenant id",
		})
	}

	tenant, err := tc.TenantRepo.GetTenantByID(id)
	if err != nil {
		config.Logger.Error("Failed to fetch tenant", zap.String("tenantID", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tenant",
		})
	}
	if tenant == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Tenant not found",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": tenant})
}
