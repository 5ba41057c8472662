package controllers

import (
	"tenant-onboarding-backend/config"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GetFilteredTenantsController handles the fetching of filtered tenants
func (tc *TenantController) GetFilteredTenantsController(c *fiber.Ctx) error {
	pageSize := c.QueryInt("page_size", 20)
	if pageSize <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid page_size parameter",
		})
	}

	page := c.QueryInt("page", 1)
	if page <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid page parameter",
		})
	}

	offset := (page - 1) * pageSize
	filters := map[string]string{
		"whatsapp_status": c.Query("whatsapp_status"),
		"property_name":   c.Query("property_name"),
		"search":          c.Query("search"),
	}

	tenants, total, err := tc.TenantRepo.GetFilteredTenants(pageSize, offset, filters)
	if err != nil {
		config.Logger.Error("Failed to fetch filtered tenants", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch tenants",
		})
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"data": tenants,
		"meta": fiber.Map{
			"current_page": page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
		},
	})
}
