package controllers

import (
	"time"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/db/models"
	"tenant-onboarding-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type createTenantRequest struct {
	FullName          string `json:"full_name"`
	PhoneNumber       string `json:"phone_number"`
	PropertyName      string `json:"property_name"`
	ApartmentNumber   string `json:"apartment_number"`
	NumberOfRooms     int    `json:"number_of_rooms"`
	MonthlyRentAmount string `json:"monthly_rent_amount"`
	MoveInDate        string `json:"move_in_date"` // YYYY-MM-DD
}

// CreateTenantController pre-provisions a tenant before their first WhatsApp
// contact, so the greeting can present the lease facts for confirmation.
func (tc *TenantController) CreateTenantController(c *fiber.Ctx) error {
	var req createTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.FullName == "" || req.PhoneNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "full_name and phone_number are required",
		})
	}

	phone := utils.NormalizePhoneNumber(req.PhoneNumber)
	if existing, err := tc.TenantRepo.GetTenantByPhone(phone); err != nil {
		config.Logger.Error("Tenant lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create tenant",
		})
	} else if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A tenant with this phone number already exists",
		})
	}

	tenant := &models.Tenant{
		FullName:        req.FullName,
		PhoneNumber:     phone,
		PropertyName:    req.PropertyName,
		ApartmentNumber: req.ApartmentNumber,
		NumberOfRooms:   req.NumberOfRooms,
		WhatsAppStatus:  models.WhatsAppNotStarted,
	}

	if req.MonthlyRentAmount != "" {
		rent, err := decimal.NewFromString(req.MonthlyRentAmount)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid monthly_rent_amount",
			})
		}
		tenant.MonthlyRentAmount = rent
	}
	if req.MoveInDate != "" {
		moveIn, err := time.Parse("2006-01-02", req.MoveInDate)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid move_in_date, expected YYYY-MM-DD",
			})
		}
		tenant.MoveInDate = &moveIn
	}

	created, err := tc.TenantRepo.CreateTenant(tenant)
	if err != nil {
		config.Logger.Error("Failed to create tenant", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create tenant",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": created})
}
