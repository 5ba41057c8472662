package routes

import (
	controllers "tenant-onboarding-backend/tenants/controllers"
	"tenant-onboarding-backend/tenants/repositories"

	"github.com/gofiber/fiber/v2"
)

func TenantInitRoutes(
	app *fiber.App,
	tenantRepo repositories.TenantRepository,
) {
	tenantController := &controllers.TenantController{
		TenantRepo: tenantRepo,
	}

	// Create API v1 group
	api := app.Group("/api/v1")

	api.Post("/tenants", tenantController.CreateTenantController)
	api.Get("/tenants/filtered", tenantController.GetFilteredTenantsController)
	api.Get("/tenants/:id", tenantController.GetTenantController)
}
