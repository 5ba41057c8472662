package routes

import (
	"tenant-onboarding-backend/config"
	controllers "tenant-onboarding-backend/conversation/controllers"
	convrepos "tenant-onboarding-backend/conversation/repositories"
	convservices "tenant-onboarding-backend/conversation/services"

	"github.com/gofiber/fiber/v2"
)

func WebhookInitRoutes(
	app *fiber.App,
	sessionManager *convservices.SessionManager,
	conversations convrepos.ConversationRepository,
	gateway controllers.WhatsAppGateway,
) {
	webhookController := &controllers.WebhookController{
		SessionManager: sessionManager,
		Conversations:  conversations,
		WhatsApp:       gateway,
		VerifyToken:    config.GetEnv("WHATSAPP_VERIFY_TOKEN"),
		AppSecret:      config.GetEnv("WHATSAPP_APP_SECRET"),
	}

	app.Get("/webhook/whatsapp", webhookController.VerifyWebhookController)
	app.Post("/webhook/whatsapp", webhookController.ReceiveWebhookController)
}
