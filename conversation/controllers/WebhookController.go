package controllers

import (
	"context"

	"tenant-onboarding-backend/config"
	convrepos "tenant-onboarding-backend/conversation/repositories"
	convservices "tenant-onboarding-backend/conversation/services"
	"tenant-onboarding-backend/whatsapp"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// WhatsAppGateway is the outbound surface the webhook path needs.
type WhatsAppGateway interface {
	SendTextMessage(ctx context.Context, to, body string) error
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

type WebhookController struct {
	SessionManager *convservices.SessionManager
	Conversations  convrepos.ConversationRepository
	WhatsApp       WhatsAppGateway
	VerifyToken    string
	AppSecret      string
}

// VerifyWebhookController answers Meta's subscription handshake.
func (wc *WebhookController) VerifyWebhookController(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == wc.VerifyToken {
		return c.Status(fiber.StatusOK).SendString(challenge)
	}
	config.Logger.Warn("Webhook verification rejected", zap.String("mode", mode))
	return c.SendStatus(fiber.StatusForbidden)
}

// ReceiveWebhookController handles inbound message deliveries. It always
// acknowledges with 200 once the signature checks out; processing failures
// are logged, not returned, so Meta doesn't hammer us with redeliveries.
func (wc *WebhookController) ReceiveWebhookController(c *fiber.Ctx) error {
	body := c.Body()
	if !whatsapp.VerifySignature(wc.AppSecret, body, c.Get("X-Hub-Signature-256")) {
		config.Logger.Warn("Webhook signature verification failed")
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	messages, err := whatsapp.ParseWebhookPayload(body)
	if err != nil {
		config.Logger.Error("Failed to parse webhook payload", zap.Error(err))
		return c.SendStatus(fiber.StatusOK)
	}

	ctx := c.UserContext()
	for _, inbound := range messages {
		wc.processMessage(ctx, inbound)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (wc *WebhookController) processMessage(ctx context.Context, inbound whatsapp.InboundMessage) {
	first, err := wc.Conversations.MarkMessageSeen(ctx, inbound.MessageID)
	if err != nil {
		config.Logger.Error("Message dedup check failed", zap.String("messageID", inbound.MessageID), zap.Error(err))
		// Continue; double-processing is guarded by the state machine.
	} else if !first {
		config.Logger.Info("Skipping duplicate webhook delivery", zap.String("messageID", inbound.MessageID))
		return
	}

	msg := convservices.Message{
		Phone: inbound.From,
		Text:  inbound.Text,
	}
	if inbound.Kind == whatsapp.MessageImage || inbound.Kind == whatsapp.MessageDocument {
		data, mimeType, err := wc.WhatsApp.DownloadMedia(ctx, inbound.MediaID)
		if err != nil {
			config.Logger.Error("Media download failed",
				zap.String("messageID", inbound.MessageID),
				zap.String("mediaID", inbound.MediaID),
				zap.Error(err),
			)
			// Process as text-less message; the flow will re-request the
			// document.
		} else {
			msg.HasMedia = true
			msg.MediaBytes = data
			msg.MimeType = mimeType
		}
	}

	reply, err := wc.SessionManager.HandleMessage(ctx, msg)
	if err != nil {
		config.Logger.Error("Message handling failed",
			zap.String("messageID", inbound.MessageID),
			zap.String("from", inbound.From),
			zap.Error(err),
		)
	}
	if reply == "" {
		return
	}
	if err := wc.WhatsApp.SendTextMessage(ctx, msg.Phone, reply); err != nil {
		config.Logger.Error("Failed to send reply",
			zap.String("to", msg.Phone),
			zap.Error(err),
		)
	}
}
