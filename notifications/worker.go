package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"tenant-onboarding-backend/config"
	"tenant-onboarding-backend/whatsapp"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// MessageSender is the outbound surface the worker needs from the WhatsApp
// client.
type MessageSender interface {
	SendTextMessage(ctx context.Context, to, body string) error
}

// NewWorkerMux registers the task handlers served by cmd/worker.
func NewWorkerMux(sender MessageSender) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSendMessage, handleSendMessage(sender))
	return mux
}

func handleSendMessage(sender MessageSender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload SendMessagePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			// A malformed payload will never succeed; skip the retries.
			return fmt.Errorf("failed to decode send-message payload: %w: %w", err, asynq.SkipRetry)
		}
		if err := sender.SendTextMessage(ctx, payload.To, payload.Body); err != nil {
			config.Logger.Warn("Outbound message delivery failed, will retry",
				zap.String("to", payload.To),
				zap.Error(err),
			)
			return err
		}
		return nil
	}
}

var _ MessageSender = (*whatsapp.Client)(nil)
