package notifications

import (
	"context"

	"tenant-onboarding-backend/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Notifier sends outbound WhatsApp messages that are not direct replies to
// an inbound webhook, such as the guarantor introduction and the
// everyone-finished message to the tenant. These go through the task queue
// so webhook handling never blocks on an outbound API call.
type Notifier interface {
	NotifyAsync(ctx context.Context, to, body string) error
}

type asynqNotifier struct {
	client *asynq.Client
}

func NewAsynqNotifier(client *asynq.Client) Notifier {
	return &asynqNotifier{client: client}
}

func (n *asynqNotifier) NotifyAsync(ctx context.Context, to, body string) error {
	task, err := NewSendMessageTask(to, body)
	if err != nil {
		return err
	}
	info, err := n.client.EnqueueContext(ctx, task)
	if err != nil {
		config.Logger.Error("Failed to enqueue outbound message", zap.String("to", to), zap.Error(err))
		return err
	}
	config.Logger.Info("Queued outbound message",
		zap.String("to", to),
		zap.String("taskID", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}
