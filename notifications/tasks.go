package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeSendMessage = "whatsapp:send_message"
)

// SendMessagePayload is the queued form of an outbound WhatsApp message.
type SendMessagePayload struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func NewSendMessageTask(to, body string) (*asynq.Task, error) {
	payload, err := json.Marshal(SendMessagePayload{To: to, Body: body})
	if err != nil {
		return nil, fmt.Errorf("failed to encode send-message payload: %w", err)
	}
	return asynq.NewTask(TypeSendMessage, payload, asynq.MaxRetry(5)), nil
}
