package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Inbound message kinds the engine reacts to. Anything else (reactions,
// stickers, location) is ignored upstream.
type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageDocument MessageKind = "document"
)

// InboundMessage is the flattened form of one message from a webhook
// delivery.
type InboundMessage struct {
	MessageID string
	From      string
	Kind      MessageKind
	Text      string
	MediaID   string
	MimeType  string
	Filename  string
	Timestamp time.Time
}

// webhookPayload mirrors the Cloud API webhook envelope.
type webhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Messages []struct {
					ID        string `json:"id"`
					From      string `json:"from"`
					Timestamp string `json:"timestamp"`
					Type      string `json:"type"`
					Text      *struct {
						Body string `json:"body"`
					} `json:"text"`
					Image    *mediaRef `json:"image"`
					Document *mediaRef `json:"document"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type mediaRef struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

// ParseWebhookPayload extracts the user messages from a webhook body.
// Status-only deliveries yield an empty slice, not an error.
func ParseWebhookPayload(body []byte) ([]InboundMessage, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}
	if payload.Object != "whatsapp_business_account" {
		return nil, fmt.Errorf("unexpected webhook object %q", payload.Object)
	}

	var messages []InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, m := range change.Value.Messages {
				inbound := InboundMessage{
					MessageID: m.ID,
					From:      m.From,
					Timestamp: parseUnixTimestamp(m.Timestamp),
				}
				switch m.Type {
				case "text":
					if m.Text == nil {
						continue
					}
					inbound.Kind = MessageText
					inbound.Text = m.Text.Body
				case "image":
					if m.Image == nil {
						continue
					}
					inbound.Kind = MessageImage
					inbound.MediaID = m.Image.ID
					inbound.MimeType = m.Image.MimeType
					inbound.Text = m.Image.Caption
				case "document":
					if m.Document == nil {
						continue
					}
					inbound.Kind = MessageDocument
					inbound.MediaID = m.Document.ID
					inbound.MimeType = m.Document.MimeType
					inbound.Filename = m.Document.Filename
					inbound.Text = m.Document.Caption
				default:
					continue
				}
				messages = append(messages, inbound)
			}
		}
	}
	return messages, nil
}

func parseUnixTimestamp(s string) time.Time {
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// VerifySignature checks the X-Hub-Signature-256 header against the raw
// body using the app secret. Constant-time comparison.
func VerifySignature(appSecret string, body []byte, signatureHeader string) bool {
	expected := strings.TrimPrefix(signatureHeader, "sha256=")
	if expected == "" || appSecret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(expected))
}
