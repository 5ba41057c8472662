package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tenant-onboarding-backend/config"

	"go.uber.org/zap"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v20.0"
	maxMediaSize        = 25 << 20
	downloadRetries     = 3
)

// Client talks to the WhatsApp Business Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	accessToken   string
	phoneNumberID string
}

func NewClientFromEnv() *Client {
	baseURL := config.GetEnvDefault("WHATSAPP_API_URL", defaultGraphAPIBase)
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		baseURL:       baseURL,
		accessToken:   config.GetEnv("WHATSAPP_ACCESS_TOKEN"),
		phoneNumberID: config.GetEnv("WHATSAPP_PHONE_NUMBER_ID"),
	}
}

type textMessageRequest struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textPayload `json:"text"`
}

type textPayload struct {
	Body string `json:"body"`
}

// SendTextMessage delivers a plain text message to a phone number in E.164
// form without the leading plus.
func (c *Client) SendTextMessage(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(textMessageRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textPayload{Body: body},
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		config.Logger.Error("WhatsApp send failed",
			zap.String("to", to),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", detail),
		)
		return fmt.Errorf("whatsapp send returned status %d", resp.StatusCode)
	}
	return nil
}

type mediaURLResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia resolves a media ID to its CDN URL and fetches the bytes.
// The CDN URL is short-lived, so resolution and download happen together,
// with a bounded retry on transient failures.
func (c *Client) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	var lastErr error
	for attempt := 1; attempt <= downloadRetries; attempt++ {
		data, mimeType, err := c.downloadMediaOnce(ctx, mediaID)
		if err == nil {
			return data, mimeType, nil
		}
		lastErr = err
		config.Logger.Warn("Media download attempt failed",
			zap.String("mediaID", mediaID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return nil, "", fmt.Errorf("media download failed after %d attempts: %w", downloadRetries, lastErr)
}

func (c *Client) downloadMediaOnce(ctx context.Context, mediaID string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, mediaID), nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve media url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media url lookup returned status %d", resp.StatusCode)
	}

	var meta mediaURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, "", fmt.Errorf("failed to decode media url response: %w", err)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", err
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download media: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("media download returned status %d", dlResp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(dlResp.Body, maxMediaSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media body: %w", err)
	}
	if len(data) > maxMediaSize {
		return nil, "", fmt.Errorf("media exceeds %d byte limit", maxMediaSize)
	}
	return data, meta.MimeType, nil
}
