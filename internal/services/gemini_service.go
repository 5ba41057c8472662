package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"tenant-onboarding-backend/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

type GeminiService struct {
	client      *genai.Client
	cache       map[string]*CachedResponse
	cacheMutex  sync.RWMutex
	rateLimiter *rate.Limiter
}

type CachedResponse struct {
	Data      string
	ExpiresAt time.Time
}

type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func NewGeminiService(apiKey string) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	service := &GeminiService{
		client:      client,
		cache:       make(map[string]*CachedResponse),
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 15), // 15 requests per minute
	}

	// Start background cache cleanup
	service.StartCacheCleanup()

	return service, nil
}

// GenerateContentWithRetry sends a text prompt, retrying transient failures
// with exponential backoff. Identical prompts within the cache window reuse
// the previous answer, which matters for the occupation classification
// prompts that repeat per document slot.
func (g *GeminiService) GenerateContentWithRetry(ctx context.Context, prompt string, cfg *RetryConfig) (string, error) {
	if cfg == nil {
		cfg = &RetryConfig{
			MaxRetries:    3,
			InitialDelay:  time.Second,
			MaxDelay:      time.Minute,
			BackoffFactor: 2.0,
		}
	}

	// Check cache first
	if cached := g.getFromCache(prompt); cached != "" {
		return cached, nil
	}

	// Rate limit check
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := g.generateContent(ctx, prompt)
		if err == nil {
			g.cacheResponse(prompt, result)
			return result, nil
		}

		lastErr = err

		if !g.isRetryableError(err) {
			break
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

func (g *GeminiService) generateContent(ctx context.Context, prompt string) (string, error) {
	parts := []*genai.Part{
		{Text: prompt},
	}
	contents := []*genai.Content{
		{Parts: parts},
	}

	startTime := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		config.Logger.Error("Gemini API request failed",
			zap.String("type", "text"),
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)),
		)
		return "", err
	}

	responseText := resp.Text()

	config.Logger.Info("Received response from Gemini",
		zap.String("type", "text"),
		zap.Int("promptLength", len(prompt)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return responseText, nil
}

// ProcessDocumentWithPrompt sends a multimodal request: textual instructions
// plus the raw uploaded file. Used for document extraction and validation.
func (g *GeminiService) ProcessDocumentWithPrompt(ctx context.Context, fileBytes []byte, mimeType string, prompt string) (string, error) {
	if err := g.rateLimiter.Wait(ctx); err != nil {
		config.Logger.Error("Rate limit exceeded",
			zap.String("type", "document"),
			zap.String("mimeType", mimeType),
			zap.Error(err),
		)
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}

	config.Logger.Info("Processing document with Gemini",
		zap.String("type", "document"),
		zap.String("mimeType", mimeType),
		zap.Int("fileSize", len(fileBytes)),
	)

	parts := []*genai.Part{
		{Text: prompt},
		{InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     fileBytes,
		}},
	}

	contents := []*genai.Content{
		{Parts: parts},
	}

	resp, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, nil)
	if err != nil {
		config.Logger.Error("Gemini API request failed",
			zap.String("type", "document"),
			zap.String("mimeType", mimeType),
			zap.Error(err),
		)
		return "", err
	}

	return resp.Text(), nil
}

func (g *GeminiService) isRetryableError(err error) bool {
	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"rate limit",
		"quota exceeded",
		"temporary",
		"timeout",
		"connection",
		"503",
		"429",
		"internal error",
		"service unavailable",
	}

	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

func (g *GeminiService) getFromCache(prompt string) string {
	key := g.generateCacheKey(prompt)

	g.cacheMutex.RLock()
	defer g.cacheMutex.RUnlock()

	if cached, exists := g.cache[key]; exists {
		if time.Now().Before(cached.ExpiresAt) {
			return cached.Data
		}
	}
	return ""
}

func (g *GeminiService) cacheResponse(prompt, response string) {
	key := g.generateCacheKey(prompt)

	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()

	g.cache[key] = &CachedResponse{
		Data:      response,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
}

func (g *GeminiService) generateCacheKey(prompt string) string {
	hash := md5.Sum([]byte(prompt))
	return hex.EncodeToString(hash[:])
}

func (g *GeminiService) StartCacheCleanup() {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			g.cleanupExpiredCache()
		}
	}()
}

func (g *GeminiService) cleanupExpiredCache() {
	g.cacheMutex.Lock()
	defer g.cacheMutex.Unlock()

	now := time.Now()
	for key, cached := range g.cache {
		if now.After(cached.ExpiresAt) {
			delete(g.cache, key)
		}
	}
}
