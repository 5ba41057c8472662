package utils

import (
	"fmt"
	"strconv"

	"tenant-onboarding-backend/config"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var mailer *gomail.Dialer

// InitializeMailer sets up the SMTP dialer from environment variables. Call
// once at startup, before any sweep runs.
func InitializeMailer() {
	mailHost := config.GetEnv("SMTP_HOST")
	mailUser := config.GetEnv("SMTP_USER")
	mailPassword := config.GetEnv("SMTP_PASSWORD")

	port, err := strconv.Atoi(config.GetEnvDefault("SMTP_PORT", "25"))
	if err != nil {
		config.Logger.Error("Invalid SMTP_PORT value, defaulting to port 25",
			zap.Error(err),
		)
		port = 25
	}

	mailer = gomail.NewDialer(mailHost, port, mailUser, mailPassword)
	config.Logger.Info("Mailer initialized successfully")
}

// SendEmail delivers a plain-text email to the given recipient.
func SendEmail(to, subject, body string) error {
	if mailer == nil {
		return fmt.Errorf("mailer not initialized")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", config.GetEnv("SMTP_FROM"))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := mailer.DialAndSend(m); err != nil {
		config.Logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
