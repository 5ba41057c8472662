package main

import (
	config "tenant-onboarding-backend/config"
	"tenant-onboarding-backend/notifications"
	"tenant-onboarding-backend/whatsapp"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// The worker drains the outbound message queue so webhook handling never
// blocks on WhatsApp API calls.
func main() {
	config.InitLogger()

	if err := godotenv.Load(".env"); err != nil {
		config.Logger.Warn("No .env file loaded", zap.Error(err))
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     config.GetEnvDefault("REDIS_ADDRESS", "localhost:6379"),
		Password: config.GetEnv("REDIS_PASSWORD"),
		DB:       0,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
	})

	whatsappClient := whatsapp.NewClientFromEnv()
	mux := notifications.NewWorkerMux(whatsappClient)

	config.Logger.Info("Starting notification worker")
	if err := server.Run(mux); err != nil {
		config.Logger.Fatal("Worker stopped", zap.Error(err))
	}
}
