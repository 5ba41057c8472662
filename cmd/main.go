package main

import (
	"context"

	config "tenant-onboarding-backend/config"
	"tenant-onboarding-backend/middleware"
	"tenant-onboarding-backend/utils"

	// Repositories
	conversation_repositories "tenant-onboarding-backend/conversation/repositories"
	guarantors_repositories "tenant-onboarding-backend/guarantors/repositories"
	tenants_repositories "tenant-onboarding-backend/tenants/repositories"

	// Services
	conversation_services "tenant-onboarding-backend/conversation/services"
	document_services "tenant-onboarding-backend/documents/services"
	internal_services "tenant-onboarding-backend/internal/services"
	tenant_services "tenant-onboarding-backend/tenants/services"

	// Routes
	conversation_routes "tenant-onboarding-backend/conversation/routes"
	tenant_routes "tenant-onboarding-backend/tenants/routes"

	"tenant-onboarding-backend/notifications"
	"tenant-onboarding-backend/websocket"
	"tenant-onboarding-backend/whatsapp"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

func main() {
	// Initialize Zap logger
	config.InitLogger()

	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		config.Logger.Warn("No .env file loaded", zap.Error(err))
	}

	app := fiber.New()

	// Apply CORS middleware from middleware package
	middleware.InitCors(app)

	// Initialize database and configs
	db := config.ConfigureDatabase()
	port := config.GetEnvDefault("PORT", "8080")
	ctx := context.Background()

	// Redis backs conversation state, webhook dedup and the task queue
	redisClient := config.InitRedisServer(ctx)

	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     config.GetEnvDefault("REDIS_ADDRESS", "localhost:6379"),
		Password: config.GetEnv("REDIS_PASSWORD"),
		DB:       0,
	}
	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	// Initialize the mailer for back-office alerts
	utils.InitializeMailer()

	// External collaborators
	geminiService, err := internal_services.NewGeminiService(config.GetGeminiAPIKey())
	if err != nil {
		config.Logger.Fatal("Cannot create Gemini service", zap.Error(err))
	}
	validationGateway := internal_services.NewGeminiValidationGateway(geminiService)

	whatsappClient := whatsapp.NewClientFromEnv()
	notifier := notifications.NewAsynqNotifier(asynqClient)

	// WebSocket hub for the admin live onboarding feed
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Serve stored documents for the back office
	app.Static("/uploads", "./uploads")

	// Repositories
	tenantRepo := tenants_repositories.NewTenantRepository(db)
	guarantorRepo := guarantors_repositories.NewGuarantorRepository(db)
	conversationRepo := conversation_repositories.NewConversationRepository(redisClient)

	// Services
	fileStorage := utils.NewLocalFileStorage("./uploads")
	documentStore := document_services.NewDocumentStorageService(fileStorage)
	completionService := conversation_services.NewCompletionService(tenantRepo, guarantorRepo, conversationRepo, notifier)
	tenantFlow := conversation_services.NewTenantFlowService(tenantRepo, guarantorRepo, conversationRepo, validationGateway, documentStore, notifier)
	guarantorFlow := conversation_services.NewGuarantorFlowService(guarantorRepo, validationGateway, documentStore, completionService)
	sessionManager := conversation_services.NewSessionManager(
		conversationRepo, tenantRepo, guarantorRepo,
		tenantFlow, guarantorFlow, wsHub,
		conversation_services.DefaultConversationTimeout,
	)

	// Routes
	conversation_routes.WebhookInitRoutes(app, sessionManager, conversationRepo, whatsappClient)
	tenant_routes.TenantInitRoutes(app, tenantRepo)

	// ------ WebSocket Route for the live onboarding feed ------
	app.Use("/ws", websocket.UpgradeMiddleware)
	app.Get("/ws", websocket.Handler(wsHub))
	config.Logger.Info("WebSocket endpoint registered at /ws")

	// Hourly sweep for conversations that went silent
	cronRunner := cron.New()
	stuckSweep := tenant_services.NewStuckSweepService(tenantRepo)
	if err := stuckSweep.Schedule(cronRunner); err != nil {
		config.Logger.Fatal("Cannot schedule stuck sweep", zap.Error(err))
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	config.Logger.Info("Starting server", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		config.Logger.Fatal("Server stopped", zap.Error(err))
	}
}
