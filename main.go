package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"

	"crmpanel/config"
	controller "crmpanel/controllers"
	"crmpanel/middleware"
	"crmpanel/models"
	"crmpanel/routes"
	"crmpanel/utils"
	"crmpanel/worker"
)

func main() {
	// Initialize logger
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting is optional; it activates when a DSN is configured
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Provision the initial Super Admin account when configured
	if config.AppConfig.SeedAdminEmail != "" {
		passwordHash, err := utils.HashPassword(config.AppConfig.SeedAdminPassword)
		if err != nil {
			logger.Fatalf("Failed to hash seed admin password: %v", err)
		}
		if err := models.SeedSuperAdminUser(config.DB, config.AppConfig.SeedAdminEmail, passwordHash); err != nil {
			logger.Fatalf("Failed to seed admin user: %v", err)
		}
	}

	// Create Fiber app
	app := fiber.New()

	// Add CORS middleware
	app.Use(middleware.CORS())

	// Background workers share one cancellation context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	webhookWorker := worker.NewWebhookWorker(config.DB, log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags))
	go webhookWorker.Start(ctx)

	retentionWorker := worker.NewRetentionWorker(config.DB, log.New(os.Stdout, "RETENTION: ", log.LstdFlags))
	go retentionWorker.Start(ctx)

	// Health check endpoint, registered before the catch-all 404
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Setup routes
	hub := controller.NewLeadHub()
	routes.SetupRoutes(app, config.DB, hub)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
