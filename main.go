package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"leadflow/config"
	controller "leadflow/controllers"
	"leadflow/content"
	"leadflow/engine"
	"leadflow/integrations"
	"leadflow/messaging"
	"leadflow/metrics"
	"leadflow/middleware"
	"leadflow/routes"
	"leadflow/store"
	"leadflow/worker"
)

func main() {
	logger := log.New(os.Stdout, "LEADFLOW: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	engineLogger := logrus.New()
	engineLogger.SetFormatter(&logrus.JSONFormatter{})

	// Wire the engine
	gormStore := store.NewGormStore(config.DB)
	renderer := content.NewTemplateRenderer(engineLogger)
	messenger := messaging.NewPersonalMessenger(messaging.Config{
		ProviderBaseURL: config.AppConfig.Twilio.BaseURL,
		AccountSID:      config.AppConfig.Twilio.AccountSID,
		AuthToken:       config.AppConfig.Twilio.AuthToken,
		SMSFrom:         config.AppConfig.Twilio.SMSFrom,
		WhatsAppFrom:    config.AppConfig.Twilio.WhatsAppFrom,
		SMTPHost:        config.AppConfig.SMTPHost,
		SMTPPort:        config.AppConfig.SMTPPort,
		SMTPUsername:    config.AppConfig.SMTPUsername,
		SMTPPassword:    config.AppConfig.SMTPPassword,
		FromEmail:       config.AppConfig.FromEmail,
	}, log.New(os.Stdout, "MESSENGER: ", log.LstdFlags))

	registry := prometheus.NewRegistry()
	promMetrics := metrics.NewPromMetrics(registry)

	evaluator := engine.NewTriggerEvaluator(gormStore, messenger, renderer, promMetrics, engineLogger)
	scorer := engine.NewScorer(gormStore, evaluator, promMetrics, engineLogger)
	progressor := engine.NewProgressor(gormStore, gormStore, renderer, scorer, evaluator, promMetrics, engineLogger)

	hub := controller.NewTriggerHub(log.New(os.Stdout, "TRIGGER-WS: ", log.LstdFlags))
	evaluator.SetNotify(hub.Broadcast)

	crmClient := integrations.NewCRMClient(integrations.Config{
		WebhookURL:  config.AppConfig.CRM.WebhookURL,
		APIKey:      config.AppConfig.CRM.APIKey,
		Destination: config.AppConfig.CRM.Destination,
	}, log.New(os.Stdout, "CRM: ", log.LstdFlags))
	if crmClient.Enabled() {
		scorer.SetCRMHandoff(crmClient)
		progressor.SetCRMHandoff(crmClient)
	}

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	// Start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sequenceWorker := worker.NewSequenceWorker(gormStore, progressor, scorer, messenger, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags))
	go sequenceWorker.Start(ctx)

	replyWorker := worker.NewReplyWorker(gormStore, scorer, log.New(os.Stdout, "REPLY: ", log.LstdFlags))
	go replyWorker.Start(ctx)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Setup routes (registers the trailing 404 handler, keep it last)
	routes.SetupRoutes(app, routes.Dependencies{
		Store:      gormStore,
		Scorer:     scorer,
		Progressor: progressor,
		Evaluator:  evaluator,
		Hub:        hub,
		Registry:   registry,
	})

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
