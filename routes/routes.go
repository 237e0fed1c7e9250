package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	controller "leadflow/controllers"
	"leadflow/engine"
	"leadflow/middleware"
	"leadflow/store"
)

// Dependencies carries the wired engine components into route setup.
type Dependencies struct {
	Store      *store.GormStore
	Scorer     *engine.Scorer
	Progressor *engine.Progressor
	Evaluator  engine.Evaluator
	Hub        *controller.TriggerHub
	Registry   *prometheus.Registry
}

func SetupRoutes(app *fiber.App, deps Dependencies) {
	leadController := controller.NewLeadController(deps.Progressor, deps.Scorer, log.New(os.Stdout, "LEAD: ", log.LstdFlags))
	eventController := controller.NewEventController(deps.Scorer, deps.Evaluator, deps.Store, log.New(os.Stdout, "EVENT: ", log.LstdFlags))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// Tracking endpoints are hit from email clients and carry their own
	// per-message tokens, so they stay outside the protected group.
	app.Get("/track/open/:leadID/:token", eventController.HandleOpenTracking)
	app.Get("/track/click/:leadID/:token", eventController.HandleClickTracking)

	// WebSocket stream of trigger audit entries for dashboards
	app.Get("/api/v1/triggers/stream", websocket.New(deps.Hub.HandleTriggerStreamWS))

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Sequence lifecycle routes
	lead := api.Group("/leads")
	lead.Post("/:leadID/sequence", leadController.InitializeSequence)
	lead.Get("/:leadID/next-action", leadController.GetNextAction)
	lead.Post("/:leadID/complete-stage", leadController.CompleteStage)
	lead.Post("/:leadID/pause", leadController.PauseSequence)
	lead.Post("/:leadID/resume", leadController.ResumeSequence)
	lead.Post("/:leadID/terminate", leadController.TerminateSequence)

	// Engagement routes, event ingestion rate limited per lead
	lead.Post("/:leadID/events", middleware.EventRateLimiter(), eventController.TrackEvent)
	lead.Get("/:leadID/score", eventController.GetScore)
	lead.Get("/:leadID/history", eventController.GetHistory)
	lead.Post("/:leadID/score/reset", eventController.ResetScore)
	lead.Post("/:leadID/evaluate", eventController.Evaluate)
	lead.Get("/:leadID/audit", eventController.GetAudit)

	// Setup 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("API routes initialized successfully")
}
