package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"leadflow/engine"
	"leadflow/store"
	"leadflow/utils"
)

// Transparent 1x1 GIF served by the open-tracking pixel.
var trackingPixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

type EventController struct {
	Scorer    *engine.Scorer
	Evaluator engine.Evaluator
	Store     *store.GormStore
	Logger    *log.Logger
}

func NewEventController(scorer *engine.Scorer, evaluator engine.Evaluator, st *store.GormStore, logger *log.Logger) *EventController {
	return &EventController{
		Scorer:    scorer,
		Evaluator: evaluator,
		Store:     st,
		Logger:    logger,
	}
}

type trackEventRequest struct {
	EventType string            `json:"event_type" validate:"required"`
	Metadata  map[string]string `json:"metadata"`
}

// TrackEvent ingests one engagement event for a lead. Unknown leads are
// accepted and dropped silently, matching the engine's no-op contract.
func (ec *EventController) TrackEvent(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	var req trackEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := ec.Scorer.TrackEvent(leadID, req.EventType, req.Metadata); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to track event", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"message": "Event tracked"})
}

// GetScore returns the lead's current engagement score.
func (ec *EventController) GetScore(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	score, err := ec.Scorer.GetLeadScore(leadID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get score", err)
	}

	return c.JSON(fiber.Map{
		"lead_id": leadID,
		"score":   score,
	})
}

// GetHistory returns the lead's ordered engagement history.
func (ec *EventController) GetHistory(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	history, err := ec.Scorer.GetEngagementHistory(leadID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to get history", err)
	}

	return c.JSON(utils.SuccessResponse(history))
}

// ResetScore clears the lead's score and history.
func (ec *EventController) ResetScore(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	if err := ec.Scorer.ResetLeadScore(leadID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reset score", err)
	}
	return c.JSON(fiber.Map{"message": "Score reset"})
}

// Evaluate runs the trigger rules against a lead's current state on
// demand. The engine invokes this internally after every event and stage
// change; the endpoint exists for manual re-evaluation.
func (ec *EventController) Evaluate(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	state, err := ec.Store.Load(leadID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load lead state", err)
	}
	if state == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	result := ec.Evaluator.EvaluateAndTrigger(state)
	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

// GetAudit returns the lead's trigger audit trail, newest first.
func (ec *EventController) GetAudit(c *fiber.Ctx) error {
	leadID := c.Params("leadID")
	limit := c.QueryInt("limit", 100)

	entries, err := ec.Store.ListAudit(leadID, limit)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list audit entries", err)
	}
	return c.JSON(utils.SuccessResponse(entries))
}

// HandleOpenTracking serves the pixel and records an email_open event.
func (ec *EventController) HandleOpenTracking(c *fiber.Ctx) error {
	leadID := c.Params("leadID")
	token := c.Params("token")

	if err := ec.Scorer.TrackEvent(leadID, "email_open", map[string]string{"token": token}); err != nil {
		ec.Logger.Printf("Failed to track open for lead %s: %v", leadID, err)
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	return c.Send(trackingPixelGIF)
}

// HandleClickTracking records an email_click event and redirects to the
// original destination.
func (ec *EventController) HandleClickTracking(c *fiber.Ctx) error {
	leadID := c.Params("leadID")
	token := c.Params("token")
	target := c.Query("url")

	if err := ec.Scorer.TrackEvent(leadID, "email_click", map[string]string{
		"token": token,
		"url":   target,
	}); err != nil {
		ec.Logger.Printf("Failed to track click for lead %s: %v", leadID, err)
	}

	if target == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	return c.Redirect(target, fiber.StatusFound)
}
