package controller

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"leadflow/engine"
	"leadflow/models"
	"leadflow/utils"
)

type LeadController struct {
	Progressor *engine.Progressor
	Scorer     *engine.Scorer
	Logger     *log.Logger
}

func NewLeadController(progressor *engine.Progressor, scorer *engine.Scorer, logger *log.Logger) *LeadController {
	return &LeadController{
		Progressor: progressor,
		Scorer:     scorer,
		Logger:     logger,
	}
}

type initializeSequenceRequest struct {
	CampaignID string                   `json:"campaign_id" validate:"required"`
	Stages     []models.StageDefinition `json:"stages" validate:"required,min=1,dive"`
	Metadata   map[string]string        `json:"metadata"`
}

// InitializeSequence creates a lead's sequence state from the campaign
// stage definitions.
func (lc *LeadController) InitializeSequence(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	var req initializeSequenceRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// Contact hygiene is advisory: a bad address is logged, never a
	// reason to refuse the lead.
	if email := req.Metadata["email"]; email != "" {
		if check := utils.VerifyLeadEmail(email); check.Status != "valid" {
			lc.Logger.Printf("Lead %s email check: %s (%s)", leadID, check.Status, check.Details)
		}
	}

	state, err := lc.Progressor.InitializeLeadSequence(leadID, req.CampaignID, req.Stages, req.Metadata)
	if err != nil {
		if strings.Contains(err.Error(), "already has a sequence") {
			return utils.ErrorResponse(c, fiber.StatusConflict, "Lead already initialized", err)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to initialize sequence", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(state))
}

// GetNextAction returns the next scripted action for a lead, or null
// when nothing should fire now.
func (lc *LeadController) GetNextAction(c *fiber.Ctx) error {
	leadID := c.Params("leadID")
	campaignID := c.Query("campaign_id")

	action, err := lc.Progressor.GetNextAction(leadID, campaignID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to compute next action", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"action":  action,
	})
}

type completeStageRequest struct {
	CampaignID string `json:"campaign_id"`
	Success    *bool  `json:"success" validate:"required"`
}

// CompleteStage records the outcome of a stage send attempt.
func (lc *LeadController) CompleteStage(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	var req completeStageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if err := lc.Progressor.CompleteStage(leadID, req.CampaignID, *req.Success); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to complete stage", err)
	}

	return c.JSON(fiber.Map{"message": "Stage completion recorded"})
}

// PauseSequence forces a lead's sequence to PAUSED.
func (lc *LeadController) PauseSequence(c *fiber.Ctx) error {
	leadID := c.Params("leadID")
	if err := lc.Progressor.PauseSequence(leadID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Cannot pause sequence", err)
	}
	return c.JSON(fiber.Map{"message": "Sequence paused"})
}

// ResumeSequence returns a paused lead to ACTIVE.
func (lc *LeadController) ResumeSequence(c *fiber.Ctx) error {
	leadID := c.Params("leadID")
	if err := lc.Progressor.ResumeSequence(leadID); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Cannot resume sequence", err)
	}
	return c.JSON(fiber.Map{"message": "Sequence resumed"})
}

type terminateSequenceRequest struct {
	Reason string `json:"reason"`
}

// TerminateSequence unsubscribes the lead. Terminal.
func (lc *LeadController) TerminateSequence(c *fiber.Ctx) error {
	leadID := c.Params("leadID")

	var req terminateSequenceRequest
	if err := c.BodyParser(&req); err != nil {
		req.Reason = "manual"
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	if err := lc.Progressor.TerminateSequence(leadID, req.Reason); err != nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Cannot terminate sequence", err)
	}
	return c.JSON(fiber.Map{"message": "Sequence terminated"})
}
