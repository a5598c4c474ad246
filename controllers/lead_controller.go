package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"leadgen/models"
	"leadgen/store"
	"leadgen/utils"
)

type LeadController struct {
	Store  store.LeadStore
	Logger *log.Logger
}

func NewLeadController(st store.LeadStore, logger *log.Logger) *LeadController {
	return &LeadController{
		Store:  st,
		Logger: logger,
	}
}

// GetLeads returns the full feed the dashboard renders.
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	leads, err := lc.Store.LoadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}
	return c.JSON(leads)
}

// UpdateLeadStatus applies a direct status update to one lead. Only the four
// lifecycle values are accepted.
func (lc *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	placeID := c.Params("placeId")

	var input struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if !models.ValidStatus(input.Status) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status", models.ErrInvalidStatus)
	}

	leads, err := lc.Store.LoadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}

	for i := range leads {
		if leads[i].PlaceID != placeID {
			continue
		}
		if err := leads[i].SetStatus(input.Status); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid status", err)
		}
		if err := lc.Store.SaveAll(leads); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save leads", err)
		}
		lc.Logger.Printf("Lead %s status set to %s", placeID, input.Status)
		return c.JSON(utils.SuccessResponse(leads[i]))
	}

	return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
}

// DeleteLead removes one lead by place id and reports the remaining count.
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	placeID := c.Params("placeId")

	leads, err := lc.Store.LoadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}

	remaining := make([]models.Lead, 0, len(leads))
	found := false
	for _, lead := range leads {
		if lead.PlaceID == placeID {
			found = true
			continue
		}
		remaining = append(remaining, lead)
	}
	if !found {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	if err := lc.Store.SaveAll(remaining); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save leads", err)
	}
	lc.Logger.Printf("Lead %s deleted (%d remaining)", placeID, len(remaining))

	return c.JSON(fiber.Map{
		"message":   "Lead deleted",
		"remaining": len(remaining),
	})
}
