package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"leadgen/store"
	"leadgen/tracker"
	"leadgen/utils"
)

type OpenStatusController struct {
	Store     store.LeadStore
	Freshness *tracker.FreshnessChecker
	Logger    *log.Logger
}

func NewOpenStatusController(st store.LeadStore, fc *tracker.FreshnessChecker, logger *log.Logger) *OpenStatusController {
	return &OpenStatusController{
		Store:     st,
		Freshness: fc,
		Logger:    logger,
	}
}

// GetOpenStatuses reports the open state of sent leads, pulling from the
// provider only for leads whose cached state has gone stale. An empty or
// missing body means every sent lead.
func (oc *OpenStatusController) GetOpenStatuses(c *fiber.Ctx) error {
	var input struct {
		PlaceIDs []string `json:"place_ids"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
		}
	}

	leads, err := oc.Store.LoadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}

	statuses, changed := oc.Freshness.Refresh(leads, input.PlaceIDs, time.Now().UTC())
	if changed {
		if err := oc.Store.SaveAll(leads); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save leads", err)
		}
	}

	oc.Logger.Printf("Open status check: %d leads reported, changed=%t", len(statuses), changed)
	return c.JSON(fiber.Map{"statuses": statuses})
}
