package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"leadgen/store"
	"leadgen/utils"
)

type GenerateController struct {
	Store     store.LeadStore
	Generator *utils.LeadGenerator
	Logger    *log.Logger
}

func NewGenerateController(st store.LeadStore, gen *utils.LeadGenerator, logger *log.Logger) *GenerateController {
	return &GenerateController{
		Store:     st,
		Generator: gen,
		Logger:    logger,
	}
}

// GenerateLeads researches new prospects from a list of niche instructions
// and appends them to the feed as Drafted leads. Instructions that fail
// validation are skipped; the request fails only when none survive.
func (gc *GenerateController) GenerateLeads(c *fiber.Ctx) error {
	if gc.Generator == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Lead generation is not configured", nil)
	}

	var input []utils.Instruction
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	valid := make([]utils.Instruction, 0, len(input))
	for _, inst := range input {
		if err := utils.ValidateStruct(inst); err != nil {
			gc.Logger.Printf("Skipping invalid instruction %q: %v", inst.Niche, err)
			continue
		}
		valid = append(valid, inst)
	}
	if len(valid) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No valid instructions provided", nil)
	}

	leads, err := gc.Store.LoadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}

	generated := gc.Generator.Generate(valid, leads)
	if len(generated) == 0 {
		return c.JSON(fiber.Map{"message": "No new leads were generated", "count": 0})
	}

	leads = append(leads, generated...)
	if err := gc.Store.SaveAll(leads); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save leads", err)
	}

	gc.Logger.Printf("Generated %d new leads from %d instructions", len(generated), len(valid))
	return c.JSON(fiber.Map{
		"message": "Generated leads",
		"count":   len(generated),
	})
}
