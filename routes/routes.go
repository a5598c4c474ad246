package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	controller "leadgen/controllers"
	"leadgen/middleware"
	"leadgen/store"
	"leadgen/tracker"
	"leadgen/utils"
	"leadgen/worker"
)

// Deps carries the shared collaborators the route handlers are built from.
type Deps struct {
	Store      store.LeadStore
	Worker     *worker.DispatchWorker
	Correlator *tracker.Correlator
	Freshness  *tracker.FreshnessChecker
	Generator  *utils.LeadGenerator
}

func SetupRoutes(app *fiber.App, deps Deps) {
	leadLogger := log.New(os.Stdout, "LEAD: ", log.LstdFlags)
	sendLogger := log.New(os.Stdout, "SEND: ", log.LstdFlags)
	webhookLogger := log.New(os.Stdout, "WEBHOOK: ", log.LstdFlags)
	openLogger := log.New(os.Stdout, "OPEN-STATUS: ", log.LstdFlags)
	generateLogger := log.New(os.Stdout, "GENERATE: ", log.LstdFlags)

	leadController := controller.NewLeadController(deps.Store, leadLogger)
	sendController := controller.NewSendController(deps.Store, deps.Worker, sendLogger)
	webhookController := controller.NewWebhookController(deps.Store, deps.Correlator, webhookLogger)
	openStatusController := controller.NewOpenStatusController(deps.Store, deps.Freshness, openLogger)
	generateController := controller.NewGenerateController(deps.Store, deps.Generator, generateLogger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Brevo pushes events here; provider callbacks cannot carry dashboard
	// credentials, so these stay outside BasicAuth.
	app.Post("/brevo/webhook", webhookController.HandleBrevoWebhook)
	app.Get("/brevo/webhook", webhookController.HandleBrevoWebhookCheck)

	dashboard := app.Group("/", middleware.BasicAuth())
	dashboard.Get("/leads", leadController.GetLeads)
	dashboard.Patch("/leads/:placeId/status", leadController.UpdateLeadStatus)
	dashboard.Delete("/leads/:placeId", leadController.DeleteLead)
	dashboard.Post("/leads/open-status", openStatusController.GetOpenStatuses)
	dashboard.Post("/send", middleware.SendRateLimiter(), sendController.TriggerSend)
	dashboard.Post("/generate", middleware.SendRateLimiter(), generateController.GenerateLeads)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/dispatch", websocket.New(sendController.HandleDispatchProgressWS))

	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Route not found", nil)
	})
}
