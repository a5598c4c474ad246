package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"leadgen/store"
	"leadgen/tracker"
	"leadgen/utils"
)

type WebhookController struct {
	Store      store.LeadStore
	Correlator *tracker.Correlator
	Logger     *log.Logger
}

func NewWebhookController(st store.LeadStore, cor *tracker.Correlator, logger *log.Logger) *WebhookController {
	return &WebhookController{
		Store:      st,
		Correlator: cor,
		Logger:     logger,
	}
}

// HandleBrevoWebhook ingests delivery events pushed by Brevo. The provider
// sends either a single event object or an array of them depending on the
// webhook configuration, so both shapes are accepted. The endpoint always
// answers 200: a non-2xx response makes Brevo retry and eventually disable
// the webhook.
func (wc *WebhookController) HandleBrevoWebhook(c *fiber.Ctx) error {
	events := parseWebhookBody(c.Body())
	if len(events) == 0 {
		wc.Logger.Printf("Webhook payload had no parseable events (%d bytes)", len(c.Body()))
		return c.JSON(fiber.Map{"received": 0, "matched": 0})
	}

	leads, err := wc.Store.LoadAll()
	if err != nil {
		utils.LogError("webhook_load_failure", err, map[string]interface{}{
			"events": len(events),
		})
		return c.JSON(fiber.Map{"received": len(events), "matched": 0})
	}

	matched, changed := wc.Correlator.ProcessBatch(leads, events, time.Now().UTC())
	if changed {
		if err := wc.Store.SaveAll(leads); err != nil {
			utils.LogError("webhook_save_failure", err, map[string]interface{}{
				"events":  len(events),
				"matched": matched,
			})
		}
	}

	wc.Logger.Printf("Webhook processed: %d received, %d matched, changed=%t", len(events), matched, changed)
	return c.JSON(fiber.Map{
		"received": len(events),
		"matched":  matched,
	})
}

// HandleBrevoWebhookCheck answers Brevo's reachability probe.
func (wc *WebhookController) HandleBrevoWebhookCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func parseWebhookBody(body []byte) []tracker.Event {
	var batch []tracker.Event
	if err := json.Unmarshal(body, &batch); err == nil {
		return batch
	}
	var single tracker.Event
	if err := json.Unmarshal(body, &single); err == nil && single.Event != "" {
		return []tracker.Event{single}
	}
	return nil
}
