package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"leadgen/models"
	"leadgen/store"
	"leadgen/utils"
	"leadgen/worker"
)

type SendController struct {
	Store  store.LeadStore
	Worker *worker.DispatchWorker
	Logger *log.Logger
}

func NewSendController(st store.LeadStore, dw *worker.DispatchWorker, logger *log.Logger) *SendController {
	return &SendController{
		Store:  st,
		Worker: dw,
		Logger: logger,
	}
}

// TriggerSend performs the bulk Approved -> Queued transition and makes sure
// a dispatch worker is draining the queue. Safe to call repeatedly: with no
// new Approved leads it queues nothing, and a second call while a worker is
// active is a no-op.
func (sc *SendController) TriggerSend(c *fiber.Ctx) error {
	leads, err := sc.Store.LoadAll()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load leads", err)
	}

	queued := models.QueueApproved(leads, time.Now().UTC())
	if queued > 0 {
		if err := sc.Store.SaveAll(leads); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save leads", err)
		}
	}

	started := sc.Worker.EnsureRunning()
	sc.Logger.Printf("Send triggered: %d queued, worker started=%t", queued, started)

	message := "Dispatch worker started"
	if !started {
		message = "Dispatch worker already running"
	}
	return c.JSON(fiber.Map{
		"message": message,
		"queued":  queued,
	})
}

// HandleDispatchProgressWS streams dispatch progress to the dashboard until
// the client disconnects.
func (sc *SendController) HandleDispatchProgressWS(c *websocket.Conn) {
	defer c.Close()

	ch := sc.Worker.Progress.Subscribe()
	defer sc.Worker.Progress.Unsubscribe(ch)

	for ev := range ch {
		if err := c.WriteJSON(ev); err != nil {
			sc.Logger.Printf("Error writing JSON: %v", err)
			return
		}
	}
}
