package worker

import (
	"log"
	"sync"
	"time"

	"leadgen/models"
	"leadgen/store"
	"leadgen/utils"
)

// Dispatcher submits one lead's email to the external mail provider and
// returns the provider message id when the provider assigns one.
type Dispatcher interface {
	Send(lead models.Lead) (string, error)
}

// DispatchWorker drains the queue of leads ready to send. At most one worker
// task exists at any time; EnsureRunning is the only way to start one and is
// safe to call repeatedly. The worker terminates when it observes an empty
// eligible set rather than idle-polling.
type DispatchWorker struct {
	Store    store.LeadStore
	Mailer   Dispatcher
	Logger   *log.Logger
	Pacing   time.Duration
	Progress *ProgressHub

	mu      sync.Mutex
	running bool
}

func NewDispatchWorker(st store.LeadStore, mailer Dispatcher, logger *log.Logger, pacing time.Duration) *DispatchWorker {
	return &DispatchWorker{
		Store:    st,
		Mailer:   mailer,
		Logger:   logger,
		Pacing:   pacing,
		Progress: NewProgressHub(),
	}
}

// EnsureRunning starts a worker task unless one is already active. Returns
// true when a new task was started.
func (dw *DispatchWorker) EnsureRunning() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	if dw.running {
		return false
	}
	dw.running = true
	go dw.drain()
	return true
}

// Running reports whether a worker task is currently active.
func (dw *DispatchWorker) Running() bool {
	dw.mu.Lock()
	defer dw.mu.Unlock()
	return dw.running
}

func (dw *DispatchWorker) drain() {
	defer func() {
		dw.mu.Lock()
		dw.running = false
		dw.mu.Unlock()
		dw.Progress.Publish(ProgressEvent{Stage: StageDrained})
	}()

	dw.Logger.Println("Dispatch worker started")
	sent, failed := 0, 0

	// Re-read the snapshot after every pass so leads queued mid-run are
	// picked up before the worker exits.
	for {
		leads, err := dw.Store.LoadAll()
		if err != nil {
			dw.Logger.Printf("Failed to load leads, stopping worker: %v", err)
			return
		}

		var eligible []int
		for i := range leads {
			if leads[i].Eligible() {
				eligible = append(eligible, i)
			}
		}
		if len(eligible) == 0 {
			dw.Logger.Printf("Dispatch queue drained (%d sent, %d failed)", sent, failed)
			return
		}

		progressed := false
		for n, i := range eligible {
			lead := &leads[i]

			messageID, err := dw.Mailer.Send(*lead)
			if err != nil {
				// Leave the lead Queued without SentAt; a future worker run
				// retries it.
				failed++
				dw.Logger.Printf("Failed to send to %s (%s): %v", lead.Email, lead.PlaceID, err)
				utils.LogError("dispatch_failure", err, map[string]interface{}{
					"place_id": lead.PlaceID,
					"email":    lead.Email,
				})
				dw.Progress.Publish(ProgressEvent{
					Stage:   StageFailed,
					PlaceID: lead.PlaceID,
					Email:   lead.Email,
					Error:   err.Error(),
					Sent:    sent,
					Failed:  failed,
					Pending: len(eligible) - n - 1,
				})
			} else {
				lead.MarkSent(messageID, time.Now().UTC())
				sent++
				progressed = true
				// Persist immediately so a mid-run crash leaves already-sent
				// leads correctly marked.
				if err := dw.Store.SaveAll(leads); err != nil {
					dw.Logger.Printf("Failed to persist after sending to %s: %v", lead.Email, err)
				}
				dw.Logger.Printf("Sent to %s (%s), message id %q", lead.Email, lead.PlaceID, messageID)
				dw.Progress.Publish(ProgressEvent{
					Stage:   StageSent,
					PlaceID: lead.PlaceID,
					Email:   lead.Email,
					Sent:    sent,
					Failed:  failed,
					Pending: len(eligible) - n - 1,
				})
			}

			// Fixed pacing between sends to respect outbound rate limits.
			time.Sleep(dw.Pacing)
		}

		// A pass where every remaining send failed must not spin: the failed
		// leads stay Queued and get retried on the next trigger instead.
		if !progressed {
			dw.Logger.Printf("Dispatch pass made no progress, stopping (%d sent, %d failed)", sent, failed)
			return
		}
	}
}
