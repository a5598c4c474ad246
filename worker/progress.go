package worker

import "sync"

// Progress stages published while a worker run is active.
const (
	StageSent    = "sent"
	StageFailed  = "failed"
	StageDrained = "drained"
)

// ProgressEvent is one step of a dispatch run, streamed to websocket clients.
type ProgressEvent struct {
	Stage   string `json:"stage"`
	PlaceID string `json:"place_id,omitempty"`
	Email   string `json:"email,omitempty"`
	Error   string `json:"error,omitempty"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Pending int    `json:"pending"`
}

// ProgressHub fans dispatch progress out to any number of subscribers. Slow
// subscribers drop events instead of blocking the worker.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[chan ProgressEvent]bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[chan ProgressEvent]bool)}
}

func (h *ProgressHub) Subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 16)
	h.mu.Lock()
	h.subs[ch] = true
	h.mu.Unlock()
	return ch
}

func (h *ProgressHub) Unsubscribe(ch chan ProgressEvent) {
	h.mu.Lock()
	if h.subs[ch] {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *ProgressHub) Publish(ev ProgressEvent) {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}
