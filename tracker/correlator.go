package tracker

import (
	"log"
	"sort"
	"strings"
	"time"

	"leadgen/models"
)

// Event is a single delivery event as Brevo posts it to the webhook. Brevo
// is inconsistent about field names between webhook pushes and the events
// API, so both spellings of the message-id and recipient are accepted.
type Event struct {
	Event        string `json:"event"`
	Email        string `json:"email"`
	Recipient    string `json:"recipient,omitempty"`
	MessageID    string `json:"message-id,omitempty"`
	MessageIDAlt string `json:"messageId,omitempty"`
	Date         string `json:"date,omitempty"`
	TSEvent      int64  `json:"ts_event,omitempty"`
}

var eventDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Timestamp parses the event time, preferring the date string over the unix
// field. Returns nil when the event carries no usable timestamp.
func (e Event) Timestamp() *time.Time {
	for _, layout := range eventDateLayouts {
		if t, err := time.Parse(layout, e.Date); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if e.TSEvent > 0 {
		t := time.Unix(e.TSEvent, 0).UTC()
		return &t
	}
	return nil
}

// NormalizedMessageID strips the outer angle-bracket delimiters SMTP headers
// carry, e.g. "<abc@smtp-relay.mailin.fr>" -> "abc@smtp-relay.mailin.fr".
func (e Event) NormalizedMessageID() string {
	id := e.MessageID
	if id == "" {
		id = e.MessageIDAlt
	}
	return NormalizeMessageID(id)
}

// RecipientEmail returns the lowercased recipient address.
func (e Event) RecipientEmail() string {
	addr := e.Email
	if addr == "" {
		addr = e.Recipient
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return id
}

// Event kinds grouped by how they affect the open state.
func isOpenedEvent(kind string) bool {
	return kind == "opened" || kind == "unique_opened"
}

func isDeliveryEvent(kind string) bool {
	return kind == "delivered" || kind == "request" || kind == "sent"
}

func isFailureEvent(kind string) bool {
	switch kind {
	case "hard_bounce", "soft_bounce", "invalid", "blocked", "spam":
		return true
	}
	return false
}

// Correlator matches inbound Brevo events to leads and applies idempotent
// field updates. Window is the clock/queue-skew tolerance used when falling
// back to email matching.
type Correlator struct {
	Window time.Duration
	Logger *log.Logger
}

func NewCorrelator(window time.Duration, logger *log.Logger) *Correlator {
	return &Correlator{Window: window, Logger: logger}
}

type indexes struct {
	byMessageID map[string]*models.Lead
	byEmail     map[string][]*models.Lead
}

// buildIndexes builds the per-batch lookup structures over the full snapshot.
// Email candidate lists are sorted most recently sent first; undated leads
// sort last.
func (c *Correlator) buildIndexes(leads []models.Lead) indexes {
	idx := indexes{
		byMessageID: make(map[string]*models.Lead),
		byEmail:     make(map[string][]*models.Lead),
	}
	for i := range leads {
		lead := &leads[i]
		if id := NormalizeMessageID(lead.BrevoMessageID); id != "" {
			idx.byMessageID[id] = lead
		}
		if email := strings.ToLower(strings.TrimSpace(lead.Email)); email != "" {
			idx.byEmail[email] = append(idx.byEmail[email], lead)
		}
	}
	for _, candidates := range idx.byEmail {
		sort.SliceStable(candidates, func(a, b int) bool {
			la, lb := candidates[a], candidates[b]
			if la.SentAt == nil {
				return false
			}
			if lb.SentAt == nil {
				return true
			}
			return la.SentAt.After(*lb.SentAt)
		})
	}
	return idx
}

// match resolves an event to a lead. The message id is authoritative; the
// email fallback picks the most recent lead sent at or before the event time
// (tolerating Window of skew), or simply the most recent when the event has
// no timestamp or nothing satisfies the cutoff.
func (c *Correlator) match(idx indexes, ev Event) *models.Lead {
	if id := ev.NormalizedMessageID(); id != "" {
		if lead, ok := idx.byMessageID[id]; ok {
			return lead
		}
	}

	candidates := idx.byEmail[ev.RecipientEmail()]
	if len(candidates) == 0 {
		return nil
	}

	if ts := ev.Timestamp(); ts != nil {
		cutoff := ts.Add(c.Window)
		for _, cand := range candidates {
			if cand.SentAt != nil && !cand.SentAt.After(cutoff) {
				return cand
			}
		}
	}
	return candidates[0]
}

// ProcessBatch correlates a webhook batch against the snapshot, mutating
// matched leads in place. It returns how many events matched a lead and
// whether any event produced a real mutation (so the caller persists only
// when something actually changed). Unmatched events are dropped silently:
// provider payloads routinely reference sends outside this collection.
func (c *Correlator) ProcessBatch(leads []models.Lead, events []Event, now time.Time) (int, bool) {
	idx := c.buildIndexes(leads)
	matched := 0
	changed := false
	for _, ev := range events {
		lead := c.match(idx, ev)
		if lead == nil {
			c.Logger.Printf("No lead matched %q event for %s", ev.Event, ev.RecipientEmail())
			continue
		}
		matched++
		if c.ApplyEvent(lead, ev, now) {
			changed = true
		}
	}
	return matched, changed
}

// ApplyEvent merges one event into its matched lead. Every update is
// idempotent: replaying the same event is a no-op and the return value stays
// false. The opened flag is sticky; a later delivered event never reverts it.
func (c *Correlator) ApplyEvent(lead *models.Lead, ev Event, now time.Time) bool {
	changed := false

	// Backfill the message id when the original send response omitted it.
	if id := ev.NormalizedMessageID(); id != "" && NormalizeMessageID(lead.BrevoMessageID) != id {
		lead.BrevoMessageID = id
		changed = true
	}

	checked := now
	lead.EmailOpenCheckedAt = &checked

	ts := ev.Timestamp()
	switch kind := ev.Event; {
	case isOpenedEvent(kind):
		if !lead.EmailOpened {
			lead.EmailOpened = true
			if ts != nil {
				lead.EmailOpenedAt = ts
			} else {
				opened := now
				lead.EmailOpenedAt = &opened
			}
			changed = true
		}
		if lead.EmailOpenState != models.OpenStateOpened {
			lead.EmailOpenState = models.OpenStateOpened
			changed = true
		}
	case isDeliveryEvent(kind):
		// Initialize the open state on first contact, never downgrade an
		// already-opened lead.
		if !lead.EmailOpened && lead.EmailOpenState == "" {
			lead.EmailOpenState = models.OpenStateUnopened
			changed = true
		}
	case isFailureEvent(kind):
		if lead.EmailOpenState != models.OpenStateFailed {
			lead.EmailOpenState = models.OpenStateFailed
			changed = true
		}
	}

	eventAt := ts
	if eventAt == nil {
		eventAt = &now
	}
	if lead.LastBrevoEvent != ev.Event || lead.LastBrevoEventAt == nil || !lead.LastBrevoEventAt.Equal(*eventAt) {
		lead.LastBrevoEvent = ev.Event
		lead.LastBrevoEventAt = eventAt
		changed = true
	}

	return changed
}
