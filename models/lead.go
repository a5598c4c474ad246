package models

import (
	"errors"
	"time"
)

// Lifecycle statuses. The chain is strictly forward:
// Drafted -> Approved -> Queued -> Sent.
const (
	StatusDrafted  = "Drafted"
	StatusApproved = "Approved"
	StatusQueued   = "Queued"
	StatusSent     = "Sent"
)

// Open-state values reported to the dashboard.
const (
	OpenStateUnopened = "unopened"
	OpenStateOpened   = "opened"
	OpenStateUnknown  = "unknown"
	OpenStateFailed   = "failed"
)

// ErrInvalidStatus is returned when a status update carries a value outside
// the four lifecycle statuses.
var ErrInvalidStatus = errors.New("invalid status")

// Lead represents a single business contact moving through the outreach
// lifecycle. JSON keys match the leads.json feed consumed by the dashboard.
type Lead struct {
	PlaceID  string  `gorm:"primaryKey" json:"place_id"`
	Name     string  `json:"name"`
	Email    string  `gorm:"index" json:"email"`
	Address  string  `json:"address,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Category string  `json:"category,omitempty"`
	MapsURL  string  `json:"google_maps_url,omitempty"`
	Rating   float64 `json:"rating,omitempty"`

	// Content produced at generation time; this service never rewrites it.
	About           string `gorm:"type:text" json:"about,omitempty"`
	EmailSubject    string `json:"email_subject,omitempty"`
	EmailBody       string `gorm:"type:text" json:"email_body,omitempty"`
	ValidationNotes string `json:"validation_notes,omitempty"`

	Status   string     `gorm:"index" json:"status"`
	QueuedAt *time.Time `json:"queued_at,omitempty"`
	SentAt   *time.Time `json:"sent_at,omitempty"`

	// Delivery correlation. BrevoMessageID is the primary correlation key;
	// a present SentAt is the authoritative "already sent" guard.
	BrevoMessageID     string     `gorm:"index" json:"brevo_message_id,omitempty"`
	EmailOpened        bool       `json:"email_opened"`
	EmailOpenedAt      *time.Time `json:"email_opened_at,omitempty"`
	EmailOpenState     string     `json:"email_open_state,omitempty"`
	EmailOpenCheckedAt *time.Time `json:"email_open_checked_at,omitempty"`
	LastBrevoEvent     string     `json:"last_brevo_event,omitempty"`
	LastBrevoEventAt   *time.Time `json:"last_brevo_event_at,omitempty"`
}

// ValidStatus reports whether s is one of the four lifecycle statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusDrafted, StatusApproved, StatusQueued, StatusSent:
		return true
	}
	return false
}

// SetStatus applies a direct status update. Any string outside the four
// lifecycle values is rejected.
func (l *Lead) SetStatus(status string) error {
	if !ValidStatus(status) {
		return ErrInvalidStatus
	}
	l.Status = status
	return nil
}

// Eligible reports whether the dispatch worker may send this lead.
// SentAt doubles as the at-most-once guard: a lead stuck in Queued with
// SentAt set must never be resubmitted.
func (l *Lead) Eligible() bool {
	return l.Status == StatusQueued && l.SentAt == nil
}

// MarkSent advances the lead to Sent and resets every delivery-correlation
// field to its initial value so webhook events start from a clean slate.
func (l *Lead) MarkSent(messageID string, now time.Time) {
	l.Status = StatusSent
	l.SentAt = &now
	l.EmailOpened = false
	l.EmailOpenedAt = nil
	l.EmailOpenState = ""
	l.EmailOpenCheckedAt = nil
	l.LastBrevoEvent = ""
	l.LastBrevoEventAt = nil
	if messageID != "" {
		l.BrevoMessageID = messageID
	}
}

// QueueApproved performs the bulk Approved -> Queued transition in a single
// pass and returns how many leads were queued. Leads already Queued or Sent
// are left untouched, so re-invoking with no new Approved leads is a no-op.
func QueueApproved(leads []Lead, now time.Time) int {
	queued := 0
	for i := range leads {
		if leads[i].Status != StatusApproved {
			continue
		}
		leads[i].Status = StatusQueued
		t := now
		leads[i].QueuedAt = &t
		queued++
	}
	return queued
}
