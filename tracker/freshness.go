package tracker

import (
	"log"
	"time"

	"leadgen/models"
	"leadgen/utils"
)

// OpenChecker is the provider collaborator for the pull path: look up the
// "opened" event recorded for one message id.
type OpenChecker interface {
	CheckOpened(messageID string) (bool, *time.Time, error)
}

// OpenStatus is the per-lead result reported to the dashboard.
type OpenStatus struct {
	Opened    bool       `json:"opened"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	State     string     `json:"state"`
}

// FreshnessChecker decides per lead whether the cached open state is still
// valid or the provider must be re-queried. A lead is fresh once opened, or
// while its last check is younger than TTL.
type FreshnessChecker struct {
	TTL     time.Duration
	Checker OpenChecker
	Logger  *log.Logger
}

func NewFreshnessChecker(ttl time.Duration, checker OpenChecker, logger *log.Logger) *FreshnessChecker {
	return &FreshnessChecker{TTL: ttl, Checker: checker, Logger: logger}
}

func (f *FreshnessChecker) fresh(lead *models.Lead, now time.Time) bool {
	if lead.EmailOpened {
		return true
	}
	return lead.EmailOpenCheckedAt != nil && now.Sub(*lead.EmailOpenCheckedAt) < f.TTL
}

// Refresh evaluates the requested leads (all Sent leads when placeIDs is
// empty), polling the provider only for stale ones, and mutates the snapshot
// in place. It returns the status for every lead considered plus whether
// anything changed and needs persisting.
func (f *FreshnessChecker) Refresh(leads []models.Lead, placeIDs []string, now time.Time) (map[string]OpenStatus, bool) {
	wanted := make(map[string]bool, len(placeIDs))
	for _, id := range placeIDs {
		wanted[id] = true
	}

	statuses := make(map[string]OpenStatus)
	changed := false

	for i := range leads {
		lead := &leads[i]
		if len(wanted) > 0 {
			if !wanted[lead.PlaceID] {
				continue
			}
		} else if lead.Status != models.StatusSent {
			continue
		}

		switch {
		case f.fresh(lead, now):
			// Cached state is still valid, skip the provider entirely.

		case lead.BrevoMessageID == "":
			// Nothing to query the provider with.
			if lead.EmailOpenState != models.OpenStateUnknown {
				lead.EmailOpenState = models.OpenStateUnknown
				changed = true
			}
			checked := now
			lead.EmailOpenCheckedAt = &checked
			changed = true

		default:
			if f.refreshFromProvider(lead, now) {
				changed = true
			}
		}

		statuses[lead.PlaceID] = OpenStatus{
			Opened:    lead.EmailOpened,
			OpenedAt:  lead.EmailOpenedAt,
			CheckedAt: lead.EmailOpenCheckedAt,
			State:     stateOrDefault(lead),
		}
	}

	return statuses, changed
}

// refreshFromProvider issues the single-event pull. A provider failure is
// logged and leaves the lead untouched, including the checked timestamp, so
// the next poll retries.
func (f *FreshnessChecker) refreshFromProvider(lead *models.Lead, now time.Time) bool {
	found, openedAt, err := f.Checker.CheckOpened(lead.BrevoMessageID)
	if err != nil {
		f.Logger.Printf("Open-status poll failed for %s: %v", lead.PlaceID, err)
		utils.LogError("open_status_poll", err, map[string]interface{}{
			"place_id":   lead.PlaceID,
			"message_id": lead.BrevoMessageID,
		})
		return false
	}

	checked := now
	lead.EmailOpenCheckedAt = &checked

	if found {
		lead.EmailOpened = true
		if lead.EmailOpenedAt == nil {
			if openedAt != nil {
				lead.EmailOpenedAt = openedAt
			} else {
				opened := now
				lead.EmailOpenedAt = &opened
			}
		}
		lead.EmailOpenState = models.OpenStateOpened
	} else if !lead.EmailOpened {
		lead.EmailOpenState = models.OpenStateUnopened
	}
	return true
}

func stateOrDefault(lead *models.Lead) string {
	if lead.EmailOpenState != "" {
		return lead.EmailOpenState
	}
	if lead.EmailOpened {
		return models.OpenStateOpened
	}
	return models.OpenStateUnknown
}
