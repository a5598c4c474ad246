package store

import "leadgen/models"

// LeadStore is the whole-snapshot persistence contract: load the full
// collection, mutate in memory, write the full collection back. There are no
// partial updates and no transactions across callers; the last snapshot saved
// wins.
type LeadStore interface {
	LoadAll() ([]models.Lead, error)
	SaveAll(leads []models.Lead) error
}
