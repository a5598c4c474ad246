package tracker

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen/models"
)

type fakeOpenChecker struct {
	calls    int
	found    bool
	openedAt *time.Time
	err      error
}

func (f *fakeOpenChecker) CheckOpened(messageID string) (bool, *time.Time, error) {
	f.calls++
	return f.found, f.openedAt, f.err
}

func newTestFreshness(checker OpenChecker) *FreshnessChecker {
	return NewFreshnessChecker(5*time.Minute, checker, log.New(io.Discard, "", 0))
}

func TestRefreshSkipsProviderForFreshLeads(t *testing.T) {
	checker := &fakeOpenChecker{}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)
	recent := now.Add(-time.Minute)

	leads := []models.Lead{
		// Opened leads are permanently fresh.
		{PlaceID: "opened", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "a@id",
			EmailOpened: true, EmailOpenedAt: &sent, EmailOpenState: models.OpenStateOpened, EmailOpenCheckedAt: &sent},
		// Checked a minute ago, inside the 5-minute TTL.
		{PlaceID: "checked", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "b@id",
			EmailOpenState: models.OpenStateUnopened, EmailOpenCheckedAt: &recent},
	}

	statuses, changed := fc.Refresh(leads, nil, now)

	assert.Zero(t, checker.calls)
	assert.False(t, changed)
	require.Len(t, statuses, 2)
	assert.True(t, statuses["opened"].Opened)
	assert.Equal(t, models.OpenStateOpened, statuses["opened"].State)
	assert.Equal(t, models.OpenStateUnopened, statuses["checked"].State)
}

func TestRefreshWithoutMessageIDReportsUnknown(t *testing.T) {
	checker := &fakeOpenChecker{}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)

	leads := []models.Lead{
		{PlaceID: "p1", Status: models.StatusSent, SentAt: &sent},
	}

	statuses, changed := fc.Refresh(leads, nil, now)

	assert.Zero(t, checker.calls)
	assert.True(t, changed)
	assert.Equal(t, models.OpenStateUnknown, statuses["p1"].State)
	require.NotNil(t, leads[0].EmailOpenCheckedAt)
	assert.Equal(t, now, *leads[0].EmailOpenCheckedAt)
}

func TestRefreshPollsProviderForStaleLead(t *testing.T) {
	openedAt := time.Now().UTC().Add(-10 * time.Minute)
	checker := &fakeOpenChecker{found: true, openedAt: &openedAt}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)

	leads := []models.Lead{
		{PlaceID: "p1", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "a@id"},
	}

	statuses, changed := fc.Refresh(leads, nil, now)

	assert.Equal(t, 1, checker.calls)
	assert.True(t, changed)
	assert.True(t, statuses["p1"].Opened)
	assert.Equal(t, models.OpenStateOpened, statuses["p1"].State)
	assert.True(t, leads[0].EmailOpened)
	require.NotNil(t, leads[0].EmailOpenedAt)
	assert.True(t, leads[0].EmailOpenedAt.Equal(openedAt))
}

func TestRefreshRecordsUnopenedWhenProviderHasNoOpenEvent(t *testing.T) {
	checker := &fakeOpenChecker{found: false}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)

	leads := []models.Lead{
		{PlaceID: "p1", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "a@id"},
	}

	statuses, changed := fc.Refresh(leads, nil, now)

	assert.Equal(t, 1, checker.calls)
	assert.True(t, changed)
	assert.False(t, statuses["p1"].Opened)
	assert.Equal(t, models.OpenStateUnopened, statuses["p1"].State)
	require.NotNil(t, leads[0].EmailOpenCheckedAt)
}

func TestRefreshProviderErrorLeavesLeadUntouched(t *testing.T) {
	checker := &fakeOpenChecker{err: errors.New("brevo unavailable")}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)

	leads := []models.Lead{
		{PlaceID: "p1", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "a@id"},
	}

	statuses, changed := fc.Refresh(leads, nil, now)

	assert.Equal(t, 1, checker.calls)
	assert.False(t, changed)
	// Untouched, including the checked timestamp, so the next poll retries.
	assert.Nil(t, leads[0].EmailOpenCheckedAt)
	assert.Equal(t, models.OpenStateUnknown, statuses["p1"].State)
}

func TestRefreshFiltersByPlaceIDs(t *testing.T) {
	checker := &fakeOpenChecker{found: false}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)

	leads := []models.Lead{
		{PlaceID: "wanted", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "a@id"},
		{PlaceID: "other", Status: models.StatusSent, SentAt: &sent, BrevoMessageID: "b@id"},
	}

	statuses, _ := fc.Refresh(leads, []string{"wanted"}, now)

	assert.Equal(t, 1, checker.calls)
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses, "wanted")
	assert.Nil(t, leads[1].EmailOpenCheckedAt)
}

func TestRefreshDefaultsToSentLeadsOnly(t *testing.T) {
	checker := &fakeOpenChecker{}
	fc := newTestFreshness(checker)
	now := time.Now().UTC()

	leads := []models.Lead{
		{PlaceID: "drafted", Status: models.StatusDrafted},
		{PlaceID: "queued", Status: models.StatusQueued},
	}

	statuses, changed := fc.Refresh(leads, nil, now)

	assert.Empty(t, statuses)
	assert.False(t, changed)
	assert.Zero(t, checker.calls)
}
