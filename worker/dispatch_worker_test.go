package worker

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen/models"
)

type fakeStore struct {
	mu    sync.Mutex
	leads []models.Lead
	saves int
}

func (f *fakeStore) LoadAll() ([]models.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Lead, len(f.leads))
	copy(out, f.leads)
	return out, nil
}

func (f *fakeStore) SaveAll(leads []models.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leads = make([]models.Lead, len(leads))
	copy(f.leads, leads)
	f.saves++
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeDispatcher struct {
	mu      sync.Mutex
	sentTo  []string
	err     error
	release chan struct{} // when set, Send blocks until it is closed
}

func (f *fakeDispatcher) Send(lead models.Lead) (string, error) {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sentTo = append(f.sentTo, lead.Email)
	return "msg-" + lead.PlaceID + "@id", nil
}

func (f *fakeDispatcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sentTo))
	copy(out, f.sentTo)
	return out
}

func newTestWorker(st *fakeStore, d Dispatcher) *DispatchWorker {
	return NewDispatchWorker(st, d, log.New(io.Discard, "", 0), 0)
}

func TestDrainSendsOnlyEligibleLeads(t *testing.T) {
	now := time.Now().UTC()
	alreadySent := now.Add(-time.Hour)
	st := &fakeStore{leads: []models.Lead{
		{PlaceID: "drafted", Email: "a@biz.example", Status: models.StatusDrafted},
		{PlaceID: "queued", Email: "b@biz.example", Status: models.StatusQueued},
		// Queued with SentAt set: the at-most-once guard, must be skipped.
		{PlaceID: "stuck", Email: "c@biz.example", Status: models.StatusQueued, SentAt: &alreadySent},
		{PlaceID: "done", Email: "d@biz.example", Status: models.StatusSent, SentAt: &alreadySent},
	}}
	dispatcher := &fakeDispatcher{}
	dw := newTestWorker(st, dispatcher)

	dw.drain()

	assert.Equal(t, []string{"b@biz.example"}, dispatcher.calls())

	leads, err := st.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, leads[1].Status)
	require.NotNil(t, leads[1].SentAt)
	assert.Equal(t, "msg-queued@id", leads[1].BrevoMessageID)
	assert.Equal(t, models.StatusDrafted, leads[0].Status)
	assert.Equal(t, models.StatusQueued, leads[2].Status)
}

func TestDrainPersistsAfterEachSend(t *testing.T) {
	st := &fakeStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "a@biz.example", Status: models.StatusQueued},
		{PlaceID: "p2", Email: "b@biz.example", Status: models.StatusQueued},
	}}
	dispatcher := &fakeDispatcher{}
	dw := newTestWorker(st, dispatcher)

	dw.drain()

	assert.Len(t, dispatcher.calls(), 2)
	assert.Equal(t, 2, st.saveCount())
}

func TestDrainFailureLeavesLeadQueued(t *testing.T) {
	st := &fakeStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "a@biz.example", Status: models.StatusQueued},
	}}
	dispatcher := &fakeDispatcher{err: errors.New("smtp relay refused")}
	dw := newTestWorker(st, dispatcher)

	dw.drain()

	leads, err := st.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, leads[0].Status)
	assert.Nil(t, leads[0].SentAt)
	assert.Zero(t, st.saveCount())
	assert.False(t, dw.Running())
}

func TestEnsureRunningIsSingleton(t *testing.T) {
	release := make(chan struct{})
	st := &fakeStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "a@biz.example", Status: models.StatusQueued},
	}}
	dispatcher := &fakeDispatcher{release: release}
	dw := newTestWorker(st, dispatcher)

	assert.True(t, dw.EnsureRunning())
	// Second trigger while the first worker is blocked inside Send.
	assert.False(t, dw.EnsureRunning())
	assert.True(t, dw.Running())

	close(release)
	require.Eventually(t, func() bool { return !dw.Running() }, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, dispatcher.calls(), 1)

	// Once drained a new trigger may start a fresh worker.
	assert.True(t, dw.EnsureRunning())
	require.Eventually(t, func() bool { return !dw.Running() }, 2*time.Second, 10*time.Millisecond)
}

func TestDrainPublishesProgress(t *testing.T) {
	st := &fakeStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "a@biz.example", Status: models.StatusQueued},
	}}
	dispatcher := &fakeDispatcher{}
	dw := newTestWorker(st, dispatcher)

	ch := dw.Progress.Subscribe()
	defer dw.Progress.Unsubscribe(ch)

	dw.drain()

	ev := <-ch
	assert.Equal(t, StageSent, ev.Stage)
	assert.Equal(t, "p1", ev.PlaceID)
	assert.Equal(t, 1, ev.Sent)
	assert.Zero(t, ev.Pending)

	ev = <-ch
	assert.Equal(t, StageDrained, ev.Stage)
}
