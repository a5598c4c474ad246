package controller

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadgen/models"
	"leadgen/tracker"
)

func newWebhookTestApp(st *memStore) *fiber.App {
	app := fiber.New()
	wc := NewWebhookController(st, tracker.NewCorrelator(10*time.Minute, testLogger()), testLogger())
	app.Post("/brevo/webhook", wc.HandleBrevoWebhook)
	app.Get("/brevo/webhook", wc.HandleBrevoWebhookCheck)
	return app
}

type webhookResult struct {
	Received int `json:"received"`
	Matched  int `json:"matched"`
}

func TestWebhookOpenedEventMarksLead(t *testing.T) {
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)
	st := &memStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "owner@biz.example", Status: models.StatusSent,
			SentAt: &sent, BrevoMessageID: "msg-1@smtp-relay.mailin.fr"},
	}}
	app := newWebhookTestApp(st)

	events := []tracker.Event{{
		Event:     "opened",
		Email:     "owner@biz.example",
		MessageID: "<msg-1@smtp-relay.mailin.fr>",
		Date:      now.Format(time.RFC3339),
	}}

	var body webhookResult
	resp := performJSON(t, app, "POST", "/brevo/webhook", events, &body)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Received)
	assert.Equal(t, 1, body.Matched)

	leads := st.snapshot()
	assert.True(t, leads[0].EmailOpened)
	assert.Equal(t, models.OpenStateOpened, leads[0].EmailOpenState)
	assert.Equal(t, "opened", leads[0].LastBrevoEvent)
	assert.Equal(t, 1, st.saveCount())
}

func TestWebhookAcceptsSingleEventObject(t *testing.T) {
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)
	st := &memStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "owner@biz.example", Status: models.StatusSent,
			SentAt: &sent, BrevoMessageID: "msg-1@id"},
	}}
	app := newWebhookTestApp(st)

	ev := tracker.Event{Event: "delivered", Email: "owner@biz.example", MessageID: "msg-1@id"}
	var body webhookResult
	resp := performJSON(t, app, "POST", "/brevo/webhook", ev, &body)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, body.Received)
	assert.Equal(t, 1, body.Matched)
	assert.Equal(t, models.OpenStateUnopened, st.snapshot()[0].EmailOpenState)
}

func TestWebhookMalformedBodyStillAnswers200(t *testing.T) {
	st := &memStore{}
	app := newWebhookTestApp(st)

	req := httptest.NewRequest("POST", "/brevo/webhook", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	var body webhookResult
	decodeBody(t, resp, &body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Zero(t, body.Received)
	assert.Zero(t, body.Matched)
	assert.Zero(t, st.saveCount())
}

func TestWebhookReplayDoesNotPersistAgain(t *testing.T) {
	now := time.Now().UTC()
	sent := now.Add(-time.Hour)
	st := &memStore{leads: []models.Lead{
		{PlaceID: "p1", Email: "owner@biz.example", Status: models.StatusSent,
			SentAt: &sent, BrevoMessageID: "msg-1@id"},
	}}
	app := newWebhookTestApp(st)

	events := []tracker.Event{{
		Event:     "opened",
		Email:     "owner@biz.example",
		MessageID: "msg-1@id",
		Date:      now.Format(time.RFC3339),
	}}

	performJSON(t, app, "POST", "/brevo/webhook", events, nil)
	require.Equal(t, 1, st.saveCount())

	var body webhookResult
	performJSON(t, app, "POST", "/brevo/webhook", events, &body)
	assert.Equal(t, 1, body.Matched)
	assert.Equal(t, 1, st.saveCount())
}

func TestWebhookCheckEndpoint(t *testing.T) {
	app := newWebhookTestApp(&memStore{})

	resp, err := app.Test(httptest.NewRequest("GET", "/brevo/webhook", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
