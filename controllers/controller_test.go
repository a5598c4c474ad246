package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"leadgen/models"
)

// memStore is an in-memory LeadStore for handler tests.
type memStore struct {
	mu    sync.Mutex
	leads []models.Lead
	saves int
}

func (m *memStore) LoadAll() ([]models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Lead, len(m.leads))
	copy(out, m.leads)
	return out, nil
}

func (m *memStore) SaveAll(leads []models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = make([]models.Lead, len(leads))
	copy(m.leads, leads)
	m.saves++
	return nil
}

func (m *memStore) snapshot() []models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Lead, len(m.leads))
	copy(out, m.leads)
	return out
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func performJSON(t *testing.T, app *fiber.App, method, target string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	resp, err := app.Test(jsonRequest(t, method, target, body), -1)
	require.NoError(t, err)
	if out != nil {
		decodeBody(t, resp, out)
	}
	return resp
}
