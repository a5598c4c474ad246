package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"leadgen/models"
)

const DefaultBrevoBaseURL = "https://api.brevo.com/v3"

// BrevoClient talks to the Brevo v3 API. It is both the default mail
// dispatcher (transactional send, which returns the message id used for
// correlation) and the open-status checker for the polling pull.
type BrevoClient struct {
	APIKey      string
	BaseURL     string
	SenderName  string
	SenderEmail string
	HTTPClient  *http.Client
}

func NewBrevoClient(apiKey, baseURL, senderName, senderEmail string) *BrevoClient {
	if baseURL == "" {
		baseURL = DefaultBrevoBaseURL
	}
	return &BrevoClient{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		SenderName:  senderName,
		SenderEmail: senderEmail,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

type brevoSendRequest struct {
	Sender      brevoParty   `json:"sender"`
	To          []brevoParty `json:"to"`
	Subject     string       `json:"subject"`
	TextContent string       `json:"textContent"`
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}

// Send submits the lead's email through the transactional endpoint and
// returns the provider message id.
func (b *BrevoClient) Send(lead models.Lead) (string, error) {
	if b.APIKey == "" {
		return "", fmt.Errorf("brevo: BREVO_API_KEY is not configured")
	}
	if lead.Email == "" {
		return "", fmt.Errorf("brevo: lead %s has no email address", lead.PlaceID)
	}

	payload := brevoSendRequest{
		Sender:      brevoParty{Name: b.SenderName, Email: b.SenderEmail},
		To:          []brevoParty{{Name: lead.Name, Email: lead.Email}},
		Subject:     lead.EmailSubject,
		TextContent: lead.EmailBody,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, b.BaseURL+"/smtp/email", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", b.APIKey)

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("brevo: send request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("brevo: send returned %d: %s", resp.StatusCode, raw)
	}

	var out brevoSendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		// The send went through; a missing message id only degrades
		// correlation to the email fallback.
		return "", nil
	}
	return out.MessageID, nil
}

type brevoEventsResponse struct {
	Events []struct {
		Event string `json:"event"`
		Date  string `json:"date"`
	} `json:"events"`
}

// CheckOpened queries the events API for an "opened" event recorded against
// the given message id.
func (b *BrevoClient) CheckOpened(messageID string) (bool, *time.Time, error) {
	if b.APIKey == "" {
		return false, nil, fmt.Errorf("brevo: BREVO_API_KEY is not configured")
	}

	q := url.Values{}
	q.Set("messageId", messageID)
	q.Set("event", "opened")
	q.Set("limit", "10")

	req, err := http.NewRequest(http.MethodGet, b.BaseURL+"/smtp/statistics/events?"+q.Encode(), nil)
	if err != nil {
		return false, nil, err
	}
	req.Header.Set("api-key", b.APIKey)

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("brevo: events request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, nil, fmt.Errorf("brevo: events returned %d: %s", resp.StatusCode, raw)
	}

	var out brevoEventsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return false, nil, fmt.Errorf("brevo: malformed events response: %w", err)
	}

	for _, ev := range out.Events {
		if ev.Event != "opened" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
			t = t.UTC()
			return true, &t, nil
		}
		return true, nil, nil
	}
	return false, nil, nil
}
