package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient generates the per-lead outreach copy: a short "about" blurb
// and the email body paragraph.
type OpenAIClient struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{
		APIKey:     apiKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func copyPrompt(name, city, category string, rating float64) string {
	ratingStr := "rating unavailable"
	if rating > 0 {
		ratingStr = fmt.Sprintf("%.1f star", rating)
	}
	return strings.TrimSpace(fmt.Sprintf(`You are helping a student entrepreneur write a professional but warm outreach package.

Business: %s
City: %s
Category: %s
Google Stars: %s

Deliver JSON with two keys:
1. "about": 2-3 sentences summarizing the business, mention a service detail and its current Google star review.
2. "email": single paragraph (no greeting or closing) that follows these rules:
   - Reference something specific about the business (service, reputation, city).
   - Mention building fully functioning websites that accommodate the %s category.
   - Include a line that says if they already have a website, no worries; if interested in a new one or upgrade they can reply.
   - Ask them to email back if interested.
   - No placeholders, no brackets, no "My name is".`, name, city, category, ratingStr, category))
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// WriteCopy returns the about blurb and the email paragraph for one place.
func (o *OpenAIClient) WriteCopy(name, city, category string, rating float64) (string, string, error) {
	if o.APIKey == "" {
		return "", "", fmt.Errorf("openai: OPENAI_API_KEY is not configured")
	}

	body, err := json.Marshal(chatRequest{
		Model:       o.Model,
		Messages:    []chatMessage{{Role: "user", Content: copyPrompt(name, city, category, rating)}},
		Temperature: 0.35,
		MaxTokens:   400,
	})
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequest(http.MethodPost, o.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("openai: returned %d: %s", resp.StatusCode, raw)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", "", fmt.Errorf("openai: malformed response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", "", fmt.Errorf("openai: empty completion")
	}

	content := strings.TrimSpace(out.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var parsed struct {
		About string `json:"about"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &parsed); err != nil {
		return "", "", fmt.Errorf("openai: completion is not the expected JSON: %s", content)
	}
	return parsed.About, parsed.Email, nil
}
