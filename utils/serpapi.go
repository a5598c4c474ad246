package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"
)

const DefaultSerpAPIBaseURL = "https://serpapi.com"

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)

// Place is one Google Maps result considered for lead generation.
type Place struct {
	Name    string
	Address string
	Phone   string
	PlaceID string
	MapsURL string
	Rating  float64
}

// SerpAPIClient queries SerpApi for Google Maps listings and for contact
// emails surfaced in regular Google results.
type SerpAPIClient struct {
	APIKey     string
	City       string
	BaseURL    string
	HTTPClient *http.Client
}

func NewSerpAPIClient(apiKey, city, baseURL string) *SerpAPIClient {
	if baseURL == "" {
		baseURL = DefaultSerpAPIBaseURL
	}
	return &SerpAPIClient{
		APIKey:     apiKey,
		City:       city,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *SerpAPIClient) get(params url.Values, out interface{}) error {
	params.Set("google_domain", "google.com")
	params.Set("hl", "en")
	params.Set("api_key", s.APIKey)

	resp, err := s.HTTPClient.Get(s.BaseURL + "/search.json?" + params.Encode())
	if err != nil {
		return fmt.Errorf("serpapi: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("serpapi: returned %d: %s", resp.StatusCode, raw)
	}
	return json.Unmarshal(raw, out)
}

type serpPlace struct {
	Title   string  `json:"title"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   string  `json:"phone"`
	PlaceID string  `json:"place_id"`
	DataID  string  `json:"data_id"`
	Link    string  `json:"link"`
	Rating  float64 `json:"rating"`
}

// SearchPlaces returns one Maps page (20 results) for "<niche> in <city>".
func (s *SerpAPIClient) SearchPlaces(niche string, start int) ([]Place, error) {
	params := url.Values{}
	params.Set("engine", "google_maps")
	params.Set("type", "search")
	params.Set("q", fmt.Sprintf("%s in %s", niche, s.City))
	params.Set("start", fmt.Sprintf("%d", start))

	var payload struct {
		LocalResults json.RawMessage `json:"local_results"`
	}
	if err := s.get(params, &payload); err != nil {
		return nil, err
	}

	// local_results is either a bare array or an object wrapping "results".
	var raw []serpPlace
	if len(payload.LocalResults) > 0 {
		if err := json.Unmarshal(payload.LocalResults, &raw); err != nil {
			var wrapped struct {
				Results []serpPlace `json:"results"`
			}
			if err := json.Unmarshal(payload.LocalResults, &wrapped); err == nil {
				raw = wrapped.Results
			}
		}
	}

	var places []Place
	for _, p := range raw {
		name := p.Title
		if name == "" {
			name = p.Name
		}
		placeID := p.PlaceID
		if placeID == "" {
			placeID = p.DataID
		}
		if name == "" || placeID == "" {
			continue
		}
		mapsURL := p.Link
		if mapsURL == "" {
			mapsURL = fmt.Sprintf("https://www.google.com/maps/search/?api=1&query_place_id=%s", placeID)
		}
		places = append(places, Place{
			Name:    name,
			Address: p.Address,
			Phone:   p.Phone,
			PlaceID: placeID,
			MapsURL: mapsURL,
			Rating:  p.Rating,
		})
	}
	return places, nil
}

// FindEmail runs a regular Google search for the business and scans answer
// box, organic results and knowledge graph text for an email address.
// Returns "" when none is found.
func (s *SerpAPIClient) FindEmail(name string) (string, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", fmt.Sprintf("%s %s email", name, s.City))
	params.Set("location", s.City)

	var payload struct {
		AnswerBox struct {
			Answer  string `json:"answer"`
			Snippet string `json:"snippet"`
		} `json:"answer_box"`
		OrganicResults []struct {
			Snippet string `json:"snippet"`
			Title   string `json:"title"`
		} `json:"organic_results"`
		KnowledgeGraph struct {
			Description string `json:"description"`
			Title       string `json:"title"`
		} `json:"knowledge_graph"`
	}
	if err := s.get(params, &payload); err != nil {
		return "", err
	}

	fields := []string{payload.AnswerBox.Answer, payload.AnswerBox.Snippet}
	for _, block := range payload.OrganicResults {
		fields = append(fields, block.Snippet, block.Title)
	}
	fields = append(fields, payload.KnowledgeGraph.Description, payload.KnowledgeGraph.Title)

	for _, text := range fields {
		if email := emailRegex.FindString(text); email != "" {
			return email, nil
		}
	}
	return "", nil
}
