package utils

import (
	"fmt"
	"log"
	"strings"

	"leadgen/models"
)

// MapsSearcher and CopyWriter are the external collaborators behind lead
// generation; the HTTP clients above implement them and tests use fakes.
type MapsSearcher interface {
	SearchPlaces(niche string, start int) ([]Place, error)
	FindEmail(name string) (string, error)
}

type CopyWriter interface {
	WriteCopy(name, city, category string, rating float64) (about, email string, err error)
}

// Instruction is one entry of the /generate request body.
type Instruction struct {
	Niche string `json:"niche" validate:"required"`
	Count int    `json:"count" validate:"required,min=1"`
}

// LeadGenerator discovers businesses per niche and drafts outreach copy for
// each. New leads start Drafted; nothing here touches the send lifecycle.
type LeadGenerator struct {
	Search     MapsSearcher
	Writer     CopyWriter
	City       string
	SenderName string
	Logger     *log.Logger
}

func NewLeadGenerator(search MapsSearcher, writer CopyWriter, city, senderName string, logger *log.Logger) *LeadGenerator {
	return &LeadGenerator{
		Search:     search,
		Writer:     writer,
		City:       city,
		SenderName: senderName,
		Logger:     logger,
	}
}

// Generate collects up to count new leads per niche, skipping businesses
// already present (case-insensitive name match) and businesses without a
// discoverable email. Collaborator failures skip the place, never abort the
// whole run.
func (g *LeadGenerator) Generate(instructions []Instruction, existing []models.Lead) []models.Lead {
	seenNames := make(map[string]bool, len(existing))
	seenPlaceIDs := make(map[string]bool, len(existing))
	for _, lead := range existing {
		seenNames[strings.ToLower(lead.Name)] = true
		seenPlaceIDs[lead.PlaceID] = true
	}

	var generated []models.Lead
	for _, inst := range instructions {
		collected := 0
		for start := 0; collected < inst.Count && start <= 120; start += 20 {
			places, err := g.Search.SearchPlaces(inst.Niche, start)
			if err != nil {
				g.Logger.Printf("Maps search failed for %q (start=%d): %v", inst.Niche, start, err)
				break
			}
			if len(places) == 0 {
				break
			}

			for _, place := range places {
				if collected >= inst.Count {
					break
				}
				if seenNames[strings.ToLower(place.Name)] || seenPlaceIDs[place.PlaceID] {
					continue
				}

				email, err := g.Search.FindEmail(place.Name)
				if err != nil {
					g.Logger.Printf("Email lookup failed for %q: %v", place.Name, err)
					continue
				}
				if email == "" {
					g.Logger.Printf("No email for %q, skipping", place.Name)
					continue
				}

				about, emailBody, err := g.Writer.WriteCopy(place.Name, g.City, inst.Niche, place.Rating)
				if err != nil {
					g.Logger.Printf("Copy generation failed for %q: %v", place.Name, err)
					continue
				}

				generated = append(generated, models.Lead{
					PlaceID:         place.PlaceID,
					Name:            place.Name,
					Email:           email,
					Address:         place.Address,
					Phone:           place.Phone,
					Category:        inst.Niche,
					MapsURL:         place.MapsURL,
					Rating:          place.Rating,
					About:           about,
					EmailSubject:    fmt.Sprintf("Quick idea for %s", place.Name),
					EmailBody:       fmt.Sprintf("Hello,\n\n%s\n\nThank you,\nOwner of %s", emailBody, g.SenderName),
					ValidationNotes: "Generated via automation",
					Status:          models.StatusDrafted,
				})
				seenNames[strings.ToLower(place.Name)] = true
				seenPlaceIDs[place.PlaceID] = true
				collected++
			}
		}
	}
	return generated
}
