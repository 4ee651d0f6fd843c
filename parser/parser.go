package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/not200club/models"
)

var schemePattern = regexp.MustCompile(`^https?://`)

// NormalizeURL returns raw with an https:// scheme when it has none. Blank
// input yields the empty string, which marks a missing link.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !schemePattern.MatchString(raw) {
		return "https://" + raw
	}
	return raw
}

// NormalizeCoach maps a blank coach cell to the default coach.
func NormalizeCoach(coach string) string {
	coach = strings.TrimSpace(coach)
	if coach == "" {
		return models.DefaultCoach
	}
	return coach
}

// ValidateSeeker ensures an ingested row captured the required fields.
func ValidateSeeker(s *models.Seeker) error {
	if s == nil {
		return fmt.Errorf("seeker is nil")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("seeker missing name")
	}
	if strings.TrimSpace(s.Coach) == "" {
		return fmt.Errorf("seeker %s missing coach", s.Name)
	}
	return nil
}
