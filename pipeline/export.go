package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aluiziolira/not200club/models"
)

// Document is the exported issue map: coach -> seeker -> entry.
type Document map[string]map[string]SeekerEntry

// SeekerEntry holds every slot's issues, keyed by issue kind, plus the
// seeker's email. A clean slot is an empty object.
type SeekerEntry map[string]interface{}

// BuildDocument converts coach reports into the export document.
func BuildDocument(reports []*models.CoachReport) Document {
	doc := make(Document, len(reports))
	for _, report := range reports {
		seekers := make(map[string]SeekerEntry, len(report.Seekers))
		for _, seeker := range report.Seekers {
			entry := SeekerEntry{"email": seeker.Email}
			for _, slot := range models.Slots {
				issues := make(map[string]interface{}, len(seeker.Slots[slot]))
				for _, issue := range seeker.Slots[slot] {
					issues[issue.Kind.Key()] = issue.Value()
				}
				entry[slot.String()] = issues
			}
			seekers[seeker.Seeker] = entry
		}
		doc[report.Coach] = seekers
	}
	return doc
}

// Marshal encodes the document as JSON.
func (d Document) Marshal() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode export document: %w", err)
	}
	return data, nil
}

// WriteDocument writes doc to filename, creating parent directories.
func WriteDocument(filename string, doc Document) error {
	if err := ensureDir(filename); err != nil {
		return err
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	if err := json.NewEncoder(buffer).Encode(doc); err != nil {
		f.Close()
		return fmt.Errorf("encode json document: %w", err)
	}
	if err := buffer.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return f.Close()
}
