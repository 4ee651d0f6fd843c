package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aluiziolira/not200club/models"
)

// ReportWriter receives coach reports as they complete and the run summary
// at the end.
type ReportWriter interface {
	WriteCoach(report *models.CoachReport) error
	WriteSummary(summary *models.Summary) error
	Close() error
	Validate() error
}

// CSVWriter writes one flat row per seeker with issues.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	closed bool
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"coach", "seeker", "status", "email", "solo", "capstone", "group"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// WriteCoach appends the seekers of one coach.
func (cw *CSVWriter) WriteCoach(report *models.CoachReport) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return ErrWriterClosed
	}
	for _, seeker := range report.Seekers {
		record := []string{report.Coach, seeker.Seeker, seeker.Status, seeker.Email}
		for _, slot := range models.Slots {
			record = append(record, models.DescribeIssues(seeker.Slots[slot], "; "))
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// WriteSummary is a no-op; the CSV only carries per-seeker rows.
func (cw *CSVWriter) WriteSummary(*models.Summary) error {
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.closed {
		return nil
	}
	cw.closed = true
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.file.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file exists and has content.
func (cw *CSVWriter) Validate() error {
	info, err := os.Stat(cw.file.Name())
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
