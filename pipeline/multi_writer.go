package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/not200club/models"
)

type namedWriter struct {
	name   string
	writer ReportWriter
}

// MultiWriter fans reports out to several writers, e.g. XLSX and CSV.
type MultiWriter struct {
	writers []namedWriter
	mu      sync.Mutex
}

// NewMultiWriter returns an empty MultiWriter; register outputs with Add.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add registers w under name, used to tag its errors.
func (mw *MultiWriter) Add(name string, w ReportWriter) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.writers = append(mw.writers, namedWriter{name: name, writer: w})
}

// Len returns the number of registered writers.
func (mw *MultiWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return len(mw.writers)
}

// WriteCoach forwards report to every writer, stopping at the first failure.
func (mw *MultiWriter) WriteCoach(report *models.CoachReport) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, nw := range mw.writers {
		if err := nw.writer.WriteCoach(report); err != nil {
			return fmt.Errorf("%s write failed: %w", nw.name, err)
		}
	}
	return nil
}

// WriteSummary forwards summary to every writer, stopping at the first
// failure.
func (mw *MultiWriter) WriteSummary(summary *models.Summary) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	for _, nw := range mw.writers {
		if err := nw.writer.WriteSummary(summary); err != nil {
			return fmt.Errorf("%s summary failed: %w", nw.name, err)
		}
	}
	return nil
}

// Close closes every writer and joins their errors.
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, nw := range mw.writers {
		if err := nw.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", nw.name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates every output and joins their errors.
func (mw *MultiWriter) Validate() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, nw := range mw.writers {
		if err := nw.writer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation failed: %w", nw.name, err))
		}
	}
	return errors.Join(errs...)
}
