// Package parser normalizes roster input: URL cleanup, coach defaults and
// loading the roster spreadsheet or CSV export.
package parser

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aluiziolira/not200club/models"
	"github.com/xuri/excelize/v2"
)

// Column layout of a roster row. The email column is optional.
const (
	colSeeker = iota
	colCoach
	colStatus
	colSolo
	colCapstone
	colGroup
	colEmail

	requiredColumns = colGroup + 1
)

var (
	// ErrEmptySource is returned when the roster file or directory has no data.
	ErrEmptySource = errors.New("roster source is empty")
	// ErrUnsupportedFormat is returned for files that are neither .xlsx nor .csv.
	ErrUnsupportedFormat = errors.New("unsupported roster format")
	// ErrMissingColumns is returned when the header row is too short.
	ErrMissingColumns = errors.New("roster is missing required columns")
	// ErrStaleRoster is returned when an old roster was not confirmed.
	ErrStaleRoster = errors.New("roster file is stale")
)

// FileSource reads the roster from an .xlsx workbook or a .csv export. Path
// may name the file itself or a directory holding it.
type FileSource struct {
	Path string

	// MaxAge triggers Confirm for files modified longer ago. Zero disables
	// the check.
	MaxAge time.Duration

	// Confirm decides whether a stale roster may still be used. A nil Confirm
	// rejects stale files.
	Confirm func(age time.Duration) bool

	now      func() time.Time
	resolved string
}

// NewFileSource builds a source for path.
func NewFileSource(path string, maxAge time.Duration, confirm func(time.Duration) bool) *FileSource {
	return &FileSource{
		Path:    path,
		MaxAge:  maxAge,
		Confirm: confirm,
		now:     time.Now,
	}
}

// Validate checks that the source exists, holds data in a supported format,
// and is recent enough.
func (s *FileSource) Validate() error {
	path, err := resolvePath(s.Path)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat roster: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptySource, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".csv":
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}

	if s.MaxAge > 0 {
		now := time.Now
		if s.now != nil {
			now = s.now
		}
		age := now().Sub(info.ModTime())
		if age > s.MaxAge && (s.Confirm == nil || !s.Confirm(age)) {
			return fmt.Errorf("%w: %s was modified %s ago", ErrStaleRoster, filepath.Base(path), age.Round(time.Hour))
		}
	}

	s.resolved = path
	return nil
}

// Resolved returns the file chosen by Validate.
func (s *FileSource) Resolved() string {
	return s.resolved
}

// Load reads every row into a Roster. Validate runs first when it has not
// been called yet.
func (s *FileSource) Load(ctx context.Context) (*models.Roster, error) {
	if ctx != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if s.resolved == "" {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(s.resolved), ".csv") {
		rows, err = readCSV(s.resolved)
	} else {
		rows, err = readXLSX(s.resolved)
	}
	if err != nil {
		return nil, err
	}
	return BuildRoster(rows)
}

// BuildRoster converts raw rows, header first, into a Roster.
func BuildRoster(rows [][]string) (*models.Roster, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySource
	}
	if got := len(rows[0]); got < requiredColumns {
		return nil, fmt.Errorf("%w: header has %d columns, want at least %d", ErrMissingColumns, got, requiredColumns)
	}

	roster := models.NewRoster()
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		seeker := &models.Seeker{
			Name:   cell(row, colSeeker),
			Coach:  NormalizeCoach(cell(row, colCoach)),
			Status: cell(row, colStatus),
			Email:  cell(row, colEmail),
			URLs: [models.NumSlots]string{
				cell(row, colSolo),
				cell(row, colCapstone),
				cell(row, colGroup),
			},
		}
		if err := ValidateSeeker(seeker); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		roster.Add(seeker)
	}
	return roster, nil
}

func resolvePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("roster path cannot be empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat roster: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("read roster directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		return filepath.Join(path, entry.Name()), nil
	}
	return "", fmt.Errorf("%w: no roster file in %s", ErrEmptySource, path)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv roster: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv roster: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx roster: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
