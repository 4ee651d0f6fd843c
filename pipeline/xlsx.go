package pipeline

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/aluiziolira/not200club/models"
	"github.com/xuri/excelize/v2"
)

const (
	maxSheetName   = 31
	maxColumnWidth = 200
)

var sheetNameReplacer = strings.NewReplacer(
	"[", "(", "]", ")", ":", "-", "*", "-", "?", "", "/", "-", "\\", "-",
)

// XLSXWriter renders one sheet per coach plus the Issue Legend and Overview
// sheets. The workbook is saved after every write so a crash mid-run keeps
// the coaches already checked.
type XLSXWriter struct {
	path   string
	file   *excelize.File
	bold   int
	wrap   int
	spare  string
	used   map[string]struct{}
	closed bool
	mu     sync.Mutex
}

// NewXLSXWriter prepares an empty workbook that will be saved at path.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create cell style: %w", err)
	}

	return &XLSXWriter{
		path:  path,
		file:  f,
		bold:  bold,
		wrap:  wrap,
		spare: f.GetSheetName(f.GetActiveSheetIndex()),
		used: map[string]struct{}{
			strings.ToLower(overviewSheet): {},
			strings.ToLower(legendSheet):   {},
		},
	}, nil
}

// WriteCoach adds a sheet for report and saves the workbook.
func (xw *XLSXWriter) WriteCoach(report *models.CoachReport) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.closed {
		return ErrWriterClosed
	}

	sheet := xw.uniqueSheetName(report.Coach)
	if err := xw.addSheet(sheet); err != nil {
		return fmt.Errorf("add sheet for %s: %w", report.Coach, err)
	}

	header := make([]interface{}, len(coachHeader))
	for i, h := range coachHeader {
		header[i] = h
	}
	rows := [][]interface{}{header}
	for _, seeker := range report.Seekers {
		row := []interface{}{seeker.Seeker, seeker.Status}
		for _, slot := range models.Slots {
			row = append(row, models.DescribeIssues(seeker.Slots[slot], "\n"))
		}
		rows = append(rows, row)
	}

	if err := xw.writeRows(sheet, rows); err != nil {
		return err
	}
	if err := xw.file.SetCellStyle(sheet, "A1", cellName(len(coachHeader), 1), xw.bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if len(report.Seekers) > 0 {
		last := cellName(len(coachHeader), len(report.Seekers)+1)
		if err := xw.file.SetCellStyle(sheet, "C2", last, xw.wrap); err != nil {
			return fmt.Errorf("style issues: %w", err)
		}
	}
	return xw.save()
}

// WriteSummary adds the Issue Legend and Overview sheets, makes the Overview
// the active sheet and saves the workbook.
func (xw *XLSXWriter) WriteSummary(summary *models.Summary) error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.closed {
		return ErrWriterClosed
	}

	if err := xw.addSheet(legendSheet); err != nil {
		return fmt.Errorf("add legend sheet: %w", err)
	}
	if err := xw.writeRows(legendSheet, legendRows(summary)); err != nil {
		return err
	}

	if err := xw.addSheet(overviewSheet); err != nil {
		return fmt.Errorf("add overview sheet: %w", err)
	}
	if err := xw.writeRows(overviewSheet, overviewRows(summary)); err != nil {
		return err
	}

	idx, err := xw.file.GetSheetIndex(overviewSheet)
	if err != nil {
		return fmt.Errorf("locate overview sheet: %w", err)
	}
	xw.file.SetActiveSheet(idx)
	return xw.save()
}

// Close releases the workbook. Content is already on disk.
func (xw *XLSXWriter) Close() error {
	xw.mu.Lock()
	defer xw.mu.Unlock()

	if xw.closed {
		return nil
	}
	xw.closed = true
	return xw.file.Close()
}

// Validate ensures the workbook was saved and is not empty.
func (xw *XLSXWriter) Validate() error {
	info, err := os.Stat(xw.path)
	if err != nil {
		return fmt.Errorf("stat xlsx file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("xlsx file is empty")
	}
	return nil
}

// addSheet creates name, reusing the blank default sheet the first time.
func (xw *XLSXWriter) addSheet(name string) error {
	if xw.spare != "" {
		spare := xw.spare
		xw.spare = ""
		return xw.file.SetSheetName(spare, name)
	}
	_, err := xw.file.NewSheet(name)
	return err
}

// writeRows fills sheet from A1 and fits each column to its longest line.
func (xw *XLSXWriter) writeRows(sheet string, rows [][]interface{}) error {
	widths := make(map[int]int)
	for i, row := range rows {
		if err := xw.file.SetSheetRow(sheet, cellName(1, i+1), &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
		for col, value := range row {
			if w := displayWidth(fmt.Sprint(value)); w > widths[col+1] {
				widths[col+1] = w
			}
		}
	}

	for col, width := range widths {
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		if width == 0 {
			continue
		}
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		if err := xw.file.SetColWidth(sheet, name, name, float64(width)+2); err != nil {
			return fmt.Errorf("set %s column width: %w", sheet, err)
		}
	}
	return nil
}

func (xw *XLSXWriter) save() error {
	if err := xw.file.SaveAs(xw.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// uniqueSheetName turns coach into a legal sheet name not used before.
func (xw *XLSXWriter) uniqueSheetName(coach string) string {
	base := SanitizeSheetName(coach)
	name := base
	for n := 2; ; n++ {
		if _, taken := xw.used[strings.ToLower(name)]; !taken {
			break
		}
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	xw.used[strings.ToLower(name)] = struct{}{}
	return name
}

// SanitizeSheetName replaces characters Excel rejects in sheet names and
// truncates to 31 characters.
func SanitizeSheetName(name string) string {
	name = strings.TrimSpace(sheetNameReplacer.Replace(name))
	name = strings.Trim(name, "'")
	if name == "" {
		name = models.DefaultCoach
	}
	return truncateRunes(name, maxSheetName)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func displayWidth(s string) int {
	width := 0
	for _, line := range strings.Split(s, "\n") {
		if n := utf8.RuneCountInString(line); n > width {
			width = n
		}
	}
	return width
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
