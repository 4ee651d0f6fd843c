package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/aluiziolira/not200club/models"
)

const (
	overviewSheet = "Overview"
	legendSheet   = "Issue Legend"

	startedAtLayout = "01/02/2006, 15:04:05"
)

// coachHeader is the bold first row of every coach sheet.
var coachHeader = []string{"Seeker Name", "Seeker Status", "Solo Issues", "Capstone Issues", "Group Issues"}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func ranAt(summary *models.Summary) string {
	return fmt.Sprintf("Script ran at %s for this sheet", summary.StartedAt.Format(startedAtLayout))
}

func countRow(label string, counts models.SlotCounts) []interface{} {
	return []interface{}{
		label,
		fmt.Sprintf("Total: %d", counts.Total()),
		fmt.Sprintf("Solo: %d", counts[models.Solo]),
		fmt.Sprintf("Capstone: %d", counts[models.Capstone]),
		fmt.Sprintf("Group: %d", counts[models.Group]),
	}
}

// overviewRows renders the run overview as sheet rows.
func overviewRows(summary *models.Summary) [][]interface{} {
	ov := &summary.Overview

	rows := [][]interface{}{
		{"TOTAL SEEKERS WITH ISSUES", fmt.Sprintf("%d/%d", ov.SeekersWithIssue, ov.TotalSeekers), "", ranAt(summary)},
		countRow(fmt.Sprintf("SITES WITH TIMES %ss>", seconds(summary.SlowThreshold)), ov.Count(models.KindTime)),
	}

	if stats := ov.Latency; stats != nil {
		rows = append(rows, []interface{}{
			"LOADING TIME STATS",
			fmt.Sprintf("Mean: %.2fs", stats.Mean),
			fmt.Sprintf("Mode: %.2fs", stats.Mode),
			fmt.Sprintf("Median: %.2fs", stats.Median),
		})
	} else {
		rows = append(rows, []interface{}{"LOADING TIME STATS", "No loading issues found"})
	}

	if summary.Timeout > 0 {
		rows = append(rows, countRow("SITES THAT TIMEOUT", ov.Count(models.KindTimeout)))
	} else {
		rows = append(rows, []interface{}{"TIMEOUT NOT SET"})
	}

	rows = append(rows,
		countRow("SITES WITH NO URLS", ov.Count(models.KindNoLink)),
		countRow("SITES WITH BAD URLS", ov.Count(models.KindBadURL)),
		countRow("SITES WITH BAD STATUS", ov.Count(models.KindStatus)),
	)
	return rows
}

// legendRows explains each issue kind.
func legendRows(summary *models.Summary) [][]interface{} {
	timeout := "none"
	if summary.Timeout > 0 {
		timeout = seconds(summary.Timeout) + "s"
	}
	return [][]interface{}{
		{"Issue Type", "Explained", ranAt(summary)},
		{"Status", "Will most likely be a 404 or a 503 - both mean the site is down"},
		{"Bad URL", "The site's URL doesn't work, The script was unable to even try to check it"},
		{"Time", fmt.Sprintf("The amount of time in seconds it took to get a response from the site - it needs to have taken longer than %ss to be listed", seconds(summary.SlowThreshold))},
		{"Timeout", fmt.Sprintf("The site took longer than the given timeout(%s) and gave up on the site", timeout)},
		{"No-link", "Means there was no url listed in Salesforce for that project"},
	}
}
