package models

import "time"

// SlotCounts holds a counter per slot.
type SlotCounts [NumSlots]int

// Total sums the counter across slots.
func (c SlotCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// LatencyStats summarises the slow-response samples, in seconds.
type LatencyStats struct {
	Samples int
	Mean    float64
	Median  float64
	Mode    float64
}

// Overview is a read-only snapshot of the run-wide statistics.
type Overview struct {
	Counts           [NumKinds]SlotCounts
	SeekersWithIssue int
	TotalSeekers     int
	Latencies        []float64

	// Latency is nil when no response exceeded the slow threshold.
	Latency *LatencyStats
}

// Count returns the per-slot counters for kind.
func (o *Overview) Count(kind IssueKind) SlotCounts {
	if kind < 0 || int(kind) >= NumKinds {
		return SlotCounts{}
	}
	return o.Counts[kind]
}

// Summary is what the report writers receive once every coach is done.
type Summary struct {
	RunID         string
	StartedAt     time.Time
	Timeout       time.Duration
	SlowThreshold time.Duration
	Overview      Overview
}

// RunResult is the outcome of a complete run.
type RunResult struct {
	RunID         string
	StartTime     time.Time
	EndTime       time.Time
	Reports       []*CoachReport
	Overview      Overview
	FailedCoaches []string
	Artifacts     []string
}
