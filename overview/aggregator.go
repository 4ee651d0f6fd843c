// Package overview accumulates run-wide issue counters and latency samples.
package overview

import (
	"sync"
	"time"

	"github.com/aluiziolira/not200club/models"
)

// Aggregator collects per-slot issue counters and slow-response samples. All
// methods are safe for concurrent use.
type Aggregator struct {
	mu               sync.Mutex
	counts           [models.NumKinds]models.SlotCounts
	latencies        []float64
	seekersWithIssue int
	totalSeekers     int
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Inc increments the counter for (slot, kind).
func (a *Aggregator) Inc(slot models.Slot, kind models.IssueKind) {
	if !validSlot(slot) || !validKind(kind) {
		return
	}
	a.mu.Lock()
	a.counts[kind][slot]++
	a.mu.Unlock()
}

// AddLatency appends a slow-response sample.
func (a *Aggregator) AddLatency(d time.Duration) {
	a.mu.Lock()
	a.latencies = append(a.latencies, d.Seconds())
	a.mu.Unlock()
}

// Record counts every issue found for a slot and keeps the latency of slow
// responses.
func (a *Aggregator) Record(slot models.Slot, issues []models.Issue) {
	if len(issues) == 0 || !validSlot(slot) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, issue := range issues {
		if !validKind(issue.Kind) {
			continue
		}
		a.counts[issue.Kind][slot]++
		if issue.Kind == models.KindTime {
			a.latencies = append(a.latencies, issue.Elapsed.Seconds())
		}
	}
}

// AddSeekersWithIssue adds n to the count of seekers with at least one issue.
func (a *Aggregator) AddSeekersWithIssue(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	a.seekersWithIssue += n
	a.mu.Unlock()
}

// SetTotalSeekers records the roster size.
func (a *Aggregator) SetTotalSeekers(n int) {
	a.mu.Lock()
	a.totalSeekers = n
	a.mu.Unlock()
}

// Merge folds the counters and samples of other into a. other must not be
// a itself.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil || other == a {
		return
	}

	other.mu.Lock()
	counts := other.counts
	latencies := make([]float64, len(other.latencies))
	copy(latencies, other.latencies)
	withIssue := other.seekersWithIssue
	other.mu.Unlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	for kind := range counts {
		for slot := range counts[kind] {
			a.counts[kind][slot] += counts[kind][slot]
		}
	}
	a.latencies = append(a.latencies, latencies...)
	a.seekersWithIssue += withIssue
}

// Snapshot returns a copy of the current state with latency statistics.
func (a *Aggregator) Snapshot() models.Overview {
	a.mu.Lock()
	defer a.mu.Unlock()

	latencies := make([]float64, len(a.latencies))
	copy(latencies, a.latencies)

	return models.Overview{
		Counts:           a.counts,
		SeekersWithIssue: a.seekersWithIssue,
		TotalSeekers:     a.totalSeekers,
		Latencies:        latencies,
		Latency:          Summarize(latencies),
	}
}

func validSlot(slot models.Slot) bool {
	return slot >= 0 && int(slot) < models.NumSlots
}

func validKind(kind models.IssueKind) bool {
	return kind >= 0 && int(kind) < models.NumKinds
}
