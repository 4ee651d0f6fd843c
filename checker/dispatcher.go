package checker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/aluiziolira/not200club/models"
	"github.com/aluiziolira/not200club/overview"
	"github.com/aluiziolira/not200club/parser"
)

const progressEvery = 50

// URLProber is the probe a Dispatcher fans out.
type URLProber interface {
	Probe(url string) []models.Issue
}

// Dispatcher runs the probes of one coach's seekers on a bounded worker pool.
type Dispatcher struct {
	prober  URLProber
	workers int
	metrics *Metrics

	probed int64
}

type probeTask struct {
	seeker int
	slot   models.Slot
	url    string
}

// NewDispatcher returns a dispatcher running at most workers probes at once.
// A non-positive count defaults to twice the CPU count.
func NewDispatcher(prober URLProber, workers int, metrics *Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 2 * runtime.NumCPU()
	}
	return &Dispatcher{
		prober:  prober,
		workers: workers,
		metrics: metrics,
	}
}

// Probed returns the number of probes completed so far.
func (d *Dispatcher) Probed() int64 {
	return atomic.LoadInt64(&d.probed)
}

// Dispatch probes every slot of every seeker and waits for all of them. Slot
// outcomes are recorded into agg as they complete. The report lists, in
// roster order, only seekers with at least one issue.
//
// Dispatch fails if a probe panics or ctx is cancelled before every task was
// handed to a worker; tasks already running still finish first.
func (d *Dispatcher) Dispatch(ctx context.Context, coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error) {
	if agg == nil {
		agg = overview.New()
	}

	results := make([]*models.SeekerIssues, len(seekers))
	tasks := make([]probeTask, 0, len(seekers)*models.NumSlots)
	for i, seeker := range seekers {
		results[i] = &models.SeekerIssues{
			Seeker: seeker.Name,
			Status: seeker.Status,
			Email:  seeker.Email,
		}
		for _, slot := range models.Slots {
			tasks = append(tasks, probeTask{
				seeker: i,
				slot:   slot,
				url:    parser.NormalizeURL(seeker.URL(slot)),
			})
		}
	}

	report := &models.CoachReport{Coach: coach}
	if len(tasks) == 0 {
		return report, nil
	}

	workers := d.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	taskCh := make(chan probeTask)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				if err := d.run(task, results, agg); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					errMu.Unlock()
				}
			}
		}()
	}

	var cancelErr error
feed:
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		select {
		case <-ctx.Done():
			cancelErr = ctx.Err()
			break feed
		case taskCh <- task:
		}
	}
	close(taskCh)
	wg.Wait()

	if cancelErr != nil {
		return nil, fmt.Errorf("dispatch cancelled: %w", cancelErr)
	}
	if firstErr != nil {
		return nil, fmt.Errorf("dispatch: %w", firstErr)
	}

	for _, seekerIssues := range results {
		if seekerIssues.HasIssues() {
			report.Seekers = append(report.Seekers, seekerIssues)
		}
	}
	return report, nil
}

// run probes one task. Each task owns its (seeker, slot) cell, so writes
// need no locking.
func (d *Dispatcher) run(task probeTask, results []*models.SeekerIssues, agg *overview.Aggregator) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrProbePanic, task.url, r)
		}
	}()

	issues := d.prober.Probe(task.url)
	results[task.seeker].Slots[task.slot] = issues
	agg.Record(task.slot, issues)
	d.metrics.ObserveIssues(task.slot, issues)

	current := atomic.AddInt64(&d.probed, 1)
	if current%progressEvery == 0 {
		slog.Debug("probe progress",
			slog.Int64("probed", current),
			slog.String("url", task.url),
		)
	}
	return nil
}
