// Package pipeline runs a health check end to end and renders its reports.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/not200club/models"
	"github.com/aluiziolira/not200club/overview"
)

// Source validates and loads the roster.
type Source interface {
	Validate() error
	Load(ctx context.Context) (*models.Roster, error)
}

// Dispatcher checks every seeker of one coach.
type Dispatcher interface {
	Dispatch(ctx context.Context, coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error)
}

// Uploader ships the export document to a document store.
type Uploader interface {
	Upload(ctx context.Context, runID string, payload []byte) error
}

// CoachObserver is told the result of every coach dispatch.
type CoachObserver interface {
	IncCoach(result string)
}

// Options tunes a Pipeline.
type Options struct {
	RunID           string
	Timeout         time.Duration
	SlowThreshold   time.Duration
	ContinueOnError bool
	// JSONPath is where the export document is written; empty skips it.
	JSONPath string
	Uploader Uploader
	Observer CoachObserver
}

// Pipeline coordinates validation, ingestion, dispatch, summary and export.
type Pipeline struct {
	source     Source
	dispatcher Dispatcher
	writer     ReportWriter
	opts       Options
}

// NewPipeline wires a run. writer receives every coach report as soon as
// the coach is done.
func NewPipeline(source Source, dispatcher Dispatcher, writer ReportWriter, opts Options) *Pipeline {
	return &Pipeline{
		source:     source,
		dispatcher: dispatcher,
		writer:     writer,
		opts:       opts,
	}
}

// Run executes one full pass over the roster. The returned result is never
// nil and reflects how far the run got. Errors are *PhaseError.
func (p *Pipeline) Run(ctx context.Context) (*models.RunResult, error) {

	start := time.Now()
	result := &models.RunResult{RunID: p.opts.RunID, StartTime: start}
	finish := func(err error) (*models.RunResult, error) {
		result.EndTime = time.Now()
		return result, err
	}

	if err := p.source.Validate(); err != nil {
		return finish(phaseErr(PhaseValidate, "", err))
	}

	roster, err := p.source.Load(ctx)
	if err != nil {
		return finish(phaseErr(PhaseIngest, "", err))
	}
	slog.Info("roster loaded",
		slog.Int("coaches", len(roster.Coaches())),
		slog.Int("seekers", roster.Len()),
		slog.Int("rows", roster.Rows()),
	)

	global := overview.New()
	global.SetTotalSeekers(roster.Rows())

	var coachErrs []error
	for _, coach := range roster.Coaches() {
		if err := ctx.Err(); err != nil {
			return finish(phaseErr(PhaseDispatch, coach, err))
		}

		report, local, err := p.dispatchCoach(ctx, coach, roster.Seekers(coach))
		if err != nil {
			perr := phaseErr(PhaseDispatch, coach, err)
			slog.Error("coach dispatch failed",
				slog.String("coach", coach),
				slog.Any("error", err),
			)
			result.FailedCoaches = append(result.FailedCoaches, coach)
			if !p.opts.ContinueOnError || ctx.Err() != nil {
				return finish(perr)
			}
			coachErrs = append(coachErrs, perr)
			continue
		}

		global.Merge(local)
		result.Reports = append(result.Reports, report)
		if err := p.writer.WriteCoach(report); err != nil {
			return finish(phaseErr(PhaseDispatch, coach, fmt.Errorf("write report: %w", err)))
		}
	}

	result.Overview = global.Snapshot()
	summary := &models.Summary{
		RunID:         p.opts.RunID,
		StartedAt:     start,
		Timeout:       p.opts.Timeout,
		SlowThreshold: p.opts.SlowThreshold,
		Overview:      result.Overview,
	}
	if err := p.writer.WriteSummary(summary); err != nil {
		return finish(phaseErr(PhaseSummarize, "", err))
	}
	if err := p.writer.Validate(); err != nil {
		return finish(phaseErr(PhaseSummarize, "", err))
	}

	if err := p.export(ctx, result); err != nil {
		return finish(phaseErr(PhaseExport, "", err))
	}

	if len(coachErrs) > 0 {
		return finish(phaseErr(PhaseDispatch, "", errors.Join(append([]error{ErrCoachesFailed}, coachErrs...)...)))
	}
	return finish(nil)
}

// dispatchCoach checks one coach into a fresh aggregator so a failure leaves
// the run totals untouched.
func (p *Pipeline) dispatchCoach(ctx context.Context, coach string, seekers []*models.Seeker) (*models.CoachReport, *overview.Aggregator, error) {
	started := time.Now()
	local := overview.New()

	report, err := p.dispatcher.Dispatch(ctx, coach, seekers, local)
	if err != nil {
		p.observe("failed")
		return nil, nil, err
	}
	p.observe("ok")

	local.AddSeekersWithIssue(len(report.Seekers))
	slog.Info("coach checked",
		slog.String("coach", coach),
		slog.Int("seekers", len(seekers)),
		slog.Int("with_issues", len(report.Seekers)),
		slog.Duration("took", time.Since(started)),
	)
	return report, local, nil
}

func (p *Pipeline) export(ctx context.Context, result *models.RunResult) error {
	if p.opts.JSONPath == "" && p.opts.Uploader == nil {
		return nil
	}

	doc := BuildDocument(result.Reports)
	if p.opts.JSONPath != "" {
		if err := WriteDocument(p.opts.JSONPath, doc); err != nil {
			return err
		}
		result.Artifacts = append(result.Artifacts, p.opts.JSONPath)
	}

	if p.opts.Uploader != nil {
		payload, err := doc.Marshal()
		if err != nil {
			return err
		}
		if err := p.opts.Uploader.Upload(ctx, p.opts.RunID, payload); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		slog.Info("export uploaded", slog.Int("bytes", len(payload)))
	}
	return nil
}

func (p *Pipeline) observe(result string) {
	if p.opts.Observer != nil {
		p.opts.Observer.IncCoach(result)
	}
}
