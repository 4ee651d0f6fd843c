package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/not200club/checker"
	"github.com/aluiziolira/not200club/config"
	"github.com/aluiziolira/not200club/models"
	"github.com/aluiziolira/not200club/overview"
	"github.com/aluiziolira/not200club/parser"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	roster      *models.Roster
	validateErr error
	loadErr     error
}

func (ms *memorySource) Validate() error {
	return ms.validateErr
}

func (ms *memorySource) Load(context.Context) (*models.Roster, error) {
	if ms.loadErr != nil {
		return nil, ms.loadErr
	}
	return ms.roster, nil
}

type dispatchFunc func(coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error)

type stubDispatcher struct {
	calls []string
	fn    dispatchFunc
}

func (sd *stubDispatcher) Dispatch(ctx context.Context, coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error) {
	sd.calls = append(sd.calls, coach)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sd.fn(coach, seekers, agg)
}

// noLinkDispatcher reports every seeker with a missing solo URL.
func noLinkDispatcher(coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error) {
	report := &models.CoachReport{Coach: coach}
	for _, s := range seekers {
		issues := &models.SeekerIssues{Seeker: s.Name, Status: s.Status, Email: s.Email}
		issues.Slots[models.Solo] = []models.Issue{models.NoLink()}
		agg.Record(models.Solo, issues.Slots[models.Solo])
		report.Seekers = append(report.Seekers, issues)
	}
	return report, nil
}

type recordingUploader struct {
	runID   string
	payload []byte
	err     error
}

func (ru *recordingUploader) Upload(_ context.Context, runID string, payload []byte) error {
	ru.runID = runID
	ru.payload = payload
	return ru.err
}

type countingObserver struct {
	results map[string]int
}

func (co *countingObserver) IncCoach(result string) {
	if co.results == nil {
		co.results = make(map[string]int)
	}
	co.results[result]++
}

func threeCoachRoster() *models.Roster {
	roster := models.NewRoster()
	for _, coach := range []string{"CoachA", "CoachB", "CoachC"} {
		roster.Add(&models.Seeker{Name: coach + "-seeker", Coach: coach, Status: "Active", Email: strings.ToLower(coach) + "@example.com"})
	}
	return roster
}

func TestPipelineRunStreamsCoachesAndExports(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "export.json")
	writer := &recordingWriter{}
	observer := &countingObserver{}
	uploader := &recordingUploader{}

	p := NewPipeline(
		&memorySource{roster: threeCoachRoster()},
		&stubDispatcher{fn: noLinkDispatcher},
		writer,
		Options{RunID: "run-7", ContinueOnError: true, JSONPath: jsonPath, Uploader: uploader, Observer: observer},
	)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"CoachA", "CoachB", "CoachC"}, writer.coaches)
	assert.Equal(t, 1, writer.summaries)
	assert.Equal(t, 3, observer.results["ok"])
	assert.Equal(t, "run-7", result.RunID)
	assert.Len(t, result.Reports, 3)
	assert.Empty(t, result.FailedCoaches)
	assert.Equal(t, []string{jsonPath}, result.Artifacts)
	assert.False(t, result.EndTime.Before(result.StartTime))

	assert.Equal(t, 3, result.Overview.TotalSeekers)
	assert.Equal(t, 3, result.Overview.SeekersWithIssue)
	assert.Equal(t, 3, result.Overview.Count(models.KindNoLink)[models.Solo])

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(uploader.payload))
	assert.Equal(t, "run-7", uploader.runID)
}

func TestPipelineContinuesPastFailedCoach(t *testing.T) {
	boom := errors.New("probe panicked")
	dispatcher := &stubDispatcher{fn: func(coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error) {
		if coach == "CoachB" {
			// Partial state must not reach the run totals.
			agg.Record(models.Group, []models.Issue{models.BadStatus(500)})
			return nil, boom
		}
		return noLinkDispatcher(coach, seekers, agg)
	}}
	writer := &recordingWriter{}
	observer := &countingObserver{}

	p := NewPipeline(&memorySource{roster: threeCoachRoster()}, dispatcher, writer,
		Options{ContinueOnError: true, JSONPath: filepath.Join(t.TempDir(), "export.json"), Observer: observer})

	result, err := p.Run(context.Background())
	require.Error(t, err)

	var perr *PhaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseDispatch, perr.Phase)
	assert.ErrorIs(t, err, ErrCoachesFailed)
	assert.ErrorIs(t, err, boom)

	var coachErr *PhaseError
	require.ErrorAs(t, perr.Err, &coachErr)
	assert.Equal(t, "CoachB", coachErr.Coach)

	assert.Equal(t, []string{"CoachA", "CoachB", "CoachC"}, dispatcher.calls)
	assert.Equal(t, []string{"CoachA", "CoachC"}, writer.coaches)
	assert.Equal(t, []string{"CoachB"}, result.FailedCoaches)
	assert.Equal(t, 1, observer.results["failed"])
	assert.Zero(t, result.Overview.Count(models.KindStatus).Total())
	assert.Equal(t, 2, result.Overview.SeekersWithIssue)

	doc := BuildDocument(result.Reports)
	assert.NotContains(t, doc, "CoachB")
}

func TestPipelineAbortsWhenContinueDisabled(t *testing.T) {
	boom := errors.New("dispatch exploded")
	dispatcher := &stubDispatcher{fn: func(coach string, seekers []*models.Seeker, agg *overview.Aggregator) (*models.CoachReport, error) {
		if coach == "CoachB" {
			return nil, boom
		}
		return noLinkDispatcher(coach, seekers, agg)
	}}
	writer := &recordingWriter{}

	p := NewPipeline(&memorySource{roster: threeCoachRoster()}, dispatcher, writer, Options{ContinueOnError: false})
	_, err := p.Run(context.Background())

	var perr *PhaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseDispatch, perr.Phase)
	assert.Equal(t, "CoachB", perr.Coach)
	assert.Equal(t, []string{"CoachA", "CoachB"}, dispatcher.calls)
	assert.Zero(t, writer.summaries)
}

func TestPipelinePhaseErrors(t *testing.T) {
	tests := []struct {
		name   string
		source *memorySource
		writer *recordingWriter
		opts   Options
		phase  Phase
	}{
		{
			name:   "validate",
			source: &memorySource{validateErr: parser.ErrStaleRoster},
			writer: &recordingWriter{},
			phase:  PhaseValidate,
		},
		{
			name:   "ingest",
			source: &memorySource{loadErr: parser.ErrMissingColumns},
			writer: &recordingWriter{},
			phase:  PhaseIngest,
		},
		{
			name:   "write report",
			source: &memorySource{roster: threeCoachRoster()},
			writer: &recordingWriter{failWrite: errors.New("disk full")},
			phase:  PhaseDispatch,
		},
		{
			name:   "summary validation",
			source: &memorySource{roster: threeCoachRoster()},
			writer: &recordingWriter{failCheck: errors.New("empty")},
			phase:  PhaseSummarize,
		},
		{
			name:   "upload",
			source: &memorySource{roster: threeCoachRoster()},
			writer: &recordingWriter{},
			opts:   Options{Uploader: &recordingUploader{err: errors.New("401")}},
			phase:  PhaseExport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &stubDispatcher{fn: noLinkDispatcher}
			p := NewPipeline(tt.source, dispatcher, tt.writer, tt.opts)

			result, err := p.Run(context.Background())
			require.NotNil(t, result)

			var perr *PhaseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.phase, perr.Phase)
			if tt.phase == PhaseValidate || tt.phase == PhaseIngest {
				assert.Empty(t, dispatcher.calls)
			}
		})
	}
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dispatcher := &stubDispatcher{fn: noLinkDispatcher}
	p := NewPipeline(&memorySource{roster: threeCoachRoster()}, dispatcher, &recordingWriter{}, Options{ContinueOnError: true})

	_, err := p.Run(ctx)
	var perr *PhaseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, PhaseDispatch, perr.Phase)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dispatcher.calls)
}

func TestPipelineEndToEnd(t *testing.T) {
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "roster.csv")
	roster := strings.Join([]string{
		"Seeker,Coach,Status,Solo,Capstone,Group,Email",
		"Seeker1,CoachA,Active,,ok.example,https://slow.example,seeker1@example.com",
		"Seeker2,CoachA,Active,https://ok.example,https://ok.example,https://ok.example,",
		"Seeker3,,Hired,https://gone.example,,https://broken.example,seeker3@example.com",
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(rosterPath, []byte(roster), 0o644))

	cfg := config.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.SlowThreshold = 150 * time.Millisecond
	cfg.Workers = 4

	transport := httpmock.NewMockTransport()
	respond := func(url string, responder httpmock.Responder) {
		transport.RegisterResponder("GET", url, responder)
		transport.RegisterResponder("GET", url+"/", responder)
	}
	respond("https://ok.example", httpmock.NewStringResponder(http.StatusOK, "ok"))
	respond("https://gone.example", httpmock.NewStringResponder(http.StatusNotFound, "gone"))
	respond("https://broken.example", httpmock.NewErrorResponder(errors.New("connection refused")))
	respond("https://slow.example", func(req *http.Request) (*http.Response, error) {
		select {
		case <-time.After(400 * time.Millisecond):
			return httpmock.NewStringResponse(http.StatusOK, "slow"), nil
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	})

	metrics := checker.NewMetrics()
	prober, err := checker.NewProber(cfg, checker.WithTransport(transport), checker.WithMetrics(metrics))
	require.NoError(t, err)

	xlsxWriter, err := NewXLSXWriter(filepath.Join(dir, "report.xlsx"))
	require.NoError(t, err)
	csvWriter, err := NewCSVWriter(filepath.Join(dir, "report.csv"))
	require.NoError(t, err)
	writers := NewMultiWriter()
	writers.Add("xlsx", xlsxWriter)
	writers.Add("csv", csvWriter)
	defer writers.Close()

	jsonPath := filepath.Join(dir, "report.json")
	p := NewPipeline(
		parser.NewFileSource(rosterPath, 0, nil),
		checker.NewDispatcher(prober, cfg.Workers, metrics),
		writers,
		Options{RunID: "e2e", Timeout: cfg.Timeout, SlowThreshold: cfg.SlowThreshold, ContinueOnError: true, JSONPath: jsonPath, Observer: metrics},
	)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Reports, 2)
	coachA := result.Reports[0]
	assert.Equal(t, "CoachA", coachA.Coach)
	require.Len(t, coachA.Seekers, 1, "clean Seeker2 is omitted")

	seeker1 := coachA.Seekers[0]
	assert.Equal(t, "Seeker1", seeker1.Seeker)
	assert.True(t, seeker1.Has(models.Solo, models.KindNoLink))
	assert.Empty(t, seeker1.Slots[models.Capstone])
	assert.True(t, seeker1.Has(models.Group, models.KindTime))

	placements := result.Reports[1]
	assert.Equal(t, models.DefaultCoach, placements.Coach)
	seeker3, ok := placements.Find("Seeker3")
	require.True(t, ok)
	assert.True(t, seeker3.Has(models.Solo, models.KindStatus))
	assert.True(t, seeker3.Has(models.Capstone, models.KindNoLink))
	assert.True(t, seeker3.Has(models.Group, models.KindBadURL))

	ov := result.Overview
	assert.Equal(t, 3, ov.TotalSeekers)
	assert.Equal(t, 2, ov.SeekersWithIssue)
	assert.Equal(t, models.SlotCounts{1, 1, 0}, ov.Count(models.KindNoLink))
	assert.Equal(t, models.SlotCounts{0, 0, 1}, ov.Count(models.KindTime))
	assert.Equal(t, models.SlotCounts{1, 0, 0}, ov.Count(models.KindStatus))
	assert.Equal(t, models.SlotCounts{0, 0, 1}, ov.Count(models.KindBadURL))
	require.Len(t, ov.Latencies, 1)
	assert.GreaterOrEqual(t, ov.Latencies[0], 0.4)

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var doc map[string]map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &doc))

	exported := doc["CoachA"]["Seeker1"]
	assert.Equal(t, "seeker1@example.com", exported["email"])
	assert.Equal(t, map[string]interface{}{"no-link": true}, exported["solo"])
	assert.Equal(t, map[string]interface{}{}, exported["capstone"])
	group := exported["group"].(map[string]interface{})
	assert.Contains(t, group["time"], ".")

	assert.Equal(t, map[string]interface{}{"status": float64(404)}, doc[models.DefaultCoach]["Seeker3"]["solo"])
	assert.Contains(t, doc[models.DefaultCoach]["Seeker3"]["group"], "bad_url")

	require.NoError(t, writers.Validate())
}
