package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/not200club/checker"
	"github.com/aluiziolira/not200club/config"
	"github.com/aluiziolira/not200club/models"
	"github.com/aluiziolira/not200club/parser"
	"github.com/aluiziolira/not200club/pipeline"
	"github.com/aluiziolira/not200club/upload"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const artifactPrefix = "not200club"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		return 1
	}
	flags.apply(cfg)

	logger, level := newLogger(cfg.Verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		return 1
	}

	runID := uuid.NewString()
	slog.Info("starting health check",
		slog.String("run_id", runID),
		slog.String("roster", cfg.Roster),
		slog.Duration("timeout", cfg.Timeout),
		slog.Int("workers", cfg.Workers),
		slog.Any("formats", cfg.Formats),
	)

	metrics := checker.NewMetrics()
	prober, err := checker.NewProber(cfg, checker.WithMetrics(metrics))
	if err != nil {
		slog.Error("initialising prober", slog.Any("error", err))
		return 1
	}

	date := time.Now().Format("2006-01-02")
	writer, artifacts, err := createWriters(cfg, date)
	if err != nil {
		slog.Error("creating writers", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writers", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight probes to finish")
	}()
	if cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RunTimeout)
		defer cancel()
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	opts := pipeline.Options{
		RunID:           runID,
		Timeout:         cfg.Timeout,
		SlowThreshold:   cfg.SlowThreshold,
		ContinueOnError: cfg.ContinueOnError,
		Observer:        metrics,
	}
	if cfg.HasFormat(config.FormatJSON) {
		opts.JSONPath = artifactPath(cfg.OutputDir, date, config.FormatJSON)
	}
	if cfg.UploadURL != "" {
		opts.Uploader = upload.New(cfg.UploadURL, cfg.UploadToken)
	}

	source := parser.NewFileSource(cfg.Roster, cfg.MaxRosterAge, staleConfirmer(flags.yes, os.Stdin, os.Stdout))
	dispatcher := checker.NewDispatcher(prober, cfg.Workers, metrics)
	p := pipeline.NewPipeline(source, dispatcher, writer, opts)

	startTime := time.Now()
	result, runErr := p.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	result.Artifacts = append(artifacts, result.Artifacts...)
	if runErr != nil {
		var perr *pipeline.PhaseError
		if errors.As(runErr, &perr) && perr.Phase != pipeline.PhaseDispatch {
			slog.Error("health check failed", slog.String("phase", string(perr.Phase)), slog.Any("error", perr.Err))
			return 1
		}
		slog.Error("health check finished with errors", slog.Any("error", runErr))
	}

	printSummary(os.Stdout, result, time.Since(startTime), dispatcher.Probed())
	if runErr != nil {
		return 1
	}
	return 0
}

type cliFlags struct {
	fs         *flag.FlagSet
	configPath string
	yes        bool

	roster          string
	outputDir       string
	formats         string
	timeout         time.Duration
	slowThreshold   time.Duration
	workers         int
	cacheSize       int
	userAgent       string
	maxRosterAge    time.Duration
	continueOnError bool
	runTimeout      time.Duration
	uploadURL       string
	metricsAddr     string
	verbose         bool
}

func parseFlags(args []string) (*cliFlags, error) {
	defaults := config.DefaultConfig()
	f := &cliFlags{fs: flag.NewFlagSet("not200club", flag.ContinueOnError)}
	fs := f.fs

	fs.StringVar(&f.configPath, "config", "", "YAML config file (default $N2C_CONFIG)")
	fs.BoolVar(&f.yes, "yes", false, "Use a stale roster without asking")
	fs.StringVar(&f.roster, "roster", defaults.Roster, "Roster .xlsx/.csv file, or a directory holding one")
	fs.StringVar(&f.outputDir, "output-dir", defaults.OutputDir, "Directory for report files")
	fs.StringVar(&f.formats, "formats", strings.Join(defaults.Formats, ","), "Report formats: xlsx, csv, json")
	fs.DurationVar(&f.timeout, "timeout", defaults.Timeout, "Per-request timeout (0 waits indefinitely)")
	fs.DurationVar(&f.slowThreshold, "slow", defaults.SlowThreshold, "Responses slower than this are reported")
	fs.IntVar(&f.workers, "workers", defaults.Workers, "Concurrent probes per coach")
	fs.IntVar(&f.cacheSize, "cache-size", defaults.CacheSize, "Per-run URL result cache entries (0 disables)")
	fs.StringVar(&f.userAgent, "user-agent", defaults.UserAgent, "User-Agent header sent with every probe")
	fs.DurationVar(&f.maxRosterAge, "max-age", defaults.MaxRosterAge, "Ask before using a roster older than this (0 disables)")
	fs.BoolVar(&f.continueOnError, "continue-on-error", defaults.ContinueOnError, "Keep going when a coach fails")
	fs.DurationVar(&f.runTimeout, "run-timeout", defaults.RunTimeout, "Deadline for the whole run (0 disables)")
	fs.StringVar(&f.uploadURL, "upload-url", defaults.UploadURL, "Document store endpoint for the JSON export")
	fs.StringVar(&f.metricsAddr, "metrics-addr", defaults.MetricsAddr, "Prometheus metrics listen address (e.g. :9090)")
	fs.BoolVar(&f.verbose, "v", defaults.Verbose, "Enable verbose logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// apply copies flags set on the command line over cfg, so they win over the
// file and environment layers.
func (f *cliFlags) apply(cfg *config.Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "roster":
			cfg.Roster = f.roster
		case "output-dir":
			cfg.OutputDir = f.outputDir
		case "formats":
			cfg.Formats = config.ParseFormats(f.formats)
		case "timeout":
			cfg.Timeout = f.timeout
		case "slow":
			cfg.SlowThreshold = f.slowThreshold
		case "workers":
			cfg.Workers = f.workers
		case "cache-size":
			cfg.CacheSize = f.cacheSize
		case "user-agent":
			cfg.UserAgent = f.userAgent
		case "max-age":
			cfg.MaxRosterAge = f.maxRosterAge
		case "continue-on-error":
			cfg.ContinueOnError = f.continueOnError
		case "run-timeout":
			cfg.RunTimeout = f.runTimeout
		case "upload-url":
			cfg.UploadURL = f.uploadURL
		case "metrics-addr":
			cfg.MetricsAddr = f.metricsAddr
		case "v":
			cfg.Verbose = f.verbose
		}
	})
}

func artifactPath(dir, date, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.%s", artifactPrefix, date, ext))
}

func createWriters(cfg *config.Config, date string) (*pipeline.MultiWriter, []string, error) {
	writers := pipeline.NewMultiWriter()
	var artifacts []string

	if cfg.HasFormat(config.FormatXLSX) {
		path := artifactPath(cfg.OutputDir, date, config.FormatXLSX)
		w, err := pipeline.NewXLSXWriter(path)
		if err != nil {
			return nil, nil, err
		}
		writers.Add("xlsx", w)
		artifacts = append(artifacts, path)
	}
	if cfg.HasFormat(config.FormatCSV) {
		path := artifactPath(cfg.OutputDir, date, config.FormatCSV)
		w, err := pipeline.NewCSVWriter(path)
		if err != nil {
			_ = writers.Close()
			return nil, nil, err
		}
		writers.Add("csv", w)
		artifacts = append(artifacts, path)
	}
	return writers, artifacts, nil
}

// staleConfirmer asks on out whether an old roster may be used. Without a
// terminal the answer is no unless assumeYes is set.
func staleConfirmer(assumeYes bool, in *os.File, out io.Writer) func(time.Duration) bool {
	return func(age time.Duration) bool {
		if assumeYes {
			slog.Warn("using stale roster", slog.Duration("age", age.Round(time.Hour)))
			return true
		}
		if !isTerminal(in) {
			return false
		}
		return confirm(bufio.NewReader(in), out, age)
	}
}

func confirm(in *bufio.Reader, out io.Writer, age time.Duration) bool {
	days := int(age.Hours() / 24)
	fmt.Fprintf(out, "The roster was last updated %d days ago. Continue anyway? [y/N] ", days)
	answer, err := in.ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printSummary(out io.Writer, result *models.RunResult, duration time.Duration, probed int64) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "Health check complete")

	ov := result.Overview
	fmt.Fprintf(out, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(out, "  Coaches:       %d checked, %d failed\n", len(result.Reports), len(result.FailedCoaches))
	fmt.Fprintf(out, "  With issues:   %d/%d seekers\n", ov.SeekersWithIssue, ov.TotalSeekers)
	fmt.Fprintf(out, "  Probes:        %d\n", probed)
	for _, kind := range models.Kinds {
		counts := ov.Count(kind)
		fmt.Fprintf(out, "  %-14s %d (solo %d, capstone %d, group %d)\n",
			kind.String()+":", counts.Total(), counts[models.Solo], counts[models.Capstone], counts[models.Group])
	}
	if stats := ov.Latency; stats != nil {
		fmt.Fprintf(out, "  Slow sites:    mean %.2fs, median %.2fs, mode %.2fs\n", stats.Mean, stats.Median, stats.Mode)
	}
	if len(result.FailedCoaches) > 0 {
		fmt.Fprintf(out, "  Failed:        %s\n", strings.Join(result.FailedCoaches, ", "))
	}
	fmt.Fprintf(out, "  Duration:      %v\n", duration.Round(time.Millisecond))
	for _, artifact := range result.Artifacts {
		fmt.Fprintf(out, "  Output file:   %s\n", artifact)
	}
	fmt.Fprintln(out, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
