// Package checker probes seeker project URLs and fans the probes out per coach.
package checker

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/not200club/config"
	"github.com/aluiziolira/not200club/models"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const ctxStatusKey = "status"

// FetchKind tags the outcome of a single fetch.
type FetchKind int

const (
	// FetchOK means a response was received, whatever its status.
	FetchOK FetchKind = iota
	// FetchTimedOut means the configured timeout elapsed first.
	FetchTimedOut
	// FetchFailed covers every other failure.
	FetchFailed
)

func (k FetchKind) String() string {
	switch k {
	case FetchOK:
		return "ok"
	case FetchTimedOut:
		return "timeout"
	case FetchFailed:
		return "failed"
	default:
		return fmt.Sprintf("FetchKind(%d)", int(k))
	}
}

// FetchResult is the typed outcome of one GET.
type FetchResult struct {
	Kind       FetchKind
	StatusCode int
	Elapsed    time.Duration
	Err        error
}

// Prober fetches one URL at a time and turns the outcome into issues. It is
// safe for concurrent use.
type Prober struct {
	collector     *colly.Collector
	timeout       time.Duration
	slowThreshold time.Duration
	cache         *lru.Cache[string, FetchResult]
	Metrics       *Metrics
}

// Option customizes a Prober.
type Option func(*Prober)

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(p *Prober) {
		p.collector.WithTransport(rt)
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(p *Prober) {
		p.Metrics = m
	}
}

// NewProber builds a prober configured from cfg.
func NewProber(cfg *config.Config, opts ...Option) (*Prober, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	// colly falls back to a 10s client timeout, so always set ours; zero
	// disables it.
	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(newTransport(cfg.Timeout))

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Workers,
	}); err != nil {
		return nil, fmt.Errorf("configure limits: %w", err)
	}

	p := &Prober{
		collector:     collector,
		timeout:       cfg.Timeout,
		slowThreshold: cfg.SlowThreshold,
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, FetchResult](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create result cache: %w", err)
		}
		p.cache = cache
	}

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxStatusKey, r.StatusCode)
	})

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// newTransport bounds connection setup by timeout so a stalled dial or TLS
// handshake is cut off exactly when the request itself would be. Zero
// leaves both unbounded.
func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
	}
}

// Probe checks url and returns its issues; an empty slice means the slot is
// clean. Fetch failures are reported as issues, never as errors.
func (p *Prober) Probe(url string) []models.Issue {
	if url == "" {
		p.Metrics.IncProbe(models.KindNoLink.String())
		return []models.Issue{models.NoLink()}
	}

	issues := p.Classify(p.lookup(url))
	if len(issues) == 0 {
		p.Metrics.IncProbe("ok")
	}
	for _, issue := range issues {
		p.Metrics.IncProbe(issue.Kind.String())
	}
	return issues
}

// Classify maps a fetch outcome onto the issue taxonomy.
func (p *Prober) Classify(result FetchResult) []models.Issue {
	switch result.Kind {
	case FetchTimedOut:
		return []models.Issue{models.TimedOut(p.timeout)}
	case FetchFailed:
		return []models.Issue{models.BadURL(result.Err)}
	}

	var issues []models.Issue
	if result.Elapsed > p.slowThreshold {
		issues = append(issues, models.Slow(result.Elapsed))
	}
	if result.StatusCode != http.StatusOK {
		issues = append(issues, models.BadStatus(result.StatusCode))
	}
	return issues
}

func (p *Prober) lookup(url string) FetchResult {
	if p.cache != nil {
		if cached, ok := p.cache.Get(url); ok {
			p.Metrics.IncCacheHit()
			return cached
		}
	}
	result := p.Fetch(url)
	if p.cache != nil {
		p.cache.Add(url, result)
	}
	return result
}

// Fetch performs a single GET without retries and measures wall-clock time.
func (p *Prober) Fetch(url string) FetchResult {
	ctx := colly.NewContext()
	start := time.Now()
	err := p.collector.Request(http.MethodGet, url, nil, ctx, nil)
	elapsed := time.Since(start)
	p.Metrics.ObserveDuration(elapsed)

	if err != nil {
		classified := classifyError(err, p.timeout > 0)
		category := errorTypeLabel(classified)
		p.Metrics.IncError(category)
		slog.Debug("fetch failed",
			slog.String("url", url),
			slog.String("category", category),
			slog.Any("error", err),
		)

		var timeout ErrTimeout
		if errors.As(classified, &timeout) {
			return FetchResult{Kind: FetchTimedOut, Elapsed: elapsed, Err: classified}
		}
		return FetchResult{Kind: FetchFailed, Elapsed: elapsed, Err: err}
	}

	status, ok := ctx.GetAny(ctxStatusKey).(int)
	if !ok {
		p.Metrics.IncError("other")
		return FetchResult{Kind: FetchFailed, Elapsed: elapsed, Err: ErrNoResponse}
	}
	if status != http.StatusOK {
		slog.Debug("non-200 response",
			slog.Int("status", status),
			slog.String("url", url),
		)
	}
	return FetchResult{Kind: FetchOK, StatusCode: status, Elapsed: elapsed}
}
