package collector

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openquant/collector/internal/metrics"
	"github.com/openquant/collector/internal/module"
)

// Settings is the collector module's configuration payload.
type Settings struct {
	// Workers is the number of concurrent collection workers.
	Workers int `mapstructure:"workers"`
	// Topic is the queue topic stored records are announced on.
	Topic string `mapstructure:"topic"`
	// UserAgent is sent on every fetch.
	UserAgent string `mapstructure:"user_agent"`
	// FetchTimeout bounds a single plain HTTP fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	// HeadlessParallel caps concurrent browser sessions; zero disables the
	// headless fetcher entirely.
	HeadlessParallel int `mapstructure:"headless_parallel"`
	// RateLimit throttles fetches per source host.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// Deps are the collaborators the collector module needs. They are resolved
// by the module factory before Initialize runs.
type Deps struct {
	Jobs      <-chan Job
	Store     RecordStore
	Archive   Archive
	Publisher Publisher
	Clock     Clock
	Hasher    Hasher
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Module runs the collection worker pool. Jobs arrive on the jobs channel,
// typically from the scheduler, and each one is fetched, archived, parsed,
// stored, and announced.
type Module struct {
	deps     Deps
	settings Settings
	logger   *zap.Logger

	fetcher  Fetcher
	headless *HeadlessFetcher
	detector *Detector
	parser   Parser
	limiter  *RateLimiter

	cancel context.CancelFunc
	wg     sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	records   atomic.Int64

	mu      sync.Mutex
	lastErr string
}

// New creates an uninitialized collector module.
func New(deps Deps) (*Module, error) {
	if deps.Jobs == nil {
		return nil, fmt.Errorf("collector: jobs channel is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("collector: record store is required")
	}
	if deps.Archive == nil {
		return nil, fmt.Errorf("collector: archive is required")
	}
	if deps.Publisher == nil {
		return nil, fmt.Errorf("collector: publisher is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Module{deps: deps, logger: logger.Named("collector")}, nil
}

// Name implements module.Module.
func (m *Module) Name() string { return "collector" }

// Initialize decodes settings and builds the fetchers.
func (m *Module) Initialize(_ context.Context, config map[string]any) error {
	var settings Settings
	if err := module.DecodeSettings(config, &settings); err != nil {
		return fmt.Errorf("collector settings: %w", err)
	}
	if settings.Workers <= 0 {
		settings.Workers = 2
	}
	if settings.Topic == "" {
		settings.Topic = "records"
	}
	m.settings = settings

	m.fetcher = NewCollyFetcher(CollyConfig{
		UserAgent: settings.UserAgent,
		Timeout:   settings.FetchTimeout,
	})
	if settings.HeadlessParallel > 0 {
		headless, err := NewHeadlessFetcher(HeadlessConfig{
			MaxParallel: settings.HeadlessParallel,
			UserAgent:   settings.UserAgent,
		})
		if err != nil {
			return fmt.Errorf("build headless fetcher: %w", err)
		}
		m.headless = headless
		m.detector = NewDetector(0)
	}
	m.parser = NewHTMLParser()
	m.limiter = NewRateLimiter(settings.RateLimit)
	return nil
}

// Start launches the worker pool.
func (m *Module) Start(_ context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	for i := 0; i < m.settings.Workers; i++ {
		m.wg.Add(1)
		go m.runWorker(runCtx, i)
	}
	m.logger.Info("collection workers started", zap.Int("workers", m.settings.Workers))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stop collector: %w", ctx.Err())
	}
	if m.headless != nil {
		m.headless.Close()
	}
	return nil
}

// HealthCheck reports worker throughput. The module stays healthy through
// individual job failures; a failing source is the scheduler's problem, not
// the pool's.
func (m *Module) HealthCheck(ctx context.Context) (module.Health, error) {
	if err := m.deps.Store.Ping(ctx); err != nil {
		return module.Health{Status: module.StatusUnhealthy, Details: map[string]any{
			"reason": fmt.Sprintf("record store unreachable: %v", err),
		}}, nil
	}
	m.mu.Lock()
	lastErr := m.lastErr
	m.mu.Unlock()

	details := map[string]any{
		"workers":        m.settings.Workers,
		"jobs_processed": m.processed.Load(),
		"jobs_failed":    m.failed.Load(),
		"records_stored": m.records.Load(),
	}
	if lastErr != "" {
		details["last_error"] = lastErr
	}
	return module.Health{Status: module.StatusHealthy, Details: details}, nil
}

func (m *Module) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-m.deps.Jobs:
			if !ok {
				return
			}
			if err := m.processJob(ctx, job); err != nil {
				m.failed.Add(1)
				m.recordError(err)
				logger.Warn("collection job failed",
					zap.String("job", job.ID),
					zap.String("source", job.Source.Name),
					zap.Error(err),
				)
				continue
			}
			m.processed.Add(1)
		}
	}
}

func (m *Module) processJob(ctx context.Context, job Job) error {
	source := job.Source
	if err := m.limiter.Wait(ctx, source.URL); err != nil {
		return err
	}

	resp, err := m.fetch(ctx, source)
	if err != nil {
		metrics.ObserveFetch(source.URL, "error", 0, 0)
		return err
	}
	metrics.ObserveFetch(source.URL, fmt.Sprintf("%d", resp.StatusCode), len(resp.Body), resp.Duration)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("fetch %s: status %d", source.URL, resp.StatusCode)
	}

	now := m.now()
	digest, err := m.deps.Hasher.Hash(resp.Body)
	if err != nil {
		return fmt.Errorf("hash payload: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s.html", source.Name, now.Format("2006/01/02"), digest[:12])
	blobURI, err := m.deps.Archive.Put(ctx, key, contentType(resp), resp.Body)
	if err != nil {
		return fmt.Errorf("archive payload: %w", err)
	}

	parsed, err := m.parser.Parse(source, resp)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(parsed))
	for _, rec := range parsed {
		rec.Hash = digest
		rec.BlobURI = blobURI
		rec.CollectedAt = now
		rec.ID, err = m.deps.IDs.NewID()
		if err != nil {
			return fmt.Errorf("mint record id: %w", err)
		}
		stored, err := m.deps.Store.SaveRecord(ctx, rec)
		if err != nil {
			return fmt.Errorf("save record: %w", err)
		}
		ids = append(ids, stored)
	}
	metrics.ObserveRecords(source.URL, len(ids))
	m.records.Add(int64(len(ids)))

	if _, err := m.deps.Publisher.Publish(ctx, m.settings.Topic, map[string]any{
		"job_id":     job.ID,
		"source":     source.Name,
		"series":     source.Series,
		"record_ids": ids,
	}); err != nil {
		metrics.ObserveQueuePublish(m.settings.Topic, "error")
		return fmt.Errorf("publish records: %w", err)
	}
	metrics.ObserveQueuePublish(m.settings.Topic, "ok")
	return nil
}

func (m *Module) fetch(ctx context.Context, source Source) (FetchResponse, error) {
	request := FetchRequest{URL: source.URL, Headers: headerFromMap(source.Headers)}
	if source.Headless {
		if m.headless == nil {
			return FetchResponse{}, fmt.Errorf("source %q needs a headless fetch but headless_parallel is 0", source.Name)
		}
		return m.headless.Fetch(ctx, request)
	}
	resp, err := m.fetcher.Fetch(ctx, request)
	if err != nil {
		return resp, err
	}
	// Promote script-rendered shells to a headless fetch when a browser
	// pool is available.
	if m.headless != nil && m.detector != nil && m.detector.NeedsHeadless(resp) {
		m.logger.Info("promoting to headless fetch", zap.String("source", source.Name), zap.String("url", source.URL))
		return m.headless.Fetch(ctx, request)
	}
	return resp, nil
}

func (m *Module) now() time.Time {
	if m.deps.Clock != nil {
		return m.deps.Clock.Now()
	}
	return time.Now().UTC()
}

func (m *Module) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	m.mu.Unlock()
}

func headerFromMap(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

func contentType(resp FetchResponse) string {
	if ct := resp.Headers.Get("Content-Type"); ct != "" {
		return ct
	}
	return "text/html; charset=utf-8"
}
