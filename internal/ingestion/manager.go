package ingestion

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-shelter-finder/internal/config"
	"github.com/mr1hm/go-shelter-finder/internal/dataset"
	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/observability"
	"github.com/mr1hm/go-shelter-finder/internal/repository"
	"github.com/mr1hm/go-shelter-finder/internal/settings"
	"github.com/mr1hm/go-shelter-finder/internal/shelter"
	"github.com/mr1hm/go-shelter-finder/internal/stream"
	"github.com/mr1hm/go-shelter-finder/internal/worker"
)

type syncJob struct {
	source string
	result shelter.Result
}

type Manager struct {
	cfg         *config.Config
	sources     []dataset.Source
	parser      *shelter.Parser
	store       repository.Store
	settings    settings.Store
	broadcaster *stream.Broadcaster
	metrics     *observability.Metrics
	clock       clockwork.Clock
	pool        *worker.WorkerPool[*syncJob]
	wg          sync.WaitGroup
}

type Option func(*Manager)

func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func NewManager(
	cfg *config.Config,
	sources []dataset.Source,
	store repository.Store,
	settingsStore settings.Store,
	broadcaster *stream.Broadcaster,
	metrics *observability.Metrics,
	opts ...Option,
) *Manager {
	m := &Manager{
		cfg:         cfg,
		sources:     sources,
		parser:      NewParser(cfg.Dataset),
		store:       store,
		settings:    settingsStore,
		broadcaster: broadcaster,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewParser builds the shelter parser described by the dataset config.
func NewParser(cfg config.DatasetConfig) *shelter.Parser {
	opts := []shelter.Option{shelter.WithFallbackTypes(cfg.FallbackTypes...)}
	if cfg.RecordTypes {
		opts = append(opts, shelter.WithRecordTypes(cfg.TypeSeparator))
	}
	return shelter.NewParser(opts...)
}

func (m *Manager) Start(ctx context.Context) {
	m.pool = worker.NewWorkerPool(m.cfg.Worker.Count, m.cfg.Worker.BufferSize, m.process)
	m.pool.OnError(func(job *syncJob, err error) {
		slog.Error("error storing dataset snapshot", "source", job.source, "error", err)
		m.metrics.DatasetSyncs.WithLabelValues(job.source, "error").Inc()
	})
	m.pool.Start(ctx)

	for _, src := range m.sources {
		m.wg.Add(1)
		go m.runPoller(ctx, src)
	}
}

func (m *Manager) runPoller(ctx context.Context, src dataset.Source) {
	defer m.wg.Done()
	slog.Info("starting poller", "source", src.Name(), "interval", m.cfg.Dataset.PollInterval)

	ticker := m.clock.NewTicker(m.cfg.Dataset.PollInterval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx, src)

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down", "source", src.Name())
			return
		case <-ticker.Chan():
			m.poll(ctx, src)
		}
	}
}

func (m *Manager) poll(ctx context.Context, src dataset.Source) {
	name := src.Name()

	if src.Remote() {
		st, err := m.settings.Load(ctx)
		if err != nil {
			slog.Error("error loading settings", "source", name, "error", err)
		} else if st.OfflineMode {
			slog.Debug("offline mode, skipping remote source", "source", name)
			m.metrics.DatasetSyncs.WithLabelValues(name, "skipped").Inc()
			return
		}
	}

	slog.Debug("polling", "source", name)

	raw, err := src.Load(ctx)
	if err != nil {
		slog.Error("poll failed", "source", name, "error", err)
		m.metrics.DatasetSyncs.WithLabelValues(name, "error").Inc()
		return
	}

	result := m.parser.Parse(raw)
	if n := result.SkippedCount(); n > 0 {
		slog.Warn("skipped malformed shelter records", "source", name, "skipped", n)
		for _, rowErr := range result.Skipped {
			slog.Debug("skipped record", "source", name, "line", rowErr.Line, "error", rowErr.Err)
		}
		m.metrics.ParseSkippedRows.WithLabelValues(name).Add(float64(n))
	}

	if !m.pool.Submit(ctx, &syncJob{source: name, result: result}) {
		slog.Debug("poll abandoned during shutdown", "source", name)
		return
	}
	slog.Debug("poll complete", "source", name, "count", len(result.Shelters))
}

// process persists one parsed snapshot.
func (m *Manager) process(ctx context.Context, job *syncJob) error {
	shelters := job.result.Shelters
	for i := range shelters {
		shelters[i].Source = job.source
	}

	if err := m.store.ReplaceShelters(ctx, job.source, shelters); err != nil {
		return err
	}

	status := models.SyncStatus{
		Source:   job.source,
		Shelters: len(shelters),
		Skipped:  job.result.SkippedCount(),
		SyncedAt: m.clock.Now().UTC(),
	}
	if err := m.store.SaveSyncStatus(ctx, status); err != nil {
		return err
	}

	m.metrics.DatasetSyncs.WithLabelValues(job.source, "success").Inc()
	m.metrics.SheltersLoaded.WithLabelValues(job.source).Set(float64(len(shelters)))

	if m.broadcaster != nil && m.shouldBroadcast(ctx) {
		m.broadcaster.Broadcast(models.DatasetEvent(status))
	}

	slog.Info("stored dataset snapshot", "source", job.source, "shelters", status.Shelters, "skipped", status.Skipped)
	return nil
}

// shouldBroadcast reports whether the user wants update notifications.
func (m *Manager) shouldBroadcast(ctx context.Context) bool {
	st, err := m.settings.Load(ctx)
	if err != nil {
		slog.Error("error loading settings", "error", err)
		return false
	}
	return st.Notifications
}

func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	slog.Info("ingestion manager stopped")
}
