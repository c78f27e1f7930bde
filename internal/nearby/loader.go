// Package nearby drives one screen's nearest-shelter load cycle: permission,
// then coordinate, then dataset, then ranking.
//
// A Load issued while another is pending cancels and replaces it. Results of a
// replaced cycle, or of any cycle finishing after Close, are dropped.
package nearby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mr1hm/go-shelter-finder/internal/dataset"
	"github.com/mr1hm/go-shelter-finder/internal/location"
	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/shelter"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

type Snapshot struct {
	State      State
	Generation uint64
	Reference  models.Coordinate
	Results    []models.Shelter
	Skipped    int
	Err        error
}

const defaultLocationTimeout = 10 * time.Second

type Loader struct {
	provider        location.Provider
	source          dataset.Source
	parser          *shelter.Parser
	limit           int
	locationTimeout time.Duration
	logger          *slog.Logger

	mu      sync.Mutex
	current Snapshot
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Loader)

func WithLimit(n int) Option {
	return func(l *Loader) { l.limit = n }
}

func WithLocationTimeout(d time.Duration) Option {
	return func(l *Loader) { l.locationTimeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

func NewLoader(provider location.Provider, source dataset.Source, parser *shelter.Parser, opts ...Option) *Loader {
	l := &Loader{
		provider:        provider,
		source:          source,
		parser:          parser,
		limit:           shelter.DefaultLimit,
		locationTimeout: defaultLocationTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load starts a new cycle and returns a channel that receives its final
// snapshot. The channel is closed without a value if the cycle is replaced
// by a later Load or the loader is closed first.
func (l *Loader) Load(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot, 1)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		close(out)
		return out
	}
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	cycleCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.current = Snapshot{State: StateLoading, Generation: gen}
	l.wg.Add(1)
	l.mu.Unlock()

	go func() {
		defer l.wg.Done()
		defer cancel()

		snap := l.run(cycleCtx)
		snap.Generation = gen

		l.mu.Lock()
		defer l.mu.Unlock()
		defer close(out)

		if l.closed || l.gen != gen {
			l.logger.Debug("discarding stale load", "generation", gen, "state", snap.State)
			return
		}
		l.current = snap
		l.cancel = nil
		out <- snap
	}()

	return out
}

// Snapshot returns the loader's current state.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Close cancels any pending cycle and waits for it to exit. The provider and
// source must honor context cancellation for Close to return promptly.
func (l *Loader) Close() {
	l.mu.Lock()
	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.mu.Unlock()

	l.wg.Wait()
}

func (l *Loader) run(ctx context.Context) Snapshot {
	perm, err := l.provider.RequestPermission(ctx)
	if err != nil {
		return failed(unavailable(err))
	}
	if perm != location.PermissionGranted {
		return failed(location.ErrPermissionDenied)
	}

	locCtx, cancel := context.WithTimeout(ctx, l.locationTimeout)
	ref, err := l.provider.CurrentCoordinate(locCtx)
	cancel()
	if err != nil {
		return failed(unavailable(err))
	}
	if !ref.Valid() {
		return failed(fmt.Errorf("%w: provider returned invalid coordinate", location.ErrUnavailable))
	}

	raw, err := l.source.Load(ctx)
	if err != nil {
		return failed(fmt.Errorf("loading dataset %s: %w", l.source.Name(), err))
	}

	result := l.parser.Parse(raw)
	if n := result.SkippedCount(); n > 0 {
		l.logger.Warn("skipped malformed shelter records", "source", l.source.Name(), "skipped", n)
	}

	ranked, err := shelter.ResolveNearest(ref, result.Shelters, l.limit)
	if err != nil {
		return failed(err)
	}

	return Snapshot{
		State:     StateReady,
		Reference: ref,
		Results:   ranked,
		Skipped:   result.SkippedCount(),
	}
}

func failed(err error) Snapshot {
	return Snapshot{State: StateError, Err: err}
}

func unavailable(err error) error {
	if errors.Is(err, location.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", location.ErrUnavailable, err)
}
