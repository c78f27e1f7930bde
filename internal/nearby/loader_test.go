package nearby

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-shelter-finder/internal/dataset"
	"github.com/mr1hm/go-shelter-finder/internal/location"
	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/shelter"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var firstJunior = models.Coordinate{Latitude: 34.7650, Longitude: 135.6270}

// fakeProvider blocks the first n coordinate requests until their context is done.
type fakeProvider struct {
	perm      location.Permission
	permErr   error
	coord     models.Coordinate
	coordErr  error
	blockN    int64
	calls     atomic.Int64
	permCalls atomic.Int64
	entered   chan struct{}
}

func (p *fakeProvider) RequestPermission(ctx context.Context) (location.Permission, error) {
	p.permCalls.Add(1)
	return p.perm, p.permErr
}

func (p *fakeProvider) CurrentCoordinate(ctx context.Context) (models.Coordinate, error) {
	n := p.calls.Add(1)
	if n <= p.blockN {
		if p.entered != nil {
			p.entered <- struct{}{}
		}
		<-ctx.Done()
		return models.Coordinate{}, ctx.Err()
	}
	return p.coord, p.coordErr
}

type countingSource struct {
	raw   string
	loads atomic.Int64
}

func (s *countingSource) Name() string { return "test" }

func (s *countingSource) Remote() bool { return false }

func (s *countingSource) Load(ctx context.Context) (string, error) {
	s.loads.Add(1)
	return s.raw, nil
}

const table = `東小学校,寝屋川市太秦元町2-1,072-825-9001,避難所,34.7666,135.6281
第一中学校,寝屋川市高宮新町32-1,072-825-9000,避難所,34.7650,135.6270
市民会館,寝屋川市秦町41-1,072-823-1221,避難所,34.7680,135.6290`

func wait(t *testing.T, ch <-chan Snapshot) (Snapshot, bool) {
	t.Helper()
	select {
	case snap, ok := <-ch:
		return snap, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for load")
		return Snapshot{}, false
	}
}

func TestLoader_Ready(t *testing.T) {
	loader := NewLoader(location.Static{Coordinate: firstJunior}, dataset.Bundled{}, shelter.NewParser())
	defer loader.Close()

	if got := loader.Snapshot().State; got != StateIdle {
		t.Fatalf("expected idle before first load, got %s", got)
	}

	snap, ok := wait(t, loader.Load(context.Background()))
	if !ok {
		t.Fatal("expected a snapshot")
	}
	if snap.State != StateReady {
		t.Fatalf("expected ready, got %s (err=%v)", snap.State, snap.Err)
	}
	if len(snap.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(snap.Results))
	}
	if snap.Results[0].Name != "第一中学校" {
		t.Errorf("expected 第一中学校 first, got %s", snap.Results[0].Name)
	}
	if snap.Reference != firstJunior {
		t.Errorf("unexpected reference %+v", snap.Reference)
	}
	if loader.Snapshot().State != StateReady {
		t.Errorf("expected loader state ready, got %s", loader.Snapshot().State)
	}
}

func TestLoader_LimitAndSkipped(t *testing.T) {
	src := &countingSource{raw: table + "\n壊れた行,住所,000,避難所,not-a-number,135.0"}
	loader := NewLoader(location.Static{Coordinate: firstJunior}, src, shelter.NewParser(), WithLimit(1))
	defer loader.Close()

	snap, _ := wait(t, loader.Load(context.Background()))
	if snap.State != StateReady {
		t.Fatalf("expected ready, got %s", snap.State)
	}
	if len(snap.Results) != 1 {
		t.Errorf("expected 1 result, got %d", len(snap.Results))
	}
	if snap.Skipped != 1 {
		t.Errorf("expected 1 skipped record, got %d", snap.Skipped)
	}
}

func TestLoader_EmptyDataset(t *testing.T) {
	loader := NewLoader(location.Static{Coordinate: firstJunior}, &countingSource{raw: ""}, shelter.NewParser())
	defer loader.Close()

	snap, _ := wait(t, loader.Load(context.Background()))
	if snap.State != StateReady {
		t.Fatalf("expected ready for empty dataset, got %s", snap.State)
	}
	if len(snap.Results) != 0 {
		t.Errorf("expected no results, got %d", len(snap.Results))
	}
}

func TestLoader_PermissionDenied(t *testing.T) {
	provider := &fakeProvider{perm: location.PermissionDenied, coord: firstJunior}
	src := &countingSource{raw: table}
	loader := NewLoader(provider, src, shelter.NewParser())
	defer loader.Close()

	snap, _ := wait(t, loader.Load(context.Background()))
	if snap.State != StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}
	if !errors.Is(snap.Err, location.ErrPermissionDenied) {
		t.Errorf("expected permission denied, got %v", snap.Err)
	}
	if provider.calls.Load() != 0 {
		t.Error("coordinate must not be requested without permission")
	}
	if src.loads.Load() != 0 {
		t.Error("dataset must not be loaded without a coordinate")
	}
}

func TestLoader_CoordinateUnavailable(t *testing.T) {
	provider := &fakeProvider{
		perm:     location.PermissionGranted,
		coordErr: errors.New("gps hardware error"),
	}
	src := &countingSource{raw: table}
	loader := NewLoader(provider, src, shelter.NewParser())
	defer loader.Close()

	snap, _ := wait(t, loader.Load(context.Background()))
	if snap.State != StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}
	if !errors.Is(snap.Err, location.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", snap.Err)
	}
	if snap.Results != nil {
		t.Error("expected no results on error")
	}
	if src.loads.Load() != 0 {
		t.Error("resolver path must not run after a location failure")
	}
}

func TestLoader_LocationTimeout(t *testing.T) {
	provider := &fakeProvider{perm: location.PermissionGranted, blockN: 1}
	loader := NewLoader(provider, &countingSource{raw: table}, shelter.NewParser(), WithLocationTimeout(20*time.Millisecond))
	defer loader.Close()

	snap, _ := wait(t, loader.Load(context.Background()))
	if snap.State != StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}
	if !errors.Is(snap.Err, location.ErrUnavailable) || !errors.Is(snap.Err, context.DeadlineExceeded) {
		t.Errorf("expected unavailable deadline error, got %v", snap.Err)
	}
}

func TestLoader_RetryAfterError(t *testing.T) {
	provider := &fakeProvider{perm: location.PermissionDenied, coord: firstJunior}
	loader := NewLoader(provider, &countingSource{raw: table}, shelter.NewParser())
	defer loader.Close()

	snap, _ := wait(t, loader.Load(context.Background()))
	if snap.State != StateError {
		t.Fatalf("expected error state, got %s", snap.State)
	}

	provider.perm = location.PermissionGranted
	snap, _ = wait(t, loader.Load(context.Background()))
	if snap.State != StateReady {
		t.Fatalf("expected ready after retry, got %s", snap.State)
	}
	if snap.Generation != 2 {
		t.Errorf("expected generation 2, got %d", snap.Generation)
	}
}

func TestLoader_SupersededLoadIsDiscarded(t *testing.T) {
	provider := &fakeProvider{
		perm:    location.PermissionGranted,
		coord:   firstJunior,
		blockN:  1,
		entered: make(chan struct{}, 1),
	}
	loader := NewLoader(provider, &countingSource{raw: table}, shelter.NewParser())
	defer loader.Close()

	first := loader.Load(context.Background())
	<-provider.entered

	second := loader.Load(context.Background())

	if _, ok := wait(t, first); ok {
		t.Error("superseded load must not deliver a snapshot")
	}

	snap, ok := wait(t, second)
	if !ok {
		t.Fatal("expected replacement load to deliver")
	}
	if snap.State != StateReady || snap.Generation != 2 {
		t.Errorf("expected ready generation 2, got %s generation %d", snap.State, snap.Generation)
	}
	if cur := loader.Snapshot(); cur.Generation != 2 || cur.State != StateReady {
		t.Errorf("stale state leaked: %s generation %d", cur.State, cur.Generation)
	}
}

func TestLoader_CloseDiscardsPending(t *testing.T) {
	provider := &fakeProvider{
		perm:    location.PermissionGranted,
		coord:   firstJunior,
		blockN:  1,
		entered: make(chan struct{}, 1),
	}
	src := &countingSource{raw: table}
	loader := NewLoader(provider, src, shelter.NewParser())

	pending := loader.Load(context.Background())
	<-provider.entered

	loader.Close()

	if _, ok := wait(t, pending); ok {
		t.Error("load finishing after Close must be discarded")
	}
	if st := loader.Snapshot().State; st == StateReady || st == StateError {
		t.Errorf("closed loader state must not change, got %s", st)
	}
	if src.loads.Load() != 0 {
		t.Error("dataset must not load after teardown")
	}

	if _, ok := wait(t, loader.Load(context.Background())); ok {
		t.Error("Load after Close must return a closed channel")
	}
}
