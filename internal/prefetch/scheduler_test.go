package prefetch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/registry"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

func fastConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:          time.Minute,
		BatchSize:         3,
		BatchPause:        time.Millisecond,
		MaxPerPass:        15,
		RequestsPerSecond: 10000,
	}
}

type warmRecorder struct {
	mu   sync.Mutex
	rucs []model.RUC
	err  error
}

func (w *warmRecorder) warm(_ context.Context, ruc model.RUC) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rucs = append(w.rucs, ruc)
	return w.err
}

func (w *warmRecorder) seen() []model.RUC {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.RUC(nil), w.rucs...)
}

func TestAdjacent(t *testing.T) {
	adj := Adjacent(model.RUC("20100070970"))
	require.NotEmpty(t, adj)
	assert.Contains(t, adj, model.RUC("20100070960"))
	assert.Contains(t, adj, model.RUC("20100070980"))
	assert.Contains(t, adj, model.RUC("20100071020"))
	for _, a := range adj {
		assert.Equal(t, model.PersonJuridical, a.Kind())
	}
}

func TestAdjacent_InvalidInput(t *testing.T) {
	assert.Nil(t, Adjacent(model.RUC("not-a-ruc")))
}

func TestScheduler_CandidatesPriorityAndDedup(t *testing.T) {
	tr := NewTracker(100, 3)
	hot := model.RUC("20100070970")
	for i := 0; i < 3; i++ {
		tr.Record(hot)
	}
	recent := model.RUC("20987654321")
	tr.Record(recent)

	local := registry.NewEmpty()
	local.Add(&model.ConsolidatedRecord{RUC: model.RUC("20555555555"), LegalName: "SEED S.A."})

	s := NewScheduler(fastConfig(), tr, local, cache.NewMemory(nil), nil, nil)
	got := s.Candidates(context.Background())

	// Popular first, then recent, then seeds, then neighborhoods.
	require.NotEmpty(t, got)
	assert.Equal(t, hot, got[0])
	assert.Contains(t, got, recent)
	assert.Contains(t, got, model.RUC("20555555555"))
	assert.Contains(t, got, model.RUC("20100070980"))

	seen := make(map[model.RUC]bool)
	for _, ruc := range got {
		assert.False(t, seen[ruc], "candidate %s duplicated", ruc)
		seen[ruc] = true
	}
}

func TestScheduler_CandidatesSkipCached(t *testing.T) {
	tr := NewTracker(100, 3)
	cached := model.RUC("20100070970")
	for i := 0; i < 3; i++ {
		tr.Record(cached)
	}

	store := cache.NewMemory(nil)
	require.NoError(t, store.Set(context.Background(), cached, cache.CategoryIdentity, []byte(`{}`)))

	s := NewScheduler(fastConfig(), tr, registry.NewEmpty(), store, nil, nil)
	got := s.Candidates(context.Background())

	assert.NotContains(t, got, cached)
}

func TestScheduler_CandidatesIncludeDueDLQ(t *testing.T) {
	dlq := resilience.NewDLQ(3, time.Nanosecond)
	failed := model.RUC("20600074114")
	dlq.Record(failed, "sunat", resilience.NewTransientError(errors.New("timeout"), 0))
	time.Sleep(5 * time.Millisecond)

	s := NewScheduler(fastConfig(), NewTracker(100, 3), registry.NewEmpty(), cache.NewMemory(nil), dlq, nil)
	got := s.Candidates(context.Background())

	assert.Contains(t, got, failed)
}

func TestScheduler_RunOnceWarmsCandidates(t *testing.T) {
	tr := NewTracker(100, 3)
	hot := model.RUC("20100070970")
	for i := 0; i < 3; i++ {
		tr.Record(hot)
	}

	rec := &warmRecorder{}
	s := NewScheduler(fastConfig(), tr, registry.NewEmpty(), cache.NewMemory(nil), nil, rec.warm)

	s.RunOnce(context.Background())

	seen := rec.seen()
	require.NotEmpty(t, seen)
	assert.Equal(t, hot, seen[0])
	assert.LessOrEqual(t, len(seen), 15)
}

func TestScheduler_OverlappingPassesDropped(t *testing.T) {
	tr := NewTracker(100, 3)
	for i := 0; i < 3; i++ {
		tr.Record(model.RUC("20100070970"))
	}

	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	warm := func(ctx context.Context, _ model.RUC) error {
		mu.Lock()
		calls++
		if calls == 1 {
			close(started)
		}
		mu.Unlock()
		<-release
		return nil
	}

	s := NewScheduler(fastConfig(), tr, registry.NewEmpty(), cache.NewMemory(nil), nil, warm)

	go s.RunOnce(context.Background())
	<-started

	// A second pass while the first is mid-flight must be a no-op.
	s.RunOnce(context.Background())
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()

	close(release)
}

func TestScheduler_MaxPerPassCap(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxPerPass = 2

	tr := NewTracker(100, 3)
	for i := 0; i < 3; i++ {
		tr.Record(model.RUC("20100070970"))
	}
	local := registry.NewLocal()

	s := NewScheduler(cfg, tr, local, cache.NewMemory(nil), nil, nil)
	got := s.Candidates(context.Background())
	assert.Len(t, got, 2)
}
