package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/fallback"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/prefetch"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/registry"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/strategy"
)

// countingStrategy scripts one strategy and counts executions.
type countingStrategy struct {
	name  string
	rec   *model.PartialRecord
	err   error
	calls atomic.Int32
}

func (s *countingStrategy) Name() string            { return s.name }
func (s *countingStrategy) Supports(model.RUC) bool { return true }
func (s *countingStrategy) Execute(context.Context, model.RUC) (*model.PartialRecord, error) {
	s.calls.Add(1)
	return s.rec, s.err
}

func raceOpts() strategy.RaceOptions {
	return strategy.RaceOptions{
		MaxConcurrent:      3,
		PerStrategyTimeout: 100 * time.Millisecond,
		GlobalTimeout:      300 * time.Millisecond,
	}
}

func newResolver(strategies []strategy.Strategy, local *registry.Local) (*Resolver, cache.Store) {
	store := cache.NewMemory(nil)
	chain := fallback.NewChain(strategies, local, nil, fallback.Options{Race: raceOpts()})
	return NewResolver(chain, store, prefetch.NewTracker(100, 3), 100), store
}

func TestResolver_ScenarioA_TwoStrategiesMerge(t *testing.T) {
	ruc := model.RUC("20100070970")
	s1 := &countingStrategy{
		name: "sunat",
		rec: &model.PartialRecord{
			RUC: ruc, LegalName: "SUPERMERCADOS PERUANOS S.A.",
			Address: "AV. MORALES DUAREZ 1340", Source: "sunat",
		},
	}
	s2 := &countingStrategy{
		name: "osce",
		rec: &model.PartialRecord{
			RUC: ruc, LegalName: "SUPERMERCADOS PERUANOS SOCIEDAD ANONIMA",
			Phone: "01-4185000", Source: "osce",
			Representatives: []model.RepresentativeCandidate{
				{Name: "MENDIOLA CASTRO FERNANDO", DocumentNumber: "07968031", Role: "GERENTE GENERAL", Source: "osce"},
				{Name: "GARCIA LOPEZ CARLOS", DocumentNumber: "43852691", Role: "DIRECTOR", Source: "osce"},
			},
		},
	}

	r, _ := newResolver([]strategy.Strategy{s1, s2}, registry.NewEmpty())
	rec, err := r.Resolve(context.Background(), "20100070970")

	require.NoError(t, err)
	assert.NotEmpty(t, rec.LegalName)
	assert.NotEmpty(t, rec.Contact.Address)
	assert.NotEmpty(t, rec.Contact.Phone)
	assert.Len(t, rec.Representatives, 2)
	assert.Equal(t, model.QualityGood, rec.Quality)
	assert.True(t, rec.IsRealData)
}

func TestResolver_ScenarioB_SynthesisWhenNothingResolves(t *testing.T) {
	failing := &countingStrategy{name: "sunat", err: errors.New("down")}
	r, _ := newResolver([]strategy.Strategy{failing}, registry.NewEmpty())

	rec, err := r.Resolve(context.Background(), "20999999999")

	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.IsRealData)
	assert.Equal(t, model.QualityPartial, rec.Quality)
}

func TestResolver_ScenarioC_JobLifecycle(t *testing.T) {
	ruc := model.RUC("20131312955")
	s := &countingStrategy{
		name: "sunat",
		rec:  &model.PartialRecord{RUC: ruc, LegalName: "SUNAT", Source: "sunat"},
	}
	r, _ := newResolver([]strategy.Strategy{s}, registry.NewEmpty())

	job, err := r.EnqueueResolve("20131312955")
	require.NoError(t, err)
	assert.Contains(t, []model.JobStatus{model.JobPending, model.JobRunning}, job.Status)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.StartWorkers(ctx, 1)

	deadline := time.Now().Add(2 * time.Second)
	for {
		polled, err := r.PollJob(job.ID)
		require.NoError(t, err)
		if polled.Done() {
			assert.Equal(t, model.JobCompleted, polled.Status)
			require.NotNil(t, polled.Result)
			require.NotNil(t, polled.CompletedAt)
			assert.Equal(t, "SUNAT", polled.Result.LegalName)
			break
		}
		require.True(t, time.Now().Before(deadline), "job never completed")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestResolver_InvalidIdentifier(t *testing.T) {
	r, _ := newResolver(nil, registry.NewEmpty())

	_, err := r.Resolve(context.Background(), "123")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = r.EnqueueResolve("30123456789")
	require.ErrorAs(t, err, &verr)
}

func TestResolver_CacheShortCircuitsSecondResolve(t *testing.T) {
	ruc := model.RUC("20548960771")
	s := &countingStrategy{
		name: "sunat",
		rec:  &model.PartialRecord{RUC: ruc, LegalName: "CONSTRUCTORA ANDINA S.A.C.", Source: "sunat"},
	}
	r, _ := newResolver([]strategy.Strategy{s}, registry.NewEmpty())

	_, err := r.Resolve(context.Background(), ruc.String())
	require.NoError(t, err)
	first := s.calls.Load()

	_, err = r.Resolve(context.Background(), ruc.String())
	require.NoError(t, err)
	assert.Equal(t, first, s.calls.Load(), "second resolve must come from cache")
}

func TestResolver_SyntheticNotCached(t *testing.T) {
	failing := &countingStrategy{name: "sunat", err: errors.New("down")}
	r, store := newResolver([]strategy.Strategy{failing}, registry.NewEmpty())

	_, err := r.Resolve(context.Background(), "20999999999")
	require.NoError(t, err)

	_, ok, err := store.Get(context.Background(), model.RUC("20999999999"), cache.CategoryIdentity)
	require.NoError(t, err)
	assert.False(t, ok, "synthetic records must not be cached")
}

func TestResolver_WarmSkipsCachedAndSynthetic(t *testing.T) {
	ruc := model.RUC("20600074114")
	s := &countingStrategy{
		name: "sunat",
		rec:  &model.PartialRecord{RUC: ruc, LegalName: "CONSORCIO VIAL S.A.C.", Source: "sunat"},
	}
	r, store := newResolver([]strategy.Strategy{s}, registry.NewEmpty())

	require.NoError(t, r.Warm(context.Background(), ruc))
	_, ok, _ := store.Get(context.Background(), ruc, cache.CategoryIdentity)
	assert.True(t, ok)

	calls := s.calls.Load()
	require.NoError(t, r.Warm(context.Background(), ruc))
	assert.Equal(t, calls, s.calls.Load(), "warming a cached RUC must be a no-op")
}

func TestResolver_Invalidate(t *testing.T) {
	ruc := model.RUC("20548960771")
	s := &countingStrategy{
		name: "sunat",
		rec:  &model.PartialRecord{RUC: ruc, LegalName: "CONSTRUCTORA ANDINA S.A.C.", Source: "sunat"},
	}
	r, store := newResolver([]strategy.Strategy{s}, registry.NewEmpty())

	_, err := r.Resolve(context.Background(), ruc.String())
	require.NoError(t, err)
	require.NoError(t, r.Invalidate(context.Background(), ruc.String()))

	_, ok, _ := store.Get(context.Background(), ruc, cache.CategoryIdentity)
	assert.False(t, ok)
}
