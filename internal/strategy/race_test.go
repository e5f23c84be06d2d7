package strategy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/navigation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// stubStrategy is a scripted strategy for racing tests.
type stubStrategy struct {
	name     string
	record   *model.PartialRecord
	err      error
	delay    time.Duration
	supports bool
	// ignoreCtx simulates a strategy that never checks cancellation.
	ignoreCtx bool
}

func (s *stubStrategy) Name() string            { return s.name }
func (s *stubStrategy) Supports(model.RUC) bool { return s.supports }

func (s *stubStrategy) Execute(ctx context.Context, ruc model.RUC) (*model.PartialRecord, error) {
	if s.delay > 0 {
		if s.ignoreCtx {
			time.Sleep(s.delay)
		} else {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return s.record, s.err
}

func fastOpts() RaceOptions {
	return RaceOptions{
		MaxConcurrent:      3,
		PerStrategyTimeout: 100 * time.Millisecond,
		GlobalTimeout:      300 * time.Millisecond,
		Retry:              fastRetry(),
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		JitterFraction: 0,
	}
}

// countingStrategy fails every attempt with a fixed error and counts calls.
type countingStrategy struct {
	name     string
	err      error
	attempts atomic.Int32
}

func (s *countingStrategy) Name() string            { return s.name }
func (s *countingStrategy) Supports(model.RUC) bool { return true }
func (s *countingStrategy) Execute(context.Context, model.RUC) (*model.PartialRecord, error) {
	s.attempts.Add(1)
	return nil, s.err
}

func TestRace_CollectsAllOutcomes(t *testing.T) {
	ruc := model.RUC("20100070970")
	strategies := []Strategy{
		&stubStrategy{name: "probe", supports: true, record: &model.PartialRecord{RUC: ruc, LegalName: "ACME S.A.", Source: "probe"}},
		&stubStrategy{name: "markup", supports: true, err: errors.New("layout changed")},
		&stubStrategy{name: "browser", supports: true, record: &model.PartialRecord{RUC: ruc, LegalName: "ACME SOCIEDAD ANONIMA", Source: "browser"}},
	}

	results := Race(context.Background(), ruc, strategies, fastOpts())

	require.Len(t, results, 3)
	assert.Equal(t, "probe", results[0].Strategy)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "layout changed")
	assert.True(t, results[2].Success)

	recs := Successes(results)
	require.Len(t, recs, 2)
	assert.Equal(t, "probe", recs[0].Source)
}

func TestRace_UnsupportedStrategySkipped(t *testing.T) {
	ruc := model.RUC("10012345678")
	strategies := []Strategy{
		&stubStrategy{name: "osce-probe", supports: false},
		&stubStrategy{name: "sunat-browser", supports: true, record: &model.PartialRecord{RUC: ruc, LegalName: "JUAN PEREZ", Source: "sunat"}},
	}

	results := Race(context.Background(), ruc, strategies, fastOpts())

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "does not support")
	assert.True(t, results[1].Success)
}

func TestRace_SlowStrategyTimesOutOthersSurvive(t *testing.T) {
	ruc := model.RUC("20131312955")
	strategies := []Strategy{
		&stubStrategy{name: "slow", supports: true, delay: time.Second, record: &model.PartialRecord{RUC: ruc}},
		&stubStrategy{name: "fast", supports: true, record: &model.PartialRecord{RUC: ruc, LegalName: "EMPRESA", Source: "fast"}},
	}

	start := time.Now()
	results := Race(context.Background(), ruc, strategies, fastOpts())
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Less(t, elapsed, 500*time.Millisecond, "pass must not wait out the slow strategy")
}

func TestRace_AbandonsStragglerAtGlobalDeadline(t *testing.T) {
	ruc := model.RUC("20548960771")
	strategies := []Strategy{
		&stubStrategy{name: "hung", supports: true, delay: 2 * time.Second, ignoreCtx: true},
	}

	start := time.Now()
	results := Race(context.Background(), ruc, strategies, fastOpts())
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Less(t, elapsed, time.Second, "pass must return at the global deadline")
}

func TestRace_AllFailuresStillReturns(t *testing.T) {
	ruc := model.RUC("20600074114")
	strategies := []Strategy{
		&stubStrategy{name: "a", supports: true, err: errors.New("boom")},
		&stubStrategy{name: "b", supports: true, err: errors.New("bust")},
	}

	results := Race(context.Background(), ruc, strategies, fastOpts())

	require.Len(t, results, 2)
	assert.Empty(t, Successes(results))
}

func TestRace_StructureErrorReachesCallback(t *testing.T) {
	ruc := model.RUC("20100070970")
	strategies := []Strategy{
		&stubStrategy{name: "sunat-browser", supports: true, err: &navigation.StructureError{State: "detail", Tried: []string{"#razonSocial"}}},
		&stubStrategy{name: "osce-probe", supports: true, err: errors.New("connection refused")},
	}

	var mu sync.Mutex
	var flagged []string
	opts := fastOpts()
	opts.OnStructureError = func(strategy string, err error) {
		mu.Lock()
		flagged = append(flagged, strategy)
		mu.Unlock()
	}

	results := Race(context.Background(), ruc, strategies, opts)

	require.Len(t, results, 2)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"sunat-browser"}, flagged, "only layout mismatches must be escalated")
}

func TestRace_RetriesTransientFailuresToAttemptBound(t *testing.T) {
	ruc := model.RUC("20100070970")
	flaky := &countingStrategy{
		name: "sunat-probe",
		err:  resilience.NewTransientError(errors.New("status 503"), 503),
	}

	results := Race(context.Background(), ruc, []Strategy{flaky}, fastOpts())

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.True(t, results[0].Transient)
	assert.Equal(t, int32(3), flaky.attempts.Load(), "transient failures must use every attempt")
}

func TestRace_NavigationTimeoutRetried(t *testing.T) {
	ruc := model.RUC("20131312955")
	flaky := &countingStrategy{
		name: "sunat-browser",
		err:  &navigation.TimeoutError{State: "search", Signal: "#resultado"},
	}

	results := Race(context.Background(), ruc, []Strategy{flaky}, fastOpts())

	require.Len(t, results, 1)
	assert.True(t, results[0].Transient)
	assert.Equal(t, int32(3), flaky.attempts.Load())
}

func TestRace_AntiBotGetsSingleAttempt(t *testing.T) {
	ruc := model.RUC("20600074114")
	blocked := &countingStrategy{
		name: "osce-markup",
		err:  &BlockError{Strategy: "osce-markup", Type: BlockCaptcha},
	}
	mismatch := &countingStrategy{
		name: "sunat-browser",
		err:  &navigation.StructureError{State: "detail", Tried: []string{"#razonSocial"}},
	}

	results := Race(context.Background(), ruc, []Strategy{blocked, mismatch}, fastOpts())

	require.Len(t, results, 2)
	assert.False(t, results[0].Transient)
	assert.False(t, results[1].Transient)
	assert.Equal(t, int32(1), blocked.attempts.Load(), "anti-bot blocks must not be retried")
	assert.Equal(t, int32(1), mismatch.attempts.Load(), "layout mismatches must not be retried")
}

func TestRace_ProbeRetriedAgainstErroringEndpoint(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	probe := NewProbeStrategy("sunat-probe", srv.URL+"/{ruc}",
		WithProbeLimit(1000, 1000))

	opts := fastOpts()
	opts.PerStrategyTimeout = time.Second
	opts.GlobalTimeout = 2 * time.Second
	results := Race(context.Background(), model.RUC("20548960771"), []Strategy{probe}, opts)

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.True(t, results[0].Transient)
	assert.Equal(t, int32(3), hits.Load(), "a 503-ing endpoint must be hit once per attempt")
}

func TestRace_NilRecordCountsAsFailure(t *testing.T) {
	ruc := model.RUC("20100070970")
	strategies := []Strategy{
		&stubStrategy{name: "empty", supports: true},
	}

	results := Race(context.Background(), ruc, strategies, fastOpts())

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "no record")
}
