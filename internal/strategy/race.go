package strategy

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/navigation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// RaceOptions bound a resolution pass across strategies.
type RaceOptions struct {
	// MaxConcurrent caps simultaneously running strategies. Default: 3.
	MaxConcurrent int
	// PerStrategyTimeout bounds each strategy's Execute. Default: 20s.
	PerStrategyTimeout time.Duration
	// GlobalTimeout bounds the whole pass. Strategies still running when it
	// expires are cancelled and reported as failures. Default: 45s.
	GlobalTimeout time.Duration
	// Retry wraps every strategy attempt: transient failures back off and
	// try again within the per-strategy budget, systemic ones (anti-bot,
	// layout mismatch) fail the strategy on the first attempt. The zero
	// value means DefaultRetryConfig.
	Retry resilience.RetryConfig
	// OnStructureError is invoked when a strategy fails against a page
	// layout it no longer recognizes. A redesigned portal stays broken until
	// someone updates the profile, so these need to reach an operator.
	OnStructureError func(strategy string, err error)
}

// DefaultRaceOptions returns the bounds used by the resolution engine.
func DefaultRaceOptions() RaceOptions {
	return RaceOptions{
		MaxConcurrent:      3,
		PerStrategyTimeout: 20 * time.Second,
		GlobalTimeout:      45 * time.Second,
	}
}

func (o RaceOptions) withDefaults() RaceOptions {
	d := DefaultRaceOptions()
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = d.MaxConcurrent
	}
	if o.PerStrategyTimeout <= 0 {
		o.PerStrategyTimeout = d.PerStrategyTimeout
	}
	if o.GlobalTimeout <= 0 {
		o.GlobalTimeout = d.GlobalTimeout
	}
	return o
}

// Race runs every supporting strategy concurrently and collects all
// outcomes. Each strategy is individually wrapped with the retry policy,
// so a flaky portal gets its backoff without holding up the others. The
// pass never fails as a whole: when every strategy errors the results
// carry no successes and the caller decides what that means. Results
// preserve the input strategy order.
func Race(ctx context.Context, ruc model.RUC, strategies []Strategy, opts RaceOptions) []model.StrategyResult {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.GlobalTimeout)
	defer cancel()

	results := make([]model.StrategyResult, len(strategies))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.MaxConcurrent)

	for i, s := range strategies {
		i, s := i, s
		if !s.Supports(ruc) {
			results[i] = model.StrategyResult{
				Strategy: s.Name(),
				Error:    "strategy does not support this RUC",
			}
			continue
		}
		retry := opts.Retry
		if retry.OnRetry == nil {
			retry.OnRetry = resilience.RetryLogger(s.Name(), "execute")
		}
		g.Go(func() error {
			start := time.Now()
			sCtx, sCancel := context.WithTimeout(gCtx, opts.PerStrategyTimeout)
			rec, err := resilience.DoVal(sCtx, retry, func(ctx context.Context) (*model.PartialRecord, error) {
				return s.Execute(ctx, ruc)
			})
			sCancel()

			res := model.StrategyResult{
				Strategy: s.Name(),
				Elapsed:  time.Since(start),
			}
			switch {
			case err != nil:
				res.Error = err.Error()
				res.Transient = resilience.IsTransient(err)
				if opts.OnStructureError != nil && navigation.IsStructureMismatch(err) {
					opts.OnStructureError(s.Name(), err)
				}
				zap.L().Debug("strategy failed",
					zap.String("strategy", s.Name()),
					zap.String("ruc", ruc.String()),
					zap.Duration("elapsed", res.Elapsed),
					zap.Error(err),
				)
			case rec == nil:
				res.Error = "strategy returned no record"
			default:
				res.Success = true
				res.Record = rec
			}

			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}

	// Wait for the pass, but never past the global deadline. A strategy
	// that ignores cancellation is abandoned; its goroutine drains on its
	// own once it notices the dead context.
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	mu.Lock()
	snapshot := make([]model.StrategyResult, len(results))
	copy(snapshot, results)
	mu.Unlock()

	for i, s := range strategies {
		if snapshot[i].Strategy == "" {
			snapshot[i] = model.StrategyResult{
				Strategy: s.Name(),
				Error:    "abandoned: global timeout",
			}
		}
	}
	return snapshot
}

// Successes filters a pass down to the records that extracted something.
func Successes(results []model.StrategyResult) []*model.PartialRecord {
	var recs []*model.PartialRecord
	for _, r := range results {
		if r.Success && r.Record != nil {
			recs = append(recs, r.Record)
		}
	}
	return recs
}
