// Package fallback resolves a RUC through a degrading chain: live portal
// strategies, then the curated local table, then deterministic synthesis.
// The chain never fails; the last rung always produces a record.
package fallback

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/consolidate"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/registry"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/strategy"
)

// Stage names the chain rung that produced a record.
type Stage string

const (
	StageLive      Stage = "live"
	StageLocal     Stage = "local"
	StageSynthetic Stage = "synthetic"
)

// skipLiveErrorRate is the rolling live failure fraction beyond which the
// chain goes straight to the local table.
const skipLiveErrorRate = 0.7

// stageMemoryLimit caps the per-RUC stage memory.
const stageMemoryLimit = 4096

// Options tune chain behavior.
type Options struct {
	// PreferLocal short-circuits to the curated table before any live call.
	PreferLocal bool
	// WindowSize is the rolling live-health window. Default: 20.
	WindowSize int
	// Race bounds the live pass.
	Race strategy.RaceOptions
}

// Chain is the fallback resolver. Safe for concurrent use.
type Chain struct {
	strategies []strategy.Strategy
	local      *registry.Local
	opts       Options
	health     *liveWindow
	dlq        *resilience.DLQ

	mu        sync.Mutex
	lastStage map[model.RUC]Stage
}

// NewChain builds the fallback chain. dlq may be nil.
func NewChain(strategies []strategy.Strategy, local *registry.Local, dlq *resilience.DLQ, opts Options) *Chain {
	return &Chain{
		strategies: strategies,
		local:      local,
		opts:       opts,
		health:     newLiveWindow(opts.WindowSize),
		dlq:        dlq,
		lastStage:  make(map[model.RUC]Stage),
	}
}

// Resolve walks the chain for one RUC. The returned record is never nil.
func (c *Chain) Resolve(ctx context.Context, ruc model.RUC) (*model.ConsolidatedRecord, Stage) {
	// Curated data short-circuits: no reason to race portals for a RUC the
	// operator has already vetted, or one that only ever resolved locally.
	if c.opts.PreferLocal || c.remembered(ruc) == StageLocal {
		if rec, ok := c.local.Lookup(ruc); ok {
			c.remember(ruc, StageLocal)
			return rec, StageLocal
		}
	}

	if rate := c.health.errorRate(); rate > skipLiveErrorRate {
		zap.L().Warn("fallback: skipping live resolution, portals unhealthy",
			zap.Float64("error_rate", rate),
			zap.String("ruc", ruc.String()),
		)
	} else if rec := c.resolveLive(ctx, ruc); rec != nil {
		c.remember(ruc, StageLive)
		return rec, StageLive
	}

	if rec, ok := c.local.Lookup(ruc); ok {
		c.remember(ruc, StageLocal)
		return rec, StageLocal
	}

	zap.L().Info("fallback: synthesizing placeholder record",
		zap.String("ruc", ruc.String()),
	)
	c.remember(ruc, StageSynthetic)
	return Synthesize(ruc), StageSynthetic
}

func (c *Chain) resolveLive(ctx context.Context, ruc model.RUC) *model.ConsolidatedRecord {
	results := strategy.Race(ctx, ruc, c.strategies, c.opts.Race)
	recs := strategy.Successes(results)

	merged := consolidate.Merge(ruc, recs)
	c.health.record(merged != nil)

	if merged == nil {
		if c.dlq != nil {
			strat, err := firstFailure(results)
			c.dlq.Record(ruc, strat, err)
		}
		return nil
	}
	if c.dlq != nil {
		c.dlq.Resolve(ruc)
	}
	return merged
}

// LiveErrorRate exposes the rolling live failure fraction for monitoring.
func (c *Chain) LiveErrorRate() float64 {
	return c.health.errorRate()
}

func (c *Chain) remembered(ruc model.RUC) Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStage[ruc]
}

func (c *Chain) remember(ruc model.RUC, s Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Stage memory is a hint. Past the cap an arbitrary entry is dropped;
	// the cost is one extra live attempt for that RUC.
	if _, ok := c.lastStage[ruc]; !ok && len(c.lastStage) >= stageMemoryLimit {
		for k := range c.lastStage {
			delete(c.lastStage, k)
			break
		}
	}
	c.lastStage[ruc] = s
}

// firstFailure picks the failure the DLQ entry is attributed to. The
// classification must survive into the entry: a pass that failed on a
// throttled portal is retried by the prefetch scheduler, one that failed
// on a changed layout is not.
func firstFailure(results []model.StrategyResult) (string, error) {
	// A single throttled portal makes the whole pass worth retrying, so a
	// transient failure wins the attribution over a permanent one.
	for _, r := range results {
		if !r.Success && r.Transient {
			return r.Strategy, resilience.NewTransientError(eris.New(r.Error), 0)
		}
	}
	for _, r := range results {
		if !r.Success && r.Error != "" {
			return r.Strategy, eris.New(r.Error)
		}
	}
	return "", eris.New("all strategies returned empty records")
}
