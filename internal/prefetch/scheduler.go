package prefetch

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/registry"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// adjacentOffsets are the neighborhoods explored around popular RUCs.
// Registrations are assigned sequentially, so nearby numbers often belong
// to companies registered around the same time and place.
var adjacentOffsets = []int64{-50, -25, -10, 10, 25, 50}

// WarmFunc resolves one RUC and stores the result in the cache.
type WarmFunc func(ctx context.Context, ruc model.RUC) error

// SchedulerConfig tunes the background warming loop.
type SchedulerConfig struct {
	// Interval between passes. Default: 5m.
	Interval time.Duration
	// BatchSize is how many RUCs are warmed back to back. Default: 3.
	BatchSize int
	// BatchPause separates batches so portals see a trickle, not a burst.
	// Default: 10s.
	BatchPause time.Duration
	// MaxPerPass caps the candidates attempted in one pass. Default: 15.
	MaxPerPass int
	// RequestsPerSecond caps the warm rate inside a batch. Default: 0.5.
	RequestsPerSecond float64
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 3
	}
	if c.BatchPause <= 0 {
		c.BatchPause = 10 * time.Second
	}
	if c.MaxPerPass <= 0 {
		c.MaxPerPass = 15
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 0.5
	}
	return c
}

// Scheduler runs the periodic cache-warming passes.
type Scheduler struct {
	cfg     SchedulerConfig
	tracker *Tracker
	local   *registry.Local
	store   cache.Store
	dlq     *resilience.DLQ
	warm    WarmFunc
	limiter *rate.Limiter

	// active guards against overlapping passes when one runs long.
	active atomic.Bool
}

// NewScheduler wires the warming loop. dlq may be nil.
func NewScheduler(cfg SchedulerConfig, tracker *Tracker, local *registry.Local, store cache.Store, dlq *resilience.DLQ, warm WarmFunc) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:     cfg,
		tracker: tracker,
		local:   local,
		store:   store,
		dlq:     dlq,
		warm:    warm,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

// Run blocks, firing a warming pass every interval until ctx ends. The
// ticker is jittered so multiple instances never thunder in step.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := jitterbug.New(s.cfg.Interval, &jitterbug.Norm{Stdev: s.cfg.Interval / 20})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes a single warming pass. Overlapping calls are dropped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.active.CompareAndSwap(false, true) {
		zap.L().Debug("prefetch: pass already running, skipping")
		return
	}
	defer s.active.Store(false)

	candidates := s.Candidates(ctx)
	if len(candidates) == 0 {
		return
	}
	zap.L().Info("prefetch: warming pass",
		zap.Int("candidates", len(candidates)),
	)

	var warmed, failed int
	for i, ruc := range candidates {
		if i > 0 && i%s.cfg.BatchSize == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.cfg.BatchPause):
			}
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if err := s.warm(ctx, ruc); err != nil {
			failed++
			zap.L().Debug("prefetch: warm failed",
				zap.String("ruc", ruc.String()),
				zap.Error(err),
			)
			continue
		}
		warmed++
	}
	zap.L().Info("prefetch: pass complete",
		zap.Int("warmed", warmed),
		zap.Int("failed", failed),
	)
}

// Candidates assembles the RUCs worth warming: popular and recent
// identifiers, transient failures due for retry, curated seeds, and the
// registration neighborhoods of popular RUCs. Already-cached entries are
// filtered out.
func (s *Scheduler) Candidates(ctx context.Context) []model.RUC {
	var ordered []model.RUC
	seen := make(map[model.RUC]bool)
	add := func(ruc model.RUC) {
		if ruc == "" || seen[ruc] {
			return
		}
		seen[ruc] = true
		ordered = append(ordered, ruc)
	}

	popular := s.tracker.Popular()
	for _, ruc := range popular {
		add(ruc)
	}
	for _, ruc := range s.tracker.Recent(10) {
		add(ruc)
	}
	if s.dlq != nil {
		for _, e := range s.dlq.Due() {
			add(e.RUC)
		}
	}
	for _, ruc := range s.local.RUCs() {
		add(ruc)
	}
	for _, ruc := range popular {
		for _, adj := range Adjacent(ruc) {
			add(adj)
		}
	}

	// Keep only what the cache doesn't already hold.
	out := ordered[:0]
	for _, ruc := range ordered {
		if _, ok, err := s.store.Get(ctx, ruc, cache.CategoryIdentity); err == nil && ok {
			continue
		}
		out = append(out, ruc)
		if len(out) >= s.cfg.MaxPerPass {
			break
		}
	}
	return out
}

// Adjacent returns the valid RUCs in the registration neighborhood of ruc.
func Adjacent(ruc model.RUC) []model.RUC {
	n, err := strconv.ParseInt(ruc.String(), 10, 64)
	if err != nil {
		return nil
	}
	var out []model.RUC
	for _, off := range adjacentOffsets {
		candidate := strconv.FormatInt(n+off, 10)
		adj, err := model.ParseRUC(candidate)
		if err != nil {
			continue
		}
		out = append(out, adj)
	}
	return out
}
