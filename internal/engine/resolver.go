// Package engine exposes the resolution facade the transports call into:
// validate, consult the cache, walk the fallback chain, cache the result,
// and feed the prefetch tracker.
package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/fallback"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/jobs"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/prefetch"
)

// Resolver is the synchronous resolution facade. Safe for concurrent use.
type Resolver struct {
	chain   *fallback.Chain
	store   cache.Store
	tracker *prefetch.Tracker
	jobs    *jobs.Manager
}

// NewResolver wires the facade. The job manager is created here so its
// workers run the same path as synchronous resolution.
func NewResolver(chain *fallback.Chain, store cache.Store, tracker *prefetch.Tracker, jobCapacity int) *Resolver {
	r := &Resolver{
		chain:   chain,
		store:   store,
		tracker: tracker,
	}
	r.jobs = jobs.NewManager(r.resolveParsed, jobCapacity)
	return r
}

// Jobs exposes the job manager for transports and monitoring.
func (r *Resolver) Jobs() *jobs.Manager {
	return r.jobs
}

// StartWorkers launches the background job workers.
func (r *Resolver) StartWorkers(ctx context.Context, n int) {
	r.jobs.Start(ctx, n)
}

// Resolve validates raw and resolves it, preferring the cache. Returns a
// model.ValidationError for malformed identifiers; otherwise the record is
// never nil.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*model.ConsolidatedRecord, error) {
	ruc, err := model.ParseRUC(raw)
	if err != nil {
		return nil, err
	}
	return r.resolveParsed(ctx, ruc)
}

func (r *Resolver) resolveParsed(ctx context.Context, ruc model.RUC) (*model.ConsolidatedRecord, error) {
	r.tracker.Record(ruc)

	if rec, ok, err := cache.GetRecord(ctx, r.store, ruc); err == nil && ok {
		zap.L().Debug("engine: cache hit", zap.String("ruc", ruc.String()))
		return rec, nil
	} else if err != nil {
		zap.L().Warn("engine: cache read failed", zap.String("ruc", ruc.String()), zap.Error(err))
	}

	rec, stage := r.chain.Resolve(ctx, ruc)
	r.cacheIfReal(ctx, rec)

	zap.L().Info("engine: resolved",
		zap.String("ruc", ruc.String()),
		zap.String("stage", string(stage)),
		zap.String("quality", string(rec.Quality)),
		zap.Bool("real_data", rec.IsRealData),
	)
	return rec, nil
}

// Warm resolves a RUC for the prefetch scheduler: no tracker feedback (the
// pass would inflate its own popularity numbers) and no synthetic caching.
func (r *Resolver) Warm(ctx context.Context, ruc model.RUC) error {
	if _, ok, err := cache.GetRecord(ctx, r.store, ruc); err == nil && ok {
		return nil
	}
	rec, stage := r.chain.Resolve(ctx, ruc)
	if stage == fallback.StageSynthetic {
		// Nothing real to keep warm.
		return nil
	}
	r.cacheIfReal(ctx, rec)
	return nil
}

// EnqueueResolve validates raw and submits a background job for it.
func (r *Resolver) EnqueueResolve(raw string) (*model.Job, error) {
	ruc, err := model.ParseRUC(raw)
	if err != nil {
		return nil, err
	}
	return r.jobs.Submit(ruc)
}

// PollJob returns the current state of a background job.
func (r *Resolver) PollJob(id string) (*model.Job, error) {
	return r.jobs.Get(id)
}

// Invalidate drops all cached categories for raw.
func (r *Resolver) Invalidate(ctx context.Context, raw string) error {
	ruc, err := model.ParseRUC(raw)
	if err != nil {
		return err
	}
	return r.store.Invalidate(ctx, ruc)
}

// cacheIfReal stores resolved data. Synthetic records are never cached:
// they are a last resort, and a cached placeholder would mask the portals
// coming back.
func (r *Resolver) cacheIfReal(ctx context.Context, rec *model.ConsolidatedRecord) {
	if rec == nil || !rec.IsRealData {
		return
	}
	if err := cache.SetRecord(ctx, r.store, rec); err != nil {
		zap.L().Warn("engine: cache write failed",
			zap.String("ruc", rec.RUC.String()),
			zap.Error(err),
		)
	}
}
