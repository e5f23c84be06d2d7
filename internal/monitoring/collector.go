// Package monitoring collects resolution health metrics and raises webhook
// alerts when the system degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/jobs"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Job metrics over the tracked job table.
	JobsPending   int     `json:"jobs_pending"`
	JobsRunning   int     `json:"jobs_running"`
	JobsCompleted int     `json:"jobs_completed"`
	JobsFailed    int     `json:"jobs_failed"`
	JobFailRate   float64 `json:"job_fail_rate"`

	// Cache behavior since process start.
	CacheEntries int     `json:"cache_entries"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`
	CacheExpired int64   `json:"cache_expired"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	// Live portal health.
	LiveErrorRate float64 `json:"live_error_rate"`

	// Dead letter queue depth, split by retryability.
	DLQDepth     int `json:"dlq_depth"`
	DLQPermanent int `json:"dlq_permanent"`

	// Per-portal circuit breaker states.
	Breakers map[string]string `json:"breakers,omitempty"`

	CollectedAt time.Time `json:"collected_at"`
}

// LiveHealth reports the rolling live-resolution failure fraction.
type LiveHealth interface {
	LiveErrorRate() float64
}

// Collector gathers metrics from the job table, cache, fallback chain, and
// dead letter queue. Any source may be nil; its metrics stay zero.
type Collector struct {
	jobs     *jobs.Manager
	store    cache.Store
	live     LiveHealth
	dlq      *resilience.DLQ
	breakers *resilience.ServiceBreakers
}

// NewCollector creates a metrics collector.
func NewCollector(jm *jobs.Manager, store cache.Store, live LiveHealth, dlq *resilience.DLQ, breakers *resilience.ServiceBreakers) *Collector {
	return &Collector{
		jobs:     jm,
		store:    store,
		live:     live,
		dlq:      dlq,
		breakers: breakers,
	}
}

// Collect gathers a snapshot of system metrics.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		CollectedAt: time.Now().UTC(),
	}

	if c.jobs != nil {
		counts := c.jobs.Counts()
		snap.JobsPending = counts[model.JobPending]
		snap.JobsRunning = counts[model.JobRunning]
		snap.JobsCompleted = counts[model.JobCompleted]
		snap.JobsFailed = counts[model.JobFailed]
		if finished := snap.JobsCompleted + snap.JobsFailed; finished > 0 {
			snap.JobFailRate = float64(snap.JobsFailed) / float64(finished)
		}
	}

	if c.store != nil {
		stats, err := c.store.Stats(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: cache stats")
		}
		snap.CacheEntries = stats.Entries
		snap.CacheHits = stats.Hits
		snap.CacheMisses = stats.Misses
		snap.CacheExpired = stats.Expired
		if looked := stats.Hits + stats.Misses; looked > 0 {
			snap.CacheHitRate = float64(stats.Hits) / float64(looked)
		}
	}

	if c.live != nil {
		snap.LiveErrorRate = c.live.LiveErrorRate()
	}

	if c.dlq != nil {
		entries := c.dlq.Entries()
		snap.DLQDepth = len(entries)
		for _, e := range entries {
			if e.ErrorType == "permanent" {
				snap.DLQPermanent++
			}
		}
	}

	if c.breakers != nil {
		states := c.breakers.States()
		snap.Breakers = make(map[string]string, len(states))
		for name, state := range states {
			snap.Breakers[name] = state.String()
		}
	}

	return snap, nil
}
