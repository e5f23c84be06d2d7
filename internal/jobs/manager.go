// Package jobs tracks background resolution tasks. Jobs live in a bounded
// in-memory table; when it fills, the oldest fifth is evicted to keep the
// process long-lived without unbounded growth.
package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

const (
	// DefaultCapacity bounds the job table.
	DefaultCapacity = 1000
	// evictFraction of the table is dropped, oldest first, when full.
	evictFraction = 0.2
)

// ErrNotFound is returned when polling an unknown or evicted job.
var ErrNotFound = eris.New("jobs: not found")

// ResolveFunc performs the actual resolution for a submitted job.
type ResolveFunc func(ctx context.Context, ruc model.RUC) (*model.ConsolidatedRecord, error)

// Manager owns the job table and the workers that drain it.
type Manager struct {
	resolve  ResolveFunc
	capacity int
	queue    chan string

	mu   sync.Mutex
	jobs map[string]*model.Job

	wg      sync.WaitGroup
	nowFunc func() time.Time
}

// NewManager creates a job manager. capacity <= 0 means DefaultCapacity.
func NewManager(resolve ResolveFunc, capacity int) *Manager {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Manager{
		resolve:  resolve,
		capacity: capacity,
		queue:    make(chan string, capacity),
		jobs:     make(map[string]*model.Job),
		nowFunc:  time.Now,
	}
}

// Start launches n workers that process submitted jobs until ctx ends.
func (m *Manager) Start(ctx context.Context, n int) {
	if n <= 0 {
		n = 2
	}
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
}

// Wait blocks until all workers have drained after their context ended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Submit registers a new pending job and queues it for resolution.
func (m *Manager) Submit(ruc model.RUC) (*model.Job, error) {
	job := &model.Job{
		ID:        uuid.NewString(),
		RUC:       ruc,
		Status:    model.JobPending,
		CreatedAt: m.nowFunc().UTC(),
	}

	m.mu.Lock()
	if len(m.jobs) >= m.capacity {
		m.evictOldestLocked()
	}
	m.jobs[job.ID] = job
	m.mu.Unlock()

	select {
	case m.queue <- job.ID:
	default:
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		return nil, eris.New("jobs: queue full")
	}
	return m.snapshot(job.ID)
}

// Get returns a copy of the job's current state.
func (m *Manager) Get(id string) (*model.Job, error) {
	return m.snapshot(id)
}

// List returns copies of all tracked jobs, newest first.
func (m *Manager) List() []*model.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Counts returns how many jobs sit in each status.
func (m *Manager) Counts() map[model.JobStatus]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[model.JobStatus]int, 4)
	for _, j := range m.jobs {
		counts[j.Status]++
	}
	return counts
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			m.run(ctx, id)
		}
	}
}

func (m *Manager) run(ctx context.Context, id string) {
	m.mu.Lock()
	job, ok := m.jobs[id]
	if !ok {
		// Evicted while queued.
		m.mu.Unlock()
		return
	}
	now := m.nowFunc().UTC()
	job.Status = model.JobRunning
	job.StartedAt = &now
	ruc := job.RUC
	m.mu.Unlock()

	rec, err := m.resolve(ctx, ruc)

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok = m.jobs[id]
	if !ok {
		return
	}
	done := m.nowFunc().UTC()
	job.CompletedAt = &done
	if err != nil {
		job.Status = model.JobFailed
		job.Error = "resolution failed"
		job.ErrorDetails = err.Error()
		zap.L().Warn("job failed",
			zap.String("job_id", id),
			zap.String("ruc", ruc.String()),
			zap.Error(err),
		)
		return
	}
	job.Status = model.JobCompleted
	job.Result = rec
}

// evictOldestLocked drops the oldest fifth of the table. Running jobs are
// skipped; their completion still needs a row to land in.
func (m *Manager) evictOldestLocked() {
	type aged struct {
		id      string
		created time.Time
	}
	candidates := make([]aged, 0, len(m.jobs))
	for id, j := range m.jobs {
		if j.Status == model.JobRunning {
			continue
		}
		candidates = append(candidates, aged{id: id, created: j.CreatedAt})
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].created.Before(candidates[j].created)
	})

	n := int(float64(m.capacity) * evictFraction)
	if n < 1 {
		n = 1
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	for _, c := range candidates[:n] {
		delete(m.jobs, c.id)
	}
	zap.L().Debug("jobs: evicted oldest entries", zap.Int("evicted", n))
}

func (m *Manager) snapshot(id string) (*model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}
