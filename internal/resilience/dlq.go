package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// DLQEntry represents a failed resolution that can be retried later.
type DLQEntry struct {
	RUC          model.RUC `json:"ruc"`
	Strategy     string    `json:"strategy,omitempty"`
	Error        string    `json:"error"`
	ErrorType    string    `json:"error_type"` // "transient" or "permanent"
	RetryCount   int       `json:"retry_count"`
	MaxRetries   int       `json:"max_retries"`
	NextRetryAt  time.Time `json:"next_retry_at"`
	CreatedAt    time.Time `json:"created_at"`
	LastFailedAt time.Time `json:"last_failed_at"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DLQ holds failed resolutions keyed by RUC so background passes can retry
// transient failures. Re-recording an existing RUC bumps its retry count and
// pushes the next retry out by the entry's backoff.
type DLQ struct {
	mu         sync.Mutex
	entries    map[model.RUC]*DLQEntry
	maxRetries int
	retryAfter time.Duration

	nowFunc func() time.Time
}

// NewDLQ creates a dead letter queue. Entries are retried at most maxRetries
// times, spaced at least retryAfter apart.
func NewDLQ(maxRetries int, retryAfter time.Duration) *DLQ {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryAfter <= 0 {
		retryAfter = 5 * time.Minute
	}
	return &DLQ{
		entries:    make(map[model.RUC]*DLQEntry),
		maxRetries: maxRetries,
		retryAfter: retryAfter,
		nowFunc:    time.Now,
	}
}

// Record adds or updates the entry for ruc after a failed resolution.
func (q *DLQ) Record(ruc model.RUC, strategy string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.nowFunc()
	e, ok := q.entries[ruc]
	if !ok {
		q.entries[ruc] = &DLQEntry{
			RUC:          ruc,
			Strategy:     strategy,
			Error:        err.Error(),
			ErrorType:    ClassifyError(err),
			MaxRetries:   q.maxRetries,
			NextRetryAt:  now.Add(q.retryAfter),
			CreatedAt:    now,
			LastFailedAt: now,
		}
		return
	}
	e.Strategy = strategy
	e.Error = err.Error()
	e.ErrorType = ClassifyError(err)
	e.RetryCount++
	e.NextRetryAt = now.Add(q.retryAfter * time.Duration(e.RetryCount+1))
	e.LastFailedAt = now
}

// Resolve removes the entry for ruc after a successful resolution.
func (q *DLQ) Resolve(ruc model.RUC) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.entries, ruc)
}

// Due returns transient entries whose retry time has passed and that still
// have retries left, oldest failure first.
func (q *DLQ) Due() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.nowFunc()
	var due []DLQEntry
	for _, e := range q.entries {
		if e.ErrorType != "transient" || !e.CanRetry() || e.NextRetryAt.After(now) {
			continue
		}
		due = append(due, *e)
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].LastFailedAt.Before(due[j].LastFailedAt)
	})
	return due
}

// Entries returns a snapshot of every queued entry, oldest failure first.
func (q *DLQ) Entries() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DLQEntry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastFailedAt.Before(out[j].LastFailedAt)
	})
	return out
}

// Len returns the number of queued entries.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
