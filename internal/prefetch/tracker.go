// Package prefetch warms the cache ahead of demand: it watches what gets
// requested, guesses what will be requested next, and resolves those RUCs
// in the background.
package prefetch

import (
	"sort"
	"sync"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

const (
	// defaultHistorySize bounds the request history ring.
	defaultHistorySize = 100
	// defaultPopularityThreshold is how many sightings make a RUC popular.
	defaultPopularityThreshold = 3
)

// Tracker records resolution requests and surfaces the popular and recent
// identifiers. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	history   []model.RUC
	next      int
	filled    bool
	counts    map[model.RUC]int
	threshold int
}

// NewTracker creates a tracker. Non-positive arguments use the defaults.
func NewTracker(historySize, popularityThreshold int) *Tracker {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if popularityThreshold <= 0 {
		popularityThreshold = defaultPopularityThreshold
	}
	return &Tracker{
		history:   make([]model.RUC, historySize),
		counts:    make(map[model.RUC]int),
		threshold: popularityThreshold,
	}
}

// Record notes one resolution request. When the history ring wraps, the
// displaced sighting stops counting toward popularity.
func (t *Tracker) Record(ruc model.RUC) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.filled {
		old := t.history[t.next]
		if t.counts[old] > 1 {
			t.counts[old]--
		} else {
			delete(t.counts, old)
		}
	}
	t.history[t.next] = ruc
	t.counts[ruc]++
	t.next++
	if t.next == len(t.history) {
		t.next = 0
		t.filled = true
	}
}

// Popular returns RUCs seen at least threshold times in the current
// history, most requested first.
func (t *Tracker) Popular() []model.RUC {
	t.mu.Lock()
	defer t.mu.Unlock()

	var popular []model.RUC
	for ruc, n := range t.counts {
		if n >= t.threshold {
			popular = append(popular, ruc)
		}
	}
	sort.Slice(popular, func(i, j int) bool {
		if t.counts[popular[i]] != t.counts[popular[j]] {
			return t.counts[popular[i]] > t.counts[popular[j]]
		}
		return popular[i] < popular[j]
	})
	return popular
}

// Recent returns up to n distinct identifiers, newest first.
func (t *Tracker) Recent(n int) []model.RUC {
	t.mu.Lock()
	defer t.mu.Unlock()

	size := t.next
	if t.filled {
		size = len(t.history)
	}
	seen := make(map[model.RUC]bool, n)
	var recent []model.RUC
	for i := 0; i < size && len(recent) < n; i++ {
		idx := t.next - 1 - i
		if idx < 0 {
			idx += len(t.history)
		}
		ruc := t.history[idx]
		if ruc == "" || seen[ruc] {
			continue
		}
		seen[ruc] = true
		recent = append(recent, ruc)
	}
	return recent
}
