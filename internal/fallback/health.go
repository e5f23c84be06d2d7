package fallback

import "sync"

// liveWindow tracks recent live-resolution outcomes in a fixed-size ring.
// When the observed error rate crosses the skip threshold, the chain stops
// burning its latency budget on portals that are clearly down.
type liveWindow struct {
	mu       sync.Mutex
	outcomes []bool
	next     int
	filled   bool
}

func newLiveWindow(size int) *liveWindow {
	if size <= 0 {
		size = 20
	}
	return &liveWindow{outcomes: make([]bool, size)}
}

func (w *liveWindow) record(success bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes[w.next] = success
	w.next++
	if w.next == len(w.outcomes) {
		w.next = 0
		w.filled = true
	}
}

// errorRate returns the failure fraction over the window. A window that has
// not seen enough traffic reports 0 so live resolution gets a fair start.
func (w *liveWindow) errorRate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.filled {
		n = len(w.outcomes)
	}
	if n < len(w.outcomes)/2 {
		return 0
	}
	var failures int
	for i := 0; i < n; i++ {
		if !w.outcomes[i] {
			failures++
		}
	}
	return float64(failures) / float64(n)
}
