// Package automation defines the page-automation capability the navigation
// engine drives. Implementations wrap a real browser runtime; the engine
// only sees sessions, signals, and rendered text.
package automation

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// ErrWaitTimeout is returned by Session.WaitFor when the signal did not
// occur within the given timeout. Adapters must return it (possibly
// wrapped) so callers can tell a slow page from a missing element.
var ErrWaitTimeout = eris.New("automation: wait timed out")

// SignalKind selects what a WaitFor call is waiting on.
type SignalKind string

const (
	// SignalSelector waits for an element matching a CSS selector to be visible.
	SignalSelector SignalKind = "selector"
	// SignalText waits for the given text to appear anywhere on the page.
	SignalText SignalKind = "text"
	// SignalNetworkIdle waits for in-flight page requests to settle.
	SignalNetworkIdle SignalKind = "network_idle"
)

// Signal describes a condition a navigation step waits for.
type Signal struct {
	Kind  SignalKind
	Value string // selector or text; unused for network idle
}

// SelectorVisible builds a selector-visibility signal.
func SelectorVisible(selector string) Signal {
	return Signal{Kind: SignalSelector, Value: selector}
}

// TextPresent builds a text-presence signal.
func TextPresent(text string) Signal {
	return Signal{Kind: SignalText, Value: text}
}

// NetworkIdle builds a network-idle signal.
func NetworkIdle() Signal {
	return Signal{Kind: SignalNetworkIdle}
}

// SessionConfig carries the anti-detection profile for a session. All of it
// is adapter data: the engine never branches on these values.
type SessionConfig struct {
	UserAgent      string        `json:"user_agent"`
	ViewportWidth  int           `json:"viewport_width"`
	ViewportHeight int           `json:"viewport_height"`
	Locale         string        `json:"locale"`
	Timezone       string        `json:"timezone"`
	// MaskAutomation injects scripts that hide webdriver fingerprints.
	MaskAutomation bool `json:"mask_automation"`
	// TypingDelay paces keystrokes to look human.
	TypingDelay time.Duration `json:"typing_delay"`
	Headless    bool          `json:"headless"`
}

// DefaultSessionConfig returns the profile used against the registry portals.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1366,
		ViewportHeight: 768,
		Locale:         "es-PE",
		Timezone:       "America/Lima",
		MaskAutomation: true,
		TypingDelay:    45 * time.Millisecond,
		Headless:       true,
	}
}

// Session is one isolated browser context. Sessions are not safe for
// concurrent use; each navigation run owns its session and must close it
// on every exit path.
type Session interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitFor(ctx context.Context, sig Signal, timeout time.Duration) error
	// ReadText returns the rendered text of the first element matching the
	// selector, or "" when nothing matches.
	ReadText(ctx context.Context, selector string) (string, error)
	// ReadTable returns the cell text of a table element, row-major.
	ReadTable(ctx context.Context, selector string) ([][]string, error)
	// PageText returns the full rendered text of the current page.
	PageText(ctx context.Context) (string, error)
	// Visible reports whether any element matching the selector is visible.
	Visible(ctx context.Context, selector string) (bool, error)
	Close() error
}

// Browser opens isolated sessions. Implementations must support concurrent
// OpenSession calls; the returned sessions are independent contexts.
type Browser interface {
	OpenSession(ctx context.Context, cfg SessionConfig) (Session, error)
}
