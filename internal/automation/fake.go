package automation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// FakePage is one scripted page served by the FakeBrowser.
type FakePage struct {
	// Text is the full rendered page text.
	Text string
	// Elements maps selector to rendered element text. Presence in the map
	// makes the selector visible.
	Elements map[string]string
	// Tables maps selector to row-major cell text.
	Tables map[string][][]string
	// ClickRoutes maps a clickable selector to the URL it navigates to.
	ClickRoutes map[string]string
	// LoadDelay is added to every Navigate/WaitFor against this page,
	// letting tests exercise wait budgets.
	LoadDelay time.Duration
}

// FakeBrowser is a scripted in-memory Browser for tests and local demos.
// Pages are keyed by URL; fills and clicks are recorded per session.
type FakeBrowser struct {
	mu      sync.Mutex
	Pages   map[string]*FakePage
	OpenErr error
	// NavigateErr fails every navigation, simulating network trouble.
	NavigateErr error

	opened int
	closed int
}

// NewFakeBrowser creates an empty scripted browser.
func NewFakeBrowser() *FakeBrowser {
	return &FakeBrowser{Pages: map[string]*FakePage{}}
}

// AddPage registers a scripted page under the given URL.
func (b *FakeBrowser) AddPage(url string, page *FakePage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Pages[url] = page
}

// OpenSession returns a new scripted session.
func (b *FakeBrowser) OpenSession(_ context.Context, cfg SessionConfig) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	b.opened++
	return &fakeSession{browser: b, cfg: cfg}, nil
}

// OpenCount returns how many sessions were opened.
func (b *FakeBrowser) OpenCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// ClosedCount returns how many sessions were closed.
func (b *FakeBrowser) ClosedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type fakeSession struct {
	browser *FakeBrowser
	cfg     SessionConfig

	mu      sync.Mutex
	current string
	fills   map[string]string
	closed  bool
}

var errSessionClosed = eris.New("automation: session closed")

func (s *fakeSession) page() *FakePage {
	s.browser.mu.Lock()
	defer s.browser.mu.Unlock()
	return s.browser.Pages[s.current]
}

func (s *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	if s.browser.NavigateErr != nil {
		return s.browser.NavigateErr
	}
	s.browser.mu.Lock()
	page, ok := s.browser.Pages[url]
	s.browser.mu.Unlock()
	if !ok {
		return eris.Errorf("automation: no route for %s", url)
	}
	if page.LoadDelay > timeout {
		return ErrWaitTimeout
	}
	if err := sleepCtx(ctx, page.LoadDelay); err != nil {
		return err
	}
	s.current = url
	s.fills = map[string]string{}
	return nil
}

func (s *fakeSession) Fill(_ context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	page := s.page()
	if page == nil {
		return eris.New("automation: no page loaded")
	}
	if _, ok := page.Elements[selector]; !ok {
		return eris.Errorf("automation: no element %q", selector)
	}
	if s.fills == nil {
		s.fills = map[string]string{}
	}
	s.fills[selector] = value
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	page := s.page()
	if page == nil {
		return eris.New("automation: no page loaded")
	}
	if target, ok := page.ClickRoutes[selector]; ok {
		s.browser.mu.Lock()
		_, exists := s.browser.Pages[target]
		s.browser.mu.Unlock()
		if !exists {
			return eris.Errorf("automation: click route %q leads nowhere", target)
		}
		s.current = target
		return nil
	}
	if _, ok := page.Elements[selector]; ok {
		return nil // clickable but stays on the page
	}
	return eris.Errorf("automation: no element %q", selector)
}

func (s *fakeSession) WaitFor(ctx context.Context, sig Signal, timeout time.Duration) error {
	s.mu.Lock()
	page := s.page()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errSessionClosed
	}
	if page == nil {
		return eris.New("automation: no page loaded")
	}
	if page.LoadDelay > timeout {
		return ErrWaitTimeout
	}
	if err := sleepCtx(ctx, page.LoadDelay); err != nil {
		return err
	}
	switch sig.Kind {
	case SignalNetworkIdle:
		return nil
	case SignalSelector:
		if _, ok := page.Elements[sig.Value]; ok {
			return nil
		}
		if _, ok := page.Tables[sig.Value]; ok {
			return nil
		}
		return ErrWaitTimeout
	case SignalText:
		if strings.Contains(page.Text, sig.Value) {
			return nil
		}
		return ErrWaitTimeout
	default:
		return eris.Errorf("automation: unknown signal kind %q", sig.Kind)
	}
}

func (s *fakeSession) ReadText(_ context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errSessionClosed
	}
	page := s.page()
	if page == nil {
		return "", eris.New("automation: no page loaded")
	}
	return page.Elements[selector], nil
}

func (s *fakeSession) ReadTable(_ context.Context, selector string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	page := s.page()
	if page == nil {
		return nil, eris.New("automation: no page loaded")
	}
	return page.Tables[selector], nil
}

func (s *fakeSession) PageText(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errSessionClosed
	}
	page := s.page()
	if page == nil {
		return "", nil
	}
	return page.Text, nil
}

func (s *fakeSession) Visible(_ context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, errSessionClosed
	}
	page := s.page()
	if page == nil {
		return false, nil
	}
	_, ok := page.Elements[selector]
	if !ok {
		_, ok = page.Tables[selector]
	}
	return ok, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.browser.mu.Lock()
	s.browser.closed++
	s.browser.mu.Unlock()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
