package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// RemoteBrowser drives a browser runtime over its HTTP adapter API. The
// adapter owns the actual browser processes; each OpenSession call maps to
// one isolated context on the adapter side.
type RemoteBrowser struct {
	base   string
	client *http.Client
}

// NewRemoteBrowser points at an adapter endpoint. A nil client gets a
// default with a timeout generous enough for slow portal pages.
func NewRemoteBrowser(baseURL string, client *http.Client) *RemoteBrowser {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &RemoteBrowser{
		base:   strings.TrimRight(baseURL, "/"),
		client: client,
	}
}

// OpenSession creates a browser context on the adapter.
func (b *RemoteBrowser) OpenSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := b.do(ctx, http.MethodPost, "/sessions", cfg, &out); err != nil {
		return nil, eris.Wrap(err, "automation: open session")
	}
	if out.ID == "" {
		return nil, eris.New("automation: adapter returned no session id")
	}
	return &remoteSession{browser: b, id: out.ID}, nil
}

func (b *RemoteBrowser) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return eris.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.base+path, body)
	if err != nil {
		return eris.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// The adapter reports an expired wait budget as a request timeout so
	// callers can tell a slow page from a broken one.
	if resp.StatusCode == http.StatusRequestTimeout {
		return ErrWaitTimeout
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return eris.Errorf("adapter returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

type remoteSession struct {
	browser *RemoteBrowser
	id      string
}

func (s *remoteSession) path(op string) string {
	return fmt.Sprintf("/sessions/%s/%s", s.id, op)
}

func (s *remoteSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	in := map[string]any{"url": url, "timeout_ms": timeout.Milliseconds()}
	return s.browser.do(ctx, http.MethodPost, s.path("navigate"), in, nil)
}

func (s *remoteSession) Fill(ctx context.Context, selector, value string) error {
	in := map[string]string{"selector": selector, "value": value}
	return s.browser.do(ctx, http.MethodPost, s.path("fill"), in, nil)
}

func (s *remoteSession) Click(ctx context.Context, selector string) error {
	in := map[string]string{"selector": selector}
	return s.browser.do(ctx, http.MethodPost, s.path("click"), in, nil)
}

func (s *remoteSession) WaitFor(ctx context.Context, sig Signal, timeout time.Duration) error {
	in := map[string]any{"kind": sig.Kind, "value": sig.Value, "timeout_ms": timeout.Milliseconds()}
	return s.browser.do(ctx, http.MethodPost, s.path("wait"), in, nil)
}

func (s *remoteSession) ReadText(ctx context.Context, selector string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	in := map[string]string{"selector": selector}
	if err := s.browser.do(ctx, http.MethodPost, s.path("text"), in, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (s *remoteSession) ReadTable(ctx context.Context, selector string) ([][]string, error) {
	var out struct {
		Rows [][]string `json:"rows"`
	}
	in := map[string]string{"selector": selector}
	if err := s.browser.do(ctx, http.MethodPost, s.path("table"), in, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (s *remoteSession) PageText(ctx context.Context) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := s.browser.do(ctx, http.MethodPost, s.path("page_text"), nil, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

func (s *remoteSession) Visible(ctx context.Context, selector string) (bool, error) {
	var out struct {
		Visible bool `json:"visible"`
	}
	in := map[string]string{"selector": selector}
	if err := s.browser.do(ctx, http.MethodPost, s.path("visible"), in, &out); err != nil {
		return false, err
	}
	return out.Visible, nil
}

func (s *remoteSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.browser.do(ctx, http.MethodDelete, "/sessions/"+s.id, nil, nil)
}
