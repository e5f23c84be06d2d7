package strategy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// probeResponse is the common shape of the registries' lookup endpoints.
// Field names differ per portal; alternates are folded in after decoding.
type probeResponse struct {
	RUC         string   `json:"ruc"`
	LegalName   string   `json:"razonSocial"`
	Name        string   `json:"nombre"`
	Address     string   `json:"direccion"`
	Phone       string   `json:"telefono"`
	Email       string   `json:"email"`
	Status      string   `json:"estado"`
	Specialties []string `json:"especialidades"`
}

// ProbeStrategy queries a registry's structured lookup endpoint directly.
// Cheapest and fastest strategy; many registries expose one even when the
// public UI is a browser application.
type ProbeStrategy struct {
	name        string
	urlTemplate string // {ruc} is replaced with the identifier
	client      *http.Client
	limiter     *rate.Limiter
	// juridicalOnly restricts the strategy to "20" RUCs.
	juridicalOnly bool

	nowFunc func() time.Time
}

// ProbeOption configures a ProbeStrategy.
type ProbeOption func(*ProbeStrategy)

// WithProbeClient overrides the HTTP client.
func WithProbeClient(c *http.Client) ProbeOption {
	return func(p *ProbeStrategy) { p.client = c }
}

// WithProbeLimit caps the request rate against the endpoint.
func WithProbeLimit(rps float64, burst int) ProbeOption {
	return func(p *ProbeStrategy) { p.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// JuridicalOnly restricts the strategy to juridical-person RUCs.
func JuridicalOnly() ProbeOption {
	return func(p *ProbeStrategy) { p.juridicalOnly = true }
}

// NewProbeStrategy creates a probe against urlTemplate, which must contain
// the literal {ruc} placeholder.
func NewProbeStrategy(name, urlTemplate string, opts ...ProbeOption) *ProbeStrategy {
	p := &ProbeStrategy{
		name:        name,
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(2), 2),
		nowFunc:     time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *ProbeStrategy) Name() string { return p.name }

func (p *ProbeStrategy) Supports(ruc model.RUC) bool {
	if p.juridicalOnly {
		return ruc.Kind() == model.PersonJuridical
	}
	return true
}

func (p *ProbeStrategy) Execute(ctx context.Context, ruc model.RUC) (*model.PartialRecord, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := strings.ReplaceAll(p.urlTemplate, "{ruc}", ruc.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: build request", p.name)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: request failed", p.name), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: read body", p.name), 0)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, &BlockError{Strategy: p.name, Type: kind}
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("%s: status %d", p.name, resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, eris.Errorf("%s: no record for %s", p.name, ruc)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("%s: unexpected status %d", p.name, resp.StatusCode)
	}

	var pr probeResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, eris.Wrapf(err, "%s: decode response", p.name)
	}
	if pr.LegalName == "" {
		pr.LegalName = pr.Name
	}
	if pr.LegalName == "" {
		return nil, eris.Errorf("%s: response carries no legal name", p.name)
	}

	return &model.PartialRecord{
		RUC:         ruc,
		LegalName:   strings.TrimSpace(pr.LegalName),
		Address:     strings.TrimSpace(pr.Address),
		Phone:       strings.TrimSpace(pr.Phone),
		Email:       strings.TrimSpace(pr.Email),
		Status:      strings.ToUpper(strings.TrimSpace(pr.Status)),
		Specialties: pr.Specialties,
		Source:      p.name,
		ExtractedAt: p.nowFunc().UTC(),
	}, nil
}
