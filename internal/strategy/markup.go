package strategy

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/navigation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// MarkupStrategy fetches a portal's detail page in a single request and
// scans the raw markup with the profile's field patterns. No session, no
// scripting; works only while the portal renders data server-side.
type MarkupStrategy struct {
	name        string
	urlTemplate string
	fields      []navigation.FieldLocator
	client      *http.Client
	limiter     *rate.Limiter

	nowFunc func() time.Time
}

// NewMarkupStrategy creates a single-request markup scan. urlTemplate must
// contain the literal {ruc} placeholder; fields supply the text patterns
// (selector variants are ignored here).
func NewMarkupStrategy(name, urlTemplate string, fields []navigation.FieldLocator) *MarkupStrategy {
	return &MarkupStrategy{
		name:        name,
		urlTemplate: urlTemplate,
		fields:      fields,
		client:      &http.Client{Timeout: 15 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(1), 2),
		nowFunc:     time.Now,
	}
}

func (m *MarkupStrategy) Name() string { return m.name }

func (m *MarkupStrategy) Supports(model.RUC) bool { return true }

func (m *MarkupStrategy) Execute(ctx context.Context, ruc model.RUC) (*model.PartialRecord, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := strings.ReplaceAll(m.urlTemplate, "{ruc}", ruc.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: build request", m.name)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: request failed", m.name), 0)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrapf(err, "%s: read body", m.name), 0)
	}

	if blocked, kind := DetectBlock(resp, body); blocked {
		return nil, &BlockError{Strategy: m.name, Type: kind}
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("%s: status %d", m.name, resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("%s: unexpected status %d", m.name, resp.StatusCode)
	}

	text := flattenMarkup(string(body))
	rec := &model.PartialRecord{
		RUC:         ruc,
		Source:      m.name,
		ExtractedAt: m.nowFunc().UTC(),
	}
	for _, loc := range m.fields {
		if loc.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(loc.Pattern)
		if err != nil {
			rec.Warnings = append(rec.Warnings, "bad pattern for field "+loc.Key)
			continue
		}
		match := re.FindStringSubmatch(text)
		if len(match) < 2 {
			rec.Warnings = append(rec.Warnings, "field not found: "+loc.Key)
			continue
		}
		value := strings.TrimSpace(match[1])
		switch loc.Key {
		case "legal_name":
			rec.LegalName = value
		case "address":
			rec.Address = value
		case "phone":
			rec.Phone = value
		case "email":
			rec.Email = value
		case "status":
			rec.Status = strings.ToUpper(value)
		}
	}

	if rec.LegalName == "" {
		return nil, eris.Errorf("%s: markup carries no legal name for %s", m.name, ruc)
	}
	return rec, nil
}

var (
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

// flattenMarkup strips tags so the field patterns run against text the way
// they do against rendered page text.
func flattenMarkup(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	return spaceRe.ReplaceAllString(text, " ")
}
