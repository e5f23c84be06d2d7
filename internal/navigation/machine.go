// Package navigation drives a page-automation session through a portal's
// search → detail → extract sequence as an explicit state machine. The
// machine never retries; callers wrap a full run with the retry controller.
package navigation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/automation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// State identifies a position in the navigation sequence.
type State string

const (
	StateInit          State = "init"
	StateFormFilled    State = "form_filled"
	StateSubmitted     State = "submitted"
	StateResultsListed State = "results_listed"
	StateDetailOpen    State = "detail_open"
	StateSubDetailOpen State = "sub_detail_open"
	StateExtracted     State = "extracted"
	StateFailed        State = "failed"
)

// Machine runs one portal profile against one identifier per Run call.
// Each run opens its own session and closes it on every exit path.
type Machine struct {
	browser automation.Browser
	profile Profile
	session automation.SessionConfig
	nowFunc func() time.Time
}

// NewMachine builds a navigation machine for the given portal profile.
func NewMachine(browser automation.Browser, profile Profile, session automation.SessionConfig) *Machine {
	return &Machine{
		browser: browser,
		profile: profile,
		session: session,
		nowFunc: time.Now,
	}
}

// Run drives the full sequence for one identifier and returns the portal's
// partial record. Failures are typed: TimeoutError, NetworkError,
// StructureError, AntiBotError.
func (m *Machine) Run(ctx context.Context, ruc model.RUC) (rec *model.PartialRecord, err error) {
	state := StateInit
	budget := m.profile.Budget()

	sess, err := m.browser.OpenSession(ctx, m.session)
	if err != nil {
		return nil, &NetworkError{State: state, Op: "open_session", Err: err}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			zap.L().Warn("navigation: session close failed",
				zap.String("portal", m.profile.Name),
				zap.Error(cerr),
			)
		}
		if err != nil {
			zap.L().Debug("navigation: run failed",
				zap.String("portal", m.profile.Name),
				zap.String("ruc", ruc.String()),
				zap.String("state", string(state)),
				zap.Error(err),
			)
		}
	}()

	// Init: load the search form.
	if err := sess.Navigate(ctx, m.profile.SearchURL, budget); err != nil {
		return nil, classify(state, "navigate", err, budget)
	}
	if err := m.checkChallenge(ctx, sess); err != nil {
		return nil, err
	}

	// Init → FormFilled.
	input, err := firstVisible(ctx, sess, m.profile.SearchInputs)
	if err != nil {
		return nil, &StructureError{State: state, Tried: m.profile.SearchInputs}
	}
	if err := sess.Fill(ctx, input, ruc.String()); err != nil {
		return nil, &NetworkError{State: state, Op: "fill", Err: err}
	}
	state = StateFormFilled

	// FormFilled → Submitted.
	submit, err := firstVisible(ctx, sess, m.profile.SubmitControls)
	if err != nil {
		return nil, &StructureError{State: state, Tried: m.profile.SubmitControls}
	}
	if err := sess.Click(ctx, submit); err != nil {
		return nil, &NetworkError{State: state, Op: "click_submit", Err: err}
	}
	state = StateSubmitted

	if err := sess.WaitFor(ctx, automation.NetworkIdle(), budget); err != nil {
		return nil, classify(state, "settle", err, budget)
	}
	if err := m.checkChallenge(ctx, sess); err != nil {
		return nil, err
	}

	// Submitted → ResultsListed → DetailOpen. Portals without a result
	// listing land directly on the detail page.
	if len(m.profile.ResultLinks) > 0 {
		state = StateResultsListed
		link, err := firstVisible(ctx, sess, m.profile.ResultLinks)
		if err != nil {
			return nil, &StructureError{State: state, Tried: m.profile.ResultLinks}
		}
		if err := sess.Click(ctx, link); err != nil {
			return nil, &NetworkError{State: state, Op: "open_detail", Err: err}
		}
		if err := sess.WaitFor(ctx, automation.NetworkIdle(), budget); err != nil {
			return nil, classify(state, "settle_detail", err, budget)
		}
	}

	if _, err := firstVisible(ctx, sess, m.profile.DetailMarkers); err != nil {
		return nil, &StructureError{State: StateSubmitted, Tried: m.profile.DetailMarkers}
	}
	state = StateDetailOpen

	record := &model.PartialRecord{
		RUC:         ruc,
		Source:      m.profile.Name,
		ExtractedAt: m.nowFunc().UTC(),
	}
	m.extractFields(ctx, sess, record)

	// DetailOpen → SubDetailOpen (optional representatives sub-page).
	if len(m.profile.RepresentativeLinks) > 0 {
		if link, err := firstVisible(ctx, sess, m.profile.RepresentativeLinks); err == nil {
			if err := sess.Click(ctx, link); err == nil {
				if err := sess.WaitFor(ctx, automation.NetworkIdle(), budget); err == nil {
					state = StateSubDetailOpen
				}
			}
		}
		if state != StateSubDetailOpen {
			record.Warnings = append(record.Warnings, "representatives sub-page unavailable")
		}
	}

	m.extractRepresentatives(ctx, sess, record)

	if record.LegalName == "" {
		// A detail page with no readable name means the layout moved.
		return nil, &StructureError{State: state, Tried: fieldSelectors(m.profile.Fields, "legal_name")}
	}

	state = StateExtracted
	zap.L().Debug("navigation: extracted",
		zap.String("portal", m.profile.Name),
		zap.String("ruc", ruc.String()),
		zap.Int("representatives", len(record.Representatives)),
		zap.Int("warnings", len(record.Warnings)),
	)
	return record, nil
}

// checkChallenge scans for anti-bot challenge elements.
func (m *Machine) checkChallenge(ctx context.Context, sess automation.Session) error {
	for _, sel := range m.profile.ChallengeSelectors {
		visible, err := sess.Visible(ctx, sel)
		if err != nil {
			continue
		}
		if visible {
			return &AntiBotError{Indicator: sel}
		}
	}
	return nil
}

// extractFields reads scalar fields via selector variants, falling back to
// the locator's regex over the full page text. Misses are non-fatal.
func (m *Machine) extractFields(ctx context.Context, sess automation.Session, rec *model.PartialRecord) {
	pageText, _ := sess.PageText(ctx)

	for _, loc := range m.profile.Fields {
		value := ""
		for _, sel := range loc.Selectors {
			text, err := sess.ReadText(ctx, sel)
			if err == nil && strings.TrimSpace(text) != "" {
				value = strings.TrimSpace(text)
				break
			}
		}
		if value == "" && loc.Pattern != "" && pageText != "" {
			re, err := regexp.Compile(loc.Pattern)
			if err == nil {
				if match := re.FindStringSubmatch(pageText); len(match) > 1 {
					value = strings.TrimSpace(match[1])
				}
			}
		}
		if value == "" {
			rec.Warnings = append(rec.Warnings, "field not found: "+loc.Key)
			continue
		}
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
			rec.Status = value
		}
	}
}

// extractRepresentatives reads the first representative table that yields
// parseable rows.
func (m *Machine) extractRepresentatives(ctx context.Context, sess automation.Session, rec *model.PartialRecord) {
	for _, sel := range m.profile.RepresentativeTables {
		rows, err := sess.ReadTable(ctx, sel)
		if err != nil || len(rows) == 0 {
			continue
		}
		reps := parseRepresentativeRows(rows, m.profile.Name)
		if len(reps) > 0 {
			rec.Representatives = reps
			return
		}
	}
	if len(m.profile.RepresentativeTables) > 0 {
		rec.Warnings = append(rec.Warnings, "no representative table matched")
	}
}

// parseRepresentativeRows maps a header row onto candidate fields. Column
// headers vary across portals; match on substrings the portals actually use.
func parseRepresentativeRows(rows [][]string, source string) []model.RepresentativeCandidate {
	if len(rows) < 2 {
		return nil
	}

	colName, colDocType, colDocNum, colRole, colSince := -1, -1, -1, -1, -1
	for i, h := range rows[0] {
		header := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(header, "nombre"):
			colName = i
		case strings.Contains(header, "tipo"):
			colDocType = i
		case strings.Contains(header, "documento") || strings.Contains(header, "dni") || strings.Contains(header, "número"):
			colDocNum = i
		case strings.Contains(header, "cargo") || strings.Contains(header, "puesto") || strings.Contains(header, "rol"):
			colRole = i
		case strings.Contains(header, "fecha") || strings.Contains(header, "desde"):
			colSince = i
		}
	}
	if colName < 0 {
		return nil
	}

	cell := func(row []string, idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var reps []model.RepresentativeCandidate
	for _, row := range rows[1:] {
		name := cell(row, colName)
		if name == "" {
			continue
		}
		role := strings.ToUpper(cell(row, colRole))
		reps = append(reps, model.RepresentativeCandidate{
			Name:           name,
			DocumentType:   strings.ToUpper(cell(row, colDocType)),
			DocumentNumber: cell(row, colDocNum),
			Role:           role,
			Principal:      strings.Contains(role, "GERENTE GENERAL") || strings.Contains(role, "PRESIDENTE") || strings.Contains(role, "TITULAR"),
			TenureSince:    cell(row, colSince),
			Source:         source,
		})
	}
	return reps
}

// firstVisible returns the first selector variant with a visible element.
func firstVisible(ctx context.Context, sess automation.Session, selectors []string) (string, error) {
	for _, sel := range selectors {
		visible, err := sess.Visible(ctx, sel)
		if err != nil {
			return "", err
		}
		if visible {
			return sel, nil
		}
	}
	return "", errors.New("no selector variant visible")
}

// classify maps adapter errors from a transition onto the typed taxonomy.
func classify(state State, op string, err error, budget time.Duration) error {
	if errors.Is(err, automation.ErrWaitTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{State: state, Signal: op, Budget: budget}
	}
	return &NetworkError{State: state, Op: op, Err: err}
}

func fieldSelectors(fields []FieldLocator, key string) []string {
	for _, f := range fields {
		if f.Key == key {
			return f.Selectors
		}
	}
	return nil
}
