package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/automation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

func testProfile() Profile {
	return Profile{
		Name:               "testportal",
		SearchURL:          "https://portal.test/search",
		SearchInputs:       []string{"#ruc-input"},
		SubmitControls:     []string{"#submit"},
		ChallengeSelectors: []string{"#captcha"},
		DetailMarkers:      []string{".detail"},
		RepresentativeLinks:  []string{"#rep-link"},
		RepresentativeTables: []string{"#rep-table"},
		Fields: []FieldLocator{
			{Key: "legal_name", Selectors: []string{".name"}},
			{Key: "address", Selectors: []string{".address"}},
			{Key: "phone", Selectors: []string{".phone"}, Pattern: `(?i)tel[eé]fono[:\s]*([\d\-]{6,})`},
		},
		StepBudget: 200 * time.Millisecond,
	}
}

func searchPage() *automation.FakePage {
	return &automation.FakePage{
		Elements: map[string]string{
			"#ruc-input": "",
			"#submit":    "Buscar",
		},
		ClickRoutes: map[string]string{
			"#submit": "https://portal.test/detail",
		},
	}
}

func detailPage() *automation.FakePage {
	return &automation.FakePage{
		Text: "RAZÓN SOCIAL: SUPERMERCADOS PERUANOS S.A. Teléfono: 01-4185000",
		Elements: map[string]string{
			".detail":   "ok",
			".name":     "SUPERMERCADOS PERUANOS SOCIEDAD ANONIMA",
			".address":  "AV. MORALES DUAREZ NRO. 1340 LIMA",
			"#rep-link": "Representantes Legales",
		},
		ClickRoutes: map[string]string{
			"#rep-link": "https://portal.test/reps",
		},
	}
}

func repsPage() *automation.FakePage {
	return &automation.FakePage{
		Elements: map[string]string{".detail": "ok"},
		Tables: map[string][][]string{
			"#rep-table": {
				{"Tipo Doc.", "Nro. Documento", "Nombre", "Cargo", "Fecha Desde"},
				{"DNI", "07968031", "MENDIOLA CASTRO FERNANDO MARTIN", "GERENTE GENERAL", "10/01/2020"},
				{"DNI", "43852691", "GARCIA LOPEZ CARLOS MANUEL", "DIRECTOR", "01/03/2015"},
			},
		},
	}
}

func mustRUC(t *testing.T, raw string) model.RUC {
	t.Helper()
	ruc, err := model.ParseRUC(raw)
	require.NoError(t, err)
	return ruc
}

func TestMachine_Run_FullSequence(t *testing.T) {
	browser := automation.NewFakeBrowser()
	browser.AddPage("https://portal.test/search", searchPage())
	browser.AddPage("https://portal.test/detail", detailPage())
	browser.AddPage("https://portal.test/reps", repsPage())

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	rec, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.NoError(t, err)
	assert.Equal(t, "SUPERMERCADOS PERUANOS SOCIEDAD ANONIMA", rec.LegalName)
	assert.Equal(t, "AV. MORALES DUAREZ NRO. 1340 LIMA", rec.Address)
	// Phone comes from the regex fallback over page text.
	assert.Equal(t, "01-4185000", rec.Phone)
	assert.Equal(t, "testportal", rec.Source)

	require.Len(t, rec.Representatives, 2)
	assert.Equal(t, "07968031", rec.Representatives[0].DocumentNumber)
	assert.Equal(t, "GERENTE GENERAL", rec.Representatives[0].Role)
	assert.True(t, rec.Representatives[0].Principal)
	assert.False(t, rec.Representatives[1].Principal)

	// The session must be released after the run.
	assert.Equal(t, 1, browser.OpenCount())
	assert.Equal(t, 1, browser.ClosedCount())
}

func TestMachine_Run_AntiBotChallenge(t *testing.T) {
	page := searchPage()
	page.Elements["#captcha"] = "Ingrese el código"

	browser := automation.NewFakeBrowser()
	browser.AddPage("https://portal.test/search", page)

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	_, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.Error(t, err)
	assert.True(t, IsAntiBot(err))
	assert.False(t, Retryable(err))
	assert.Equal(t, browser.OpenCount(), browser.ClosedCount())
}

func TestMachine_Run_StructureMismatch(t *testing.T) {
	browser := automation.NewFakeBrowser()
	// Search page whose input selector no longer exists.
	browser.AddPage("https://portal.test/search", &automation.FakePage{
		Elements: map[string]string{"#totally-new-input": ""},
	})

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	_, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.Error(t, err)
	assert.True(t, IsStructureMismatch(err))
	assert.False(t, Retryable(err))
}

func TestMachine_Run_MissingLegalNameIsStructureMismatch(t *testing.T) {
	detail := detailPage()
	delete(detail.Elements, ".name")
	detail.Text = "nothing useful here"

	browser := automation.NewFakeBrowser()
	browser.AddPage("https://portal.test/search", searchPage())
	browser.AddPage("https://portal.test/detail", detail)
	browser.AddPage("https://portal.test/reps", repsPage())

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	_, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.Error(t, err)
	assert.True(t, IsStructureMismatch(err))
}

func TestMachine_Run_SlowPageTimesOut(t *testing.T) {
	page := searchPage()
	page.LoadDelay = time.Second // exceeds the 200ms step budget

	browser := automation.NewFakeBrowser()
	browser.AddPage("https://portal.test/search", page)

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	_, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, Retryable(err))
}

func TestMachine_Run_NetworkError(t *testing.T) {
	browser := automation.NewFakeBrowser()
	browser.NavigateErr = errors.New("connection refused")

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	_, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.True(t, Retryable(err))
}

func TestMachine_Run_RepresentativesSubPageUnavailable(t *testing.T) {
	detail := detailPage()
	delete(detail.Elements, "#rep-link")

	browser := automation.NewFakeBrowser()
	browser.AddPage("https://portal.test/search", searchPage())
	browser.AddPage("https://portal.test/detail", detail)

	m := NewMachine(browser, testProfile(), automation.DefaultSessionConfig())
	rec, err := m.Run(context.Background(), mustRUC(t, "20100070970"))

	require.NoError(t, err)
	assert.Empty(t, rec.Representatives)
	assert.Contains(t, rec.Warnings, "representatives sub-page unavailable")
}

func TestParseRepresentativeRows(t *testing.T) {
	rows := [][]string{
		{"Nombre", "Documento", "Cargo"},
		{"PEREZ QUISPE JUAN", "12345678", "PRESIDENTE"},
		{"", "99999999", "DIRECTOR"}, // nameless rows are skipped
		{"LOPEZ DIAZ MARIA", "87654321", "socio"},
	}

	reps := parseRepresentativeRows(rows, "osce")
	require.Len(t, reps, 2)
	assert.Equal(t, "PEREZ QUISPE JUAN", reps[0].Name)
	assert.True(t, reps[0].Principal)
	assert.Equal(t, "SOCIO", reps[1].Role)
	assert.Equal(t, "osce", reps[1].Source)
}

func TestParseRepresentativeRows_NoHeaderMatch(t *testing.T) {
	rows := [][]string{
		{"Col1", "Col2"},
		{"a", "b"},
	}
	assert.Nil(t, parseRepresentativeRows(rows, "sunat"))
}

func TestProfiles_HaveLocatorsForCoreFields(t *testing.T) {
	for _, p := range []Profile{SUNATProfile(), OSCEProfile()} {
		t.Run(p.Name, func(t *testing.T) {
			require.NotEmpty(t, p.SearchInputs)
			require.NotEmpty(t, p.SubmitControls)
			require.NotEmpty(t, p.ChallengeSelectors)
			require.NotEmpty(t, p.DetailMarkers)
			assert.NotEmpty(t, fieldSelectors(p.Fields, "legal_name"))
			assert.Positive(t, p.Budget())
		})
	}
}
