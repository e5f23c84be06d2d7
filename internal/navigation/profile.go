package navigation

import "time"

// FieldLocator ties a record field to the selector variants and the text
// pattern that locate it on a portal page. Portal brittleness lives here,
// in data, not in the machine's control flow.
type FieldLocator struct {
	// Key is the record field: legal_name, address, phone, email, status.
	Key string
	// Selectors are tried in order; the first non-empty ReadText wins.
	Selectors []string
	// Pattern is a fallback regex applied to the full page text; capture
	// group 1 is the value.
	Pattern string
}

// Profile describes one portal's navigation sequence as data: where to
// search, which selector variants to try at each step, and how to locate
// fields on the detail page.
type Profile struct {
	Name      string
	SearchURL string

	// SearchInputs are selector variants for the identifier input.
	SearchInputs []string
	// SubmitControls are selector variants for the search button.
	SubmitControls []string
	// ChallengeSelectors are code-entry elements whose presence means the
	// portal is demanding an anti-bot challenge.
	ChallengeSelectors []string
	// ResultLinks lead from the result listing to the detail page. Empty
	// when the portal lands directly on the detail page after submit.
	ResultLinks []string
	// DetailMarkers confirm the detail page rendered.
	DetailMarkers []string
	// RepresentativeLinks open the legal-representatives sub-page. Empty
	// when representatives render inline on the detail page.
	RepresentativeLinks []string
	// RepresentativeTables are selector variants for the representatives table.
	RepresentativeTables []string
	// Fields locate the scalar record fields on the detail page.
	Fields []FieldLocator

	// StepBudget bounds each transition's wait. Zero means DefaultStepBudget.
	StepBudget time.Duration
}

// DefaultStepBudget bounds a single transition when the profile does not
// override it.
const DefaultStepBudget = 10 * time.Second

// Budget returns the effective per-step wait budget.
func (p *Profile) Budget() time.Duration {
	if p.StepBudget > 0 {
		return p.StepBudget
	}
	return DefaultStepBudget
}

// SUNATProfile describes the tax-registry portal: the search form lands
// directly on the company detail page, and representatives live behind a
// sub-page link.
func SUNATProfile() Profile {
	return Profile{
		Name:      "sunat",
		SearchURL: "https://e-consultaruc.sunat.gob.pe/cl-ti-itmrconsruc/FrameCriterioBusquedaWeb.jsp",
		SearchInputs: []string{
			"#txtRuc",
			"input[name='nroRuc']",
		},
		SubmitControls: []string{
			"#btnAceptar",
			"button[type='submit']",
		},
		ChallengeSelectors: []string{
			"#txtCodigo",
			"#txtCaptcha",
			"input[name*='captcha']",
			"input[name*='codigo']",
		},
		DetailMarkers: []string{
			".list-group-item",
			"h4.list-group-item-heading",
		},
		RepresentativeLinks: []string{
			"button[onclick*='Representante']",
			"a[href*='representantes']",
		},
		RepresentativeTables: []string{
			"table.table",
			".panel table",
		},
		Fields: []FieldLocator{
			{
				Key:       "legal_name",
				Selectors: []string{"h4.list-group-item-heading", ".list-group-item h4"},
				Pattern:   `(?m)^\s*\d{11}\s*-\s*(.+)$`,
			},
			{
				Key:       "address",
				Selectors: []string{"#domicilioFiscal", ".list-group-item p.list-group-item-text"},
				Pattern:   `(?i)domicilio\s+fiscal[:\s]+(.+)`,
			},
			{
				Key:       "status",
				Selectors: []string{"#estadoContribuyente"},
				Pattern:   `(?i)estado[^:]*[:\s]+(ACTIVO|BAJA[A-Z\s]*|SUSPENDIDO)`,
			},
		},
	}
}

// OSCEProfile describes the procurement-registry portal: a search listing
// links to a provider profile with contact data, specialties, and members
// rendered inline.
func OSCEProfile() Profile {
	return Profile{
		Name:      "osce",
		SearchURL: "https://apps.osce.gob.pe/perfilprov-ui/",
		SearchInputs: []string{
			"input[placeholder*='RUC']",
			"input[formcontrolname='busqueda']",
			"#searchInput",
		},
		SubmitControls: []string{
			"button[type='submit']",
			".btn-search",
		},
		ChallengeSelectors: []string{
			"iframe[src*='captcha']",
			"input[name*='captcha']",
		},
		ResultLinks: []string{
			"a[href*='/ficha/']",
			".resultado-item a",
		},
		DetailMarkers: []string{
			".ficha-proveedor",
			".datos-empresa",
		},
		RepresentativeTables: []string{
			"table.integrantes",
			".socios table",
			"table",
		},
		Fields: []FieldLocator{
			{
				Key:       "legal_name",
				Selectors: []string{".datos-empresa h2", "h2.empresa-nombre"},
				Pattern:   `(?i)raz[oó]n\s+social[:\s]+(.+)`,
			},
			{
				Key:       "address",
				Selectors: []string{".contacto-direccion", "[data-field='direccion']"},
				Pattern:   `(?i)direcci[oó]n[:\s]+(.+)`,
			},
			{
				Key:       "phone",
				Selectors: []string{".contacto-telefono", "a[href^='tel:']"},
				Pattern:   `(?i)tel[eé]fono[:\s]*([\d][\d\s\-()]{5,14}\d)`,
			},
			{
				Key:       "email",
				Selectors: []string{".contacto-email", "a[href^='mailto:']"},
				Pattern:   `([a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`,
			},
			{
				Key:       "status",
				Selectors: []string{".estado-registro"},
				Pattern:   `(?i)estado[^:]*[:\s]+(VIGENTE|ACTIVO|NO\s+VIGENTE)`,
			},
		},
	}
}
