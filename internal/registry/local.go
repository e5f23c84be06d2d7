// Package registry holds the curated local company table: known-good
// records served without touching any portal. Acts as the second rung of
// the fallback chain and as the short-circuit for frequently asked RUCs.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// Local is the in-process curated table. Safe for concurrent use.
type Local struct {
	mu      sync.RWMutex
	records map[model.RUC]*model.ConsolidatedRecord
}

// NewLocal creates a table preloaded with the curated seed records.
func NewLocal() *Local {
	l := &Local{records: make(map[model.RUC]*model.ConsolidatedRecord)}
	for _, rec := range seedRecords() {
		l.records[rec.RUC] = rec
	}
	return l
}

// NewEmpty creates a table with no seed data.
func NewEmpty() *Local {
	return &Local{records: make(map[model.RUC]*model.ConsolidatedRecord)}
}

// Lookup returns the curated record for ruc, or ok=false. The returned
// record is a copy; callers may mutate it freely.
func (l *Local) Lookup(ruc model.RUC) (*model.ConsolidatedRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[ruc]
	if !ok {
		return nil, false
	}
	cp := *rec
	cp.Representatives = append([]model.Representative(nil), rec.Representatives...)
	cp.Specialties = append([]string(nil), rec.Specialties...)
	cp.Sources = append([]string(nil), rec.Sources...)
	return &cp, true
}

// Add inserts or replaces a curated record at runtime.
func (l *Local) Add(rec *model.ConsolidatedRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.RUC] = rec
}

// Has reports whether the table holds a record for ruc.
func (l *Local) Has(ruc model.RUC) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[ruc]
	return ok
}

// Len returns the number of curated records.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// RUCs returns the table's keys in ascending order.
func (l *Local) RUCs() []model.RUC {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rucs := make([]model.RUC, 0, len(l.records))
	for ruc := range l.records {
		rucs = append(rucs, ruc)
	}
	sort.Slice(rucs, func(i, j int) bool { return rucs[i] < rucs[j] })
	return rucs
}

// seedRecords returns the curated records shipped with the binary:
// registrars, frequently valorized contractors, and a natural-person entry.
func seedRecords() []*model.ConsolidatedRecord {
	seeded := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	return []*model.ConsolidatedRecord{
		{
			RUC:       model.RUC("20131312955"),
			LegalName: "SUPERINTENDENCIA NACIONAL DE ADUANAS Y DE ADMINISTRACION TRIBUTARIA",
			Contact: model.ContactBlock{
				Address: "AV. GARCILASO DE LA VEGA NRO. 1472, LIMA",
				Phone:   "0-801-12-100",
			},
			Status:     "ACTIVO",
			Quality:    model.QualityAcceptable,
			Sources:    []string{"local"},
			IsRealData: true,
			ResolvedAt: seeded,
		},
		{
			RUC:       model.RUC("20100070970"),
			LegalName: "SUPERMERCADOS PERUANOS SOCIEDAD ANONIMA",
			Contact: model.ContactBlock{
				Address: "CAL. MORELLI NRO. 181, SAN BORJA, LIMA",
				Phone:   "01-6188000",
			},
			Status: "ACTIVO",
			Representatives: []model.Representative{
				{Name: "MENDIOLA CASTRO FERNANDO MARTIN", DocumentType: "DNI", DocumentNumber: "07968031", Role: "GERENTE GENERAL", Principal: true, Sources: []string{"local"}},
			},
			Quality:    model.QualityAcceptable,
			Sources:    []string{"local"},
			IsRealData: true,
			ResolvedAt: seeded,
		},
		{
			RUC:       model.RUC("20600074114"),
			LegalName: "CONSORCIO EJECUTOR VIAL SAN MARTIN S.A.C.",
			Contact: model.ContactBlock{
				Address: "JR. MARTINEZ DE COMPAGNON NRO. 1035, TARAPOTO, SAN MARTIN",
			},
			Status:      "ACTIVO",
			Specialties: []string{"OBRAS VIALES", "SANEAMIENTO"},
			Representatives: []model.Representative{
				{Name: "TORRES SALAZAR PEDRO MIGUEL", DocumentType: "DNI", DocumentNumber: "01122334", Role: "GERENTE GENERAL", Principal: true, Sources: []string{"local"}},
			},
			Quality:    model.QualityAcceptable,
			Sources:    []string{"local"},
			IsRealData: true,
			ResolvedAt: seeded,
		},
		{
			RUC:       model.RUC("20548960771"),
			LegalName: "CONSTRUCTORA E INMOBILIARIA ANDINA S.A.C.",
			Contact: model.ContactBlock{
				Address: "AV. REPUBLICA DE PANAMA NRO. 3535, SAN ISIDRO, LIMA",
				Email:   "contacto@candina.pe",
			},
			Status:      "ACTIVO",
			Specialties: []string{"EDIFICACIONES"},
			Quality:     model.QualityAcceptable,
			Sources:     []string{"local"},
			IsRealData:  true,
			ResolvedAt:  seeded,
		},
		{
			RUC:       model.RUC("10012345678"),
			LegalName: "PEREZ QUISPE JUAN CARLOS",
			Contact: model.ContactBlock{
				Address: "JR. LOS ALAMOS NRO. 224, CAJAMARCA",
			},
			Status:     "ACTIVO",
			Quality:    model.QualityAcceptable,
			Sources:    []string{"local"},
			IsRealData: true,
			ResolvedAt: seeded,
		},
	}
}
