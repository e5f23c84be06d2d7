// Package consolidate merges the partial records produced by a resolution
// pass into one deduplicated company record. Merging is deterministic: the
// same inputs in the same order always produce the same output.
package consolidate

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// roleRanks orders representative roles from most to least authoritative.
// When two sources disagree on a person's role, the higher rank wins.
var roleRanks = []struct {
	marker string
	rank   int
}{
	{"GERENTE GENERAL", 7},
	{"PRESIDENTE", 7},
	{"TITULAR", 7},
	{"GERENTE", 6},
	{"DIRECTOR", 5},
	{"REPRESENTANTE LEGAL", 4},
	{"ADMINISTRADOR", 3},
	{"SECRETARIO", 2},
	{"TESORERO", 2},
	{"SOCIO", 1},
	{"MIEMBRO", 1},
}

func roleRank(role string) int {
	role = strings.ToUpper(role)
	for _, rr := range roleRanks {
		if strings.Contains(role, rr.marker) {
			return rr.rank
		}
	}
	return 0
}

// Merge consolidates the partial records for one RUC. The most complete
// record (highest Score) anchors the result; the rest backfill missing
// fields in descending completeness order, ties keeping input order.
// Returns nil when no partial carries a legal name.
func Merge(ruc model.RUC, partials []*model.PartialRecord) *model.ConsolidatedRecord {
	ordered := make([]*model.PartialRecord, 0, len(partials))
	for _, p := range partials {
		if p != nil {
			ordered = append(ordered, p)
		}
	}
	if len(ordered) == 0 {
		return nil
	}
	// Order by completeness; break ties on source name so the merge is
	// independent of the order strategies happened to finish in.
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := Score(ordered[i]), Score(ordered[j])
		if si != sj {
			return si > sj
		}
		return ordered[i].Source < ordered[j].Source
	})
	if ordered[0].LegalName == "" {
		return nil
	}

	base := ordered[0]
	rec := &model.ConsolidatedRecord{
		RUC:       ruc,
		LegalName: base.LegalName,
		Contact: model.ContactBlock{
			Address: base.Address,
			Phone:   base.Phone,
			Email:   base.Email,
		},
		Status:     base.Status,
		IsRealData: true,
		ResolvedAt: time.Now().UTC(),
	}
	contributed := map[string]bool{base.Source: true}

	for _, p := range ordered[1:] {
		used := false
		if rec.Contact.Address == "" && p.Address != "" {
			rec.Contact.Address = p.Address
			used = true
		}
		if rec.Contact.Phone == "" && p.Phone != "" {
			rec.Contact.Phone = p.Phone
			used = true
		}
		if rec.Contact.Email == "" && p.Email != "" {
			rec.Contact.Email = p.Email
			used = true
		}
		if rec.Status == "" && p.Status != "" {
			rec.Status = p.Status
			used = true
		}
		if p.LegalName != "" {
			if SameName(p.LegalName, rec.LegalName) {
				// Corroborating the legal name counts as a contribution.
				used = true
			} else {
				rec.Warnings = append(rec.Warnings,
					"source "+p.Source+" reports a different legal name: "+p.LegalName)
				zap.L().Warn("consolidation: legal name mismatch across sources",
					zap.String("ruc", ruc.String()),
					zap.String("base", rec.LegalName),
					zap.String("conflicting", p.LegalName),
					zap.String("source", p.Source),
				)
			}
		}
		if len(p.Representatives) > 0 || len(p.Specialties) > 0 {
			used = true
		}
		if used {
			contributed[p.Source] = true
		}
	}

	rec.Representatives = mergeRepresentatives(ordered)
	rec.Specialties = mergeSpecialties(ordered)
	for _, p := range ordered {
		rec.Warnings = append(rec.Warnings, p.Warnings...)
	}
	rec.Warnings = dedupeStrings(rec.Warnings)

	rec.Sources = make([]string, 0, len(contributed))
	for _, p := range ordered {
		if contributed[p.Source] {
			rec.Sources = append(rec.Sources, p.Source)
			contributed[p.Source] = false
		}
	}
	rec.Quality = qualityFor(rec)
	return rec
}

// mergeRepresentatives deduplicates candidates across sources. Identity is
// the document number when present; nameless document matching falls back
// to name similarity. Role conflicts resolve to the higher rank.
func mergeRepresentatives(ordered []*model.PartialRecord) []model.Representative {
	var merged []model.Representative

	find := func(c model.RepresentativeCandidate) int {
		for i, r := range merged {
			if c.DocumentNumber != "" && r.DocumentNumber != "" {
				if c.DocumentNumber == r.DocumentNumber {
					return i
				}
				continue
			}
			if SameName(c.Name, r.Name) {
				return i
			}
		}
		return -1
	}

	for _, p := range ordered {
		for _, c := range p.Representatives {
			if c.Name == "" {
				continue
			}
			i := find(c)
			if i < 0 {
				merged = append(merged, model.Representative{
					Name:           c.Name,
					DocumentType:   c.DocumentType,
					DocumentNumber: c.DocumentNumber,
					Role:           c.Role,
					Principal:      c.Principal,
					TenureSince:    c.TenureSince,
					Sources:        []string{c.Source},
				})
				continue
			}
			r := &merged[i]
			if roleRank(c.Role) > roleRank(r.Role) {
				r.Role = c.Role
			}
			if r.DocumentNumber == "" {
				r.DocumentNumber = c.DocumentNumber
				r.DocumentType = c.DocumentType
			}
			if r.TenureSince == "" {
				r.TenureSince = c.TenureSince
			}
			r.Principal = r.Principal || c.Principal
			r.Sources = appendUnique(r.Sources, c.Source)
		}
	}
	return merged
}

func mergeSpecialties(ordered []*model.PartialRecord) []string {
	var all []string
	for _, p := range ordered {
		all = append(all, p.Specialties...)
	}
	return dedupeStrings(all)
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func appendUnique(in []string, s string) []string {
	for _, v := range in {
		if v == s {
			return in
		}
	}
	return append(in, s)
}
