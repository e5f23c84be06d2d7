package consolidate

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are corporate-form markers stripped before comparing names.
// "ACME S.A." and "ACME SOCIEDAD ANONIMA" are the same company.
var legalSuffixes = []string{
	"SOCIEDAD ANONIMA CERRADA",
	"SOCIEDAD ANONIMA ABIERTA",
	"SOCIEDAD ANONIMA",
	"SOCIEDAD COMERCIAL DE RESPONSABILIDAD LIMITADA",
	"EMPRESA INDIVIDUAL DE RESPONSABILIDAD LIMITADA",
	"S.A.C.",
	"S.A.A.",
	"S.A.",
	"S.R.L.",
	"E.I.R.L.",
	"SAC",
	"SAA",
	"SRL",
	"EIRL",
	"SA",
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName uppercases, strips diacritics and corporate-form suffixes,
// and collapses whitespace and punctuation.
func NormalizeName(name string) string {
	s, _, err := transform.String(stripMarks, name)
	if err != nil {
		s = name
	}
	s = strings.ToUpper(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == ',' || r == '-' || r == '&':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	s = b.String()

	s = strings.TrimSpace(s)
	for _, suffix := range legalSuffixes {
		// Suffixes only count as a separate trailing word.
		if strings.HasSuffix(s, " "+suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}
	s = strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// NameSimilarity returns a [0,1] similarity between two names using bigram
// overlap (Sørensen-Dice) over their normalized forms.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	ba, bb := bigrams(na), bigrams(nb)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	var overlap int
	for g, n := range ba {
		if m, ok := bb[g]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}

	var total int
	for _, n := range ba {
		total += n
	}
	for _, n := range bb {
		total += n
	}
	return 2 * float64(overlap) / float64(total)
}

// SameName reports whether two names refer to the same entity. 0.7 is the
// operational threshold: portals abbreviate and reorder name parts, but
// genuinely different names score well below it.
func SameName(a, b string) bool {
	return NameSimilarity(a, b) >= 0.7
}

func bigrams(s string) map[string]int {
	r := []rune(s)
	grams := make(map[string]int, len(r))
	for i := 0; i+1 < len(r); i++ {
		grams[string(r[i:i+2])]++
	}
	return grams
}
