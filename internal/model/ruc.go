// Package model defines the core domain types for registry resolution:
// identifiers, partial extraction results, and consolidated company records.
package model

import (
	"fmt"
)

// PersonKind classifies a RUC holder by its leading digits.
type PersonKind string

const (
	PersonNatural   PersonKind = "natural"
	PersonJuridical PersonKind = "juridical"
)

// RUCLength is the fixed length of a valid RUC.
const RUCLength = 11

// RUC is a validated Peruvian tax identifier. Immutable once parsed.
type RUC string

// ValidationError reports a malformed identifier. It is the caller's fault
// and is never retried anywhere in the engine.
type ValidationError struct {
	Input  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid RUC %q: %s", e.Input, e.Reason)
}

// ParseRUC validates the raw identifier format: exactly 11 numeric digits
// with a leading "10" (natural person) or "20" (juridical person).
func ParseRUC(raw string) (RUC, error) {
	if len(raw) != RUCLength {
		return "", &ValidationError{Input: raw, Reason: fmt.Sprintf("must be %d digits", RUCLength)}
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return "", &ValidationError{Input: raw, Reason: "must be numeric"}
		}
	}
	switch raw[:2] {
	case "10", "20":
		return RUC(raw), nil
	default:
		return "", &ValidationError{Input: raw, Reason: "must start with 10 or 20"}
	}
}

// String returns the raw digits.
func (r RUC) String() string { return string(r) }

// Kind reports whether the RUC belongs to a natural or juridical person.
func (r RUC) Kind() PersonKind {
	if len(r) >= 2 && r[:2] == "10" {
		return PersonNatural
	}
	return PersonJuridical
}
