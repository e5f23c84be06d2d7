package model

import "time"

// QualityTier is a coarse confidence label on a consolidated record.
type QualityTier string

const (
	// QualityGood means at least two distinct sources contributed and the
	// legal name is present.
	QualityGood QualityTier = "GOOD"
	// QualityAcceptable means the legal name is present from a single source.
	QualityAcceptable QualityTier = "ACCEPTABLE"
	// QualityPartial means data is present but incomplete.
	QualityPartial QualityTier = "PARTIAL"
)

// RepresentativeCandidate is one legal representative as seen by a single
// extraction strategy, before deduplication. Identity key is DocumentNumber.
type RepresentativeCandidate struct {
	Name           string `json:"name"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
	Role           string `json:"role"`
	Principal      bool   `json:"principal,omitempty"`
	TenureSince    string `json:"tenure_since,omitempty"`
	Source         string `json:"source"`
}

// Representative is a deduplicated legal representative on the final record.
type Representative struct {
	Name           string   `json:"name"`
	DocumentType   string   `json:"document_type"`
	DocumentNumber string   `json:"document_number"`
	Role           string   `json:"role"`
	Principal      bool     `json:"principal,omitempty"`
	TenureSince    string   `json:"tenure_since,omitempty"`
	Sources        []string `json:"sources"`
}

// PartialRecord is the output of one extraction strategy. Optional fields
// stay empty when the strategy could not see them. Never mutated after
// creation; the consolidation engine reads it and builds new values.
type PartialRecord struct {
	RUC             RUC                       `json:"ruc"`
	LegalName       string                    `json:"legal_name,omitempty"`
	Address         string                    `json:"address,omitempty"`
	Phone           string                    `json:"phone,omitempty"`
	Email           string                    `json:"email,omitempty"`
	Status          string                    `json:"status,omitempty"`
	Representatives []RepresentativeCandidate `json:"representatives,omitempty"`
	Specialties     []string                  `json:"specialties,omitempty"`
	Source          string                    `json:"source"`
	ExtractedAt     time.Time                 `json:"extracted_at"`
	// Warnings records non-fatal extraction problems (a field locator that
	// matched nothing, a malformed table row).
	Warnings []string `json:"warnings,omitempty"`
}

// ContactBlock groups the volatile contact fields of a consolidated record.
type ContactBlock struct {
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// ConsolidatedRecord is the final merged, deduplicated result for one RUC.
// Invariant: no two Representatives share a document number.
type ConsolidatedRecord struct {
	RUC             RUC              `json:"ruc"`
	LegalName       string           `json:"legal_name"`
	Contact         ContactBlock     `json:"contact"`
	Representatives []Representative `json:"representatives"`
	Specialties     []string         `json:"specialties,omitempty"`
	Status          string           `json:"status,omitempty"`
	Quality         QualityTier      `json:"quality"`
	Sources         []string         `json:"sources"`
	// IsRealData is false when the record was synthesized or otherwise not
	// obtained from an authoritative source.
	IsRealData bool      `json:"is_real_data"`
	ResolvedAt time.Time `json:"resolved_at"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// StrategyResult is the outcome of one strategy during a resolution pass.
// Ephemeral: consumed by the consolidator and discarded.
type StrategyResult struct {
	Strategy string         `json:"strategy"`
	Success  bool           `json:"success"`
	Record   *PartialRecord `json:"record,omitempty"`
	Error    string         `json:"error,omitempty"`
	// Transient marks a failure that is worth retrying later.
	Transient bool          `json:"transient,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}
