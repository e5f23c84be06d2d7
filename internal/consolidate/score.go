package consolidate

import "github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"

// Completeness weights. The legal name is the anchor field: a record
// without one scores zero and can never be chosen as the merge base.
const (
	weightName    = 3
	weightPhone   = 2
	weightEmail   = 2
	weightAddress = 1
	// repPointCap bounds the representative contribution so a roster-heavy
	// source cannot outrank one with real contact data.
	repPointCap = 3
)

// Score measures how complete a partial record is. Used to pick the merge
// base and to order backfill; higher is more complete.
func Score(rec *model.PartialRecord) int {
	if rec == nil || rec.LegalName == "" {
		return 0
	}
	score := weightName
	if rec.Phone != "" {
		score += weightPhone
	}
	if rec.Email != "" {
		score += weightEmail
	}
	if rec.Address != "" {
		score += weightAddress
	}
	reps := len(rec.Representatives)
	if reps > repPointCap {
		reps = repPointCap
	}
	score += reps
	return score
}

// qualityFor labels the merged record. Two or more distinct real sources
// with a name is GOOD; one source with a name is ACCEPTABLE; anything
// thinner is PARTIAL.
func qualityFor(rec *model.ConsolidatedRecord) model.QualityTier {
	if rec.LegalName == "" {
		return model.QualityPartial
	}
	if len(rec.Sources) >= 2 {
		return model.QualityGood
	}
	if len(rec.Sources) == 1 {
		return model.QualityAcceptable
	}
	return model.QualityPartial
}
