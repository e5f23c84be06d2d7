// Package strategy provides the extraction strategies for resolving a
// company registration and the racing engine that runs them concurrently.
package strategy

import (
	"context"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
)

// Strategy extracts a partial record for one RUC from one source by one
// technique. Implementations must honor context cancellation; the racing
// engine abandons strategies that outlive their budget.
type Strategy interface {
	Execute(ctx context.Context, ruc model.RUC) (*model.PartialRecord, error)
	Name() string
	// Supports reports whether the strategy can serve this RUC at all, e.g.
	// a procurement registry that only lists juridical persons.
	Supports(ruc model.RUC) bool
}
