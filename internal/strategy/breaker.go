package strategy

import (
	"context"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

// breakerStrategy runs an inner strategy through a circuit breaker so a
// portal that fails repeatedly is rested instead of hammered. Rejected calls
// surface as ordinary strategy errors; the race treats them like any other
// failure.
type breakerStrategy struct {
	inner Strategy
	cb    *resilience.CircuitBreaker
}

// WithBreaker wraps s behind the named breaker from the registry.
func WithBreaker(s Strategy, breakers *resilience.ServiceBreakers) Strategy {
	return &breakerStrategy{inner: s, cb: breakers.Get(s.Name())}
}

func (b *breakerStrategy) Name() string { return b.inner.Name() }

func (b *breakerStrategy) Supports(ruc model.RUC) bool { return b.inner.Supports(ruc) }

func (b *breakerStrategy) Execute(ctx context.Context, ruc model.RUC) (*model.PartialRecord, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (*model.PartialRecord, error) {
		return b.inner.Execute(ctx, ruc)
	})
}
