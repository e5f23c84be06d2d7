package strategy

import (
	"context"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/automation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/navigation"
)

// BrowserStrategy drives a full automation session through the portal's
// navigation sequence. Slowest and most complete strategy; the only one
// that survives client-rendered portals. Retrying belongs to the race
// that runs it, the same as for every other strategy.
type BrowserStrategy struct {
	machine *navigation.Machine
	name    string
	// juridicalOnly restricts the strategy to "20" RUCs.
	juridicalOnly bool
}

// NewBrowserStrategy wires a navigation machine for the given portal profile.
func NewBrowserStrategy(browser automation.Browser, profile navigation.Profile, session automation.SessionConfig) *BrowserStrategy {
	return &BrowserStrategy{
		machine: navigation.NewMachine(browser, profile, session),
		name:    profile.Name + "-browser",
	}
}

// JuridicalOnlyBrowser restricts the strategy to juridical-person RUCs.
func (b *BrowserStrategy) JuridicalOnly() *BrowserStrategy {
	b.juridicalOnly = true
	return b
}

func (b *BrowserStrategy) Name() string { return b.name }

func (b *BrowserStrategy) Supports(ruc model.RUC) bool {
	if b.juridicalOnly {
		return ruc.Kind() == model.PersonJuridical
	}
	return true
}

func (b *BrowserStrategy) Execute(ctx context.Context, ruc model.RUC) (*model.PartialRecord, error) {
	return b.machine.Run(ctx, ruc)
}
