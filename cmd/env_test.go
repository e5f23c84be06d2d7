package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/model"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
)

func TestDefaultStrategies(t *testing.T) {
	c := testConfig()
	c.Portal.SunatProbeURL = "https://sunat.test/{ruc}"
	c.Portal.OSCEProbeURL = "https://osce.test/{ruc}"
	c.Portal.SunatDetailURL = "https://sunat.test/detail/{ruc}"
	c.Portal.OSCEDetailURL = "https://osce.test/ficha/{ruc}"

	breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	strategies := defaultStrategies(c, breakers)
	require.Len(t, strategies, 6)

	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{
		"sunat-probe", "osce-probe",
		"sunat-markup", "osce-markup",
		"sunat-browser", "osce-browser",
	}, names)

	// The procurement registry only lists juridical persons.
	natural := model.RUC("10012345678")
	for _, s := range strategies {
		switch s.Name() {
		case "osce-probe", "osce-browser":
			assert.False(t, s.Supports(natural))
		default:
			assert.True(t, s.Supports(natural))
		}
	}
}

func TestNewEnv_SQLiteDriver(t *testing.T) {
	c := testConfig()
	c.Cache.Driver = "sqlite"
	c.Cache.Path = filepath.Join(t.TempDir(), "cache.db")

	breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	e, err := newEnv(context.Background(), c, nil, breakers, nil)
	require.NoError(t, err)
	defer e.Close()

	ruc := model.RUC("20131312955")
	rec, err := e.resolver.Resolve(context.Background(), ruc.String())
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestNewEnv_FixtureLoading(t *testing.T) {
	c := testConfig()
	c.Registry.FixturePath = filepath.Join(t.TempDir(), "missing.json")

	breakers := resilience.NewServiceBreakers(resilience.DefaultCircuitBreakerConfig())
	_, err := newEnv(context.Background(), c, nil, breakers, nil)
	assert.Error(t, err)
}
