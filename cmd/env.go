package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/automation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/cache"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/config"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/engine"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/fallback"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/monitoring"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/navigation"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/prefetch"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/registry"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/resilience"
	"github.com/ENEASJO/registro-valorizaciones-backend-sub001/internal/strategy"
)

// env holds the wired resolution stack shared by the commands.
type env struct {
	cfg       *config.Config
	store     cache.Store
	local     *registry.Local
	dlq       *resilience.DLQ
	breakers  *resilience.ServiceBreakers
	chain     *fallback.Chain
	tracker   *prefetch.Tracker
	resolver  *engine.Resolver
	scheduler *prefetch.Scheduler
	collector *monitoring.Collector
	alerter   *monitoring.Alerter

	closeStore func() error
}

// initEnv wires the stack from config with the production strategies.
func initEnv(ctx context.Context, c *config.Config) (*env, error) {
	alerter := monitoring.NewAlerter(c.Monitoring)
	breakers := resilience.NewServiceBreakers(
		resilience.FromCircuitConfig(c.Circuit.FailureThreshold, c.Circuit.ResetTimeoutSecs))
	return newEnv(ctx, c, defaultStrategies(c, breakers), breakers, alerter)
}

// newEnv wires the stack around the given strategies. Tests inject stubs.
func newEnv(ctx context.Context, c *config.Config, strategies []strategy.Strategy, breakers *resilience.ServiceBreakers, alerter *monitoring.Alerter) (*env, error) {
	e := &env{
		cfg:      c,
		breakers: breakers,
		alerter:  alerter,
	}

	switch c.Cache.Driver {
	case "sqlite":
		s, err := cache.NewSQLite(c.Cache.Path, nil)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		e.store = s
		e.closeStore = s.Close
	default:
		e.store = cache.NewMemory(nil)
	}

	e.local = registry.NewLocal()
	if c.Registry.FixturePath != "" {
		n, err := e.local.LoadFromFile(c.Registry.FixturePath)
		if err != nil {
			e.Close()
			return nil, err
		}
		zap.L().Info("loaded registry fixture",
			zap.String("path", c.Registry.FixturePath),
			zap.Int("records", n),
		)
	}

	e.dlq = resilience.NewDLQ(c.DLQ.MaxRetries, time.Duration(c.DLQ.RetryAfterSecs)*time.Second)

	race := strategy.RaceOptions{
		MaxConcurrent:      c.Race.MaxConcurrent,
		PerStrategyTimeout: time.Duration(c.Race.PerStrategyTimeoutSecs) * time.Second,
		GlobalTimeout:      time.Duration(c.Race.GlobalTimeoutSecs) * time.Second,
		Retry: resilience.FromRetryConfig(
			c.Retry.MaxAttempts,
			c.Retry.InitialBackoffMs,
			c.Retry.MaxBackoffMs,
			c.Retry.Multiplier,
			c.Retry.JitterFraction,
		),
	}
	if e.alerter != nil {
		race.OnStructureError = e.alerter.NotifyStructureMismatch
	}

	e.chain = fallback.NewChain(strategies, e.local, e.dlq, fallback.Options{
		PreferLocal: c.Fallback.PreferLocal,
		WindowSize:  c.Fallback.HealthWindow,
		Race:        race,
	})

	e.tracker = prefetch.NewTracker(c.Prefetch.HistorySize, c.Prefetch.PopularityThreshold)
	e.resolver = engine.NewResolver(e.chain, e.store, e.tracker, c.Jobs.Capacity)

	e.scheduler = prefetch.NewScheduler(prefetch.SchedulerConfig{
		Interval:          time.Duration(c.Prefetch.IntervalSecs) * time.Second,
		BatchSize:         c.Prefetch.BatchSize,
		BatchPause:        time.Duration(c.Prefetch.BatchPauseSecs) * time.Second,
		MaxPerPass:        c.Prefetch.MaxPerPass,
		RequestsPerSecond: c.Prefetch.RequestsPerSecond,
	}, e.tracker, e.local, e.store, e.dlq, e.resolver.Warm)

	e.collector = monitoring.NewCollector(e.resolver.Jobs(), e.store, e.chain, e.dlq, e.breakers)

	return e, nil
}

// defaultStrategies builds the live extraction strategies: a structured
// probe, a markup scan, and a scripted browser run per portal, each behind
// its own circuit breaker. The browser strategies drive the adapter named
// in the config; without one they run against the in-process fake, lose
// every race, and leave the pass to the probe and markup rungs.
func defaultStrategies(c *config.Config, breakers *resilience.ServiceBreakers) []strategy.Strategy {
	limit := c.Portal.RequestsPerSecond
	if limit <= 0 {
		limit = 2
	}
	sunat := navigation.SUNATProfile()
	osce := navigation.OSCEProfile()

	var browser automation.Browser
	if c.Portal.BrowserAdapterURL != "" {
		browser = automation.NewRemoteBrowser(c.Portal.BrowserAdapterURL, nil)
	} else {
		browser = automation.NewFakeBrowser()
		zap.L().Info("no browser adapter configured, scripted navigation is inert")
	}
	session := automation.DefaultSessionConfig()

	raw := []strategy.Strategy{
		strategy.NewProbeStrategy("sunat-probe", c.Portal.SunatProbeURL,
			strategy.WithProbeLimit(limit, 2)),
		strategy.NewProbeStrategy("osce-probe", c.Portal.OSCEProbeURL,
			strategy.WithProbeLimit(limit, 2), strategy.JuridicalOnly()),
		strategy.NewMarkupStrategy("sunat-markup", c.Portal.SunatDetailURL, sunat.Fields),
		strategy.NewMarkupStrategy("osce-markup", c.Portal.OSCEDetailURL, osce.Fields),
		strategy.NewBrowserStrategy(browser, sunat, session),
		strategy.NewBrowserStrategy(browser, osce, session).JuridicalOnly(),
	}

	out := make([]strategy.Strategy, 0, len(raw))
	for _, s := range raw {
		out = append(out, strategy.WithBreaker(s, breakers))
	}
	return out
}

// Close releases the environment's resources.
func (e *env) Close() {
	if e.closeStore != nil {
		if err := e.closeStore(); err != nil {
			zap.L().Warn("closing cache store", zap.Error(err))
		}
	}
}
