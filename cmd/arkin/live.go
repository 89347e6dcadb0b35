package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/arkin-run/arkin/internal/clock"
	"github.com/arkin-run/arkin/internal/execution"
	"github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/internal/observability"
	"github.com/arkin-run/arkin/internal/risk"
	"github.com/arkin-run/arkin/internal/strategy"
	"github.com/arkin-run/arkin/internal/venue"
	"github.com/arkin-run/arkin/pkg/types"
)

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "run the engine against the live venue with real-time signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return exitWith(exitConfigError, err)
		}

		clk := clock.NewLive()
		a, err := newApp(cfg, logger, clk.Now)
		if err != nil {
			return exitWith(exitConfigError, err)
		}

		gateway, err := venue.NewGateway(venue.Config{
			PrivateKey: cfg.Venue.PrivateKey,
			ChainID:    cfg.Venue.ChainID,
			RESTURL:    cfg.Venue.RESTBaseURL,
			WSURL:      cfg.Venue.WSURL,
			RateRPS:    cfg.Venue.RateLimitRPS,
			DryRun:     cfg.DryRun,
		}, a.bus, logger)
		if err != nil {
			return exitWith(exitConfigError, err)
		}
		a.engine.Register(gateway, 10, 90)

		instrument := &types.Instrument{ID: uuid.New(), Symbol: firstOr(instrumentList(), "BTC-PERP")}
		strat := &types.Strategy{ID: uuid.New(), Name: "threshold"}
		th := strategy.NewThreshold(strategy.Config{
			FeatureID:       cfg.Strategy.FeatureID,
			LookbackPeriods: cfg.Strategy.LookbackPeriods,
			Threshold:       cfg.Strategy.Threshold,
			RefreshInterval: cfg.Strategy.RefreshInterval,
		}, instrument, strat, a.insights, a.bus, a.now, logger)
		a.engine.Register(th, 20, 50)

		watchdog := risk.NewWatchdog(risk.Config{
			MaxDailyLoss:      cfg.Risk.MaxDailyLoss,
			CooldownAfterKill: cfg.Risk.CooldownAfterKill,
		}, logger)
		a.engine.Register(watchdog, 5, 80)

		feeder := insights.NewFeeder(a.insights, a.bus, logger)
		a.engine.Register(feeder, 15, 40)

		manager := execution.NewManager(execution.Config{
			OrderSize:            decimal.NewFromFloat(cfg.Execution.OrderSize),
			StartingQuoteBalance: decimal.NewFromFloat(cfg.Execution.StartingQuoteBalance),
		}, a.execBook, a.venBook, a.ledger, gateway, watchdog, a.bus, a.now, logger)
		a.engine.Register(manager, 15, 60)

		if cfg.Dashboard.Enabled {
			provider := observability.NewProvider(a.ledger, a.execBook)
			dash := observability.NewServer(observability.Config{
				Port:           cfg.Dashboard.Port,
				AllowedOrigins: cfg.Dashboard.AllowedOrigins,
			}, provider, a.bus, a.now, logger)
			a.engine.Register(dash, 15, 10)
		}

		if err := gateway.Subscribe(instrumentList()); err != nil {
			logger.Warn("initial venue subscribe failed", "error", err)
		}

		ctx := context.Background()
		code := runUntilSignalOrDone(ctx, a, nil, watchdog.KillSignals())
		if code != exitOK {
			return exitWith(code, nil)
		}
		return nil
	},
}

func firstOr(list []string, fallback string) string {
	if len(list) == 0 {
		return fallback
	}
	return list[0]
}

func exitWith(code int, err error) error {
	if err != nil {
		return wrappedExitError{code: code, err: err}
	}
	return exitCodeError(code)
}

type wrappedExitError struct {
	code int
	err  error
}

func (w wrappedExitError) Error() string { return w.err.Error() }
func (w wrappedExitError) Unwrap() error { return w.err }
func (w wrappedExitError) ExitCode() int { return w.code }
