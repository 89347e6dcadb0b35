package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/arkin-run/arkin/internal/clock"
	"github.com/arkin-run/arkin/internal/execution"
	"github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/internal/persistence"
	"github.com/arkin-run/arkin/internal/risk"
	"github.com/arkin-run/arkin/internal/strategy"
	"github.com/arkin-run/arkin/internal/venue"
	"github.com/arkin-run/arkin/pkg/types"
)

var simulationCmd = &cobra.Command{
	Use:   "simulation",
	Short: "replay persisted market data through the engine without a live venue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return exitWith(exitConfigError, err)
		}
		cfg.DryRun = true

		start, end, err := parseReplayWindow()
		if err != nil {
			return exitWith(exitConfigError, err)
		}
		if start.IsZero() || end.IsZero() {
			return exitWith(exitConfigError, fmt.Errorf("simulation requires --start and --end"))
		}

		replay := clock.NewReplay(start, end)
		a, err := newApp(cfg, logger, replay.Now)
		if err != nil {
			return exitWith(exitConfigError, err)
		}

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

		// No live venue in replay: a dry-run RESTClient accepts every
		// submission without touching the network, same as live's gateway
		// would under --dry-run.
		submitter := venue.NewRESTClient(cfg.Venue.RESTBaseURL, nil, venue.NewRateLimiter(cfg.Venue.RateLimitRPS), true, logger)
		manager := execution.NewManager(execution.Config{
			OrderSize:            decimal.NewFromFloat(cfg.Execution.OrderSize),
			StartingQuoteBalance: decimal.NewFromFloat(cfg.Execution.StartingQuoteBalance),
		}, a.execBook, a.venBook, a.ledger, submitter, watchdog, a.bus, a.now, logger)
		a.engine.Register(manager, 15, 60)

		ticks, err := persistence.ReadTicks(cfg.Persistence.DataDir)
		if err != nil {
			return exitWith(exitRuntimeError, err)
		}
		trades, err := persistence.ReadTrades(cfg.Persistence.DataDir)
		if err != nil {
			return exitWith(exitRuntimeError, err)
		}
		logger.Info("loaded replay data", "ticks", len(ticks), "trades", len(trades))

		ctx := context.Background()
		a.engine.Start(ctx, a.bus, a.coreContext())

		code := exitOK
		feed := mergeReplayFeed(ticks, trades, start, end)
	feedLoop:
		for _, ev := range feed {
			select {
			case ks := <-watchdog.KillSignals():
				logger.Error("risk watchdog triggered shutdown", "reason", ks.Reason, "fatal", ks.Fatal)
				code = exitRuntimeError
				break feedLoop
			default:
			}
			if err := replay.Advance(ev.at); err != nil {
				continue
			}
			if err := a.bus.Publish(ctx, ev.event); err != nil {
				logger.Error("publish replay event", "error", err)
			}
		}

		a.engine.Stop()
		if err := a.writer.Close(); err != nil {
			logger.Error("final persistence flush failed", "error", err)
			return exitWith(exitRuntimeError, err)
		}
		logger.Info("simulation complete")
		if code != exitOK {
			return exitWith(code, nil)
		}
		return nil
	},
}

// replayEvent pairs a bus event with the timestamp it should be played
// at, so ticks and trades from separate persisted streams can be merged
// into one chronological feed.
type replayEvent struct {
	at    time.Time
	event types.Event
}

func mergeReplayFeed(ticks []types.Tick, trades []types.AggTrade, start, end time.Time) []replayEvent {
	events := make([]replayEvent, 0, len(ticks)+len(trades))
	for _, t := range ticks {
		if t.EventTime.Before(start) || t.EventTime.After(end) {
			continue
		}
		events = append(events, replayEvent{at: t.EventTime, event: types.NewTickEvent(t)})
	}
	for _, t := range trades {
		if t.EventTime.Before(start) || t.EventTime.After(end) {
			continue
		}
		events = append(events, replayEvent{at: t.EventTime, event: types.NewAggTradeEvent(t)})
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at.Before(events[j].at) })
	return events
}
