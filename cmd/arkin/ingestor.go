package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/arkin-run/arkin/internal/clock"
	"github.com/arkin-run/arkin/internal/ingest"
	"github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/internal/risk"
	"github.com/arkin-run/arkin/pkg/types"
)

var ingestorCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "poll venue market data and persist it for later replay",
}

func init() {
	ingestorCmd.AddCommand(&cobra.Command{
		Use:   "binance",
		Short: "poll Binance-style REST market data",
		RunE:  runIngestor,
	})
	ingestorCmd.AddCommand(&cobra.Command{
		Use:   "tardis",
		Short: "poll a Tardis-compatible historical/replay market-data mirror",
		RunE:  runIngestor,
	})
}

func runIngestor(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return exitWith(exitConfigError, err)
	}

	clk := clock.NewLive()
	a, err := newApp(cfg, logger, clk.Now)
	if err != nil {
		return exitWith(exitConfigError, err)
	}

	symbols := instrumentList()
	if len(symbols) == 0 {
		symbols = []string{"BTC-PERP"}
	}
	instruments := make([]*types.Instrument, 0, len(symbols))
	for _, sym := range symbols {
		instruments = append(instruments, &types.Instrument{ID: uuid.New(), Symbol: sym, VenueSymbol: sym})
	}

	poller := ingest.NewPoller(ingest.Config{
		BaseURL:      cfg.Venue.RESTBaseURL,
		PollInterval: cfg.Strategy.RefreshInterval,
	}, instruments, a.bus, a.writer, a.now, logger)
	a.engine.Register(poller, 10, 90)

	feeder := insights.NewFeeder(a.insights, a.bus, logger)
	a.engine.Register(feeder, 15, 40)

	watchdog := risk.NewWatchdog(risk.Config{
		MaxDailyLoss:      cfg.Risk.MaxDailyLoss,
		CooldownAfterKill: cfg.Risk.CooldownAfterKill,
	}, logger)
	a.engine.Register(watchdog, 5, 80)

	ctx := context.Background()
	code := runUntilSignalOrDone(ctx, a, nil, watchdog.KillSignals())
	if code != exitOK {
		return exitWith(code, nil)
	}
	return nil
}
