package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	insightsstate "github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/internal/persistence"
	"github.com/arkin-run/arkin/pkg/types"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "derive features from persisted market data and report the latest values",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return exitWith(exitConfigError, err)
		}

		ticks, err := persistence.ReadTicks(cfg.Persistence.DataDir)
		if err != nil {
			return exitWith(exitRuntimeError, err)
		}
		if len(ticks) == 0 {
			logger.Warn("no persisted ticks found, nothing to derive")
			return nil
		}

		state := insightsstate.New(
			insightsstate.WithRetention(cfg.Insights.RetentionWindow),
			insightsstate.WithCandleInterval(cfg.Insights.CandleInterval),
		)

		writer, err := persistence.OpenWriter(cfg.Persistence.DataDir, logger,
			persistence.WithBatchSize(cfg.Persistence.BatchSize),
			persistence.WithMaxRetries(cfg.Persistence.MaxRetries))
		if err != nil {
			return exitWith(exitConfigError, err)
		}
		defer writer.Close()

		feature := cfg.Strategy.FeatureID
		if feature == "" {
			feature = "mid_price"
		}

		byInstrument := map[uuid.UUID]*types.Instrument{}
		for _, tick := range ticks {
			if tick.Instrument == nil {
				continue
			}
			mid := (tick.BidPrice + tick.AskPrice) / 2
			state.Insert(tick.Instrument.ID, feature, tick.EventTime, mid)
			byInstrument[tick.Instrument.ID] = tick.Instrument

			insight := types.Insight{
				EventTime:  tick.EventTime,
				Instrument: tick.Instrument,
				FeatureID:  feature,
				Value:      mid,
				Type:       types.InsightContinuous,
				Persist:    true,
			}
			if err := writer.InsertInsight(insight); err != nil {
				logger.Error("persist insight", "error", err)
			}
		}

		for id, inst := range byInstrument {
			if last, ok := state.Last(id, feature, ticks[len(ticks)-1].EventTime); ok {
				fmt.Printf("%s\t%s\t%.8f\n", inst.Symbol, feature, last)
			}
		}
		logger.Info("derived insights from persisted ticks", "ticks", len(ticks), "instruments", len(byInstrument))
		return nil
	},
}
