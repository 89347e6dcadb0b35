// Package strategy implements one concrete signal-generating strategy
// service: a threshold/crossover reader of InsightsState that publishes
// Signals onto the bus. Grounded on the teacher's maker.go Run loop
// shape (ctx-done/ticker select), stripped of its Avellaneda-Stoikov
// quoting math, which is out of scope here.
package strategy

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/pkg/types"
)

// Config holds the tunables for the threshold strategy, named to match
// the configuration surface.
type Config struct {
	FeatureID       string
	LookbackPeriods int
	Threshold       float64
	RefreshInterval time.Duration
}

// Threshold compares a feature's latest value against its trailing
// average over LookbackPeriods and emits a directional Signal when the
// deviation exceeds Threshold and the side differs from the last signal's.
type Threshold struct {
	cfg        Config
	instrument *types.Instrument
	strategy   *types.Strategy
	insights   *insights.State
	bus        *bus.Bus
	now        func() time.Time
	logger     *slog.Logger

	lastSide types.Side
}

// NewThreshold creates a strategy service instance for one instrument.
func NewThreshold(cfg Config, instrument *types.Instrument, strat *types.Strategy, state *insights.State, b *bus.Bus, now func() time.Time, logger *slog.Logger) *Threshold {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Threshold{
		cfg:        cfg,
		instrument: instrument,
		strategy:   strat,
		insights:   state,
		bus:        b,
		now:        now,
		logger:     logger.With("component", "strategy_threshold", "feature", cfg.FeatureID),
	}
}

// Name satisfies engine.Service.
func (t *Threshold) Name() string { return "strategy_threshold" }

// Tasks satisfies engine.Service.
func (t *Threshold) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return t.Run(ctx) }}
}

// Run evaluates the feature on every RefreshInterval tick until ctx is
// cancelled.
func (t *Threshold) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.RefreshInterval)
	defer ticker.Stop()

	t.logger.Info("strategy started", "lookback_periods", t.cfg.LookbackPeriods, "threshold", t.cfg.Threshold)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("strategy stopped")
			return ctx.Err()
		case <-ticker.C:
			t.evaluate(ctx)
		}
	}
}

func (t *Threshold) evaluate(ctx context.Context) {
	at := t.now()
	window := t.insights.Periods(t.instrument.ID, t.cfg.FeatureID, at, t.cfg.LookbackPeriods)
	if len(window) < t.cfg.LookbackPeriods {
		t.logger.Debug("insufficient history, skipping evaluation", "have", len(window), "need", t.cfg.LookbackPeriods)
		return
	}

	latest := window[len(window)-1]
	avg := mean(window)
	deviation := latest - avg
	if avg != 0 {
		deviation /= avg
	}

	var side types.Side
	switch {
	case deviation > t.cfg.Threshold:
		side = types.Buy
	case deviation < -t.cfg.Threshold:
		side = types.Sell
	default:
		return
	}

	if side == t.lastSide {
		return
	}
	t.lastSide = side

	signal := types.Signal{
		ID:         uuid.New(),
		EventTime:  at,
		Instrument: t.instrument,
		Strategy:   t.strategy,
		Side:       side,
		Strength:   deviation,
	}
	if err := t.bus.Publish(ctx, types.NewSignalEvent(signal)); err != nil {
		t.logger.Error("publish signal", "error", err)
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
