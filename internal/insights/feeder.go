package insights

import (
	"context"
	"log/slog"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/pkg/types"
)

// MidPriceFeature is the feature_id a Feeder derives from top-of-book
// ticks: the simple mid of bid and ask.
const MidPriceFeature = "mid_price"

// Feeder subscribes to Tick and AggTrade events and inserts the features
// every other component reads back out of State: mid_price from ticks,
// trade.price/trade.size (consumed by LastCandle) from trades. Grounded
// on the teacher's internal/market/book.go update-on-event shape, one
// level up: instead of mutating a local book, it writes into the shared
// feature store.
type Feeder struct {
	state  *State
	bus    *bus.Bus
	logger *slog.Logger
}

// NewFeeder builds a feature-derivation service over state.
func NewFeeder(state *State, b *bus.Bus, logger *slog.Logger) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{state: state, bus: b, logger: logger.With("component", "insights_feeder")}
}

// Name satisfies engine.Service.
func (f *Feeder) Name() string { return "insights_feeder" }

// Tasks satisfies engine.Service.
func (f *Feeder) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return f.Run(ctx) }}
}

// Run subscribes to the bus and derives features until ctx is cancelled.
func (f *Feeder) Run(ctx context.Context) error {
	sub := f.bus.Subscribe(bus.Only(types.EventTick, types.EventAggTrade))
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			f.handle(ev)
		}
	}
}

func (f *Feeder) handle(ev types.Event) {
	switch ev.Type {
	case types.EventTick:
		f.handleTick(*ev.Tick)
	case types.EventAggTrade:
		f.handleTrade(*ev.AggTrade)
	}
}

func (f *Feeder) handleTick(tick types.Tick) {
	if tick.Instrument == nil {
		return
	}
	mid := (tick.BidPrice + tick.AskPrice) / 2
	f.state.Insert(tick.Instrument.ID, MidPriceFeature, tick.EventTime, mid)
}

func (f *Feeder) handleTrade(trade types.AggTrade) {
	if trade.Instrument == nil {
		return
	}
	f.state.Insert(trade.Instrument.ID, featureTradePrice, trade.EventTime, trade.Price)
	f.state.Insert(trade.Instrument.ID, featureTradeSize, trade.EventTime, trade.Quantity)
}
