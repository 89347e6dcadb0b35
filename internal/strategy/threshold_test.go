package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/insights"
	"github.com/arkin-run/arkin/pkg/types"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEvaluatePublishesBuySignalOnPositiveDeviation(t *testing.T) {
	b := bus.New(nil)
	sub := b.Subscribe(bus.Only(types.EventSignal))

	state := insights.New()
	instrument := &types.Instrument{ID: uuid.New(), Symbol: "BTC-PERP"}
	strat := &types.Strategy{ID: uuid.New(), Name: "threshold"}

	base := time.Now()
	for i, v := range []float64{100, 100, 100, 100, 130} {
		state.Insert(instrument.ID, "momentum", base.Add(time.Duration(i)*time.Second), v)
	}
	at := base.Add(4 * time.Second)

	th := NewThreshold(Config{
		FeatureID:       "momentum",
		LookbackPeriods: 5,
		Threshold:       0.1,
		RefreshInterval: time.Hour,
	}, instrument, strat, state, b, fixedClock(at), nil)

	th.evaluate(context.Background())

	select {
	case ev := <-sub.Events():
		if ev.Signal == nil || ev.Signal.Side != types.Buy {
			t.Fatalf("expected buy signal, got %+v", ev.Signal)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a signal to be published")
	}
}

func TestEvaluateSkipsWhenInsufficientHistory(t *testing.T) {
	b := bus.New(nil)
	sub := b.Subscribe(bus.Only(types.EventSignal))

	state := insights.New()
	instrument := &types.Instrument{ID: uuid.New()}
	strat := &types.Strategy{ID: uuid.New()}
	at := time.Now()
	state.Insert(instrument.ID, "momentum", at, 100)

	th := NewThreshold(Config{FeatureID: "momentum", LookbackPeriods: 5, Threshold: 0.1, RefreshInterval: time.Hour}, instrument, strat, state, b, fixedClock(at), nil)
	th.evaluate(context.Background())

	select {
	case ev := <-sub.Events():
		t.Fatalf("expected no signal with insufficient history, got %+v", ev.Signal)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEvaluateDoesNotRepeatSameSideSignal(t *testing.T) {
	b := bus.New(nil)
	sub := b.Subscribe(bus.Only(types.EventSignal))

	state := insights.New()
	instrument := &types.Instrument{ID: uuid.New()}
	strat := &types.Strategy{ID: uuid.New()}
	base := time.Now()
	for i, v := range []float64{100, 100, 100, 100, 130} {
		state.Insert(instrument.ID, "momentum", base.Add(time.Duration(i)*time.Second), v)
	}
	at := base.Add(4 * time.Second)

	th := NewThreshold(Config{FeatureID: "momentum", LookbackPeriods: 5, Threshold: 0.1, RefreshInterval: time.Hour}, instrument, strat, state, b, fixedClock(at), nil)
	th.evaluate(context.Background())
	<-sub.Events()

	th.evaluate(context.Background())
	select {
	case ev := <-sub.Events():
		t.Fatalf("expected no duplicate signal for unchanged side, got %+v", ev.Signal)
	case <-time.After(50 * time.Millisecond):
	}
}
