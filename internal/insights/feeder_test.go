package insights

import (
	"testing"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/pkg/types"
)

func TestHandleTickInsertsMidPrice(t *testing.T) {
	s := New()
	f := NewFeeder(s, nil, nil)
	inst := &types.Instrument{ID: uuid.New()}

	f.handleTick(types.Tick{EventTime: at(1), Instrument: inst, BidPrice: 10, AskPrice: 12})

	v, ok := s.Last(inst.ID, MidPriceFeature, at(1))
	if !ok || v != 11 {
		t.Fatalf("want mid price 11, got %v ok=%v", v, ok)
	}
}

func TestHandleTradeInsertsPriceAndSize(t *testing.T) {
	s := New()
	f := NewFeeder(s, nil, nil)
	inst := &types.Instrument{ID: uuid.New()}

	f.handleTrade(types.AggTrade{EventTime: at(1), Instrument: inst, Price: 100, Quantity: 2.5})

	price, ok := s.Last(inst.ID, featureTradePrice, at(1))
	if !ok || price != 100 {
		t.Fatalf("want trade price 100, got %v ok=%v", price, ok)
	}
	size, ok := s.Last(inst.ID, featureTradeSize, at(1))
	if !ok || size != 2.5 {
		t.Fatalf("want trade size 2.5, got %v ok=%v", size, ok)
	}
}

func TestHandleTickIgnoresNilInstrument(t *testing.T) {
	s := New()
	f := NewFeeder(s, nil, nil)
	f.handleTick(types.Tick{EventTime: at(1), BidPrice: 10, AskPrice: 12})
	// No instrument to key on; nothing should be stored, and this must not panic.
}
