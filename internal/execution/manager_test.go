package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/ledger"
	"github.com/arkin-run/arkin/internal/orders"
	"github.com/arkin-run/arkin/pkg/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeVenue struct {
	submitted []types.VenueOrder
	err       error
}

func (f *fakeVenue) SubmitOrder(ctx context.Context, order types.VenueOrder) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, order)
	return order.ID.String(), nil
}

type fakeRisk struct {
	errs []error
}

func (f *fakeRisk) ReportError(err error) { f.errs = append(f.errs, err) }

func testInstrument() *types.Instrument {
	usdt := &types.Asset{ID: uuid.New(), Symbol: "USDT", Type: types.AssetStable}
	btc := &types.Asset{ID: uuid.New(), Symbol: "BTC", Type: types.AssetCrypto}
	return &types.Instrument{
		ID:         uuid.New(),
		Symbol:     "BTC-USDT",
		Type:       types.InstrumentSpot,
		BaseAsset:  btc,
		QuoteAsset: usdt,
	}
}

func newTestManager(t *testing.T, venue VenueSubmitter, risk RiskReporter) (*Manager, *bus.Bus) {
	t.Helper()
	b := bus.New(nil)
	m := NewManager(Config{OrderSize: d("1"), StartingQuoteBalance: d("100000")},
		orders.NewExecutionOrderBook(), orders.NewVenueOrderBook(), ledger.New(),
		venue, risk, b, func() time.Time { return time.Unix(0, 0) }, nil)
	return m, b
}

func TestHandleSignalSubmitsVenueOrderAndPlaces(t *testing.T) {
	fv := &fakeVenue{}
	m, _ := newTestManager(t, fv, &fakeRisk{})
	inst := testInstrument()
	strat := &types.Strategy{ID: uuid.New(), Name: "test"}

	m.handleSignal(context.Background(), types.Signal{
		ID: uuid.New(), EventTime: time.Unix(0, 0), Instrument: inst, Strategy: strat, Side: types.Buy, Strength: 1,
	})

	if len(fv.submitted) != 1 {
		t.Fatalf("want 1 submitted order, got %d", len(fv.submitted))
	}

	venOrders := m.venBook.ListOrders()
	if len(venOrders) != 1 || venOrders[0].Status != types.VenuePlaced {
		t.Fatalf("want one placed venue order, got %+v", venOrders)
	}
	execOrders := m.execBook.ListOrders()
	if len(execOrders) != 1 || execOrders[0].Status != types.ExecPlaced {
		t.Fatalf("want one placed execution order, got %+v", execOrders)
	}
}

func TestHandleSignalRejectsOnSubmitFailure(t *testing.T) {
	fv := &fakeVenue{err: errors.New("venue unreachable")}
	m, _ := newTestManager(t, fv, &fakeRisk{})
	inst := testInstrument()

	m.handleSignal(context.Background(), types.Signal{
		ID: uuid.New(), EventTime: time.Unix(0, 0), Instrument: inst, Strategy: &types.Strategy{ID: uuid.New()}, Side: types.Buy, Strength: 1,
	})

	venOrders := m.venBook.ListOrders()
	if len(venOrders) != 0 {
		t.Fatalf("want rejected venue order autocleaned, got %+v", venOrders)
	}
	execOrders := m.execBook.ListOrders()
	if len(execOrders) != 0 {
		t.Fatalf("want rejected execution order autocleaned, got %+v", execOrders)
	}
}

func TestHandleVenueOrderUpdateAppliesFillAndSyncsExecutionOrder(t *testing.T) {
	fv := &fakeVenue{}
	m, _ := newTestManager(t, fv, &fakeRisk{})
	inst := testInstrument()

	m.handleSignal(context.Background(), types.Signal{
		ID: uuid.New(), EventTime: time.Unix(0, 0), Instrument: inst, Strategy: &types.Strategy{ID: uuid.New()}, Side: types.Buy, Strength: 1,
	})
	venOrder := m.venBook.ListOrders()[0]

	m.handleVenueOrderUpdate(context.Background(), types.VenueOrderUpdate{
		ID: venOrder.ID, EventTime: time.Unix(1, 0), Status: types.VenueFilled,
		FilledQuantity: d("1"), FilledPrice: d("50000"), LastFilledQuantity: d("1"), LastFilledPrice: d("50000"),
	})

	// Filled is terminal on both books, so autoclean evicts both entries;
	// this only proves the sync reached execBook.Update without error.
	execOrders := m.execBook.ListOrders()
	if len(execOrders) != 0 {
		t.Fatalf("want exec order autocleaned after filling, got %+v", execOrders)
	}
}

func TestHandleVenueOrderFillPostsTradeAndFundsAccounts(t *testing.T) {
	fv := &fakeVenue{}
	m, _ := newTestManager(t, fv, &fakeRisk{})
	inst := testInstrument()

	m.handleSignal(context.Background(), types.Signal{
		ID: uuid.New(), EventTime: time.Unix(0, 0), Instrument: inst, Strategy: &types.Strategy{ID: uuid.New()}, Side: types.Buy, Strength: 1,
	})
	venOrder := m.venBook.ListOrders()[0]

	m.handleVenueOrderFill(context.Background(), types.VenueOrderFill{
		EventTime: time.Unix(1, 0), VenueOrder: venOrder.ID, Instrument: inst, Side: types.Buy,
		Price: d("50000"), Quantity: d("1"),
	})

	accts := m.resolveAccounts(inst)
	baseBal, ok := m.ledger.Balance(accts.UserBase)
	if !ok || !baseBal.Equal(d("1")) {
		t.Fatalf("want user base balance 1, got %v ok=%v", baseBal, ok)
	}
	quoteBal, ok := m.ledger.Balance(accts.UserQuote)
	if !ok || !quoteBal.Equal(d("50000")) {
		t.Fatalf("want user quote balance 100000-50000=50000, got %v ok=%v", quoteBal, ok)
	}
}

func TestHandleVenueOrderFillReportsLedgerErrorToRisk(t *testing.T) {
	fv := &fakeVenue{}
	fr := &fakeRisk{}
	m, _ := newTestManager(t, fv, fr)
	m.cfg.StartingQuoteBalance = decimal.Zero // no funding: buy will fail insufficient balance
	inst := testInstrument()

	m.handleSignal(context.Background(), types.Signal{
		ID: uuid.New(), EventTime: time.Unix(0, 0), Instrument: inst, Strategy: &types.Strategy{ID: uuid.New()}, Side: types.Buy, Strength: 1,
	})
	venOrder := m.venBook.ListOrders()[0]

	m.handleVenueOrderFill(context.Background(), types.VenueOrderFill{
		EventTime: time.Unix(1, 0), VenueOrder: venOrder.ID, Instrument: inst, Side: types.Buy,
		Price: d("50000"), Quantity: d("1"),
	})

	if len(fr.errs) != 1 {
		t.Fatalf("want ledger error reported to risk, got %d reports", len(fr.errs))
	}
}
