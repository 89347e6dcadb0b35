package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/arkerr"
	"github.com/arkin-run/arkin/pkg/types"
)

func newVenueOrder(status types.VenueStatus, qty, filledQty, filledPrice string) types.VenueOrder {
	return types.VenueOrder{
		ID:             uuid.New(),
		EventTime:      time.Now(),
		Quantity:       decimal.RequireFromString(qty),
		FilledQuantity: decimal.RequireFromString(filledQty),
		FilledPrice:    decimal.RequireFromString(filledPrice),
		Status:         status,
	}
}

func TestExecutionOrderBookRejectsIllegalTransition(t *testing.T) {
	b := NewExecutionOrderBook()
	o := types.ExecutionOrder{ID: uuid.New(), Status: types.ExecFilled}
	b.Insert(o)

	bad := o
	bad.Status = types.ExecNew
	err := b.Update(bad)
	if !errors.Is(err, arkerr.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition error, got %v", err)
	}

	// Book state unchanged.
	got, _ := b.Get(o.ID)
	if got.Status != types.ExecFilled {
		t.Fatalf("book state mutated on rejected transition: %v", got.Status)
	}
}

func TestExecutionOrderBookAutocleanOnFinalize(t *testing.T) {
	b := NewExecutionOrderBook()
	o := types.ExecutionOrder{ID: uuid.New(), Status: types.ExecNew}
	b.Insert(o)

	placed := o
	placed.Status = types.ExecPlaced
	if err := b.Update(placed); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Get(o.ID); !ok {
		t.Fatal("expected order still present after non-finalizing update")
	}

	filled := placed
	filled.Status = types.ExecFilled
	if err := b.Update(filled); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Get(o.ID); ok {
		t.Fatal("expected order evicted after finalize under autoclean")
	}
}

func TestExecutionOrderBookAutocleanDisabled(t *testing.T) {
	b := NewExecutionOrderBook()
	b.SetAutoclean(false)
	o := types.ExecutionOrder{ID: uuid.New(), Status: types.ExecPlaced}
	b.Insert(o)

	filled := o
	filled.Status = types.ExecFilled
	if err := b.Update(filled); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Get(o.ID); !ok {
		t.Fatal("expected order retained when autoclean disabled")
	}
}

func TestVenueOrderBookAllowsInflightAndExpired(t *testing.T) {
	b := NewVenueOrderBook()
	o := newVenueOrder(types.VenueNew, "1", "0", "0")
	b.Insert(o)

	inflight := o
	inflight.Status = types.VenueInflight
	if err := b.Update(inflight); err != nil {
		t.Fatal(err)
	}

	expired := inflight
	expired.Status = types.VenueExpired
	if err := b.Update(expired); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Get(o.ID); ok {
		t.Fatal("expected expired order evicted under autoclean")
	}
}

func TestListOrdersByStatusAndExecStrategy(t *testing.T) {
	b := NewExecutionOrderBook()
	s1 := types.ExecStrategyType("single_executor")
	a := types.ExecutionOrder{ID: uuid.New(), Status: types.ExecPlaced, ExecStrategyType: s1}
	c := types.ExecutionOrder{ID: uuid.New(), Status: types.ExecNew, ExecStrategyType: s1}
	b.Insert(a)
	b.Insert(c)

	placed := b.ListOrdersByStatus(types.ExecPlaced)
	if len(placed) != 1 || placed[0].ID != a.ID {
		t.Fatalf("unexpected placed list: %+v", placed)
	}

	byStrategy := b.ListOrdersByExecStrategy(s1)
	if len(byStrategy) != 2 {
		t.Fatalf("expected 2 orders for strategy, got %d", len(byStrategy))
	}
}

func TestApplyFillPartialThenFull(t *testing.T) {
	order := newVenueOrder(types.VenuePlaced, "10", "0", "0")

	upd1 := types.VenueOrderUpdate{
		FilledQuantity:     decimal.RequireFromString("4"),
		FilledPrice:        decimal.RequireFromString("100"),
		LastFilledQuantity: decimal.RequireFromString("4"),
		LastFilledPrice:    decimal.RequireFromString("100"),
	}
	order, err := ApplyFill(order, upd1)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != types.VenuePartiallyFilled {
		t.Fatalf("expected PartiallyFilled, got %v", order.Status)
	}
	if !order.FilledPrice.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("expected vwap 100, got %v", order.FilledPrice)
	}

	upd2 := types.VenueOrderUpdate{
		FilledQuantity:     decimal.RequireFromString("10"),
		FilledPrice:        decimal.RequireFromString("110"),
		LastFilledQuantity: decimal.RequireFromString("6"),
		LastFilledPrice:    decimal.RequireFromString("110"),
	}
	order, err = ApplyFill(order, upd2)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != types.VenueFilled {
		t.Fatalf("expected Filled, got %v", order.Status)
	}
	// vwap = (100*4 + 110*6) / 10 = 106
	want := decimal.RequireFromString("106")
	if !order.FilledPrice.Equal(want) {
		t.Fatalf("expected vwap %v, got %v", want, order.FilledPrice)
	}
}

func TestApplyFillRejectsRegression(t *testing.T) {
	order := newVenueOrder(types.VenuePlaced, "10", "5", "100")

	upd := types.VenueOrderUpdate{
		FilledQuantity:     decimal.RequireFromString("3"), // regressed from 5
		LastFilledQuantity: decimal.RequireFromString("1"),
		LastFilledPrice:    decimal.RequireFromString("100"),
	}
	_, err := ApplyFill(order, upd)
	if !errors.Is(err, arkerr.ErrInconsistentFill) {
		t.Fatalf("expected inconsistent fill error, got %v", err)
	}
}

func TestApplyFillAccumulatesCommission(t *testing.T) {
	order := newVenueOrder(types.VenuePlaced, "10", "0", "0")
	order.Commission = decimal.RequireFromString("0.5")

	upd := types.VenueOrderUpdate{
		FilledQuantity:     decimal.RequireFromString("10"),
		FilledPrice:        decimal.RequireFromString("100"),
		LastFilledQuantity: decimal.RequireFromString("10"),
		LastFilledPrice:    decimal.RequireFromString("100"),
		Commission:         decimal.RequireFromString("0.25"),
	}
	order, err := ApplyFill(order, upd)
	if err != nil {
		t.Fatal(err)
	}
	want := decimal.RequireFromString("0.75")
	if !order.Commission.Equal(want) {
		t.Fatalf("expected commission %v, got %v", want, order.Commission)
	}
}

func TestApplyFillRejectsCommissionAssetMismatch(t *testing.T) {
	assetA := &types.Asset{ID: uuid.New(), Symbol: "USDT"}
	assetB := &types.Asset{ID: uuid.New(), Symbol: "BNB"}

	order := newVenueOrder(types.VenuePlaced, "10", "4", "100")
	order.CommissionAsset = assetA

	upd := types.VenueOrderUpdate{
		FilledQuantity:     decimal.RequireFromString("10"),
		FilledPrice:        decimal.RequireFromString("100"),
		LastFilledQuantity: decimal.RequireFromString("6"),
		LastFilledPrice:    decimal.RequireFromString("100"),
		CommissionAsset:    assetB,
	}
	_, err := ApplyFill(order, upd)
	if !errors.Is(err, arkerr.ErrCurrencyMismatch) {
		t.Fatalf("expected currency mismatch error, got %v", err)
	}
}
