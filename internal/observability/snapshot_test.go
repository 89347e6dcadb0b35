package observability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/ledger"
	"github.com/arkin-run/arkin/internal/orders"
	"github.com/arkin-run/arkin/pkg/types"
)

func TestBuildSnapshotReflectsLedgerAndOrders(t *testing.T) {
	l := ledger.New()
	acct := types.Account{ID: uuid.New(), Owner: types.OwnerUser, Type: types.AccountSpot, Balance: decimal.NewFromInt(100)}
	l.OpenAccount(acct)

	book := orders.NewExecutionOrderBook()
	order := types.ExecutionOrder{ID: uuid.New(), Side: types.Buy, Status: types.ExecNew, Quantity: decimal.NewFromInt(5)}
	book.Insert(order)

	provider := NewProvider(l, book)
	snap := BuildSnapshot(provider, time.Now())

	if len(snap.Accounts) != 1 || snap.Accounts[0].Balance.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("expected one account with balance 100, got %+v", snap.Accounts)
	}
	if len(snap.Orders) != 1 || snap.Orders[0].Quantity.Cmp(decimal.NewFromInt(5)) != 0 {
		t.Fatalf("expected one order with quantity 5, got %+v", snap.Orders)
	}
}

func TestBuildSnapshotEmptyProvider(t *testing.T) {
	l := ledger.New()
	book := orders.NewExecutionOrderBook()
	snap := BuildSnapshot(NewProvider(l, book), time.Now())
	if len(snap.Accounts) != 0 || len(snap.Orders) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}
