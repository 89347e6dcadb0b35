// Package observability exposes an ops HTTP+WebSocket dashboard over
// ledger balances, order-book state, and a live tap of the event bus.
// Grounded on the teacher's internal/api/{server,stream,handlers,
// snapshot}.go Hub/Client broadcast machinery, generalized from
// Polymarket market/position payloads to ledger accounts and order
// books.
package observability

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/ledger"
	"github.com/arkin-run/arkin/internal/orders"
	"github.com/arkin-run/arkin/pkg/types"
)

// AccountSnapshot is the wire shape of one ledger account balance.
type AccountSnapshot struct {
	AccountID string          `json:"account_id"`
	Owner     string          `json:"owner"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
}

// OrderSnapshot is the wire shape of one execution order.
type OrderSnapshot struct {
	OrderID        string          `json:"order_id"`
	Side           string          `json:"side"`
	Status         string          `json:"status"`
	Quantity       decimal.Decimal `json:"quantity"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
}

// Snapshot is the full state served by /api/snapshot and sent to every
// new WebSocket client on connect.
type Snapshot struct {
	Timestamp time.Time         `json:"timestamp"`
	Accounts  []AccountSnapshot `json:"accounts"`
	Orders    []OrderSnapshot   `json:"orders"`
}

// Provider supplies the state a Snapshot is built from.
type Provider interface {
	Accounts() []types.Account
	ExecutionOrders() []types.ExecutionOrder
}

// ledgerProvider adapts *ledger.Ledger and *orders.ExecutionOrderBook
// into a Provider.
type ledgerProvider struct {
	ledger *ledger.Ledger
	orders *orders.ExecutionOrderBook
}

// NewProvider builds the standard Provider backing the dashboard.
func NewProvider(l *ledger.Ledger, o *orders.ExecutionOrderBook) Provider {
	return &ledgerProvider{ledger: l, orders: o}
}

func (p *ledgerProvider) Accounts() []types.Account { return p.ledger.Accounts() }

func (p *ledgerProvider) ExecutionOrders() []types.ExecutionOrder { return p.orders.ListOrders() }

// BuildSnapshot renders the current Provider state into the wire shape.
func BuildSnapshot(p Provider, now time.Time) Snapshot {
	accounts := p.Accounts()
	accountSnaps := make([]AccountSnapshot, 0, len(accounts))
	for _, a := range accounts {
		accountSnaps = append(accountSnaps, AccountSnapshot{
			AccountID: a.ID.String(),
			Owner:     string(a.Owner),
			Type:      string(a.Type),
			Balance:   a.Balance,
		})
	}

	execOrders := p.ExecutionOrders()
	orderSnaps := make([]OrderSnapshot, 0, len(execOrders))
	for _, o := range execOrders {
		orderSnaps = append(orderSnaps, OrderSnapshot{
			OrderID:        o.ID.String(),
			Side:           string(o.Side),
			Status:         string(o.Status),
			Quantity:       o.Quantity,
			FilledQuantity: o.FilledQuantity,
		})
	}

	return Snapshot{Timestamp: now, Accounts: accountSnaps, Orders: orderSnaps}
}
