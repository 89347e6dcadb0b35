// Package orders implements the two sibling order indices
// (ExecutionOrderBook, VenueOrderBook): concurrent order_id -> order maps
// with caller-driven, table-validated state transitions, autoclean of
// finalized orders, and volume-weighted fill aggregation.
//
// Shape grounded on the teacher's RWMutex-guarded order-book map
// (internal/market/book.go); the state-transition tables follow the
// pack's table-driven transition idiom (other_examples okex-books-buddy's
// order book processor, crablet's interfaces); fill aggregation is
// grounded on internal/strategy/inventory.go's applyYesFill/applyNoFill
// weighted-average-price update, generalized to decimal.Decimal.
package orders

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/arkerr"
	"github.com/arkin-run/arkin/pkg/types"
)

// execTransitions is the data-driven ExecutionOrder state table: allowed
// target statuses per current status. The book validates against this
// table; it never advances state on its own.
var execTransitions = map[types.ExecutionStatus]map[types.ExecutionStatus]bool{
	types.ExecNew: {
		types.ExecPlaced:   true,
		types.ExecRejected: true,
	},
	types.ExecPlaced: {
		types.ExecPartiallyFilled: true,
		types.ExecFilled:          true,
		types.ExecCancelling:      true,
		types.ExecRejected:        true,
	},
	types.ExecPartiallyFilled: {
		types.ExecPartiallyFilled: true, // additional fills
		types.ExecFilled:          true,
		types.ExecCancelling:      true,
	},
	types.ExecCancelling: {
		types.ExecCancelled:  true,
		types.ExecTerminated: true,
	},
	types.ExecCancelled:  {},
	types.ExecFilled:     {},
	types.ExecRejected:   {},
	types.ExecTerminated: {},
}

// venueTransitions is the VenueOrder state table: identical shape to
// execTransitions plus Inflight (between New and Placed) and Expired.
var venueTransitions = map[types.VenueStatus]map[types.VenueStatus]bool{
	types.VenueNew: {
		types.VenueInflight: true,
		types.VenuePlaced:   true, // venues that ack synchronously may skip Inflight
		types.VenueRejected: true,
	},
	types.VenueInflight: {
		types.VenuePlaced:   true,
		types.VenueRejected: true,
		types.VenueExpired:  true,
	},
	types.VenuePlaced: {
		types.VenuePartiallyFilled: true,
		types.VenueFilled:          true,
		types.VenueCancelling:      true,
		types.VenueExpired:         true,
		types.VenueRejected:        true,
	},
	types.VenuePartiallyFilled: {
		types.VenuePartiallyFilled: true,
		types.VenueFilled:          true,
		types.VenueCancelling:      true,
		types.VenueExpired:         true,
	},
	types.VenueCancelling: {
		types.VenueCancelled: true,
	},
	types.VenueCancelled:  {},
	types.VenueFilled:     {},
	types.VenueRejected:   {},
	types.VenueExpired:    {},
}

// ExecutionOrderBook is the concurrent order_id -> ExecutionOrder index.
type ExecutionOrderBook struct {
	mu        sync.RWMutex
	orders    map[uuid.UUID]types.ExecutionOrder
	autoclean bool
}

// NewExecutionOrderBook creates a book with autoclean enabled by default.
func NewExecutionOrderBook() *ExecutionOrderBook {
	return &ExecutionOrderBook{orders: make(map[uuid.UUID]types.ExecutionOrder), autoclean: true}
}

// SetAutoclean toggles the autoclean-on-finalize policy.
func (b *ExecutionOrderBook) SetAutoclean(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoclean = on
}

// Insert adds a new order to the book.
func (b *ExecutionOrderBook) Insert(o types.ExecutionOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
}

// Get returns the order by id.
func (b *ExecutionOrderBook) Get(id uuid.UUID) (types.ExecutionOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Update validates the order's transition from its current stored status
// to next.Status against the state table, stores the updated order on
// success, and (in autoclean mode) removes it from the book if the new
// status is finalized. On an illegal transition, the book is left
// unchanged and an IllegalTransition error is returned.
func (b *ExecutionOrderBook) Update(next types.ExecutionOrder) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.orders[next.ID]
	if !ok {
		return fmt.Errorf("%w: execution order %s", arkerr.ErrNotFound, next.ID)
	}
	if cur.Status != next.Status {
		allowed := execTransitions[cur.Status]
		if !allowed[next.Status] {
			return arkerr.IllegalTransition(string(cur.Status), string(next.Status), next.ID.String())
		}
	}

	b.orders[next.ID] = next
	if b.autoclean && next.Status.Finalized() {
		delete(b.orders, next.ID)
	}
	return nil
}

// Remove drops an order unconditionally.
func (b *ExecutionOrderBook) Remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, id)
}

// ListIDs returns every order id currently in the book.
func (b *ExecutionOrderBook) ListIDs() []uuid.UUID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(b.orders))
	for id := range b.orders {
		ids = append(ids, id)
	}
	return ids
}

// ListOrders returns a snapshot of every order in the book.
func (b *ExecutionOrderBook) ListOrders() []types.ExecutionOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.ExecutionOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// ListOrdersByStatus returns a snapshot of every order with the given
// status.
func (b *ExecutionOrderBook) ListOrdersByStatus(status types.ExecutionStatus) []types.ExecutionOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []types.ExecutionOrder
	for _, o := range b.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// ListOrdersByExecStrategy returns a snapshot of every order tagged with
// the given execution strategy type.
func (b *ExecutionOrderBook) ListOrdersByExecStrategy(t types.ExecStrategyType) []types.ExecutionOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []types.ExecutionOrder
	for _, o := range b.orders {
		if o.ExecStrategyType == t {
			out = append(out, o)
		}
	}
	return out
}

// VenueOrderBook is the concurrent order_id -> VenueOrder index.
type VenueOrderBook struct {
	mu        sync.RWMutex
	orders    map[uuid.UUID]types.VenueOrder
	autoclean bool
}

// NewVenueOrderBook creates a book with autoclean enabled by default.
func NewVenueOrderBook() *VenueOrderBook {
	return &VenueOrderBook{orders: make(map[uuid.UUID]types.VenueOrder), autoclean: true}
}

// SetAutoclean toggles the autoclean-on-finalize policy.
func (b *VenueOrderBook) SetAutoclean(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.autoclean = on
}

// Insert adds a new order to the book.
func (b *VenueOrderBook) Insert(o types.VenueOrder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders[o.ID] = o
}

// Get returns the order by id.
func (b *VenueOrderBook) Get(id uuid.UUID) (types.VenueOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Update validates the transition and applies autoclean, symmetric to
// ExecutionOrderBook.Update.
func (b *VenueOrderBook) Update(next types.VenueOrder) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur, ok := b.orders[next.ID]
	if !ok {
		return fmt.Errorf("%w: venue order %s", arkerr.ErrNotFound, next.ID)
	}
	if cur.Status != next.Status {
		allowed := venueTransitions[cur.Status]
		if !allowed[next.Status] {
			return arkerr.IllegalTransition(string(cur.Status), string(next.Status), next.ID.String())
		}
	}

	b.orders[next.ID] = next
	if b.autoclean && next.Status.Finalized() {
		delete(b.orders, next.ID)
	}
	return nil
}

// Remove drops an order unconditionally.
func (b *VenueOrderBook) Remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, id)
}

// ListIDs returns every order id currently in the book.
func (b *VenueOrderBook) ListIDs() []uuid.UUID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(b.orders))
	for id := range b.orders {
		ids = append(ids, id)
	}
	return ids
}

// ListOrders returns a snapshot of every order in the book.
func (b *VenueOrderBook) ListOrders() []types.VenueOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]types.VenueOrder, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out
}

// ListOrdersByStatus returns a snapshot of every order with the given
// status.
func (b *VenueOrderBook) ListOrdersByStatus(status types.VenueStatus) []types.VenueOrder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []types.VenueOrder
	for _, o := range b.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// ApplyFill folds a VenueOrderUpdate with last_filled_quantity > 0 into
// order, recomputing the volume-weighted average fill price, status, and
// cumulative commission. Grounded on inventory.go's applyYesFill /
// applyNoFill weighted-average-price recurrence, generalized from
// float64 YES/NO token quantities to decimal.Decimal (filled_quantity,
// filled_price) pairs.
func ApplyFill(order types.VenueOrder, upd types.VenueOrderUpdate) (types.VenueOrder, error) {
	if upd.LastFilledQuantity.LessThanOrEqual(decimal.Zero) {
		return order, nil
	}

	if upd.FilledQuantity.LessThan(order.FilledQuantity) {
		return order, arkerr.InconsistentFill(order.ID.String(), order.FilledQuantity.String(), upd.FilledQuantity.String())
	}

	newFilledQty := upd.FilledQuantity

	var newFilledPrice decimal.Decimal
	totalQty := order.FilledQuantity.Add(upd.LastFilledQuantity)
	if totalQty.IsZero() {
		newFilledPrice = order.FilledPrice
	} else {
		weighted := order.FilledPrice.Mul(order.FilledQuantity).Add(upd.LastFilledPrice.Mul(upd.LastFilledQuantity))
		newFilledPrice = weighted.Div(totalQty)
	}

	if order.CommissionAsset != nil && upd.CommissionAsset != nil && order.CommissionAsset.ID != upd.CommissionAsset.ID {
		return order, fmt.Errorf("%w: order %s: commission asset %s -> %s", arkerr.ErrCurrencyMismatch, order.ID, order.CommissionAsset.Symbol, upd.CommissionAsset.Symbol)
	}

	order.FilledQuantity = newFilledQty
	order.FilledPrice = newFilledPrice
	order.Commission = order.Commission.Add(upd.Commission)
	if upd.CommissionAsset != nil {
		order.CommissionAsset = upd.CommissionAsset
	}

	switch {
	case order.FilledQuantity.Equal(order.Quantity):
		order.Status = types.VenueFilled
	case order.FilledQuantity.GreaterThan(decimal.Zero):
		order.Status = types.VenuePartiallyFilled
	}

	return order, nil
}
