// Package ledger implements double-entry accounting over typed accounts:
// atomic multi-leg TransferGroup application, a post-every-group
// conservation check, balance queries, and the deposit/trade/
// realize_pnl/commission composite primitives built on post().
//
// Grounded on internal/strategy/inventory.go's position bookkeeping
// (average-entry-price tracking, realized-PnL-on-reduction), generalized
// from one in-memory Position to a full account map, and on
// internal/risk/manager.go's processReport aggregation-under-mutex
// pattern for the recompute-and-verify-after-every-write discipline.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/arkerr"
	"github.com/arkin-run/arkin/pkg/types"
)

// Ledger is the engine's single source of truth for account balances. All
// balance mutation goes through post(), serialized by postMu so
// conservation can be recomputed and verified after every group.
type Ledger struct {
	// postMu serializes post() end-to-end: validation, application, and
	// the conservation recheck all happen under one critical section so
	// no two groups can interleave their balance effects.
	postMu sync.Mutex

	mu       sync.RWMutex
	accounts map[uuid.UUID]types.Account
	history  []types.Transfer // applied transfers, append-only, in post order

	// deposited/withdrawn per asset id: running totals of deposit/initial
	// and withdrawal transfer amounts.
	deposited  map[uuid.UUID]decimal.Decimal
	withdrawn  map[uuid.UUID]decimal.Decimal
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{
		accounts:  make(map[uuid.UUID]types.Account),
		deposited: make(map[uuid.UUID]decimal.Decimal),
		withdrawn: make(map[uuid.UUID]decimal.Decimal),
	}
}

// OpenAccount registers a new account. Accounts referenced by a Transfer
// must be opened first.
func (l *Ledger) OpenAccount(a types.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[a.ID] = a
}

// Balance returns an account's current balance.
func (l *Ledger) Balance(accountID uuid.UUID) (decimal.Decimal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.accounts[accountID]
	if !ok {
		return decimal.Zero, false
	}
	return a.Balance, true
}

// Accounts returns a snapshot of every open account, for reporting and
// dashboard use. Order is unspecified.
func (l *Ledger) Accounts() []types.Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, a)
	}
	return out
}

// BalanceAt reconstructs an account's balance as of time t by replaying
// applied transfers with EventTime <= t.
func (l *Ledger) BalanceAt(accountID uuid.UUID, t time.Time) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()

	bal := decimal.Zero
	for _, tr := range l.history {
		if tr.EventTime.After(t) {
			continue
		}
		switch accountID {
		case tr.DebitAccount:
			bal = bal.Sub(tr.Amount)
		case tr.CreditAccount:
			bal = bal.Add(tr.Amount)
		}
	}
	return bal
}

// Post validates and atomically applies a TransferGroup. On any pre-check
// failure the group is rejected in full and no transfers are applied; on
// success, every transfer is applied and the conservation invariant is
// rechecked. A post-application conservation divergence is a fatal
// programming error, returned as ConservationViolation — callers must
// treat it as unrecoverable (see internal/risk).
func (l *Ledger) Post(group types.TransferGroup) error {
	l.postMu.Lock()
	defer l.postMu.Unlock()

	l.mu.RLock()
	if err := l.validateLocked(group); err != nil {
		l.mu.RUnlock()
		return err
	}
	l.mu.RUnlock()

	l.mu.Lock()
	for _, tr := range group.Transfers {
		debit := l.accounts[tr.DebitAccount]
		credit := l.accounts[tr.CreditAccount]
		debit.Balance = debit.Balance.Sub(tr.Amount)
		credit.Balance = credit.Balance.Add(tr.Amount)
		l.accounts[tr.DebitAccount] = debit
		l.accounts[tr.CreditAccount] = credit
		l.history = append(l.history, tr)

		switch tr.Type {
		case types.TransferDeposit, types.TransferInitial:
			l.deposited[tr.Asset.ID()] = l.deposited[tr.Asset.ID()].Add(tr.Amount)
		case types.TransferWithdrawal:
			l.withdrawn[tr.Asset.ID()] = l.withdrawn[tr.Asset.ID()].Add(tr.Amount)
		}
	}
	l.mu.Unlock()

	return l.checkConservation(group)
}

// validateLocked runs the five ordered pre-checks under the read lock.
func (l *Ledger) validateLocked(group types.TransferGroup) error {
	for _, tr := range group.Transfers {
		if tr.Amount.LessThanOrEqual(decimal.Zero) {
			return arkerr.InvalidAmount(tr.Amount.String())
		}
		if tr.DebitAccount == tr.CreditAccount {
			return arkerr.SameAccount(tr.DebitAccount.String())
		}

		debit, ok := l.accounts[tr.DebitAccount]
		if !ok {
			return fmt.Errorf("%w: account %s", arkerr.ErrNotFound, tr.DebitAccount)
		}
		credit, ok := l.accounts[tr.CreditAccount]
		if !ok {
			return fmt.Errorf("%w: account %s", arkerr.ErrNotFound, tr.CreditAccount)
		}

		if !debit.Asset.Equal(tr.Asset) || !credit.Asset.Equal(tr.Asset) {
			return arkerr.CurrencyMismatch(tr.ID.String())
		}

		if debit.Owner == types.OwnerUser {
			projected := debit.Balance.Sub(tr.Amount)
			if projected.IsNegative() {
				return arkerr.InsufficientBalance(debit.ID.String(), debit.Balance.String(), tr.Amount.String())
			}
		}
	}
	return nil
}

// checkConservation recomputes, per asset touched by group, the sum of
// signed balances across every account holding that asset. Every transfer
// (deposits and withdrawals included) debits and credits the same amount
// of the same asset between two ledger accounts, so that sum must stay
// zero. Divergence is fatal.
func (l *Ledger) checkConservation(group types.TransferGroup) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[uuid.UUID]bool)
	for _, tr := range group.Transfers {
		id := tr.Asset.ID()
		if seen[id] {
			continue
		}
		seen[id] = true

		sum := decimal.Zero
		for _, a := range l.accounts {
			if a.Asset.ID() == id {
				sum = sum.Add(a.Balance)
			}
		}

		if !sum.IsZero() {
			return arkerr.ConservationViolation(tr.Asset.Symbol(), decimal.Zero.String(), sum.String())
		}
	}
	return nil
}

// newGroupID mints a fresh transfer-group id; every composite primitive
// below uses it to tag its legs.
func newGroupID() uuid.UUID { return uuid.New() }

// Deposit posts a two-leg transfer crediting a user account from its
// venue-side personal mirror.
func (l *Ledger) Deposit(at time.Time, fromVenueAccount, toUserAccount uuid.UUID, asset types.Tradable, amount decimal.Decimal) error {
	gid := newGroupID()
	group := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{{
			ID:            uuid.New(),
			EventTime:     at,
			GroupID:       gid,
			DebitAccount:  fromVenueAccount,
			CreditAccount: toUserAccount,
			Asset:         asset,
			Amount:        amount,
			Type:          types.TransferDeposit,
		}},
	}
	return l.Post(group)
}

// TradeLegs describes one executed fill for Trade(): quote moves one way,
// base (or margin) moves the other, plus an optional commission leg.
type TradeLegs struct {
	At               time.Time
	Strategy         *types.Strategy
	Instrument       *types.Instrument
	Side             types.Side
	Price, Quantity  decimal.Decimal
	QuoteAccount     uuid.UUID // user's quote/margin account
	VenueQuoteMirror uuid.UUID
	BaseAccount      uuid.UUID // user's base/instrument account
	VenueBaseMirror  uuid.UUID
	Commission       decimal.Decimal
	CommissionAsset  types.Tradable
	UserCommAccount  uuid.UUID
	VenueCommAccount uuid.UUID
}

// Trade posts the transfer group implementing one executed fill: exchange
// of quote for base (buy) or base for quote (sell) between the user's
// accounts and their venue mirrors, plus a commission leg.
func (l *Ledger) Trade(legs TradeLegs) error {
	gid := newGroupID()
	notional := legs.Price.Mul(legs.Quantity)

	var quoteDebit, quoteCredit, baseDebit, baseCredit uuid.UUID
	switch legs.Side {
	case types.Buy:
		quoteDebit, quoteCredit = legs.QuoteAccount, legs.VenueQuoteMirror
		baseDebit, baseCredit = legs.VenueBaseMirror, legs.BaseAccount
	default:
		quoteDebit, quoteCredit = legs.VenueQuoteMirror, legs.QuoteAccount
		baseDebit, baseCredit = legs.BaseAccount, legs.VenueBaseMirror
	}

	transfers := []types.Transfer{
		{
			ID: uuid.New(), EventTime: legs.At, GroupID: gid,
			DebitAccount: quoteDebit, CreditAccount: quoteCredit,
			Asset: tradeQuoteAsset(legs.Instrument), Amount: notional,
			UnitPrice: legs.Price, Type: types.TransferTrade,
			Strategy: legs.Strategy, Instrument: legs.Instrument,
		},
		{
			ID: uuid.New(), EventTime: legs.At, GroupID: gid,
			DebitAccount: baseDebit, CreditAccount: baseCredit,
			Asset: tradeBaseAsset(legs.Instrument), Amount: legs.Quantity,
			UnitPrice: legs.Price, Type: types.TransferTrade,
			Strategy: legs.Strategy, Instrument: legs.Instrument,
		},
	}

	if legs.Commission.GreaterThan(decimal.Zero) {
		transfers = append(transfers, types.Transfer{
			ID: uuid.New(), EventTime: legs.At, GroupID: gid,
			DebitAccount: legs.UserCommAccount, CreditAccount: legs.VenueCommAccount,
			Asset: legs.CommissionAsset, Amount: legs.Commission,
			Type: types.TransferCommission, Strategy: legs.Strategy, Instrument: legs.Instrument,
		})
	}

	return l.Post(types.TransferGroup{GroupID: gid, Transfers: transfers})
}

func tradeQuoteAsset(i *types.Instrument) types.Tradable {
	if i == nil {
		return types.Tradable{}
	}
	if i.MarginAsset != nil {
		return types.AssetTradable(i.MarginAsset)
	}
	return types.AssetTradable(i.QuoteAsset)
}

func tradeBaseAsset(i *types.Instrument) types.Tradable {
	if i == nil {
		return types.Tradable{}
	}
	return types.InstrumentTradable(i)
}

// RealizePnL posts a single transfer moving realized P&L between a
// strategy's venue-held margin account and a venue-owned P&L account.
// A positive amount credits the strategy (profit); a negative amount
// debits it (loss) by swapping debit/credit.
func (l *Ledger) RealizePnL(at time.Time, strategyMarginAccount, venuePnLAccount uuid.UUID, asset types.Tradable, amount decimal.Decimal, strategy *types.Strategy, instrument *types.Instrument) error {
	gid := newGroupID()
	debit, credit := venuePnLAccount, strategyMarginAccount
	amt := amount
	if amount.IsNegative() {
		debit, credit = strategyMarginAccount, venuePnLAccount
		amt = amount.Neg()
	}
	group := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{{
			ID: uuid.New(), EventTime: at, GroupID: gid,
			DebitAccount: debit, CreditAccount: credit,
			Asset: asset, Amount: amt, Type: types.TransferPnL,
			Strategy: strategy, Instrument: instrument,
		}},
	}
	return l.Post(group)
}

// Commission posts a single debit-strategy/credit-venue transfer for a
// standalone commission charge (outside of Trade's bundled leg).
func (l *Ledger) Commission(at time.Time, strategyAccount, venueCommAccount uuid.UUID, asset types.Tradable, amount decimal.Decimal, strategy *types.Strategy, instrument *types.Instrument) error {
	gid := newGroupID()
	group := types.TransferGroup{
		GroupID: gid,
		Transfers: []types.Transfer{{
			ID: uuid.New(), EventTime: at, GroupID: gid,
			DebitAccount: strategyAccount, CreditAccount: venueCommAccount,
			Asset: asset, Amount: amount, Type: types.TransferCommission,
			Strategy: strategy, Instrument: instrument,
		}},
	}
	return l.Post(group)
}

// History returns a time-ordered snapshot of every transfer applied so
// far, for reconciliation and reporting.
func (l *Ledger) History() []types.Transfer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Transfer, len(l.history))
	copy(out, l.history)
	sort.Slice(out, func(i, j int) bool { return out[i].EventTime.Before(out[j].EventTime) })
	return out
}
