// Package execution implements the single-executor order manager: the
// one concrete path turning a strategy's Signal into a VenueOrder,
// folding venue fill reports back onto the order books via
// orders.ApplyFill, and posting the resulting trade to the ledger.
//
// Grounded on the teacher's internal/strategy/maker.go Run/handleFill
// event-loop shape (select on ctx-done/inbound channel, per-event
// handler methods), repointed from inventory bookkeeping to driving
// internal/orders and internal/ledger end to end.
package execution

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/internal/ledger"
	"github.com/arkin-run/arkin/internal/orders"
	"github.com/arkin-run/arkin/pkg/types"
)

// VenueSubmitter is the narrow venue-side dependency the manager needs:
// submitting a VenueOrder for execution. Satisfied by *venue.Gateway.
type VenueSubmitter interface {
	SubmitOrder(ctx context.Context, order types.VenueOrder) (string, error)
}

// RiskReporter is the narrow risk-side dependency the manager needs:
// forwarding a fatal ledger error for evaluation. Satisfied by
// *risk.Watchdog.
type RiskReporter interface {
	ReportError(err error)
}

// Config holds the tunables for the single executor.
type Config struct {
	ExecStrategyType     types.ExecStrategyType
	OrderType            types.OrderType
	TimeInForce          types.TimeInForce
	OrderSize            decimal.Decimal
	StartingQuoteBalance decimal.Decimal
}

// instrumentAccounts is the set of ledger accounts one instrument's
// trades settle through: a user/venue-mirror pair per leg (quote, base,
// commission).
type instrumentAccounts struct {
	UserQuote, VenueQuoteMirror uuid.UUID
	UserBase, VenueBaseMirror   uuid.UUID
	UserComm, VenueComm         uuid.UUID
}

// Manager is the engine.Service driving the Signal -> VenueOrder ->
// fill -> ledger trade pipeline.
type Manager struct {
	cfg      Config
	execBook *orders.ExecutionOrderBook
	venBook  *orders.VenueOrderBook
	ledger   *ledger.Ledger
	venue    VenueSubmitter
	risk     RiskReporter
	bus      *bus.Bus
	now      func() time.Time
	logger   *slog.Logger

	acctMu   sync.Mutex
	accounts map[uuid.UUID]instrumentAccounts
}

// NewManager builds an order manager over the given books and ledger.
func NewManager(cfg Config, execBook *orders.ExecutionOrderBook, venBook *orders.VenueOrderBook, l *ledger.Ledger, venue VenueSubmitter, risk RiskReporter, b *bus.Bus, now func() time.Time, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OrderType == "" {
		cfg.OrderType = types.OrderMarket
	}
	if cfg.TimeInForce == "" {
		cfg.TimeInForce = types.TIFIOC
	}
	if cfg.ExecStrategyType == "" {
		cfg.ExecStrategyType = "single_executor"
	}
	return &Manager{
		cfg:      cfg,
		execBook: execBook,
		venBook:  venBook,
		ledger:   l,
		venue:    venue,
		risk:     risk,
		bus:      b,
		now:      now,
		logger:   logger.With("component", "execution_manager"),
		accounts: make(map[uuid.UUID]instrumentAccounts),
	}
}

// Name satisfies engine.Service.
func (m *Manager) Name() string { return "execution_manager" }

// Tasks satisfies engine.Service.
func (m *Manager) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return m.Run(ctx) }}
}

// Run subscribes to Signal, VenueOrderUpdate and VenueOrderFill events
// and drives the pipeline until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	sub := m.bus.Subscribe(bus.Only(types.EventSignal, types.EventVenueOrderUpdate, types.EventVenueOrderFill))
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			m.handle(ctx, ev)
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev types.Event) {
	switch ev.Type {
	case types.EventSignal:
		m.handleSignal(ctx, *ev.Signal)
	case types.EventVenueOrderUpdate:
		m.handleVenueOrderUpdate(ctx, *ev.VenueOrderUpdate)
	case types.EventVenueOrderFill:
		m.handleVenueOrderFill(ctx, *ev.VenueOrderFill)
	}
}

// handleSignal turns a Signal into an ExecutionOrder/VenueOrder pair and
// submits the venue order, recording the outcome on both books.
func (m *Manager) handleSignal(ctx context.Context, signal types.Signal) {
	if signal.Instrument == nil {
		return
	}
	at := m.now()

	execOrder := types.ExecutionOrder{
		ID:               uuid.New(),
		EventTime:        at,
		Instrument:       signal.Instrument,
		Strategy:         signal.Strategy,
		Side:             signal.Side,
		OrderType:        m.cfg.OrderType,
		TimeInForce:      m.cfg.TimeInForce,
		Quantity:         m.cfg.OrderSize,
		ExecStrategyType: m.cfg.ExecStrategyType,
		Status:           types.ExecNew,
	}
	m.execBook.Insert(execOrder)
	if err := m.bus.Publish(ctx, types.NewExecutionOrderEvent(execOrder)); err != nil {
		m.logger.Error("publish execution order", "error", err)
	}

	venOrder := types.VenueOrder{
		ID:               uuid.New(),
		EventTime:        at,
		ExecutionOrderID: execOrder.ID,
		Instrument:       signal.Instrument,
		Strategy:         signal.Strategy,
		Side:             signal.Side,
		OrderType:        m.cfg.OrderType,
		TimeInForce:      m.cfg.TimeInForce,
		Quantity:         m.cfg.OrderSize,
		Status:           types.VenueNew,
	}
	m.venBook.Insert(venOrder)
	if err := m.bus.Publish(ctx, types.NewVenueOrderEvent(venOrder)); err != nil {
		m.logger.Error("publish venue order", "error", err)
	}

	if _, err := m.venue.SubmitOrder(ctx, venOrder); err != nil {
		m.logger.Error("submit venue order", "error", err, "order_id", venOrder.ID)
		m.rejectOrders(execOrder, venOrder)
		return
	}

	venOrder.Status = types.VenuePlaced
	if err := m.venBook.Update(venOrder); err != nil {
		m.logger.Error("record venue order placed", "error", err)
		return
	}
	execOrder.Status = types.ExecPlaced
	if err := m.execBook.Update(execOrder); err != nil {
		m.logger.Error("record execution order placed", "error", err)
	}
}

func (m *Manager) rejectOrders(execOrder types.ExecutionOrder, venOrder types.VenueOrder) {
	venOrder.Status = types.VenueRejected
	if err := m.venBook.Update(venOrder); err != nil {
		m.logger.Error("record venue order rejected", "error", err)
	}
	execOrder.Status = types.ExecRejected
	if err := m.execBook.Update(execOrder); err != nil {
		m.logger.Error("record execution order rejected", "error", err)
	}
}

// venueToExecStatus maps a finalized or in-flight VenueStatus onto its
// ExecutionStatus counterpart.
var venueToExecStatus = map[types.VenueStatus]types.ExecutionStatus{
	types.VenuePartiallyFilled: types.ExecPartiallyFilled,
	types.VenueFilled:          types.ExecFilled,
	types.VenueCancelling:      types.ExecCancelling,
	types.VenueCancelled:       types.ExecCancelled,
	types.VenueExpired:         types.ExecTerminated,
	types.VenueRejected:        types.ExecRejected,
}

// handleVenueOrderUpdate folds a venue's status/fill delta onto its
// VenueOrder via orders.ApplyFill and propagates the resulting status to
// the originating ExecutionOrder.
func (m *Manager) handleVenueOrderUpdate(ctx context.Context, upd types.VenueOrderUpdate) {
	venOrder, ok := m.venBook.Get(upd.ID)
	if !ok {
		m.logger.Warn("venue order update for unknown order", "order_id", upd.ID)
		return
	}

	applied, err := orders.ApplyFill(venOrder, upd)
	if err != nil {
		m.logger.Error("apply venue fill", "error", err, "order_id", upd.ID)
		return
	}
	if upd.LastFilledQuantity.LessThanOrEqual(decimal.Zero) && upd.Status != "" {
		applied.Status = upd.Status
	}

	if err := m.venBook.Update(applied); err != nil {
		m.logger.Error("record venue order update", "error", err, "order_id", upd.ID)
		return
	}
	if err := m.bus.Publish(ctx, types.NewVenueOrderEvent(applied)); err != nil {
		m.logger.Error("publish venue order", "error", err)
	}
	m.syncExecutionOrder(applied)
}

func (m *Manager) syncExecutionOrder(venOrder types.VenueOrder) {
	execOrder, ok := m.execBook.Get(venOrder.ExecutionOrderID)
	if !ok {
		m.logger.Warn("venue order has no matching execution order", "exec_order_id", venOrder.ExecutionOrderID)
		return
	}

	execOrder.FilledQuantity = venOrder.FilledQuantity
	execOrder.FilledPrice = venOrder.FilledPrice
	execOrder.Commission = venOrder.Commission
	if next, ok := venueToExecStatus[venOrder.Status]; ok {
		execOrder.Status = next
	}

	if err := m.execBook.Update(execOrder); err != nil {
		m.logger.Error("record execution order update", "error", err, "exec_order_id", execOrder.ID)
	}
}

// handleVenueOrderFill posts one executed fill to the ledger as a trade,
// resolving the fill's strategy and instrument through the VenueOrder it
// references (VenueOrderFill carries no strategy; its own instrument is
// used only when the VenueOrder has none).
// Any ledger error — most importantly a ConservationViolation — is
// forwarded to the risk watchdog.
func (m *Manager) handleVenueOrderFill(ctx context.Context, fill types.VenueOrderFill) {
	venOrder, ok := m.venBook.Get(fill.VenueOrder)
	if !ok {
		m.logger.Warn("fill for unknown venue order", "order_id", fill.VenueOrder)
		return
	}
	instrument := venOrder.Instrument
	if instrument == nil {
		instrument = fill.Instrument
	}
	if instrument == nil {
		m.logger.Warn("fill has no resolvable instrument", "order_id", fill.VenueOrder)
		return
	}

	accts := m.resolveAccounts(instrument)
	legs := ledger.TradeLegs{
		At:               fill.EventTime,
		Strategy:         venOrder.Strategy,
		Instrument:       instrument,
		Side:             fill.Side,
		Price:            fill.Price,
		Quantity:         fill.Quantity,
		QuoteAccount:     accts.UserQuote,
		VenueQuoteMirror: accts.VenueQuoteMirror,
		BaseAccount:      accts.UserBase,
		VenueBaseMirror:  accts.VenueBaseMirror,
		Commission:       fill.Commission,
		CommissionAsset:  quoteAsset(instrument),
		UserCommAccount:  accts.UserComm,
		VenueCommAccount: accts.VenueComm,
	}

	if err := m.ledger.Trade(legs); err != nil {
		m.logger.Error("post trade", "error", err, "order_id", fill.VenueOrder)
		m.risk.ReportError(err)
		return
	}
}

// resolveAccounts returns the ledger accounts an instrument's trades
// settle through, opening and (on first use) seeding them if this is the
// first fill seen for the instrument.
func (m *Manager) resolveAccounts(inst *types.Instrument) instrumentAccounts {
	m.acctMu.Lock()
	defer m.acctMu.Unlock()

	if a, ok := m.accounts[inst.ID]; ok {
		return a
	}

	accts := instrumentAccounts{
		UserQuote:        uuid.NewSHA1(inst.ID, []byte("user_quote")),
		VenueQuoteMirror: uuid.NewSHA1(inst.ID, []byte("venue_quote")),
		UserBase:         uuid.NewSHA1(inst.ID, []byte("user_base")),
		VenueBaseMirror:  uuid.NewSHA1(inst.ID, []byte("venue_base")),
		UserComm:         uuid.NewSHA1(inst.ID, []byte("user_comm")),
		VenueComm:        uuid.NewSHA1(inst.ID, []byte("venue_comm")),
	}

	quote := quoteAsset(inst)
	base := types.InstrumentTradable(inst)
	m.openAccount(accts.UserQuote, quote, types.OwnerUser, types.AccountSpot, inst.Venue)
	m.openAccount(accts.VenueQuoteMirror, quote, types.OwnerVenue, types.AccountSpot, inst.Venue)
	m.openAccount(accts.UserBase, base, types.OwnerUser, types.AccountInstrument, inst.Venue)
	m.openAccount(accts.VenueBaseMirror, base, types.OwnerVenue, types.AccountInstrument, inst.Venue)
	m.openAccount(accts.UserComm, quote, types.OwnerUser, types.AccountSpot, inst.Venue)
	m.openAccount(accts.VenueComm, quote, types.OwnerVenue, types.AccountSpot, inst.Venue)

	if m.cfg.StartingQuoteBalance.GreaterThan(decimal.Zero) {
		if err := m.ledger.Deposit(m.now(), accts.VenueQuoteMirror, accts.UserQuote, quote, m.cfg.StartingQuoteBalance); err != nil {
			m.logger.Error("seed starting balance", "error", err, "instrument", inst.Symbol)
		}
	}

	m.accounts[inst.ID] = accts
	return accts
}

func (m *Manager) openAccount(id uuid.UUID, asset types.Tradable, owner types.AccountOwner, typ types.AccountType, venue *types.Venue) {
	if _, ok := m.ledger.Balance(id); ok {
		return
	}
	m.ledger.OpenAccount(types.Account{ID: id, Asset: asset, Venue: venue, Owner: owner, Type: typ})
}

// quoteAsset mirrors ledger.Trade's own quote-asset resolution (margin
// asset if the instrument has one, else quote asset) so the commission
// leg and the pre-opened accounts always agree with what Trade will post.
func quoteAsset(inst *types.Instrument) types.Tradable {
	if inst.MarginAsset != nil {
		return types.AssetTradable(inst.MarginAsset)
	}
	return types.AssetTradable(inst.QuoteAsset)
}
