// Package types defines the shared data model used across all packages.
//
// This is the common vocabulary for the engine — assets, venues,
// instruments, accounts, transfers, orders, fills, and insights. It has no
// dependencies on internal packages, so it can be imported by any layer.
// Multi-field entities are immutable once published; "updates" are new
// values, never in-place mutations of a previously published value.
package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ————————————————————————————————————————————————————————————————————————
// Reference data: Asset, Venue, Instrument, Tradable
// ————————————————————————————————————————————————————————————————————————

// AssetType classifies an Asset for accounting purposes.
type AssetType string

const (
	AssetCrypto AssetType = "crypto"
	AssetFiat   AssetType = "fiat"
	AssetStable AssetType = "stable"
)

// Asset is a unit of account (e.g. USDT, BTC). Shared by reference — every
// event or account that mentions an asset holds the same *Asset value via
// the reference-data cache, never a copy.
type Asset struct {
	ID     uuid.UUID
	Symbol string
	Name   string
	Type   AssetType
}

// VenueType classifies a Venue.
type VenueType string

const (
	VenueCEX      VenueType = "cex"
	VenueDEX      VenueType = "dex"
	VenueOTC      VenueType = "otc"
	VenuePersonal VenueType = "personal"
)

// Venue is a trading counterparty: an exchange, a DEX, or the user's own
// "personal" bookkeeping venue used for deposits/withdrawals.
type Venue struct {
	ID   uuid.UUID
	Name string
	Type VenueType
}

// InstrumentType classifies an Instrument.
type InstrumentType string

const (
	InstrumentSpot      InstrumentType = "spot"
	InstrumentPerpetual InstrumentType = "perpetual"
	InstrumentFuture    InstrumentType = "future"
	InstrumentOption    InstrumentType = "option"
)

// InstrumentStatus is the trading status of an Instrument.
type InstrumentStatus string

const (
	InstrumentTrading InstrumentStatus = "trading"
	InstrumentHalted  InstrumentStatus = "halted"
)

// OptionType distinguishes calls from puts for option instruments.
type OptionType string

const (
	OptionCall OptionType = "call"
	OptionPut  OptionType = "put"
)

// Instrument is a tradable contract on a Venue: a spot pair, a perpetual, a
// dated future, or an option.
type Instrument struct {
	ID             uuid.UUID
	Venue          *Venue
	Symbol         string
	VenueSymbol    string
	Type           InstrumentType
	BaseAsset      *Asset
	QuoteAsset     *Asset
	MarginAsset    *Asset
	Maturity       *time.Time
	Strike         *decimal.Decimal
	OptionType     *OptionType
	ContractSize   decimal.Decimal
	PricePrecision int32
	QtyPrecision   int32
	TickSize       decimal.Decimal
	LotSize        decimal.Decimal
	Status         InstrumentStatus
}

// Tradable is the unit of account recorded in ledger transfers: either a
// plain Asset (e.g. USDT) or an Instrument (e.g. BTC-PERP). Exactly one of
// Asset/Instrument is non-nil.
type Tradable struct {
	Asset      *Asset
	Instrument *Instrument
}

// AssetTradable wraps an Asset as a Tradable.
func AssetTradable(a *Asset) Tradable { return Tradable{Asset: a} }

// InstrumentTradable wraps an Instrument as a Tradable.
func InstrumentTradable(i *Instrument) Tradable { return Tradable{Instrument: i} }

// ID returns the identifying UUID of whichever side of the union is set.
func (t Tradable) ID() uuid.UUID {
	if t.Asset != nil {
		return t.Asset.ID
	}
	if t.Instrument != nil {
		return t.Instrument.ID
	}
	return uuid.Nil
}

// Symbol returns the display symbol of whichever side of the union is set.
func (t Tradable) Symbol() string {
	if t.Asset != nil {
		return t.Asset.Symbol
	}
	if t.Instrument != nil {
		return t.Instrument.Symbol
	}
	return ""
}

// Equal reports whether two Tradables refer to the same underlying entity.
func (t Tradable) Equal(o Tradable) bool {
	return t.ID() == o.ID() && t.Symbol() == o.Symbol()
}

// ————————————————————————————————————————————————————————————————————————
// Strategies & Pipelines (referenced only; shared like other reference data)
// ————————————————————————————————————————————————————————————————————————

// Strategy identifies the source of an order or transfer for accounting
// and attribution purposes.
type Strategy struct {
	ID   uuid.UUID
	Name string
}

// Pipeline is a named collection of feature-computation nodes. Referenced
// only — its internals are out of scope for the event engine.
type Pipeline struct {
	ID   uuid.UUID
	Name string
}

// ————————————————————————————————————————————————————————————————————————
// Accounts & transfers (ledger data model)
// ————————————————————————————————————————————————————————————————————————

// AccountOwner distinguishes the user's own account from its venue-side
// mirror.
type AccountOwner string

const (
	OwnerUser  AccountOwner = "user"
	OwnerVenue AccountOwner = "venue"
)

// AccountType classifies what an Account holds.
type AccountType string

const (
	AccountSpot       AccountType = "spot"
	AccountMargin     AccountType = "margin"
	AccountInstrument AccountType = "instrument"
)

// Account is a ledger account for one (asset, venue, owner, type) tuple.
// For every user-owned account there must exist a venue-owned mirror in
// the same (venue, asset, type) triple.
type Account struct {
	ID      uuid.UUID
	Asset   Tradable
	Venue   *Venue
	Owner   AccountOwner
	Type    AccountType
	Balance decimal.Decimal
}

// TransferType classifies the economic meaning of a Transfer.
type TransferType string

const (
	TransferInitial     TransferType = "initial"
	TransferDeposit     TransferType = "deposit"
	TransferWithdrawal  TransferType = "withdrawal"
	TransferTrade       TransferType = "trade"
	TransferPnL         TransferType = "pnl"
	TransferCommission  TransferType = "commission"
	TransferFunding     TransferType = "funding"
	TransferSettlement  TransferType = "settlement"
	TransferLiquidation TransferType = "liquidation"
	TransferAdjustment  TransferType = "adjustment"
)

// Transfer is one leg of a double-entry transaction: Amount is debited
// from DebitAccount and credited to CreditAccount.
type Transfer struct {
	ID              uuid.UUID
	EventTime       time.Time
	GroupID         uuid.UUID
	DebitAccount    uuid.UUID
	CreditAccount   uuid.UUID
	Asset           Tradable
	Amount          decimal.Decimal
	UnitPrice       decimal.Decimal
	Type            TransferType
	Strategy        *Strategy
	Instrument      *Instrument
}

// TransferGroup is an ordered list of Transfers sharing GroupID that must
// be applied atomically by the ledger.
type TransferGroup struct {
	GroupID   uuid.UUID
	Transfers []Transfer
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// OrderType enumerates supported order types.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// TimeInForce enumerates supported order durations.
type TimeInForce string

const (
	TIFGTC TimeInForce = "gtc"
	TIFIOC TimeInForce = "ioc"
	TIFFOK TimeInForce = "fok"
)

// ExecStrategyType names the execution algorithm that produced/manages an
// ExecutionOrder (e.g. "single_executor"). Concrete execution algorithms
// are out of scope; this is an opaque label.
type ExecStrategyType string

// ExecutionStatus is the lifecycle state of an ExecutionOrder.
type ExecutionStatus string

const (
	ExecNew             ExecutionStatus = "New"
	ExecPlaced          ExecutionStatus = "Placed"
	ExecPartiallyFilled ExecutionStatus = "PartiallyFilled"
	ExecFilled          ExecutionStatus = "Filled"
	ExecCancelling      ExecutionStatus = "Cancelling"
	ExecCancelled       ExecutionStatus = "Cancelled"
	ExecTerminated      ExecutionStatus = "Terminated"
	ExecRejected        ExecutionStatus = "Rejected"
)

// Finalized reports whether the status is a terminal execution-order state.
func (s ExecutionStatus) Finalized() bool {
	switch s {
	case ExecFilled, ExecCancelled, ExecTerminated, ExecRejected:
		return true
	default:
		return false
	}
}

// ExecutionOrder is a strategy-level order expressing trading intent. It
// may be split into one or more VenueOrders by the order manager.
type ExecutionOrder struct {
	ID               uuid.UUID
	EventTime        time.Time
	Instrument       *Instrument
	Strategy         *Strategy
	Side             Side
	OrderType        OrderType
	TimeInForce      TimeInForce
	Price            *decimal.Decimal
	Quantity         decimal.Decimal
	FilledQuantity   decimal.Decimal
	FilledPrice      decimal.Decimal
	Commission       decimal.Decimal
	ExecStrategyType ExecStrategyType
	Status           ExecutionStatus
}

// VenueStatus is the lifecycle state of a VenueOrder.
type VenueStatus string

const (
	VenueNew             VenueStatus = "New"
	VenueInflight        VenueStatus = "Inflight"
	VenuePlaced          VenueStatus = "Placed"
	VenuePartiallyFilled VenueStatus = "PartiallyFilled"
	VenueFilled          VenueStatus = "Filled"
	VenueCancelling      VenueStatus = "Cancelling"
	VenueCancelled       VenueStatus = "Cancelled"
	VenueExpired         VenueStatus = "Expired"
	VenueRejected        VenueStatus = "Rejected"
)

// Finalized reports whether the status is a terminal venue-order state.
func (s VenueStatus) Finalized() bool {
	switch s {
	case VenueFilled, VenueCancelled, VenueExpired, VenueRejected:
		return true
	default:
		return false
	}
}

// VenueOrder is an order as submitted to and tracked by a venue. It always
// links back to the ExecutionOrder that spawned it.
type VenueOrder struct {
	ID               uuid.UUID
	EventTime        time.Time
	ExecutionOrderID uuid.UUID
	Instrument       *Instrument
	Strategy         *Strategy
	Side             Side
	OrderType        OrderType
	TimeInForce      TimeInForce
	Price            *decimal.Decimal
	Quantity         decimal.Decimal
	FilledQuantity   decimal.Decimal
	FilledPrice      decimal.Decimal
	Commission       decimal.Decimal
	CommissionAsset  *Asset
	Status           VenueStatus
}

// VenueOrderFill is a single (partial or full) execution report for a
// VenueOrder. Persisted fills carry the order's id, not a pointer, to
// avoid cycles; in-memory consumers resolve it via the order book.
type VenueOrderFill struct {
	EventTime  time.Time
	VenueOrder uuid.UUID
	Instrument *Instrument
	Side       Side
	Price      decimal.Decimal
	Quantity   decimal.Decimal
	Commission decimal.Decimal
}

// VenueOrderUpdate is a delta applied to a VenueOrder by the venue
// adapter: a new status plus cumulative and incremental fill data.
type VenueOrderUpdate struct {
	ID                 uuid.UUID
	EventTime          time.Time
	Status             VenueStatus
	FilledQuantity     decimal.Decimal
	FilledPrice        decimal.Decimal
	LastFilledQuantity decimal.Decimal
	LastFilledPrice    decimal.Decimal
	Commission         decimal.Decimal
	CommissionAsset    *Asset
}

// ————————————————————————————————————————————————————————————————————————
// Insights
// ————————————————————————————————————————————————————————————————————————

// InsightType classifies the derivation stage of an Insight value.
type InsightType string

const (
	InsightRaw         InsightType = "raw"
	InsightContinuous  InsightType = "continuous"
	InsightCategorical InsightType = "categorical"
	InsightScaled      InsightType = "scaled"
	InsightPrediction  InsightType = "prediction"
)

// Insight is a time-stamped numeric feature value for an instrument (or a
// pipeline-global feature when Instrument is nil).
type Insight struct {
	EventTime  time.Time
	Pipeline   *Pipeline
	Instrument *Instrument
	FeatureID  string
	Value      float64
	Type       InsightType
	Persist    bool
}

// Signal is a strategy's trading intent derived from insights, consumed by
// the allocation layer to size an ExecutionOrder.
type Signal struct {
	ID         uuid.UUID
	EventTime  time.Time
	Instrument *Instrument
	Strategy   *Strategy
	Side       Side
	Strength   float64 // in [-1, 1]; sign is direction, magnitude is conviction
}

// Candle is an OHLCV bar derived from trade insights within an aggregation
// interval.
type Candle struct {
	Open, High, Low, Close float64
	Volume                 float64
	OpenTime, CloseTime    time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Account / balance events (published on the bus by the ledger)
// ————————————————————————————————————————————————————————————————————————

// BalanceUpdate is published after a Ledger post() changes an account's
// balance.
type BalanceUpdate struct {
	EventTime time.Time
	Account   uuid.UUID
	Asset     Tradable
	Balance   decimal.Decimal
}

// PositionUpdate reports an instrument position's mark-to-market state.
type PositionUpdate struct {
	EventTime     time.Time
	Instrument    *Instrument
	Strategy      *Strategy
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
}

// VenueAccountUpdate mirrors a venue's own view of an account balance
// (e.g. from a venue WS account-update stream).
type VenueAccountUpdate struct {
	EventTime time.Time
	Venue     *Venue
	Asset     *Asset
	Balance   decimal.Decimal
}

// AccountNew announces a newly created Account (e.g. on first deposit).
type AccountNew struct {
	EventTime time.Time
	Account   Account
}
