package types

import "time"

// EventType is the closed set of event variants carried on the bus. Adding
// a new variant is a deliberate, versioned change — see internal/bus.
type EventType string

const (
	EventTick               EventType = "tick"
	EventAggTrade           EventType = "agg_trade"
	EventBook               EventType = "book"
	EventInsight            EventType = "insight"
	EventSignal             EventType = "signal"
	EventExecutionOrder     EventType = "execution_order"
	EventVenueOrder         EventType = "venue_order"
	EventVenueOrderUpdate   EventType = "venue_order_update"
	EventVenueOrderFill     EventType = "venue_order_fill"
	EventBalanceUpdate      EventType = "balance_update"
	EventPositionUpdate     EventType = "position_update"
	EventVenueAccountUpdate EventType = "venue_account_update"
	EventAccountNew         EventType = "account_new"
	EventTransferGroup      EventType = "transfer_group"
)

// Tick is a top-of-book quote update for an instrument.
type Tick struct {
	EventTime  time.Time
	Instrument *Instrument
	BidPrice   float64
	BidQty     float64
	AskPrice   float64
	AskQty     float64
}

// AggTrade is an aggregated public trade print.
type AggTrade struct {
	EventTime  time.Time
	Instrument *Instrument
	Price      float64
	Quantity   float64
	BuyMaker   bool
}

// Book is a depth snapshot or delta for an instrument (opaque payload; the
// concrete shape is adapter-specific and out of scope for the core).
type Book struct {
	EventTime  time.Time
	Instrument *Instrument
	Bids       [][2]float64
	Asks       [][2]float64
}

// Event is the envelope every payload travels in on the bus. Exactly one
// of the payload fields is non-nil, selected by Type.
type Event struct {
	Type      EventType
	Timestamp time.Time

	Tick               *Tick
	AggTrade           *AggTrade
	Book               *Book
	Insight            *Insight
	Signal             *Signal
	ExecutionOrder     *ExecutionOrder
	VenueOrder         *VenueOrder
	VenueOrderUpdate   *VenueOrderUpdate
	VenueOrderFill     *VenueOrderFill
	BalanceUpdate      *BalanceUpdate
	PositionUpdate     *PositionUpdate
	VenueAccountUpdate *VenueAccountUpdate
	AccountNew         *AccountNew
	TransferGroup      *TransferGroup
}

// GetEventType returns the event's variant tag.
func (e Event) GetEventType() EventType { return e.Type }

// Time returns the event's publication timestamp.
func (e Event) Time() time.Time { return e.Timestamp }

func newEvent(t EventType, ts time.Time) Event {
	return Event{Type: t, Timestamp: ts}
}

// NewTickEvent wraps a Tick in an Event envelope.
func NewTickEvent(v Tick) Event { e := newEvent(EventTick, v.EventTime); e.Tick = &v; return e }

// NewAggTradeEvent wraps an AggTrade in an Event envelope.
func NewAggTradeEvent(v AggTrade) Event {
	e := newEvent(EventAggTrade, v.EventTime)
	e.AggTrade = &v
	return e
}

// NewBookEvent wraps a Book in an Event envelope.
func NewBookEvent(v Book) Event { e := newEvent(EventBook, v.EventTime); e.Book = &v; return e }

// NewInsightEvent wraps an Insight in an Event envelope.
func NewInsightEvent(v Insight) Event {
	e := newEvent(EventInsight, v.EventTime)
	e.Insight = &v
	return e
}

// NewSignalEvent wraps a Signal in an Event envelope.
func NewSignalEvent(v Signal) Event {
	e := newEvent(EventSignal, v.EventTime)
	e.Signal = &v
	return e
}

// NewExecutionOrderEvent wraps an ExecutionOrder in an Event envelope.
func NewExecutionOrderEvent(v ExecutionOrder) Event {
	e := newEvent(EventExecutionOrder, v.EventTime)
	e.ExecutionOrder = &v
	return e
}

// NewVenueOrderEvent wraps a VenueOrder in an Event envelope.
func NewVenueOrderEvent(v VenueOrder) Event {
	e := newEvent(EventVenueOrder, v.EventTime)
	e.VenueOrder = &v
	return e
}

// NewVenueOrderUpdateEvent wraps a VenueOrderUpdate in an Event envelope.
func NewVenueOrderUpdateEvent(v VenueOrderUpdate) Event {
	e := newEvent(EventVenueOrderUpdate, v.EventTime)
	e.VenueOrderUpdate = &v
	return e
}

// NewVenueOrderFillEvent wraps a VenueOrderFill in an Event envelope.
func NewVenueOrderFillEvent(v VenueOrderFill) Event {
	e := newEvent(EventVenueOrderFill, v.EventTime)
	e.VenueOrderFill = &v
	return e
}

// NewBalanceUpdateEvent wraps a BalanceUpdate in an Event envelope.
func NewBalanceUpdateEvent(v BalanceUpdate) Event {
	e := newEvent(EventBalanceUpdate, v.EventTime)
	e.BalanceUpdate = &v
	return e
}

// NewPositionUpdateEvent wraps a PositionUpdate in an Event envelope.
func NewPositionUpdateEvent(v PositionUpdate) Event {
	e := newEvent(EventPositionUpdate, v.EventTime)
	e.PositionUpdate = &v
	return e
}

// NewVenueAccountUpdateEvent wraps a VenueAccountUpdate in an Event envelope.
func NewVenueAccountUpdateEvent(v VenueAccountUpdate) Event {
	e := newEvent(EventVenueAccountUpdate, v.EventTime)
	e.VenueAccountUpdate = &v
	return e
}

// NewAccountNewEvent wraps an AccountNew in an Event envelope.
func NewAccountNewEvent(v AccountNew) Event {
	e := newEvent(EventAccountNew, v.EventTime)
	e.AccountNew = &v
	return e
}

// NewTransferGroupEvent wraps a TransferGroup in an Event envelope. The
// envelope timestamp is the event_time of the group's first transfer.
func NewTransferGroupEvent(v TransferGroup) Event {
	var ts time.Time
	if len(v.Transfers) > 0 {
		ts = v.Transfers[0].EventTime
	}
	e := newEvent(EventTransferGroup, ts)
	e.TransferGroup = &v
	return e
}
