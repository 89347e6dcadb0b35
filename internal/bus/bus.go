// Package bus implements the engine's process-wide typed publish/subscribe
// fabric: a closed set of Event variants delivered to bounded, optionally
// acknowledging subscriber queues with per-(publisher,subscriber) ordering
// and full-queue backpressure on the publisher.
//
// Shape is grounded on the teacher's WebSocket hub
// (internal/api/stream.go's Hub/Client register/unregister/broadcast
// triad, generalized from one fixed payload to the Event union) and its
// per-type channel dispatch (internal/exchange/ws.go's dispatchMessage).
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/internal/arkerr"
	"github.com/arkin-run/arkin/pkg/types"
)

// DefaultCapacity is the default bounded channel size for a subscription.
const DefaultCapacity = 4096

// DefaultAckWindow is the default number of unacked messages an
// acknowledging subscriber may be outstanding before the bus withholds
// further delivery.
const DefaultAckWindow = 1

// Filter selects which events a subscription receives.
type Filter struct {
	all   bool
	types map[types.EventType]struct{}
}

// All matches every event type.
func All() Filter { return Filter{all: true} }

// Only matches exactly the given event types.
func Only(ts ...types.EventType) Filter {
	m := make(map[types.EventType]struct{}, len(ts))
	for _, t := range ts {
		m[t] = struct{}{}
	}
	return Filter{types: m}
}

func (f Filter) matches(t types.EventType) bool {
	if f.all {
		return true
	}
	_, ok := f.types[t]
	return ok
}

// Option configures a subscription at Subscribe time.
type Option func(*subscriberOpts)

type subscriberOpts struct {
	capacity  int
	acking    bool
	ackWindow int
}

// WithCapacity overrides the default bounded channel capacity.
func WithCapacity(n int) Option {
	return func(o *subscriberOpts) { o.capacity = n }
}

// WithAck declares the subscription as acknowledging: the bus withholds
// delivery beyond ackWindow outstanding (unacked) messages until Ack is
// called. ackWindow <= 0 uses DefaultAckWindow.
func WithAck(ackWindow int) Option {
	return func(o *subscriberOpts) {
		o.acking = true
		o.ackWindow = ackWindow
	}
}

// Subscription is a handle returned by Subscribe. Events() yields matching
// events in publication order; acknowledging subscribers must call Ack
// once per received event to keep delivery flowing.
type Subscription struct {
	id     uuid.UUID
	filter Filter
	ch     chan types.Event
	acking bool
	permit chan struct{} // buffered token channel gating acking delivery

	bus *Bus
}

// Events returns the channel events are delivered on.
func (s *Subscription) Events() <-chan types.Event { return s.ch }

// Ack acknowledges one previously delivered event, releasing one delivery
// permit. A no-op for non-acking subscriptions.
func (s *Subscription) Ack() {
	if !s.acking {
		return
	}
	select {
	case s.permit <- struct{}{}:
	default:
		// Already fully permitted; extra Ack calls are harmless.
	}
}

// Unsubscribe removes the subscription from the bus and closes its
// channel. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.remove(s.id)
}

// Bus is the process-wide event fabric.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]*Subscription
	closed bool
	logger *slog.Logger
}

// New creates an empty Bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[uuid.UUID]*Subscription),
		logger: logger.With("component", "bus"),
	}
}

// Subscribe registers a new subscription matching filter and returns its
// handle. The returned channel has the configured (or default) bounded
// capacity.
func (b *Bus) Subscribe(filter Filter, opts ...Option) *Subscription {
	o := subscriberOpts{capacity: DefaultCapacity, ackWindow: DefaultAckWindow}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ackWindow <= 0 {
		o.ackWindow = DefaultAckWindow
	}

	sub := &Subscription{
		id:     uuid.New(),
		filter: filter,
		ch:     make(chan types.Event, o.capacity),
		acking: o.acking,
		bus:    b,
	}
	if o.acking {
		sub.permit = make(chan struct{}, o.ackWindow)
		for i := 0; i < o.ackWindow; i++ {
			sub.permit <- struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[sub.id] = sub
	return sub
}

func (b *Bus) remove(id uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	closeQuietly(sub.ch)
}

// Publish delivers event to every matching subscriber, in the order this
// method is called by a single caller goroutine. Publish blocks when any
// matching subscriber's queue is full (or, for an acking subscriber, when
// its ack window is exhausted) until room is available. Returns
// arkerr.ErrBusClosed-wrapped error if the bus has been shut down.
func (b *Bus) Publish(ctx context.Context, event types.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return arkerr.BusClosed()
	}
	// Snapshot matching subscribers; new subscribers that join after this
	// point simply won't see this event, which is within the "delivered to
	// every matching subscriber [at publish time] exactly once" contract.
	targets := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.filter.matches(event.Type) {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if err := b.deliver(ctx, sub, event); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends event to sub, respecting its ack window, and recovers if
// the subscriber's channel was independently closed (the "panicking
// subscriber" failure mode): the subscription is dropped and other
// subscribers are unaffected.
func (b *Bus) deliver(ctx context.Context, sub *Subscription, event types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber channel closed during delivery, dropping subscription",
				"subscriber", sub.id, "panic", r)
			b.remove(sub.id)
			err = nil // a dead subscriber does not fail the publisher
		}
	}()

	if sub.acking {
		select {
		case <-sub.permit:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	select {
	case sub.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts the bus down: further Publish calls return a closed error,
// and every subscriber's channel is closed so range loops terminate.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		closeQuietly(sub.ch)
		delete(b.subs, id)
	}
}

func closeQuietly(ch chan types.Event) {
	defer func() { recover() }()
	close(ch)
}
