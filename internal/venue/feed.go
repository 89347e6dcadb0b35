package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/arkin-run/arkin/pkg/types"
)

const (
	pingInterval     = 50 * time.Second
	readTimeout      = 90 * time.Second
	maxReconnectWait = 30 * time.Second
	writeTimeout     = 10 * time.Second
	eventBufferSize  = 256
)

// wireUpdate and wireFill are the venue's WS wire shapes; Feed decodes
// them into types.VenueOrderUpdate / types.VenueOrderFill.
type wireUpdate struct {
	EventType          string          `json:"event_type"`
	OrderID            uuid.UUID       `json:"order_id"`
	Status             string          `json:"status"`
	FilledQuantity     decimal.Decimal `json:"filled_quantity"`
	FilledPrice        decimal.Decimal `json:"filled_price"`
	LastFilledQuantity decimal.Decimal `json:"last_filled_quantity"`
	LastFilledPrice    decimal.Decimal `json:"last_filled_price"`
	Commission         decimal.Decimal `json:"commission"`
}

type wireFill struct {
	EventType  string          `json:"event_type"`
	OrderID    uuid.UUID       `json:"order_id"`
	Side       string          `json:"side"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	Commission decimal.Decimal `json:"commission"`
}

// Feed is a single venue WebSocket connection delivering order/fill
// updates, with auto-reconnect and re-subscribe. Grounded on
// internal/exchange/ws.go's WSFeed, generalized from the Polymarket
// market/user channel split to one update stream carrying
// VenueOrderUpdate/VenueOrderFill events.
type Feed struct {
	url string

	connMu sync.Mutex
	conn   *websocket.Conn

	subscribedMu sync.RWMutex
	subscribed   map[string]bool

	updateCh chan types.VenueOrderUpdate
	fillCh   chan types.VenueOrderFill

	logger *slog.Logger
}

// NewFeed creates a Feed for the given WebSocket URL.
func NewFeed(wsURL string, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{
		url:        wsURL,
		subscribed: make(map[string]bool),
		updateCh:   make(chan types.VenueOrderUpdate, eventBufferSize),
		fillCh:     make(chan types.VenueOrderFill, eventBufferSize),
		logger:     logger.With("component", "venue_feed"),
	}
}

// Updates returns the channel of decoded VenueOrderUpdate events.
func (f *Feed) Updates() <-chan types.VenueOrderUpdate { return f.updateCh }

// Fills returns the channel of decoded VenueOrderFill events.
func (f *Feed) Fills() <-chan types.VenueOrderFill { return f.fillCh }

// Subscribe adds instrument venue-symbols to track.
func (f *Feed) Subscribe(ids []string) error {
	f.subscribedMu.Lock()
	for _, id := range ids {
		f.subscribed[id] = true
	}
	f.subscribedMu.Unlock()
	return f.writeJSON(map[string]any{"operation": "subscribe", "instruments": ids})
}

// Run connects and maintains the connection with exponential-backoff
// reconnect. Blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := f.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.Warn("venue feed disconnected, reconnecting", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxReconnectWait {
			backoff = maxReconnectWait
		}
	}
}

func (f *Feed) connectAndRead(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()
	defer func() {
		f.connMu.Lock()
		conn.Close()
		f.conn = nil
		f.connMu.Unlock()
	}()

	if err := f.resubscribe(); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	f.logger.Info("venue feed connected")

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go f.pingLoop(pingCtx)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		f.dispatch(msg)
	}
}

func (f *Feed) resubscribe() error {
	f.subscribedMu.RLock()
	ids := make([]string, 0, len(f.subscribed))
	for id := range f.subscribed {
		ids = append(ids, id)
	}
	f.subscribedMu.RUnlock()
	if len(ids) == 0 {
		return nil
	}
	return f.writeJSON(map[string]any{"operation": "subscribe", "instruments": ids})
}

func (f *Feed) dispatch(data []byte) {
	var envelope struct {
		EventType string `json:"event_type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		f.logger.Debug("ignoring non-json venue feed message")
		return
	}

	switch envelope.EventType {
	case "venue_order_update":
		var w wireUpdate
		if err := json.Unmarshal(data, &w); err != nil {
			f.logger.Error("unmarshal venue_order_update", "error", err)
			return
		}
		upd := types.VenueOrderUpdate{
			ID: w.OrderID, EventTime: time.Now(), Status: types.VenueStatus(w.Status),
			FilledQuantity: w.FilledQuantity, FilledPrice: w.FilledPrice,
			LastFilledQuantity: w.LastFilledQuantity, LastFilledPrice: w.LastFilledPrice,
			Commission: w.Commission,
		}
		select {
		case f.updateCh <- upd:
		default:
			f.logger.Warn("venue_order_update channel full, dropping event", "order_id", w.OrderID)
		}

	case "venue_order_fill":
		var w wireFill
		if err := json.Unmarshal(data, &w); err != nil {
			f.logger.Error("unmarshal venue_order_fill", "error", err)
			return
		}
		fill := types.VenueOrderFill{
			EventTime: time.Now(), VenueOrder: w.OrderID, Side: types.Side(w.Side),
			Price: w.Price, Quantity: w.Quantity, Commission: w.Commission,
		}
		select {
		case f.fillCh <- fill:
		default:
			f.logger.Warn("venue_order_fill channel full, dropping event", "order_id", w.OrderID)
		}

	default:
		f.logger.Debug("ignoring unknown venue feed event", "type", envelope.EventType)
	}
}

func (f *Feed) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.writeMessage(websocket.PingMessage, nil); err != nil {
				f.logger.Warn("ping failed", "error", err)
				return
			}
		}
	}
}

func (f *Feed) writeJSON(v any) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("venue feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteJSON(v)
}

func (f *Feed) writeMessage(msgType int, data []byte) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()
	if f.conn == nil {
		return fmt.Errorf("venue feed not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return f.conn.WriteMessage(msgType, data)
}
