// Package ingest polls a venue's public market-data REST endpoints and
// republishes quotes and trade prints onto the event bus, persisting each
// one as it goes. Grounded on the teacher's internal/market/scanner.go
// poll-and-publish loop, generalized from market discovery to per-
// instrument tick/trade polling.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/internal/persistence"
	"github.com/arkin-run/arkin/pkg/types"
)

// Config holds the poller's HTTP and cadence settings.
type Config struct {
	BaseURL      string
	PollInterval time.Duration
}

type tickerResponse struct {
	BidPrice float64 `json:"bidPrice"`
	BidQty   float64 `json:"bidQty"`
	AskPrice float64 `json:"askPrice"`
	AskQty   float64 `json:"askQty"`
}

type tradeResponse struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	BuyMaker bool    `json:"isBuyerMaker"`
}

// Poller periodically fetches the top-of-book quote and latest trade for
// a fixed set of instruments, publishing a Tick and AggTrade event per
// instrument per cycle and persisting both through writer.
type Poller struct {
	client      *resty.Client
	cfg         Config
	instruments []*types.Instrument
	bus         *bus.Bus
	writer      *persistence.Writer
	now         func() time.Time
	logger      *slog.Logger
}

// NewPoller builds a market-data poller for the given instruments.
func NewPoller(cfg Config, instruments []*types.Instrument, b *bus.Bus, writer *persistence.Writer, now func() time.Time, logger *slog.Logger) *Poller {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Poller{
		client:      client,
		cfg:         cfg,
		instruments: instruments,
		bus:         b,
		writer:      writer,
		now:         now,
		logger:      logger.With("component", "ingest_poller"),
	}
}

// Name satisfies engine.Service.
func (p *Poller) Name() string { return "ingest_poller" }

// Tasks satisfies engine.Service.
func (p *Poller) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return p.Run(ctx) }}
}

// Run polls every instrument once per interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	p.pollAll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

func (p *Poller) pollAll(ctx context.Context) {
	for _, inst := range p.instruments {
		if err := p.pollTick(ctx, inst); err != nil {
			p.logger.Warn("poll tick failed", "instrument", inst.Symbol, "error", err)
		}
		if err := p.pollTrade(ctx, inst); err != nil {
			p.logger.Warn("poll trade failed", "instrument", inst.Symbol, "error", err)
		}
	}
}

func (p *Poller) pollTick(ctx context.Context, inst *types.Instrument) error {
	var body tickerResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", inst.VenueSymbol).
		SetResult(&body).
		Get("/ticker/bookTicker")
	if err != nil {
		return fmt.Errorf("fetch ticker: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("fetch ticker: status %d", resp.StatusCode())
	}

	tick := types.Tick{
		EventTime:  p.now(),
		Instrument: inst,
		BidPrice:   body.BidPrice,
		BidQty:     body.BidQty,
		AskPrice:   body.AskPrice,
		AskQty:     body.AskQty,
	}
	if err := p.bus.Publish(ctx, types.NewTickEvent(tick)); err != nil {
		p.logger.Error("publish tick", "error", err)
	}
	if err := p.writer.InsertTick(tick); err != nil {
		p.logger.Error("persist tick", "error", err)
	}
	return nil
}

func (p *Poller) pollTrade(ctx context.Context, inst *types.Instrument) error {
	var body tradeResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("symbol", inst.VenueSymbol).
		SetResult(&body).
		Get("/trades/latest")
	if err != nil {
		return fmt.Errorf("fetch trade: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("fetch trade: status %d", resp.StatusCode())
	}

	trade := types.AggTrade{
		EventTime:  p.now(),
		Instrument: inst,
		Price:      body.Price,
		Quantity:   body.Quantity,
		BuyMaker:   body.BuyMaker,
	}
	if err := p.bus.Publish(ctx, types.NewAggTradeEvent(trade)); err != nil {
		p.logger.Error("publish trade", "error", err)
	}
	if err := p.writer.InsertTrade(trade); err != nil {
		p.logger.Error("persist trade", "error", err)
	}
	return nil
}
