package venue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arkin-run/arkin/internal/bus"
	"github.com/arkin-run/arkin/internal/engine"
	"github.com/arkin-run/arkin/pkg/types"
)

// Gateway composes signing, rate-limited REST submission/cancellation,
// and a streaming feed of order updates and fills into one adapter
// satisfying the venue side of the engine. It is the single point
// where the rest of the system talks to the outside venue.
type Gateway struct {
	rest *RESTClient
	feed *Feed
	b    *bus.Bus

	logger *slog.Logger
}

// Config bundles the fields needed to construct a Gateway.
type Config struct {
	PrivateKey string
	ChainID    int
	RESTURL    string
	WSURL      string
	RateRPS    float64
	DryRun     bool
}

// NewGateway builds a Gateway from a Config, wiring together a Signer,
// RateLimiter, RESTClient and Feed.
func NewGateway(cfg Config, b *bus.Bus, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var signer *Signer
	if !cfg.DryRun {
		s, err := NewSigner(cfg.PrivateKey, cfg.ChainID)
		if err != nil {
			return nil, fmt.Errorf("init signer: %w", err)
		}
		signer = s
	}

	rl := NewRateLimiter(cfg.RateRPS)
	rest := NewRESTClient(cfg.RESTURL, signer, rl, cfg.DryRun, logger)
	feed := NewFeed(cfg.WSURL, logger)

	return &Gateway{rest: rest, feed: feed, b: b, logger: logger.With("component", "venue_gateway")}, nil
}

// Name satisfies engine.Service.
func (g *Gateway) Name() string { return "venue_gateway" }

// Tasks satisfies engine.Service: the gateway runs one long-lived task,
// its feed-to-bus republishing loop.
func (g *Gateway) Tasks(svcCtx engine.ServiceContext, coreCtx engine.CoreContext) []engine.Task {
	return []engine.Task{func(ctx context.Context) error { return g.Run(ctx) }}
}

// SubmitOrder signs and submits a VenueOrder, returning the
// venue-assigned id for the caller's own bookkeeping (the gateway itself
// publishes nothing and does not mutate order state, only transports it).
func (g *Gateway) SubmitOrder(ctx context.Context, order types.VenueOrder) (string, error) {
	return g.rest.SubmitOrder(ctx, order)
}

// CancelOrder cancels a previously submitted order.
func (g *Gateway) CancelOrder(ctx context.Context, venueOrderID string) error {
	return g.rest.CancelOrder(ctx, venueOrderID)
}

// Subscribe requests order/fill updates for the given venue symbols
// once the feed is connected.
func (g *Gateway) Subscribe(instruments []string) error {
	return g.feed.Subscribe(instruments)
}

// Run connects the feed and republishes decoded updates/fills onto the
// bus as typed events until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- g.feed.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case upd := <-g.feed.Updates():
			if err := g.b.Publish(ctx, types.NewVenueOrderUpdateEvent(upd)); err != nil {
				g.logger.Error("publish venue order update", "error", err)
			}
		case fill := <-g.feed.Fills():
			if err := g.b.Publish(ctx, types.NewVenueOrderFillEvent(fill)); err != nil {
				g.logger.Error("publish venue order fill", "error", err)
			}
		}
	}
}
