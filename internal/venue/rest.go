package venue

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/arkin-run/arkin/pkg/types"
)

// RESTClient submits and cancels VenueOrders over HTTP. Grounded on
// internal/exchange/client.go's resty wrapper (retry on 5xx, per-category
// rate limiting), generalized from Polymarket CLOB-specific payloads to
// the generic VenueOrder model.
type RESTClient struct {
	http   *resty.Client
	signer *Signer
	rl     *RateLimiter
	dryRun bool
	logger *slog.Logger
}

// NewRESTClient creates a rate-limited, retrying REST client.
func NewRESTClient(baseURL string, signer *Signer, rl *RateLimiter, dryRun bool, logger *slog.Logger) *RESTClient {
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &RESTClient{
		http:   httpClient,
		signer: signer,
		rl:     rl,
		dryRun: dryRun,
		logger: logger.With("component", "venue_rest"),
	}
}

// orderPayload is the wire shape submitted to the venue; it carries the
// signature alongside the plain order fields.
type orderPayload struct {
	OrderID     string `json:"order_id"`
	Instrument  string `json:"instrument"`
	Side        string `json:"side"`
	OrderType   string `json:"order_type"`
	TimeInForce string `json:"time_in_force"`
	Price       string `json:"price,omitempty"`
	Quantity    string `json:"quantity"`
	Signer      string `json:"signer"`
	Signature   string `json:"signature"`
}

type submitResponse struct {
	VenueOrderID string `json:"venue_order_id"`
	Status       string `json:"status"`
}

// SubmitOrder signs and POSTs a VenueOrder, returning the venue-assigned
// order id. In dry-run mode, no HTTP call is made and a synthetic id is
// returned.
func (c *RESTClient) SubmitOrder(ctx context.Context, order types.VenueOrder) (string, error) {
	if c.dryRun {
		c.logger.Info("dry-run: would submit order", "order_id", order.ID)
		return "dry-run-" + order.ID.String(), nil
	}
	if err := c.rl.Submit.Wait(ctx); err != nil {
		return "", err
	}

	sig, err := c.signer.SignOrder(order)
	if err != nil {
		return "", fmt.Errorf("sign order: %w", err)
	}

	price := ""
	if order.Price != nil {
		price = order.Price.String()
	}
	payload := orderPayload{
		OrderID:     order.ID.String(),
		Side:        string(order.Side),
		OrderType:   string(order.OrderType),
		TimeInForce: string(order.TimeInForce),
		Price:       price,
		Quantity:    order.Quantity.String(),
		Signer:      c.signer.Address().Hex(),
		Signature:   sig,
	}
	if order.Instrument != nil {
		payload.Instrument = order.Instrument.VenueSymbol
	}

	var result submitResponse
	resp, err := c.http.R().SetContext(ctx).SetBody(payload).SetResult(&result).Post("/orders")
	if err != nil {
		return "", fmt.Errorf("submit order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("submit order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result.VenueOrderID, nil
}

// CancelOrder cancels a previously submitted order by its venue id.
func (c *RESTClient) CancelOrder(ctx context.Context, venueOrderID string) error {
	if c.dryRun {
		c.logger.Info("dry-run: would cancel order", "venue_order_id", venueOrderID)
		return nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().SetContext(ctx).Delete("/orders/" + venueOrderID)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
