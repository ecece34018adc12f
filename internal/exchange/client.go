// Package exchange implements the venue REST and WebSocket adapters the
// quoting engine depends on.
//
// The REST client (Client) talks to the venue's trading API:
//   - LimitBuy / LimitSell:    place a single GTC limit order
//   - ClosePosition:           market-flatten a side
//   - CancelAllOpenOrders:     batch-cancel a set of client-order-ids
//   - GetAccount:              cold-start account/position snapshot
//
// Every request is rate-limited via per-category TokenBuckets, automatically
// retried on 5xx errors, and authenticated with HMAC headers.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"quoter/internal/config"
	"quoter/pkg/types"
)

// Client is the venue REST API client. It wraps a resty HTTP client with
// rate limiting, retry, and HMAC request signing.
type Client struct {
	http   *resty.Client
	auth   *Auth
	rl     *RateLimiter
	flavor types.VenueFlavor
	logger *slog.Logger
}

// NewClient creates a REST client with rate limiting and retry. rateLimits
// should come from the venue's published per-category REST limits.
func NewClient(baseURL string, auth *Auth, flavor types.VenueFlavor, rateLimits config.RateLimitConfig, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http:   httpClient,
		auth:   auth,
		rl:     NewRateLimiter(rateLimits),
		flavor: flavor,
		logger: logger.With("component", "exchange"),
	}
}

type orderRequest struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	ClientOrderID string `json:"client_order_id"`
	PositionSide  string `json:"position_side"`
}

// newOrderRequest quantizes price/quantity through shopspring/decimal
// before marshaling, rather than formatting floats directly, to avoid
// binary float noise in the wire price (e.g. 100.09999999999999).
func newOrderRequest(order types.UserOrder) orderRequest {
	return orderRequest{
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Type:          string(order.OrderType),
		Price:         decimal.NewFromFloat(order.Price).String(),
		Quantity:      decimal.NewFromFloat(order.Size).String(),
		ClientOrderID: order.ClientOrderID,
		PositionSide:  string(order.PositionSide),
	}
}

func (c *Client) placeOrder(ctx context.Context, order types.UserOrder) (types.OrderResult, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.OrderResult{}, err
	}

	body, err := json.Marshal(newOrderRequest(order))
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("marshal order: %w", err)
	}
	headers, err := c.auth.Headers(http.MethodPost, "/orders", string(body))
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("auth headers: %w", err)
	}

	var result types.OrderResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("place order: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		result.Success = false
		result.Code = resp.StatusCode()
		result.ErrorMsg = resp.String()
		return result, nil
	}
	result.Success = true
	return result, nil
}

// LimitBuy places a single GTC limit buy.
func (c *Client) LimitBuy(ctx context.Context, order types.UserOrder) (types.OrderResult, error) {
	order.Side = types.BUY
	return c.placeOrder(ctx, order)
}

// LimitSell places a single GTC limit sell.
func (c *Client) LimitSell(ctx context.Context, order types.UserOrder) (types.OrderResult, error) {
	order.Side = types.SELL
	return c.placeOrder(ctx, order)
}

// ClosePosition market-flattens side for symbol.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side types.Side) (types.OrderResult, error) {
	if err := c.rl.Order.Wait(ctx); err != nil {
		return types.OrderResult{}, err
	}

	body, err := json.Marshal(struct {
		Symbol string `json:"symbol"`
		Side   string `json:"side"`
	}{Symbol: symbol, Side: string(side)})
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("marshal close request: %w", err)
	}
	headers, err := c.auth.Headers(http.MethodPost, "/close-position", string(body))
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("auth headers: %w", err)
	}

	var result types.OrderResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Post("/close-position")
	if err != nil {
		return types.OrderResult{}, fmt.Errorf("close position: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		result.Success = false
		result.Code = resp.StatusCode()
		result.ErrorMsg = resp.String()
		return result, nil
	}
	result.Success = true
	c.logger.Warn("position closed at market", "symbol", symbol, "side", side)
	return result, nil
}

// CancelAllOpenOrders batch-cancels the given client-order-ids.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string, clientOrderIDs []string) (types.CancelResult, error) {
	if len(clientOrderIDs) == 0 {
		return types.CancelResult{}, nil
	}
	if err := c.rl.Cancel.Wait(ctx); err != nil {
		return types.CancelResult{}, err
	}

	body, err := json.Marshal(struct {
		Symbol         string   `json:"symbol"`
		ClientOrderIDs []string `json:"client_order_ids"`
	}{Symbol: symbol, ClientOrderIDs: clientOrderIDs})
	if err != nil {
		return types.CancelResult{}, fmt.Errorf("marshal cancel request: %w", err)
	}
	headers, err := c.auth.Headers(http.MethodDelete, "/orders", string(body))
	if err != nil {
		return types.CancelResult{}, fmt.Errorf("auth headers: %w", err)
	}

	var result types.CancelResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetBody(json.RawMessage(body)).
		SetResult(&result).
		Delete("/orders")
	if err != nil {
		return types.CancelResult{}, fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		result.Code = resp.StatusCode()
		return result, fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Info("orders cancelled", "count", len(result.Canceled))
	return result, nil
}

// GetAccount fetches the account balance/position snapshot used at
// cold-start to seed the Account reducer.
func (c *Client) GetAccount(ctx context.Context, symbol string) (types.AccountUpdate, error) {
	if err := c.rl.Book.Wait(ctx); err != nil {
		return types.AccountUpdate{}, err
	}

	headers, err := c.auth.Headers(http.MethodGet, "/account", "")
	if err != nil {
		return types.AccountUpdate{}, fmt.Errorf("auth headers: %w", err)
	}

	var result types.AccountUpdate
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetQueryParam("symbol", symbol).
		SetResult(&result).
		Get("/account")
	if err != nil {
		return types.AccountUpdate{}, fmt.Errorf("get account: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return types.AccountUpdate{}, fmt.Errorf("get account: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}
