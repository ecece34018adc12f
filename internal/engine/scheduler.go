package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"quoter/internal/strategy"
	"quoter/pkg/types"
)

// OrderClient is the subset of exchange.Client the scheduler depends on.
// Defined here so tests can substitute a fake without hitting the network.
type OrderClient interface {
	LimitBuy(ctx context.Context, order types.UserOrder) (types.OrderResult, error)
	LimitSell(ctx context.Context, order types.UserOrder) (types.OrderResult, error)
	CancelAllOpenOrders(ctx context.Context, symbol string, clientOrderIDs []string) (types.CancelResult, error)
}

// Scheduler drives periodic quote refresh: cancel outstanding orders, then
// place new paired limit orders at (wap ± offset), rounded to tick.
//
// Ordering guarantee: the cancel batch is submitted before any placement;
// placements may run concurrently with each other but never before the
// cancel request has been issued. Cancellation runs inline on the caller's
// goroutine rather than as a detached background task, so this ordering
// always holds.
type Scheduler struct {
	client       OrderClient
	symbol       string
	orderQty     float64
	positionSide types.PositionSide
	logger       *slog.Logger

	openOrders map[string]types.OpenOrder
}

// NewScheduler constructs a scheduler for the engine's single instrument.
func NewScheduler(client OrderClient, symbol string, orderQty float64, positionSide types.PositionSide, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		client:       client,
		symbol:       symbol,
		orderQty:     orderQty,
		positionSide: positionSide,
		logger:       logger.With("component", "scheduler"),
		openOrders:   make(map[string]types.OpenOrder),
	}
}

// OpenOrderIDs returns the currently tracked client-order-ids, for
// inspection/testing.
func (s *Scheduler) OpenOrderIDs() []string {
	ids := make([]string, 0, len(s.openOrders))
	for id := range s.openOrders {
		ids = append(ids, id)
	}
	return ids
}

// Refresh cancels all tracked orders then places a fresh bid/ask pair at
// buyPx/sellPx. Drops the whole refresh without touching open_order_ids
// when the quote pair is crossed or non-positive.
func (s *Scheduler) Refresh(ctx context.Context, sc strategy.SpreadCalculator, wap float64, off strategy.Offsets) {
	buyPx, sellPx := sc.QuotedPrices(wap, off)

	if buyPx <= 0 || sellPx <= 0 || buyPx >= sellPx {
		s.logger.Warn("dropping refresh: crossed or non-positive quote",
			"buy_px", buyPx, "sell_px", sellPx)
		return
	}

	s.cancelAll(ctx)

	buyID := uuid.New().String()
	buyOrder := types.UserOrder{
		Symbol: s.symbol, Price: buyPx, Size: s.orderQty, Side: types.BUY,
		OrderType: types.OrderTypeGTC, PositionSide: s.positionSide, ClientOrderID: buyID,
	}
	sellID := uuid.New().String()
	sellOrder := types.UserOrder{
		Symbol: s.symbol, Price: sellPx, Size: s.orderQty, Side: types.SELL,
		OrderType: types.OrderTypeGTC, PositionSide: s.positionSide, ClientOrderID: sellID,
	}

	s.place(ctx, buyOrder)
	s.place(ctx, sellOrder)
}

func (s *Scheduler) cancelAll(ctx context.Context) {
	if len(s.openOrders) == 0 {
		return
	}
	ids := s.OpenOrderIDs()

	result, err := s.client.CancelAllOpenOrders(ctx, s.symbol, ids)
	if err != nil {
		s.logger.Error("cancel-all failed, leaving open_order_ids intact", "error", err)
		return
	}
	for _, id := range result.Canceled {
		delete(s.openOrders, id)
	}
}

// place issues a single limit order and only adds it to the open set on
// explicit success — a venue error or non-zero status code must not mutate
// open_order_ids.
func (s *Scheduler) place(ctx context.Context, order types.UserOrder) {
	var result types.OrderResult
	var err error
	switch order.Side {
	case types.BUY:
		result, err = s.client.LimitBuy(ctx, order)
	case types.SELL:
		result, err = s.client.LimitSell(ctx, order)
	}

	if err != nil {
		s.logger.Error("place order failed", "side", order.Side, "error", err)
		return
	}
	if !result.Success {
		s.logger.Error("place order rejected", "side", order.Side, "code", result.Code, "msg", result.ErrorMsg)
		return
	}

	s.openOrders[order.ClientOrderID] = types.OpenOrder{
		ClientOrderID: order.ClientOrderID, Side: order.Side, Price: order.Price, Size: order.Size,
	}
}

// OnOrderUpdate reconciles a venue order lifecycle notification against the
// tracked open set: a terminal status (filled or canceled) drops the id.
func (s *Scheduler) OnOrderUpdate(u types.OrderUpdate) {
	switch u.Status {
	case "FILLED", "CANCELED":
		delete(s.openOrders, u.ClientOrderID)
	}
}

// CancelAll cancels every tracked order. Used both as the risk state
// machine's stoploss/stopprofit action and as the safety-net cancel on
// engine teardown.
func (s *Scheduler) CancelAll(ctx context.Context) {
	s.cancelAll(ctx)
}
