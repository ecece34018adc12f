package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"quoter/internal/strategy"
	"quoter/pkg/types"
)

type fakeClient struct {
	placeCalls      []types.UserOrder
	cancelCalls     [][]string
	rejectSell      bool
	cancelErr       error
	cancelResult    types.CancelResult
	cancelBeforeLen int // records len(placeCalls) at time of first cancel
}

func (f *fakeClient) LimitBuy(_ context.Context, order types.UserOrder) (types.OrderResult, error) {
	f.placeCalls = append(f.placeCalls, order)
	return types.OrderResult{Success: true, OrderID: "buy-1"}, nil
}

func (f *fakeClient) LimitSell(_ context.Context, order types.UserOrder) (types.OrderResult, error) {
	f.placeCalls = append(f.placeCalls, order)
	if f.rejectSell {
		return types.OrderResult{Success: false, Code: 400, ErrorMsg: "rejected"}, nil
	}
	return types.OrderResult{Success: true, OrderID: "sell-1"}, nil
}

func (f *fakeClient) CancelAllOpenOrders(_ context.Context, _ string, ids []string) (types.CancelResult, error) {
	f.cancelCalls = append(f.cancelCalls, ids)
	f.cancelBeforeLen = len(f.placeCalls)
	if f.cancelErr != nil {
		return types.CancelResult{}, f.cancelErr
	}
	if f.cancelResult.Canceled == nil {
		return types.CancelResult{Canceled: ids}, nil
	}
	return f.cancelResult, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func flatInfo() types.IntensityInfo {
	return types.IntensityInfo{BuyA: 5, BuyK: 2, SellA: 5, SellK: 2}
}

func TestRefreshPlacesBothSidesOnCleanRun(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s := NewScheduler(client, "BTCUSDT", 1, types.PositionBoth, testLogger())
	sc := strategy.SpreadCalculator{Gamma: 0.1, SigmaMultiplier: 1, TickRound: 1}
	off := sc.Compute(0.01, 0, flatInfo())

	s.Refresh(context.Background(), sc, 100, off)

	if len(client.placeCalls) != 2 {
		t.Fatalf("placeCalls = %d, want 2", len(client.placeCalls))
	}
	if len(s.OpenOrderIDs()) != 2 {
		t.Fatalf("OpenOrderIDs() = %v, want 2 entries", s.OpenOrderIDs())
	}
}

func TestRefreshCancelsBeforePlacing(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s := NewScheduler(client, "BTCUSDT", 1, types.PositionBoth, testLogger())
	s.openOrders["stale-1"] = types.OpenOrder{ClientOrderID: "stale-1"}
	sc := strategy.SpreadCalculator{Gamma: 0.1, SigmaMultiplier: 1, TickRound: 1}
	off := sc.Compute(0.01, 0, flatInfo())

	s.Refresh(context.Background(), sc, 100, off)

	if len(client.cancelCalls) != 1 {
		t.Fatalf("cancelCalls = %d, want 1", len(client.cancelCalls))
	}
	if client.cancelBeforeLen != 0 {
		t.Fatalf("cancel issued after %d placements, want 0 (cancel-then-place ordering)", client.cancelBeforeLen)
	}
}

func TestRejectedPlacementNotAddedToOpenSet(t *testing.T) {
	t.Parallel()
	client := &fakeClient{rejectSell: true}
	s := NewScheduler(client, "BTCUSDT", 1, types.PositionBoth, testLogger())
	sc := strategy.SpreadCalculator{Gamma: 0.1, SigmaMultiplier: 1, TickRound: 1}
	off := sc.Compute(0.01, 0, flatInfo())

	s.Refresh(context.Background(), sc, 100, off)

	ids := s.OpenOrderIDs()
	if len(ids) != 1 {
		t.Fatalf("OpenOrderIDs() = %v, want exactly 1 (buy only, sell rejected)", ids)
	}
}

func TestRefreshDropsCrossedQuote(t *testing.T) {
	t.Parallel()
	client := &fakeClient{}
	s := NewScheduler(client, "BTCUSDT", 1, types.PositionBoth, testLogger())
	sc := strategy.SpreadCalculator{Gamma: 0.1, SigmaMultiplier: 1, TickRound: 1}

	// Force a crossed pair: negative offsets make bid > ask.
	off := strategy.Offsets{BidOff: -5, AskOff: -5}
	s.Refresh(context.Background(), sc, 100, off)

	if len(client.placeCalls) != 0 || len(client.cancelCalls) != 0 {
		t.Fatalf("expected the whole refresh to be dropped on a crossed quote, got placeCalls=%d cancelCalls=%d",
			len(client.placeCalls), len(client.cancelCalls))
	}
}

func TestCancelFailureLeavesOpenOrderIDsIntact(t *testing.T) {
	t.Parallel()
	client := &fakeClient{cancelErr: context.DeadlineExceeded}
	s := NewScheduler(client, "BTCUSDT", 1, types.PositionBoth, testLogger())
	s.openOrders["stale-1"] = types.OpenOrder{ClientOrderID: "stale-1"}
	sc := strategy.SpreadCalculator{Gamma: 0.1, SigmaMultiplier: 1, TickRound: 1}
	off := sc.Compute(0.01, 0, flatInfo())

	s.Refresh(context.Background(), sc, 100, off)

	if _, ok := s.openOrders["stale-1"]; !ok {
		t.Error("expected stale-1 to remain tracked after a failed cancel")
	}
}

func TestOnOrderUpdateDropsTerminalStatuses(t *testing.T) {
	t.Parallel()
	s := NewScheduler(&fakeClient{}, "BTCUSDT", 1, types.PositionBoth, testLogger())
	s.openOrders["o1"] = types.OpenOrder{ClientOrderID: "o1"}

	s.OnOrderUpdate(types.OrderUpdate{ClientOrderID: "o1", Status: "FILLED"})
	if _, ok := s.openOrders["o1"]; ok {
		t.Error("expected FILLED order to be dropped from open set")
	}

	s.openOrders["o2"] = types.OpenOrder{ClientOrderID: "o2"}
	s.OnOrderUpdate(types.OrderUpdate{ClientOrderID: "o2", Status: "CANCELED"})
	if _, ok := s.openOrders["o2"]; ok {
		t.Error("expected CANCELED order to be dropped from open set")
	}
}
