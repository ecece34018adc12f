package exchange

import (
	"testing"

	"quoter/pkg/types"
)

func TestNewOrderRequestQuantizesPrice(t *testing.T) {
	t.Parallel()
	order := types.UserOrder{
		Symbol: "BTCUSDT", Price: 100.1, Size: 1, Side: types.BUY,
		OrderType: types.OrderTypeGTC, PositionSide: types.PositionBoth, ClientOrderID: "abc",
	}

	req := newOrderRequest(order)
	if req.Price != "100.1" {
		t.Errorf("Price = %q, want %q", req.Price, "100.1")
	}
	if req.Quantity != "1" {
		t.Errorf("Quantity = %q, want %q", req.Quantity, "1")
	}
	if req.ClientOrderID != "abc" {
		t.Errorf("ClientOrderID = %q, want %q", req.ClientOrderID, "abc")
	}
}

func TestNewOrderRequestPreservesSideAndSymbol(t *testing.T) {
	t.Parallel()
	order := types.UserOrder{Symbol: "ETHUSDT", Side: types.SELL, OrderType: types.OrderTypeGTC}

	req := newOrderRequest(order)
	if req.Symbol != "ETHUSDT" || req.Side != "SELL" {
		t.Errorf("req = %+v, want symbol=ETHUSDT side=SELL", req)
	}
}
