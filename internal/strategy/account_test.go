package strategy

import (
	"testing"

	"quoter/pkg/types"
)

func TestApplyLinearFuturesReadsCrossWalletBalance(t *testing.T) {
	t.Parallel()
	a := NewAccount("BTCUSDT", types.VenueLinearFutures)

	a.Apply(types.AccountUpdate{CrossWalletBalance: 1000, CashBal: 9999, HasQty: true, Qty: 2, HasEntryPrice: true, EntryPrice: 100})

	if a.Cash != 1000 {
		t.Errorf("Cash = %v, want 1000 (cross_wallet_balance)", a.Cash)
	}
	if a.Position.Qty != 2 || a.Position.EntryPrice != 100 {
		t.Errorf("Position = %+v, want qty=2 entry=100", a.Position)
	}
}

func TestApplyPerpetualSwapReadsCashBal(t *testing.T) {
	t.Parallel()
	a := NewAccount("BTC-PERP", types.VenuePerpetualSwap)

	a.Apply(types.AccountUpdate{CrossWalletBalance: 9999, CashBal: 500})

	if a.Cash != 500 {
		t.Errorf("Cash = %v, want 500 (cash_bal)", a.Cash)
	}
}

func TestApplyWithUnchangedFieldsIsNoOp(t *testing.T) {
	t.Parallel()
	a := NewAccount("BTCUSDT", types.VenueLinearFutures)
	a.Apply(types.AccountUpdate{CrossWalletBalance: 1000, HasQty: true, Qty: 5, HasEntryPrice: true, EntryPrice: 100})

	before := a.Position
	a.Apply(types.AccountUpdate{CrossWalletBalance: 1000})

	if a.Position != before {
		t.Errorf("Position changed on update with HasQty/HasEntryPrice false: before=%+v after=%+v", before, a.Position)
	}
}

func TestApplyPositionOverwritesBothFields(t *testing.T) {
	t.Parallel()
	a := NewAccount("BTCUSDT", types.VenueLinearFutures)

	a.ApplyPosition(types.PositionUpdate{Qty: -3, EntryPrice: 200})

	if a.Position.Qty != -3 || a.Position.EntryPrice != 200 {
		t.Errorf("Position = %+v, want qty=-3 entry=200", a.Position)
	}
}
