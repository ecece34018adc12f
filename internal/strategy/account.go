package strategy

import "quoter/pkg/types"

// Account folds account/position events into (cash, position) for the
// engine's single instrument. It performs no I/O and holds no
// venue-specific vocabulary beyond the already-normalized AccountUpdate.
type Account struct {
	Symbol   string
	Cash     float64
	Flavor   types.VenueFlavor
	Position types.Position
}

// NewAccount constructs an Account for symbol under the given venue flavor,
// which selects whether Apply reads cross_wallet_balance (linear futures)
// or cash_bal (perpetual swap) off each update.
func NewAccount(symbol string, flavor types.VenueFlavor) *Account {
	return &Account{Symbol: symbol, Flavor: flavor, Position: types.Position{Symbol: symbol}}
}

// Apply folds one AccountUpdate. Fields absent from the update
// (HasEntryPrice/HasQty false) leave position unchanged — applying an
// update with no new information is a no-op.
func (a *Account) Apply(u types.AccountUpdate) {
	switch a.Flavor {
	case types.VenuePerpetualSwap:
		a.Cash = u.CashBal
	default:
		a.Cash = u.CrossWalletBalance
	}
	if u.HasEntryPrice {
		a.Position.EntryPrice = u.EntryPrice
	}
	if u.HasQty {
		a.Position.Qty = u.Qty
	}
}

// ApplyPosition folds a standalone PositionUpdate the same way Apply folds
// the position fields of an AccountUpdate.
func (a *Account) ApplyPosition(p types.PositionUpdate) {
	a.Position.EntryPrice = p.EntryPrice
	a.Position.Qty = p.Qty
}
