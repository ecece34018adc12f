// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — venue event and
// command shapes, order-side/tick-size enums, and the tick/position types
// the strategy layer operates on. It has no dependencies on internal
// packages, so it can be imported by any layer.
package types

import "time"

// ————————————————————————————————————————————————————————————————————————
// Core enums
// ————————————————————————————————————————————————————————————————————————

// Side represents the direction of an order: BUY or SELL.
type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// OrderType enumerates the supported order lifecycles. GTC is the only one
// the quoting scheduler ever emits.
type OrderType string

const (
	OrderTypeGTC OrderType = "GTC"
)

// PositionSide distinguishes the venue's position-side vocabulary.
// Linear-futures venues quote in "Both" (one net position per symbol);
// perpetual-swap venues quote in per-side "Net" buckets.
type PositionSide string

const (
	PositionBoth PositionSide = "BOTH"
	PositionNet  PositionSide = "NET"
)

// VenueFlavor identifies which of the two supported command vocabularies a
// Client speaks. strategy.Account branches on it to pick the balance field,
// the engine to pick the PositionSide, and config.Validate to require a
// passphrase.
type VenueFlavor string

const (
	VenueLinearFutures VenueFlavor = "linear_futures"
	VenuePerpetualSwap VenueFlavor = "perpetual_swap"
)

// ————————————————————————————————————————————————————————————————————————
// Market data
// ————————————————————————————————————————————————————————————————————————

// TopOfBookTick is a single best-bid/best-ask observation from the venue's
// market-data feed. Received monotonically in venue time; late ticks are
// accepted (no reordering buffer) — see market.Window.
type TopOfBookTick struct {
	TMs    uint64  `json:"t_ms"`
	Ask    float64 `json:"ask"`
	AskQty float64 `json:"ask_qty"`
	Bid    float64 `json:"bid"`
	BidQty float64 `json:"bid_qty"`
}

// Sample is a TopOfBookTick plus the quantities derived from it on push
// (wap, imb, spread_rel, tv). All nine fields are kept index-aligned in a
// market.Window.
type Sample struct {
	TMs       uint64
	Ask       float64
	AskQty    float64
	Bid       float64
	BidQty    float64
	Wap       float64
	Imb       float64
	SpreadRel float64
	Tv        float64
}

// ————————————————————————————————————————————————————————————————————————
// Intensity / volatility
// ————————————————————————————————————————————————————————————————————————

// IntensityInfo holds the fitted Poisson arrival parameters for both sides.
// All four fields are strictly positive by construction — see
// strategy.IntensityEstimator.Estimate.
type IntensityInfo struct {
	BuyA  float64
	BuyK  float64
	SellA float64
	SellK float64
}

// VolatilityKind selects which volatility estimator a run uses.
type VolatilityKind string

const (
	VolSpread      VolatilityKind = "spread"
	VolClassical   VolatilityKind = "classical"
	VolParkinson   VolatilityKind = "parkinson"
	VolGarmanKlass VolatilityKind = "garman_klass"
)

// ————————————————————————————————————————————————————————————————————————
// Position / account
// ————————————————————————————————————————————————————————————————————————

// Position represents current holdings in the engine's single instrument.
// Qty is signed: long positive, short negative.
type Position struct {
	Symbol     string  `json:"symbol"`
	Qty        float64 `json:"qty"`
	EntryPrice float64 `json:"entry_price"`
}

// ————————————————————————————————————————————————————————————————————————
// Orders
// ————————————————————————————————————————————————————————————————————————

// UserOrder is the high-level order representation produced by the
// scheduler. The exchange client converts it to a venue-specific wire
// request.
type UserOrder struct {
	Symbol        string
	Price         float64
	Size          float64
	Side          Side
	OrderType     OrderType
	PositionSide  PositionSide
	ClientOrderID string
}

// OrderResult is the outcome of a single order placement.
type OrderResult struct {
	Success  bool
	Code     int
	ErrorMsg string
	OrderID  string
}

// OpenOrder represents a live resting order tracked by the scheduler.
type OpenOrder struct {
	ClientOrderID string
	Side          Side
	Price         float64
	Size          float64
}

// CancelResult is returned by a batch-cancel request.
type CancelResult struct {
	Canceled []string
	Code     int
}

// QuotePair is the desired bid/ask pair the scheduler wants resting for the
// engine's instrument. Nil Bid or Ask means that side should be pulled.
type QuotePair struct {
	Bid         *UserOrder
	Ask         *UserOrder
	GeneratedAt time.Time
}

// ————————————————————————————————————————————————————————————————————————
// Venue events (consumed)
// ————————————————————————————————————————————————————————————————————————

// EventKind tags the unified event stream the dispatcher demultiplexes.
type EventKind string

const (
	EventBookTicker    EventKind = "book_ticker"
	EventOrderBook     EventKind = "order_book"
	EventAccountUpdate EventKind = "account_update"
	EventPosition      EventKind = "position"
	EventOrder         EventKind = "order"
	EventConfigUpdate  EventKind = "config_update"
	EventOther         EventKind = "other"
)

// Event is the single envelope carried on the dispatcher's bounded channel.
// Exactly one of the typed payload fields is populated, matching Kind.
type Event struct {
	Kind     EventKind
	TMs      uint64
	Book     *TopOfBookTick
	Account  *AccountUpdate
	Position *PositionUpdate
	Order    *OrderUpdate
	Config   *ConfigUpdate
	RawTag   string // set when Kind == EventOther, for logging
}

// AccountUpdate is a balance + (optional) position snapshot for the engine's
// symbol, folded by strategy.Account.
type AccountUpdate struct {
	TMs                uint64
	CrossWalletBalance float64 // linear-futures flavor: quote-asset balance
	CashBal            float64 // perpetual-swap flavor: base-currency cash balance
	HasEntryPrice      bool
	EntryPrice         float64
	HasQty             bool
	Qty                float64
}

// PositionUpdate mirrors a venue position snapshot event; folded the same
// way as the position fields of AccountUpdate.
type PositionUpdate struct {
	TMs        uint64
	Qty        float64
	EntryPrice float64
}

// OrderUpdate is an order lifecycle notification (placement, fill,
// cancellation) from the venue's private feed.
type OrderUpdate struct {
	TMs           uint64
	ClientOrderID string
	Status        string // "NEW", "FILLED", "PARTIALLY_FILLED", "CANCELED"
	Side          Side
	Price         float64
	FilledQty     float64
}

// ConfigUpdate carries a live configuration reload (e.g. an operator-pushed
// risk-limit change), handled by Engine.onConfigUpdate.
type ConfigUpdate struct {
	RawJSON []byte
}
