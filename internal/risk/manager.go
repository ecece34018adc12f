// Package risk implements the quoting engine's risk state machine: normal
// quoting, trailing-stop arm/trigger, stop-loss cool-down sleep, and
// stop-profit flush. Evaluate runs synchronously on the dispatcher's event
// thread, as a single inline call, so a stop-loss trigger can never
// interleave with a concurrent quote refresh.
package risk

import (
	"log/slog"

	"quoter/pkg/types"
)

// Mode is the coarse risk state. TrailingArmed and InStoplossSleep are
// mutually exclusive: a stop-loss can fire from either Normal or
// TrailingArmed and always lands in InStoplossSleep.
type Mode int

const (
	Normal Mode = iota
	InStoplossSleep
	TrailingArmed
)

// ActionKind is what the engine must do as a result of this tick's
// evaluation.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionArmTrailing
	ActionFlattenTrailing // trailing triggered: flatten, back to Normal
	ActionStoploss        // cancel all + flatten; enter sleep
	ActionStopprofit      // cancel all + flatten; stay Normal
	ActionRefreshQuotes   // delegate to the quoting scheduler
)

// Action is the outcome of one Evaluate call. CloseSide is only meaningful
// for the flatten/stoploss/stopprofit kinds.
type Action struct {
	Kind      ActionKind
	CloseSide types.Side
}

// Config holds the thresholds from config.RiskConfig plus the strategy
// refresh period, expressed in the state machine's native units (seconds).
type Config struct {
	StoplossPct     float64
	StoplossSleepS  uint64
	StopprofitPct   float64
	TrailingStopPct float64
	PeriodS         float64
}

// Manager holds the risk state machine's mutable state: mode, sleep
// deadline, and the last refresh timer. It is owned exclusively by the
// dispatcher goroutine — no locking, by the same single-writer rule as the
// rest of engine state.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mode        Mode
	sleepUntilS uint64
	timerS      uint64
}

// NewManager constructs a risk state machine starting in Normal with
// timerS initialized to startS.
func NewManager(cfg Config, startS uint64, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "risk"),
		mode:   Normal,
		timerS: startS,
	}
}

// Mode reports the current risk mode, for logging/inspection.
func (m *Manager) Mode() Mode { return m.mode }

// UpdateConfig applies a live configuration reload. Mode/timer/sleep
// deadline are left untouched — only thresholds change.
func (m *Manager) UpdateConfig(cfg Config) {
	m.cfg = cfg
}

// Evaluate runs the risk transition table for one tick. nowS is
// t_ms/1000; lastBid/lastAsk are the most recent top-of-book quotes used
// for the unrealized-PnL calculation.
func (m *Manager) Evaluate(nowS uint64, pos types.Position, lastBid, lastAsk float64) Action {
	if m.mode == InStoplossSleep {
		if nowS >= m.sleepUntilS {
			m.logger.Info("stoploss sleep expired, resuming normal quoting", "now_s", nowS)
			m.mode = Normal
		} else {
			// No placements, no cancellations while sleeping.
			return Action{Kind: ActionNone}
		}
	}

	upnl := unrealizedPnL(pos, lastBid, lastAsk)

	if m.mode == Normal && upnl > m.cfg.TrailingStopPct && nowS-m.timerS >= 10 {
		m.logger.Info("arming trailing stop", "upnl", upnl, "now_s", nowS)
		m.mode = TrailingArmed
		return Action{Kind: ActionArmTrailing}
	}

	// Stop-loss dominates trailing: checked first so a loss breaching
	// -stoploss always wins over a trailing-stop trigger, even while
	// TrailingArmed.
	if (m.mode == Normal || m.mode == TrailingArmed) && upnl < -m.cfg.StoplossPct {
		m.logger.Warn("stop-loss triggered", "upnl", upnl, "now_s", nowS)
		m.mode = InStoplossSleep
		m.sleepUntilS = nowS + m.cfg.StoplossSleepS
		m.timerS = nowS
		return Action{Kind: ActionStoploss, CloseSide: closeSide(pos)}
	}

	if m.mode == TrailingArmed && upnl < m.cfg.TrailingStopPct {
		m.logger.Info("trailing stop triggered, flattening", "upnl", upnl, "now_s", nowS)
		m.mode = Normal
		m.timerS = nowS
		return Action{Kind: ActionFlattenTrailing, CloseSide: closeSide(pos)}
	}

	if m.mode == Normal && upnl > m.cfg.StopprofitPct && float64(nowS-m.timerS) >= m.cfg.PeriodS {
		m.logger.Info("stop-profit triggered", "upnl", upnl, "now_s", nowS)
		m.timerS = nowS
		return Action{Kind: ActionStopprofit, CloseSide: closeSide(pos)}
	}

	if float64(nowS-m.timerS) >= m.cfg.PeriodS {
		m.timerS = nowS
		return Action{Kind: ActionRefreshQuotes}
	}

	return Action{Kind: ActionNone}
}

// unrealizedPnL computes sign-symmetric upnl around zero inventory.
// Written literally against qty per side, rather than canceling qty
// algebraically, to match the closed-form definition exactly.
func unrealizedPnL(pos types.Position, lastBid, lastAsk float64) float64 {
	switch {
	case pos.Qty > 0:
		return (lastBid*pos.Qty)/(pos.EntryPrice*pos.Qty) - 1
	case pos.Qty < 0:
		return -((lastAsk*pos.Qty)/(pos.EntryPrice*pos.Qty) - 1)
	default:
		return 0
	}
}

// closeSide returns the side that flattens pos: selling closes a long,
// buying closes a short.
func closeSide(pos types.Position) types.Side {
	if pos.Qty > 0 {
		return types.SELL
	}
	return types.BUY
}
