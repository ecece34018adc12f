// Package engine is the central orchestrator of the quoting bot.
//
// It wires together all subsystems:
//
//  1. Two WebSocket feeds (public top-of-book, private account/position/order)
//     push decoded events into one bounded channel.
//  2. Engine is the single consumer of that channel: it owns the engine
//     state (rolling window, intensity estimator, account, risk state
//     machine, scheduler) and mutates it only from its own goroutine.
//  3. On each book tick the statistics update, the spread calculator
//     recomputes offsets, the risk state machine decides the tick's
//     action, and the scheduler refreshes quotes when told to.
//
// Lifecycle: New() → Start() → [runs until ctx cancelled] → Stop().
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"quoter/internal/config"
	"quoter/internal/exchange"
	"quoter/internal/market"
	"quoter/internal/risk"
	"quoter/internal/strategy"
	"quoter/pkg/types"
)

// shutdownCancelTimeout bounds the safety-net cancel-all issued on Stop.
const shutdownCancelTimeout = 10 * time.Second

// eventChannelCapacity is the dispatcher's bounded channel capacity.
const eventChannelCapacity = 1024

// Engine owns all mutable engine state and is the dispatcher's single
// consumer. No shared ownership: venue client handles are built once in New
// and used read-only after construction; the event channel is
// the only thing producers and the dispatcher share.
type Engine struct {
	cfg    *config.Config
	client *exchange.Client
	logger *slog.Logger

	bookFeed    *exchange.WSFeed
	accountFeed *exchange.WSFeed

	events chan types.Event

	window     *market.Window
	ie         *strategy.IntensityEstimator
	account    *strategy.Account
	riskMgr    *risk.Manager
	scheduler  *Scheduler
	spreadCalc strategy.SpreadCalculator

	haveIntensity bool
	lastIntensity types.IntensityInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires all engine components from cfg.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	auth := exchange.NewAuth(cfg.Venue.APIKey, cfg.Venue.SecretKey, cfg.Venue.Passphrase)
	client := exchange.NewClient(cfg.Venue.RESTBaseURL, auth, cfg.Venue.Flavor, cfg.Venue.RateLimits, logger)

	events := make(chan types.Event, eventChannelCapacity)

	bookFeed := exchange.NewWSFeed(cfg.Venue.WSMarketURL, []string{"top_of_book"}, nil, events, logger)
	accountFeed := exchange.NewWSFeed(cfg.Venue.WSAccountURL, []string{"account", "positions"}, auth, events, logger)

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		cfg:         cfg,
		client:      client,
		logger:      logger.With("component", "engine"),
		bookFeed:    bookFeed,
		accountFeed: accountFeed,
		events:      events,
		window:      market.NewWindow(cfg.Strategy.SigmaTickPeriod),
		ie: strategy.NewIntensityEstimator(
			cfg.Symbol.TickSize, cfg.Strategy.NSpreads, cfg.Strategy.EstimateWindowMs, cfg.Strategy.PeriodMs),
		account: strategy.NewAccount(cfg.Symbol.Symbol, cfg.Venue.Flavor),
		riskMgr: risk.NewManager(riskConfigFrom(cfg), 0, logger),
		scheduler: NewScheduler(
			client, cfg.Symbol.Symbol, cfg.Symbol.OrderQty, positionSideFor(cfg.Venue.Flavor), logger),
		spreadCalc: strategy.SpreadCalculator{
			Gamma: cfg.Strategy.Gamma, SigmaMultiplier: cfg.Strategy.SigmaMultiplier, TickRound: cfg.TickRound(),
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

func riskConfigFrom(cfg *config.Config) risk.Config {
	return risk.Config{
		StoplossPct:     cfg.Risk.Stoploss,
		StoplossSleepS:  cfg.Risk.StoplossSleepMs / 1000,
		StopprofitPct:   cfg.Risk.Stopprofit,
		TrailingStopPct: cfg.Risk.TrailingStop,
		PeriodS:         float64(cfg.Strategy.PeriodMs) / 1000,
	}
}

func positionSideFor(flavor types.VenueFlavor) types.PositionSide {
	if flavor == types.VenuePerpetualSwap {
		return types.PositionNet
	}
	return types.PositionBoth
}

// Start bootstraps the account snapshot, then launches both WS feeds and
// the dispatcher loop on their own goroutines and returns; they run until
// Stop cancels the engine's context.
func (e *Engine) Start() error {
	if acc, err := e.client.GetAccount(e.ctx, e.cfg.Symbol.Symbol); err != nil {
		e.logger.Warn("initial account fetch failed, starting from zero position", "error", err)
	} else {
		e.account.Apply(acc)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.bookFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("book feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.accountFeed.Run(e.ctx); err != nil && e.ctx.Err() == nil {
			e.logger.Error("account feed error", "error", err)
		}
	}()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.dispatch()
	}()

	return nil
}

// Stop cancels the engine's context, closes both feeds, waits for every
// goroutine (including the dispatcher) to exit, and then issues a
// safety-net cancel-all.
func (e *Engine) Stop() {
	e.logger.Info("shutting down...")
	e.cancel()
	e.bookFeed.Close()
	e.accountFeed.Close()
	e.wg.Wait()

	cancelCtx, cancelCancel := context.WithTimeout(context.Background(), shutdownCancelTimeout)
	defer cancelCancel()
	e.scheduler.CancelAll(cancelCtx)

	e.logger.Info("shutdown complete")
}

// dispatch is the single-consumer loop: it reads one event at a time and
// invokes the matching handler. While a handler runs, no other event is
// processed — this is the engine's only mutual-exclusion guarantee.
func (e *Engine) dispatch() {
	for {
		select {
		case <-e.ctx.Done():
			return
		case evt := <-e.events:
			e.handle(evt)
		}
	}
}

func (e *Engine) handle(evt types.Event) {
	switch evt.Kind {
	case types.EventBookTicker:
		e.onBook(*evt.Book)
	case types.EventAccountUpdate:
		e.onAccount(*evt.Account)
	case types.EventPosition:
		e.onPosition(*evt.Position)
	case types.EventOrder:
		e.onOrderUpdate(*evt.Order)
	case types.EventConfigUpdate:
		e.onConfigUpdate(*evt.Config)
	default:
		e.logger.Debug("dropping unrecognized event", "tag", evt.RawTag)
	}
}

// onBook is the per-tick core: update rolling statistics, estimate
// intensity/volatility, compute offsets, evaluate risk, and act.
func (e *Engine) onBook(tick types.TopOfBookTick) {
	sample, ok := e.window.Push(tick)
	if !ok {
		e.logger.Debug("rejecting tick with zero combined depth", "t_ms", tick.TMs)
		return
	}

	if e.ie.OnTick(tick.Bid, tick.Ask, tick.TMs) {
		e.lastIntensity = e.ie.Estimate(tick.TMs)
		e.haveIntensity = true
	}
	if !e.haveIntensity {
		e.logger.Info("waiting for more data")
		return
	}

	sigma := strategy.ComputeVolatility(e.cfg.Strategy.VolKind, e.window.Samples(), e.cfg.Strategy.VolWindowT)
	if math.IsNaN(sigma) || math.IsInf(sigma, 0) {
		e.logger.Info("waiting for more data", "reason", "volatility undefined")
		return
	}

	q := e.account.Position.Qty / e.cfg.Symbol.OrderQty
	off := e.spreadCalc.Compute(sigma, q, e.lastIntensity)

	nowS := tick.TMs / 1000
	action := e.riskMgr.Evaluate(nowS, e.account.Position, tick.Bid, tick.Ask)
	e.act(action, sample.Wap, off)
}

func (e *Engine) act(action risk.Action, wap float64, off strategy.Offsets) {
	switch action.Kind {
	case risk.ActionArmTrailing:
		// state already transitioned inside Evaluate; nothing further this tick.
	case risk.ActionFlattenTrailing:
		e.flatten(action.CloseSide)
	case risk.ActionStoploss, risk.ActionStopprofit:
		e.scheduler.CancelAll(e.ctx)
		e.flatten(action.CloseSide)
	case risk.ActionRefreshQuotes:
		e.scheduler.Refresh(e.ctx, e.spreadCalc, wap, off)
	case risk.ActionNone:
	}
}

func (e *Engine) flatten(side types.Side) {
	if _, err := e.client.ClosePosition(e.ctx, e.cfg.Symbol.Symbol, side); err != nil {
		e.logger.Error("close_position failed", "side", side, "error", err)
	}
}

func (e *Engine) onAccount(u types.AccountUpdate) {
	e.account.Apply(u)
}

func (e *Engine) onPosition(p types.PositionUpdate) {
	e.account.ApplyPosition(p)
}

func (e *Engine) onOrderUpdate(u types.OrderUpdate) {
	e.scheduler.OnOrderUpdate(u)
}

// onConfigUpdate applies a live reload of the tunable numeric thresholds:
// spread risk aversion/sigma multiplier and the risk state machine's
// thresholds. Structural fields (venue, symbol, window capacities) are not
// reloadable — those require a restart.
func (e *Engine) onConfigUpdate(c types.ConfigUpdate) {
	var partial struct {
		Strategy struct {
			Gamma           *float64 `json:"gamma"`
			SigmaMultiplier *float64 `json:"sigma_multiplier"`
		} `json:"strategy"`
		Risk struct {
			Stoploss     *float64 `json:"stoploss"`
			Stopprofit   *float64 `json:"stopprofit"`
			TrailingStop *float64 `json:"trailing_stop"`
		} `json:"risk"`
	}
	if err := json.Unmarshal(c.RawJSON, &partial); err != nil {
		e.logger.Error("decode config_update", "error", err)
		return
	}

	if partial.Strategy.Gamma != nil {
		e.spreadCalc.Gamma = *partial.Strategy.Gamma
	}
	if partial.Strategy.SigmaMultiplier != nil {
		e.spreadCalc.SigmaMultiplier = *partial.Strategy.SigmaMultiplier
	}

	riskCfg := riskConfigFrom(e.cfg)
	if partial.Risk.Stoploss != nil {
		riskCfg.StoplossPct = *partial.Risk.Stoploss
	}
	if partial.Risk.Stopprofit != nil {
		riskCfg.StopprofitPct = *partial.Risk.Stopprofit
	}
	if partial.Risk.TrailingStop != nil {
		riskCfg.TrailingStopPct = *partial.Risk.TrailingStop
	}
	e.riskMgr.UpdateConfig(riskCfg)

	e.logger.Info("applied live config update")
}
