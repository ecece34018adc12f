// Package strategy implements the statistical and pricing core of the
// quoting engine: order-flow intensity estimation, volatility estimation,
// the Avellaneda–Stoikov spread calculator, and the account reducer.
package strategy

import (
	"math"

	"quoter/pkg/types"
)

// bucketEvent is one push's contribution to the sliding estimation window,
// kept so it can be subtracted back out when it ages past estimate_window.
type bucketEvent struct {
	tMs      uint64
	bucket   int
	dtMs     float64
	buyInc   float64
	sellInc  float64
}

// Solver fits the exponential arrival model λ(δ) = A·exp(−k·δ) to a set of
// (δ, λ) observations. Pluggable; LogRegression is the only implementation
// provided.
type Solver interface {
	Fit(deltas, lambdas []float64) (a, k float64, ok bool)
}

// LogRegression fits ln λ = ln A − k·δ by ordinary least squares.
type LogRegression struct{}

// Fit returns ok == false when fewer than two usable points are given —
// the caller falls back to the previous estimate.
func (LogRegression) Fit(deltas, lambdas []float64) (a, k float64, ok bool) {
	n := len(deltas)
	if n < 2 {
		return 0, 0, false
	}

	var sumX, sumY, sumXY, sumXX float64
	for i := 0; i < n; i++ {
		x := deltas[i]
		y := math.Log(lambdas[i])
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / nf

	k = -slope
	a = math.Exp(intercept)
	if !isFinitePositive(a) || !isFinitePositive(k) {
		return 0, 0, false
	}
	return a, k, true
}

func isFinitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// IntensityEstimator maintains per-bucket time-at-spread and fill counters
// within a sliding estimate_window and periodically fits Poisson arrival
// parameters per side.
//
// Bucket crossing is this estimator's fills-at-or-better proxy: a rise in
// best bid is attributed to buy-side aggression, a fall in best ask to
// sell-side aggression, each weighted by the number of tick levels crossed
// and booked against the bucket the spread occupied just before the move.
type IntensityEstimator struct {
	tickSize         float64
	nSpreads         int
	estimateWindowMs uint64
	periodMs         uint64
	solver           Solver

	events []bucketEvent

	timeAtSpread []float64
	buyCount     []float64
	sellCount    []float64

	hasPrev bool
	prevBid float64
	prevAsk float64
	prevTMs uint64

	tLastEstimate uint64
	haveEstimate  bool
	last          types.IntensityInfo
}

// NewIntensityEstimator constructs an estimator configured from
// strategy config fields n_spreads, tick_size, estimate_window_ms, period_ms.
func NewIntensityEstimator(tickSize float64, nSpreads int, estimateWindowMs, periodMs uint64) *IntensityEstimator {
	return &IntensityEstimator{
		tickSize:         tickSize,
		nSpreads:         nSpreads,
		estimateWindowMs: estimateWindowMs,
		periodMs:         periodMs,
		solver:           LogRegression{},
		timeAtSpread:     make([]float64, nSpreads),
		buyCount:         make([]float64, nSpreads),
		sellCount:        make([]float64, nSpreads),
		last:             types.IntensityInfo{BuyA: 1, BuyK: 1, SellA: 1, SellK: 1},
	}
}

func (ie *IntensityEstimator) bucketOf(spread float64) int {
	b := int(math.Round(spread / ie.tickSize))
	if b < 0 {
		b = 0
	}
	if b > ie.nSpreads-1 {
		b = ie.nSpreads - 1
	}
	return b
}

// OnTick attributes the time elapsed since the previous tick to the spread
// bucket in effect over that interval, books any bid/ask crossing as fill
// events, evicts events older than estimate_window_ms, and reports whether
// a fresh estimate is due: the window must be fully populated (the oldest
// retained event's timestamp reaches back at least estimate_window_ms) and
// at least period_ms must have elapsed since the last estimate.
func (ie *IntensityEstimator) OnTick(bid, ask float64, tMs uint64) bool {
	var dt float64
	var buyInc, sellInc float64
	if ie.hasPrev {
		if tMs > ie.prevTMs {
			dt = float64(tMs - ie.prevTMs)
		}
		prevBucket := ie.bucketOf(ie.prevAsk - ie.prevBid)

		if bid > ie.prevBid {
			levels := math.Round((bid - ie.prevBid) / ie.tickSize)
			if levels > 0 {
				buyInc = levels
				ie.buyCount[prevBucket] += levels
			}
		}
		if ask < ie.prevAsk {
			levels := math.Round((ie.prevAsk - ask) / ie.tickSize)
			if levels > 0 {
				sellInc = levels
				ie.sellCount[prevBucket] += levels
			}
		}
		ie.timeAtSpread[prevBucket] += dt
		ie.events = append(ie.events, bucketEvent{
			tMs: ie.prevTMs, bucket: prevBucket, dtMs: dt, buyInc: buyInc, sellInc: sellInc,
		})
	}

	ie.hasPrev = true
	ie.prevBid, ie.prevAsk, ie.prevTMs = bid, ask, tMs

	ie.evict(tMs)

	if !ie.windowFull(tMs) {
		return false
	}
	if ie.haveEstimate && tMs-ie.tLastEstimate < ie.periodMs {
		return false
	}
	return true
}

func (ie *IntensityEstimator) windowFull(tMs uint64) bool {
	if len(ie.events) == 0 {
		return false
	}
	oldest := ie.events[0].tMs
	if tMs < oldest {
		return false
	}
	return tMs-oldest >= ie.estimateWindowMs
}

// evict drops events whose whole interval (start tMs through tMs+dtMs)
// lies more than estimate_window_ms in the past, subtracting their
// contribution from the running bucket totals. The event straddling the
// window's start is kept, so once the estimator has seen a full window the
// oldest retained event reaches back at least estimate_window_ms.
func (ie *IntensityEstimator) evict(tMs uint64) {
	i := 0
	for i < len(ie.events) {
		ev := ie.events[i]
		end := ev.tMs + uint64(ev.dtMs)
		if tMs >= ev.tMs && (end >= tMs || tMs-end < ie.estimateWindowMs) {
			break
		}
		ie.timeAtSpread[ev.bucket] -= ev.dtMs
		ie.buyCount[ev.bucket] -= ev.buyInc
		ie.sellCount[ev.bucket] -= ev.sellInc
		if ie.timeAtSpread[ev.bucket] < 0 {
			ie.timeAtSpread[ev.bucket] = 0
		}
		if ie.buyCount[ev.bucket] < 0 {
			ie.buyCount[ev.bucket] = 0
		}
		if ie.sellCount[ev.bucket] < 0 {
			ie.sellCount[ev.bucket] = 0
		}
		i++
	}
	ie.events = ie.events[i:]
}

// Estimate fits per-side (A, k) from the current bucket state. A returned
// value is only accepted if all four fields are finite and strictly
// positive; otherwise the previous estimate is kept.
func (ie *IntensityEstimator) Estimate(tMs uint64) types.IntensityInfo {
	ie.tLastEstimate = tMs

	buyDeltas, buyLambdas := ie.sideSeries(ie.buyCount)
	sellDeltas, sellLambdas := ie.sideSeries(ie.sellCount)

	buyA, buyK, buyOK := ie.solver.Fit(buyDeltas, buyLambdas)
	sellA, sellK, sellOK := ie.solver.Fit(sellDeltas, sellLambdas)

	next := ie.last
	if buyOK {
		next.BuyA, next.BuyK = buyA, buyK
	}
	if sellOK {
		next.SellA, next.SellK = sellA, sellK
	}

	ie.last = next
	ie.haveEstimate = true
	return next
}

func (ie *IntensityEstimator) sideSeries(count []float64) (deltas, lambdas []float64) {
	for i := 0; i < ie.nSpreads; i++ {
		timeSec := ie.timeAtSpread[i] / 1000.0
		if timeSec <= 0 {
			continue
		}
		lambda := count[i] / timeSec
		if lambda <= 0 {
			continue
		}
		deltas = append(deltas, float64(i)*ie.tickSize)
		lambdas = append(lambdas, lambda)
	}
	return deltas, lambdas
}
