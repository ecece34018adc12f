// Package market implements the rolling market window: a fixed-capacity
// sliding buffer of top-of-book ticks and the quantities derived from them.
//
// Window is the venue-agnostic memory of "what the book has looked like
// recently" that the volatility estimators read from; the engine also takes
// each pushed sample's wap as the quoting reference. It never touches venue
// I/O.
package market

import (
	"sync"

	"quoter/pkg/types"
)

// Window holds up to sigma_tick_period samples in one slice, oldest first;
// each sample carries the tick fields and the quantities derived from them,
// so all of them stay index-aligned. On overflow the oldest sample is
// evicted before the new one is appended.
type Window struct {
	mu       sync.RWMutex
	capacity int
	samples  []types.Sample
}

// NewWindow creates a market window with the given capacity
// (config.StrategyConfig.SigmaTickPeriod).
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		capacity: capacity,
		samples:  make([]types.Sample, 0, capacity),
	}
}

// Push derives wap/imb/spread_rel/tv from tick and appends the resulting
// sample, evicting the oldest sample if the window is at capacity.
//
// Returns (sample, false) and makes no state change when bid_qty+ask_qty==0
// — the tick is rejected, not pushed. Ticks with ask <= bid are accepted
// — crossed books happen and must not halt the engine; spread_rel may be
// negative.
func (w *Window) Push(tick types.TopOfBookTick) (types.Sample, bool) {
	denom := tick.BidQty + tick.AskQty
	if denom == 0 {
		return types.Sample{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wap := (tick.Bid*tick.AskQty + tick.Ask*tick.BidQty) / denom
	imb := tick.BidQty / denom
	spreadRel := (tick.Ask - tick.Bid) / wap

	// tv uses wap[0] (oldest in the current window before this push), not
	// the previous sample — unusual, preserved verbatim; see DESIGN.md.
	// The first sample pushed into an empty window has tv == 0.
	var tv float64
	if len(w.samples) > 0 {
		tv = absF(wap/w.samples[0].Wap-1) + spreadRel/wap
	}

	sample := types.Sample{
		TMs:       tick.TMs,
		Ask:       tick.Ask,
		AskQty:    tick.AskQty,
		Bid:       tick.Bid,
		BidQty:    tick.BidQty,
		Wap:       wap,
		Imb:       imb,
		SpreadRel: spreadRel,
		Tv:        tv,
	}

	if len(w.samples) >= w.capacity {
		w.samples = append(w.samples[1:], sample)
	} else {
		w.samples = append(w.samples, sample)
	}

	return sample, true
}

// Len returns the current number of samples held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

// Samples returns a copy of the current window contents, oldest first.
func (w *Window) Samples() []types.Sample {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]types.Sample, len(w.samples))
	copy(out, w.samples)
	return out
}

// Last returns the most recently pushed sample. ok is false on an empty
// window — every rolling-statistic read requires at least one sample.
func (w *Window) Last() (types.Sample, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.samples) == 0 {
		return types.Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
