package market

import (
	"testing"

	"quoter/pkg/types"
)

func tick(tMs uint64, bid, ask, bidQty, askQty float64) types.TopOfBookTick {
	return types.TopOfBookTick{TMs: tMs, Bid: bid, Ask: ask, BidQty: bidQty, AskQty: askQty}
}

func TestPushRejectsZeroDenominator(t *testing.T) {
	t.Parallel()
	w := NewWindow(10)

	_, ok := w.Push(tick(0, 100, 100.1, 0, 0))
	if ok {
		t.Fatal("expected tick with bid_qty+ask_qty==0 to be rejected")
	}
	if w.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (no state change on rejection)", w.Len())
	}
}

func TestPushAcceptsCrossedBook(t *testing.T) {
	t.Parallel()
	w := NewWindow(10)

	sample, ok := w.Push(tick(0, 100.2, 100.1, 1, 1))
	if !ok {
		t.Fatal("crossed book must not be rejected")
	}
	if sample.SpreadRel >= 0 {
		t.Fatalf("SpreadRel = %v, want negative for crossed book", sample.SpreadRel)
	}
}

func TestFirstSampleTvIsZero(t *testing.T) {
	t.Parallel()
	w := NewWindow(10)

	sample, ok := w.Push(tick(0, 100, 100.1, 1, 1))
	if !ok {
		t.Fatal("push failed")
	}
	if sample.Tv != 0 {
		t.Fatalf("Tv = %v, want 0 for first sample (tv[0] == 0 invariant)", sample.Tv)
	}
}

func TestWindowEvictsOldestOnOverflow(t *testing.T) {
	t.Parallel()
	w := NewWindow(3)

	for i := uint64(0); i < 5; i++ {
		if _, ok := w.Push(tick(i, 100, 100.1, 1, 1)); !ok {
			t.Fatalf("push %d failed", i)
		}
	}

	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want capacity 3", w.Len())
	}

	samples := w.Samples()
	if samples[0].TMs != 2 {
		t.Fatalf("oldest sample TMs = %d, want 2 (samples 0,1 evicted)", samples[0].TMs)
	}
	if samples[len(samples)-1].TMs != 4 {
		t.Fatalf("newest sample TMs = %d, want 4", samples[len(samples)-1].TMs)
	}
}

func TestWindowDeterministicOnIdenticalTicks(t *testing.T) {
	t.Parallel()
	w1 := NewWindow(10)
	w2 := NewWindow(10)

	ticks := []types.TopOfBookTick{
		tick(0, 100, 100.1, 1, 1),
		tick(100, 99.9, 100.0, 2, 1),
		tick(200, 99.8, 99.9, 1, 3),
	}

	var last1, last2 types.Sample
	for _, tk := range ticks {
		last1, _ = w1.Push(tk)
		last2, _ = w2.Push(tk)
	}

	if last1 != last2 {
		t.Fatalf("identical tick sequences produced different derived stats: %+v vs %+v", last1, last2)
	}
}

func TestWindowAllSequencesEqualLength(t *testing.T) {
	t.Parallel()
	w := NewWindow(5)

	for i := uint64(0); i < 20; i++ {
		w.Push(tick(i, 100, 100.1, 1, 1))
		if got := w.Len(); got > 5 {
			t.Fatalf("Len() = %d exceeds capacity 5", got)
		}
	}
}
