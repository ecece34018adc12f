package strategy

import (
	"math"
	"testing"
)

func TestLogRegressionFitsKnownExponential(t *testing.T) {
	t.Parallel()

	const wantA, wantK = 5.0, 2.0
	deltas := []float64{0.0, 0.1, 0.2, 0.3, 0.4}
	lambdas := make([]float64, len(deltas))
	for i, d := range deltas {
		lambdas[i] = wantA * math.Exp(-wantK*d)
	}

	a, k, ok := LogRegression{}.Fit(deltas, lambdas)
	if !ok {
		t.Fatal("expected fit to succeed")
	}
	if math.Abs(a-wantA) > 1e-6 {
		t.Errorf("A = %v, want %v", a, wantA)
	}
	if math.Abs(k-wantK) > 1e-6 {
		t.Errorf("k = %v, want %v", k, wantK)
	}
}

func TestLogRegressionFailsWithFewerThanTwoPoints(t *testing.T) {
	t.Parallel()

	if _, _, ok := (LogRegression{}).Fit([]float64{0.1}, []float64{1.0}); ok {
		t.Fatal("expected fit to fail with a single point")
	}
	if _, _, ok := (LogRegression{}).Fit(nil, nil); ok {
		t.Fatal("expected fit to fail with no points")
	}
}

func TestOnTickFalseUntilWindowFull(t *testing.T) {
	t.Parallel()
	ie := NewIntensityEstimator(0.1, 10, 5000, 1000)

	for tMs := uint64(0); tMs < 5000; tMs += 500 {
		if ie.OnTick(100, 100.1, tMs) {
			t.Fatalf("OnTick(%d) = true, want false before window is full", tMs)
		}
	}
}

func TestOnTickTrueOncePeriodAndWindowElapse(t *testing.T) {
	t.Parallel()
	ie := NewIntensityEstimator(0.1, 10, 5000, 1000)

	var ready bool
	for tMs := uint64(0); tMs <= 6000; tMs += 500 {
		bid := 100.0 + float64(tMs%1000)/10000
		if ie.OnTick(bid, bid+0.1, tMs) {
			ready = true
			break
		}
	}
	if !ready {
		t.Fatal("expected OnTick to return true once window and period requirements are met")
	}
}

func TestEstimateNeverReturnsNonPositive(t *testing.T) {
	t.Parallel()
	ie := NewIntensityEstimator(0.1, 10, 1000, 500)

	info := ie.Estimate(0)
	if info.BuyA <= 0 || info.BuyK <= 0 || info.SellA <= 0 || info.SellK <= 0 {
		t.Fatalf("Estimate with no data returned non-positive fields: %+v", info)
	}

	for tMs := uint64(0); tMs < 2000; tMs += 100 {
		bid := 100.0 + float64(tMs%300)/1000
		ie.OnTick(bid, bid+0.1+float64(tMs%5)*0.01, tMs)
	}
	info = ie.Estimate(2000)
	if info.BuyA <= 0 || info.BuyK <= 0 || info.SellA <= 0 || info.SellK <= 0 {
		t.Fatalf("Estimate returned non-positive fields after data: %+v", info)
	}
}

func TestEvictionDropsStaleEvents(t *testing.T) {
	t.Parallel()
	ie := NewIntensityEstimator(0.1, 10, 1000, 100)

	ie.OnTick(100, 100.1, 0)
	ie.OnTick(101, 101.1, 500)
	ie.OnTick(100, 100.1, 5000)

	for _, tot := range ie.timeAtSpread {
		if tot < 0 {
			t.Fatalf("timeAtSpread went negative after eviction: %v", ie.timeAtSpread)
		}
	}
}
