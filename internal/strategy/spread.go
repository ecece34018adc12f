package strategy

import (
	"math"

	"quoter/pkg/types"
)

// SpreadCalculator computes Avellaneda–Stoikov reservation offsets from the
// current volatility, inventory, and fitted arrival intensities.
type SpreadCalculator struct {
	Gamma           float64
	SigmaMultiplier float64
	TickRound       int
}

// Offsets is the additive bid/ask distance from wap, before tick rounding.
type Offsets struct {
	BidOff float64
	AskOff float64
}

// Compute implements the Avellaneda-Stoikov closed form. q is the
// inventory term, resolved as position.qty / order_qty and applied
// uniformly here rather than branching by venue flavor — see DESIGN.md.
func (sc SpreadCalculator) Compute(sigma float64, q float64, info types.IntensityInfo) Offsets {
	sigmaAdj := sigma * sc.SigmaMultiplier
	gamma := sc.Gamma

	bidOff := math.Log(1+gamma/info.SellK)/gamma +
		(q+0.5)*math.Sqrt(sigmaAdj*sigmaAdj*gamma/(2*info.SellK*info.SellA)*
			math.Pow(1+gamma/info.SellK, 1+info.SellK/gamma))

	askOff := math.Log(1+gamma/info.BuyK)/gamma -
		(q-0.5)*math.Sqrt(sigmaAdj*sigmaAdj*gamma/(2*info.BuyK*info.BuyA)*
			math.Pow(1+gamma/info.BuyK, 1+info.BuyK/gamma))

	return Offsets{BidOff: bidOff, AskOff: askOff}
}

// QuotedPrices rounds wap ± offsets to tick_round fractional digits.
func (sc SpreadCalculator) QuotedPrices(wap float64, off Offsets) (bidPx, askPx float64) {
	return roundTo(wap-off.BidOff, sc.TickRound), roundTo(wap+off.AskOff, sc.TickRound)
}

func roundTo(v float64, digits int) float64 {
	mult := math.Pow(10, float64(digits))
	return math.Round(v*mult) / mult
}
