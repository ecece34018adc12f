package strategy

import (
	"math"

	"quoter/pkg/types"
)

// volWindowT is the default dimensionless horizon constant T. The
// estimators below take T as an argument; the engine passes
// StrategyConfig.VolWindowT, which config.Validate also defaults to 10.
const volWindowT = 10.0

// VolatilityEstimator computes σ over a set of samples. Each kind in
// types.VolatilityKind has its own implementation; the active one is
// selected at config-load time via a config-driven enum.
type VolatilityEstimator interface {
	Estimate(spreadRel, wap []float64, t float64) float64
}

// SpreadVol is the Spread estimator: σ = sqrt(Σ spread_rel_i² / T).
type SpreadVol struct{}

func (SpreadVol) Estimate(spreadRel, _ []float64, t float64) float64 {
	var sum float64
	for _, s := range spreadRel {
		sum += s * s
	}
	return math.Sqrt(sum / t)
}

// ClassicalVol is the Classical estimator: σ = sqrt(Σ (wap_{i+1}-wap_i)² / T).
type ClassicalVol struct{}

func (ClassicalVol) Estimate(_, wap []float64, t float64) float64 {
	var sum float64
	for i := 1; i < len(wap); i++ {
		d := wap[i] - wap[i-1]
		sum += d * d
	}
	return math.Sqrt(sum / t)
}

// chunkSize is the fixed chunk width used by Parkinson and Garman–Klass.
// Chosen so small windows still yield at least one chunk.
const chunkSize = 5

// chunksOf splits wap into fixed-size runs, dropping a final partial run
// shorter than 2 samples (a single-point chunk has no well-defined
// min/max/first/last range).
func chunksOf(wap []float64, size int) [][]float64 {
	var out [][]float64
	for i := 0; i < len(wap); i += size {
		end := i + size
		if end > len(wap) {
			end = len(wap)
		}
		chunk := wap[i:end]
		if len(chunk) >= 2 {
			out = append(out, chunk)
		}
	}
	return out
}

// ParkinsonVol is the Parkinson high-low range estimator:
// hv += ln(max/min)² over fixed-size chunks; σ = sqrt(hv / (4·T·ln2)).
type ParkinsonVol struct{}

func (ParkinsonVol) Estimate(_, wap []float64, t float64) float64 {
	var hv float64
	for _, chunk := range chunksOf(wap, chunkSize) {
		mn, mx := minMax(chunk)
		r := math.Log(mx / mn)
		hv += r * r
	}
	return math.Sqrt(hv / (4 * t * math.Ln2))
}

// GarmanKlassVol is the Garman–Klass estimator:
// hv += 0.5·ln(max/min)² − (2·ln2−1)·ln(last/first)² over chunks;
// σ = sqrt(hv / T). NaN/negative interior hv values are permitted by the
// formula and taken as-is.
type GarmanKlassVol struct{}

func (GarmanKlassVol) Estimate(_, wap []float64, t float64) float64 {
	var hv float64
	for _, chunk := range chunksOf(wap, chunkSize) {
		mn, mx := minMax(chunk)
		first, last := chunk[0], chunk[len(chunk)-1]
		rangeTerm := math.Log(mx / mn)
		closeTerm := math.Log(last / first)
		hv += 0.5*rangeTerm*rangeTerm - (2*math.Ln2-1)*closeTerm*closeTerm
	}
	return math.Sqrt(hv / t)
}

// SelectVolatilityEstimator returns the estimator implementation for kind,
// defaulting to Spread for an empty/unrecognized value.
func SelectVolatilityEstimator(kind types.VolatilityKind) VolatilityEstimator {
	switch kind {
	case types.VolClassical:
		return ClassicalVol{}
	case types.VolParkinson:
		return ParkinsonVol{}
	case types.VolGarmanKlass:
		return GarmanKlassVol{}
	default:
		return SpreadVol{}
	}
}

// ComputeVolatility runs the estimator for kind over samples using the
// given horizon constant t (pass volWindowT, or a config override, for T).
// Callers must supply a non-empty samples slice; an empty window is
// undefined.
func ComputeVolatility(kind types.VolatilityKind, samples []types.Sample, t float64) float64 {
	spreadRel := make([]float64, len(samples))
	wap := make([]float64, len(samples))
	for i, s := range samples {
		spreadRel[i] = s.SpreadRel
		wap[i] = s.Wap
	}
	return SelectVolatilityEstimator(kind).Estimate(spreadRel, wap, t)
}

func minMax(vals []float64) (mn, mx float64) {
	mn, mx = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}
