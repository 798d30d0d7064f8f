package analysis

import (
	"fmt"
	"math"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

// Quantile returns the p-quantile of an ascending slice under the given
// interpolation rule. It is the only quantile routine in the engine: summary
// percentiles, medians and bootstrap interval bounds all go through it.
//
// The rules follow the Hyndman & Fan definitions as exposed by numpy; linear
// (type 7) is the default. The input must already be sorted.
func Quantile(sorted []float64, p float64, method compare.QuantileMethod) (float64, error) {
	n := len(sorted)
	if n == 0 {
		return 0, core.ErrEmptySample
	}
	if math.IsNaN(p) || p < 0 || p > 1 {
		return 0, fmt.Errorf("%w: %v", core.ErrInvalidQuantile, p)
	}
	if n == 1 {
		return sorted[0], nil
	}

	nf := float64(n)
	switch method {
	case compare.QuantileLinear, "":
		return interpolate(sorted, (nf-1)*p, identityGamma), nil
	case compare.QuantileLower:
		return sorted[clampIndex(math.Floor((nf-1)*p), n)], nil
	case compare.QuantileHigher:
		return sorted[clampIndex(math.Ceil((nf-1)*p), n)], nil
	case compare.QuantileNearest:
		return sorted[clampIndex(math.RoundToEven((nf-1)*p), n)], nil
	case compare.QuantileMidpoint:
		return interpolate(sorted, (nf-1)*p, func(g, _ float64) float64 {
			if g == 0 {
				return 0
			}
			return 0.5
		}), nil
	case compare.QuantileInvertedCDF:
		return sorted[discreteIndex(nf*p-1, n, func(g, _ float64) bool { return g == 0 })], nil
	case compare.QuantileAveragedInvertedCDF:
		return interpolate(sorted, nf*p-1, func(g, _ float64) float64 {
			if g == 0 {
				return 0.5
			}
			return 1
		}), nil
	case compare.QuantileClosestObservation:
		return sorted[discreteIndex(nf*p-1.5, n, func(g, idx float64) bool {
			return g == 0 && math.Mod(math.Floor(idx), 2) != 0
		})], nil
	case compare.QuantileInterpolatedInvertedCDF:
		return interpolate(sorted, virtualIndex(nf, p, 0, 1), identityGamma), nil
	case compare.QuantileHazen:
		return interpolate(sorted, virtualIndex(nf, p, 0.5, 0.5), identityGamma), nil
	case compare.QuantileWeibull:
		return interpolate(sorted, virtualIndex(nf, p, 0, 0), identityGamma), nil
	case compare.QuantileMedianUnbiased:
		return interpolate(sorted, virtualIndex(nf, p, 1.0/3, 1.0/3), identityGamma), nil
	case compare.QuantileNormalUnbiased:
		return interpolate(sorted, virtualIndex(nf, p, 3.0/8, 3.0/8), identityGamma), nil
	default:
		return 0, fmt.Errorf("%w %q", core.ErrUnknownQuantileMethod, method)
	}
}

// Quantiles evaluates several probabilities against one sorted slice.
func Quantiles(sorted []float64, ps []float64, method compare.QuantileMethod) ([]float64, error) {
	out := make([]float64, len(ps))
	for i, p := range ps {
		q, err := Quantile(sorted, p, method)
		if err != nil {
			return nil, err
		}
		out[i] = q
	}
	return out, nil
}

func identityGamma(g, _ float64) float64 { return g }

// virtualIndex is the continuous (alpha, beta) family position, 0-based.
func virtualIndex(n, p, alpha, beta float64) float64 {
	return n*p + (alpha + p*(1-alpha-beta)) - 1
}

// interpolate reads between the order statistics around a virtual index.
// Positions below 0 or at/after n-1 collapse onto the boundary values.
func interpolate(sorted []float64, idx float64, gamma func(g, idx float64) float64) float64 {
	n := len(sorted)
	if idx < 0 {
		return sorted[0]
	}
	if idx >= float64(n-1) {
		return sorted[n-1]
	}
	lo := math.Floor(idx)
	g := gamma(idx-lo, idx)
	i := int(lo)
	return lerp(sorted[i], sorted[i+1], g)
}

// lerp is evaluated from the nearer endpoint so t=1 returns b exactly.
func lerp(a, b, t float64) float64 {
	d := b - a
	if t >= 0.5 {
		return b - d*(1-t)
	}
	return a + d*t
}

// discreteIndex picks the lower neighbour when takeLower holds, else the upper.
func discreteIndex(idx float64, n int, takeLower func(g, idx float64) bool) int {
	lo := math.Floor(idx)
	pick := lo + 1
	if takeLower(idx-lo, idx) {
		pick = lo
	}
	return clampIndex(pick, n)
}

func clampIndex(i float64, n int) int {
	if i < 0 {
		return 0
	}
	if i > float64(n-1) {
		return n - 1
	}
	return int(i)
}
