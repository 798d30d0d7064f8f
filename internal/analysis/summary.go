package analysis

import (
	"math"
	"sort"

	"exocompare/domain/compare"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// SummaryPoints are the probabilities reported as p05..p95.
var SummaryPoints = []float64{0.05, 0.25, 0.50, 0.75, 0.95}

// Summarize computes descriptive statistics of one sample. Every field is nil
// for an empty sample; Std is nil whenever n - ddof <= 0. Values are never
// clipped or winsorized.
func Summarize(s compare.Sample, method compare.QuantileMethod, ddof int) (compare.SummaryStats, error) {
	if len(s.Values) == 0 {
		return compare.SummaryStats{}, nil
	}

	sorted := sortedCopy(s.Values)
	qs, err := Quantiles(sorted, SummaryPoints, method)
	if err != nil {
		return compare.SummaryStats{}, err
	}

	mean, err := stats.Mean(stats.Float64Data(s.Values))
	if err != nil {
		return compare.SummaryStats{}, err
	}

	return compare.SummaryStats{
		Min:  compare.Float(floats.Min(s.Values)),
		P05:  compare.Float(qs[0]),
		P25:  compare.Float(qs[1]),
		P50:  compare.Float(qs[2]),
		P75:  compare.Float(qs[3]),
		P95:  compare.Float(qs[4]),
		Max:  compare.Float(floats.Max(s.Values)),
		Mean: compare.Float(mean),
		Std:  StdDev(s.Values, mean, ddof),
	}, nil
}

// StdDev is sqrt(sum((x-mean)^2) / (n-ddof)), or nil when the divisor is not positive.
func StdDev(values []float64, mean float64, ddof int) *float64 {
	n := len(values)
	if n == 0 || n-ddof <= 0 {
		return nil
	}
	dev := make([]float64, n)
	copy(dev, values)
	floats.AddConst(-mean, dev)
	ss := floats.Dot(dev, dev)
	return compare.Float(math.Sqrt(ss / float64(n-ddof)))
}

func sortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}
