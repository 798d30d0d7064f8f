package analysis

import (
	"exocompare/domain/compare"
)

// Median is the p=0.5 quantile under the run's interpolation rule.
func Median(sorted []float64, method compare.QuantileMethod) (float64, error) {
	return Quantile(sorted, 0.5, method)
}

// MedianDifference returns median(candidate) - median(baseline), or nil when
// either sample is empty. Positive means the candidate's typical value is larger.
func MedianDifference(baseline, candidate compare.Sample, method compare.QuantileMethod) (*float64, error) {
	if len(baseline.Values) == 0 || len(candidate.Values) == 0 {
		return nil, nil
	}
	mb, err := Median(sortedCopy(baseline.Values), method)
	if err != nil {
		return nil, err
	}
	mc, err := Median(sortedCopy(candidate.Values), method)
	if err != nil {
		return nil, err
	}
	return compare.Float(mc - mb), nil
}
