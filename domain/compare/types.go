package compare

import (
	"fmt"
	"sort"
	"strings"

	"exocompare/domain/core"
)

// ReasonInsufficientN is reported when the CI gate rejects a pair.
const ReasonInsufficientN = "insufficient_n"

// QuantileMethod identifies the interpolation rule shared by every quantile
// computed in a run.
type QuantileMethod string

const (
	QuantileLinear                  QuantileMethod = "linear"
	QuantileLower                   QuantileMethod = "lower"
	QuantileHigher                  QuantileMethod = "higher"
	QuantileNearest                 QuantileMethod = "nearest"
	QuantileMidpoint                QuantileMethod = "midpoint"
	QuantileInvertedCDF             QuantileMethod = "inverted_cdf"
	QuantileAveragedInvertedCDF     QuantileMethod = "averaged_inverted_cdf"
	QuantileClosestObservation      QuantileMethod = "closest_observation"
	QuantileInterpolatedInvertedCDF QuantileMethod = "interpolated_inverted_cdf"
	QuantileHazen                   QuantileMethod = "hazen"
	QuantileWeibull                 QuantileMethod = "weibull"
	QuantileMedianUnbiased          QuantileMethod = "median_unbiased"
	QuantileNormalUnbiased          QuantileMethod = "normal_unbiased"
)

var knownQuantileMethods = map[QuantileMethod]bool{
	QuantileLinear:                  true,
	QuantileLower:                   true,
	QuantileHigher:                  true,
	QuantileNearest:                 true,
	QuantileMidpoint:                true,
	QuantileInvertedCDF:             true,
	QuantileAveragedInvertedCDF:     true,
	QuantileClosestObservation:      true,
	QuantileInterpolatedInvertedCDF: true,
	QuantileHazen:                   true,
	QuantileWeibull:                 true,
	QuantileMedianUnbiased:          true,
	QuantileNormalUnbiased:          true,
}

// ParseQuantileMethod validates an external identifier.
func ParseQuantileMethod(s string) (QuantileMethod, error) {
	m := QuantileMethod(s)
	if !knownQuantileMethods[m] {
		allowed := make([]string, 0, len(knownQuantileMethods))
		for k := range knownQuantileMethods {
			allowed = append(allowed, string(k))
		}
		sort.Strings(allowed)
		return "", fmt.Errorf("%w %q (allowed: %s)", core.ErrUnknownQuantileMethod, s, strings.Join(allowed, ", "))
	}
	return m, nil
}

// Sample is the non-null data of one (group, measurement) pair plus the counts
// needed for missingness accounting. NNonNull <= NTotal always holds.
type Sample struct {
	Group       string
	Measurement string
	Values      []float64
	NTotal      int
	NNonNull    int
}

// MissingRate is 1 - NNonNull/NTotal, or nil when the group has no rows.
func (s Sample) MissingRate() *float64 {
	if s.NTotal <= 0 {
		return nil
	}
	r := 1.0 - float64(s.NNonNull)/float64(s.NTotal)
	return &r
}

// SummaryStats holds descriptive statistics; nil marks an undefined value.
type SummaryStats struct {
	Min  *float64 `json:"min"`
	P05  *float64 `json:"p05"`
	P25  *float64 `json:"p25"`
	P50  *float64 `json:"p50"`
	P75  *float64 `json:"p75"`
	P95  *float64 `json:"p95"`
	Max  *float64 `json:"max"`
	Mean *float64 `json:"mean"`
	Std  *float64 `json:"std"`
}

// EffectEstimate is the baseline-relative median difference with its optional interval.
type EffectEstimate struct {
	Point  *float64 `json:"point"`
	CILow  *float64 `json:"ci_low"`
	CIHigh *float64 `json:"ci_high"`
	Reason *string  `json:"reason"`
}

// HasInterval reports whether both CI bounds are present.
func (e EffectEstimate) HasInterval() bool {
	return e.CILow != nil && e.CIHigh != nil
}

// BootstrapConfig is fixed for a whole run.
type BootstrapConfig struct {
	Seed              int64
	Resamples         int
	CI                float64
	QuantileMethod    QuantileMethod
	MinGroupSizeForCI int
}

// Float returns a pointer to v, for filling nullable fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to s.
func String(s string) *string { return &s }
