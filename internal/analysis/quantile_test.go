package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

func TestQuantile_Linear(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{0.05, 1.2},
		{0.25, 2},
		{0.5, 3},
		{0.75, 4},
		{0.95, 4.8},
		{1, 5},
	}
	for _, tt := range tests {
		got, err := Quantile(sorted, tt.p, compare.QuantileLinear)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-12, "p=%v", tt.p)
	}
}

func TestQuantile_Methods(t *testing.T) {
	even := []float64{1, 2, 3, 4}
	tests := []struct {
		method compare.QuantileMethod
		p      float64
		want   float64
	}{
		{compare.QuantileLinear, 0.5, 2.5},
		{compare.QuantileLower, 0.5, 2},
		{compare.QuantileHigher, 0.5, 3},
		{compare.QuantileNearest, 0.5, 3},
		{compare.QuantileMidpoint, 0.5, 2.5},
		{compare.QuantileInvertedCDF, 0.5, 2},
		{compare.QuantileInvertedCDF, 0.6, 3},
		{compare.QuantileAveragedInvertedCDF, 0.5, 2.5},
		{compare.QuantileHazen, 0.5, 2.5},
		{compare.QuantileWeibull, 0.25, 1.25},
		{compare.QuantileInterpolatedInvertedCDF, 0.25, 1},
		{compare.QuantileMedianUnbiased, 0.5, 2.5},
		{compare.QuantileNormalUnbiased, 0.5, 2.5},
		{compare.QuantileWeibull, 0.01, 1},
		{compare.QuantileWeibull, 0.99, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			got, err := Quantile(even, tt.p, tt.method)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestQuantile_Errors(t *testing.T) {
	_, err := Quantile(nil, 0.5, compare.QuantileLinear)
	assert.ErrorIs(t, err, core.ErrEmptySample)

	_, err = Quantile([]float64{1, 2}, 1.5, compare.QuantileLinear)
	assert.ErrorIs(t, err, core.ErrInvalidQuantile)

	_, err = Quantile([]float64{1, 2}, 0.5, "type9")
	assert.ErrorIs(t, err, core.ErrUnknownQuantileMethod)
}

func TestQuantile_SingleValue(t *testing.T) {
	for _, p := range SummaryPoints {
		got, err := Quantile([]float64{7.5}, p, compare.QuantileHazen)
		require.NoError(t, err)
		assert.Equal(t, 7.5, got)
	}
}
