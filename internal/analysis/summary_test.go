package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exocompare/domain/compare"
)

func TestSummarize_LiteralExample(t *testing.T) {
	s := compare.Sample{Values: []float64{1, 2, 3, 4, 5}, NTotal: 5, NNonNull: 5}

	st, err := Summarize(s, compare.QuantileLinear, 1)
	require.NoError(t, err)

	assert.Equal(t, 1.0, *st.Min)
	assert.Equal(t, 5.0, *st.Max)
	assert.InDelta(t, 3.0, *st.Mean, 1e-12)
	assert.InDelta(t, 1.5811, *st.Std, 1e-4)
	assert.InDelta(t, 3.0, *st.P50, 1e-12)
	assert.InDelta(t, 1.2, *st.P05, 1e-12)
	assert.InDelta(t, 4.8, *st.P95, 1e-12)
}

func TestSummarize_EmptySampleIsAllNull(t *testing.T) {
	st, err := Summarize(compare.Sample{NTotal: 4}, compare.QuantileLinear, 1)
	require.NoError(t, err)
	assert.Equal(t, compare.SummaryStats{}, st)
}

func TestSummarize_StdUndefinedWhenDivisorNotPositive(t *testing.T) {
	values := []float64{2, 4}
	tests := []struct {
		ddof    int
		wantNil bool
		want    float64
	}{
		{0, false, 1},
		{1, false, 1.4142135623730951},
		{2, true, 0},
		{3, true, 0},
	}
	for _, tt := range tests {
		s := compare.Sample{Values: values, NTotal: 2, NNonNull: 2}
		st, err := Summarize(s, compare.QuantileLinear, tt.ddof)
		require.NoError(t, err)
		if tt.wantNil {
			assert.Nil(t, st.Std, "ddof=%d", tt.ddof)
			continue
		}
		require.NotNil(t, st.Std, "ddof=%d", tt.ddof)
		assert.InDelta(t, tt.want, *st.Std, 1e-12)
		assert.NotNil(t, st.Mean)
	}
}

func TestSummarize_Monotone(t *testing.T) {
	s := compare.Sample{Values: []float64{9.1, -3, 0.2, 44, 17, 17, 2.5, 1e6, 0.001}}
	s.NTotal, s.NNonNull = len(s.Values), len(s.Values)

	for _, method := range []compare.QuantileMethod{compare.QuantileLinear, compare.QuantileInvertedCDF, compare.QuantileHazen} {
		st, err := Summarize(s, method, 1)
		require.NoError(t, err)
		chain := []float64{*st.Min, *st.P05, *st.P25, *st.P50, *st.P75, *st.P95, *st.Max}
		for i := 1; i < len(chain); i++ {
			assert.LessOrEqual(t, chain[i-1], chain[i], "%s step %d", method, i)
		}
		// extremes are reported as-is
		assert.Equal(t, 1e6, *st.Max)
	}
}

func TestSummarize_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, err := Summarize(compare.Sample{Values: values, NTotal: 3, NNonNull: 3}, compare.QuantileLinear, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}
