package compare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedMap_PreservesInsertionOrder(t *testing.T) {
	m := NewOrderedMap[int]()
	m.Set("Transit", 1)
	m.Set("Radial Velocity", 2)
	m.Set("Imaging", 3)
	m.Set("Transit", 4)

	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"Transit":4,"Radial Velocity":2,"Imaging":3}`, string(raw))

	var back OrderedMap[int]
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, []string{"Transit", "Radial Velocity", "Imaging"}, back.Keys())
	v, ok := back.Get("Transit")
	assert.True(t, ok)
	assert.Equal(t, 4, v)
}

func TestResult_NullFieldsAreExplicit(t *testing.T) {
	stats := NewMethodStats(Sample{Group: "Imaging", Measurement: "pl_rade"}, SummaryStats{})
	raw, err := json.Marshal(stats)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"missing_rate", "min", "p05", "p25", "p50", "p75", "p95", "max", "mean", "std"} {
		v, present := decoded[key]
		assert.True(t, present, "key %s must be present", key)
		assert.Nil(t, v, "key %s must be null", key)
	}
}

func TestSample_MissingRate(t *testing.T) {
	assert.Nil(t, Sample{}.MissingRate())

	r := Sample{NTotal: 4, NNonNull: 1}.MissingRate()
	require.NotNil(t, r)
	assert.InDelta(t, 0.75, *r, 1e-12)
}

func TestParseQuantileMethod(t *testing.T) {
	m, err := ParseQuantileMethod("linear")
	require.NoError(t, err)
	assert.Equal(t, QuantileLinear, m)

	_, err = ParseQuantileMethod("cubic")
	assert.Error(t, err)
}
