package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

func sampleTable() *compare.Table {
	return &compare.Table{
		Measurements: []string{"pl_rade", "pl_orbper"},
		Records: []compare.Record{
			record("Transit", "", map[string]*float64{"pl_rade": f(1.1), "pl_orbper": f(3)}),
			record("Transit", "", map[string]*float64{"pl_rade": nil, "pl_orbper": f(5)}),
			record("Transit", "", map[string]*float64{"pl_rade": f(math.NaN()), "pl_orbper": f(7)}),
			record("Transit", "", map[string]*float64{"pl_rade": f(2.2)}),
			record("Imaging", "", map[string]*float64{"pl_orbper": f(9000)}),
		},
	}
}

func TestExtract(t *testing.T) {
	ex := NewExtractor(sampleTable(), []string{"pl_rade", "pl_orbper"})

	s, err := ex.Extract("Transit", "pl_rade")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.1, 2.2}, s.Values)
	assert.Equal(t, 4, s.NTotal)
	assert.Equal(t, 2, s.NNonNull)
	require.NotNil(t, s.MissingRate())
	assert.InDelta(t, 0.5, *s.MissingRate(), 1e-12)

	s, err = ex.Extract("Imaging", "pl_rade")
	require.NoError(t, err)
	assert.Equal(t, 1, s.NTotal)
	assert.Equal(t, 0, s.NNonNull)
	assert.InDelta(t, 1.0, *s.MissingRate(), 1e-12)
}

func TestExtract_AbsentGroupIsEmpty(t *testing.T) {
	ex := NewExtractor(sampleTable(), []string{"pl_rade"})

	s, err := ex.Extract("Microlensing", "pl_rade")
	require.NoError(t, err)
	assert.Equal(t, 0, s.NTotal)
	assert.Empty(t, s.Values)
	assert.Nil(t, s.MissingRate())
}

func TestExtract_UnknownMeasurement(t *testing.T) {
	ex := NewExtractor(sampleTable(), []string{"pl_rade", "pl_bmasse"})

	_, err := ex.Extract("Transit", "pl_orbper")
	assert.ErrorIs(t, err, core.ErrUnknownMeasurement)

	_, err = ex.Extract("Transit", "pl_bmasse")
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestMissingness(t *testing.T) {
	miss, err := Missingness(sampleTable(), []string{"Transit", "Microlensing"}, []string{"pl_rade", "pl_orbper"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Transit", "Microlensing"}, miss.Keys())

	transit, _ := miss.Get("Transit")
	orb, _ := transit.Get("pl_orbper")
	assert.Equal(t, compare.MissingCount{NTotal: 4, NNonNull: 3, MissingRate: compare.Float(0.25)}, orb)

	micro, _ := miss.Get("Microlensing")
	rade, _ := micro.Get("pl_rade")
	assert.Nil(t, rade.MissingRate)
}
