package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"exocompare/domain/compare"
)

func TestClassify(t *testing.T) {
	c := NewMassProvenanceClassifier()
	tests := map[string]string{
		"Msini":                          ProvenanceMsini,
		"Mass":                           ProvenanceMass,
		"Msini/Mass":                     ProvenanceMsini,
		"Mass-Radius relationship":       ProvenanceMass,
		"M-R relationship":               ProvenanceOther,
		"":                               ProvenanceOther,
		"mass":                           ProvenanceOther,
		"Planetary Radius / Msini value": ProvenanceMsini,
	}
	for raw, want := range tests {
		assert.Equal(t, want, c.Classify(raw), "raw=%q", raw)
	}
}

func TestTally_SumsToRowCount(t *testing.T) {
	c := NewMassProvenanceClassifier()
	rows := []compare.Record{
		{Group: "Radial Velocity", Provenance: "Msini"},
		{Group: "Radial Velocity", Provenance: "Msini"},
		{Group: "Radial Velocity", Provenance: "Mass"},
		{Group: "Radial Velocity", Provenance: ""},
		{Group: "Radial Velocity", Provenance: "Calculated"},
	}

	tally := c.Tally(rows)
	assert.Equal(t, []string{ProvenanceMsini, ProvenanceMass, ProvenanceOther}, tally.Keys())

	total := 0
	for _, k := range tally.Keys() {
		n, _ := tally.Get(k)
		total += n
	}
	assert.Equal(t, len(rows), total)

	n, _ := tally.Get(ProvenanceMsini)
	assert.Equal(t, 2, n)
	n, _ = tally.Get(ProvenanceOther)
	assert.Equal(t, 2, n)
}

func TestTally_EmptyGroupHasZeroCounts(t *testing.T) {
	tally := NewMassProvenanceClassifier().Tally(nil)
	assert.Equal(t, 3, tally.Len())
	for _, k := range tally.Keys() {
		n, ok := tally.Get(k)
		assert.True(t, ok)
		assert.Zero(t, n)
	}
}
