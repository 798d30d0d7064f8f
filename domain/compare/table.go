package compare

import "math"

// Record is one entity (planet) of the analysis table. A measurement that is
// absent from Values, or stored as NaN, is null.
type Record struct {
	Name       string
	Group      string
	Provenance string
	Year       *int
	Values     map[string]float64
}

// Value returns the record's value for a measurement and whether it is non-null.
func (r Record) Value(measurement string) (float64, bool) {
	v, ok := r.Values[measurement]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Table is the immutable, in-memory input of one analysis run.
type Table struct {
	Measurements []string
	Records      []Record
}

// HasMeasurement reports whether the table schema carries the measurement column.
func (t *Table) HasMeasurement(name string) bool {
	for _, m := range t.Measurements {
		if m == name {
			return true
		}
	}
	return false
}

// Groups returns distinct group labels in first-seen order.
func (t *Table) Groups() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Records {
		if !seen[r.Group] {
			seen[r.Group] = true
			out = append(out, r.Group)
		}
	}
	return out
}

// HasGroup reports whether at least one record carries the label.
func (t *Table) HasGroup(group string) bool {
	for _, r := range t.Records {
		if r.Group == group {
			return true
		}
	}
	return false
}

// RowsFor returns the records of one group, preserving table order.
func (t *Table) RowsFor(group string) []Record {
	var out []Record
	for _, r := range t.Records {
		if r.Group == group {
			out = append(out, r)
		}
	}
	return out
}

// CountByGroup returns the row count of each group.
func (t *Table) CountByGroup() map[string]int {
	out := make(map[string]int)
	for _, r := range t.Records {
		out[r.Group]++
	}
	return out
}

// Column names of the planet table.
const (
	ColumnName           = "pl_name"
	ColumnMethod         = "discoverymethod"
	ColumnYear           = "disc_year"
	ColumnMassProvenance = "pl_bmassprov"
)

// MissingCount is the per (group, measurement) missingness triple.
type MissingCount struct {
	NTotal      int      `json:"n_total"`
	NNonNull    int      `json:"n_nonnull"`
	MissingRate *float64 `json:"missing_rate"`
}

// Missingness maps group -> measurement -> counts, both in configured order.
type Missingness = OrderedMap[*OrderedMap[MissingCount]]
