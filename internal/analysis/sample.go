package analysis

import (
	"fmt"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

// Extractor isolates per (group, measurement) samples from one table.
type Extractor struct {
	table   *compare.Table
	metrics map[string]bool
}

// NewExtractor binds a table to the measurements configured for analysis.
func NewExtractor(table *compare.Table, metrics []string) *Extractor {
	set := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		set[m] = true
	}
	return &Extractor{table: table, metrics: set}
}

// Extract returns the ordered non-null values of a measurement within a group.
// A group without rows yields an empty sample with NTotal == 0, not an error.
func (e *Extractor) Extract(group, measurement string) (compare.Sample, error) {
	if !e.metrics[measurement] {
		return compare.Sample{}, fmt.Errorf("%w: %s", core.ErrUnknownMeasurement, measurement)
	}
	if !e.table.HasMeasurement(measurement) {
		return compare.Sample{}, fmt.Errorf("%w: %s", core.ErrMissingColumn, measurement)
	}

	s := compare.Sample{Group: group, Measurement: measurement}
	for _, r := range e.table.Records {
		if r.Group != group {
			continue
		}
		s.NTotal++
		if v, ok := r.Value(measurement); ok {
			s.Values = append(s.Values, v)
		}
	}
	s.NNonNull = len(s.Values)
	return s, nil
}
