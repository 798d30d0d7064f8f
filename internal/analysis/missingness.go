package analysis

import (
	"exocompare/domain/compare"
)

// Missingness reports n_total, n_nonnull and missing_rate for every
// (group, measurement) pair in the given orders. Rates are nil for groups
// without rows.
func Missingness(table *compare.Table, groups, metrics []string) (*compare.Missingness, error) {
	ex := NewExtractor(table, metrics)
	out := compare.NewOrderedMap[*compare.OrderedMap[compare.MissingCount]]()
	for _, g := range groups {
		byMetric := compare.NewOrderedMap[compare.MissingCount]()
		for _, m := range metrics {
			s, err := ex.Extract(g, m)
			if err != nil {
				return nil, err
			}
			byMetric.Set(m, compare.MissingCount{
				NTotal:      s.NTotal,
				NNonNull:    s.NNonNull,
				MissingRate: s.MissingRate(),
			})
		}
		out.Set(g, byMetric)
	}
	return out, nil
}
