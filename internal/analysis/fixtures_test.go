package analysis

import "exocompare/domain/compare"

// record builds one row; a nil value marks the measurement as null.
func record(group, provenance string, values map[string]*float64) compare.Record {
	r := compare.Record{Name: group, Group: group, Provenance: provenance, Values: map[string]float64{}}
	for k, v := range values {
		if v != nil {
			r.Values[k] = *v
		}
	}
	return r
}

func f(v float64) *float64 { return &v }

// seq returns n values start, start+step, ...
func seq(start, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func groupRecords(group, provenance, metric string, values []float64) []compare.Record {
	out := make([]compare.Record, len(values))
	for i, v := range values {
		out[i] = record(group, provenance, map[string]*float64{metric: f(v)})
	}
	return out
}

func defaultBootstrap() compare.BootstrapConfig {
	return compare.BootstrapConfig{
		Seed:              18790314,
		Resamples:         1000,
		CI:                0.95,
		QuantileMethod:    compare.QuantileLinear,
		MinGroupSizeForCI: 20,
	}
}
