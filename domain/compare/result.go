package compare

// MethodStats is one entry of a metric's by_method section.
type MethodStats struct {
	NTotal      int      `json:"n_total"`
	NNonNull    int      `json:"n_nonnull"`
	MissingRate *float64 `json:"missing_rate"`
	Min         *float64 `json:"min"`
	P05         *float64 `json:"p05"`
	P25         *float64 `json:"p25"`
	P50         *float64 `json:"p50"`
	P75         *float64 `json:"p75"`
	P95         *float64 `json:"p95"`
	Max         *float64 `json:"max"`
	Mean        *float64 `json:"mean"`
	Std         *float64 `json:"std"`
}

// NewMethodStats flattens a sample's counts and its summary.
func NewMethodStats(s Sample, st SummaryStats) MethodStats {
	return MethodStats{
		NTotal:      s.NTotal,
		NNonNull:    s.NNonNull,
		MissingRate: s.MissingRate(),
		Min:         st.Min,
		P05:         st.P05,
		P25:         st.P25,
		P50:         st.P50,
		P75:         st.P75,
		P95:         st.P95,
		Max:         st.Max,
		Mean:        st.Mean,
		Std:         st.Std,
	}
}

// MetricBlock is the per-measurement section of the result.
type MetricBlock struct {
	Units          string                      `json:"units"`
	ByMethod       *OrderedMap[MethodStats]    `json:"by_method"`
	DiffVsBaseline *OrderedMap[EffectEstimate] `json:"diff_vs_baseline"`
}

// AnalysisEcho records the configuration that produced a result.
type AnalysisEcho struct {
	StdDDOF           int            `json:"std_ddof"`
	QuantileMethod    QuantileMethod `json:"quantile_method"`
	Seed              int64          `json:"seed"`
	Resamples         int            `json:"n_resamples"`
	CI                float64        `json:"ci"`
	MinGroupSizeForCI int            `json:"min_group_size_for_ci"`
}

// ProvenanceSection holds per-group provenance tallies.
type ProvenanceSection struct {
	ByMethod *OrderedMap[*OrderedMap[int]] `json:"by_method"`
}

// Result is the stable contract consumed by reporting collaborators.
type Result struct {
	GeneratedUTC   string                    `json:"generated_utc"`
	BaselineMethod string                    `json:"baseline_method"`
	MethodOrder    []string                  `json:"method_order"`
	Analysis       AnalysisEcho              `json:"analysis"`
	MassProvenance ProvenanceSection         `json:"mass_provenance"`
	Metrics        *OrderedMap[*MetricBlock] `json:"metrics"`
}
