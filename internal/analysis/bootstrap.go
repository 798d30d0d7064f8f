package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"exocompare/domain/compare"
	"exocompare/domain/core"
	"exocompare/ports"
)

// BootstrapStage names the RNG sub-stream family used for median differences.
const BootstrapStage = "bootstrap_median_diff"

// Bootstrapper estimates percentile bootstrap intervals for median differences.
type Bootstrapper struct {
	rngPort ports.RNGPort
	cfg     compare.BootstrapConfig
}

// NewBootstrapper creates a bootstrapper bound to one run configuration
func NewBootstrapper(rngPort ports.RNGPort, cfg compare.BootstrapConfig) *Bootstrapper {
	return &Bootstrapper{rngPort: rngPort, cfg: cfg}
}

// Gated reports whether either sample is below the CI minimum size.
func (b *Bootstrapper) Gated(baseline, candidate compare.Sample) bool {
	return candidate.NNonNull < b.cfg.MinGroupSizeForCI || baseline.NNonNull < b.cfg.MinGroupSizeForCI
}

// MedianDiff returns the point estimate and, when both samples pass the gate,
// its percentile interval. Gate failure is a normal outcome reported through
// Reason; no resampling happens in that case.
func (b *Bootstrapper) MedianDiff(ctx context.Context, baseline, candidate compare.Sample) (compare.EffectEstimate, error) {
	point, err := MedianDifference(baseline, candidate, b.cfg.QuantileMethod)
	if err != nil {
		return compare.EffectEstimate{}, err
	}
	est := compare.EffectEstimate{Point: point}

	if point == nil || b.Gated(baseline, candidate) {
		est.Reason = compare.String(compare.ReasonInsufficientN)
		return est, nil
	}

	key := core.PairKey(baseline.Group, candidate.Group, candidate.Measurement)
	r, err := b.rngPort.Stream(ctx, BootstrapStage, key, b.cfg.Seed)
	if err != nil {
		return compare.EffectEstimate{}, fmt.Errorf("open stream %s: %w", key, err)
	}

	diffs, err := b.Replicates(r, baseline.Values, candidate.Values)
	if err != nil {
		return compare.EffectEstimate{}, err
	}
	sort.Float64s(diffs)

	alpha := 1 - b.cfg.CI
	lo, err := Quantile(diffs, alpha/2, b.cfg.QuantileMethod)
	if err != nil {
		return compare.EffectEstimate{}, err
	}
	hi, err := Quantile(diffs, 1-alpha/2, b.cfg.QuantileMethod)
	if err != nil {
		return compare.EffectEstimate{}, err
	}
	est.CILow = compare.Float(lo)
	est.CIHigh = compare.Float(hi)
	return est, nil
}

// Replicates draws cfg.Resamples replicate median differences. Each replicate
// draws len(candidate) candidate indices and then len(baseline) baseline
// indices, uniformly with replacement, from r.
func (b *Bootstrapper) Replicates(r *rand.Rand, baseline, candidate []float64) ([]float64, error) {
	cs := newResampler(candidate)
	bs := newResampler(baseline)

	diffs := make([]float64, b.cfg.Resamples)
	for j := range diffs {
		mc, err := Median(cs.draw(r), b.cfg.QuantileMethod)
		if err != nil {
			return nil, err
		}
		mb, err := Median(bs.draw(r), b.cfg.QuantileMethod)
		if err != nil {
			return nil, err
		}
		diffs[j] = mc - mb
	}
	return diffs, nil
}

// resampler keeps the sorted source and reusable buffers so a replicate is
// materialized already sorted: indices address the original order, their
// multiplicities are mapped onto sorted positions and expanded in place.
type resampler struct {
	values []float64
	rank   []int // rank[i] = sorted position of values[i]
	sorted []float64
	counts []int
	out    []float64
}

func newResampler(values []float64) *resampler {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] < values[order[b]] })

	rs := &resampler{
		values: values,
		rank:   make([]int, n),
		sorted: make([]float64, n),
		counts: make([]int, n),
		out:    make([]float64, n),
	}
	for pos, idx := range order {
		rs.rank[idx] = pos
		rs.sorted[pos] = values[idx]
	}
	return rs
}

func (rs *resampler) draw(r *rand.Rand) []float64 {
	n := len(rs.values)
	for i := range rs.counts {
		rs.counts[i] = 0
	}
	for k := 0; k < n; k++ {
		rs.counts[rs.rank[r.Intn(n)]]++
	}
	out := rs.out[:0]
	for pos, c := range rs.counts {
		for ; c > 0; c-- {
			out = append(out, rs.sorted[pos])
		}
	}
	return out
}
