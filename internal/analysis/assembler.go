package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"exocompare/domain/compare"
	"exocompare/domain/core"
	"exocompare/ports"
)

// Assembler drives the engine over every configured (measurement, group)
// pair and builds the result contract.
type Assembler struct {
	rngPort    ports.RNGPort
	classifier *Classifier
	now        func() time.Time
}

// NewAssembler creates an assembler using the mass provenance classifier
func NewAssembler(rngPort ports.RNGPort) *Assembler {
	return &Assembler{
		rngPort:    rngPort,
		classifier: NewMassProvenanceClassifier(),
		now:        time.Now,
	}
}

// WithClock overrides the clock used for generated_utc.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// WithClassifier overrides the provenance classifier.
func (a *Assembler) WithClassifier(c *Classifier) *Assembler {
	a.classifier = c
	return a
}

// Compute validates cfg against table and returns the complete result. A
// configuration error aborts before any statistic is computed.
func (a *Assembler) Compute(ctx context.Context, table *compare.Table, cfg Config) (*compare.Result, error) {
	if err := ValidateInputs(table, cfg); err != nil {
		return nil, err
	}

	extractor := NewExtractor(table, cfg.Metrics)
	bootstrapper := NewBootstrapper(a.rngPort, cfg.Bootstrap)

	blocks := make([]*compare.MetricBlock, len(cfg.Metrics))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, metric := range cfg.Metrics {
		i, metric := i, metric
		g.Go(func() error {
			block, err := a.computeMetric(gctx, extractor, bootstrapper, cfg, metric)
			if err != nil {
				return fmt.Errorf("metric %s: %w", metric, err)
			}
			blocks[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics := compare.NewOrderedMap[*compare.MetricBlock]()
	for i, metric := range cfg.Metrics {
		metrics.Set(metric, blocks[i])
	}

	provenance := compare.NewOrderedMap[*compare.OrderedMap[int]]()
	for _, group := range cfg.MethodOrder {
		provenance.Set(group, a.classifier.Tally(table.RowsFor(group)))
	}

	return &compare.Result{
		GeneratedUTC:   core.Timestamp(a.now()).UTCISO(),
		BaselineMethod: cfg.BaselineMethod,
		MethodOrder:    append([]string(nil), cfg.MethodOrder...),
		Analysis: compare.AnalysisEcho{
			StdDDOF:           cfg.StdDDOF,
			QuantileMethod:    cfg.Bootstrap.QuantileMethod,
			Seed:              cfg.Bootstrap.Seed,
			Resamples:         cfg.Bootstrap.Resamples,
			CI:                cfg.Bootstrap.CI,
			MinGroupSizeForCI: cfg.Bootstrap.MinGroupSizeForCI,
		},
		MassProvenance: compare.ProvenanceSection{ByMethod: provenance},
		Metrics:        metrics,
	}, nil
}

func (a *Assembler) computeMetric(ctx context.Context, ex *Extractor, bs *Bootstrapper, cfg Config, metric string) (*compare.MetricBlock, error) {
	samples := make(map[string]compare.Sample, len(cfg.MethodOrder))
	byMethod := compare.NewOrderedMap[compare.MethodStats]()
	for _, group := range cfg.MethodOrder {
		s, err := ex.Extract(group, metric)
		if err != nil {
			return nil, err
		}
		stats, err := Summarize(s, cfg.Bootstrap.QuantileMethod, cfg.StdDDOF)
		if err != nil {
			return nil, err
		}
		samples[group] = s
		byMethod.Set(group, compare.NewMethodStats(s, stats))
	}

	baseline := samples[cfg.BaselineMethod]
	diffs := compare.NewOrderedMap[compare.EffectEstimate]()
	for _, group := range cfg.MethodOrder {
		if group == cfg.BaselineMethod {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		est, err := bs.MedianDiff(ctx, baseline, samples[group])
		if err != nil {
			return nil, fmt.Errorf("%s vs %s: %w", group, cfg.BaselineMethod, err)
		}
		diffs.Set(group, est)
	}

	return &compare.MetricBlock{
		Units:          cfg.Units[metric],
		ByMethod:       byMethod,
		DiffVsBaseline: diffs,
	}, nil
}
