package analysis

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"exocompare/adapters/rng"
	"exocompare/domain/compare"
)

// MockRNGPort records stream requests.
type MockRNGPort struct {
	mock.Mock
}

func (m *MockRNGPort) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	args := m.Called(ctx, name, seed)
	return args.Get(0).(*rand.Rand), args.Error(1)
}

func (m *MockRNGPort) Stream(ctx context.Context, stage, key string, seed int64) (*rand.Rand, error) {
	args := m.Called(ctx, stage, key, seed)
	return args.Get(0).(*rand.Rand), args.Error(1)
}

func pair(metric string, baseline, candidate []float64) (compare.Sample, compare.Sample) {
	b := compare.Sample{Group: "Transit", Measurement: metric, Values: baseline, NTotal: len(baseline), NNonNull: len(baseline)}
	c := compare.Sample{Group: "Radial Velocity", Measurement: metric, Values: candidate, NTotal: len(candidate), NNonNull: len(candidate)}
	return b, c
}

func TestMedianDiff_GateSkipsResampling(t *testing.T) {
	port := new(MockRNGPort)
	bs := NewBootstrapper(port, defaultBootstrap())
	baseline, candidate := pair("pl_rade", []float64{1, 2, 3, 4, 5}, []float64{10, 12, 14, 16, 18})

	est, err := bs.MedianDiff(context.Background(), baseline, candidate)
	require.NoError(t, err)

	require.NotNil(t, est.Point)
	assert.Equal(t, 11.0, *est.Point)
	assert.Nil(t, est.CILow)
	assert.Nil(t, est.CIHigh)
	require.NotNil(t, est.Reason)
	assert.Equal(t, compare.ReasonInsufficientN, *est.Reason)
	port.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMedianDiff_GateAppliesToEitherSide(t *testing.T) {
	port := new(MockRNGPort)
	bs := NewBootstrapper(port, defaultBootstrap())

	baseline, candidate := pair("pl_rade", seq(1, 1, 30), seq(1, 1, 19))
	assert.True(t, bs.Gated(baseline, candidate))
	baseline, candidate = pair("pl_rade", seq(1, 1, 19), seq(1, 1, 30))
	assert.True(t, bs.Gated(baseline, candidate))
	baseline, candidate = pair("pl_rade", seq(1, 1, 20), seq(1, 1, 20))
	assert.False(t, bs.Gated(baseline, candidate))
}

func TestMedianDiff_EmptySideHasNoPointOrInterval(t *testing.T) {
	port := new(MockRNGPort)
	cfg := defaultBootstrap()
	cfg.MinGroupSizeForCI = 1
	bs := NewBootstrapper(port, cfg)
	baseline, candidate := pair("pl_rade", seq(1, 1, 30), nil)

	est, err := bs.MedianDiff(context.Background(), baseline, candidate)
	require.NoError(t, err)
	assert.Nil(t, est.Point)
	assert.False(t, est.HasInterval())
	assert.Equal(t, compare.ReasonInsufficientN, *est.Reason)
}

func TestMedianDiff_ReproducibleInterval(t *testing.T) {
	baseline, candidate := pair("pl_rade", seq(1, 1, 30), seq(11, 1, 30))

	run := func() compare.EffectEstimate {
		bs := NewBootstrapper(rng.NewStreamAdapter(), defaultBootstrap())
		est, err := bs.MedianDiff(context.Background(), baseline, candidate)
		require.NoError(t, err)
		return est
	}
	first, second := run(), run()

	require.True(t, first.HasInterval())
	assert.Nil(t, first.Reason)
	assert.Equal(t, 10.0, *first.Point)
	assert.Equal(t, *first.CILow, *second.CILow)
	assert.Equal(t, *first.CIHigh, *second.CIHigh)
	assert.LessOrEqual(t, *first.CILow, *first.CIHigh)
	assert.LessOrEqual(t, *first.CILow, *first.Point)
	assert.GreaterOrEqual(t, *first.CIHigh, *first.Point)
}

func TestMedianDiff_SeedChangesDraws(t *testing.T) {
	baseline, candidate := pair("pl_rade", seq(0.5, 0.37, 40), seq(3, 0.91, 40))

	bounds := func(seed int64) (float64, float64) {
		cfg := defaultBootstrap()
		cfg.Seed = seed
		est, err := NewBootstrapper(rng.NewStreamAdapter(), cfg).MedianDiff(context.Background(), baseline, candidate)
		require.NoError(t, err)
		return *est.CILow, *est.CIHigh
	}
	lo1, hi1 := bounds(1)
	lo2, hi2 := bounds(2)
	assert.False(t, lo1 == lo2 && hi1 == hi2)
}

func TestMedianDiff_UsesPairStream(t *testing.T) {
	cfg := defaultBootstrap()
	cfg.Resamples = 10
	port := new(MockRNGPort)
	port.On("Stream", mock.Anything, BootstrapStage, "Transit|Radial Velocity|pl_rade", cfg.Seed).
		Return(rand.New(rand.NewSource(1)), nil).Once()

	baseline, candidate := pair("pl_rade", seq(1, 1, 25), seq(2, 1, 25))
	_, err := NewBootstrapper(port, cfg).MedianDiff(context.Background(), baseline, candidate)
	require.NoError(t, err)
	port.AssertExpectations(t)
}

func TestReplicates_MatchNaiveResampling(t *testing.T) {
	cfg := defaultBootstrap()
	cfg.Resamples = 200
	bs := NewBootstrapper(nil, cfg)
	baseline := []float64{4.2, 1, 9, 1, 3.3, 7, 7, 0.5}
	candidate := []float64{12, 3, 5.5, 8, 8, 2}

	got, err := bs.Replicates(rand.New(rand.NewSource(42)), baseline, candidate)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(42))
	draw := func(src []float64) []float64 {
		out := make([]float64, len(src))
		for i := range out {
			out[i] = src[r.Intn(len(src))]
		}
		sort.Float64s(out)
		return out
	}
	for j := 0; j < cfg.Resamples; j++ {
		mc, _ := Median(draw(candidate), cfg.QuantileMethod)
		mb, _ := Median(draw(baseline), cfg.QuantileMethod)
		assert.Equal(t, mc-mb, got[j], "replicate %d", j)
	}
}
