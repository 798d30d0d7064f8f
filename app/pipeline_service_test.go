package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"exocompare/adapters/rng"
	"exocompare/adapters/tap"
	"exocompare/adapters/warehouse"
	"exocompare/domain/run"
	"exocompare/internal/config"
	"exocompare/internal/report"
	"exocompare/ports"
)

type stubFetcher struct {
	csv   []byte
	err   error
	calls int
	query tap.Query
}

func (f *stubFetcher) Fetch(ctx context.Context, q tap.Query) (*tap.FetchResult, error) {
	f.calls++
	f.query = q
	if f.err != nil {
		return nil, f.err
	}
	return &tap.FetchResult{
		CSV:  f.csv,
		ADQL: "select pl_name from pscomppars",
		URL:  "https://example.test/TAP/sync",
		HTTP: tap.HTTPMeta{Status: 200, ContentType: "text/csv", ResponseBytes: len(f.csv), Attempts: 1, Method: "GET"},
	}, nil
}

type recordingEvents struct {
	mu     sync.Mutex
	events []run.Event
}

func (r *recordingEvents) Broadcast(e run.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEvents) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		if e.Stage != "" {
			out = append(out, string(e.Kind)+":"+e.Stage)
		} else {
			out = append(out, string(e.Kind))
		}
	}
	return out
}

// catalogCSV builds a raw table with enough Transit and Radial Velocity rows
// for an interval, a small Imaging group and one row outside the filter.
func catalogCSV() []byte {
	var b strings.Builder
	b.WriteString("pl_name,discoverymethod,disc_year,pl_rade,pl_orbper,pl_bmasse,pl_bmassprov\n")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, "Kepler-%d b,Transit,%d,%.2f,%.2f,%.1f,Mass\n", i, 2009+i%10, 1.0+float64(i)*0.1, 3.0+float64(i), 5.0+float64(i))
	}
	for i := 0; i < 22; i++ {
		fmt.Fprintf(&b, "HD %d b,Radial Velocity,%d,,%.1f,%.1f,Msini\n", i, 1999+i%10, 200.0+float64(i)*10, 300.0+float64(i)*5)
	}
	b.WriteString("HR 8799 b,Imaging,2008,13.0,164250,1589,Mass\n")
	b.WriteString("HR 8799 c,Imaging,2008,,,,\n")
	b.WriteString("Astro-1 b,Astrometry,2013,1.0,10,10,Mass\n")
	return []byte(b.String())
}

type fixture struct {
	svc     *PipelineService
	paths   config.Paths
	fetcher *stubFetcher
	events  *recordingEvents
	store   ports.WarehouseRepository
}

func newFixture(t *testing.T, withWarehouse bool) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Bootstrap.NResamples = 200
	paths, err := config.ResolvePaths(t.TempDir(), cfg)
	require.NoError(t, err)

	f := &fixture{
		paths:   paths,
		fetcher: &stubFetcher{csv: catalogCSV()},
		events:  &recordingEvents{},
	}
	if withWarehouse {
		db, err := warehouse.Open(context.Background(), "sqlite3://:memory:", "")
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		f.store = warehouse.NewWarehouseRepository(db)
	}
	f.svc = NewPipelineService(cfg, paths, PipelineDeps{
		Fetcher:   f.fetcher,
		Warehouse: f.store,
		RNG:       rng.NewStreamAdapter(),
		Events:    f.events,
		Clock:     func() time.Time { return time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC) },
	})
	return f
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_ProducesArtifacts(t *testing.T) {
	f := newFixture(t, true)

	runLog, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.StatusSuccess, runLog.Status)
	assert.Equal(t, 1, f.fetcher.calls)
	assert.Equal(t, []string{"Transit", "Radial Velocity", "Imaging", "Microlensing"}, f.fetcher.query.Methods)

	for _, p := range []string{f.paths.MetricsJSON(), f.paths.RunJSON(), f.paths.ReportMarkdown(), f.paths.ReportHTML()} {
		assert.FileExists(t, p)
	}
	assert.FileExists(t, filepath.Join(f.paths.FiguresDir, report.MethodCountsFigure))

	runJSON := readFile(t, f.paths.RunJSON())
	assert.Equal(t, "success", gjson.Get(runJSON, "status").String())
	assert.Equal(t, run.SourceTAP, gjson.Get(runJSON, "data_source.source").String())
	assert.Equal(t, int64(50), gjson.Get(runJSON, "row_counts.raw").Int())
	assert.Equal(t, int64(49), gjson.Get(runJSON, "row_counts.clean").Int())
	assert.True(t, strings.HasPrefix(gjson.Get(runJSON, "snapshots.raw.path").String(), "data/raw/"))
	assert.Equal(t, "artifacts/metrics.json", gjson.Get(runJSON, "outputs.metrics").String())

	metrics := readFile(t, f.paths.MetricsJSON())
	assert.Equal(t, "Transit", gjson.Get(metrics, "baseline_method").String())
	rv := gjson.Get(metrics, `metrics.pl_orbper.diff_vs_baseline.Radial Velocity`)
	require.True(t, rv.Exists())
	assert.True(t, rv.Get("ci_low").Exists())
	assert.Equal(t, "insufficient_n", gjson.Get(metrics, "metrics.pl_orbper.diff_vs_baseline.Imaging.reason").String())

	stored, err := f.store.GetResult(context.Background(), runLog.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Transit", gjson.GetBytes(stored, "baseline_method").String())

	assert.Equal(t, []string{
		"stage_started:fetch", "stage_finished:fetch",
		"stage_started:clean", "stage_finished:clean",
		"stage_started:warehouse", "stage_finished:warehouse",
		"stage_started:analyze", "stage_finished:analyze",
		"stage_started:figures", "stage_finished:figures",
		"stage_started:report", "stage_finished:report",
		"run_finished",
	}, f.events.kinds())
}

func TestRun_IsDeterministic(t *testing.T) {
	a := newFixture(t, false)
	b := newFixture(t, false)

	_, err := a.svc.Run(context.Background())
	require.NoError(t, err)
	_, err = b.svc.Run(context.Background())
	require.NoError(t, err)

	assert.JSONEq(t, readFile(t, a.paths.MetricsJSON()), readFile(t, b.paths.MetricsJSON()))
}

func TestRun_FetchFailureWritesFailedLog(t *testing.T) {
	f := newFixture(t, false)
	f.fetcher.err = errors.New("archive unreachable")

	runLog, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch: archive unreachable")
	assert.Equal(t, run.StatusFailed, runLog.Status)

	runJSON := readFile(t, f.paths.RunJSON())
	assert.Equal(t, "failed", gjson.Get(runJSON, "status").String())
	assert.Contains(t, gjson.Get(runJSON, "error_summary").String(), "archive unreachable")
	assert.NoFileExists(t, f.paths.MetricsJSON())

	kinds := f.events.kinds()
	assert.Equal(t, "run_failed", kinds[len(kinds)-1])
}

func TestRun_BaselineMissingFails(t *testing.T) {
	f := newFixture(t, false)
	f.fetcher.csv = []byte("pl_name,discoverymethod,disc_year,pl_rade,pl_orbper,pl_bmasse,pl_bmassprov\nHD 1 b,Radial Velocity,1999,,330.1,620.4,Msini\n")

	_, err := f.svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "failed", gjson.Get(readFile(t, f.paths.RunJSON()), "status").String())
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.fetcher.calls)
}

func TestRunOffline_ReusesCleanSnapshot(t *testing.T) {
	f := newFixture(t, false)
	first, err := f.svc.Run(context.Background())
	require.NoError(t, err)
	before := readFile(t, f.paths.MetricsJSON())

	cleanPath := filepath.Join(f.paths.Root, filepath.FromSlash(first.Snapshots[run.SnapshotClean].Path))
	runLog, err := f.svc.RunOffline(context.Background(), cleanPath)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.calls, "offline runs do not fetch")
	assert.Equal(t, run.SourceOffline, runLog.DataSource[run.KeySource])

	after := readFile(t, f.paths.MetricsJSON())
	assert.JSONEq(t, gjson.Get(before, "metrics").Raw, gjson.Get(after, "metrics").Raw)
	assert.Contains(t, readFile(t, f.paths.ReportMarkdown()), "exocompare offline --clean")
}

func TestAnalyzeFile(t *testing.T) {
	f := newFixture(t, false)
	path := filepath.Join(t.TempDir(), "catalog.csv")
	require.NoError(t, os.WriteFile(path, catalogCSV(), 0o644))

	res, err := f.svc.AnalyzeFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Transit", res.BaselineMethod)
	assert.Equal(t, []string{"pl_rade", "pl_orbper", "pl_bmasse"}, res.Metrics.Keys())
	assert.NoFileExists(t, f.paths.MetricsJSON())
}

func TestAnalyzeWarehouse(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.Run(context.Background())
	require.NoError(t, err)

	res, err := f.svc.AnalyzeWarehouse(context.Background())
	require.NoError(t, err)
	block, ok := res.Metrics.Get("pl_orbper")
	require.True(t, ok)
	rv, ok := block.ByMethod.Get("Radial Velocity")
	require.True(t, ok)
	assert.Equal(t, 22, rv.NNonNull)
}

func TestAnalyzeWarehouse_NotConfigured(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.AnalyzeWarehouse(context.Background())
	assert.Error(t, err)
}
