package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"exocompare/adapters/table"
	"exocompare/adapters/tap"
	"exocompare/domain/compare"
	"exocompare/domain/core"
	"exocompare/domain/run"
	"exocompare/internal"
	"exocompare/internal/analysis"
	"exocompare/internal/config"
	apperrors "exocompare/internal/errors"
	"exocompare/internal/report"
	"exocompare/internal/telemetry"
	"exocompare/ports"
)

var logger = internal.DefaultLogger.WithComponent("pipeline")

// Stage names used for telemetry and progress events
const (
	StageFetch     = "fetch"
	StageClean     = "clean"
	StageWarehouse = "warehouse"
	StageAnalyze   = "analyze"
	StageFigures   = "figures"
	StageReport    = "report"
)

// CatalogFetcher retrieves the raw catalog payload
type CatalogFetcher interface {
	Fetch(ctx context.Context, q tap.Query) (*tap.FetchResult, error)
}

// PipelineDeps carries the collaborators of a PipelineService. Warehouse and
// Events are optional.
type PipelineDeps struct {
	Fetcher   CatalogFetcher
	Warehouse ports.WarehouseRepository
	RNG       ports.RNGPort
	Metrics   *telemetry.Metrics
	Events    ports.EventBroadcaster
	Clock     func() time.Time
}

// PipelineService runs fetch → snapshot → clean → warehouse → analyze → artifacts
type PipelineService struct {
	cfg       *config.Config
	paths     config.Paths
	fetcher   CatalogFetcher
	warehouse ports.WarehouseRepository
	assembler *analysis.Assembler
	metrics   *telemetry.Metrics
	events    ports.EventBroadcaster
	now       func() time.Time
}

// NewPipelineService creates a pipeline service
func NewPipelineService(cfg *config.Config, paths config.Paths, deps PipelineDeps) *PipelineService {
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.Metrics == nil {
		deps.Metrics = telemetry.New()
	}
	return &PipelineService{
		cfg:       cfg,
		paths:     paths,
		fetcher:   deps.Fetcher,
		warehouse: deps.Warehouse,
		assembler: analysis.NewAssembler(deps.RNG).WithClock(deps.Clock),
		metrics:   deps.Metrics,
		events:    deps.Events,
		now:       deps.Clock,
	}
}

// Run fetches a fresh catalog snapshot and produces every artifact. The run
// log is written even when a stage fails.
func (s *PipelineService) Run(ctx context.Context) (*run.RunLog, error) {
	runLog, ts, err := s.startRun("run")
	if err != nil {
		return nil, err
	}
	return runLog, s.finish(runLog, s.fetchAndPublish(ctx, runLog, ts))
}

// RunOffline re-runs the analysis from an existing clean snapshot without
// touching the network.
func (s *PipelineService) RunOffline(ctx context.Context, cleanPath string) (*run.RunLog, error) {
	runLog, _, err := s.startRun("offline --clean " + cleanPath)
	if err != nil {
		return nil, err
	}
	return runLog, s.finish(runLog, s.offlineAndPublish(ctx, runLog, cleanPath))
}

// AnalyzeFile computes a result from a CSV or XLSX file without writing artifacts
func (s *PipelineService) AnalyzeFile(ctx context.Context, path string) (*compare.Result, error) {
	t, _, err := s.readAndClean(path)
	if err != nil {
		return nil, err
	}
	return s.assembler.Compute(ctx, t, s.cfg.EngineConfig())
}

// AnalyzeWarehouse computes a result from the clean table stored in the warehouse
func (s *PipelineService) AnalyzeWarehouse(ctx context.Context) (*compare.Result, error) {
	if s.warehouse == nil {
		return nil, apperrors.ConfigInvalid("no warehouse configured")
	}
	t, err := s.warehouse.LoadCleanTable(ctx, s.cfg.Metrics.List)
	if err != nil {
		return nil, err
	}
	return s.assembler.Compute(ctx, t, s.cfg.EngineConfig())
}

func (s *PipelineService) startRun(command string) (*run.RunLog, core.Timestamp, error) {
	schemaHash, err := s.cfg.SchemaHash()
	if err != nil {
		return nil, core.Timestamp{}, apperrors.Wrap(err, "hash configuration")
	}
	if err := s.paths.EnsureDirs(); err != nil {
		return nil, core.Timestamp{}, apperrors.Wrap(err, "create output directories")
	}
	ts := core.NewTimestamp(s.now())
	runLog := run.NewRunLog(core.NewRunID(), ts, command, run.GitCommit(s.paths.Root), schemaHash)
	runLog.Filters["discoverymethod_in"] = s.cfg.Filters.DiscoveryMethodIn
	runLog.Columns["used"] = s.cfg.Columns.Used
	runLog.Bootstrap = run.BootstrapEcho{
		Seed:              s.cfg.Bootstrap.Seed,
		NResamples:        s.cfg.Bootstrap.NResamples,
		CI:                s.cfg.Bootstrap.CI,
		BaselineMethod:    s.cfg.Analysis.BaselineMethod,
		QuantileMethod:    s.cfg.Bootstrap.QuantileMethod,
		MinGroupSizeForCI: s.cfg.Thresholds.MinGroupSizeForCI,
		StdDDOF:           s.cfg.Analysis.StdDDOF,
	}
	logger.Info("run %s started (%s)", runLog.RunID, command)
	return runLog, ts, nil
}

func (s *PipelineService) fetchAndPublish(ctx context.Context, runLog *run.RunLog, ts core.Timestamp) error {
	if s.fetcher == nil {
		return apperrors.ConfigInvalid("no catalog fetcher configured")
	}
	var cleaned *compare.Table
	var cleanDigest string

	err := s.stage(ctx, runLog, StageFetch, func(ctx context.Context) error {
		res, err := s.fetcher.Fetch(ctx, tap.Query{
			Endpoint: s.cfg.Tap.Endpoint,
			Table:    s.cfg.Tap.Table,
			Format:   s.cfg.Tap.Format,
			Columns:  s.cfg.Columns.Used,
			Methods:  s.cfg.Filters.DiscoveryMethodIn,
		})
		if err != nil {
			return err
		}
		runLog.DataSource[run.KeySource] = run.SourceTAP
		runLog.DataSource[run.KeyTable] = s.cfg.Tap.Table
		runLog.DataSource[run.KeyTAPEndpoint] = s.cfg.Tap.Endpoint
		runLog.DataSource[run.KeyTAPMode] = s.cfg.Tap.Mode
		runLog.DataSource[run.KeyADQL] = res.ADQL
		runLog.DataSource[run.KeyURL] = res.URL
		runLog.HTTP = httpSection(res.HTTP)

		raw, err := table.ParseCSVBytes(res.CSV)
		if err != nil {
			return err
		}
		snap, err := table.NewSnapshotWriter(s.paths.DataRawDir, s.paths.DataCleanDir).WriteRaw(s.cfg.Tap.Table, ts, res.CSV, len(raw.Rows))
		if err != nil {
			return apperrors.Wrap(err, "write raw snapshot")
		}
		runLog.Snapshots[run.SnapshotRaw] = s.fileRef(snap)
		runLog.RowCounts["raw"] = len(raw.Rows)

		cleaned, err = s.cleaner().Clean(raw)
		return err
	})
	if err != nil {
		return err
	}

	err = s.stage(ctx, runLog, StageClean, func(ctx context.Context) error {
		snap, err := table.NewSnapshotWriter(s.paths.DataRawDir, s.paths.DataCleanDir).WriteClean(s.cfg.Tap.Table, ts, cleaned)
		if err != nil {
			return apperrors.Wrap(err, "write clean snapshot")
		}
		runLog.Snapshots[run.SnapshotClean] = s.fileRef(snap)
		runLog.RowCounts["clean"] = len(cleaned.Records)
		cleanDigest = snap.SHA256
		return nil
	})
	if err != nil {
		return err
	}
	return s.publish(ctx, runLog, cleaned, cleanDigest)
}

func (s *PipelineService) offlineAndPublish(ctx context.Context, runLog *run.RunLog, cleanPath string) error {
	var cleaned *compare.Table
	var digest string
	err := s.stage(ctx, runLog, StageClean, func(ctx context.Context) error {
		t, d, err := s.readAndClean(cleanPath)
		if err != nil {
			return err
		}
		cleaned, digest = t, d
		runLog.DataSource[run.KeySource] = run.SourceOffline
		runLog.DataSource[run.KeyReason] = "offline re-run"
		runLog.DataSource[run.KeyTable] = s.cfg.Tap.Table
		runLog.DataSource[run.KeyInputPath] = s.paths.Rel(cleanPath)
		runLog.Snapshots[run.SnapshotClean] = run.FileRef{Path: s.paths.Rel(cleanPath), SHA256: digest, Rows: len(t.Records)}
		runLog.RowCounts["clean"] = len(t.Records)
		return nil
	})
	if err != nil {
		return err
	}
	return s.publish(ctx, runLog, cleaned, digest)
}

// publish runs the stages shared by online and offline runs.
func (s *PipelineService) publish(ctx context.Context, runLog *run.RunLog, t *compare.Table, inputDigest string) error {
	if err := analysis.ValidateInputs(t, s.cfg.EngineConfig()); err != nil {
		return err
	}
	if s.warehouse != nil {
		err := s.stage(ctx, runLog, StageWarehouse, func(ctx context.Context) error {
			n, err := s.warehouse.ReplaceCleanTable(ctx, t)
			if err != nil {
				return err
			}
			runLog.Outputs[run.OutputWarehouse] = s.warehouseLabel()
			logger.Debug("loaded %d rows into the warehouse", n)
			return nil
		})
		if err != nil {
			return err
		}
	}

	var result *compare.Result
	err := s.stage(ctx, runLog, StageAnalyze, func(ctx context.Context) error {
		engineCfg := s.cfg.EngineConfig()
		miss, err := analysis.Missingness(t, engineCfg.MethodOrder, engineCfg.Metrics)
		if err != nil {
			return err
		}
		runLog.Missingness = miss
		s.warnSmallGroups(miss)

		result, err = s.assembler.Compute(ctx, t, engineCfg)
		if err != nil {
			return err
		}
		gated, computed := s.metrics.ObserveResult(result)
		logger.Info("analysis done: %d intervals computed, %d gated", computed, gated)

		if err := writeJSON(s.paths.MetricsJSON(), result); err != nil {
			return apperrors.Wrap(err, "write metrics.json")
		}
		runLog.Outputs[run.OutputMetrics] = s.paths.Rel(s.paths.MetricsJSON())
		if s.warehouse != nil {
			return s.warehouse.SaveResult(ctx, runLog.RunID, runLog.SchemaHash, result)
		}
		return nil
	})
	if err != nil {
		return err
	}

	var figures []string
	err = s.stage(ctx, runLog, StageFigures, func(ctx context.Context) error {
		names, err := report.NewFigureWriter(s.paths.FiguresDir).WriteAll(result)
		figures = names
		runLog.Outputs[run.OutputFiguresDir] = s.paths.Rel(s.paths.FiguresDir)
		return err
	})
	if err != nil {
		return err
	}

	fp := run.NewRunFingerprint(runLog.SchemaHash, inputDigest, s.cfg.Bootstrap.Seed, runLog.GitCommit)
	runLog.Fingerprint = &fp
	runLog.Outputs[run.OutputReportMD] = s.paths.Rel(s.paths.ReportMarkdown())
	runLog.Outputs[run.OutputReportHTML] = s.paths.Rel(s.paths.ReportHTML())
	runLog.FinalizeSuccess()
	if err := runLog.WriteJSON(s.paths.RunJSON()); err != nil {
		return apperrors.Wrap(err, "write run.json")
	}

	return s.stage(ctx, runLog, StageReport, func(ctx context.Context) error {
		return report.WriteFiles(s.paths.ReportMarkdown(), s.paths.ReportHTML(), report.Input{
			Run:     runLog,
			Result:  result,
			Figures: figures,
		})
	})
}

// finish records the outcome; on failure run.json is rewritten with status failed.
func (s *PipelineService) finish(runLog *run.RunLog, err error) error {
	if err == nil {
		s.metrics.ObserveRun(string(run.StatusSuccess))
		s.emit(run.Event{RunID: runLog.RunID, Kind: run.EventRunFinished})
		logger.Info("run %s finished", runLog.RunID)
		return nil
	}
	runLog.FinalizeFailure(err)
	if werr := runLog.WriteJSON(s.paths.RunJSON()); werr != nil {
		logger.Error("could not write failed run log: %v", werr)
	}
	s.metrics.ObserveRun(string(run.StatusFailed))
	s.emit(run.Event{RunID: runLog.RunID, Kind: run.EventRunFailed, Message: *runLog.ErrorSummary})
	logger.Error("run %s failed: %v", runLog.RunID, err)
	return err
}

// stage times fn, reports progress and stops early on cancellation.
func (s *PipelineService) stage(ctx context.Context, runLog *run.RunLog, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	stop := s.metrics.StartStage(name)
	s.emit(run.Event{RunID: runLog.RunID, Kind: run.EventStageStarted, Stage: name})
	err := fn(ctx)
	stop()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	s.emit(run.Event{RunID: runLog.RunID, Kind: run.EventStageFinished, Stage: name, Elapsed: time.Since(start).Seconds()})
	return nil
}

func (s *PipelineService) emit(e run.Event) {
	if s.events == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	s.events.Broadcast(e)
}

func (s *PipelineService) cleaner() *table.Cleaner {
	return table.NewCleaner(s.cfg.Filters.DiscoveryMethodIn, s.cfg.Metrics.List, s.cfg.Analysis.BaselineMethod)
}

func (s *PipelineService) readAndClean(path string) (*compare.Table, string, error) {
	raw, err := table.NewDataReader(path).ReadData()
	if err != nil {
		return nil, "", err
	}
	t, err := s.cleaner().Clean(raw)
	if err != nil {
		return nil, "", err
	}
	digest, err := core.HashFile(path)
	if err != nil {
		return nil, "", apperrors.Wrap(err, "hash input")
	}
	return t, digest.Labeled(), nil
}

func (s *PipelineService) fileRef(snap table.Snapshot) run.FileRef {
	return run.FileRef{Path: s.paths.Rel(snap.Path), SHA256: snap.SHA256, Rows: snap.Rows}
}

func (s *PipelineService) warehouseLabel() string {
	if s.cfg.Warehouse.Enabled() {
		return "postgres"
	}
	return s.paths.Rel(s.paths.Warehouse)
}

// warnSmallGroups logs groups below the descriptive minimum size.
func (s *PipelineService) warnSmallGroups(miss *compare.Missingness) {
	minSize := s.cfg.Thresholds.MinGroupSize
	for _, group := range miss.Keys() {
		byMetric, _ := miss.Get(group)
		for _, metric := range byMetric.Keys() {
			mc, _ := byMetric.Get(metric)
			if mc.NNonNull < minSize {
				logger.Warn("%s/%s has %d non-null values (< %d); summaries are unreliable", group, metric, mc.NNonNull, minSize)
			}
		}
	}
}

func httpSection(m tap.HTTPMeta) map[string]any {
	out := map[string]any{
		"status":         m.Status,
		"content_type":   m.ContentType,
		"response_bytes": m.ResponseBytes,
		"attempts":       m.Attempts,
		"method":         m.Method,
	}
	if m.ContentLengthBytes != nil {
		out["content_length_bytes"] = *m.ContentLengthBytes
	}
	return out
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
