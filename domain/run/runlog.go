package run

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

// Data source kinds recorded under data_source.source
const (
	SourceTAP     = "tap"
	SourceOffline = "offline"
	SourceFile    = "file"
)

// Keys of the data_source, snapshots and outputs sections
const (
	KeySource      = "source"
	KeyTable       = "table"
	KeyADQL        = "adql"
	KeyURL         = "url"
	KeyTAPEndpoint = "tap_endpoint"
	KeyTAPMode     = "tap_mode"
	KeyReason      = "reason"
	KeyInputPath   = "input_path"

	SnapshotRaw   = "raw"
	SnapshotClean = "clean"

	OutputWarehouse  = "warehouse"
	OutputFiguresDir = "figures_dir"
	OutputMetrics    = "metrics"
	OutputReportMD   = "report_md"
	OutputReportHTML = "report_html"
)

// RunLog is the audit record written to run.json for every pipeline run,
// successful or not.
type RunLog struct {
	GeneratedUTC string               `json:"generated_utc"`
	RunID        core.RunID           `json:"run_id"`
	GitCommit    string               `json:"git_commit"`
	Go           map[string]string    `json:"go"`
	Command      string               `json:"command"`
	DataSource   map[string]any       `json:"data_source"`
	HTTP         map[string]any       `json:"http"`
	Filters      map[string]any       `json:"filters"`
	Columns      map[string]any       `json:"columns"`
	RowCounts    map[string]int       `json:"row_counts"`
	SchemaHash   string               `json:"schema_hash"`
	Bootstrap    BootstrapEcho        `json:"bootstrap"`
	Snapshots    map[string]FileRef   `json:"snapshots"`
	Missingness  *compare.Missingness `json:"missingness"`
	Outputs      map[string]string    `json:"outputs"`
	Fingerprint  *RunFingerprint      `json:"fingerprint,omitempty"`
	Libraries    map[string]string    `json:"libraries"`
	Status       Status               `json:"status"`
	ErrorSummary *string              `json:"error_summary"`
}

// NewRunLog starts a log in the running state
func NewRunLog(runID core.RunID, ts core.Timestamp, command, gitCommit, schemaHash string) *RunLog {
	return &RunLog{
		GeneratedUTC: ts.UTCISO(),
		RunID:        runID,
		GitCommit:    gitCommit,
		Go:           map[string]string{"version": runtime.Version()},
		Command:      command,
		DataSource:   map[string]any{},
		HTTP:         map[string]any{},
		Filters:      map[string]any{},
		Columns:      map[string]any{},
		RowCounts:    map[string]int{},
		SchemaHash:   schemaHash,
		Snapshots:    map[string]FileRef{},
		Outputs:      map[string]string{},
		Libraries:    CollectLibraryVersions(),
		Status:       StatusRunning,
	}
}

// FinalizeSuccess marks the run successful
func (l *RunLog) FinalizeSuccess() {
	l.Status = StatusSuccess
	l.ErrorSummary = nil
}

// FinalizeFailure marks the run failed, keeping the last line of the error
func (l *RunLog) FinalizeFailure(err error) {
	l.Status = StatusFailed
	msg := "unknown error"
	if err != nil {
		lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
		msg = lines[len(lines)-1]
	}
	l.ErrorSummary = &msg
}

// WriteJSON writes the log as indented JSON with a trailing newline
func (l *RunLog) WriteJSON(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run log: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// trackedModules are reported in the libraries section when linked in.
var trackedModules = []string{
	"gonum.org/v1/gonum",
	"github.com/montanaflynn/stats",
	"github.com/xuri/excelize/v2",
	"github.com/jmoiron/sqlx",
	"github.com/lib/pq",
	"github.com/mattn/go-sqlite3",
	"github.com/wcharczuk/go-chart/v2",
	"github.com/jedib0t/go-pretty/v6",
	"github.com/gomarkdown/markdown",
	"github.com/gin-gonic/gin",
}

// CollectLibraryVersions reads module versions from the build info
func CollectLibraryVersions() map[string]string {
	out := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	tracked := make(map[string]bool, len(trackedModules))
	for _, m := range trackedModules {
		tracked[m] = true
	}
	for _, dep := range info.Deps {
		if tracked[dep.Path] {
			out[dep.Path] = dep.Version
		}
	}
	return out
}

// GitCommit returns the short commit of the repository at root, or "UNKNOWN"
func GitCommit(root string) string {
	head, err := os.ReadFile(filepath.Join(root, ".git", "HEAD"))
	if err != nil {
		return "UNKNOWN"
	}
	txt := strings.TrimSpace(string(head))
	if ref, ok := strings.CutPrefix(txt, "ref: "); ok {
		sha, err := os.ReadFile(filepath.Join(root, ".git", filepath.FromSlash(strings.TrimSpace(ref))))
		if err != nil {
			return "UNKNOWN"
		}
		txt = strings.TrimSpace(string(sha))
	}
	if len(txt) > 7 {
		txt = txt[:7]
	}
	return txt
}
