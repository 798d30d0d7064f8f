package config

import (
	"os"
	"path/filepath"
)

// Paths resolves every filesystem location from one project root. Nothing
// else in the repository builds output paths by hand.
type Paths struct {
	Root         string
	DataRawDir   string
	DataCleanDir string
	ArtifactsDir string
	FiguresDir   string
	Warehouse    string
}

// ResolvePaths anchors the configured output directories at root
func ResolvePaths(root string, cfg *Config) (Paths, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Root:         abs,
		DataRawDir:   filepath.Join(abs, cfg.Outputs.DataRawDir),
		DataCleanDir: filepath.Join(abs, cfg.Outputs.DataCleanDir),
		ArtifactsDir: filepath.Join(abs, cfg.Outputs.ArtifactsDir),
		FiguresDir:   filepath.Join(abs, cfg.Outputs.FiguresDir),
		Warehouse:    filepath.Join(abs, cfg.Outputs.WarehousePath),
	}, nil
}

// EnsureDirs creates every output directory
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.DataRawDir, p.DataCleanDir, p.ArtifactsDir, p.FiguresDir, filepath.Dir(p.Warehouse)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// MetricsJSON is where the analysis result is written
func (p Paths) MetricsJSON() string { return filepath.Join(p.ArtifactsDir, "metrics.json") }

// RunJSON is where the run log is written
func (p Paths) RunJSON() string { return filepath.Join(p.ArtifactsDir, "run.json") }

// ReportMarkdown is where the Markdown report is written
func (p Paths) ReportMarkdown() string { return filepath.Join(p.ArtifactsDir, "report.md") }

// ReportHTML is where the HTML rendering of the report is written
func (p Paths) ReportHTML() string { return filepath.Join(p.ArtifactsDir, "report.html") }

// Rel expresses path relative to the root with forward slashes, as written into run logs.
func (p Paths) Rel(path string) string {
	rel, err := filepath.Rel(p.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
