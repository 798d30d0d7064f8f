package table

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

// Snapshot describes one written data file
type Snapshot struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Rows   int    `json:"rows"`
}

// SnapshotWriter persists raw and clean tables with timestamped names
type SnapshotWriter struct {
	rawDir   string
	cleanDir string
}

// NewSnapshotWriter creates a writer for the raw and clean data directories
func NewSnapshotWriter(rawDir, cleanDir string) *SnapshotWriter {
	return &SnapshotWriter{rawDir: rawDir, cleanDir: cleanDir}
}

// RawName is <table>_<compact timestamp>.csv
func RawName(table string, ts core.Timestamp) string {
	return fmt.Sprintf("%s_%s.csv", table, ts.Compact())
}

// CleanName is <table>_clean_<compact timestamp>.csv
func CleanName(table string, ts core.Timestamp) string {
	return fmt.Sprintf("%s_clean_%s.csv", table, ts.Compact())
}

// WriteRaw stores the payload exactly as received
func (w *SnapshotWriter) WriteRaw(table string, ts core.Timestamp, payload []byte, rows int) (Snapshot, error) {
	if err := os.MkdirAll(w.rawDir, 0o755); err != nil {
		return Snapshot{}, err
	}
	path := filepath.Join(w.rawDir, RawName(table, ts))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return Snapshot{}, fmt.Errorf("write raw snapshot: %w", err)
	}
	return finish(path, rows)
}

// WriteClean stores the clean table as CSV; null cells are written empty
func (w *SnapshotWriter) WriteClean(table string, ts core.Timestamp, t *compare.Table) (Snapshot, error) {
	if err := os.MkdirAll(w.cleanDir, 0o755); err != nil {
		return Snapshot{}, err
	}
	path := filepath.Join(w.cleanDir, CleanName(table, ts))
	if err := WriteCleanCSV(path, t); err != nil {
		return Snapshot{}, err
	}
	return finish(path, len(t.Records))
}

// WriteCleanCSV writes t to path with the standard column layout
func WriteCleanCSV(path string, t *compare.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	header := append([]string{compare.ColumnName, compare.ColumnMethod, compare.ColumnYear}, t.Measurements...)
	header = append(header, compare.ColumnMassProvenance)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range t.Records {
		row := []string{r.Name, r.Group, ""}
		if r.Year != nil {
			row[2] = strconv.Itoa(*r.Year)
		}
		for _, m := range t.Measurements {
			if v, ok := r.Value(m); ok {
				row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		row = append(row, r.Provenance)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

func finish(path string, rows int) (Snapshot, error) {
	h, err := core.HashFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Path: path, SHA256: h.Labeled(), Rows: rows}, nil
}
