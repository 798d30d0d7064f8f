package warehouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"

	"exocompare/domain/compare"
	"exocompare/domain/core"
	"exocompare/ports"
)

// CleanTableName is the warehouse table holding the latest clean dataset
const CleanTableName = "clean_planets"

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// warehouseRepository implements ports.WarehouseRepository over sqlx
type warehouseRepository struct {
	db *sqlx.DB
}

// NewWarehouseRepository creates a new warehouse repository
func NewWarehouseRepository(db *sqlx.DB) ports.WarehouseRepository {
	return &warehouseRepository{db: db}
}

// ReplaceCleanTable recreates clean_planets with one column per measurement
func (r *warehouseRepository) ReplaceCleanTable(ctx context.Context, t *compare.Table) (int, error) {
	for _, m := range t.Measurements {
		if !identifier.MatchString(m) {
			return 0, fmt.Errorf("measurement %q is not a valid column name", m)
		}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+CleanTableName); err != nil {
		return 0, fmt.Errorf("failed to drop %s: %w", CleanTableName, err)
	}

	cols := []string{
		compare.ColumnName + " TEXT NOT NULL",
		compare.ColumnMethod + " TEXT NOT NULL",
		compare.ColumnYear + " INTEGER",
	}
	for _, m := range t.Measurements {
		cols = append(cols, m+" DOUBLE PRECISION")
	}
	cols = append(cols, compare.ColumnMassProvenance+" TEXT")
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", CleanTableName, strings.Join(cols, ", "))); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", CleanTableName, err)
	}

	names := append([]string{compare.ColumnName, compare.ColumnMethod, compare.ColumnYear}, t.Measurements...)
	names = append(names, compare.ColumnMassProvenance)
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := tx.PreparexContext(ctx, tx.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", CleanTableName, strings.Join(names, ", "), marks)))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range t.Records {
		args := []interface{}{rec.Name, rec.Group, nullInt(rec.Year)}
		for _, m := range t.Measurements {
			if v, ok := rec.Value(m); ok {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}
		args = append(args, rec.Provenance)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("failed to insert %s: %w", rec.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return len(t.Records), nil
}

// LoadCleanTable reads clean_planets back in insertion order
func (r *warehouseRepository) LoadCleanTable(ctx context.Context, metrics []string) (*compare.Table, error) {
	for _, m := range metrics {
		if !identifier.MatchString(m) {
			return nil, fmt.Errorf("measurement %q is not a valid column name", m)
		}
	}
	names := append([]string{compare.ColumnName, compare.ColumnMethod, compare.ColumnYear, compare.ColumnMassProvenance}, metrics...)
	rows, err := r.db.QueryxContext(ctx, fmt.Sprintf("SELECT %s FROM %s", strings.Join(names, ", "), CleanTableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", CleanTableName, err)
	}
	defer rows.Close()

	t := &compare.Table{Measurements: append([]string(nil), metrics...)}
	for rows.Next() {
		var (
			rec  compare.Record
			year sql.NullInt64
			prov sql.NullString
		)
		vals := make([]sql.NullFloat64, len(metrics))
		dest := []interface{}{&rec.Name, &rec.Group, &year, &prov}
		for i := range vals {
			dest = append(dest, &vals[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if year.Valid {
			y := int(year.Int64)
			rec.Year = &y
		}
		rec.Provenance = prov.String
		rec.Values = make(map[string]float64, len(metrics))
		for i, m := range metrics {
			if vals[i].Valid {
				rec.Values[m] = vals[i].Float64
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t, rows.Err()
}

// SaveResult stores the metrics document of one run
func (r *warehouseRepository) SaveResult(ctx context.Context, runID core.RunID, schemaHash string, result *compare.Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO analysis_results
		(run_id, generated_utc, baseline_method, schema_hash, metrics_json)
		VALUES (?, ?, ?, ?, ?)`),
		string(runID), result.GeneratedUTC, result.BaselineMethod, schemaHash, string(doc))
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

// GetResult returns the stored metrics document of a run
func (r *warehouseRepository) GetResult(ctx context.Context, runID core.RunID) ([]byte, error) {
	var doc string
	err := r.db.GetContext(ctx, &doc, r.db.Rebind(`SELECT metrics_json FROM analysis_results WHERE run_id = ?`), string(runID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: run %s", core.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return []byte(doc), nil
}

// LatestRunID returns the most recently generated run
func (r *warehouseRepository) LatestRunID(ctx context.Context) (core.RunID, error) {
	var id string
	err := r.db.GetContext(ctx, &id, `SELECT run_id FROM analysis_results ORDER BY generated_utc DESC, run_id DESC LIMIT 1`)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", core.ErrNotFound
		}
		return "", fmt.Errorf("failed to get latest run: %w", err)
	}
	return core.RunID(id), nil
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int64(*v)
}
