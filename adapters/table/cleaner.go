package table

import (
	"fmt"
	"math"
	"strconv"

	"exocompare/domain/compare"
	"exocompare/domain/core"
	"exocompare/internal/errors"
)

// Cleaner turns a raw planet table into the typed analysis table.
type Cleaner struct {
	AllowedMethods []string
	Metrics        []string
	BaselineMethod string
}

// NewCleaner creates a cleaner for the given filter, metrics and baseline
func NewCleaner(allowed, metrics []string, baseline string) *Cleaner {
	return &Cleaner{AllowedMethods: allowed, Metrics: metrics, BaselineMethod: baseline}
}

// RequiredColumns lists the columns a raw table must carry
func (c *Cleaner) RequiredColumns() []string {
	return append([]string{compare.ColumnName, compare.ColumnMethod, compare.ColumnMassProvenance}, c.Metrics...)
}

// Clean applies, in order: the required column check, numeric coercion
// (unparseable or non-finite cells become null), the discovery method filter,
// and the positivity constraint (metric <= 0 becomes null). The baseline
// method must survive cleaning.
func (c *Cleaner) Clean(raw *RawTable) (*compare.Table, error) {
	var missing []string
	for _, col := range c.RequiredColumns() {
		if !raw.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("%w: %v", core.ErrMissingColumn, missing))
	}

	allowed := make(map[string]bool, len(c.AllowedMethods))
	for _, m := range c.AllowedMethods {
		allowed[m] = true
	}

	out := &compare.Table{Measurements: append([]string(nil), c.Metrics...)}
	for _, row := range raw.Rows {
		method := row[compare.ColumnMethod]
		if !allowed[method] {
			continue
		}
		rec := compare.Record{
			Name:       row[compare.ColumnName],
			Group:      method,
			Provenance: row[compare.ColumnMassProvenance],
			Year:       parseYear(row[compare.ColumnYear]),
			Values:     make(map[string]float64, len(c.Metrics)),
		}
		for _, m := range c.Metrics {
			if v, ok := parseNumber(row[m]); ok && v > 0 {
				rec.Values[m] = v
			}
		}
		out.Records = append(out.Records, rec)
	}

	if !out.HasGroup(c.BaselineMethod) {
		return nil, errors.WithCode(errors.CodeInvalidInput, fmt.Errorf("%w after cleaning: %s", core.ErrBaselineMissing, c.BaselineMethod))
	}

	logger.Info("cleaned %d of %d rows (%d methods kept)", len(out.Records), len(raw.Rows), len(c.AllowedMethods))
	return out, nil
}

func parseNumber(cell string) (float64, bool) {
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseYear(cell string) *int {
	v, ok := parseNumber(cell)
	if !ok || v != math.Trunc(v) {
		return nil
	}
	y := int(v)
	return &y
}
