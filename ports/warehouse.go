package ports

import (
	"context"

	"exocompare/domain/compare"
	"exocompare/domain/core"
)

// WarehouseRepository stores the clean table and analysis results of each run
type WarehouseRepository interface {
	// ReplaceCleanTable drops and recreates clean_planets from t in one transaction.
	ReplaceCleanTable(ctx context.Context, t *compare.Table) (int, error)
	LoadCleanTable(ctx context.Context, metrics []string) (*compare.Table, error)

	SaveResult(ctx context.Context, runID core.RunID, schemaHash string, result *compare.Result) error
	GetResult(ctx context.Context, runID core.RunID) ([]byte, error)
	LatestRunID(ctx context.Context) (core.RunID, error)
}
