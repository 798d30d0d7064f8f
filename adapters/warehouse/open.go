package warehouse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"exocompare/internal/errors"
	"exocompare/internal/migration"
)

// Open connects to Postgres when url is set, otherwise to a SQLite file at
// path, and runs the schema migrations.
func Open(ctx context.Context, url, path string) (*sqlx.DB, error) {
	driver, dsn := "postgres", url
	if url == "" || strings.HasPrefix(url, "sqlite3://") {
		driver = "sqlite3"
		dsn = strings.TrimPrefix(url, "sqlite3://")
		if dsn == "" {
			dsn = path
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.DatabaseError(fmt.Sprintf("failed to connect to %s warehouse", driver), err)
	}
	if driver == "sqlite3" {
		// one connection keeps :memory: databases and transactions coherent
		db.SetMaxOpenConns(1)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
