package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"mktdata/internal/infrastructure/storage"
)

// Open opens (creating if needed) a SQLite database file.
// The pool is limited to one connection so writers serialise instead of failing with SQLITE_BUSY.
func Open(ctx context.Context, path string) (*storage.DB, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite open failed: %w", err)
	}
	return storage.New(db, storage.DialectSQLite), nil
}
