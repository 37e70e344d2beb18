package migrate

import (
	"context"
	"fmt"
	"time"

	"mktdata/internal/infrastructure/storage"
)

const ledgerTable = "schema_migrations"

// LedgerEntry records one applied migration.
type LedgerEntry struct {
	MigrationID string
	Name        string
	AppliedAt   time.Time
}

// Ledger is the append-only record of applied migrations.
type Ledger struct {
	db *storage.DB
}

func NewLedger(db *storage.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureTable creates the ledger table. It precedes every migration,
// including the first, so it cannot itself be a migration.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	_, err := l.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS `+ledgerTable+` (
  migration_id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  applied_at BIGINT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return nil
}

func (l *Ledger) HasApplied(ctx context.Context, migrationID string) (bool, error) {
	var n int
	err := l.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+ledgerTable+` WHERE migration_id = ?`, migrationID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return n > 0, nil
}

// RecordApplied inserts the entry inside the migration's own transaction,
// so the entry and the schema change commit together.
func (l *Ledger) RecordApplied(ctx context.Context, tx *storage.Tx, migrationID, name string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO `+ledgerTable+`(migration_id, name, applied_at) VALUES(?, ?, ?)`,
		migrationID, name, time.Now().UnixMilli())
	return err
}

// ListApplied returns entries ordered by migration id.
func (l *Ledger) ListApplied(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := l.db.Query(ctx, `SELECT migration_id, name, applied_at FROM `+ledgerTable+` ORDER BY migration_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var appliedMs int64
		if err := rows.Scan(&e.MigrationID, &e.Name, &appliedMs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
		e.AppliedAt = time.UnixMilli(appliedMs).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return entries, nil
}
