package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"mktdata/internal/infrastructure/storage"
)

// Runner applies pending migrations strictly in ascending id order.
type Runner struct {
	db         *storage.DB
	ledger     *Ledger
	migrations []Migration
}

func NewRunner(db *storage.DB, ledger *Ledger, migrations []Migration) *Runner {
	return &Runner{db: db, ledger: ledger, migrations: migrations}
}

// ApplyPending applies every migration missing from the ledger and returns
// their names in application order. The first failure aborts the run; the
// failed migration is rolled back and nothing after it is attempted.
func (r *Runner) ApplyPending(ctx context.Context) ([]string, error) {
	if err := validateOrder(r.migrations); err != nil {
		return nil, err
	}
	if err := r.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}
	entries, err := r.ledger.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.checkLedger(entries); err != nil {
		return nil, err
	}

	applied := []string{}
	for _, m := range r.migrations {
		done, err := r.ledger.HasApplied(ctx, m.ID)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}

		start := time.Now()
		if err := r.apply(ctx, m); err != nil {
			log.Error().
				Str("migration", m.ID).
				Str("name", m.Name).
				Err(err).
				Msg("migration failed, rolled back")
			return applied, err
		}
		log.Info().
			Str("migration", m.ID).
			Str("name", m.Name).
			Dur("took", time.Since(start)).
			Msg("migration applied")
		applied = append(applied, m.Name)
	}
	return applied, nil
}

func (r *Runner) apply(ctx context.Context, m Migration) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &MigrationError{ID: m.ID, Name: m.Name, Statement: -1, Err: err}
	}
	for i, stmt := range m.Statements {
		if _, err := tx.Exec(ctx, renderTypes(r.db.Dialect(), stmt)); err != nil {
			_ = tx.Rollback()
			return &MigrationError{ID: m.ID, Name: m.Name, Statement: i, Err: err}
		}
	}
	if err := r.ledger.RecordApplied(ctx, tx, m.ID, m.Name); err != nil {
		_ = tx.Rollback()
		return &MigrationError{ID: m.ID, Name: m.Name, Statement: -1, Err: fmt.Errorf("record ledger: %w", err)}
	}
	if err := tx.Commit(); err != nil {
		return &MigrationError{ID: m.ID, Name: m.Name, Statement: -1, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// checkLedger rejects orphan entries and entries that skipped an earlier migration.
func (r *Runner) checkLedger(entries []LedgerEntry) error {
	applied := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		applied[e.MigrationID] = struct{}{}
	}
	known := make(map[string]struct{}, len(r.migrations))
	for _, m := range r.migrations {
		known[m.ID] = struct{}{}
	}
	for _, e := range entries {
		if _, ok := known[e.MigrationID]; !ok {
			return fmt.Errorf("%w: %s (%s)", ErrUnknownLedgerEntry, e.MigrationID, e.Name)
		}
	}

	pending := ""
	for _, m := range r.migrations {
		_, ok := applied[m.ID]
		if !ok && pending == "" {
			pending = m.ID
			continue
		}
		if ok && pending != "" {
			return fmt.Errorf("%w: %s applied but %s is not", ErrMigrationGap, m.ID, pending)
		}
	}
	return nil
}

func validateOrder(ms []Migration) error {
	for i, m := range ms {
		if m.ID == "" {
			return fmt.Errorf("%w: migration %d has empty id", ErrMigrationOrder, i)
		}
		if i > 0 && ms[i-1].ID >= m.ID {
			return fmt.Errorf("%w: %s after %s", ErrMigrationOrder, m.ID, ms[i-1].ID)
		}
	}
	return nil
}
