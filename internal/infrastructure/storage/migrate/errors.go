package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrLedgerUnavailable means the ledger table could not be created or read.
	ErrLedgerUnavailable = errors.New("migration ledger unavailable")
	// ErrMigrationOrder means the static migration list is not strictly ascending.
	ErrMigrationOrder = errors.New("migrations not in strictly ascending order")
	// ErrUnknownLedgerEntry means the ledger references a migration this binary does not know.
	ErrUnknownLedgerEntry = errors.New("ledger entry for unknown migration")
	// ErrMigrationGap means a later migration is applied while an earlier one is not.
	ErrMigrationGap = errors.New("migration applied out of order")
)

// MigrationError reports the statement that broke a migration. The migration was rolled back.
type MigrationError struct {
	ID        string
	Name      string
	Statement int // -1 when the failure is outside a statement (begin, ledger, commit)
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Statement >= 0 {
		return fmt.Sprintf("migration %s (%s) statement %d: %v", e.ID, e.Name, e.Statement, e.Err)
	}
	return fmt.Sprintf("migration %s (%s): %v", e.ID, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// ObjectError reports a replaceable object that failed to refresh.
type ObjectError struct {
	Name string
	Err  error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("refresh object %s: %v", e.Name, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }
