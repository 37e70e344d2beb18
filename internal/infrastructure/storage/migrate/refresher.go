package migrate

import (
	"context"

	"github.com/rs/zerolog/log"

	"mktdata/internal/infrastructure/storage"
)

// Refresher re-issues every replaceable object definition. It keeps no state:
// running it N times leaves the same objects as running it once.
type Refresher struct {
	db      *storage.DB
	objects []ReplaceableObject
}

func NewRefresher(db *storage.DB, objects []ReplaceableObject) *Refresher {
	return &Refresher{db: db, objects: objects}
}

// RefreshAll recreates objects in declared order, one transaction each.
// The first failure stops the refresh; committed migrations are not touched.
func (r *Refresher) RefreshAll(ctx context.Context) ([]string, error) {
	refreshed := []string{}
	for _, obj := range r.objects {
		stmts := obj.Definition(r.db.Dialect())
		err := r.db.WithTx(ctx, func(tx *storage.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return refreshed, &ObjectError{Name: obj.Name, Err: err}
		}
		log.Debug().Str("object", obj.Name).Str("kind", string(obj.Kind)).Msg("object refreshed")
		refreshed = append(refreshed, obj.Name)
	}
	return refreshed, nil
}
