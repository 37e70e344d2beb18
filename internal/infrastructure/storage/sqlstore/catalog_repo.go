package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
	"mktdata/internal/infrastructure/storage"
)

const instrumentColumns = `id, asset_class, symbol, provider_code, name, exchange, currency, country, instrument_type, isin`

// CatalogRepo persists instruments.
type CatalogRepo struct {
	db *storage.DB
}

func NewCatalogRepo(db *storage.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) ListInstruments(ctx context.Context, class model.AssetClass) ([]model.Instrument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE asset_class = ? ORDER BY symbol`, string(class))
	if err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instrument: %w", err)
		}
		out = append(out, *inst)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) GetInstrument(ctx context.Context, class model.AssetClass, symbol string) (*model.Instrument, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE asset_class = ? AND symbol = ?`, string(class), symbol)
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("instrument %s:%s: %w", class, symbol, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instrument %s:%s: %w", class, symbol, err)
	}
	return inst, nil
}

// UpsertInstrument keeps the stored id on conflict and writes it back into inst.
func (r *CatalogRepo) UpsertInstrument(ctx context.Context, inst *model.Instrument) error {
	id := inst.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := time.Now().UnixMilli()

	var stored uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO instruments(`+instrumentColumns+`, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_class, symbol) DO UPDATE SET
		provider_code=excluded.provider_code, name=excluded.name, exchange=excluded.exchange,
		currency=excluded.currency, country=excluded.country, instrument_type=excluded.instrument_type,
		isin=excluded.isin, updated_at=excluded.updated_at
		RETURNING id
	`, id, string(inst.AssetClass), inst.Symbol, inst.ProviderCode, inst.Name, inst.Exchange,
		inst.Currency, inst.Country, inst.Type, inst.ISIN, now, now).Scan(&stored)
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.Key(), err)
	}
	inst.ID = stored
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(row rowScanner) (*model.Instrument, error) {
	var inst model.Instrument
	var class string
	err := row.Scan(&inst.ID, &class, &inst.Symbol, &inst.ProviderCode, &inst.Name,
		&inst.Exchange, &inst.Currency, &inst.Country, &inst.Type, &inst.ISIN)
	if err != nil {
		return nil, err
	}
	inst.AssetClass = model.AssetClass(class)
	return &inst, nil
}

var _ port.CatalogRepository = (*CatalogRepo)(nil)
