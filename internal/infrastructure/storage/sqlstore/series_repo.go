package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
	"mktdata/internal/infrastructure/storage"
)

var barValueColumns = []string{"open", "high", "low", "close", "adjusted_close", "volume"}

// SeriesRepo persists price bars.
type SeriesRepo struct {
	db         *storage.DB
	upsertStmt string
}

func NewSeriesRepo(db *storage.DB) *SeriesRepo {
	return &SeriesRepo{db: db, upsertStmt: upsertBarSQL(db.Dialect())}
}

// upsertBarSQL only rewrites a stored bar when a value actually changed,
// so RowsAffected counts inserts and corrections but not re-fetched duplicates.
func upsertBarSQL(d storage.Dialect) string {
	sets := make([]string, 0, len(barValueColumns)+1)
	changed := make([]string, 0, len(barValueColumns))
	for _, c := range barValueColumns {
		sets = append(sets, c+"=excluded."+c)
		changed = append(changed, d.Distinct("price_bars."+c, "excluded."+c))
	}
	sets = append(sets, "updated_at=excluded.updated_at")

	return `INSERT INTO price_bars(instrument_id, ts_ms, open, high, low, close, adjusted_close, volume, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(instrument_id, ts_ms) DO UPDATE SET ` + strings.Join(sets, ", ") + `
		WHERE ` + strings.Join(changed, " OR ")
}

func (r *SeriesRepo) LatestBarTime(ctx context.Context, instrumentID uuid.UUID) (int64, bool, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(ctx, `SELECT MAX(ts_ms) FROM price_bars WHERE instrument_id = ?`, instrumentID).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("latest bar for %s: %w", instrumentID, err)
	}
	return ts.Int64, ts.Valid, nil
}

func (r *SeriesRepo) UpsertBars(ctx context.Context, bars []model.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	written := 0
	err := r.db.WithTx(ctx, func(tx *storage.Tx) error {
		stmt, err := tx.Prepare(ctx, r.upsertStmt)
		if err != nil {
			return err
		}
		defer stmt.Close()

		now := time.Now().UnixMilli()
		for _, b := range bars {
			res, err := stmt.ExecContext(ctx, b.InstrumentID, b.Timestamp,
				b.Open, b.High, b.Low, b.Close, b.AdjustedClose, b.Volume, now)
			if err != nil {
				return fmt.Errorf("bar %s@%d: %w", b.InstrumentID, b.Timestamp, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			written += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("upsert bars: %w", err)
	}
	return written, nil
}

// CountBars returns the number of stored bars for an instrument.
func (r *SeriesRepo) CountBars(ctx context.Context, instrumentID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM price_bars WHERE instrument_id = ?`, instrumentID).Scan(&n)
	return n, err
}

// GetBar loads one bar by its key. Returns port.ErrNotFound when absent.
func (r *SeriesRepo) GetBar(ctx context.Context, instrumentID uuid.UUID, ts int64) (*model.PriceBar, error) {
	b := model.PriceBar{InstrumentID: instrumentID, Timestamp: ts}
	err := r.db.QueryRow(ctx, `
		SELECT open, high, low, close, adjusted_close, volume
		FROM price_bars WHERE instrument_id = ? AND ts_ms = ?
	`, instrumentID, ts).Scan(&b.Open, &b.High, &b.Low, &b.Close, &b.AdjustedClose, &b.Volume)
	if err == sql.ErrNoRows {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

var _ port.SeriesRepository = (*SeriesRepo)(nil)
