package migrate

import (
	"strings"

	"mktdata/internal/infrastructure/storage"
)

// decimalType marks price and volume columns. Postgres keeps them NUMERIC;
// SQLite would coerce NUMERIC to REAL, so it stores the decimal text as is.
const decimalType = "{{decimal}}"

func renderTypes(d storage.Dialect, stmt string) string {
	if d == storage.DialectSQLite {
		return strings.ReplaceAll(stmt, decimalType, "TEXT")
	}
	return strings.ReplaceAll(stmt, decimalType, "NUMERIC")
}

// Migration is one immutable, ordered schema change. IDs compare as strings,
// so they are zero-padded.
type Migration struct {
	ID         string
	Name       string
	Statements []string
}

// Migrations returns the schema history in application order.
// Append only: never edit or reorder an entry that has shipped.
func Migrations() []Migration {
	return []Migration{
		{
			ID:   "0001",
			Name: "create_instruments",
			Statements: []string{
				`CREATE TABLE instruments (
  id TEXT PRIMARY KEY,
  asset_class TEXT NOT NULL,
  symbol TEXT NOT NULL,
  provider_code TEXT NOT NULL,
  name TEXT NOT NULL DEFAULT '',
  exchange TEXT NOT NULL DEFAULT '',
  currency TEXT NOT NULL DEFAULT '',
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL,
  UNIQUE (asset_class, symbol)
)`,
				`CREATE INDEX idx_instruments_provider ON instruments(provider_code)`,
			},
		},
		{
			ID:   "0002",
			Name: "create_price_bars",
			Statements: []string{
				`CREATE TABLE price_bars (
  instrument_id TEXT NOT NULL REFERENCES instruments(id),
  ts_ms BIGINT NOT NULL,
  open {{decimal}} NOT NULL,
  high {{decimal}} NOT NULL,
  low {{decimal}} NOT NULL,
  close {{decimal}} NOT NULL,
  volume {{decimal}} NOT NULL DEFAULT '0',
  updated_at BIGINT NOT NULL,
  PRIMARY KEY (instrument_id, ts_ms)
)`,
				`CREATE INDEX idx_price_bars_ts ON price_bars(ts_ms)`,
			},
		},
		{
			ID:   "0003",
			Name: "add_instrument_details",
			Statements: []string{
				`ALTER TABLE instruments ADD COLUMN country TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE instruments ADD COLUMN instrument_type TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE instruments ADD COLUMN isin TEXT NOT NULL DEFAULT ''`,
			},
		},
		{
			ID:   "0004",
			Name: "add_adjusted_close",
			Statements: []string{
				`ALTER TABLE price_bars ADD COLUMN adjusted_close {{decimal}} NOT NULL DEFAULT '0'`,
			},
		},
	}
}
