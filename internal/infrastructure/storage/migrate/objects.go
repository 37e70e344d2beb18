package migrate

import "mktdata/internal/infrastructure/storage"

type ObjectKind string

const (
	KindView    ObjectKind = "view"
	KindTrigger ObjectKind = "trigger"
)

// ReplaceableObject is a derived object recreated on every startup.
// Definition renders the create-or-replace statements for a dialect.
type ReplaceableObject struct {
	Name       string
	Kind       ObjectKind
	Definition func(d storage.Dialect) []string
}

// Objects returns the derived objects in dependency order: an object may
// only reference objects listed before it.
func Objects() []ReplaceableObject {
	return []ReplaceableObject{
		view("v_instrument_coverage", `
SELECT i.id AS instrument_id,
       i.asset_class,
       i.symbol,
       COUNT(b.ts_ms) AS bar_count,
       MIN(b.ts_ms) AS first_ts_ms,
       MAX(b.ts_ms) AS last_ts_ms
FROM instruments i
LEFT JOIN price_bars b ON b.instrument_id = i.id
GROUP BY i.id, i.asset_class, i.symbol`),

		view("v_latest_bars", `
SELECT c.asset_class,
       c.symbol,
       b.ts_ms,
       b.open,
       b.high,
       b.low,
       b.close,
       b.adjusted_close,
       b.volume
FROM v_instrument_coverage c
JOIN price_bars b ON b.instrument_id = c.instrument_id AND b.ts_ms = c.last_ts_ms`),

		{
			Name:       "trg_instruments_touch",
			Kind:       KindTrigger,
			Definition: instrumentsTouchTrigger,
		},
	}
}

func view(name, body string) ReplaceableObject {
	return ReplaceableObject{
		Name: name,
		Kind: KindView,
		Definition: func(d storage.Dialect) []string {
			if d == storage.DialectSQLite {
				return []string{
					`DROP VIEW IF EXISTS ` + name,
					`CREATE VIEW ` + name + ` AS` + body,
				}
			}
			return []string{`CREATE OR REPLACE VIEW ` + name + ` AS` + body}
		},
	}
}

// instrumentsTouchTrigger bumps updated_at on writes that did not set it.
func instrumentsTouchTrigger(d storage.Dialect) []string {
	if d == storage.DialectSQLite {
		return []string{
			`DROP TRIGGER IF EXISTS trg_instruments_touch`,
			`CREATE TRIGGER trg_instruments_touch
AFTER UPDATE ON instruments
FOR EACH ROW WHEN NEW.updated_at = OLD.updated_at
BEGIN
  UPDATE instruments SET updated_at = CAST(strftime('%s', 'now') AS INTEGER) * 1000 WHERE id = NEW.id;
END`,
		}
	}
	return []string{
		`CREATE OR REPLACE FUNCTION instruments_touch() RETURNS trigger AS $$
BEGIN
  IF NEW.updated_at = OLD.updated_at THEN
    NEW.updated_at := (EXTRACT(EPOCH FROM clock_timestamp()) * 1000)::BIGINT;
  END IF;
  RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
		`DROP TRIGGER IF EXISTS trg_instruments_touch ON instruments`,
		`CREATE TRIGGER trg_instruments_touch
BEFORE UPDATE ON instruments
FOR EACH ROW EXECUTE FUNCTION instruments_touch()`,
	}
}
