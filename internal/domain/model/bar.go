package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceBar is one OHLCV record. (InstrumentID, Timestamp) is the upsert key.
type PriceBar struct {
	InstrumentID  uuid.UUID       `json:"instrument_id"`
	Timestamp     int64           `json:"ts_ms"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Close         decimal.Decimal `json:"close"`
	AdjustedClose decimal.Decimal `json:"adjusted_close"`
	Volume        decimal.Decimal `json:"volume"`
}

// RangeHint bounds a series request. A zero From means "provider default".
type RangeHint struct {
	From time.Time
	To   time.Time
}
