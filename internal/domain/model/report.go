package model

import "time"

// SymbolRows is the per-instrument line of an ingestion report.
type SymbolRows struct {
	Symbol       string `json:"symbol"`
	RowsUpserted int    `json:"rows_upserted"`
	Err          string `json:"error,omitempty"`
}

// IngestionReport summarises one collection run. It is never stored in the database.
type IngestionReport struct {
	RunID        string       `json:"run_id"`
	ProviderCode string       `json:"provider_code"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	Equities     []SymbolRows `json:"equities"`
	FX           []SymbolRows `json:"fx"`
}

// SetSection replaces the report lines for an asset class. Nil becomes empty.
func (r *IngestionReport) SetSection(class AssetClass, rows []SymbolRows) {
	if rows == nil {
		rows = []SymbolRows{}
	}
	switch class {
	case AssetClassEquity:
		r.Equities = rows
	case AssetClassFX:
		r.FX = rows
	}
}

// TotalRows sums rows upserted across both sections.
func (r *IngestionReport) TotalRows() int {
	n := 0
	for _, s := range r.Equities {
		n += s.RowsUpserted
	}
	for _, s := range r.FX {
		n += s.RowsUpserted
	}
	return n
}

// Failures counts report lines that carry an error.
func (r *IngestionReport) Failures() int {
	n := 0
	for _, s := range r.Equities {
		if s.Err != "" {
			n++
		}
	}
	for _, s := range r.FX {
		if s.Err != "" {
			n++
		}
	}
	return n
}
