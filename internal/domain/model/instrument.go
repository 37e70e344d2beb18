package model

import "github.com/google/uuid"

// AssetClass groups instruments that share a provider listing and a report section.
type AssetClass string

const (
	AssetClassEquity AssetClass = "EQUITY"
	AssetClassFX     AssetClass = "FX"
)

// AssetClasses lists every class the collector ingests, in report order.
var AssetClasses = []AssetClass{AssetClassEquity, AssetClassFX}

func (c AssetClass) String() string { return string(c) }

// Valid reports whether c is a known asset class.
func (c AssetClass) Valid() bool {
	return c == AssetClassEquity || c == AssetClassFX
}

// Instrument is one tradable asset in the catalog.
// Symbol holds the ticker for equities and the pair (EURUSD) for FX.
type Instrument struct {
	ID           uuid.UUID  `json:"id"`
	AssetClass   AssetClass `json:"asset_class"`
	Symbol       string     `json:"symbol"`
	ProviderCode string     `json:"provider_code"`
	Name         string     `json:"name"`
	Exchange     string     `json:"exchange"`
	Currency     string     `json:"currency"`
	Country      string     `json:"country"`
	Type         string     `json:"type"`
	ISIN         string     `json:"isin"`
}

// Key is the catalog uniqueness key.
func (i Instrument) Key() InstrumentKey {
	return InstrumentKey{AssetClass: i.AssetClass, Symbol: i.Symbol}
}

// SameAttributes compares the provider-tracked attributes, ignoring ID.
func (i Instrument) SameAttributes(o Instrument) bool {
	return i.ProviderCode == o.ProviderCode &&
		i.Name == o.Name &&
		i.Exchange == o.Exchange &&
		i.Currency == o.Currency &&
		i.Country == o.Country &&
		i.Type == o.Type &&
		i.ISIN == o.ISIN
}

type InstrumentKey struct {
	AssetClass AssetClass
	Symbol     string
}

func (k InstrumentKey) String() string {
	return string(k.AssetClass) + ":" + k.Symbol
}

// UniqueBySymbol forces the asset class and keeps the last occurrence of each
// symbol, preserving first-seen order.
func UniqueBySymbol(class AssetClass, in []Instrument) []Instrument {
	idx := make(map[string]int, len(in))
	out := make([]Instrument, 0, len(in))
	for _, inst := range in {
		inst.AssetClass = class
		if i, ok := idx[inst.Symbol]; ok {
			out[i] = inst
			continue
		}
		idx[inst.Symbol] = len(out)
		out = append(out, inst)
	}
	return out
}
