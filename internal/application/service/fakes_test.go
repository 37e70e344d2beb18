package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"mktdata/internal/application/port"
	"mktdata/internal/domain/model"
)

type memCatalog struct {
	mu        sync.Mutex
	rows      map[model.InstrumentKey]model.Instrument
	failOn    map[string]error
	listCalls int
	upserts   int
}

func newMemCatalog(seed ...model.Instrument) *memCatalog {
	c := &memCatalog{rows: map[model.InstrumentKey]model.Instrument{}, failOn: map[string]error{}}
	for _, inst := range seed {
		if inst.ID == uuid.Nil {
			inst.ID = uuid.New()
		}
		c.rows[inst.Key()] = inst
	}
	return c
}

func (c *memCatalog) ListInstruments(ctx context.Context, class model.AssetClass) ([]model.Instrument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	var out []model.Instrument
	for k, inst := range c.rows {
		if k.AssetClass == class {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (c *memCatalog) GetInstrument(ctx context.Context, class model.AssetClass, symbol string) (*model.Instrument, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inst, ok := c.rows[model.InstrumentKey{AssetClass: class, Symbol: symbol}]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &inst, nil
}

func (c *memCatalog) UpsertInstrument(ctx context.Context, inst *model.Instrument) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failOn[inst.Symbol]; err != nil {
		return err
	}
	if existing, ok := c.rows[inst.Key()]; ok {
		inst.ID = existing.ID
	} else if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	c.rows[inst.Key()] = *inst
	c.upserts++
	return nil
}

type memSeries struct {
	mu     sync.Mutex
	bars   map[uuid.UUID]map[int64]model.PriceBar
	failOn map[uuid.UUID]error
}

func newMemSeries() *memSeries {
	return &memSeries{bars: map[uuid.UUID]map[int64]model.PriceBar{}, failOn: map[uuid.UUID]error{}}
}

func (s *memSeries) LatestBarTime(ctx context.Context, id uuid.UUID) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest int64
	found := false
	for ts := range s.bars[id] {
		if !found || ts > latest {
			latest, found = ts, true
		}
	}
	return latest, found, nil
}

func (s *memSeries) UpsertBars(ctx context.Context, bars []model.PriceBar) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range bars {
		if err := s.failOn[b.InstrumentID]; err != nil {
			return 0, err
		}
		m := s.bars[b.InstrumentID]
		if m == nil {
			m = map[int64]model.PriceBar{}
			s.bars[b.InstrumentID] = m
		}
		if old, ok := m[b.Timestamp]; ok && old.Close.Equal(b.Close) {
			continue
		}
		m[b.Timestamp] = b
		n++
	}
	return n, nil
}

type fakeProvider struct {
	mu          sync.Mutex
	instruments map[model.AssetClass][]model.Instrument
	unreachable map[model.AssetClass]bool
	bars        map[string][]model.PriceBar
	fail        map[string]error
	panicOn     map[string]bool
	hints       map[string]model.RangeHint
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		instruments: map[model.AssetClass][]model.Instrument{},
		unreachable: map[model.AssetClass]bool{},
		bars:        map[string][]model.PriceBar{},
		fail:        map[string]error{},
		panicOn:     map[string]bool{},
		hints:       map[string]model.RangeHint{},
	}
}

func (p *fakeProvider) Code() string { return "X" }

func (p *fakeProvider) ListInstruments(ctx context.Context, class model.AssetClass) ([]model.Instrument, error) {
	if p.unreachable[class] {
		return nil, fmt.Errorf("dial tcp: %w", port.ErrProviderUnavailable)
	}
	return p.instruments[class], nil
}

func (p *fakeProvider) FetchSeries(ctx context.Context, inst model.Instrument, hint model.RangeHint) ([]model.PriceBar, error) {
	p.mu.Lock()
	p.hints[inst.Symbol] = hint
	p.mu.Unlock()
	if p.panicOn[inst.Symbol] {
		panic("decoder exploded")
	}
	if err := p.fail[inst.Symbol]; err != nil {
		return nil, err
	}
	out := make([]model.PriceBar, len(p.bars[inst.Symbol]))
	copy(out, p.bars[inst.Symbol])
	return out, nil
}

var errBoom = errors.New("boom")
