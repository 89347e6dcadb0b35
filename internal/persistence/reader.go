// Package persistence implements the reference PersistenceReader/Writer
// pair: a JSON-file catalog lookup and a batched, retrying append-only
// writer. Grounded on the teacher's internal/store/store.go atomic
// write-tmp-then-rename pattern, extended to the batch/retry contract
// this system requires.
package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/pkg/types"
)

// catalog is the on-disk shape of the reference instrument/asset/venue/
// strategy/pipeline catalog: a single JSON file holding one array per
// entity kind, loaded whole into memory and queried by ID or symbol.
type catalog struct {
	Assets      []types.Asset      `json:"assets"`
	Venues      []types.Venue      `json:"venues"`
	Instruments []types.Instrument `json:"instruments"`
	Strategies  []types.Strategy   `json:"strategies"`
	Pipelines   []types.Pipeline   `json:"pipelines"`
}

// Reader answers catalog lookups needed by the Ledger, OrderBooks and
// InsightsState (instrument/asset/venue/strategy/pipeline resolution).
// It is read-only and safe for concurrent use after construction.
type Reader struct {
	mu sync.RWMutex

	assetsByID      map[uuid.UUID]types.Asset
	venuesByID      map[uuid.UUID]types.Venue
	instrumentsByID map[uuid.UUID]types.Instrument
	strategiesByID  map[uuid.UUID]types.Strategy
	pipelinesByID   map[uuid.UUID]types.Pipeline

	assetsBySymbol     map[string]types.Asset
	instrumentsBySymbol map[string]types.Instrument
}

// OpenReader loads the catalog file at dir/catalog.json. A missing file
// is not an error: the reader starts empty and Reload can be called once
// the file exists.
func OpenReader(dir string) (*Reader, error) {
	r := &Reader{
		assetsByID:          make(map[uuid.UUID]types.Asset),
		venuesByID:          make(map[uuid.UUID]types.Venue),
		instrumentsByID:     make(map[uuid.UUID]types.Instrument),
		strategiesByID:      make(map[uuid.UUID]types.Strategy),
		pipelinesByID:       make(map[uuid.UUID]types.Pipeline),
		assetsBySymbol:      make(map[string]types.Asset),
		instrumentsBySymbol: make(map[string]types.Instrument),
	}
	if err := r.Reload(dir); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads dir/catalog.json, replacing the in-memory indexes
// atomically. A missing file leaves existing state untouched.
func (r *Reader) Reload(dir string) error {
	path := filepath.Join(dir, "catalog.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read catalog: %w", err)
	}

	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("unmarshal catalog: %w", err)
	}

	assetsByID := make(map[uuid.UUID]types.Asset, len(c.Assets))
	assetsBySymbol := make(map[string]types.Asset, len(c.Assets))
	for _, a := range c.Assets {
		assetsByID[a.ID] = a
		assetsBySymbol[a.Symbol] = a
	}
	venuesByID := make(map[uuid.UUID]types.Venue, len(c.Venues))
	for _, v := range c.Venues {
		venuesByID[v.ID] = v
	}
	instrumentsByID := make(map[uuid.UUID]types.Instrument, len(c.Instruments))
	instrumentsBySymbol := make(map[string]types.Instrument, len(c.Instruments))
	for _, i := range c.Instruments {
		instrumentsByID[i.ID] = i
		instrumentsBySymbol[i.Symbol] = i
	}
	strategiesByID := make(map[uuid.UUID]types.Strategy, len(c.Strategies))
	for _, s := range c.Strategies {
		strategiesByID[s.ID] = s
	}
	pipelinesByID := make(map[uuid.UUID]types.Pipeline, len(c.Pipelines))
	for _, p := range c.Pipelines {
		pipelinesByID[p.ID] = p
	}

	r.mu.Lock()
	r.assetsByID = assetsByID
	r.assetsBySymbol = assetsBySymbol
	r.venuesByID = venuesByID
	r.instrumentsByID = instrumentsByID
	r.instrumentsBySymbol = instrumentsBySymbol
	r.strategiesByID = strategiesByID
	r.pipelinesByID = pipelinesByID
	r.mu.Unlock()
	return nil
}

// GetAsset resolves an asset by ID.
func (r *Reader) GetAsset(id uuid.UUID) (types.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assetsByID[id]
	return a, ok
}

// GetAssetBySymbol resolves an asset by its ticker symbol.
func (r *Reader) GetAssetBySymbol(symbol string) (types.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assetsBySymbol[symbol]
	return a, ok
}

// GetVenue resolves a venue by ID.
func (r *Reader) GetVenue(id uuid.UUID) (types.Venue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venuesByID[id]
	return v, ok
}

// GetInstrument resolves an instrument by ID.
func (r *Reader) GetInstrument(id uuid.UUID) (types.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.instrumentsByID[id]
	return i, ok
}

// GetInstrumentBySymbol resolves an instrument by its canonical symbol.
func (r *Reader) GetInstrumentBySymbol(symbol string) (types.Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.instrumentsBySymbol[symbol]
	return i, ok
}

// GetStrategy resolves a strategy by ID.
func (r *Reader) GetStrategy(id uuid.UUID) (types.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategiesByID[id]
	return s, ok
}

// GetPipeline resolves a pipeline by ID.
func (r *Reader) GetPipeline(id uuid.UUID) (types.Pipeline, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pipelinesByID[id]
	return p, ok
}
