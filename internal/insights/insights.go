// Package insights implements the append-mostly, time-indexed feature
// store every strategy reads from: a concurrent map keyed by
// (instrument_id, feature_id) holding a time-sorted log of values, with
// last/periods/window/lag/last_candle read queries and
// insert/insert_batch/remove write operations.
//
// Sharding shape is grounded on the teacher's RWMutex-guarded order book
// map (internal/market/book.go); the retention/eviction logic is grounded
// on internal/strategy/flow_tracker.go's evictStaleLocked (cutoff = now -
// window, in-place slice trim over an already time-sorted log).
package insights

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkin-run/arkin/pkg/types"
)

// DefaultRetention is how far back samples are kept before remove() evicts
// them, absent config override.
const DefaultRetention = 24 * time.Hour

// DefaultCandleInterval is the aggregation window last_candle derives
// OHLCV over, absent config override.
const DefaultCandleInterval = time.Minute

// sample is one (event_time, value) pair in a feature's log.
type sample struct {
	at    time.Time
	value float64
}

// key identifies one (instrument, feature) series.
type key struct {
	instrument uuid.UUID
	feature    string
}

// State is the concurrent time-series feature store.
type State struct {
	mu             sync.RWMutex
	series         map[key][]sample
	retention      time.Duration
	candleInterval time.Duration
}

// Option configures a State at construction.
type Option func(*State)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *State) { s.retention = d }
}

// WithCandleInterval overrides DefaultCandleInterval.
func WithCandleInterval(d time.Duration) Option {
	return func(s *State) { s.candleInterval = d }
}

// New creates an empty State.
func New(opts ...Option) *State {
	s := &State{
		series:         make(map[key][]sample),
		retention:      DefaultRetention,
		candleInterval: DefaultCandleInterval,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Insert appends one (event_time, value) sample for (instrument, feature).
// Out-of-order inserts at the tail are accepted (common during replay) and
// re-sort the affected series.
func (s *State) Insert(instrument uuid.UUID, feature string, at time.Time, value float64) {
	k := key{instrument: instrument, feature: feature}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(k, sample{at: at, value: value})
}

// InsertItem is one record for InsertBatch.
type InsertItem struct {
	Instrument uuid.UUID
	Feature    string
	At         time.Time
	Value      float64
}

// InsertBatch inserts many samples. Insertion is atomic with respect to
// readers on each affected key: each key's log is only ever observed in a
// fully-updated state by concurrent readers, since every mutation happens
// under the single state-wide write lock.
func (s *State) InsertBatch(items []InsertItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.insertLocked(key{instrument: it.Instrument, feature: it.Feature}, sample{at: it.At, value: it.Value})
	}
}

func (s *State) insertLocked(k key, v sample) {
	log := s.series[k]
	n := len(log)
	if n == 0 || !v.at.Before(log[n-1].at) {
		s.series[k] = append(log, v)
		return
	}
	// Out-of-order tail insert: find insertion point and splice.
	i := sort.Search(n, func(i int) bool { return !log[i].at.Before(v.at) })
	log = append(log, sample{})
	copy(log[i+1:], log[i:])
	log[i] = v
	s.series[k] = log
}

// Remove drops all samples strictly older than at-retention across every
// key.
func (s *State) Remove(at time.Time) {
	cutoff := at.Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, log := range s.series {
		i := sort.Search(len(log), func(i int) bool { return !log[i].at.Before(cutoff) })
		if i == 0 {
			continue
		}
		if i == len(log) {
			delete(s.series, k)
			continue
		}
		trimmed := make([]sample, len(log)-i)
		copy(trimmed, log[i:])
		s.series[k] = trimmed
	}
}

// lastIndexAtOrBefore returns the index of the latest sample with
// at <= t, or -1 if none exists.
func lastIndexAtOrBefore(log []sample, t time.Time) int {
	i := sort.Search(len(log), func(i int) bool { return log[i].at.After(t) })
	return i - 1
}

// Last returns the value at the greatest stored time <= at, and whether
// one exists.
func (s *State) Last(instrument uuid.UUID, feature string, at time.Time) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.series[key{instrument: instrument, feature: feature}]
	i := lastIndexAtOrBefore(log, at)
	if i < 0 {
		return 0, false
	}
	return log[i].value, true
}

// Periods returns the n most recent values at or before at, in
// chronological order.
func (s *State) Periods(instrument uuid.UUID, feature string, at time.Time, n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.series[key{instrument: instrument, feature: feature}]
	i := lastIndexAtOrBefore(log, at)
	if i < 0 || n <= 0 {
		return nil
	}
	start := i - n + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, i-start+1)
	for j := start; j <= i; j++ {
		out[j-start] = log[j].value
	}
	return out
}

// Window returns all values with event_time in (at-delta, at], in
// chronological order.
func (s *State) Window(instrument uuid.UUID, feature string, at time.Time, delta time.Duration) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.series[key{instrument: instrument, feature: feature}]
	from := at.Add(-delta)
	start := sort.Search(len(log), func(i int) bool { return log[i].at.After(from) })
	end := sort.Search(len(log), func(i int) bool { return log[i].at.After(at) })
	if start >= end {
		return nil
	}
	out := make([]float64, end-start)
	for j := start; j < end; j++ {
		out[j-start] = log[j].value
	}
	return out
}

// Lag returns the value at the k-th most recent sample at or before at
// (k=0 is the same as Last), and whether one exists.
func (s *State) Lag(instrument uuid.UUID, feature string, at time.Time, k int) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.series[key{instrument: instrument, feature: feature}]
	i := lastIndexAtOrBefore(log, at)
	idx := i - k
	if idx < 0 || idx > i {
		return 0, false
	}
	return log[idx].value, true
}

const (
	featureTradePrice = "trade.price"
	featureTradeSize  = "trade.size"
)

// LastCandle derives an OHLCV bar from trade.price/trade.size samples
// within the last aggregation interval ending at `at`. Returns false if
// fewer than two trades are present in the window.
func (s *State) LastCandle(instrument uuid.UUID, at time.Time) (types.Candle, bool) {
	prices := s.Window(instrument, featureTradePrice, at, s.candleInterval)
	sizes := s.Window(instrument, featureTradeSize, at, s.candleInterval)
	if len(prices) < 2 {
		return types.Candle{}, false
	}

	c := types.Candle{
		Open:      prices[0],
		Close:     prices[len(prices)-1],
		High:      math.Inf(-1),
		Low:       math.Inf(1),
		OpenTime:  at.Add(-s.candleInterval),
		CloseTime: at,
	}
	for _, p := range prices {
		if p > c.High {
			c.High = p
		}
		if p < c.Low {
			c.Low = p
		}
	}
	for _, sz := range sizes {
		c.Volume += sz
	}
	return c, true
}
