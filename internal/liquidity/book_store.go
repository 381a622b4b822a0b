package liquidity

import (
	"sort"
	"sync"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// BookStore keeps the latest order book snapshot and a bounded history per
// symbol. Each symbol has its own lock so unrelated symbols never contend.
type BookStore struct {
	mu            sync.RWMutex
	books         map[string]*bookEntry
	historyLength int
}

type bookEntry struct {
	mu      sync.RWMutex
	current domain.OrderBookSnapshot
	history []domain.OrderBookSnapshot
}

// NewBookStore creates a BookStore retaining historyLength snapshots per symbol.
func NewBookStore(historyLength int) *BookStore {
	return &BookStore{
		books:         make(map[string]*bookEntry),
		historyLength: historyLength,
	}
}

func (s *BookStore) entry(symbol string, create bool) *bookEntry {
	s.mu.RLock()
	e, ok := s.books[symbol]
	s.mu.RUnlock()
	if ok || !create {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.books[symbol]; ok {
		return e
	}
	e = &bookEntry{history: make([]domain.OrderBookSnapshot, 0, s.historyLength)}
	s.books[symbol] = e
	return e
}

// Update replaces the current snapshot for symbol wholesale and appends it to
// the history, evicting the oldest entry once the history is full.
func (s *BookStore) Update(symbol string, snap domain.OrderBookSnapshot) {
	owned := snap.Clone()
	owned.Symbol = symbol

	e := s.entry(symbol, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.current = owned
	if len(e.history) >= s.historyLength {
		copy(e.history, e.history[1:])
		e.history = e.history[:len(e.history)-1]
	}
	e.history = append(e.history, owned)
}

// Get returns the current snapshot for symbol. Snapshots are replaced, never
// edited, so the returned level slices are safe to read.
func (s *BookStore) Get(symbol string) (domain.OrderBookSnapshot, bool) {
	e := s.entry(symbol, false)
	if e == nil {
		return domain.OrderBookSnapshot{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current, true
}

// History returns the retained snapshots for symbol, oldest first.
func (s *BookStore) History(symbol string) []domain.OrderBookSnapshot {
	e := s.entry(symbol, false)
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.OrderBookSnapshot(nil), e.history...)
}

// Symbols returns every symbol with a snapshot, sorted.
func (s *BookStore) Symbols() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.books))
	for sym := range s.books {
		out = append(out, sym)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}
