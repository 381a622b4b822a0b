package liquidity

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// TradeFlow tracks rolling trade volume per symbol. The sum of volumes inside
// the window is the symbol's average daily volume (ADV).
type TradeFlow struct {
	mu     sync.RWMutex
	flows  map[string]*flowEntry
	window time.Duration
	now    func() time.Time
}

// flowEntry holds samples in timestamp order. samples[:head] are expired
// and zeroed; volume is the sum over samples[head:].
type flowEntry struct {
	mu      sync.Mutex
	samples []domain.TradeSample
	head    int
	volume  float64
}

// NewTradeFlow creates a TradeFlow with the given rolling window.
func NewTradeFlow(window time.Duration, now func() time.Time) *TradeFlow {
	if now == nil {
		now = time.Now
	}
	return &TradeFlow{
		flows:  make(map[string]*flowEntry),
		window: window,
		now:    now,
	}
}

func (t *TradeFlow) entry(symbol string, create bool) *flowEntry {
	t.mu.RLock()
	e, ok := t.flows[symbol]
	t.mu.RUnlock()
	if ok || !create {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.flows[symbol]; ok {
		return e
	}
	e = &flowEntry{}
	t.flows[symbol] = e
	return e
}

// Add records a trade. A zero timestamp is stamped with the current time.
// Non-positive volumes and trades already outside the window are ignored.
func (t *TradeFlow) Add(symbol string, sample domain.TradeSample) {
	if sample.Volume <= 0 {
		return
	}
	now := t.now()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}
	cutoff := now.Add(-t.window)

	e := t.entry(symbol, true)
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prune(cutoff)
	if sample.Timestamp.Before(cutoff) {
		return
	}
	e.insert(sample)
}

// ADV returns the traded volume inside the window. The boolean is false when
// no trades are known for the symbol.
func (t *TradeFlow) ADV(symbol string) (float64, bool) {
	e := t.entry(symbol, false)
	if e == nil {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prune(t.now().Add(-t.window))
	if e.head == len(e.samples) {
		return 0, false
	}
	return e.volume, true
}

// insert places s after every live sample with an equal or earlier
// timestamp. In-order arrivals append.
func (e *flowEntry) insert(s domain.TradeSample) {
	n := len(e.samples)
	if n == e.head || !s.Timestamp.Before(e.samples[n-1].Timestamp) {
		e.samples = append(e.samples, s)
	} else {
		live := e.samples[e.head:]
		i := sort.Search(len(live), func(i int) bool { return live[i].Timestamp.After(s.Timestamp) })
		e.samples = slices.Insert(e.samples, e.head+i, s)
	}
	e.volume += s.Volume
}

// prune evicts samples older than cutoff from the front of the window.
func (e *flowEntry) prune(cutoff time.Time) {
	for e.head < len(e.samples) && e.samples[e.head].Timestamp.Before(cutoff) {
		e.volume -= e.samples[e.head].Volume
		e.samples[e.head] = domain.TradeSample{}
		e.head++
	}

	switch {
	case e.head == len(e.samples):
		e.samples = e.samples[:0]
		e.head = 0
		e.volume = 0
	case e.head > 0 && e.head >= len(e.samples)/2:
		n := copy(e.samples, e.samples[e.head:])
		clear(e.samples[n:])
		e.samples = e.samples[:n]
		e.head = 0
	}
}
