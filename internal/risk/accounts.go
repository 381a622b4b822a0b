package risk

import (
	"sort"
	"sync"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

type account struct {
	cfg    domain.AccountConfig
	module domain.AccountRisk
}

// accountRegistry maps account IDs to their single-account module.
type accountRegistry struct {
	mu       sync.RWMutex
	accounts map[string]*account
}

func newAccountRegistry() *accountRegistry {
	return &accountRegistry{accounts: make(map[string]*account)}
}

func (r *accountRegistry) get(id string) (*account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	return a, ok
}

// add stores a unless id is already taken.
func (r *accountRegistry) add(id string, a *account) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; ok {
		return false
	}
	r.accounts[id] = a
	return true
}

func (r *accountRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
}

func (r *accountRegistry) ids() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
