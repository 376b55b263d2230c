package breaker

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Registry holds exactly one breaker per supplier.
type Registry struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(cfg Config, now func() time.Time) *Registry {
	return &Registry{cfg: cfg, now: now, breakers: make(map[string]*Breaker)}
}

// Get returns the supplier's breaker, creating it on first use.
func (r *Registry) Get(supplier string) *Breaker {
	key := strings.ToUpper(supplier)
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[key]
	if !ok {
		b = New(key, r.cfg, r.now)
		r.breakers[key] = b
	}
	return b
}

// Snapshots lists every breaker sorted by supplier.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	bs := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		bs = append(bs, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Supplier < out[j].Supplier })
	return out
}
