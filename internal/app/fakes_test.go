package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"hotel_fusion/internal/domain"
)

// ---- in-memory catalog ----

type memCatalog struct {
	mu        sync.Mutex
	props     map[string]domain.Property
	propOrder []string
	mappings  map[string]domain.SupplierMapping
	offers    map[string]domain.RoomOffer
	snapshots map[string]domain.RateSnapshot
	queries   []string
	rejects   int
	rejectLog []string
	rejectErr error
	openErr   error
	sessions  int
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		props:     map[string]domain.Property{},
		mappings:  map[string]domain.SupplierMapping{},
		offers:    map[string]domain.RoomOffer{},
		snapshots: map[string]domain.RateSnapshot{},
	}
}

func mapKey(sup, hid string) string { return sup + "|" + hid }

func (m *memCatalog) FindByGiataID(ctx context.Context, id string) (domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pid := range m.propOrder {
		p := m.props[pid]
		if p.GiataID != nil && *p.GiataID == id {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrNotFound
}

func (m *memCatalog) FindMapping(ctx context.Context, sup, hid string) (domain.SupplierMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mp, ok := m.mappings[mapKey(sup, hid)]; ok {
		return mp, nil
	}
	return domain.SupplierMapping{}, domain.ErrNotFound
}

func (m *memCatalog) FindByChainBrand(ctx context.Context, chain, brand, city, country string) (domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pid := range m.propOrder {
		p := m.props[pid]
		if p.ChainCode != nil && p.BrandCode != nil && *p.ChainCode == chain && *p.BrandCode == brand &&
			p.City == city && p.Country == country {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrNotFound
}

func (m *memCatalog) ListByCityCountry(ctx context.Context, city, country string) ([]domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Property
	for _, pid := range m.propOrder {
		if p := m.props[pid]; p.City == city && p.Country == country {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memCatalog) OpenSession(ctx context.Context) (domain.CatalogSession, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.mu.Lock()
	m.sessions++
	m.mu.Unlock()
	return memSession{m}, nil
}

func (m *memCatalog) ListActiveOffers(ctx context.Context, keys []string, now time.Time) ([]domain.RoomOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, k := range keys {
		want[k] = true
	}
	var out []domain.RoomOffer
	for _, o := range m.offers {
		if want[o.ProductKey] && o.ActiveAt(now) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCatalog) UpsertRateSnapshot(ctx context.Context, s domain.RateSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[s.ProductKey] = s
	return nil
}

func (m *memCatalog) GetRateSnapshot(ctx context.Context, key string) (domain.RateSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.snapshots[key]; ok {
		return s, nil
	}
	return domain.RateSnapshot{}, domain.ErrNotFound
}

func (m *memCatalog) RecordProductQuery(ctx context.Context, key string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, key)
	return nil
}

func (m *memCatalog) offerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.offers)
}

type memSession struct{ m *memCatalog }

func (s memSession) UpsertProperty(ctx context.Context, p domain.Property) error {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.GiataID != nil {
		for id, q := range m.props {
			if id != p.ID && q.GiataID != nil && *q.GiataID == *p.GiataID {
				return domain.ErrConflict
			}
		}
	}
	cur, ok := m.props[p.ID]
	if !ok {
		m.props[p.ID] = p
		m.propOrder = append(m.propOrder, p.ID)
		return nil
	}
	cur.Name = p.Name
	if cur.GiataID == nil {
		cur.GiataID = p.GiataID
	}
	if cur.Lat == nil {
		cur.Lat, cur.Lng = p.Lat, p.Lng
	}
	m.props[p.ID] = cur
	return nil
}

func (s memSession) UpsertMapping(ctx context.Context, mp domain.SupplierMapping) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.mappings[mapKey(mp.SupplierCode, mp.SupplierHotelID)] = mp
	return nil
}

func (s memSession) InsertOffer(ctx context.Context, o domain.RoomOffer) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.offers[o.ID]; ok {
		return false, nil
	}
	s.m.offers[o.ID] = o
	return true, nil
}

func (s memSession) LogReject(ctx context.Context, sup, hid, reason string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.rejectErr != nil {
		return s.m.rejectErr
	}
	s.m.rejects++
	s.m.rejectLog = append(s.m.rejectLog, sup+"|"+hid+"|"+reason)
	return nil
}

func (s memSession) Close() error { return nil }

// ---- cache ----

type fakeCache struct {
	store map[string][]byte
	ttls  map[string]int
	gets  int
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.gets++
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store, c.ttls = map[string][]byte{}, map[string]int{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	c.ttls[key] = ttlSec
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}
