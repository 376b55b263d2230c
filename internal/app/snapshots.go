package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
)

// SnapshotKey is the cache key of a product's rate snapshot.
func SnapshotKey(productKey string) string { return "rates:" + productKey }

type SnapshotStore interface {
	ListActiveOffers(ctx context.Context, productKeys []string, now time.Time) ([]domain.RoomOffer, error)
	UpsertRateSnapshot(ctx context.Context, s domain.RateSnapshot) error
	GetRateSnapshot(ctx context.Context, productKey string) (domain.RateSnapshot, error)
}

// SnapshotService derives per-product best-price snapshots from active offers.
// Snapshots are never authoritative and can always be rebuilt.
type SnapshotService struct {
	store SnapshotStore
	cache domain.Cache
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

func NewSnapshotService(store SnapshotStore, cache domain.Cache, ttl time.Duration) *SnapshotService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SnapshotService{
		store: store,
		cache: cache,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("component", "snapshots").Logger(),
	}
}

// Refresh rebuilds the snapshots of keys and returns how many were written.
// Keys with no active offer keep their last known snapshot.
func (s *SnapshotService) Refresh(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	now := s.now()
	offers, err := s.store.ListActiveOffers(ctx, keys, now)
	if err != nil {
		return 0, fmt.Errorf("list active offers: %w", err)
	}
	byKey := make(map[string][]domain.RoomOffer, len(keys))
	for _, o := range offers {
		byKey[o.ProductKey] = append(byKey[o.ProductKey], o)
	}

	written := 0
	for _, k := range keys {
		snap, ok := BuildSnapshot(k, byKey[k], now, s.ttl)
		if !ok {
			continue
		}
		if err := s.store.UpsertRateSnapshot(ctx, snap); err != nil {
			s.log.Error().Err(err).Str("product_key", k).Msg("persist snapshot failed")
			continue
		}
		s.cacheSnapshot(ctx, snap, now)
		written++
	}
	return written, nil
}

func (s *SnapshotService) cacheSnapshot(ctx context.Context, snap domain.RateSnapshot, now time.Time) {
	if s.cache == nil {
		return
	}
	ttl := int(math.Ceil(snap.ExpiresAt.Sub(now).Seconds()))
	if ttl < 1 {
		ttl = 1
	}
	if err := s.cache.Set(ctx, SnapshotKey(snap.ProductKey), snap, ttl); err != nil {
		s.log.Warn().Err(err).Str("product_key", snap.ProductKey).Msg("cache snapshot failed")
	}
}

// BuildSnapshot keeps each supplier's cheapest active offer and reports false
// when none is active. An offer without an expiry lives ttl past its creation.
func BuildSnapshot(key string, offers []domain.RoomOffer, now time.Time, ttl time.Duration) (domain.RateSnapshot, bool) {
	cheapest := make(map[string]domain.RoomOffer)
	for _, o := range offers {
		if o.ProductKey != key || !o.ActiveAt(now) {
			continue
		}
		cur, ok := cheapest[o.SupplierCode]
		if !ok || o.PriceTotal < cur.PriceTotal ||
			(o.PriceTotal == cur.PriceTotal && o.CreatedAt.After(cur.CreatedAt)) {
			cheapest[o.SupplierCode] = o
		}
	}
	if len(cheapest) == 0 {
		return domain.RateSnapshot{}, false
	}

	snap := domain.RateSnapshot{
		ProductKey:  key,
		BestPrice:   math.Inf(1),
		Suppliers:   make(map[string]domain.SupplierRate, len(cheapest)),
		LastUpdated: now,
	}
	for sup, o := range cheapest {
		snap.Suppliers[sup] = domain.SupplierRate{
			Price:     o.PriceTotal,
			TrueCost:  o.TrueCost(),
			Inventory: o.Availability,
			OfferID:   o.ID,
			LastSeen:  o.CreatedAt,
		}
		if o.PriceTotal < snap.BestPrice {
			snap.BestPrice, snap.Currency = o.PriceTotal, o.Currency
		}
		exp := o.CreatedAt.Add(ttl)
		if o.ExpiresAt != nil {
			exp = *o.ExpiresAt
		}
		if snap.ExpiresAt.IsZero() || exp.Before(snap.ExpiresAt) {
			snap.ExpiresAt = exp
		}
	}
	return snap, true
}
