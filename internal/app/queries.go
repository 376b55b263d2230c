package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
)

type QueryStore interface {
	SnapshotStore
	RecordProductQuery(ctx context.Context, productKey string, at time.Time) error
}

type QueryService struct {
	store QueryStore
	cache domain.Cache
	snaps *SnapshotService
}

func NewQueryService(store QueryStore, cache domain.Cache, snaps *SnapshotService) *QueryService {
	return &QueryService{store: store, cache: cache, snaps: snaps}
}

// GetSnapshot is cache-aside: a cached snapshot is returned as is, otherwise it
// is rebuilt from active offers. With no active offer the last persisted
// snapshot is served. Every read counts towards the hot set.
func (s *QueryService) GetSnapshot(ctx context.Context, productKey string) (domain.RateSnapshot, error) {
	now := s.snaps.now()
	if err := s.store.RecordProductQuery(ctx, productKey, now); err != nil {
		log.Warn().Err(err).Str("product_key", productKey).Msg("record product query failed")
	}

	var snap domain.RateSnapshot
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, SnapshotKey(productKey), &snap); ok {
			return snap, nil
		}
	}

	offers, err := s.store.ListActiveOffers(ctx, []string{productKey}, now)
	if err != nil {
		return domain.RateSnapshot{}, err
	}
	if built, ok := BuildSnapshot(productKey, offers, now, s.snaps.ttl); ok {
		s.snaps.cacheSnapshot(ctx, built, now)
		return built, nil
	}
	return s.store.GetRateSnapshot(ctx, productKey)
}
