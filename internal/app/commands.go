package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/adapters/observability"
	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/normalize"
	"hotel_fusion/internal/resolve"
)

// Resolver is the entity resolution step used by the writer.
type Resolver interface {
	ResolveOrCreateProperty(ctx context.Context, d domain.PropertyDraft) (resolve.Resolution, error)
}

// MergeStore is the slice of the catalog the writer needs.
type MergeStore interface {
	FindMapping(ctx context.Context, supplierCode, supplierHotelID string) (domain.SupplierMapping, error)
	OpenSession(ctx context.Context) (domain.CatalogSession, error)
}

// Reject is one supplier record that could not be normalized or merged.
type Reject struct {
	SupplierHotelID string
	Reason          string
}

// DedupEntry records which existing property a supplier hotel matched.
type DedupEntry struct {
	SupplierCode    string             `json:"supplier_code"`
	SupplierHotelID string             `json:"supplier_hotel_id"`
	PropertyID      string             `json:"property_id"`
	Method          domain.MatchMethod `json:"method"`
	Confidence      float64            `json:"confidence"`
}

type MergeResult struct {
	HotelsInserted int          `json:"hotels_inserted"`
	HotelsMatched  int          `json:"hotels_matched"`
	OffersInserted int          `json:"offers_inserted"`
	Skipped        int          `json:"skipped"`
	Failed         int          `json:"failed"`
	DedupAudit     []DedupEntry `json:"dedup_audit"`
	// PropertyIDs and ProductKeys are the distinct ids touched by the batch, in first-seen order.
	PropertyIDs []string `json:"property_ids"`
	ProductKeys []string `json:"product_keys"`
}

type MergeService struct {
	store    MergeStore
	resolver Resolver
	now      func() time.Time
	log      zerolog.Logger
}

func NewMergeService(store MergeStore, resolver Resolver) *MergeService {
	return &MergeService{
		store:    store,
		resolver: resolver,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "merge").Logger(),
	}
}

// MergeBatch resolves and persists one supplier batch. Each record commits on
// its own; a failing record is counted and logged and the batch carries on.
// Only failing to open the session aborts the batch.
func (s *MergeService) MergeBatch(ctx context.Context, drafts []domain.PropertyDraft, offers []domain.OfferDraft, supplier string) (MergeResult, error) {
	supplier = strings.ToUpper(supplier)
	var res MergeResult

	sess, err := s.store.OpenSession(ctx)
	if err != nil {
		return res, fmt.Errorf("open catalog session: %w", err)
	}
	defer sess.Close()

	lg := s.log.With().Str("supplier", supplier).Logger()
	seenProps := make(map[string]struct{}, len(drafts))
	seenKeys := make(map[string]struct{}, len(offers))
	batchMap := make(map[string]string, len(drafts))

	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if d.SupplierCode == "" {
			d.SupplierCode = supplier
		}
		if strings.TrimSpace(d.SupplierHotelID) == "" || strings.TrimSpace(d.Name) == "" {
			res.Skipped++
			s.logReject(ctx, sess, supplier, Reject{SupplierHotelID: d.SupplierHotelID, Reason: "missing name or supplier hotel id"})
			observability.ObserveReject(supplier)
			continue
		}

		r, err := s.persistDraft(ctx, sess, d)
		if err != nil {
			res.Failed++
			lg.Error().Err(err).Str("supplier_hotel_id", d.SupplierHotelID).Msg("merge property failed")
			continue
		}

		batchMap[d.SupplierHotelID] = r.PropertyID
		if r.IsNew {
			res.HotelsInserted++
		} else {
			res.HotelsMatched++
		}
		if !r.IsNew {
			res.DedupAudit = append(res.DedupAudit, DedupEntry{
				SupplierCode:    supplier,
				SupplierHotelID: d.SupplierHotelID,
				PropertyID:      r.PropertyID,
				Method:          r.Method,
				Confidence:      r.Confidence,
			})
		}
		if _, ok := seenProps[r.PropertyID]; !ok {
			seenProps[r.PropertyID] = struct{}{}
			res.PropertyIDs = append(res.PropertyIDs, r.PropertyID)
		}
		observability.ObserveResolution(supplier, string(r.Method))
	}

	for _, od := range offers {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		o := od.RoomOffer
		if o.SupplierCode == "" {
			o.SupplierCode = supplier
		}

		pid, ok := batchMap[o.SupplierHotelID]
		if !ok {
			m, err := s.store.FindMapping(ctx, supplier, o.SupplierHotelID)
			switch {
			case err == nil:
				pid = m.PropertyID
			case errors.Is(err, domain.ErrNotFound):
				res.Skipped++
				continue
			default:
				res.Failed++
				lg.Error().Err(err).Str("supplier_hotel_id", o.SupplierHotelID).Msg("mapping lookup failed")
				continue
			}
		}

		o.PropertyID = pid
		o.ProductKey = domain.ProductKey(o)
		if o.CreatedAt.IsZero() {
			o.CreatedAt = s.now()
		}
		if o.ID == "" {
			o.ID = normalize.OfferID(o)
		}

		inserted, err := sess.InsertOffer(ctx, o)
		if err != nil && !errors.Is(err, domain.ErrConflict) {
			res.Failed++
			lg.Error().Err(err).Str("offer_id", o.ID).Msg("insert offer failed")
			continue
		}
		if inserted {
			res.OffersInserted++
		}
		if _, ok := seenKeys[o.ProductKey]; !ok {
			seenKeys[o.ProductKey] = struct{}{}
			res.ProductKeys = append(res.ProductKeys, o.ProductKey)
		}
	}

	observability.ObserveOffers(supplier, "inserted", res.OffersInserted)
	lg.Info().
		Int("hotels_inserted", res.HotelsInserted).
		Int("hotels_matched", res.HotelsMatched).
		Int("offers_inserted", res.OffersInserted).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("batch merged")
	return res, nil
}

// RecordRejects writes rejected records to the reject log and returns how many
// were stored. Write failures are logged per record; only failing to open the
// session is returned.
func (s *MergeService) RecordRejects(ctx context.Context, supplier string, rejects []Reject) (int, error) {
	if len(rejects) == 0 {
		return 0, nil
	}
	supplier = strings.ToUpper(supplier)
	sess, err := s.store.OpenSession(ctx)
	if err != nil {
		return 0, fmt.Errorf("open catalog session: %w", err)
	}
	defer sess.Close()

	n := 0
	for _, r := range rejects {
		if s.logReject(ctx, sess, supplier, r) {
			n++
		}
	}
	return n, nil
}

func (s *MergeService) logReject(ctx context.Context, sess domain.CatalogSession, supplier string, r Reject) bool {
	if err := sess.LogReject(ctx, supplier, r.SupplierHotelID, r.Reason); err != nil {
		s.log.Error().Err(err).
			Str("supplier", supplier).
			Str("supplier_hotel_id", r.SupplierHotelID).
			Msg("log reject failed")
		return false
	}
	return true
}

// persistDraft resolves and upserts one draft. A uniqueness conflict means a
// concurrent writer got there first, so the draft is resolved once more.
func (s *MergeService) persistDraft(ctx context.Context, sess domain.CatalogSession, d domain.PropertyDraft) (resolve.Resolution, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		r, err := s.resolver.ResolveOrCreateProperty(ctx, d)
		if err != nil {
			return r, fmt.Errorf("resolve: %w", err)
		}
		now := s.now()
		err = sess.UpsertProperty(ctx, domain.Property{
			ID:            r.PropertyID,
			PropertyAttrs: d.PropertyAttrs,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if errors.Is(err, domain.ErrConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return r, fmt.Errorf("upsert property: %w", err)
		}
		err = sess.UpsertMapping(ctx, domain.SupplierMapping{
			SupplierCode:    d.SupplierCode,
			SupplierHotelID: d.SupplierHotelID,
			PropertyID:      r.PropertyID,
			Confidence:      r.Confidence,
			MatchedOn:       r.Method,
		})
		if err != nil {
			return r, fmt.Errorf("upsert mapping: %w", err)
		}
		return r, nil
	}
	return resolve.Resolution{}, fmt.Errorf("upsert property: %w", lastErr)
}
