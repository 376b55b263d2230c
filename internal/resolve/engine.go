// Package resolve decides which canonical property a supplier hotel belongs to.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
)

// Resolution is the outcome of matching one draft against the catalog.
type Resolution struct {
	PropertyID string
	IsNew      bool
	Method     domain.MatchMethod
	Confidence float64
}

// Engine runs the resolution waterfall. It only reads the catalog.
type Engine struct {
	catalog domain.CatalogReader
	cfg     Config
	newID   func() string
	log     zerolog.Logger
}

func NewEngine(c domain.CatalogReader, cfg Config) *Engine {
	return &Engine{
		catalog: c,
		cfg:     cfg,
		newID:   func() string { return uuid.NewString() },
		log:     log.With().Str("component", "resolve").Logger(),
	}
}

// ResolveOrCreateProperty tries, in order: GIATA id, the supplier's existing
// mapping, chain and brand in the same city, fuzzy name/geo/star scoring. When
// nothing matches a fresh property id is minted.
func (e *Engine) ResolveOrCreateProperty(ctx context.Context, d domain.PropertyDraft) (Resolution, error) {
	if d.GiataID != nil && strings.TrimSpace(*d.GiataID) != "" {
		p, err := e.catalog.FindByGiataID(ctx, strings.TrimSpace(*d.GiataID))
		switch {
		case err == nil:
			return Resolution{PropertyID: p.ID, Method: domain.MatchGiataExact, Confidence: 1.0}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return Resolution{}, fmt.Errorf("giata lookup: %w", err)
		}
	}

	m, err := e.catalog.FindMapping(ctx, d.SupplierCode, d.SupplierHotelID)
	switch {
	case err == nil:
		return Resolution{PropertyID: m.PropertyID, Method: m.MatchedOn, Confidence: m.Confidence}, nil
	case !errors.Is(err, domain.ErrNotFound):
		return Resolution{}, fmt.Errorf("mapping lookup: %w", err)
	}

	located := d.City != "" && d.Country != ""

	if located && d.ChainCode != nil && d.BrandCode != nil && *d.ChainCode != "" && *d.BrandCode != "" {
		p, err := e.catalog.FindByChainBrand(ctx, *d.ChainCode, *d.BrandCode, d.City, d.Country)
		switch {
		case err == nil:
			return Resolution{PropertyID: p.ID, Method: domain.MatchChainMapping, Confidence: e.cfg.ChainConfidence}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return Resolution{}, fmt.Errorf("chain lookup: %w", err)
		}
	}

	if located {
		cands, err := e.catalog.ListByCityCountry(ctx, d.City, d.Country)
		if err != nil {
			return Resolution{}, fmt.Errorf("candidate lookup: %w", err)
		}
		if best, score, ok := e.bestMatch(d.PropertyAttrs, cands); ok {
			e.log.Debug().
				Str("supplier", d.SupplierCode).
				Str("supplier_hotel_id", d.SupplierHotelID).
				Str("property_id", best.ID).
				Float64("score", score).
				Msg("fuzzy match")
			return Resolution{PropertyID: best.ID, Method: domain.MatchFuzzyGeo, Confidence: score}, nil
		}
	}

	return Resolution{PropertyID: e.newID(), IsNew: true, Method: domain.MatchNewProperty, Confidence: 1.0}, nil
}

// bestMatch returns the highest scoring candidate above the accept threshold.
// Ties keep the earlier candidate.
func (e *Engine) bestMatch(d domain.PropertyAttrs, cands []domain.Property) (domain.Property, float64, bool) {
	var (
		best  domain.Property
		score float64
		found bool
	)
	for _, c := range cands {
		s := Score(d, c.PropertyAttrs, e.cfg)
		if s > e.cfg.AcceptScore && (!found || s > score) {
			best, score, found = c, s, true
		}
	}
	return best, score, found
}
