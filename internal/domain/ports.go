package domain

import (
	"context"
	"encoding/json"
	"time"
)

// CatalogReader is the read side used by entity resolution. Lookups that find
// nothing return ErrNotFound.
type CatalogReader interface {
	FindByGiataID(ctx context.Context, giataID string) (Property, error)
	FindMapping(ctx context.Context, supplierCode, supplierHotelID string) (SupplierMapping, error)
	FindByChainBrand(ctx context.Context, chain, brand, city, country string) (Property, error)
	ListByCityCountry(ctx context.Context, city, country string) ([]Property, error)
}

// CatalogSession is one open persistence session. Each call commits on its own
// so a failing record never rolls back its siblings.
type CatalogSession interface {
	UpsertProperty(ctx context.Context, p Property) error
	UpsertMapping(ctx context.Context, m SupplierMapping) error
	// InsertOffer reports false when the offer key already exists.
	InsertOffer(ctx context.Context, o RoomOffer) (bool, error)
	LogReject(ctx context.Context, supplierCode, supplierHotelID, reason string) error
	Close() error
}

type StaleQuery struct {
	SupplierCode string
	// Groups whose newest offer was created at or after OlderThan are fresh.
	OlderThan   time.Time
	Now         time.Time
	OnlyKeys    []string
	ExcludeKeys []string
	Limit       int
}

// StaleGroup is one (property, dates) tuple due for a refresh.
type StaleGroup struct {
	PropertyID string
	City       string
	Country    string
	CheckIn    time.Time
	CheckOut   time.Time
	OfferCount int
	LastSeen   time.Time
}

type ExpireQuery struct {
	SupplierCode  string
	PropertyIDs   []string
	CheckIn       time.Time
	CheckOut      time.Time
	CreatedBefore time.Time
	At            time.Time
}

// ExpireResult lists what an expiry pass closed. ProductKeys are distinct.
type ExpireResult struct {
	Expired     int64
	ProductKeys []string
}

// CatalogStore is the persisted catalog.
type CatalogStore interface {
	CatalogReader
	Ping(ctx context.Context) error
	OpenSession(ctx context.Context) (CatalogSession, error)

	FindStale(ctx context.Context, q StaleQuery) ([]StaleGroup, error)
	ExpireOffers(ctx context.Context, q ExpireQuery) (ExpireResult, error)
	MappingsForProperties(ctx context.Context, supplierCode string, propertyIDs []string) ([]SupplierMapping, error)
	LastOfferAt(ctx context.Context, supplierCode string) (*time.Time, error)

	ListActiveOffers(ctx context.Context, productKeys []string, now time.Time) ([]RoomOffer, error)
	UpsertRateSnapshot(ctx context.Context, s RateSnapshot) error
	GetRateSnapshot(ctx context.Context, productKey string) (RateSnapshot, error)

	RecordProductQuery(ctx context.Context, productKey string, at time.Time) error
	TopProductKeys(ctx context.Context, supplierCode string, since time.Time, limit int) ([]string, error)
}

// RoomRequest is one requested room in a supplier search.
type RoomRequest struct {
	Adults   int   `json:"adults"`
	Children []int `json:"children,omitempty"`
}

// SearchParams is the supplier-agnostic search request.
type SearchParams struct {
	Destination     string        `json:"destination"`
	DestinationCode string        `json:"destination_code,omitempty"`
	Country         string        `json:"country,omitempty"`
	CheckIn         string        `json:"check_in"`
	CheckOut        string        `json:"check_out"`
	Rooms           []RoomRequest `json:"rooms"`
	Currency        string        `json:"currency"`
	HotelIDs        []string      `json:"hotel_ids,omitempty"`
	MaxResults      int           `json:"max_results"`
}

// SupplierClient returns raw hotel records; each element is one hotel with its rates.
type SupplierClient interface {
	SearchHotels(ctx context.Context, p SearchParams) ([]json.RawMessage, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type EventPublisher interface {
	PublishOffersRefreshed(ctx context.Context, ev OffersRefreshed) error
}
