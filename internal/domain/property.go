package domain

import "time"

// MatchMethod records how a supplier hotel was tied to a canonical property.
type MatchMethod string

const (
	MatchGiataExact   MatchMethod = "giata_exact"
	MatchChainMapping MatchMethod = "chain_mapping"
	MatchFuzzyGeo     MatchMethod = "fuzzy_geo"
	MatchNewProperty  MatchMethod = "new_property"
)

// PropertyAttrs are the canonical hotel fields shared by drafts and stored rows.
type PropertyAttrs struct {
	Name          string
	Address       *string
	City          string
	Country       string
	PostalCode    *string
	Lat, Lng      *float64
	StarRating    *float64
	ReviewScore   *float64
	ReviewCount   *int
	ChainCode     *string
	BrandCode     *string
	GiataID       *string
	ThumbnailURL  *string
	Amenities     []string
	CheckInFrom   *string
	CheckOutUntil *string
}

// HasCoords reports whether both coordinates are known.
func (a PropertyAttrs) HasCoords() bool { return a.Lat != nil && a.Lng != nil }

// Property is a canonical hotel. ID is minted once and never reassigned.
type Property struct {
	ID string
	PropertyAttrs
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PropertyDraft is a normalized supplier hotel that has not been resolved yet.
type PropertyDraft struct {
	SupplierCode    string
	SupplierHotelID string
	PropertyAttrs
}

// SupplierMapping ties (SupplierCode, SupplierHotelID) to exactly one property.
type SupplierMapping struct {
	SupplierCode    string
	SupplierHotelID string
	PropertyID      string
	Confidence      float64
	MatchedOn       MatchMethod
}

// MergeRule decides what happens to a stored column when a matching draft arrives.
type MergeRule int

const (
	// FillIfNull keeps the stored value; the incoming value only fills a NULL.
	FillIfNull MergeRule = iota
	// AlwaysRefresh takes the incoming value whenever it is present.
	AlwaysRefresh
)

// PropertyColumn is one row of the property merge policy.
type PropertyColumn struct {
	Name string
	Rule MergeRule
}

// PropertyMergePolicy lists every mutable properties column in insert order.
// Storage adapters build their upsert statements from it.
var PropertyMergePolicy = []PropertyColumn{
	{"name", AlwaysRefresh},
	{"address", FillIfNull},
	{"city", FillIfNull},
	{"country", FillIfNull},
	{"postal_code", FillIfNull},
	{"lat", FillIfNull},
	{"lng", FillIfNull},
	{"star_rating", AlwaysRefresh},
	{"review_score", FillIfNull},
	{"review_count", FillIfNull},
	{"chain_code", FillIfNull},
	{"brand_code", FillIfNull},
	{"giata_id", FillIfNull},
	{"thumbnail_url", AlwaysRefresh},
	{"amenities", FillIfNull},
	{"checkin_from", FillIfNull},
	{"checkout_until", FillIfNull},
}
