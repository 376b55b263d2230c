package domain

import "time"

// SupplierRate is one supplier's contribution to a RateSnapshot.
type SupplierRate struct {
	Price     float64   `json:"price"`
	TrueCost  float64   `json:"true_cost"`
	Inventory *int      `json:"inventory,omitempty"`
	OfferID   string    `json:"offer_id"`
	LastSeen  time.Time `json:"last_seen"`
}

// RateSnapshot is the read-optimized best price per product key. It is a pure
// projection of active RoomOffer rows and can always be rebuilt from them.
type RateSnapshot struct {
	ProductKey  string                  `json:"product_key"`
	BestPrice   float64                 `json:"best_price"`
	Currency    string                  `json:"currency"`
	Suppliers   map[string]SupplierRate `json:"suppliers"`
	ExpiresAt   time.Time               `json:"expires_at"`
	LastUpdated time.Time               `json:"last_updated"`
}

// OffersRefreshed is published after a resync batch lands in the catalog.
type OffersRefreshed struct {
	SupplierCode   string    `json:"supplier_code"`
	Tier           string    `json:"tier"`
	City           string    `json:"city"`
	Country        string    `json:"country"`
	CheckIn        string    `json:"check_in"`
	CheckOut       string    `json:"check_out"`
	PropertyIDs    []string  `json:"property_ids"`
	ProductKeys    []string  `json:"product_keys"`
	OffersInserted int       `json:"offers_inserted"`
	OffersExpired  int64     `json:"offers_expired"`
	RefreshedAt    time.Time `json:"refreshed_at"`
}
