// Package normalize turns raw supplier hotel records into canonical drafts.
// It performs no I/O; callers decide what to do with rejected records.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"hotel_fusion/internal/domain"
)

const (
	RateHawk  = "RATEHAWK"
	Hotelbeds = "HOTELBEDS"
	TBO       = "TBO"
)

var (
	ErrMalformedRecord = errors.New("malformed supplier record")
	ErrUnknownSupplier = errors.New("unknown supplier")
)

// RejectError describes a record that cannot be normalized. It matches
// ErrMalformedRecord under errors.Is.
type RejectError struct {
	// SupplierHotelID is empty when the payload could not be decoded at all.
	SupplierHotelID string
	Reason          string
}

func (e *RejectError) Error() string {
	if e.SupplierHotelID == "" {
		return ErrMalformedRecord.Error() + ": " + e.Reason
	}
	return ErrMalformedRecord.Error() + ": " + e.SupplierHotelID + ": " + e.Reason
}

func (e *RejectError) Unwrap() error { return ErrMalformedRecord }

// offerNamespace seeds deterministic offer ids.
var offerNamespace = uuid.MustParse("6f1c7d3e-5a0b-4c9e-9b8f-2d7e4a1c0b53")

// Record is one normalized supplier hotel with the offers it carried.
type Record struct {
	Property domain.PropertyDraft
	Offers   []domain.OfferDraft
	// Dropped counts offers discarded for a missing or non-positive total.
	Dropped int
}

type Normalizer interface {
	Supplier() string
	Normalize(raw json.RawMessage, sc domain.SearchContext) (*Record, error)
}

var registry = map[string]Normalizer{
	RateHawk:  rateHawk{},
	Hotelbeds: hotelbeds{},
	TBO:       tbo{},
}

// For returns the normalizer registered for a supplier code.
func For(supplierCode string) (Normalizer, error) {
	n, ok := registry[strings.ToUpper(strings.TrimSpace(supplierCode))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSupplier, supplierCode)
	}
	return n, nil
}

// Suppliers lists the registered supplier codes in sorted order.
func Suppliers() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func decode(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return &RejectError{Reason: err.Error()}
	}
	return nil
}

// validate enforces the fields without which a record cannot be resolved.
func validate(d domain.PropertyDraft) error {
	switch {
	case strings.TrimSpace(d.SupplierHotelID) == "":
		return &RejectError{Reason: "missing supplier hotel id"}
	case strings.TrimSpace(d.Name) == "":
		return &RejectError{SupplierHotelID: d.SupplierHotelID, Reason: "missing name"}
	}
	return nil
}

// fillFromSearch completes the location from the search when the supplier left it out.
func fillFromSearch(a *domain.PropertyAttrs, sc domain.SearchContext) {
	if a.City == "" {
		a.City = sc.City
	}
	if a.Country == "" {
		a.Country = sc.Country
	}
	a.Country = strings.ToUpper(a.Country)
}

// finish applies the defaults shared by every supplier and reports whether the offer is usable.
func finish(o *domain.RoomOffer, supplierDefaultCurrency string, sc domain.SearchContext) bool {
	if o.PriceTotal <= 0 || math.IsNaN(o.PriceTotal) || math.IsInf(o.PriceTotal, 0) {
		return false
	}
	if o.Currency == "" {
		o.Currency = sc.Currency
	}
	if o.Currency == "" {
		o.Currency = supplierDefaultCurrency
	}
	o.Currency = strings.ToUpper(o.Currency)
	if o.BoardBasis == "" {
		o.BoardBasis = "RO"
	}
	if o.Adults == 0 {
		o.Adults = sc.Adults
	}
	if o.Children == 0 {
		o.Children = sc.Children
	}
	o.CheckIn, o.CheckOut = sc.CheckIn, sc.CheckOut
	o.CreatedAt = sc.FetchedAt
	o.ID = OfferID(*o)
	return true
}

// OfferID derives a stable id so that replaying the same fetch is idempotent.
func OfferID(o domain.RoomOffer) string {
	token := ""
	if o.RateToken != nil {
		token = *o.RateToken
	}
	parts := []string{
		o.SupplierCode, o.SupplierHotelID, o.RoomName, o.BoardBasis, token,
		o.CheckIn.Format(domain.DateLayout), o.CheckOut.Format(domain.DateLayout),
		o.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	return uuid.NewSHA1(offerNamespace, []byte(strings.Join(parts, "|"))).String()
}

func roundCents(f float64) float64 { return math.Round(f*100) / 100 }
