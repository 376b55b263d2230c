package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// DateLayout is the wire and storage format of search dates.
const DateLayout = "2006-01-02"

// SearchContext is the search an offer was produced for.
type SearchContext struct {
	City      string
	Country   string
	CheckIn   time.Time
	CheckOut  time.Time
	Adults    int
	Children  int
	Currency  string
	FetchedAt time.Time
}

// Nights returns the stay length, or 0 when the dates are unusable.
func (sc SearchContext) Nights() int {
	if sc.CheckIn.IsZero() || sc.CheckOut.IsZero() {
		return 0
	}
	n := int(sc.CheckOut.Sub(sc.CheckIn).Hours() / 24)
	if n < 0 {
		return 0
	}
	return n
}

// RoomOffer is one bookable rate for a property, valid while ExpiresAt is nil or in the future.
type RoomOffer struct {
	ID               string
	PropertyID       string
	SupplierCode     string
	SupplierHotelID  string
	ProductKey       string
	RoomName         string
	BoardBasis       string
	BedType          *string
	Refundable       bool
	FreeCancellation bool
	CancellableUntil *time.Time
	Adults           int
	Children         int
	Currency         string
	PriceBase        *float64
	PriceTaxes       *float64
	PriceTotal       float64
	PricePerNight    *float64
	RateToken        *string
	Availability     *int
	CheckIn          time.Time
	CheckOut         time.Time
	CreatedAt        time.Time
	ExpiresAt        *time.Time
}

// ActiveAt reports whether the offer is still readable at t.
func (o RoomOffer) ActiveAt(t time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(t)
}

// TrueCost is the supplier's net price when known, else the total.
func (o RoomOffer) TrueCost() float64 {
	if o.PriceBase != nil && *o.PriceBase > 0 {
		return *o.PriceBase
	}
	return o.PriceTotal
}

// OfferDraft is a normalized offer whose property is not resolved yet.
// PropertyID and ProductKey are filled by the writer.
type OfferDraft struct {
	RoomOffer
}

// ProductKey builds the canonical product key used by the rate snapshot tier.
func ProductKey(o RoomOffer) string {
	cxl := "CXL-STRICT"
	if o.Refundable || o.FreeCancellation {
		cxl = "CXL-FLEX"
	}
	board := strings.ToUpper(strings.TrimSpace(o.BoardBasis))
	if board == "" {
		board = "RO"
	}
	return fmt.Sprintf("HT:%s:%s:%s:%s:%s:%s",
		o.PropertyID, slug(o.RoomName), board, cxl,
		o.CheckIn.Format(DateLayout), o.CheckOut.Format(DateLayout))
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "room"
	}
	return out
}
