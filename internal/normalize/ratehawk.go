package normalize

import (
	"bytes"
	"encoding/json"

	"hotel_fusion/internal/domain"
)

// RateHawkHotel is the RateHawk hotel payload with its rates inlined.
type RateHawkHotel struct {
	ID          Str `json:"id"`
	HotelID     Str `json:"hotel_id"`
	Name        Str `json:"name"`
	Address     Str `json:"address"`
	City        Str `json:"city"`
	Region      struct {
		Name Str `json:"name"`
	} `json:"region"`
	CountryCode Str `json:"country_code"`
	PostalCode  Str `json:"postal_code"`
	Location    struct {
		Coordinates struct {
			Lat Num `json:"lat"`
			Lon Num `json:"lon"`
		} `json:"coordinates"`
	} `json:"location"`
	StarRating    Num            `json:"star_rating"`
	ReviewScore   Num            `json:"review_score"`
	ReviewCount   Num            `json:"review_count"`
	ChainCode     Str            `json:"chain_code"`
	BrandCode     Str            `json:"brand_code"`
	GiataID       Str            `json:"giata_id"`
	ImageURL      Str            `json:"image_url"`
	Amenities     Strings        `json:"amenities"`
	CheckinFrom   Str            `json:"checkin_from"`
	CheckoutUntil Str            `json:"checkout_until"`
	Rates         []RateHawkRate `json:"rates"`
}

// RateHawkPrice is either a breakdown object or a bare total.
type RateHawkPrice struct {
	Base     Num `json:"base"`
	Taxes    Num `json:"taxes"`
	Total    Num `json:"total"`
	PerNight Num `json:"per_night"`
	flat     Num
}

func (p *RateHawkPrice) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		type plain RateHawkPrice
		var v plain
		if json.Unmarshal(b, &v) == nil {
			*p = RateHawkPrice(v)
		}
		return nil
	}
	return p.flat.UnmarshalJSON(b)
}

type RateHawkRate struct {
	RoomName         Str  `json:"room_name"`
	Room             Str  `json:"room"`
	BoardBasis       Str  `json:"board_basis"`
	Board            Str  `json:"board"`
	BedType          Str  `json:"bed_type"`
	Refundable       Bool `json:"refundable"`
	FreeCancellation Bool `json:"free_cancellation"`
	CancellableUntil Time `json:"cancellable_until"`
	Occupancy        struct {
		Adults   Num      `json:"adults"`
		Children Children `json:"children"`
	} `json:"occupancy"`
	Currency          Str           `json:"currency"`
	Price             RateHawkPrice `json:"price"`
	PriceBase         Num           `json:"price_base"`
	PriceTaxes        Num           `json:"price_taxes"`
	TotalPrice        Num           `json:"total_price"`
	PricePerNight     Num           `json:"price_per_night"`
	RateKey           Str           `json:"rate_key"`
	Token             Str           `json:"token"`
	AvailabilityCount Num           `json:"availability_count"`
}

type rateHawk struct{}

func (rateHawk) Supplier() string { return RateHawk }

func (n rateHawk) Normalize(raw json.RawMessage, sc domain.SearchContext) (*Record, error) {
	var h RateHawkHotel
	if err := decode(raw, &h); err != nil {
		return nil, err
	}
	d := domain.PropertyDraft{
		SupplierCode:    RateHawk,
		SupplierHotelID: firstStr(h.ID, h.HotelID),
		PropertyAttrs: domain.PropertyAttrs{
			Name:          string(h.Name),
			Address:       firstStrPtr(h.Address),
			City:          firstStr(h.City, h.Region.Name),
			Country:       string(h.CountryCode),
			PostalCode:    firstStrPtr(h.PostalCode),
			Lat:           firstNum(h.Location.Coordinates.Lat),
			Lng:           firstNum(h.Location.Coordinates.Lon),
			StarRating:    firstNum(h.StarRating),
			ReviewScore:   firstNum(h.ReviewScore),
			ReviewCount:   firstInt(h.ReviewCount),
			ChainCode:     firstStrPtr(h.ChainCode),
			BrandCode:     firstStrPtr(h.BrandCode),
			GiataID:       firstStrPtr(h.GiataID),
			ThumbnailURL:  firstStrPtr(h.ImageURL),
			Amenities:     h.Amenities,
			CheckInFrom:   firstStrPtr(h.CheckinFrom),
			CheckOutUntil: firstStrPtr(h.CheckoutUntil),
		},
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	fillFromSearch(&d.PropertyAttrs, sc)

	rec := &Record{Property: d}
	for _, r := range h.Rates {
		o := domain.RoomOffer{
			SupplierCode:     RateHawk,
			SupplierHotelID:  d.SupplierHotelID,
			RoomName:         firstStr(r.RoomName, r.Room),
			BoardBasis:       firstStr(r.BoardBasis, r.Board),
			BedType:          firstStrPtr(r.BedType),
			Refundable:       bool(r.Refundable),
			FreeCancellation: bool(r.FreeCancellation),
			CancellableUntil: firstTime(r.CancellableUntil),
			Adults:           int(firstNumOr(0, r.Occupancy.Adults)),
			Children:         firstChildren(r.Occupancy.Children),
			Currency:         string(r.Currency),
			PriceBase:        firstNum(r.Price.Base, r.PriceBase),
			PriceTaxes:       firstNum(r.Price.Taxes, r.PriceTaxes),
			PriceTotal:       firstNumOr(0, r.Price.Total, r.TotalPrice, r.Price.flat),
			PricePerNight:    firstNum(r.Price.PerNight, r.PricePerNight),
			RateToken:        firstStrPtr(r.RateKey, r.Token),
			Availability:     firstInt(r.AvailabilityCount),
		}
		if !finish(&o, "USD", sc) {
			rec.Dropped++
			continue
		}
		rec.Offers = append(rec.Offers, domain.OfferDraft{RoomOffer: o})
	}
	return rec, nil
}
