package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"hotel_fusion/internal/domain"
)

// TBOHotel is the TBO hotel result with its room options.
type TBOHotel struct {
	HotelCode   Str `json:"HotelCode"`
	HotelID     Str `json:"HotelId"`
	ID          Str `json:"Id"`
	HotelName   Str `json:"HotelName"`
	Name        Str `json:"Name"`
	Address     Str `json:"Address"`
	Location    Str `json:"Location"`
	CityName    Str `json:"CityName"`
	City        Str `json:"City"`
	CountryCode Str `json:"CountryCode"`
	Country     Str `json:"Country"`
	PostalCode  Str `json:"PostalCode"`
	Latitude    Num `json:"Latitude"`
	Lat         Num `json:"lat"`
	Longitude   Num `json:"Longitude"`
	Lng         Num `json:"lng"`
	Geo         struct {
		Lat  Num `json:"Lat"`
		Long Num `json:"Long"`
	} `json:"Geo"`
	StarRating      Num     `json:"StarRating"`
	Category        Num     `json:"Category"`
	ReviewScore     Num     `json:"ReviewScore"`
	ReviewCount     Num     `json:"ReviewCount"`
	ChainCode       Str     `json:"ChainCode"`
	BrandCode       Str     `json:"BrandCode"`
	GiataID         Str     `json:"GiataId"`
	GIATA           Str     `json:"GIATA"`
	ImageURL        Str     `json:"ImageUrl"`
	ThumbnailURL    Str     `json:"ThumbnailUrl"`
	Images          []struct {
		URL Str `json:"Url"`
	} `json:"Images"`
	Amenities       Strings   `json:"Amenities"`
	Facilities      Strings   `json:"Facilities"`
	HotelFacilities Strings   `json:"HotelFacilities"`
	CheckInTime     Str       `json:"CheckInTime"`
	CheckIn         Str       `json:"CheckIn"`
	CheckOutTime    Str       `json:"CheckOutTime"`
	CheckOut        Str       `json:"CheckOut"`
	Rooms           []TBORoom `json:"Rooms"`
}

type TBOCancellationPolicy struct {
	CancellationCharge Num  `json:"CancellationCharge"`
	Charge             Num  `json:"Charge"`
	FromDate           Time `json:"FromDate"`
}

type TBORoom struct {
	RoomName             Str                     `json:"RoomName"`
	RoomTypeName         Str                     `json:"RoomTypeName"`
	Room                 Str                     `json:"Room"`
	MealType             Str                     `json:"MealType"`
	BoardType            Str                     `json:"BoardType"`
	Board                Str                     `json:"Board"`
	BedType              Str                     `json:"BedType"`
	Bedding              Str                     `json:"Bedding"`
	IsNonRefundable      Bool                    `json:"IsNonRefundable"`
	IsRefundable         Bool                    `json:"IsRefundable"`
	CancellationPolicy   Str                     `json:"CancellationPolicy"`
	FreeCancellationTill Time                    `json:"FreeCancellationTill"`
	FreeCancelTill       Time                    `json:"FreeCancelTill"`
	CancellationPolicies []TBOCancellationPolicy `json:"CancellationPolicies"`
	Currency             Str                     `json:"Currency"`
	RateCurrency         Str                     `json:"RateCurrency"`
	TotalPrice           Num                     `json:"TotalPrice"`
	PublishedPrice       Num                     `json:"PublishedPrice"`
	Price                Num                     `json:"Price"`
	BasePrice            Num                     `json:"BasePrice"`
	NetFare              Num                     `json:"NetFare"`
	Net                  Num                     `json:"Net"`
	Taxes                Num                     `json:"Taxes"`
	TotalTax             Num                     `json:"TotalTax"`
	Tax                  Num                     `json:"Tax"`
	PricePerNight        Num                     `json:"PricePerNight"`
	PerNightPrice        Num                     `json:"PerNightPrice"`
	Availability         Num                     `json:"Availability"`
	RoomsLeft            Num                     `json:"RoomsLeft"`
	RemainingRooms       Num                     `json:"RemainingRooms"`
	Occupancy            struct {
		Adults   Num      `json:"Adults"`
		Children Children `json:"Children"`
	} `json:"Occupancy"`
	Adults       Num      `json:"Adults"`
	Children     Children `json:"Children"`
	RateKey      Str      `json:"RateKey"`
	RateKeyToken Str      `json:"RateKeyToken"`
	Token        Str      `json:"Token"`
}

type tbo struct{}

func (tbo) Supplier() string { return TBO }

func (tbo) Normalize(raw json.RawMessage, sc domain.SearchContext) (*Record, error) {
	var h TBOHotel
	if err := decode(raw, &h); err != nil {
		return nil, err
	}
	thumb := firstStrPtr(h.ImageURL, h.ThumbnailURL)
	if thumb == nil && len(h.Images) > 0 {
		thumb = firstStrPtr(h.Images[0].URL)
	}
	d := domain.PropertyDraft{
		SupplierCode:    TBO,
		SupplierHotelID: firstStr(h.HotelCode, h.HotelID, h.ID),
		PropertyAttrs: domain.PropertyAttrs{
			Name:          firstStr(h.HotelName, h.Name),
			Address:       firstStrPtr(h.Address, h.Location),
			City:          firstStr(h.CityName, h.City),
			Country:       firstStr(h.CountryCode, h.Country),
			PostalCode:    firstStrPtr(h.PostalCode),
			Lat:           firstNum(h.Latitude, h.Lat, h.Geo.Lat),
			Lng:           firstNum(h.Longitude, h.Lng, h.Geo.Long),
			StarRating:    firstNum(h.StarRating, h.Category),
			ReviewScore:   firstNum(h.ReviewScore),
			ReviewCount:   firstInt(h.ReviewCount),
			ChainCode:     firstStrPtr(h.ChainCode),
			BrandCode:     firstStrPtr(h.BrandCode),
			GiataID:       firstStrPtr(h.GiataID, h.GIATA),
			ThumbnailURL:  thumb,
			Amenities:     firstStrings(h.Amenities, h.Facilities, h.HotelFacilities),
			CheckInFrom:   firstStrPtr(h.CheckInTime, h.CheckIn),
			CheckOutUntil: firstStrPtr(h.CheckOutTime, h.CheckOut),
		},
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	fillFromSearch(&d.PropertyAttrs, sc)

	nights := sc.Nights()
	rec := &Record{Property: d}
	for _, r := range h.Rooms {
		nonRefundable := bool(r.IsNonRefundable) ||
			strings.Contains(strings.ToLower(string(r.CancellationPolicy)), "non refundable")
		deadline := tboDeadline(r)
		o := domain.RoomOffer{
			SupplierCode:     TBO,
			SupplierHotelID:  d.SupplierHotelID,
			RoomName:         firstStr(r.RoomName, r.RoomTypeName, r.Room),
			BoardBasis:       firstStr(r.MealType, r.BoardType, r.Board),
			BedType:          firstStrPtr(r.BedType, r.Bedding),
			Refundable:       bool(r.IsRefundable) || !nonRefundable,
			FreeCancellation: deadline != nil,
			CancellableUntil: deadline,
			Adults:           int(firstNumOr(0, r.Occupancy.Adults, r.Adults)),
			Children:         firstChildren(r.Occupancy.Children, r.Children),
			Currency:         firstStr(r.Currency, r.RateCurrency),
			PriceBase:        firstNum(r.BasePrice, r.NetFare, r.Net),
			PriceTaxes:       firstNum(r.Taxes, r.TotalTax, r.Tax),
			PriceTotal:       firstNumOr(0, r.TotalPrice, r.PublishedPrice, r.Price),
			PricePerNight:    firstNum(r.PricePerNight, r.PerNightPrice),
			RateToken:        firstStrPtr(r.RateKey, r.RateKeyToken, r.Token),
			Availability:     firstInt(r.Availability, r.RoomsLeft, r.RemainingRooms),
		}
		if o.PricePerNight == nil && nights > 0 && o.PriceTotal > 0 {
			pn := roundCents(o.PriceTotal / float64(nights))
			o.PricePerNight = &pn
		}
		if !finish(&o, "USD", sc) {
			rec.Dropped++
			continue
		}
		rec.Offers = append(rec.Offers, domain.OfferDraft{RoomOffer: o})
	}
	return rec, nil
}

// tboDeadline is the explicit free-cancellation date, else the first zero-charge
// policy date, else the first policy date.
func tboDeadline(r TBORoom) *time.Time {
	if t := firstTime(r.FreeCancellationTill, r.FreeCancelTill); t != nil {
		return t
	}
	for _, p := range r.CancellationPolicies {
		if firstNumOr(0, p.CancellationCharge, p.Charge) == 0 && p.FromDate.ok {
			return firstTime(p.FromDate)
		}
	}
	if len(r.CancellationPolicies) > 0 {
		return firstTime(r.CancellationPolicies[0].FromDate)
	}
	return nil
}
