package normalize

import (
	"encoding/json"

	"hotel_fusion/internal/domain"
)

// HotelbedsHotel is the Hotelbeds availability hotel. Rates may sit at the
// top level or under rooms[].rates.
type HotelbedsHotel struct {
	ID      Str `json:"id"`
	Code    Str `json:"code"`
	Name    Str `json:"name"`
	Address struct {
		Street     Str `json:"street"`
		City       Str `json:"city"`
		Country    Str `json:"country"`
		PostalCode Str `json:"postalCode"`
	} `json:"address"`
	Coordinates struct {
		Latitude  Num `json:"latitude"`
		Longitude Num `json:"longitude"`
	} `json:"coordinates"`
	Category struct {
		Code Num `json:"code"`
	} `json:"category"`
	Review struct {
		Score       Num `json:"score"`
		ReviewCount Num `json:"reviewCount"`
	} `json:"review"`
	ChainCode Str `json:"chainCode"`
	BrandCode Str `json:"brandCode"`
	GiataCode Str `json:"giataCode"`
	Image     struct {
		URL Str `json:"url"`
	} `json:"image"`
	Facilities Strings         `json:"facilities"`
	Rooms      []HotelbedsRoom `json:"rooms"`
	Rates      []HotelbedsRate `json:"rates"`
}

type HotelbedsRoom struct {
	Code  Str             `json:"code"`
	Name  Str             `json:"name"`
	Type  Str             `json:"type"`
	Rates []HotelbedsRate `json:"rates"`
}

type HotelbedsRate struct {
	RoomName Str `json:"roomName"`
	Room     struct {
		Name Str `json:"name"`
		Type Str `json:"type"`
	} `json:"room"`
	BoardName            Str `json:"boardName"`
	CancellationPolicies []struct {
		Refundable Bool `json:"refundable"`
		Amount     Num  `json:"amount"`
		From       Time `json:"from"`
	} `json:"cancellationPolicies"`
	Pax struct {
		Adults   Num      `json:"adults"`
		Children Children `json:"children"`
	} `json:"pax"`
	Currency  Str `json:"currency"`
	Net       Num `json:"net"`
	Taxes     Num `json:"taxes"`
	Allotment struct {
		Price Num `json:"price"`
	} `json:"allotment"`
	Price         Num `json:"price"`
	PricePerNight Num `json:"pricePerNight"`
	RateKey       Str `json:"rateKey"`
	Avail         Num `json:"avail"`
}

type hotelbeds struct{}

func (hotelbeds) Supplier() string { return Hotelbeds }

func (hotelbeds) Normalize(raw json.RawMessage, sc domain.SearchContext) (*Record, error) {
	var h HotelbedsHotel
	if err := decode(raw, &h); err != nil {
		return nil, err
	}
	d := domain.PropertyDraft{
		SupplierCode:    Hotelbeds,
		SupplierHotelID: firstStr(h.ID, h.Code),
		PropertyAttrs: domain.PropertyAttrs{
			Name:         string(h.Name),
			Address:      firstStrPtr(h.Address.Street),
			City:         string(h.Address.City),
			Country:      string(h.Address.Country),
			PostalCode:   firstStrPtr(h.Address.PostalCode),
			Lat:          firstNum(h.Coordinates.Latitude),
			Lng:          firstNum(h.Coordinates.Longitude),
			StarRating:   firstNum(h.Category.Code),
			ReviewScore:  firstNum(h.Review.Score),
			ReviewCount:  firstInt(h.Review.ReviewCount),
			ChainCode:    firstStrPtr(h.ChainCode),
			BrandCode:    firstStrPtr(h.BrandCode),
			GiataID:      firstStrPtr(h.GiataCode),
			ThumbnailURL: firstStrPtr(h.Image.URL),
			Amenities:    h.Facilities,
		},
	}
	if err := validate(d); err != nil {
		return nil, err
	}
	fillFromSearch(&d.PropertyAttrs, sc)

	rec := &Record{Property: d}
	add := func(r HotelbedsRate, room *HotelbedsRoom) {
		refundable := len(r.CancellationPolicies) > 0 && bool(r.CancellationPolicies[0].Refundable)
		o := domain.RoomOffer{
			SupplierCode:     Hotelbeds,
			SupplierHotelID:  d.SupplierHotelID,
			RoomName:         firstStr(r.RoomName, r.Room.Name),
			BoardBasis:       string(r.BoardName),
			BedType:          firstStrPtr(r.Room.Type),
			Refundable:       refundable,
			FreeCancellation: refundable,
			Adults:           int(firstNumOr(0, r.Pax.Adults)),
			Children:         firstChildren(r.Pax.Children),
			Currency:         string(r.Currency),
			PriceBase:        firstNum(r.Net),
			PriceTaxes:       firstNum(r.Taxes),
			PriceTotal:       firstNumOr(0, r.Allotment.Price, r.Price),
			PricePerNight:    firstNum(r.PricePerNight),
			RateToken:        firstStrPtr(r.RateKey),
			Availability:     firstInt(r.Avail),
		}
		if refundable {
			o.CancellableUntil = firstTime(r.CancellationPolicies[0].From)
		}
		if room != nil {
			if o.RoomName == "" {
				o.RoomName = string(room.Name)
			}
			if o.BedType == nil {
				o.BedType = firstStrPtr(room.Type)
			}
		}
		if !finish(&o, "EUR", sc) {
			rec.Dropped++
			return
		}
		rec.Offers = append(rec.Offers, domain.OfferDraft{RoomOffer: o})
	}
	for i := range h.Rooms {
		for _, r := range h.Rooms[i].Rates {
			add(r, &h.Rooms[i])
		}
	}
	for _, r := range h.Rates {
		add(r, nil)
	}
	return rec, nil
}
