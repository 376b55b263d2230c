package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotel_fusion/internal/domain"
)

// session runs every statement in autocommit on one pinned connection, so a
// failing record never rolls back its siblings.
type session struct {
	conn *sql.Conn
	d    Dialect
}

func (s *session) Close() error { return s.conn.Close() }

func (s *session) conflict(err error) error {
	if err != nil && s.d.IsDuplicate(err) {
		return fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return err
}

// UpsertProperty inserts a new property or merges into the stored one
// following domain.PropertyMergePolicy. Unique violations surface as ErrConflict.
func (s *session) UpsertProperty(ctx context.Context, p domain.Property) error {
	var one int
	err := s.conn.QueryRowContext(ctx, propertyExistsSQL, p.ID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.conn.ExecContext(ctx, insertPropertySQL, s.insertArgs(p)...)
		return s.conflict(err)
	case err != nil:
		return err
	}
	_, err = s.conn.ExecContext(ctx, updatePropertySQL, s.updateArgs(p)...)
	return s.conflict(err)
}

// columnValue returns the argument for one merge-policy column.
func columnValue(p domain.Property, col string) any {
	switch col {
	case "name":
		return valText(p.Name)
	case "address":
		return valStr(p.Address)
	case "city":
		return valText(p.City)
	case "country":
		return valText(normCountry(p.Country))
	case "postal_code":
		return valStr(p.PostalCode)
	case "lat":
		return valF64(p.Lat)
	case "lng":
		return valF64(p.Lng)
	case "star_rating":
		return valF64(p.StarRating)
	case "review_score":
		return valF64(p.ReviewScore)
	case "review_count":
		return valInt(p.ReviewCount)
	case "chain_code":
		return valStr(p.ChainCode)
	case "brand_code":
		return valStr(p.BrandCode)
	case "giata_id":
		return valStr(p.GiataID)
	case "thumbnail_url":
		return valStr(p.ThumbnailURL)
	case "amenities":
		return valJSON(p.Amenities)
	case "checkin_from":
		return valStr(p.CheckInFrom)
	case "checkout_until":
		return valStr(p.CheckOutUntil)
	}
	panic("sqlstore: unknown property column " + col)
}

func (s *session) insertArgs(p domain.Property) []any {
	args := make([]any, 0, 20)
	args = append(args, p.ID)
	for _, c := range domain.PropertyMergePolicy {
		args = append(args, columnValue(p, c.Name))
	}
	return append(args, s.d.Time(stamp(p.CreatedAt)), s.d.Time(stamp(p.UpdatedAt)))
}

func (s *session) updateArgs(p domain.Property) []any {
	args := make([]any, 0, 19)
	for _, c := range domain.PropertyMergePolicy {
		args = append(args, columnValue(p, c.Name))
	}
	return append(args, s.d.Time(stamp(p.UpdatedAt)), p.ID)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func (s *session) UpsertMapping(ctx context.Context, m domain.SupplierMapping) error {
	now := s.d.Time(time.Now().UTC())
	_, err := s.conn.ExecContext(ctx, s.d.UpsertMapping,
		m.SupplierCode, m.SupplierHotelID, m.PropertyID, m.Confidence, string(m.MatchedOn), now, now)
	return s.conflict(err)
}

func (s *session) InsertOffer(ctx context.Context, o domain.RoomOffer) (bool, error) {
	res, err := s.conn.ExecContext(ctx, s.d.InsertOffer,
		o.ID, o.PropertyID, o.SupplierCode, o.SupplierHotelID, o.ProductKey, o.RoomName,
		o.BoardBasis, valStr(o.BedType), o.Refundable, o.FreeCancellation, s.d.timeOrNil(o.CancellableUntil),
		o.Adults, o.Children, o.Currency, valF64(o.PriceBase), valF64(o.PriceTaxes), o.PriceTotal,
		valF64(o.PricePerNight), valStr(o.RateToken), valInt(o.Availability),
		valDate(o.CheckIn), valDate(o.CheckOut), s.d.Time(stamp(o.CreatedAt)), s.d.timeOrNil(o.ExpiresAt),
	)
	if err != nil {
		return false, s.conflict(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *session) LogReject(ctx context.Context, supplierCode, supplierHotelID, reason string) error {
	_, err := s.conn.ExecContext(ctx, insertRejectSQL, supplierCode, supplierHotelID, reason, s.d.Time(time.Now().UTC()))
	return err
}
