package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
)

var _ domain.CatalogStore = (*Store)(nil)

// Store implements domain.CatalogStore on database/sql.
type Store struct {
	db *sql.DB
	d  Dialect
}

func New(db *sql.DB, d Dialect) *Store { return &Store{db: db, d: d} }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(r rowScanner) (domain.Property, error) {
	var (
		p                                          domain.Property
		address, city, country, postal             sql.NullString
		chain, brand, giata, thumb, amen, cin, cout sql.NullString
		lat, lng, stars, score                     sql.NullFloat64
		reviews                                    sql.NullInt64
		created, updated                           nullTime
	)
	if err := r.Scan(
		&p.ID, &p.Name, &address, &city, &country, &postal, &lat, &lng, &stars,
		&score, &reviews, &chain, &brand, &giata, &thumb, &amen,
		&cin, &cout, &created, &updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Property{}, domain.ErrNotFound
		}
		return domain.Property{}, err
	}
	p.Address = strPtr(address)
	p.City, p.Country = city.String, country.String
	p.PostalCode = strPtr(postal)
	p.Lat, p.Lng = f64Ptr(lat), f64Ptr(lng)
	p.StarRating, p.ReviewScore = f64Ptr(stars), f64Ptr(score)
	p.ReviewCount = intPtr(reviews)
	p.ChainCode, p.BrandCode, p.GiataID = strPtr(chain), strPtr(brand), strPtr(giata)
	p.ThumbnailURL = strPtr(thumb)
	if amen.Valid {
		if err := json.Unmarshal([]byte(amen.String), &p.Amenities); err != nil {
			log.Warn().Err(err).Str("property_id", p.ID).Msg("amenities column unreadable, ignored")
		}
	}
	p.CheckInFrom, p.CheckOutUntil = strPtr(cin), strPtr(cout)
	p.CreatedAt, p.UpdatedAt = created.Time, updated.Time
	return p, nil
}

func scanMapping(r rowScanner) (domain.SupplierMapping, error) {
	var m domain.SupplierMapping
	var method string
	if err := r.Scan(&m.SupplierCode, &m.SupplierHotelID, &m.PropertyID, &m.Confidence, &method); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SupplierMapping{}, domain.ErrNotFound
		}
		return domain.SupplierMapping{}, err
	}
	m.MatchedOn = domain.MatchMethod(method)
	return m, nil
}

func scanOffer(r rowScanner) (domain.RoomOffer, error) {
	var (
		o                              domain.RoomOffer
		bed, token                     sql.NullString
		base, taxes, perNight          sql.NullFloat64
		avail                          sql.NullInt64
		cancelUntil, ci, co, cat, exp  nullTime
	)
	if err := r.Scan(
		&o.ID, &o.PropertyID, &o.SupplierCode, &o.SupplierHotelID, &o.ProductKey, &o.RoomName,
		&o.BoardBasis, &bed, &o.Refundable, &o.FreeCancellation, &cancelUntil, &o.Adults, &o.Children,
		&o.Currency, &base, &taxes, &o.PriceTotal, &perNight, &token, &avail,
		&ci, &co, &cat, &exp,
	); err != nil {
		return domain.RoomOffer{}, err
	}
	o.BedType, o.RateToken = strPtr(bed), strPtr(token)
	o.CancellableUntil = cancelUntil.Ptr()
	o.PriceBase, o.PriceTaxes, o.PricePerNight = f64Ptr(base), f64Ptr(taxes), f64Ptr(perNight)
	o.Availability = intPtr(avail)
	o.CheckIn, o.CheckOut, o.CreatedAt = ci.Time, co.Time, cat.Time
	o.ExpiresAt = exp.Ptr()
	return o, nil
}

func (s *Store) FindByGiataID(ctx context.Context, giataID string) (domain.Property, error) {
	return scanProperty(s.db.QueryRowContext(ctx, getByGiataSQL, giataID))
}

func (s *Store) FindMapping(ctx context.Context, supplierCode, supplierHotelID string) (domain.SupplierMapping, error) {
	return scanMapping(s.db.QueryRowContext(ctx, getMappingSQL, supplierCode, supplierHotelID))
}

func (s *Store) FindByChainBrand(ctx context.Context, chain, brand, city, country string) (domain.Property, error) {
	return scanProperty(s.db.QueryRowContext(ctx, getByChainBrandSQL, chain, brand, city, country))
}

func (s *Store) ListByCityCountry(ctx context.Context, city, country string) ([]domain.Property, error) {
	rows, err := s.db.QueryContext(ctx, listByCityCountrySQL, city, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) MappingsForProperties(ctx context.Context, supplierCode string, propertyIDs []string) ([]domain.SupplierMapping, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}
	q := mappingsForPropertiesPrefix + placeholders(len(propertyIDs)) + ")"
	args := append([]any{supplierCode}, strArgs(propertyIDs)...)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.SupplierMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) FindStale(ctx context.Context, q domain.StaleQuery) ([]domain.StaleGroup, error) {
	args := []any{q.SupplierCode}
	var filter string
	switch {
	case len(q.OnlyKeys) > 0:
		filter = "\n  AND o.product_key IN (" + placeholders(len(q.OnlyKeys)) + ")"
		args = append(args, strArgs(q.OnlyKeys)...)
	case len(q.ExcludeKeys) > 0:
		filter = "\n  AND o.product_key NOT IN (" + placeholders(len(q.ExcludeKeys)) + ")"
		args = append(args, strArgs(q.ExcludeKeys)...)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}
	args = append(args, s.d.Time(q.OlderThan), s.d.Time(q.Now), limit)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(staleGroupsSQL, filter), args...)
	if err != nil {
		return nil, fmt.Errorf("find stale: %w", err)
	}
	defer rows.Close()
	var out []domain.StaleGroup
	for rows.Next() {
		var g domain.StaleGroup
		var ci, co, last nullTime
		if err := rows.Scan(&g.PropertyID, &g.City, &g.Country, &ci, &co, &g.OfferCount, &last); err != nil {
			return nil, err
		}
		g.CheckIn, g.CheckOut, g.LastSeen = ci.Time, co.Time, last.Time
		out = append(out, g)
	}
	return out, rows.Err()
}

// ExpireOffers closes the matching offers and reports the product keys they
// carried, read in the same transaction as the update.
func (s *Store) ExpireOffers(ctx context.Context, q domain.ExpireQuery) (domain.ExpireResult, error) {
	var out domain.ExpireResult
	if len(q.PropertyIDs) == 0 {
		return out, nil
	}
	where := []any{
		q.SupplierCode, valDate(q.CheckIn), valDate(q.CheckOut),
		s.d.Time(q.CreatedBefore), s.d.Time(q.At),
	}
	where = append(where, strArgs(q.PropertyIDs)...)
	in := placeholders(len(q.PropertyIDs)) + ")"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("expire offers: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, expiringKeysPrefix+in, where...)
	if err != nil {
		return out, fmt.Errorf("expiring product keys: %w", err)
	}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return out, err
		}
		out.ProductKeys = append(out.ProductKeys, k)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return out, err
	}
	if len(out.ProductKeys) == 0 {
		return out, nil
	}

	res, err := tx.ExecContext(ctx, expireOffersPrefix+in, append([]any{s.d.Time(q.At)}, where...)...)
	if err != nil {
		return domain.ExpireResult{}, fmt.Errorf("expire offers: %w", err)
	}
	if out.Expired, err = res.RowsAffected(); err != nil {
		return domain.ExpireResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ExpireResult{}, fmt.Errorf("expire offers: %w", err)
	}
	return out, nil
}

func (s *Store) LastOfferAt(ctx context.Context, supplierCode string) (*time.Time, error) {
	var t nullTime
	if err := s.db.QueryRowContext(ctx, lastOfferAtSQL, supplierCode).Scan(&t); err != nil {
		return nil, err
	}
	return t.Ptr(), nil
}

func (s *Store) ListActiveOffers(ctx context.Context, productKeys []string, now time.Time) ([]domain.RoomOffer, error) {
	if len(productKeys) == 0 {
		return nil, nil
	}
	q := activeOffersPrefix + placeholders(len(productKeys)) + ")\nORDER BY product_key, supplier_code, price_total"
	args := append([]any{s.d.Time(now)}, strArgs(productKeys)...)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RoomOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) UpsertRateSnapshot(ctx context.Context, snap domain.RateSnapshot) error {
	sup, err := json.Marshal(snap.Suppliers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.d.UpsertSnapshot,
		snap.ProductKey, snap.BestPrice, snap.Currency, string(sup),
		s.d.Time(snap.ExpiresAt), s.d.Time(snap.LastUpdated),
	)
	return err
}

func (s *Store) GetRateSnapshot(ctx context.Context, productKey string) (domain.RateSnapshot, error) {
	var (
		snap     domain.RateSnapshot
		sup      string
		exp, upd nullTime
	)
	err := s.db.QueryRowContext(ctx, getSnapshotSQL, productKey).
		Scan(&snap.ProductKey, &snap.BestPrice, &snap.Currency, &sup, &exp, &upd)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RateSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RateSnapshot{}, err
	}
	if err := json.Unmarshal([]byte(sup), &snap.Suppliers); err != nil {
		return domain.RateSnapshot{}, fmt.Errorf("decode snapshot suppliers: %w", err)
	}
	snap.ExpiresAt, snap.LastUpdated = exp.Time, upd.Time
	return snap, nil
}

func (s *Store) RecordProductQuery(ctx context.Context, productKey string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, insertProductQuerySQL, productKey, s.d.Time(at))
	return err
}

func (s *Store) TopProductKeys(ctx context.Context, supplierCode string, since time.Time, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, topProductKeysSQL, s.d.Time(since), supplierCode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// OpenSession pins one pooled connection for the duration of a batch.
func (s *Store) OpenSession(ctx context.Context) (domain.CatalogSession, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &session{conn: conn, d: s.d}, nil
}

func normCountry(c string) string { return strings.ToUpper(strings.TrimSpace(c)) }
