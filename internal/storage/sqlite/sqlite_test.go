package sqlite_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/storage/sqlite"
	"hotel_fusion/internal/storage/sqlstore"
)

func pstr(s string) *string     { return &s }
func pfloat(f float64) *float64 { return &f }
func ptime(t time.Time) *time.Time {
	return &t
}

func openStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func openSession(t *testing.T, st *sqlstore.Store) domain.CatalogSession {
	t.Helper()
	sess, err := st.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })
	return sess
}

func property(id, name, city string) domain.Property {
	return domain.Property{ID: id, PropertyAttrs: domain.PropertyAttrs{Name: name, City: city, Country: "ae"}}
}

func offer(id, propertyID, key string, ci time.Time, created time.Time, expires *time.Time) domain.RoomOffer {
	return domain.RoomOffer{
		ID: id, PropertyID: propertyID, SupplierCode: "TBO", SupplierHotelID: "T-" + propertyID,
		ProductKey: key, RoomName: "Standard", BoardBasis: "RO", Currency: "USD", PriceTotal: 120,
		CheckIn: ci, CheckOut: ci.AddDate(0, 0, 2), CreatedAt: created, ExpiresAt: expires,
	}
}

func TestUpsertProperty_MergePolicy(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)

	p := property("p1", "Palm Resort", "Dubai")
	p.GiataID = pstr("G-9")
	p.Address = pstr("1 Beach Rd")
	p.StarRating = pfloat(4)
	if err := sess.UpsertProperty(ctx, p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	in := property("p1", "Palm Resort & Spa", "Dubai")
	in.Address = pstr("Somewhere else")
	in.StarRating = pfloat(5)
	in.Lat, in.Lng = pfloat(25.1), pfloat(55.1)
	if err := sess.UpsertProperty(ctx, in); err != nil {
		t.Fatalf("merge: %v", err)
	}

	got, err := st.FindByGiataID(ctx, "G-9")
	if err != nil {
		t.Fatalf("FindByGiataID: %v", err)
	}
	if got.Name != "Palm Resort & Spa" || *got.StarRating != 5 {
		t.Fatalf("refresh columns not updated: %+v", got.PropertyAttrs)
	}
	if *got.Address != "1 Beach Rd" {
		t.Fatalf("address overwritten: %s", *got.Address)
	}
	if got.Lat == nil || *got.Lat != 25.1 {
		t.Fatalf("lat not filled: %v", got.Lat)
	}
	if got.Country != "AE" {
		t.Fatalf("country = %q", got.Country)
	}

	// an absent incoming name leaves the stored one alone
	empty := property("p1", "", "")
	if err := sess.UpsertProperty(ctx, empty); err != nil {
		t.Fatalf("merge empty: %v", err)
	}
	got, _ = st.FindByGiataID(ctx, "G-9")
	if got.Name != "Palm Resort & Spa" || got.City != "Dubai" {
		t.Fatalf("empty draft wiped fields: %+v", got.PropertyAttrs)
	}
}

func TestFindProperty_UnreadableAmenitiesAreLogged(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)

	p := property("p1", "Palm Resort", "Dubai")
	p.GiataID = pstr("G-7")
	p.Amenities = []string{"pool"}
	if err := sess.UpsertProperty(ctx, p); err != nil {
		t.Fatal(err)
	}
	if _, err := st.DB().ExecContext(ctx, `UPDATE properties SET amenities = '{broken' WHERE id = 'p1'`); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	got, err := st.FindByGiataID(ctx, "G-7")
	if err != nil {
		t.Fatalf("lookup should survive a bad amenities column: %v", err)
	}
	if got.Name != "Palm Resort" || len(got.Amenities) != 0 {
		t.Fatalf("got %+v", got.PropertyAttrs)
	}
	if !strings.Contains(buf.String(), `"property_id":"p1"`) {
		t.Fatalf("decode failure not logged: %q", buf.String())
	}
}

func TestUpsertProperty_GiataConflict(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)

	a := property("p1", "A", "Dubai")
	a.GiataID = pstr("G-1")
	if err := sess.UpsertProperty(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	b := property("p2", "B", "Dubai")
	b.GiataID = pstr("G-1")
	if err := sess.UpsertProperty(ctx, b); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("want ErrConflict, got %v", err)
	}
}

func TestLookups(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)

	p := property("p1", "Chain Hotel", "Dubai")
	p.ChainCode, p.BrandCode = pstr("HIL"), pstr("CON")
	if err := sess.UpsertProperty(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := sess.UpsertProperty(ctx, property("p2", "Other", "Abu Dhabi")); err != nil {
		t.Fatal(err)
	}

	got, err := st.FindByChainBrand(ctx, "HIL", "CON", "dubai", "AE")
	if err != nil || got.ID != "p1" {
		t.Fatalf("FindByChainBrand: %+v %v", got, err)
	}
	if _, err := st.FindByChainBrand(ctx, "HIL", "CON", "Abu Dhabi", "AE"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	list, err := st.ListByCityCountry(ctx, "DUBAI", "ae")
	if err != nil || len(list) != 1 || list[0].ID != "p1" {
		t.Fatalf("ListByCityCountry: %+v %v", list, err)
	}
	if _, err := st.FindMapping(ctx, "TBO", "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	if err := sess.UpsertMapping(ctx, domain.SupplierMapping{SupplierCode: "TBO", SupplierHotelID: "T1",
		PropertyID: "p1", Confidence: 1, MatchedOn: domain.MatchChainMapping}); err != nil {
		t.Fatal(err)
	}
	ms, err := st.MappingsForProperties(ctx, "TBO", []string{"p1", "p2"})
	if err != nil || len(ms) != 1 || ms[0].SupplierHotelID != "T1" {
		t.Fatalf("MappingsForProperties: %+v %v", ms, err)
	}
}

func TestInsertOffer_DuplicateIsNoop(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)
	if err := sess.UpsertProperty(ctx, property("p1", "A", "Dubai")); err != nil {
		t.Fatal(err)
	}
	ci := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	o := offer("o1", "p1", "HT:p1:k", ci, time.Now().UTC(), nil)

	ok, err := sess.InsertOffer(ctx, o)
	if err != nil || !ok {
		t.Fatalf("first insert: %v %v", ok, err)
	}
	ok, err = sess.InsertOffer(ctx, o)
	if err != nil || ok {
		t.Fatalf("replay: %v %v", ok, err)
	}
}

func TestFindStaleAndExpire(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	ci := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range []domain.Property{
		property("old", "Old", "Dubai"),
		property("fresh", "Fresh", "Dubai"),
		property("held", "Held", "Dubai"),
	} {
		if err := sess.UpsertProperty(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	offers := []domain.RoomOffer{
		offer("o1", "old", "HT:old", ci, now.Add(-3*time.Hour), nil),
		offer("o2", "fresh", "HT:fresh", ci, now.Add(-10*time.Minute), nil),
		offer("o3", "held", "HT:held", ci, now.Add(-3*time.Hour), ptime(now.Add(time.Hour))),
	}
	for _, o := range offers {
		if _, err := sess.InsertOffer(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	q := domain.StaleQuery{SupplierCode: "TBO", OlderThan: now.Add(-2 * time.Hour), Now: now, Limit: 10}
	groups, err := st.FindStale(ctx, q)
	if err != nil {
		t.Fatalf("FindStale: %v", err)
	}
	if len(groups) != 1 || groups[0].PropertyID != "old" {
		t.Fatalf("stale groups = %+v", groups)
	}
	g := groups[0]
	if !g.CheckIn.Equal(ci) || !g.CheckOut.Equal(ci.AddDate(0, 0, 2)) || g.OfferCount != 1 {
		t.Fatalf("group fields = %+v", g)
	}

	q.ExcludeKeys = []string{"HT:old"}
	if groups, _ = st.FindStale(ctx, q); len(groups) != 0 {
		t.Fatalf("exclude filter ignored: %+v", groups)
	}
	q.ExcludeKeys, q.OnlyKeys = nil, []string{"HT:fresh"}
	if groups, _ = st.FindStale(ctx, q); len(groups) != 0 {
		t.Fatalf("only filter ignored: %+v", groups)
	}

	// a refreshed offer lands, then older rows for the tuple expire
	batchStart := now
	if _, err := sess.InsertOffer(ctx, offer("o4", "old", "HT:old", ci, now.Add(time.Second), nil)); err != nil {
		t.Fatal(err)
	}
	exp, err := st.ExpireOffers(ctx, domain.ExpireQuery{SupplierCode: "TBO", PropertyIDs: []string{"old"},
		CheckIn: ci, CheckOut: ci.AddDate(0, 0, 2), CreatedBefore: batchStart, At: now.Add(2 * time.Second)})
	if err != nil || exp.Expired != 1 {
		t.Fatalf("ExpireOffers = %+v err=%v", exp, err)
	}
	if len(exp.ProductKeys) != 1 || exp.ProductKeys[0] != "HT:old" {
		t.Fatalf("expired keys = %v", exp.ProductKeys)
	}
	again, err := st.ExpireOffers(ctx, domain.ExpireQuery{SupplierCode: "TBO", PropertyIDs: []string{"old"},
		CheckIn: ci, CheckOut: ci.AddDate(0, 0, 2), CreatedBefore: batchStart, At: now.Add(2 * time.Second)})
	if err != nil || again.Expired != 0 || len(again.ProductKeys) != 0 {
		t.Fatalf("second pass should close nothing: %+v %v", again, err)
	}
	active, err := st.ListActiveOffers(ctx, []string{"HT:old"}, now.Add(3*time.Second))
	if err != nil || len(active) != 1 || active[0].ID != "o4" {
		t.Fatalf("active = %+v %v", active, err)
	}

	last, err := st.LastOfferAt(ctx, "TBO")
	if err != nil || last == nil || !last.Equal(now.Add(time.Second)) {
		t.Fatalf("LastOfferAt = %v %v", last, err)
	}
	none, err := st.LastOfferAt(ctx, "RATEHAWK")
	if err != nil || none != nil {
		t.Fatalf("LastOfferAt empty = %v %v", none, err)
	}
}

func TestSnapshotsAndHotKeys(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	sess := openSession(t, st)
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	if _, err := st.GetRateSnapshot(ctx, "HT:x"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	snap := domain.RateSnapshot{
		ProductKey: "HT:x", BestPrice: 99.5, Currency: "USD",
		Suppliers:   map[string]domain.SupplierRate{"TBO": {Price: 99.5, TrueCost: 90, OfferID: "o1", LastSeen: now}},
		ExpiresAt:   now.Add(5 * time.Minute),
		LastUpdated: now,
	}
	if err := st.UpsertRateSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	snap.BestPrice = 80
	if err := st.UpsertRateSnapshot(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, err := st.GetRateSnapshot(ctx, "HT:x")
	if err != nil {
		t.Fatal(err)
	}
	if got.BestPrice != 80 || !got.ExpiresAt.Equal(snap.ExpiresAt) || got.Suppliers["TBO"].OfferID != "o1" {
		t.Fatalf("snapshot = %+v", got)
	}

	if err := sess.UpsertProperty(ctx, property("p1", "A", "Dubai")); err != nil {
		t.Fatal(err)
	}
	ci := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	for _, o := range []domain.RoomOffer{
		offer("o1", "p1", "HT:a", ci, now, nil),
		offer("o2", "p1", "HT:b", ci.AddDate(0, 0, 1), now, nil),
	} {
		if _, err := sess.InsertOffer(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	for _, k := range []string{"HT:b", "HT:b", "HT:a", "HT:unknown", "HT:unknown", "HT:unknown"} {
		if err := st.RecordProductQuery(ctx, k, now); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.RecordProductQuery(ctx, "HT:a", now.AddDate(0, 0, -40)); err != nil {
		t.Fatal(err)
	}

	keys, err := st.TopProductKeys(ctx, "TBO", now.AddDate(0, 0, -30), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "HT:b" || keys[1] != "HT:a" {
		t.Fatalf("top keys = %v", keys)
	}
}
