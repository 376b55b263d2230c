package resolve_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/resolve"
)

// ---- fakes ----

type fakeCatalog struct {
	byGiata  map[string]domain.Property
	mappings map[string]domain.SupplierMapping
	chain    map[string]domain.Property
	cands    []domain.Property
	err      error
	listed   int
}

func (f *fakeCatalog) FindByGiataID(ctx context.Context, id string) (domain.Property, error) {
	if f.err != nil {
		return domain.Property{}, f.err
	}
	if p, ok := f.byGiata[id]; ok {
		return p, nil
	}
	return domain.Property{}, domain.ErrNotFound
}

func (f *fakeCatalog) FindMapping(ctx context.Context, sup, hid string) (domain.SupplierMapping, error) {
	if m, ok := f.mappings[sup+"|"+hid]; ok {
		return m, nil
	}
	return domain.SupplierMapping{}, domain.ErrNotFound
}

func (f *fakeCatalog) FindByChainBrand(ctx context.Context, chain, brand, city, country string) (domain.Property, error) {
	if p, ok := f.chain[chain+"|"+brand+"|"+city+"|"+country]; ok {
		return p, nil
	}
	return domain.Property{}, domain.ErrNotFound
}

func (f *fakeCatalog) ListByCityCountry(ctx context.Context, city, country string) ([]domain.Property, error) {
	f.listed++
	return f.cands, nil
}

func sp(s string) *string    { return &s }
func fp(f float64) *float64 { return &f }

func attrs(name string, lat, lng, stars float64) domain.PropertyAttrs {
	return domain.PropertyAttrs{
		Name: name, City: "Dubai", Country: "AE",
		Lat: fp(lat), Lng: fp(lng), StarRating: fp(stars),
	}
}

func draft(supplier, id string, a domain.PropertyAttrs) domain.PropertyDraft {
	return domain.PropertyDraft{SupplierCode: supplier, SupplierHotelID: id, PropertyAttrs: a}
}

// ---- scoring ----

func TestScore_GrandPlazaMatches(t *testing.T) {
	cfg := resolve.DefaultConfig()
	a := attrs("Grand Plaza Hotel", 25.2048, 55.2708, 4)
	b := attrs("The Grand Plaza", 25.2057, 55.2708, 4)
	if d := resolve.HaversineKm(*a.Lat, *a.Lng, *b.Lat, *b.Lng); d > 0.2 {
		t.Fatalf("fixture should be within 0.2km, got %.3f", d)
	}
	if s := resolve.Score(a, b, cfg); s <= cfg.AcceptScore {
		t.Fatalf("score=%.3f, want > %.2f", s, cfg.AcceptScore)
	}
}

func TestScore_SameNameFarApart(t *testing.T) {
	cfg := resolve.DefaultConfig()
	a := attrs("Grand Plaza Hotel", 25.2048, 55.2708, 4)
	b := attrs("Grand Plaza Hotel", 25.2498, 55.2708, 4) // ~5km north
	s := resolve.Score(a, b, cfg)
	if math.Abs(s-0.6) > 1e-9 {
		t.Fatalf("score=%.4f, want 0.6", s)
	}
}

func TestScore_Monotonic(t *testing.T) {
	cfg := resolve.DefaultConfig()
	base := attrs("Palm Resort", 25.0, 55.0, 4)

	names := []string{"Palm Resort", "Palm Resorz", "Palm Rezzzz", "Pzzz Zzzzzz"}
	prev := math.Inf(1)
	for _, n := range names {
		s := resolve.Score(base, attrs(n, 25.0, 55.0, 4), cfg)
		if s > prev {
			t.Fatalf("name %q raised score to %.3f", n, s)
		}
		prev = s
	}

	prev = math.Inf(1)
	for _, dLat := range []float64{0, 0.001, 0.0019, 0.003, 0.05} {
		s := resolve.Score(base, attrs("Palm Resort", 25.0+dLat, 55.0, 4), cfg)
		if s > prev {
			t.Fatalf("distance %.4f raised score to %.3f", dLat, s)
		}
		prev = s
	}

	prev = math.Inf(1)
	for _, st := range []float64{4, 4.2, 4.5, 5} {
		s := resolve.Score(base, attrs("Palm Resort", 25.0, 55.0, st), cfg)
		if s > prev {
			t.Fatalf("stars %.1f raised score to %.3f", st, s)
		}
		prev = s
	}
}

func TestScore_GeoRequiresSameLocality(t *testing.T) {
	cfg := resolve.DefaultConfig()
	a := attrs("X", 25.0, 55.0, 4)
	b := attrs("X", 25.0, 55.0, 4)
	b.City = "Sharjah"
	if s := resolve.Score(a, b, cfg); math.Abs(s-0.6) > 1e-9 {
		t.Fatalf("geo should not count across cities, score=%.3f", s)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"kitten", "sitting", 3},
		{"plaza", "plaza", 0},
		{"", "abc", 3},
	}
	for _, c := range cases {
		if got := resolve.Levenshtein(c.a, c.b); got != c.want {
			t.Fatalf("lev(%q,%q)=%d want %d", c.a, c.b, got, c.want)
		}
	}
	if s := resolve.NameSimilarity("", ""); s != 1 {
		t.Fatalf("empty names similarity=%v", s)
	}
}

// ---- waterfall ----

func TestResolve_GiataWins(t *testing.T) {
	cat := &fakeCatalog{byGiata: map[string]domain.Property{"G1": {ID: "p-1"}}}
	e := resolve.NewEngine(cat, resolve.DefaultConfig())

	for _, sup := range []string{"RATEHAWK", "TBO"} {
		d := draft(sup, "h-"+sup, attrs("Anything", 1, 1, 3))
		d.GiataID = sp("G1")
		r, err := e.ResolveOrCreateProperty(context.Background(), d)
		if err != nil {
			t.Fatal(err)
		}
		if r.PropertyID != "p-1" || r.Method != domain.MatchGiataExact || r.Confidence != 1 || r.IsNew {
			t.Fatalf("%s: %+v", sup, r)
		}
	}
	if cat.listed != 0 {
		t.Fatalf("fuzzy should not run after a giata hit")
	}
}

func TestResolve_ExistingMappingReused(t *testing.T) {
	cat := &fakeCatalog{mappings: map[string]domain.SupplierMapping{
		"TBO|9": {PropertyID: "p-9", MatchedOn: domain.MatchFuzzyGeo, Confidence: 0.81},
	}}
	e := resolve.NewEngine(cat, resolve.DefaultConfig())
	r, err := e.ResolveOrCreateProperty(context.Background(), draft("TBO", "9", domain.PropertyAttrs{Name: "No coords"}))
	if err != nil {
		t.Fatal(err)
	}
	if r.PropertyID != "p-9" || r.Method != domain.MatchFuzzyGeo || r.Confidence != 0.81 {
		t.Fatalf("got %+v", r)
	}
}

func TestResolve_ChainMapping(t *testing.T) {
	cat := &fakeCatalog{chain: map[string]domain.Property{"HIL|DT|Dubai|AE": {ID: "p-chain"}}}
	e := resolve.NewEngine(cat, resolve.DefaultConfig())
	a := attrs("DoubleTree Creek", 25.1, 55.1, 4)
	a.ChainCode, a.BrandCode = sp("HIL"), sp("DT")
	r, err := e.ResolveOrCreateProperty(context.Background(), draft("HOTELBEDS", "1", a))
	if err != nil {
		t.Fatal(err)
	}
	if r.PropertyID != "p-chain" || r.Method != domain.MatchChainMapping || r.Confidence != 0.9 {
		t.Fatalf("got %+v", r)
	}
}

func TestResolve_FuzzyPicksBestCandidate(t *testing.T) {
	cat := &fakeCatalog{cands: []domain.Property{
		{ID: "p-ok", PropertyAttrs: attrs("Grand Plaza Dubai", 25.2049, 55.2708, 4)},
		{ID: "p-best", PropertyAttrs: attrs("Grand Plaza Hotel", 25.2048, 55.2708, 4)},
		{ID: "p-far", PropertyAttrs: attrs("Grand Plaza Hotel", 25.30, 55.2708, 4)},
	}}
	e := resolve.NewEngine(cat, resolve.DefaultConfig())
	r, err := e.ResolveOrCreateProperty(context.Background(), draft("RATEHAWK", "1", attrs("Grand Plaza Hotel", 25.2048, 55.2708, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if r.PropertyID != "p-best" || r.Method != domain.MatchFuzzyGeo || r.IsNew {
		t.Fatalf("got %+v", r)
	}
	if r.Confidence <= 0.75 || r.Confidence > 1 {
		t.Fatalf("confidence=%v", r.Confidence)
	}
}

func TestResolve_MintsWhenNothingMatches(t *testing.T) {
	cat := &fakeCatalog{cands: []domain.Property{
		{ID: "p-far", PropertyAttrs: attrs("Grand Plaza Hotel", 25.2498, 55.2708, 4)},
	}}
	e := resolve.NewEngine(cat, resolve.DefaultConfig())
	r, err := e.ResolveOrCreateProperty(context.Background(), draft("RATEHAWK", "1", attrs("Grand Plaza Hotel", 25.2048, 55.2708, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if !r.IsNew || r.Method != domain.MatchNewProperty || r.PropertyID == "" || r.PropertyID == "p-far" {
		t.Fatalf("got %+v", r)
	}
	if cat.listed != 1 {
		t.Fatalf("fuzzy candidates should be evaluated before minting")
	}
}

func TestResolve_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	cat := &fakeCatalog{err: boom}
	e := resolve.NewEngine(cat, resolve.DefaultConfig())
	d := draft("TBO", "1", attrs("X", 1, 1, 1))
	d.GiataID = sp("G")
	if _, err := e.ResolveOrCreateProperty(context.Background(), d); !errors.Is(err, boom) {
		t.Fatalf("want wrapped store error, got %v", err)
	}
}
