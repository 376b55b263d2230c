package wiring_test

import (
	"context"
	"path/filepath"
	"testing"

	"hotel_fusion/internal/resolve"
	"hotel_fusion/internal/shared"
	"hotel_fusion/internal/storage/sqlite"
	"hotel_fusion/internal/wiring"
)

func TestBuild_EnabledSuppliersOnly(t *testing.T) {
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "c.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg, err := shared.Parse()
	if err != nil {
		t.Fatal(err)
	}
	cfg.TBO.BaseURL, cfg.TBO.APIKey = "http://tbo.invalid", "k"
	cfg.Hotelbeds.BaseURL, cfg.Hotelbeds.APIKey = "http://hb.invalid", "k"

	p, err := wiring.Build(cfg, store, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got := p.Orchestrator.Suppliers()
	if len(got) != 2 || got[0] != "HOTELBEDS" || got[1] != "TBO" {
		t.Fatalf("suppliers = %v", got)
	}
	if st := p.Orchestrator.Status(); st[1].Breaker.State != "closed" {
		t.Fatalf("status = %+v", st)
	}
}

func TestResolveConfigOverrides(t *testing.T) {
	rc := wiring.ResolveConfig(shared.Config{MatchAcceptScore: 0.8})
	if rc.AcceptScore != 0.8 || rc.GeoRadiusKm != 0.2 || rc.NameWeight != 0.4 {
		t.Fatalf("resolve config = %+v", rc)
	}

	rc = wiring.ResolveConfig(shared.Config{
		MatchNameWeight: 0.5, MatchGeoWeight: 0.3, MatchStarWeight: 0.1,
		MatchStarTolerance: 1, MatchChainConfidence: 0.95, GeoRadiusKm: 0.5,
	})
	want := resolve.Config{
		NameWeight: 0.5, GeoWeight: 0.3, StarWeight: 0.1, GeoRadiusKm: 0.5,
		StarTolerance: 1, AcceptScore: 0.75, ChainConfidence: 0.95,
	}
	if rc != want {
		t.Fatalf("resolve config = %+v, want %+v", rc, want)
	}
}
