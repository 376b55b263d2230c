// Package wiring assembles the sync pipeline from configuration; both
// processes share it.
package wiring

import (
	"fmt"

	"hotel_fusion/internal/adapters/amqp"
	"hotel_fusion/internal/adapters/supplier"
	"hotel_fusion/internal/app"
	"hotel_fusion/internal/breaker"
	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/resolve"
	"hotel_fusion/internal/resync"
	"hotel_fusion/internal/shared"
	"hotel_fusion/internal/storage/sqlstore"
)

// Pipeline is the assembled sync pipeline.
type Pipeline struct {
	Orchestrator *resync.Orchestrator
	Snapshots    *app.SnapshotService
	Queries      *app.QueryService
	Breakers     *breaker.Registry
}

func ResyncConfig(cfg shared.Config) resync.Config {
	return resync.Config{
		HotEvery:     cfg.HotEvery,
		TailEvery:    cfg.TailEvery,
		ReloadEvery:  cfg.ReloadEvery,
		HotMaxAge:    cfg.HotMaxAge,
		BatchSize:    cfg.BatchSize,
		BatchPause:   cfg.BatchPause,
		TailLimit:    cfg.TailLimit,
		HotSetSize:   cfg.HotSetSize,
		HotWindow:    cfg.HotWindow,
		BatchTimeout: cfg.BatchTimeout,
		Adults:       cfg.SearchAdults,
		Currency:     cfg.SearchCurrency,
		MaxResults:   cfg.SearchMaxResults,
	}
}

func ResolveConfig(cfg shared.Config) resolve.Config {
	rc := resolve.DefaultConfig()
	// non-positive values keep the default
	for _, o := range []struct {
		dst *float64
		v   float64
	}{
		{&rc.AcceptScore, cfg.MatchAcceptScore},
		{&rc.NameWeight, cfg.MatchNameWeight},
		{&rc.GeoWeight, cfg.MatchGeoWeight},
		{&rc.StarWeight, cfg.MatchStarWeight},
		{&rc.StarTolerance, cfg.MatchStarTolerance},
		{&rc.ChainConfidence, cfg.MatchChainConfidence},
		{&rc.GeoRadiusKm, cfg.GeoRadiusKm},
	} {
		if o.v > 0 {
			*o.dst = o.v
		}
	}
	return rc
}

// Build wires store and cache into a pipeline with one HTTP client per
// enabled supplier. cache may be nil.
func Build(cfg shared.Config, store *sqlstore.Store, cache domain.Cache, clock resync.Clock) (*Pipeline, error) {
	if clock == nil {
		clock = resync.RealClock()
	}
	var suppliers []resync.SupplierConfig
	for _, s := range cfg.Suppliers() {
		cl, err := supplier.New(s.Code, s.BaseURL, s.APIKey, s.RPS)
		if err != nil {
			return nil, fmt.Errorf("supplier %s: %w", s.Code, err)
		}
		suppliers = append(suppliers, resync.SupplierConfig{Code: s.Code, Client: cl, MaxAge: s.MaxAge})
	}

	bc := breaker.DefaultConfig()
	if cfg.BreakerThreshold > 0 {
		bc.FailureThreshold = cfg.BreakerThreshold
	}
	if cfg.BreakerReset > 0 {
		bc.ResetTimeout = cfg.BreakerReset
	}
	breakers := breaker.NewRegistry(bc, clock.Now)
	merge := app.NewMergeService(store, resolve.NewEngine(store, ResolveConfig(cfg)))
	snaps := app.NewSnapshotService(store, cache, cfg.SnapshotTTL)

	orch, err := resync.New(ResyncConfig(cfg), store, merge, snaps, amqp.New(cfg.AMQPURL), breakers, clock, suppliers)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Orchestrator: orch,
		Snapshots:    snaps,
		Queries:      app.NewQueryService(store, cache, snaps),
		Breakers:     breakers,
	}, nil
}
