package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_fusion/internal/adapters/observability"
	redisad "hotel_fusion/internal/adapters/redis"
	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/shared"
	"hotel_fusion/internal/storage"
	"hotel_fusion/internal/wiring"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "ingestor")

	dests := cfg.Destinations()
	log.Info().
		Int("workers", cfg.Workers).
		Int("destinations", len(dests)).
		Int("nights", cfg.IngestNights).
		Msg("ingestor starting")

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("catalog unreachable")
	}
	defer store.Close()
	log.Info().Msg("catalog ping ok")

	cache := redisad.New(redisad.Options{
		Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix,
	})
	defer cache.Close()

	p, err := wiring.Build(cfg, store, cache, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline wiring failed")
	}

	nights := cfg.IngestNights
	if nights <= 0 {
		nights = 1
	}
	checkIn := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, cfg.IngestCheckInOffset)

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, code := range p.Orchestrator.Suppliers() {
		for _, d := range dests {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				log.Fatal().Err(err).Msg("semaphore acquire failed")
			}

			wg.Add(1)
			go func(code string, d shared.Destination) {
				defer wg.Done()
				defer sem.Release(1)

				sc := domain.SearchContext{
					City: d.City, Country: d.Country,
					CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, nights),
					Adults: cfg.SearchAdults, Currency: cfg.SearchCurrency,
				}
				rep, err := p.Orchestrator.IngestDestination(ctx, code, sc)
				lg := log.With().Str("supplier", code).Str("city", d.City).Str("country", d.Country).Logger()
				if err != nil {
					lg.Warn().Err(err).Msg("ingest failed")
					return
				}
				lg.Info().
					Int("hotels_inserted", rep.HotelsInserted).
					Int("hotels_matched", rep.HotelsMatched).
					Int("offers_inserted", rep.OffersInserted).
					Int("failed", rep.Failed+rep.CircuitOpen).
					Msg("ingest ok")
			}(code, d)
		}
	}

	wg.Wait()
	log.Info().Msg("ingestion completed")
}
