package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "hotel_fusion/internal/adapters/http_server"
	"hotel_fusion/internal/adapters/observability"
	redisad "hotel_fusion/internal/adapters/redis"
	"hotel_fusion/internal/shared"
	"hotel_fusion/internal/storage"
	"hotel_fusion/internal/wiring"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel, "syncer")

	reg := observability.InitRegistry()
	metricsSrv := observability.Serve(cfg.MetricsAddr, reg)

	// catalog
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.CatalogDriver).Msg("catalog unreachable")
	}
	defer store.Close()
	log.Info().Str("driver", cfg.CatalogDriver).Msg("catalog connection ok")

	cache := redisad.New(redisad.Options{
		Addr: cfg.RedisAddr, Password: cfg.RedisPass, DB: cfg.RedisDB, Prefix: cfg.RedisPrefix,
	})
	defer cache.Close()
	if err := cache.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable; snapshots served from the catalog")
	}

	p, err := wiring.Build(cfg, store, cache, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline wiring failed")
	}
	p.Orchestrator.Start(ctx)

	// http
	srv := server.New(cfg.HTTPTimeout)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Sync: p.Orchestrator, Snaps: p.Queries, Health: []server.Pinger{store}})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Strs("suppliers", p.Orchestrator.Suppliers()).Msg("syncer listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.BatchTimeout+10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := p.Orchestrator.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("resync runs still in flight at shutdown")
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
}
