package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "hotelfusion"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound supplier requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	ResyncBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "resync_batches_total", Help: "Resync batches by outcome."},
		[]string{"supplier", "tier", "outcome"}, // outcome: ok|failed|circuit_open
	)
	ResyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "resync_batch_duration_seconds",
			Help:    "Resync batch duration seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"supplier", "tier"},
	)
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "breaker_state", Help: "Circuit state per supplier (0 closed, 1 half-open, 2 open)."},
		[]string{"supplier"},
	)
	NormalizeRejects = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "normalize_rejects_total", Help: "Supplier records skipped as malformed."},
		[]string{"supplier"},
	)
	Resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "resolutions_total", Help: "Entity resolutions by match method."},
		[]string{"supplier", "method"},
	)
	OffersWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "offers_written_total", Help: "Room offers inserted or expired."},
		[]string{"supplier", "op"}, // op: inserted|expired
	)
)

// Serve exposes /metrics on its own listener. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return srv
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		ResyncBatches, ResyncDuration, BreakerState, NormalizeRejects, Resolutions, OffersWritten,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) { // event: hit|miss|set|del
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveResyncBatch(supplier, tier, outcome string, dur time.Duration) {
	ResyncBatches.WithLabelValues(supplier, tier, outcome).Inc()
	ResyncDuration.WithLabelValues(supplier, tier).Observe(dur.Seconds())
}

func SetBreakerState(supplier string, state int) {
	BreakerState.WithLabelValues(supplier).Set(float64(state))
}

func ObserveReject(supplier string) { NormalizeRejects.WithLabelValues(supplier).Inc() }

func ObserveResolution(supplier, method string) {
	Resolutions.WithLabelValues(supplier, method).Inc()
}

func ObserveOffers(supplier, op string, n int) {
	if n > 0 {
		OffersWritten.WithLabelValues(supplier, op).Add(float64(n))
	}
}

func LabelErr(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%T", err)
}
