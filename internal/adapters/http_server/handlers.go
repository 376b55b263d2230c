// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/resync"
)

// Syncer is the orchestrator surface exposed over HTTP.
type Syncer interface {
	Suppliers() []string
	Status() []resync.SupplierStatus
	ForceResync(ctx context.Context, supplier string) (resync.SyncReport, error)
}

type SnapshotReader interface {
	GetSnapshot(ctx context.Context, productKey string) (domain.RateSnapshot, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	Sync   Syncer
	Snaps  SnapshotReader
	Health []Pinger
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", h.healthz)
	s.mux.Get("/v1/sync/status", h.syncStatus)
	s.mux.Post("/v1/sync/{supplier}/resync", h.forceResync)
	s.mux.Get("/v1/snapshots/{key}", h.getSnapshot)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	for _, p := range h.Health {
		if err := p.Ping(r.Context()); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Unavailable", err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": h.Sync.Status()})
}

func (h *Handlers) known(supplier string) bool {
	for _, c := range h.Sync.Suppliers() {
		if strings.EqualFold(c, supplier) {
			return true
		}
	}
	return false
}

// forceResync answers 202 and runs in the background; ?wait=true runs inline
// and returns the report.
func (h *Handlers) forceResync(w http.ResponseWriter, r *http.Request) {
	supplier := strings.ToUpper(chi.URLParam(r, "supplier"))
	if !h.known(supplier) {
		writeProblem(w, http.StatusNotFound, "Not Found", "unknown supplier "+supplier)
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		for _, st := range h.Sync.Status() {
			if st.Supplier == supplier && st.Running {
				writeProblem(w, http.StatusConflict, "Conflict", resync.ErrBusy.Error())
				return
			}
		}
		go func(ctx context.Context) {
			if _, err := h.Sync.ForceResync(ctx, supplier); err != nil {
				log.Error().Err(err).Str("supplier", supplier).Msg("force resync failed")
			}
		}(context.WithoutCancel(r.Context()))
		writeJSON(w, http.StatusAccepted, map[string]string{"supplier": supplier, "status": "accepted"})
		return
	}

	rep, err := h.Sync.ForceResync(r.Context(), supplier)
	switch {
	case errors.Is(err, resync.ErrBusy):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, resync.ErrUnknownSupplier):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case err != nil:
		writeProblem(w, http.StatusInternalServerError, "Resync failed", err.Error())
	default:
		writeJSON(w, http.StatusOK, rep)
	}
}

func (h *Handlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if strings.TrimSpace(key) == "" {
		writeProblem(w, http.StatusBadRequest, "Invalid key", "product key is required")
		return
	}
	snap, err := h.Snaps.GetSnapshot(r.Context(), key)
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", "no rates for product")
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "snapshot lookup failed")
		return
	}

	etag, body := calcETagAndBody(snap)
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write snapshot body")
	}
}
