// internal/server/handlers/signal.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"aegis/internal/domain/geo"
	"aegis/internal/domain/signal"
	geoservice "aegis/internal/service/geo"
	signalservice "aegis/internal/service/signal"
)

// SignalHandler handles distress-signal HTTP requests
type SignalHandler struct {
	manager             *signalservice.Manager
	defaultSignalRadius float64
}

// NewSignalHandler creates a new distress signal handler
func NewSignalHandler(manager *signalservice.Manager, defaultSignalRadius float64) *SignalHandler {
	return &SignalHandler{
		manager:             manager,
		defaultSignalRadius: defaultSignalRadius,
	}
}

type createSignalRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type resolveSignalResponse struct {
	Signal          *signal.DistressSignal `json:"signal"`
	AlreadyResolved bool                   `json:"already_resolved"`
}

// CreateSignal registers a new active distress signal
func (h *SignalHandler) CreateSignal(w http.ResponseWriter, r *http.Request) {
	var req createSignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sig, err := h.manager.Create(r.Context(), req.Latitude, req.Longitude)
	if err != nil {
		if errors.Is(err, geo.ErrInvalidCoordinates) {
			respondWithError(w, http.StatusBadRequest, "Invalid coordinates")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to create distress signal")
		return
	}

	respondWithJSON(w, http.StatusCreated, sig)
}

// ResolveSignal transitions a signal to resolved. Resolving twice is a
// no-op success, reported via the already_resolved flag.
func (h *SignalHandler) ResolveSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sig, alreadyResolved, err := h.manager.Resolve(r.Context(), id)
	if err != nil {
		if errors.Is(err, signal.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Unknown distress signal")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve distress signal")
		return
	}

	respondWithJSON(w, http.StatusOK, resolveSignalResponse{
		Signal:          sig,
		AlreadyResolved: alreadyResolved,
	})
}

// ListActive returns active signals, oldest first
func (h *SignalHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	signals, err := h.manager.ListActive(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list distress signals")
		return
	}
	if signals == nil {
		signals = []signal.DistressSignal{}
	}

	respondWithJSON(w, http.StatusOK, signals)
}

// ListNearby returns the active signals within the "nearby" radius of the
// origin. Signals carry no radius of their own; the radius comes from the
// radius_m query parameter or the configured default.
func (h *SignalHandler) ListNearby(w http.ResponseWriter, r *http.Request) {
	origin, ok := parseCoordinates(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Missing or invalid location parameters")
		return
	}

	radius := h.defaultSignalRadius
	if radiusStr := r.URL.Query().Get("radius_m"); radiusStr != "" {
		parsed, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid radius")
			return
		}
		radius = parsed
	}

	active, err := h.manager.ListActive(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list distress signals")
		return
	}

	candidates := make([]geoservice.Candidate, 0, len(active))
	byID := make(map[string]signal.DistressSignal, len(active))
	for _, sig := range active {
		candidates = append(candidates, geoservice.Candidate{
			ID:       sig.ID,
			Position: sig.Coordinates(),
			Radius:   radius,
		})
		byID[sig.ID] = sig
	}

	nearby := make([]signal.DistressSignal, 0)
	for _, id := range geoservice.Evaluate(origin, candidates) {
		nearby = append(nearby, byID[id])
	}

	respondWithJSON(w, http.StatusOK, nearby)
}
