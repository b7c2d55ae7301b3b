// internal/server/handlers/presence.go

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aegis/internal/domain/geo"
	"aegis/internal/domain/presence"
	geoservice "aegis/internal/service/geo"
)

// PresenceHandler handles presence-related HTTP requests
type PresenceHandler struct {
	store               presence.Store
	defaultNearbyRadius float64
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(store presence.Store, defaultNearbyRadius float64) *PresenceHandler {
	return &PresenceHandler{
		store:               store,
		defaultNearbyRadius: defaultNearbyRadius,
	}
}

type updateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	// LastUpdated is optional; reports without one are stamped on arrival.
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// UpdateLocation records a location report for a user. Reports older than
// the stored record are ignored, so out-of-order delivery cannot move a
// user backwards.
func (h *PresenceHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user id")
		return
	}

	var req updateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	coords := geo.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude}
	if err := coords.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid coordinates")
		return
	}

	lastUpdated := time.Now()
	if req.LastUpdated != nil {
		lastUpdated = *req.LastUpdated
	}

	loc := presence.UserLocation{
		UserID:      userID,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		LastUpdated: lastUpdated,
	}

	if err := h.store.Upsert(r.Context(), loc); err != nil {
		if errors.Is(err, presence.ErrInvalidUserID) {
			respondWithError(w, http.StatusBadRequest, "Invalid user id")
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "Failed to store location")
		return
	}

	respondWithJSON(w, http.StatusOK, loc)
}

// ListLocations returns every user's last known location
func (h *PresenceHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.store.ListAll(r.Context())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Failed to list locations")
		return
	}

	respondWithJSON(w, http.StatusOK, locations)
}

// GetLocation returns one user's last known location
func (h *PresenceHandler) GetLocation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		respondWithError(w, http.StatusBadRequest, "Missing user id")
		return
	}

	loc, err := h.store.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, presence.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, fmt.Sprintf("No location for user %s", userID))
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "Failed to read location")
		return
	}

	respondWithJSON(w, http.StatusOK, loc)
}

// ListNearby returns the users within a radius of the given origin. The
// radius is caller-supplied via the radius_m query parameter, falling back
// to the configured default.
func (h *PresenceHandler) ListNearby(w http.ResponseWriter, r *http.Request) {
	origin, ok := parseCoordinates(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Missing or invalid location parameters")
		return
	}

	radius := h.defaultNearbyRadius
	if radiusStr := r.URL.Query().Get("radius_m"); radiusStr != "" {
		parsed, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid radius")
			return
		}
		radius = parsed
	}

	locations, err := h.store.ListAll(r.Context())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, "Failed to list locations")
		return
	}

	candidates := make([]geoservice.Candidate, 0, len(locations))
	byID := make(map[string]presence.UserLocation, len(locations))
	for _, loc := range locations {
		candidates = append(candidates, geoservice.Candidate{
			ID:       loc.UserID,
			Position: loc.Coordinates(),
			Radius:   radius,
		})
		byID[loc.UserID] = loc
	}

	nearby := make([]presence.UserLocation, 0)
	for _, id := range geoservice.Evaluate(origin, candidates) {
		nearby = append(nearby, byID[id])
	}

	respondWithJSON(w, http.StatusOK, nearby)
}
