// internal/server/handlers/snapshot.go

package handlers

import (
	"net/http"
	"time"

	"aegis/internal/domain/alert"
	"aegis/internal/domain/presence"
	"aegis/internal/domain/signal"
	"aegis/internal/service/view"
)

// SnapshotHandler serves the aggregated map state maintained by the
// presence view: every user's last known location plus the live signal
// and alert sets, all from memory with no store round trips.
type SnapshotHandler struct {
	view                *view.View
	defaultSignalRadius float64
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(v *view.View, defaultSignalRadius float64) *SnapshotHandler {
	return &SnapshotHandler{
		view:                v,
		defaultSignalRadius: defaultSignalRadius,
	}
}

type snapshotResponse struct {
	Users   []presence.UserLocation `json:"users"`
	Signals []signal.DistressSignal `json:"signals"`
	Alerts  []alert.SafetyAlert     `json:"alerts"`
}

// GetSnapshot returns the full map state in one response
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, snapshotResponse{
		Users:   h.view.Users(),
		Signals: h.view.ActiveSignals(),
		Alerts:  h.view.ActiveAlerts(time.Now()),
	})
}

type proximityResponse struct {
	Signals []signal.DistressSignal `json:"signals"`
	Alerts  []alert.SafetyAlert     `json:"alerts"`
}

// GetProximity returns the active signals near the given origin and the
// alerts whose broadcast radius covers it
func (h *SnapshotHandler) GetProximity(w http.ResponseWriter, r *http.Request) {
	origin, ok := parseCoordinates(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Missing or invalid location parameters")
		return
	}

	signals := h.view.NearbySignals(origin, h.defaultSignalRadius)
	if signals == nil {
		signals = []signal.DistressSignal{}
	}
	alerts := h.view.AlertsInRange(origin, time.Now())
	if alerts == nil {
		alerts = []alert.SafetyAlert{}
	}

	respondWithJSON(w, http.StatusOK, proximityResponse{
		Signals: signals,
		Alerts:  alerts,
	})
}
