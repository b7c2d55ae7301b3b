// internal/server/handlers/alert.go

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"aegis/internal/domain/alert"
	alertservice "aegis/internal/service/alert"
)

// AlertHandler handles safety alert HTTP requests
type AlertHandler struct {
	manager       *alertservice.Manager
	defaultRadius float64
}

// NewAlertHandler creates a new safety alert handler
func NewAlertHandler(manager *alertservice.Manager, defaultRadius float64) *AlertHandler {
	return &AlertHandler{
		manager:       manager,
		defaultRadius: defaultRadius,
	}
}

type createAlertRequest struct {
	Message         string     `json:"message"`
	Severity        string     `json:"severity"`
	Latitude        float64    `json:"latitude"`
	Longitude       float64    `json:"longitude"`
	LocationAddress string     `json:"location_address"`
	RadiusMeters    float64    `json:"radius"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

// CreateAlert registers a new broadcast alert
func (h *AlertHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	radius := req.RadiusMeters
	if radius <= 0 {
		radius = h.defaultRadius
	}

	created, err := h.manager.Create(r.Context(), alertservice.CreateAlertInput{
		Message:         req.Message,
		Severity:        alert.Severity(req.Severity),
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
		LocationAddress: req.LocationAddress,
		RadiusMeters:    radius,
		ExpiresAt:       req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, alert.ErrEmptyMessage) || errors.Is(err, alert.ErrInvalidSeverity) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// ListAlerts returns all alerts, expired ones included
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.manager.List(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []alert.SafetyAlert{}
	}

	respondWithJSON(w, http.StatusOK, alerts)
}

// ListActiveAlerts returns the alerts live right now, highest severity
// first
func (h *AlertHandler) ListActiveAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.manager.ListActive(r.Context(), time.Now())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []alert.SafetyAlert{}
	}

	respondWithJSON(w, http.StatusOK, alerts)
}
