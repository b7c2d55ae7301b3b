// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"aegis/internal/config"
	"aegis/internal/domain/feed"
	"aegis/internal/domain/presence"
	"aegis/internal/server/handlers"
	alertservice "aegis/internal/service/alert"
	signalservice "aegis/internal/service/signal"
	"aegis/internal/service/view"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(
	cfg config.Config,
	bus feed.Bus,
	presenceStore presence.Store,
	signalManager *signalservice.Manager,
	alertManager *alertservice.Manager,
	presenceView *view.View,
	logger *zap.Logger,
) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	presenceHandler := handlers.NewPresenceHandler(presenceStore, cfg.Presence.NearbyRadiusMeters)
	signalHandler := handlers.NewSignalHandler(signalManager, cfg.Proximity.SignalRadiusMeters)
	alertHandler := handlers.NewAlertHandler(alertManager, cfg.Alert.DefaultRadiusMeters)
	snapshotHandler := handlers.NewSnapshotHandler(presenceView, cfg.Proximity.SignalRadiusMeters)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			// Presence API
			r.Route("/presence", func(r chi.Router) {
				r.Get("/", presenceHandler.ListLocations)
				r.Get("/nearby", presenceHandler.ListNearby)
				r.Get("/{user_id}", presenceHandler.GetLocation)
				r.Put("/{user_id}", presenceHandler.UpdateLocation)
			})

			// Distress signals API
			r.Route("/signals", func(r chi.Router) {
				r.Get("/", signalHandler.ListActive)
				r.Post("/", signalHandler.CreateSignal)
				r.Get("/nearby", signalHandler.ListNearby)
				r.Post("/{id}/resolve", signalHandler.ResolveSignal)
			})

			// Aggregated map state served from the presence view
			r.Route("/snapshot", func(r chi.Router) {
				r.Get("/", snapshotHandler.GetSnapshot)
				r.Get("/proximity", snapshotHandler.GetProximity)
			})

			// Safety alerts API
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/", alertHandler.ListAlerts)
				r.Post("/", alertHandler.CreateAlert)
				r.Get("/active", alertHandler.ListActiveAlerts)
			})
		})
	})

	// WebSocket endpoint for live change-feed consumption
	router.Get("/ws/feed", handlers.FeedWebSocketHandler(bus, logger))

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
