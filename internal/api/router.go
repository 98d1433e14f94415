package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gigboard/gigboard/internal/auth"
	"github.com/gigboard/gigboard/internal/catalog"
	"github.com/gigboard/gigboard/internal/ingestion"
)

// SetupRoutes configures all API routes.
func SetupRoutes(
	mux *http.ServeMux,
	db *sql.DB,
	events EventStore,
	venues catalog.VenueRepository,
	sources catalog.SourceRepository,
	runs RunStore,
	admin SourceAdmin,
	pipeline *ingestion.Pipeline,
	authConfig auth.Config,
	logger *slog.Logger,
) {
	handler := NewHandler(events, venues, sources, runs, admin, pipeline, db, logger)
	authHandler := NewAuthHandler(authConfig, db, logger)

	authMiddleware := auth.Middleware(authConfig)

	mux.HandleFunc("/health", handler.HealthHandler)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Catalog routes (public for reading)
	mux.HandleFunc("/api/events", handler.GetEventsHandler)
	mux.HandleFunc("/api/events/", handler.GetEventByIDHandler)
	mux.HandleFunc("/api/venues/", handler.GetVenueByIDHandler)
	mux.HandleFunc("/api/sources", handler.GetSourcesHandler)

	// Run history routes (public for reading)
	mux.HandleFunc("/api/runs", handler.GetRunsHandler)
	mux.HandleFunc("/api/runs/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/outcomes") {
			handler.GetRunOutcomesHandler(w, r)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
	})

	// Ingestion route (requires auth)
	mux.HandleFunc("/api/ingest", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(handler.IngestHandler)).ServeHTTP(w, r)
	})

	// Admin routes (require auth)
	mux.HandleFunc("/api/admin/runs/trigger", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(handler.TriggerRunHandler)).ServeHTTP(w, r)
	})
	mux.HandleFunc("/api/admin/sources/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/enabled") {
			authMiddleware(http.HandlerFunc(handler.SetSourceEnabledHandler)).ServeHTTP(w, r)
			return
		}
		http.Error(w, "Not found", http.StatusNotFound)
	})
}
