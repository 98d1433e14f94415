// Package api exposes the read/ops HTTP surface over the catalog.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gigboard/gigboard/internal/catalog"
	"github.com/gigboard/gigboard/internal/database"
	"github.com/gigboard/gigboard/internal/ingestion"
	"github.com/gigboard/gigboard/internal/models"
)

// EventStore is the read surface the API needs from the event repository.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error)
	ListRecent(ctx context.Context, limit int) ([]models.CanonicalEvent, error)
}

// RunStore is the read surface over pipeline execution history.
type RunStore interface {
	ListRecentRuns(ctx context.Context, limit int) ([]models.Run, error)
	ListOutcomes(ctx context.Context, runID string) ([]models.CandidateOutcome, error)
}

// SourceAdmin toggles sources. Admin routes only.
type SourceAdmin interface {
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type Handler struct {
	events    EventStore
	venues    catalog.VenueRepository
	sources   catalog.SourceRepository
	runs      RunStore
	admin     SourceAdmin
	pipeline  *ingestion.Pipeline
	db        *sql.DB
	logger    *slog.Logger
	startTime time.Time
}

func NewHandler(
	events EventStore,
	venues catalog.VenueRepository,
	sources catalog.SourceRepository,
	runs RunStore,
	admin SourceAdmin,
	pipeline *ingestion.Pipeline,
	db *sql.DB,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		events:    events,
		venues:    venues,
		sources:   sources,
		runs:      runs,
		admin:     admin,
		pipeline:  pipeline,
		db:        db,
		logger:    logger,
		startTime: time.Now(),
	}
}

// HealthHandler handles GET /health
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":           "ok",
		"uptime_seconds":   int(time.Since(h.startTime).Seconds()),
		"pipeline_running": h.pipeline.IsRunning(),
	}

	code := http.StatusOK
	if h.db != nil {
		if err := database.HealthCheck(r.Context(), h.db); err != nil {
			status["status"] = "degraded"
			status["database_error"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = database.Stats(h.db)
		}
	}

	connectors := make(map[string]string)
	for name, err := range h.pipeline.HealthCheck(r.Context()) {
		if err != nil {
			connectors[name] = err.Error()
		} else {
			connectors[name] = "ok"
		}
	}
	status["connectors"] = connectors

	writeJSON(w, code, status)
}

// GetEventsHandler handles GET /api/events
func (h *Handler) GetEventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list events", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// GetEventByIDHandler handles GET /api/events/:id
func (h *Handler) GetEventByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventID := pathSegment(r.URL.Path, 3)
	if eventID == "" {
		http.Error(w, "Event ID required", http.StatusBadRequest)
		return
	}

	event, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		h.logger.Error("failed to get event", "id", eventID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if event == nil {
		http.Error(w, "Event not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// GetVenueByIDHandler handles GET /api/venues/:id
func (h *Handler) GetVenueByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	venueID := pathSegment(r.URL.Path, 3)
	if venueID == "" {
		http.Error(w, "Venue ID required", http.StatusBadRequest)
		return
	}

	venue, err := h.venues.GetByID(r.Context(), venueID)
	if err != nil {
		h.logger.Error("failed to get venue", "id", venueID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if venue == nil {
		http.Error(w, "Venue not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, venue)
}

// GetSourcesHandler handles GET /api/sources
func (h *Handler) GetSourcesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sources, err := h.sources.ListEnabled(r.Context())
	if err != nil {
		h.logger.Error("failed to list sources", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	})
}

// GetRunsHandler handles GET /api/runs
func (h *Handler) GetRunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := h.runs.ListRecentRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRunOutcomesHandler handles GET /api/runs/:id/outcomes
func (h *Handler) GetRunOutcomesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := pathSegment(r.URL.Path, 3)
	if runID == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	outcomes, err := h.runs.ListOutcomes(r.Context(), runID)
	if err != nil {
		h.logger.Error("failed to list outcomes", "run_id", runID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":   runID,
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

// TriggerRunHandler handles POST /api/admin/runs/trigger. The cycle runs in
// the background; the response only acknowledges the trigger.
func (h *Handler) TriggerRunHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	go h.pipeline.RunCycle(context.Background())

	h.logger.Info("manual ingestion cycle triggered")
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// SetSourceEnabledHandler handles PUT /api/admin/sources/:id/enabled
func (h *Handler) SetSourceEnabledHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sourceID := pathSegment(r.URL.Path, 4)
	if sourceID == "" {
		http.Error(w, "Source ID required", http.StatusBadRequest)
		return
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.admin.SetEnabled(r.Context(), sourceID, body.Enabled); err != nil {
		h.logger.Error("failed to toggle source", "source_id", sourceID, "error", err)
		http.Error(w, "Source not found", http.StatusNotFound)
		return
	}

	h.logger.Info("source toggled", "source_id", sourceID, "enabled", body.Enabled)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"source_id": sourceID,
		"enabled":   body.Enabled,
	})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

// pathSegment returns the n-th slash-separated segment of the path, "" when
// the path is too short.
func pathSegment(path string, n int) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	// Trim shifts indices down by one relative to the raw path.
	if n-1 < len(parts) {
		return parts[n-1]
	}
	return ""
}
