package api

import (
	"encoding/json"
	"net/http"

	"github.com/gigboard/gigboard/internal/models"
)

type ingestRequest struct {
	SourceID   string                 `json:"source_id"`
	Candidates []models.CandidateEvent `json:"candidates"`
}

// IngestHandler handles POST /api/ingest: push-style sources deliver a batch
// of candidates and get the finished run back, counters included. The batch
// is processed synchronously so the caller sees skip/fail splits directly.
func (h *Handler) IngestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceID == "" {
		http.Error(w, "source_id required", http.StatusBadRequest)
		return
	}
	if len(req.Candidates) == 0 {
		http.Error(w, "candidates required", http.StatusBadRequest)
		return
	}

	// Candidates may omit their source_id; the batch-level one fills it in.
	for i := range req.Candidates {
		if req.Candidates[i].SourceID == "" {
			req.Candidates[i].SourceID = req.SourceID
		}
	}

	run, err := h.pipeline.IngestBatch(r.Context(), req.SourceID, req.Candidates)
	if err != nil {
		h.logger.Error("ingest batch failed", "source_id", req.SourceID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, run)
}
