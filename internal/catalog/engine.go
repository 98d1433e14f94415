package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gigboard/gigboard/internal/models"
)

// DateRefiner fills structured date fields on a candidate whose upstream
// listing only carried prose. Refinement is best-effort: an error leaves the
// candidate untouched and it proceeds with an unknown occurrence.
type DateRefiner interface {
	Refine(ctx context.Context, candidate *models.CandidateEvent) error
}

// Engine chains the consolidation stages for one candidate: derive external
// identity, run the freshness gate, resolve venue and performers, then
// match-or-create the canonical event. The surrounding pipeline owns
// concurrency, retries and outcome recording; the engine is purely
// per-candidate.
type Engine struct {
	sources      SourceRepository
	venueDedup   *VenueDeduplicator
	performers   *PerformerDeduplicator
	freshness    *FreshnessPredictor
	consolidator *EventConsolidator
	refiner      DateRefiner
	logger       *slog.Logger
}

// SetDateRefiner installs an optional date refiner. Nil disables refinement.
func (e *Engine) SetDateRefiner(refiner DateRefiner) {
	e.refiner = refiner
}

func NewEngine(
	sources SourceRepository,
	venueDedup *VenueDeduplicator,
	performers *PerformerDeduplicator,
	freshness *FreshnessPredictor,
	consolidator *EventConsolidator,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		sources:      sources,
		venueDedup:   venueDedup,
		performers:   performers,
		freshness:    freshness,
		consolidator: consolidator,
		logger:       logger,
	}
}

// Process runs one candidate through the full chain. A non-nil error always
// accompanies a failed Resolution; skip resolutions are never errors.
func (e *Engine) Process(ctx context.Context, candidate *models.CandidateEvent) (Resolution, error) {
	if err := candidate.Validate(); err != nil {
		// Missing required fields is a terminal extraction failure, not a
		// retryable one.
		return Failed("", err.Error()), fmt.Errorf("invalid candidate: %w", err)
	}

	source, err := e.sources.GetByID(ctx, candidate.SourceID)
	if err != nil {
		return Failed("", "source config lookup failed"), fmt.Errorf("source lookup: %w", err)
	}
	if source == nil {
		return Failed("", "unknown source"), fmt.Errorf("unknown source %q", candidate.SourceID)
	}

	externalID := DeriveExternalID(*source, candidate)

	fresh, err := e.freshness.Check(ctx, candidate, externalID)
	if err != nil {
		return Failed(externalID, "freshness check failed"), fmt.Errorf("freshness check: %w", err)
	}
	if fresh.Represented {
		e.logger.Debug("candidate skipped by freshness predictor",
			"source_id", candidate.SourceID,
			"external_id", externalID,
			"layer", fresh.Layer,
		)
		return Skipped(externalID, fmt.Sprintf("%s: %s", fresh.Layer, fresh.Reason)), nil
	}

	// Refinement runs after identity derivation so the external ID stays a
	// pure function of what the source listed.
	if e.refiner != nil && candidate.StartsAt == nil && candidate.RecurrencePattern == nil && candidate.RawDateString != "" {
		if refineErr := e.refiner.Refine(ctx, candidate); refineErr != nil {
			e.logger.Warn("date refinement failed",
				"source_id", candidate.SourceID,
				"raw", candidate.RawDateString,
				"error", refineErr,
			)
		}
	}

	// Venue resolution cannot fail the candidate outright: the degradation
	// chain inside the deduplicator guarantees a resolvable venue unless the
	// store itself is unreachable.
	venue, err := e.venueDedup.Resolve(ctx, candidate.VenueHint)
	if err != nil {
		return Failed(externalID, "venue resolution failed"), fmt.Errorf("venue resolution: %w", err)
	}

	performerIDs, err := e.performers.ResolveAll(ctx, candidate.PerformerHints)
	if err != nil {
		return Failed(externalID, "performer resolution failed"), fmt.Errorf("performer resolution: %w", err)
	}

	return e.consolidator.Consolidate(ctx, ConsolidatorInput{
		Source:       *source,
		Candidate:    candidate,
		Venue:        venue,
		PerformerIDs: performerIDs,
		ExternalID:   externalID,
	})
}
