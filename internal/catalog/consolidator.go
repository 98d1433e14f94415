package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gigboard/gigboard/internal/match"
	"github.com/gigboard/gigboard/internal/models"
)

// DefaultSimilarityThreshold is the normalized-title Jaro-Winkler score at
// or above which two listings at the same venue are the same event.
// Empirically tuned; override via configuration per source family.
const DefaultSimilarityThreshold = 0.85

// Resolution is the terminal state of processing one candidate. Skip and
// failure are distinct variants: a skipped candidate is a normal, expected
// outcome, while a failed one signals pipeline breakage.
type Resolution struct {
	Result     models.OutcomeResult
	Reason     string
	EventID    string
	ExternalID string
}

// Skipped builds a skip resolution.
func Skipped(externalID, reason string) Resolution {
	return Resolution{Result: models.OutcomeSkipped, Reason: reason, ExternalID: externalID}
}

// Failed builds a failure resolution.
func Failed(externalID, reason string) Resolution {
	return Resolution{Result: models.OutcomeFailed, Reason: reason, ExternalID: externalID}
}

// ConsolidatorInput is a candidate that passed freshness checks, with its
// venue and performers already resolved.
type ConsolidatorInput struct {
	Source       models.Source
	Candidate    *models.CandidateEvent
	Venue        *models.Venue
	PerformerIDs []string
	ExternalID   string
}

// EventConsolidator performs match-or-create against canonical events.
// A wrong consolidation decision is a logged data-quality signal, not an
// error: the operation always completes and leaves the store consistent.
type EventConsolidator struct {
	events    EventRepository
	links     SourceLinkRepository
	threshold float64
	logger    *slog.Logger
	now       func() time.Time
}

// NewEventConsolidator creates a consolidator. threshold defaults to
// DefaultSimilarityThreshold when non-positive.
func NewEventConsolidator(events EventRepository, links SourceLinkRepository, threshold float64, logger *slog.Logger) *EventConsolidator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &EventConsolidator{
		events:    events,
		links:     links,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the consolidator clock for tests; it controls
// first_seen_at stamps on unknown-date events.
func (c *EventConsolidator) SetClock(now func() time.Time) { c.now = now }

// Consolidate resolves the candidate to a new or existing canonical event.
func (c *EventConsolidator) Consolidate(ctx context.Context, in ConsolidatorInput) (Resolution, error) {
	if !in.Source.AggregateOnIndex {
		return c.consolidateExact(ctx, in)
	}
	return c.consolidateFuzzy(ctx, in)
}

// consolidateExact never attempts fuzzy matching: it creates a fresh
// canonical event or updates in place solely by exact (source_id,
// external_id) match. This guards sources whose upstream model is "each
// listing is independently significant", where generic fuzzy consolidation
// would silently merge distinct one-off instances of the same title.
func (c *EventConsolidator) consolidateExact(ctx context.Context, in ConsolidatorInput) (Resolution, error) {
	link, err := c.links.Get(ctx, in.Source.ID, in.ExternalID)
	if err != nil {
		return Failed(in.ExternalID, "source link lookup failed"), fmt.Errorf("source link lookup: %w", err)
	}

	if link != nil {
		if err := c.appendAndLink(ctx, link.EventID, in); err != nil {
			return Failed(in.ExternalID, "occurrence append failed"), err
		}
		return Resolution{Result: models.OutcomeConsolidated, EventID: link.EventID, ExternalID: in.ExternalID}, nil
	}

	return c.createCanonical(ctx, in)
}

func (c *EventConsolidator) consolidateFuzzy(ctx context.Context, in ConsolidatorInput) (Resolution, error) {
	normalizedTitle := match.NormalizeTitle(in.Candidate.Title)

	candidates, err := c.events.ListByVenue(ctx, in.Venue.ID)
	if err != nil {
		return Failed(in.ExternalID, "venue event scan failed"), fmt.Errorf("venue event scan: %w", err)
	}

	var best *models.CanonicalEvent
	bestScore := 0.0
	for i := range candidates {
		score := match.JaroWinkler(normalizedTitle, candidates[i].NormalizedTitle)
		if score >= c.threshold && score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}

	if best != nil {
		c.logger.Info("consolidating into existing event",
			"event_id", best.ID,
			"candidate_title", in.Candidate.Title,
			"score", bestScore,
		)
		if err := c.appendAndLink(ctx, best.ID, in); err != nil {
			return Failed(in.ExternalID, "occurrence append failed"), err
		}
		return Resolution{Result: models.OutcomeConsolidated, EventID: best.ID, ExternalID: in.ExternalID}, nil
	}

	return c.createCanonical(ctx, in)
}

// appendAndLink appends the candidate's occurrence entry (the repository
// takes the row lock and deduplicates by date+time) and writes/refreshes the
// join row pointing the external identity at the canonical event.
func (c *EventConsolidator) appendAndLink(ctx context.Context, eventID string, in ConsolidatorInput) error {
	if entry, ok := c.occurrenceEntry(in); ok {
		added, err := c.events.AppendOccurrence(ctx, eventID, entry)
		if err != nil {
			return fmt.Errorf("append occurrence: %w", err)
		}
		if !added {
			c.logger.Debug("occurrence already present",
				"event_id", eventID, "date", entry.Date, "time", entry.Time)
		}
	}

	if err := c.upsertLink(ctx, eventID, in); err != nil {
		return err
	}

	if in.Candidate.CancellationReason != "" {
		if err := c.events.UpdateStatus(ctx, eventID, models.EventStatusCancelled); err != nil {
			return fmt.Errorf("cancel event: %w", err)
		}
	}
	return nil
}

func (c *EventConsolidator) createCanonical(ctx context.Context, in ConsolidatorInput) (Resolution, error) {
	now := c.now()
	event := models.CanonicalEvent{
		ID:              uuid.NewString(),
		Title:           in.Candidate.Title,
		NormalizedTitle: match.NormalizeTitle(in.Candidate.Title),
		VenueID:         in.Venue.ID,
		PerformerIDs:    in.PerformerIDs,
		Status:          models.EventStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	event.Occurrences = c.initialOccurrences(in, now)
	if in.Candidate.StartsAt != nil {
		event.StartsAt = *in.Candidate.StartsAt
	} else {
		// No parseable date: starts_at is the time of first observation, and
		// the original string stays in the occurrences payload for audit.
		event.StartsAt = now
	}
	if in.Candidate.CancellationReason != "" {
		event.Status = models.EventStatusCancelled
	}

	if err := c.events.Create(ctx, event); err != nil {
		return Failed(in.ExternalID, "event create failed"), fmt.Errorf("event create: %w", err)
	}
	if err := c.upsertLink(ctx, event.ID, in); err != nil {
		return Failed(in.ExternalID, "source link write failed"), err
	}

	c.logger.Info("canonical event created",
		"event_id", event.ID,
		"title", event.Title,
		"occurrence_type", event.Occurrences.Type,
		"venue_id", event.VenueID,
	)
	return Resolution{Result: models.OutcomeCreated, EventID: event.ID, ExternalID: in.ExternalID}, nil
}

// initialOccurrences picks the occurrences variant by priority: explicit
// recurrence rule, then the upstream occurrence-type hint, then a plain
// explicit entry, and finally the unknown variant when no date parsed.
func (c *EventConsolidator) initialOccurrences(in ConsolidatorInput, now time.Time) models.Occurrences {
	cand := in.Candidate

	if cand.RecurrencePattern != nil {
		return models.Occurrences{Type: models.OccurrencePattern, Pattern: cand.RecurrencePattern}
	}

	if cand.OccurrenceTypeHint.Valid() && cand.OccurrenceTypeHint != models.OccurrencePattern {
		occ := models.Occurrences{Type: cand.OccurrenceTypeHint}
		if occ.Type == models.OccurrenceUnknown {
			occ.FirstSeenAt = &now
			occ.OriginalDateString = cand.RawDateString
			return occ
		}
		if entry, ok := c.occurrenceEntry(in); ok {
			occ.AddDate(entry)
		}
		return occ
	}

	if cand.StartsAt != nil {
		occ := models.Occurrences{Type: models.OccurrenceExplicit}
		if entry, ok := c.occurrenceEntry(in); ok {
			occ.AddDate(entry)
		}
		return occ
	}

	return models.Occurrences{
		Type:               models.OccurrenceUnknown,
		FirstSeenAt:        &now,
		OriginalDateString: cand.RawDateString,
	}
}

func (c *EventConsolidator) occurrenceEntry(in ConsolidatorInput) (models.OccurrenceEntry, bool) {
	if in.Candidate.StartsAt == nil {
		return models.OccurrenceEntry{}, false
	}
	return models.OccurrenceEntry{
		Date:       in.Candidate.StartsAt.Format("2006-01-02"),
		Time:       in.Candidate.StartsAt.Format("15:04"),
		ExternalID: in.ExternalID,
	}, true
}

func (c *EventConsolidator) upsertLink(ctx context.Context, eventID string, in ConsolidatorInput) error {
	link := models.SourceLink{
		ID:         uuid.NewString(),
		SourceID:   in.Source.ID,
		ExternalID: in.ExternalID,
		EventID:    eventID,
		Metadata: models.SourceLinkMetadata{
			OccurrenceType:     in.Candidate.OccurrenceTypeHint,
			CancellationReason: in.Candidate.CancellationReason,
		},
		LastSeenAt: c.now(),
		CreatedAt:  c.now(),
	}
	if err := c.links.Upsert(ctx, link); err != nil {
		return fmt.Errorf("source link upsert: %w", err)
	}
	return nil
}
