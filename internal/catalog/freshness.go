package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gigboard/gigboard/internal/match"
	"github.com/gigboard/gigboard/internal/models"
)

// DefaultFreshnessWindow is the span within which a previously seen listing
// is considered still represented and safe to skip.
const DefaultFreshnessWindow = 168 * time.Hour

// FreshnessLayer identifies which check produced a skip decision.
type FreshnessLayer string

const (
	FreshnessDirect    FreshnessLayer = "direct"    // (source_id, external_id) seen recently
	FreshnessIndirect  FreshnessLayer = "indirect"  // linked canonical event updated recently
	FreshnessPredicted FreshnessLayer = "predicted" // similar-titled venue event updated recently
)

// Freshness is the predictor's verdict for one candidate.
type Freshness struct {
	Represented bool
	Layer       FreshnessLayer
	Reason      string
}

// FreshnessPredictor decides whether a candidate is already represented and
// recently processed, before any expensive downstream work runs. It is an
// admission-control gate bounding redundant work under a fixed re-scrape
// cadence, not a correctness guarantee.
type FreshnessPredictor struct {
	links        SourceLinkRepository
	events       EventRepository
	venues       VenueRepository
	window       time.Duration
	threshold    float64
	radiusMeters float64
	logger       *slog.Logger
	now          func() time.Time
}

// NewFreshnessPredictor creates a predictor. window, threshold and
// radiusMeters fall back to their package defaults when non-positive. The
// radius must match the deduplicator's so both resolve a coordinate hint to
// the same venue.
func NewFreshnessPredictor(
	links SourceLinkRepository,
	events EventRepository,
	venues VenueRepository,
	window time.Duration,
	threshold float64,
	radiusMeters float64,
	logger *slog.Logger,
) *FreshnessPredictor {
	if window <= 0 {
		window = DefaultFreshnessWindow
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultVenueRadiusMeters
	}
	return &FreshnessPredictor{
		links:        links,
		events:       events,
		venues:       venues,
		window:       window,
		threshold:    threshold,
		radiusMeters: radiusMeters,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the predictor clock for tests.
func (p *FreshnessPredictor) SetClock(now func() time.Time) { p.now = now }

// Check runs the three ordered checks, short-circuiting on the first hit.
// externalID must be the identity DeriveExternalID would produce for the
// candidate, so that the direct check sees the same join row a previous
// scrape wrote.
func (p *FreshnessPredictor) Check(ctx context.Context, candidate *models.CandidateEvent, externalID string) (Freshness, error) {
	now := p.now()
	cutoff := now.Add(-p.window)

	link, err := p.links.Get(ctx, candidate.SourceID, externalID)
	if err != nil {
		return Freshness{}, fmt.Errorf("source link lookup: %w", err)
	}

	if link != nil {
		// Layer 1: the exact upstream row was seen inside the window.
		if link.SeenWithin(p.window, now) {
			return Freshness{
				Represented: true,
				Layer:       FreshnessDirect,
				Reason:      fmt.Sprintf("external_id %s last seen %s ago", externalID, now.Sub(link.LastSeenAt).Round(time.Minute)),
			}, nil
		}

		// Layer 2: the linked canonical event itself was touched inside the
		// window (covers occurrences consolidated in from other listings).
		event, err := p.events.GetByID(ctx, link.EventID)
		if err != nil {
			return Freshness{}, fmt.Errorf("linked event lookup: %w", err)
		}
		if event != nil && !event.UpdatedAt.Before(cutoff) {
			return Freshness{
				Represented: true,
				Layer:       FreshnessIndirect,
				Reason:      fmt.Sprintf("canonical event %s updated %s ago", event.ID, now.Sub(event.UpdatedAt).Round(time.Minute)),
			}, nil
		}

		return Freshness{}, nil
	}

	// Layer 3: no join row yet, but a recently updated canonical event at
	// the same venue with a similar title suggests this candidate is a
	// repeat scrape of an already-represented recurring instance. The venue
	// lookup here never creates anything; a venue the catalog has not seen
	// cannot host a represented event.
	venue, err := p.lookupVenue(ctx, candidate.VenueHint)
	if err != nil {
		return Freshness{}, fmt.Errorf("venue lookup: %w", err)
	}
	if venue == nil {
		return Freshness{}, nil
	}

	normalizedTitle := match.NormalizeTitle(candidate.Title)
	recent, err := p.events.ListByVenueUpdatedSince(ctx, venue.ID, cutoff)
	if err != nil {
		return Freshness{}, fmt.Errorf("recent events lookup: %w", err)
	}

	for _, event := range recent {
		score := match.JaroWinkler(normalizedTitle, event.NormalizedTitle)
		if score >= p.threshold {
			p.logger.Debug("freshness predicted hit",
				"candidate_title", candidate.Title,
				"event_id", event.ID,
				"score", score,
			)
			return Freshness{
				Represented: true,
				Layer:       FreshnessPredicted,
				Reason:      fmt.Sprintf("similar event %s (score %.2f) updated recently", event.ID, score),
			}, nil
		}
	}

	return Freshness{}, nil
}

func (p *FreshnessPredictor) lookupVenue(ctx context.Context, hint models.VenueHint) (*models.Venue, error) {
	normalized := match.NormalizeName(hint.Name)
	if hint.HasCoordinates() {
		return p.venues.FindNearby(ctx, normalized, hint.City, *hint.Latitude, *hint.Longitude, p.radiusMeters)
	}
	return p.venues.FindByNormalizedName(ctx, normalized, hint.City)
}
