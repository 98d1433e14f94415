package catalog

import (
	"fmt"

	"github.com/gigboard/gigboard/internal/match"
	"github.com/gigboard/gigboard/internal/models"
)

// DeriveExternalID computes the per-source external identity string used to
// recognize the same upstream listing across repeated scrapes.
//
// When the extraction stage supplies an explicit hint it wins: the upstream
// provider knows its own identifiers best. Otherwise the source's identity
// family decides:
//
//	venue_only    "{source}_{venue_slug}":        day-of-week/time describes
//	              when, not which; pattern-based recurring sources.
//	date_embedded "{source}_{venue_slug}_{date}": each upstream row is a
//	              distinct instance.
//
// The venue slug is derived from the candidate's venue hint, not from the
// resolved canonical venue, so the identity stays stable even when dedup
// later maps the hint onto a venue stored under a different display name.
//
// Known limitation: under venue_only, a one-off special event at a venue
// that also hosts a recurring event collides on external_id. The
// consolidator's title grouping keeps the canonical events distinct; the
// join row simply repoints on each scrape.
func DeriveExternalID(source models.Source, candidate *models.CandidateEvent) string {
	if candidate.ExternalIDHint != "" {
		return fmt.Sprintf("%s_%s", source.Slug, candidate.ExternalIDHint)
	}

	venueSlug := match.Slug(candidate.VenueHint.Name)

	switch source.IdentityFamily {
	case models.IdentityDateEmbedded:
		date := candidate.DateKey()
		if date == "" {
			// Unparseable date under a date-embedded family: fall back to a
			// slug of the raw string so distinct upstream rows stay distinct.
			date = match.Slug(candidate.RawDateString)
		}
		if date != "" {
			return fmt.Sprintf("%s_%s_%s", source.Slug, venueSlug, date)
		}
		return fmt.Sprintf("%s_%s", source.Slug, venueSlug)

	default: // venue_only
		return fmt.Sprintf("%s_%s", source.Slug, venueSlug)
	}
}
