package models

import (
	"time"
)

// Source is the immutable configuration of one upstream provider (ticket
// vendor, cinema chain, trivia network, municipal listing site). The engine
// only reads these rows; they are managed out of band.
type Source struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`

	// AggregateOnIndex controls whether fuzzy consolidation is attempted for
	// this source's candidates. Sources whose upstream model is "each listing
	// is independently significant" (distinct exhibition runs of the same
	// title, for example) set this false and consolidate by exact external_id
	// only.
	AggregateOnIndex bool `json:"aggregate_on_index"`

	// IdentityFamily selects the external-identity rule for this source.
	IdentityFamily IdentityFamily `json:"identity_family"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentityFamily names the external-identity derivation rule of a source.
type IdentityFamily string

const (
	// IdentityVenueOnly derives "{source}_{venue_slug}": pattern-based
	// recurring sources where day-of-week/time is metadata, not identity.
	IdentityVenueOnly IdentityFamily = "venue_only"

	// IdentityDateEmbedded derives "{source}_{venue_slug}_{date}": explicit
	// listing sources where each upstream row is a distinct instance.
	IdentityDateEmbedded IdentityFamily = "date_embedded"
)

// Valid reports whether the identity family is a known rule.
func (f IdentityFamily) Valid() bool {
	return f == IdentityVenueOnly || f == IdentityDateEmbedded
}

// SourceLink joins one upstream listing to the canonical event it resolved
// to. (source_id, external_id) is unique: re-ingesting the same upstream row
// is an update, never a duplicate insert. This is the surface the freshness
// predictor queries.
type SourceLink struct {
	ID         string             `json:"id"`
	SourceID   string             `json:"source_id"`
	ExternalID string             `json:"external_id"`
	EventID    string             `json:"event_id"`
	Metadata   SourceLinkMetadata `json:"metadata"`
	LastSeenAt time.Time          `json:"last_seen_at"`
	CreatedAt  time.Time          `json:"created_at"`
}

// SourceLinkMetadata carries the upstream-classified occurrence type and any
// cancellation/skip reason reported by the extraction stage.
type SourceLinkMetadata struct {
	OccurrenceType     OccurrenceType `json:"occurrence_type,omitempty"`
	CancellationReason string         `json:"cancellation_reason,omitempty"`
}

// SeenWithin reports whether the link was last refreshed inside the window.
func (l *SourceLink) SeenWithin(window time.Duration, now time.Time) bool {
	return now.Sub(l.LastSeenAt) <= window
}
