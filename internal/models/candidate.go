package models

import (
	"fmt"
	"time"
)

// CandidateEvent is one normalized listing handed over by the extraction
// stage. The engine owns identity resolution for it; it never sees the raw
// HTML/JSON the candidate came from.
type CandidateEvent struct {
	SourceID       string `json:"source_id"`
	ExternalIDHint string `json:"external_id_hint,omitempty"`

	Title string `json:"title"`

	// Exactly one of StartsAt / RawDateString is expected. A raw string that
	// later proves unparseable still produces a canonical event (the unknown
	// occurrence variant), it never blocks creation.
	StartsAt      *time.Time `json:"start_at,omitempty"`
	RawDateString string     `json:"raw_date_string,omitempty"`

	VenueHint      VenueHint `json:"venue_hint"`
	PerformerHints []string  `json:"performer_hints,omitempty"`

	RecurrencePattern  *RecurrencePattern `json:"recurrence_rule,omitempty"`
	OccurrenceTypeHint OccurrenceType     `json:"occurrence_type_hint,omitempty"`

	// CancellationReason is set when the upstream listing was classified as
	// cancelled; it is carried into the source link metadata.
	CancellationReason string `json:"cancellation_reason,omitempty"`
}

// VenueHint is the extraction stage's best guess at where the event happens.
type VenueHint struct {
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	City      string   `json:"city,omitempty"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether the hint carries usable coordinates.
func (h VenueHint) HasCoordinates() bool {
	return h.Latitude != nil && h.Longitude != nil
}

// Validate checks the minimally required fields. A candidate failing this is
// a terminal extraction failure, not a retryable one.
func (c *CandidateEvent) Validate() error {
	if c.SourceID == "" {
		return fmt.Errorf("candidate missing source_id")
	}
	if c.Title == "" {
		return fmt.Errorf("candidate missing title")
	}
	if c.VenueHint.Name == "" {
		return fmt.Errorf("candidate missing venue hint")
	}
	if c.StartsAt == nil && c.RawDateString == "" && c.RecurrencePattern == nil {
		return fmt.Errorf("candidate carries no date signal")
	}
	return nil
}

// DateKey returns the "2006-01-02" date used by date-embedded external
// identity, or "" when the candidate has no parsed start time.
func (c *CandidateEvent) DateKey() string {
	if c.StartsAt == nil {
		return ""
	}
	return c.StartsAt.Format("2006-01-02")
}
