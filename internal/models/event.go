package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CanonicalEvent is the deduplicated, authoritative event record that one or
// more upstream listings resolve to. Created by the consolidator when no
// match is found, mutated (occurrence appended) when a later candidate
// consolidates into it, never hard-deleted (only status-transitioned).
type CanonicalEvent struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	NormalizedTitle string      `json:"normalized_title"`
	StartsAt        time.Time   `json:"starts_at"`
	VenueID         string      `json:"venue_id"`
	PerformerIDs    []string    `json:"performer_ids,omitempty"`
	Status          EventStatus `json:"status"`
	Occurrences     Occurrences `json:"occurrences"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// EventStatus is the lifecycle state of a canonical event.
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusArchived  EventStatus = "archived"
)

// OccurrenceType tags the variant stored in an event's occurrences column.
type OccurrenceType string

const (
	OccurrenceExplicit   OccurrenceType = "explicit"
	OccurrencePattern    OccurrenceType = "pattern"
	OccurrenceExhibition OccurrenceType = "exhibition"
	OccurrenceMovie      OccurrenceType = "movie"
	OccurrenceRecurring  OccurrenceType = "recurring"
	OccurrenceUnknown    OccurrenceType = "unknown"
)

// Valid reports whether t is a known occurrence variant.
func (t OccurrenceType) Valid() bool {
	switch t {
	case OccurrenceExplicit, OccurrencePattern, OccurrenceExhibition,
		OccurrenceMovie, OccurrenceRecurring, OccurrenceUnknown:
		return true
	}
	return false
}

// HasDateList reports whether the variant carries an ordered dates list.
func (t OccurrenceType) HasDateList() bool {
	switch t {
	case OccurrenceExplicit, OccurrenceExhibition, OccurrenceMovie, OccurrenceRecurring:
		return true
	}
	return false
}

// OccurrenceEntry is one concrete date/time instance of a canonical event.
type OccurrenceEntry struct {
	Date       string `json:"date"`            // "2006-01-02"
	Time       string `json:"time,omitempty"`  // "15:04"
	Label      string `json:"label,omitempty"` // e.g. "Late show"
	ExternalID string `json:"external_id,omitempty"`
}

// RecurrencePattern is a recurrence rule standing in for an unbounded list
// of occurrences, e.g. "weekly on Tuesday at 19:30".
type RecurrencePattern struct {
	Frequency string `json:"frequency"` // "daily", "weekly", "monthly"
	Weekday   string `json:"weekday,omitempty"`
	Time      string `json:"time,omitempty"`
	Interval  int    `json:"interval,omitempty"` // every N periods, 0 means 1
}

// Occurrences is the tagged union persisted in the canonical event's
// occurrences column. Exactly one variant payload is populated:
//
//	explicit/exhibition/movie/recurring: Dates (deduplicated by date+time)
//	pattern:                             Pattern (the rule is the source of truth, never a dates list)
//	unknown:                             FirstSeenAt + OriginalDateString for later audit/backfill
type Occurrences struct {
	Type               OccurrenceType
	Dates              []OccurrenceEntry
	Pattern            *RecurrencePattern
	FirstSeenAt        *time.Time
	OriginalDateString string
}

type occurrencesJSON struct {
	Type               OccurrenceType     `json:"type"`
	Dates              []OccurrenceEntry  `json:"dates,omitempty"`
	Pattern            *RecurrencePattern `json:"pattern,omitempty"`
	FirstSeenAt        *time.Time         `json:"first_seen_at,omitempty"`
	OriginalDateString string             `json:"original_date_string,omitempty"`
}

// MarshalJSON emits only the payload fields belonging to the tagged variant.
func (o Occurrences) MarshalJSON() ([]byte, error) {
	out := occurrencesJSON{Type: o.Type}
	switch {
	case o.Type == OccurrencePattern:
		out.Pattern = o.Pattern
	case o.Type == OccurrenceUnknown:
		out.FirstSeenAt = o.FirstSeenAt
		out.OriginalDateString = o.OriginalDateString
	case o.Type.HasDateList():
		out.Dates = o.Dates
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the union and drops payloads that do not belong to
// the stored variant.
func (o *Occurrences) UnmarshalJSON(data []byte) error {
	var in occurrencesJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if !in.Type.Valid() {
		return fmt.Errorf("unknown occurrences type: %q", in.Type)
	}

	*o = Occurrences{Type: in.Type}
	switch {
	case in.Type == OccurrencePattern:
		o.Pattern = in.Pattern
	case in.Type == OccurrenceUnknown:
		o.FirstSeenAt = in.FirstSeenAt
		o.OriginalDateString = in.OriginalDateString
	case in.Type.HasDateList():
		o.Dates = in.Dates
	}
	return nil
}

// AddDate appends an occurrence entry, deduplicating by (date, time). It
// returns true when the entry was actually added. Calling it on a variant
// without a dates list is a no-op.
func (o *Occurrences) AddDate(entry OccurrenceEntry) bool {
	if !o.Type.HasDateList() {
		return false
	}
	for _, existing := range o.Dates {
		if existing.Date == entry.Date && existing.Time == entry.Time {
			return false
		}
	}
	o.Dates = append(o.Dates, entry)
	return true
}

// Validate checks the union's invariants.
func (o *Occurrences) Validate() error {
	if !o.Type.Valid() {
		return fmt.Errorf("unknown occurrences type: %q", o.Type)
	}
	if o.Type == OccurrencePattern {
		if o.Pattern == nil {
			return fmt.Errorf("pattern occurrences require a recurrence rule")
		}
		if len(o.Dates) > 0 {
			return fmt.Errorf("pattern occurrences must not carry a dates list")
		}
	}
	if o.Type == OccurrenceUnknown && o.FirstSeenAt == nil {
		return fmt.Errorf("unknown occurrences require first_seen_at")
	}
	seen := make(map[string]bool, len(o.Dates))
	for _, d := range o.Dates {
		key := d.Date + "|" + d.Time
		if seen[key] {
			return fmt.Errorf("duplicate occurrence entry %s %s", d.Date, d.Time)
		}
		seen[key] = true
	}
	return nil
}
