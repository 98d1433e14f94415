package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOccurrencesJSONRoundTrip(t *testing.T) {
	firstSeen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		occ  Occurrences
	}{
		{
			name: "explicit with dates",
			occ: Occurrences{
				Type: OccurrenceExplicit,
				Dates: []OccurrenceEntry{
					{Date: "2026-03-14", Time: "20:00", ExternalID: "tix_a"},
					{Date: "2026-03-15", Time: "20:00"},
				},
			},
		},
		{
			name: "pattern without dates",
			occ: Occurrences{
				Type:    OccurrencePattern,
				Pattern: &RecurrencePattern{Frequency: "weekly", Weekday: "tuesday", Time: "19:30"},
			},
		},
		{
			name: "exhibition run",
			occ: Occurrences{
				Type:  OccurrenceExhibition,
				Dates: []OccurrenceEntry{{Date: "2026-04-01"}, {Date: "2026-04-02"}},
			},
		},
		{
			name: "unknown with audit payload",
			occ: Occurrences{
				Type:               OccurrenceUnknown,
				FirstSeenAt:        &firstSeen,
				OriginalDateString: "irgendwann im Frühjahr",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.occ)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			var restored Occurrences
			if err := json.Unmarshal(data, &restored); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}

			if restored.Type != tt.occ.Type {
				t.Errorf("type = %q, want %q", restored.Type, tt.occ.Type)
			}
			if len(restored.Dates) != len(tt.occ.Dates) {
				t.Errorf("dates len = %d, want %d", len(restored.Dates), len(tt.occ.Dates))
			}
			if (restored.Pattern == nil) != (tt.occ.Pattern == nil) {
				t.Errorf("pattern presence mismatch")
			}
			if restored.OriginalDateString != tt.occ.OriginalDateString {
				t.Errorf("original date string = %q, want %q", restored.OriginalDateString, tt.occ.OriginalDateString)
			}
			if tt.occ.FirstSeenAt != nil {
				if restored.FirstSeenAt == nil || !restored.FirstSeenAt.Equal(*tt.occ.FirstSeenAt) {
					t.Errorf("first_seen_at not preserved")
				}
			}
		})
	}
}

func TestOccurrencesMarshalDropsForeignPayload(t *testing.T) {
	// A pattern union carrying a stray dates list must not serialize it.
	occ := Occurrences{
		Type:    OccurrencePattern,
		Pattern: &RecurrencePattern{Frequency: "weekly", Weekday: "friday"},
		Dates:   []OccurrenceEntry{{Date: "2026-01-01"}},
	}

	data, err := json.Marshal(occ)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored Occurrences
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(restored.Dates) != 0 {
		t.Errorf("pattern union serialized a dates list: %v", restored.Dates)
	}
}

func TestOccurrencesUnmarshalRejectsUnknownType(t *testing.T) {
	var occ Occurrences
	err := json.Unmarshal([]byte(`{"type":"festival"}`), &occ)
	if err == nil {
		t.Fatal("expected error for unknown occurrence type")
	}
}

func TestOccurrencesAddDate(t *testing.T) {
	occ := Occurrences{Type: OccurrenceExplicit}

	if !occ.AddDate(OccurrenceEntry{Date: "2026-03-14", Time: "20:00"}) {
		t.Error("first add should succeed")
	}
	if occ.AddDate(OccurrenceEntry{Date: "2026-03-14", Time: "20:00", Label: "Late show"}) {
		t.Error("same date+time must deduplicate regardless of other fields")
	}
	if !occ.AddDate(OccurrenceEntry{Date: "2026-03-14", Time: "22:30"}) {
		t.Error("same date, different time is a distinct occurrence")
	}
	if len(occ.Dates) != 2 {
		t.Errorf("dates len = %d, want 2", len(occ.Dates))
	}

	pattern := Occurrences{Type: OccurrencePattern, Pattern: &RecurrencePattern{Frequency: "weekly"}}
	if pattern.AddDate(OccurrenceEntry{Date: "2026-03-14"}) {
		t.Error("pattern union must never accept dates")
	}
	if len(pattern.Dates) != 0 {
		t.Errorf("pattern union grew a dates list")
	}
}

func TestOccurrencesValidate(t *testing.T) {
	firstSeen := time.Now()

	tests := []struct {
		name    string
		occ     Occurrences
		wantErr bool
	}{
		{
			name: "valid explicit",
			occ:  Occurrences{Type: OccurrenceExplicit, Dates: []OccurrenceEntry{{Date: "2026-03-14"}}},
		},
		{
			name:    "pattern without rule",
			occ:     Occurrences{Type: OccurrencePattern},
			wantErr: true,
		},
		{
			name: "pattern with dates",
			occ: Occurrences{
				Type:    OccurrencePattern,
				Pattern: &RecurrencePattern{Frequency: "weekly"},
				Dates:   []OccurrenceEntry{{Date: "2026-03-14"}},
			},
			wantErr: true,
		},
		{
			name:    "unknown without first seen",
			occ:     Occurrences{Type: OccurrenceUnknown},
			wantErr: true,
		},
		{
			name: "unknown with first seen",
			occ:  Occurrences{Type: OccurrenceUnknown, FirstSeenAt: &firstSeen},
		},
		{
			name: "duplicate entries",
			occ: Occurrences{
				Type:  OccurrenceMovie,
				Dates: []OccurrenceEntry{{Date: "2026-03-14", Time: "20:00"}, {Date: "2026-03-14", Time: "20:00"}},
			},
			wantErr: true,
		},
		{
			name:    "invalid type",
			occ:     Occurrences{Type: "festival"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.occ.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCandidateValidate(t *testing.T) {
	starts := time.Now()

	valid := CandidateEvent{
		SourceID:  "src",
		Title:     "Jazz Evening",
		VenueHint: VenueHint{Name: "Blue Note"},
		StartsAt:  &starts,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid candidate rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*CandidateEvent)
	}{
		{"missing source", func(c *CandidateEvent) { c.SourceID = "" }},
		{"missing title", func(c *CandidateEvent) { c.Title = "" }},
		{"missing venue", func(c *CandidateEvent) { c.VenueHint.Name = "" }},
		{"no date signal", func(c *CandidateEvent) {
			c.StartsAt = nil
			c.RawDateString = ""
			c.RecurrencePattern = nil
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := valid
			tt.mutate(&candidate)
			if err := candidate.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
