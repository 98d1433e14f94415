package catalog

import (
	"testing"
	"time"

	"github.com/gigboard/gigboard/internal/models"
)

func TestDeriveExternalID(t *testing.T) {
	starts := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	venueOnly := models.Source{ID: "quiznet", Slug: "quiznet", IdentityFamily: models.IdentityVenueOnly}
	dateEmbedded := models.Source{ID: "cineplex", Slug: "cineplex", IdentityFamily: models.IdentityDateEmbedded}

	tests := []struct {
		name      string
		source    models.Source
		candidate models.CandidateEvent
		expected  string
	}{
		{
			name:   "venue only ignores the date",
			source: venueOnly,
			candidate: models.CandidateEvent{
				Title:     "Weekly Trivia",
				VenueHint: models.VenueHint{Name: "The Blue Note"},
				StartsAt:  &starts,
			},
			expected: "quiznet_the-blue-note",
		},
		{
			name:   "venue only stable across weeks",
			source: venueOnly,
			candidate: models.CandidateEvent{
				Title:         "Weekly Trivia",
				VenueHint:     models.VenueHint{Name: "The Blue Note"},
				RawDateString: "every tuesday",
			},
			expected: "quiznet_the-blue-note",
		},
		{
			name:   "date embedded includes parsed date",
			source: dateEmbedded,
			candidate: models.CandidateEvent{
				Title:     "Midnight Screening",
				VenueHint: models.VenueHint{Name: "Kino Babylon"},
				StartsAt:  &starts,
			},
			expected: "cineplex_kino-babylon_2026-03-14",
		},
		{
			name:   "date embedded falls back to raw string slug",
			source: dateEmbedded,
			candidate: models.CandidateEvent{
				Title:         "Midnight Screening",
				VenueHint:     models.VenueHint{Name: "Kino Babylon"},
				RawDateString: "Ab 15. März",
			},
			expected: "cineplex_kino-babylon_ab-15-marz",
		},
		{
			name:   "explicit hint wins",
			source: dateEmbedded,
			candidate: models.CandidateEvent{
				ExternalIDHint: "evt-9912",
				Title:          "Midnight Screening",
				VenueHint:      models.VenueHint{Name: "Kino Babylon"},
				StartsAt:       &starts,
			},
			expected: "cineplex_evt-9912",
		},
		{
			name:   "diacritics folded in venue slug",
			source: venueOnly,
			candidate: models.CandidateEvent{
				Title:     "Salsa Night",
				VenueHint: models.VenueHint{Name: "Café Olé"},
			},
			expected: "quiznet_cafe-ole",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveExternalID(tt.source, &tt.candidate)
			if got != tt.expected {
				t.Errorf("DeriveExternalID() = %q, want %q", got, tt.expected)
			}
		})
	}
}
