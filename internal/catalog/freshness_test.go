package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/gigboard/gigboard/internal/models"
)

func TestFreshnessDirectHit(t *testing.T) {
	links := NewMemorySourceLinkRepository()
	events := NewMemoryEventRepository()
	venues := NewMemoryVenueRepository()
	predictor := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, 0, 0, testLogger())

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	predictor.SetClock(func() time.Time { return now })

	candidate := &models.CandidateEvent{
		SourceID:      "quiznet",
		Title:         "Weekly Trivia",
		VenueHint:     models.VenueHint{Name: "The Blue Note"},
		RawDateString: "every tuesday",
	}

	links.Upsert(context.Background(), models.SourceLink{
		ID: "l1", SourceID: "quiznet", ExternalID: "quiznet_the-blue-note",
		EventID: "e1", LastSeenAt: now.Add(-1 * time.Hour),
	})

	fresh, err := predictor.Check(context.Background(), candidate, "quiznet_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !fresh.Represented || fresh.Layer != FreshnessDirect {
		t.Errorf("got %+v, want direct hit", fresh)
	}
}

func TestFreshnessDirectMissOutsideWindow(t *testing.T) {
	links := NewMemorySourceLinkRepository()
	events := NewMemoryEventRepository()
	venues := NewMemoryVenueRepository()
	predictor := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, 0, 0, testLogger())

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	predictor.SetClock(func() time.Time { return now })

	candidate := &models.CandidateEvent{
		SourceID:      "quiznet",
		Title:         "Weekly Trivia",
		VenueHint:     models.VenueHint{Name: "The Blue Note"},
		RawDateString: "every tuesday",
	}

	// Link seen 200h ago, linked event also stale: both layers miss.
	events.Create(context.Background(), models.CanonicalEvent{
		ID: "e1", NormalizedTitle: "weekly trivia", VenueID: "v1",
		Status:    models.EventStatusActive,
		UpdatedAt: now.Add(-200 * time.Hour),
	})
	links.Upsert(context.Background(), models.SourceLink{
		ID: "l1", SourceID: "quiznet", ExternalID: "quiznet_the-blue-note",
		EventID: "e1", LastSeenAt: now.Add(-200 * time.Hour),
	})

	fresh, err := predictor.Check(context.Background(), candidate, "quiznet_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if fresh.Represented {
		t.Errorf("stale link and event must not be represented: %+v", fresh)
	}
}

func TestFreshnessIndirectHit(t *testing.T) {
	links := NewMemorySourceLinkRepository()
	events := NewMemoryEventRepository()
	venues := NewMemoryVenueRepository()
	predictor := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, 0, 0, testLogger())

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	predictor.SetClock(func() time.Time { return now })

	candidate := &models.CandidateEvent{
		SourceID:      "quiznet",
		Title:         "Weekly Trivia",
		VenueHint:     models.VenueHint{Name: "The Blue Note"},
		RawDateString: "every tuesday",
	}

	// Link stale, but another source consolidated an occurrence into the
	// linked event yesterday.
	events.Create(context.Background(), models.CanonicalEvent{
		ID: "e1", NormalizedTitle: "weekly trivia", VenueID: "v1",
		Status:    models.EventStatusActive,
		UpdatedAt: now.Add(-24 * time.Hour),
	})
	links.Upsert(context.Background(), models.SourceLink{
		ID: "l1", SourceID: "quiznet", ExternalID: "quiznet_the-blue-note",
		EventID: "e1", LastSeenAt: now.Add(-200 * time.Hour),
	})

	fresh, err := predictor.Check(context.Background(), candidate, "quiznet_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !fresh.Represented || fresh.Layer != FreshnessIndirect {
		t.Errorf("got %+v, want indirect hit", fresh)
	}
}

func TestFreshnessPredictedHit(t *testing.T) {
	links := NewMemorySourceLinkRepository()
	events := NewMemoryEventRepository()
	venues := NewMemoryVenueRepository()
	predictor := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, DefaultSimilarityThreshold, 0, testLogger())

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	predictor.SetClock(func() time.Time { return now })

	// No join row for this candidate, but the venue exists and hosts a
	// recently updated event with a near-identical title.
	venues.Insert(context.Background(), models.Venue{
		ID: "v1", Name: "The Blue Note", NormalizedName: "the blue note", City: "Berlin",
	})
	events.Create(context.Background(), models.CanonicalEvent{
		ID: "e1", NormalizedTitle: "weekly trivia", VenueID: "v1",
		Status:    models.EventStatusActive,
		UpdatedAt: now.Add(-2 * time.Hour),
	})

	candidate := &models.CandidateEvent{
		SourceID:      "otherlistings",
		Title:         "Weekly Trivia Night",
		VenueHint:     models.VenueHint{Name: "The Blue Note", City: "Berlin"},
		RawDateString: "tuesdays",
	}

	fresh, err := predictor.Check(context.Background(), candidate, "otherlistings_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !fresh.Represented || fresh.Layer != FreshnessPredicted {
		t.Errorf("got %+v, want predicted hit", fresh)
	}
}

func TestFreshnessPredictedMissOnDissimilarTitle(t *testing.T) {
	links := NewMemorySourceLinkRepository()
	events := NewMemoryEventRepository()
	venues := NewMemoryVenueRepository()
	predictor := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, DefaultSimilarityThreshold, 0, testLogger())

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	predictor.SetClock(func() time.Time { return now })

	venues.Insert(context.Background(), models.Venue{
		ID: "v1", Name: "The Blue Note", NormalizedName: "the blue note", City: "Berlin",
	})
	events.Create(context.Background(), models.CanonicalEvent{
		ID: "e1", NormalizedTitle: "jazz evening", VenueID: "v1",
		Status:    models.EventStatusActive,
		UpdatedAt: now.Add(-2 * time.Hour),
	})

	candidate := &models.CandidateEvent{
		SourceID:      "otherlistings",
		Title:         "Pub Quiz Championship",
		VenueHint:     models.VenueHint{Name: "The Blue Note", City: "Berlin"},
		RawDateString: "saturday",
	}

	fresh, err := predictor.Check(context.Background(), candidate, "otherlistings_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if fresh.Represented {
		t.Errorf("dissimilar title must not predict freshness: %+v", fresh)
	}
}

func TestFreshnessPredictedUsesConfiguredRadius(t *testing.T) {
	links := NewMemorySourceLinkRepository()
	events := NewMemoryEventRepository()
	venues := NewMemoryVenueRepository()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	venues.Insert(context.Background(), models.Venue{
		ID: "v1", Name: "The Blue Note", NormalizedName: "the blue note", City: "Berlin",
		Latitude: 52.5200, Longitude: 13.4050,
	})
	events.Create(context.Background(), models.CanonicalEvent{
		ID: "e1", NormalizedTitle: "weekly trivia", VenueID: "v1",
		Status:    models.EventStatusActive,
		UpdatedAt: now.Add(-2 * time.Hour),
	})

	// Coordinate hint ~100m from the stored venue.
	candidate := func() *models.CandidateEvent {
		return &models.CandidateEvent{
			SourceID:      "otherlistings",
			Title:         "Weekly Trivia",
			VenueHint:     models.VenueHint{Name: "The Blue Note", City: "Berlin", Latitude: ptr(52.5209), Longitude: ptr(13.4050)},
			RawDateString: "tuesdays",
		}
	}

	wide := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, 0, 200, testLogger())
	wide.SetClock(func() time.Time { return now })

	fresh, err := wide.Check(context.Background(), candidate(), "otherlistings_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !fresh.Represented || fresh.Layer != FreshnessPredicted {
		t.Errorf("got %+v, want predicted hit inside the configured radius", fresh)
	}

	narrow := NewFreshnessPredictor(links, events, venues, DefaultFreshnessWindow, 0, 0, testLogger())
	narrow.SetClock(func() time.Time { return now })

	fresh, err = narrow.Check(context.Background(), candidate(), "otherlistings_the-blue-note")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if fresh.Represented {
		t.Errorf("default radius must not reach a venue 100m away: %+v", fresh)
	}
}

func TestFreshnessUnknownVenueNeverRepresented(t *testing.T) {
	predictor := NewFreshnessPredictor(
		NewMemorySourceLinkRepository(),
		NewMemoryEventRepository(),
		NewMemoryVenueRepository(),
		0, 0, 0, testLogger(),
	)

	candidate := &models.CandidateEvent{
		SourceID:      "quiznet",
		Title:         "Weekly Trivia",
		VenueHint:     models.VenueHint{Name: "Brand New Venue"},
		RawDateString: "tuesdays",
	}

	fresh, err := predictor.Check(context.Background(), candidate, "quiznet_brand-new-venue")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if fresh.Represented {
		t.Error("a venue the catalog has never seen cannot host a represented event")
	}
}
