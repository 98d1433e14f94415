package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/gigboard/gigboard/internal/models"
)

type engineFixture struct {
	venues  *MemoryVenueRepository
	events  *MemoryEventRepository
	links   *MemorySourceLinkRepository
	sources *MemorySourceRepository
	engine  *Engine

	freshness    *FreshnessPredictor
	consolidator *EventConsolidator
}

func newEngineFixture(t *testing.T, now time.Time) *engineFixture {
	t.Helper()

	venues := NewMemoryVenueRepository()
	performers := NewMemoryPerformerRepository()
	events := NewMemoryEventRepository()
	links := NewMemorySourceLinkRepository()
	sources := NewMemorySourceRepository()
	logger := testLogger()

	venueDedup := NewVenueDeduplicator(venues, nil, 0, logger)
	performerDedup := NewPerformerDeduplicator(performers)
	freshness := NewFreshnessPredictor(links, events, venues, 0, 0, 0, logger)
	consolidator := NewEventConsolidator(events, links, 0, logger)

	clock := func() time.Time { return now }
	freshness.SetClock(clock)
	consolidator.SetClock(clock)
	events.SetClock(clock)

	return &engineFixture{
		venues:       venues,
		events:       events,
		links:        links,
		sources:      sources,
		engine:       NewEngine(sources, venueDedup, performerDedup, freshness, consolidator, logger),
		freshness:    freshness,
		consolidator: consolidator,
	}
}

func (f *engineFixture) setClock(now time.Time) {
	clock := func() time.Time { return now }
	f.freshness.SetClock(clock)
	f.consolidator.SetClock(clock)
	f.events.SetClock(clock)
}

func TestEngineRecurringTriviaLifecycle(t *testing.T) {
	week1 := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, week1)
	ctx := context.Background()

	f.sources.Put(models.Source{
		ID: "quiznet", Slug: "quiznet", Name: "QuizNet",
		AggregateOnIndex: true, IdentityFamily: models.IdentityVenueOnly, Enabled: true,
	})
	f.sources.Put(models.Source{
		ID: "cityguide", Slug: "cityguide", Name: "City Guide",
		AggregateOnIndex: true, IdentityFamily: models.IdentityVenueOnly, Enabled: true,
	})

	candidate := func() *models.CandidateEvent {
		return &models.CandidateEvent{
			SourceID:          "quiznet",
			Title:             "Weekly Trivia",
			RecurrencePattern: &models.RecurrencePattern{Frequency: "weekly", Weekday: "tuesday", Time: "19:30"},
			VenueHint:         models.VenueHint{Name: "The Blue Note", City: "Berlin"},
		}
	}

	// Week 1: first sight creates venue, event and join row.
	res, err := f.engine.Process(ctx, candidate())
	if err != nil {
		t.Fatalf("week 1: %v", err)
	}
	if res.Result != models.OutcomeCreated {
		t.Fatalf("week 1 result = %q, want created", res.Result)
	}
	if res.ExternalID != "quiznet_the-blue-note" {
		t.Errorf("external id = %q", res.ExternalID)
	}
	eventID := res.EventID

	// Next day: the identical listing is skipped by the direct layer.
	f.setClock(week1.Add(24 * time.Hour))
	res, err = f.engine.Process(ctx, candidate())
	if err != nil {
		t.Fatalf("re-scrape: %v", err)
	}
	if res.Result != models.OutcomeSkipped {
		t.Fatalf("re-scrape result = %q, want skipped", res.Result)
	}

	// A second source lists the same trivia night: no join row for it, but
	// the predicted layer recognizes the recently touched similar event.
	other := &models.CandidateEvent{
		SourceID:      "cityguide",
		Title:         "Weekly Trivia Night",
		RawDateString: "tuesdays at 7:30pm",
		VenueHint:     models.VenueHint{Name: "The Blue Note", City: "Berlin"},
	}
	res, err = f.engine.Process(ctx, other)
	if err != nil {
		t.Fatalf("second source: %v", err)
	}
	if res.Result != models.OutcomeSkipped {
		t.Fatalf("second source result = %q, want predicted skip", res.Result)
	}

	// Ten days later the window has lapsed; the listing consolidates instead
	// of duplicating.
	f.setClock(week1.Add(10 * 24 * time.Hour))
	res, err = f.engine.Process(ctx, candidate())
	if err != nil {
		t.Fatalf("after window: %v", err)
	}
	if res.Result != models.OutcomeConsolidated {
		t.Fatalf("after window result = %q, want consolidated", res.Result)
	}
	if res.EventID != eventID {
		t.Error("re-processing must consolidate into the original event")
	}
	if f.events.Size() != 1 {
		t.Errorf("events = %d, want 1", f.events.Size())
	}
	if f.venues.Size() != 1 {
		t.Errorf("venues = %d, want 1", f.venues.Size())
	}
}

func TestEngineInvalidCandidateFails(t *testing.T) {
	f := newEngineFixture(t, time.Now())

	res, err := f.engine.Process(context.Background(), &models.CandidateEvent{SourceID: "quiznet"})
	if err == nil {
		t.Fatal("expected error for invalid candidate")
	}
	if res.Result != models.OutcomeFailed {
		t.Errorf("result = %q, want failed", res.Result)
	}
}

func TestEngineUnknownSourceFails(t *testing.T) {
	f := newEngineFixture(t, time.Now())
	starts := time.Now()

	res, err := f.engine.Process(context.Background(), &models.CandidateEvent{
		SourceID:  "nope",
		Title:     "Jazz Evening",
		StartsAt:  &starts,
		VenueHint: models.VenueHint{Name: "The Blue Note"},
	})
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
	if res.Result != models.OutcomeFailed {
		t.Errorf("result = %q, want failed", res.Result)
	}
}

func TestEngineResolvesPerformers(t *testing.T) {
	now := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	f := newEngineFixture(t, now)
	ctx := context.Background()

	f.sources.Put(models.Source{
		ID: "gigs", Slug: "gigs", AggregateOnIndex: true,
		IdentityFamily: models.IdentityDateEmbedded, Enabled: true,
	})

	starts := now.AddDate(0, 0, 3)
	res, err := f.engine.Process(ctx, &models.CandidateEvent{
		SourceID:       "gigs",
		Title:          "Señor Coconut Live",
		StartsAt:       &starts,
		PerformerHints: []string{"Señor Coconut", "senor coconut", "Opening Act"},
		VenueHint:      models.VenueHint{Name: "Große Freiheit 36", City: "Hamburg"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	event, _ := f.events.GetByID(ctx, res.EventID)
	// The two renderings of the headliner normalize identically.
	if len(event.PerformerIDs) != 2 {
		t.Errorf("performer ids = %d, want 2", len(event.PerformerIDs))
	}
}
