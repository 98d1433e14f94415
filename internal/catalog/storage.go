// Package catalog implements the consolidation engine: venue and performer
// deduplication, external identity derivation, freshness prediction and
// event consolidation against the canonical store.
package catalog

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/gigboard/gigboard/internal/models"
)

// ErrDuplicate is returned by Insert methods when a uniqueness constraint
// fired. Callers treat it as "someone else won the race" and re-query
// instead of failing.
var ErrDuplicate = errors.New("duplicate row")

// VenueRepository stores canonical venues.
type VenueRepository interface {
	// GetByID retrieves a venue by its ID, nil when absent.
	GetByID(ctx context.Context, id string) (*models.Venue, error)

	// FindNearby returns the venue matching the normalized name within
	// radiusMeters of the given point, scoped to the same city when city is
	// non-empty. Nil when no such venue exists.
	FindNearby(ctx context.Context, normalizedName, city string, lat, lon, radiusMeters float64) (*models.Venue, error)

	// FindByNormalizedName returns the venue with the given normalized name
	// in the city scope, ignoring coordinates. Nil when absent.
	FindByNormalizedName(ctx context.Context, normalizedName, city string) (*models.Venue, error)

	// Insert stores a new venue. Returns ErrDuplicate when the
	// (normalized_name, city) uniqueness constraint fires.
	Insert(ctx context.Context, venue models.Venue) error
}

// PerformerRepository stores canonical performers.
type PerformerRepository interface {
	GetByNormalizedName(ctx context.Context, normalizedName string) (*models.Performer, error)

	// Insert stores a new performer. Returns ErrDuplicate on a
	// normalized-name uniqueness conflict.
	Insert(ctx context.Context, performer models.Performer) error
}

// EventRepository stores canonical events.
type EventRepository interface {
	GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error)

	// ListByVenue returns all non-archived canonical events at a venue, the
	// scope within which fuzzy title matching operates.
	ListByVenue(ctx context.Context, venueID string) ([]models.CanonicalEvent, error)

	// ListByVenueUpdatedSince returns venue events whose updated_at is at or
	// after the given instant. Used by the freshness predictor's third layer.
	ListByVenueUpdatedSince(ctx context.Context, venueID string, since time.Time) ([]models.CanonicalEvent, error)

	Create(ctx context.Context, event models.CanonicalEvent) error

	// AppendOccurrence adds one occurrence entry to the event's dates list
	// under a row-level lock, deduplicated by (date, time). It always
	// refreshes updated_at, even when the entry was already present or the
	// occurrence variant carries no dates list. Returns whether the entry
	// was actually appended.
	AppendOccurrence(ctx context.Context, eventID string, entry models.OccurrenceEntry) (bool, error)

	UpdateStatus(ctx context.Context, eventID string, status models.EventStatus) error
}

// SourceLinkRepository stores the join rows from upstream listings to
// canonical events.
type SourceLinkRepository interface {
	// Get retrieves the link for (sourceID, externalID), nil when absent.
	Get(ctx context.Context, sourceID, externalID string) (*models.SourceLink, error)

	// Upsert inserts the link or, when (source_id, external_id) already
	// exists, repoints it and refreshes metadata and last_seen_at.
	Upsert(ctx context.Context, link models.SourceLink) error
}

// SourceRepository reads immutable source configuration.
type SourceRepository interface {
	GetByID(ctx context.Context, id string) (*models.Source, error)
	ListEnabled(ctx context.Context) ([]models.Source, error)
}

// RunRepository appends pipeline execution history for the telemetry layer.
type RunRepository interface {
	CreateRun(ctx context.Context, run models.Run) error
	FinishRun(ctx context.Context, run models.Run) error
	RecordOutcome(ctx context.Context, outcome models.CandidateOutcome) error
}

// HaversineMeters returns the great-circle distance between two coordinate
// pairs. Shared by the memory repository and tests so they agree with the
// SQL expression in the Postgres implementation.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0

	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(a))
}

// MemoryVenueRepository implements VenueRepository in memory for tests and
// development.
type MemoryVenueRepository struct {
	mu     sync.RWMutex
	venues map[string]models.Venue
}

func NewMemoryVenueRepository() *MemoryVenueRepository {
	return &MemoryVenueRepository{venues: make(map[string]models.Venue)}
}

func (r *MemoryVenueRepository) GetByID(ctx context.Context, id string) (*models.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.venues[id]; ok {
		return &v, nil
	}
	return nil, nil
}

func (r *MemoryVenueRepository) FindNearby(ctx context.Context, normalizedName, city string, lat, lon, radiusMeters float64) (*models.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.venues {
		if v.NormalizedName != normalizedName {
			continue
		}
		if city != "" && v.City != "" && v.City != city {
			continue
		}
		if v.IsPlaceholder() || HaversineMeters(v.Latitude, v.Longitude, lat, lon) <= radiusMeters {
			venue := v
			return &venue, nil
		}
	}
	return nil, nil
}

func (r *MemoryVenueRepository) FindByNormalizedName(ctx context.Context, normalizedName, city string) (*models.Venue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.venues {
		if v.NormalizedName != normalizedName {
			continue
		}
		if city != "" && v.City != "" && v.City != city {
			continue
		}
		venue := v
		return &venue, nil
	}
	return nil, nil
}

func (r *MemoryVenueRepository) Insert(ctx context.Context, venue models.Venue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.venues {
		if v.NormalizedName == venue.NormalizedName && v.City == venue.City {
			return ErrDuplicate
		}
	}
	r.venues[venue.ID] = venue
	return nil
}

// Size returns the number of stored venues.
func (r *MemoryVenueRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.venues)
}

// MemoryPerformerRepository implements PerformerRepository in memory.
type MemoryPerformerRepository struct {
	mu         sync.RWMutex
	performers map[string]models.Performer // keyed by normalized name
}

func NewMemoryPerformerRepository() *MemoryPerformerRepository {
	return &MemoryPerformerRepository{performers: make(map[string]models.Performer)}
}

func (r *MemoryPerformerRepository) GetByNormalizedName(ctx context.Context, normalizedName string) (*models.Performer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.performers[normalizedName]; ok {
		return &p, nil
	}
	return nil, nil
}

func (r *MemoryPerformerRepository) Insert(ctx context.Context, performer models.Performer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.performers[performer.NormalizedName]; ok {
		return ErrDuplicate
	}
	r.performers[performer.NormalizedName] = performer
	return nil
}

func (r *MemoryPerformerRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.performers)
}

// MemoryEventRepository implements EventRepository in memory.
type MemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]models.CanonicalEvent
	now    func() time.Time
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		events: make(map[string]models.CanonicalEvent),
		now:    time.Now,
	}
}

// SetClock overrides the repository clock; tests use it to control
// updated_at stamps.
func (r *MemoryEventRepository) SetClock(now func() time.Time) {
	r.now = now
}

func (r *MemoryEventRepository) GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.events[id]; ok {
		return &e, nil
	}
	return nil, nil
}

func (r *MemoryEventRepository) ListByVenue(ctx context.Context, venueID string) ([]models.CanonicalEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.CanonicalEvent
	for _, e := range r.events {
		if e.VenueID == venueID && e.Status != models.EventStatusArchived {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryEventRepository) ListByVenueUpdatedSince(ctx context.Context, venueID string, since time.Time) ([]models.CanonicalEvent, error) {
	all, err := r.ListByVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	var result []models.CanonicalEvent
	for _, e := range all {
		if !e.UpdatedAt.Before(since) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (r *MemoryEventRepository) Create(ctx context.Context, event models.CanonicalEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.ID] = event
	return nil
}

func (r *MemoryEventRepository) AppendOccurrence(ctx context.Context, eventID string, entry models.OccurrenceEntry) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return false, nil
	}
	added := event.Occurrences.AddDate(entry)
	event.UpdatedAt = r.now()
	r.events[eventID] = event
	return added, nil
}

func (r *MemoryEventRepository) UpdateStatus(ctx context.Context, eventID string, status models.EventStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event, ok := r.events[eventID]
	if !ok {
		return nil
	}
	event.Status = status
	event.UpdatedAt = r.now()
	r.events[eventID] = event
	return nil
}

func (r *MemoryEventRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}

// MemorySourceLinkRepository implements SourceLinkRepository in memory.
type MemorySourceLinkRepository struct {
	mu    sync.RWMutex
	links map[string]models.SourceLink // keyed by sourceID + "\x00" + externalID
}

func NewMemorySourceLinkRepository() *MemorySourceLinkRepository {
	return &MemorySourceLinkRepository{links: make(map[string]models.SourceLink)}
}

func linkKey(sourceID, externalID string) string {
	return sourceID + "\x00" + externalID
}

func (r *MemorySourceLinkRepository) Get(ctx context.Context, sourceID, externalID string) (*models.SourceLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.links[linkKey(sourceID, externalID)]; ok {
		return &l, nil
	}
	return nil, nil
}

func (r *MemorySourceLinkRepository) Upsert(ctx context.Context, link models.SourceLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := linkKey(link.SourceID, link.ExternalID)
	if existing, ok := r.links[key]; ok {
		existing.EventID = link.EventID
		existing.Metadata = link.Metadata
		existing.LastSeenAt = link.LastSeenAt
		r.links[key] = existing
		return nil
	}
	r.links[key] = link
	return nil
}

func (r *MemorySourceLinkRepository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.links)
}

// MemorySourceRepository implements SourceRepository in memory.
type MemorySourceRepository struct {
	mu      sync.RWMutex
	sources map[string]models.Source
}

func NewMemorySourceRepository() *MemorySourceRepository {
	return &MemorySourceRepository{sources: make(map[string]models.Source)}
}

// Put stores source configuration (tests and dev seeding).
func (r *MemorySourceRepository) Put(source models.Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.ID] = source
}

func (r *MemorySourceRepository) GetByID(ctx context.Context, id string) (*models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sources[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *MemorySourceRepository) ListEnabled(ctx context.Context) ([]models.Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []models.Source
	for _, s := range r.sources {
		if s.Enabled {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return result, nil
}

// MemoryRunRepository implements RunRepository in memory.
type MemoryRunRepository struct {
	mu       sync.RWMutex
	runs     map[string]models.Run
	outcomes []models.CandidateOutcome
}

func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]models.Run)}
}

func (r *MemoryRunRepository) CreateRun(ctx context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *MemoryRunRepository) FinishRun(ctx context.Context, run models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run
	return nil
}

func (r *MemoryRunRepository) RecordOutcome(ctx context.Context, outcome models.CandidateOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

// Outcomes returns a copy of all recorded outcomes.
func (r *MemoryRunRepository) Outcomes() []models.CandidateOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.CandidateOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}
