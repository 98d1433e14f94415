package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gigboard/gigboard/internal/match"
	"github.com/gigboard/gigboard/internal/models"
)

// DefaultVenueRadiusMeters is the spatial dedup radius: two venues closer
// than this with matching normalized names are the same venue.
const DefaultVenueRadiusMeters = 50.0

// CityGeocoder resolves a city name to its approximate center coordinates.
// Implementations may consult a remote service; failures are reported via
// ok=false and never block venue creation.
type CityGeocoder interface {
	CityCenter(ctx context.Context, city, country string) (lat, lon float64, ok bool)
}

// VenueDeduplicator resolves a venue hint to an existing canonical venue or
// creates one. Every canonical event must end up with some venue, so the
// coordinate degradation chain runs provided coordinates -> inferred city
// center -> marked placeholder.
type VenueDeduplicator struct {
	venues       VenueRepository
	geocoder     CityGeocoder
	radiusMeters float64
	logger       *slog.Logger
	now          func() time.Time
}

// NewVenueDeduplicator creates a deduplicator. geocoder may be nil, in which
// case the degradation chain skips straight to the placeholder.
func NewVenueDeduplicator(venues VenueRepository, geocoder CityGeocoder, radiusMeters float64, logger *slog.Logger) *VenueDeduplicator {
	if radiusMeters <= 0 {
		radiusMeters = DefaultVenueRadiusMeters
	}
	return &VenueDeduplicator{
		venues:       venues,
		geocoder:     geocoder,
		radiusMeters: radiusMeters,
		logger:       logger,
		now:          time.Now,
	}
}

// Resolve returns the canonical venue for the hint, creating one when no
// match exists. Creation uses insert-or-retrieve: a uniqueness conflict
// means a concurrent candidate won the race, so the winner's row is
// re-queried and returned.
func (d *VenueDeduplicator) Resolve(ctx context.Context, hint models.VenueHint) (*models.Venue, error) {
	if hint.Name == "" {
		return nil, fmt.Errorf("venue hint has no name")
	}
	normalized := match.NormalizeName(hint.Name)

	existing, err := d.lookup(ctx, normalized, hint)
	if err != nil {
		return nil, fmt.Errorf("venue lookup: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	venue := d.build(ctx, normalized, hint)
	if err := d.venues.Insert(ctx, venue); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// Concurrent insert for the same new venue; take the winner.
			winner, lookupErr := d.lookup(ctx, normalized, hint)
			if lookupErr != nil {
				return nil, fmt.Errorf("venue re-query after conflict: %w", lookupErr)
			}
			if winner == nil {
				// Uniqueness is scoped to (name, city), wider than the
				// spatial radius: a same-name venue elsewhere in the city
				// holds the row. Adopt it rather than failing the candidate.
				winner, lookupErr = d.venues.FindByNormalizedName(ctx, normalized, hint.City)
				if lookupErr != nil {
					return nil, fmt.Errorf("venue re-query after conflict: %w", lookupErr)
				}
				if winner != nil {
					d.logger.Warn("same-name venue beyond radius, adopting existing row",
						"normalized_name", normalized,
						"city", hint.City,
						"venue_id", winner.ID,
					)
				}
			}
			if winner != nil {
				return winner, nil
			}
			return nil, fmt.Errorf("venue conflict but no row found for %q", normalized)
		}
		return nil, fmt.Errorf("venue insert: %w", err)
	}

	d.logger.Info("venue created",
		"venue_id", venue.ID,
		"normalized_name", venue.NormalizedName,
		"geocode_source", venue.Metadata.GeocodeSource,
	)
	return &venue, nil
}

func (d *VenueDeduplicator) lookup(ctx context.Context, normalized string, hint models.VenueHint) (*models.Venue, error) {
	if hint.HasCoordinates() {
		return d.venues.FindNearby(ctx, normalized, hint.City, *hint.Latitude, *hint.Longitude, d.radiusMeters)
	}
	return d.venues.FindByNormalizedName(ctx, normalized, hint.City)
}

func (d *VenueDeduplicator) build(ctx context.Context, normalized string, hint models.VenueHint) models.Venue {
	now := d.now()
	venue := models.Venue{
		ID:             uuid.NewString(),
		Name:           hint.Name,
		NormalizedName: normalized,
		Address:        hint.Address,
		City:           hint.City,
		Country:        hint.Country,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	switch {
	case hint.HasCoordinates():
		venue.Latitude = *hint.Latitude
		venue.Longitude = *hint.Longitude
		venue.Metadata.GeocodeSource = "provided"

	case d.geocoder != nil && hint.City != "":
		if lat, lon, ok := d.geocoder.CityCenter(ctx, hint.City, hint.Country); ok {
			venue.Latitude = lat
			venue.Longitude = lon
			venue.Metadata.GeocodeSource = "city_center"
			break
		}
		d.logger.Warn("city-center geocode failed, creating placeholder venue",
			"name", hint.Name, "city", hint.City)
		fallthrough

	default:
		venue.Metadata.Placeholder = true
		venue.Metadata.GeocodeSource = "none"
	}

	return venue
}
