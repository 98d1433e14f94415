package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/gigboard/gigboard/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(f float64) *float64 { return &f }

type staticGeocoder struct {
	lat, lon float64
	ok       bool
}

func (g staticGeocoder) CityCenter(ctx context.Context, city, country string) (float64, float64, bool) {
	return g.lat, g.lon, g.ok
}

func TestVenueDedupSpatialMatch(t *testing.T) {
	repo := NewMemoryVenueRepository()
	dedup := NewVenueDeduplicator(repo, nil, DefaultVenueRadiusMeters, testLogger())
	ctx := context.Background()

	first, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "The Blue Note", City: "Berlin",
		Latitude: ptr(52.5200), Longitude: ptr(13.4050),
	})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// ~20m away, slightly different rendering of the same name.
	second, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "Blue Note GmbH", City: "Berlin",
		Latitude: ptr(52.52018), Longitude: ptr(13.4050),
	})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.ID == first.ID {
		t.Error("different normalized names must not merge")
	}

	// Same normalized name, ~20m away: same venue.
	third, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "The Blue Note", City: "Berlin",
		Latitude: ptr(52.52018), Longitude: ptr(13.4050),
	})
	if err != nil {
		t.Fatalf("third resolve: %v", err)
	}
	if third.ID != first.ID {
		t.Error("same name within radius must resolve to the existing venue")
	}

	// Same name but ~2km away: distinct venue in the same city would violate
	// the (name, city) uniqueness, so the lookup still has to miss and the
	// insert conflict resolves to the winner.
	fourth, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "The Blue Note", City: "Hamburg",
		Latitude: ptr(53.5511), Longitude: ptr(9.9937),
	})
	if err != nil {
		t.Fatalf("fourth resolve: %v", err)
	}
	if fourth.ID == first.ID {
		t.Error("same name in a different city must stay distinct")
	}
}

func TestVenueDedupSameNameSameCityBeyondRadius(t *testing.T) {
	// Two locations of a chain in the same city: the spatial lookup misses,
	// the (name, city) uniqueness fires on insert, and the conflict must
	// resolve to the existing row instead of hard-failing the candidate.
	repo := NewMemoryVenueRepository()
	dedup := NewVenueDeduplicator(repo, nil, DefaultVenueRadiusMeters, testLogger())
	ctx := context.Background()

	first, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "Starbucks", City: "Berlin",
		Latitude: ptr(52.5200), Longitude: ptr(13.4050),
	})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}

	// ~3km north of the first location.
	second, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "Starbucks", City: "Berlin",
		Latitude: ptr(52.5470), Longitude: ptr(13.4050),
	})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if second.ID != first.ID {
		t.Error("conflict on (name, city) must resolve to the existing venue")
	}
	if repo.Size() != 1 {
		t.Errorf("venues = %d, want 1", repo.Size())
	}
}

func TestVenueDedupDegradationChain(t *testing.T) {
	ctx := context.Background()

	t.Run("provided coordinates", func(t *testing.T) {
		repo := NewMemoryVenueRepository()
		dedup := NewVenueDeduplicator(repo, staticGeocoder{ok: true}, 0, testLogger())

		venue, err := dedup.Resolve(ctx, models.VenueHint{
			Name: "Kino Babylon", City: "Berlin",
			Latitude: ptr(52.5258), Longitude: ptr(13.4113),
		})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if venue.Metadata.GeocodeSource != "provided" {
			t.Errorf("geocode source = %q, want provided", venue.Metadata.GeocodeSource)
		}
		if venue.IsPlaceholder() {
			t.Error("venue with provided coordinates must not be a placeholder")
		}
	})

	t.Run("city center fallback", func(t *testing.T) {
		repo := NewMemoryVenueRepository()
		dedup := NewVenueDeduplicator(repo, staticGeocoder{lat: 52.52, lon: 13.405, ok: true}, 0, testLogger())

		venue, err := dedup.Resolve(ctx, models.VenueHint{Name: "Kino Babylon", City: "Berlin"})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if venue.Metadata.GeocodeSource != "city_center" {
			t.Errorf("geocode source = %q, want city_center", venue.Metadata.GeocodeSource)
		}
		if venue.Latitude != 52.52 || venue.Longitude != 13.405 {
			t.Errorf("coordinates = %v,%v, want city center", venue.Latitude, venue.Longitude)
		}
	})

	t.Run("placeholder when geocoder misses", func(t *testing.T) {
		repo := NewMemoryVenueRepository()
		dedup := NewVenueDeduplicator(repo, staticGeocoder{ok: false}, 0, testLogger())

		venue, err := dedup.Resolve(ctx, models.VenueHint{Name: "Kino Babylon", City: "Atlantis"})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !venue.IsPlaceholder() {
			t.Error("geocoder miss must produce a placeholder")
		}
		if venue.Metadata.GeocodeSource != "none" {
			t.Errorf("geocode source = %q, want none", venue.Metadata.GeocodeSource)
		}
	})

	t.Run("placeholder without geocoder or city", func(t *testing.T) {
		repo := NewMemoryVenueRepository()
		dedup := NewVenueDeduplicator(repo, nil, 0, testLogger())

		venue, err := dedup.Resolve(ctx, models.VenueHint{Name: "Somewhere"})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if !venue.IsPlaceholder() {
			t.Error("no location data must produce a placeholder")
		}
	})
}

func TestVenueDedupPlaceholderUpgradePath(t *testing.T) {
	// A placeholder created first, then a candidate with coordinates and the
	// same name: the lookup must hit the placeholder rather than trying to
	// insert a second row under the same (name, city).
	repo := NewMemoryVenueRepository()
	dedup := NewVenueDeduplicator(repo, nil, 0, testLogger())
	ctx := context.Background()

	placeholder, err := dedup.Resolve(ctx, models.VenueHint{Name: "Underground Club", City: "Berlin"})
	if err != nil {
		t.Fatalf("placeholder resolve: %v", err)
	}

	located, err := dedup.Resolve(ctx, models.VenueHint{
		Name: "Underground Club", City: "Berlin",
		Latitude: ptr(52.49), Longitude: ptr(13.42),
	})
	if err != nil {
		t.Fatalf("located resolve: %v", err)
	}
	if located.ID != placeholder.ID {
		t.Error("coordinates candidate must match the existing placeholder by name")
	}
}

func TestVenueDedupEmptyName(t *testing.T) {
	dedup := NewVenueDeduplicator(NewMemoryVenueRepository(), nil, 0, testLogger())
	if _, err := dedup.Resolve(context.Background(), models.VenueHint{}); err == nil {
		t.Error("expected error for empty venue hint")
	}
}
