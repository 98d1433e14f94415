package enrichment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type stubRemote struct {
	lat, lon float64
	err      error
	calls    int
}

func (s *stubRemote) Geocode(ctx context.Context, city, country string) (float64, float64, error) {
	s.calls++
	return s.lat, s.lon, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCityCenterGazetteerHit(t *testing.T) {
	g := NewCityCenterGeocoder(nil, discardLogger())

	lat, lon, ok := g.CityCenter(context.Background(), "Berlin", "DE")
	if !ok {
		t.Fatal("expected gazetteer hit for Berlin")
	}
	if lat != 52.5200 || lon != 13.4050 {
		t.Errorf("coords = %v,%v", lat, lon)
	}
}

func TestCityCenterFoldsDiacritics(t *testing.T) {
	g := NewCityCenterGeocoder(nil, discardLogger())

	lat, _, ok := g.CityCenter(context.Background(), "São Paulo", "BR")
	if !ok {
		t.Fatal("accented spelling must hit the slugged gazetteer row")
	}
	if lat != -23.5505 {
		t.Errorf("lat = %v", lat)
	}

	if _, _, ok := g.CityCenter(context.Background(), "sao paulo", "BR"); !ok {
		t.Error("ascii spelling must hit the same row")
	}
}

func TestCityCenterMissWithoutRemote(t *testing.T) {
	g := NewCityCenterGeocoder(nil, discardLogger())

	if _, _, ok := g.CityCenter(context.Background(), "Bielefeld", "DE"); ok {
		t.Error("unknown city without a remote must miss")
	}
	if _, _, ok := g.CityCenter(context.Background(), "", "DE"); ok {
		t.Error("empty city must miss")
	}
}

func TestCityCenterRemoteFallbackAndCache(t *testing.T) {
	remote := &stubRemote{lat: 52.0302, lon: 8.5325}
	g := NewCityCenterGeocoder(remote, discardLogger())

	lat, lon, ok := g.CityCenter(context.Background(), "Bielefeld", "DE")
	if !ok || lat != 52.0302 || lon != 8.5325 {
		t.Fatalf("remote fallback = %v,%v,%v", lat, lon, ok)
	}

	// Second lookup is served from the cache.
	if _, _, ok := g.CityCenter(context.Background(), "Bielefeld", "DE"); !ok {
		t.Fatal("cached lookup must hit")
	}
	if remote.calls != 1 {
		t.Errorf("remote calls = %d, want 1", remote.calls)
	}
}

func TestCityCenterRemoteErrorIsMiss(t *testing.T) {
	remote := &stubRemote{err: errors.New("timeout")}
	g := NewCityCenterGeocoder(remote, discardLogger())

	if _, _, ok := g.CityCenter(context.Background(), "Bielefeld", "DE"); ok {
		t.Error("remote failure must degrade to a miss")
	}
	if remote.calls != 1 {
		t.Errorf("remote calls = %d, want 1", remote.calls)
	}
}

func TestKnownCity(t *testing.T) {
	if !KnownCity("München") {
		t.Error("muenchen alias expected in gazetteer")
	}
	if KnownCity("Atlantis") {
		t.Error("Atlantis is not in the gazetteer")
	}
}
