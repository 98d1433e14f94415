// Package enrichment provides the pre-consolidation enrichment helpers:
// city-center geocoding for the venue degradation chain and a last-resort
// interpreter for raw date strings.
package enrichment

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gigboard/gigboard/internal/match"
)

// CityCenterGeocoder resolves city names to approximate center coordinates
// from a static gazetteer, optionally falling through to a remote lookup.
// A miss is not an error: the venue deduplicator degrades to a placeholder.
type CityCenterGeocoder struct {
	remote RemoteGeocoder
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string][2]float64
}

// RemoteGeocoder is an optional network lookup consulted on gazetteer
// misses. Implementations retry/back off internally; the geocoder treats
// any error as a miss.
type RemoteGeocoder interface {
	Geocode(ctx context.Context, city, country string) (lat, lon float64, err error)
}

// NewCityCenterGeocoder creates a geocoder. remote may be nil.
func NewCityCenterGeocoder(remote RemoteGeocoder, logger *slog.Logger) *CityCenterGeocoder {
	return &CityCenterGeocoder{
		remote: remote,
		logger: logger,
		cache:  make(map[string][2]float64),
	}
}

// CityCenter implements catalog.CityGeocoder.
func (g *CityCenterGeocoder) CityCenter(ctx context.Context, city, country string) (float64, float64, bool) {
	key := match.Slug(city)
	if key == "" {
		return 0, 0, false
	}

	g.mu.RLock()
	if coords, ok := g.cache[key]; ok {
		g.mu.RUnlock()
		return coords[0], coords[1], true
	}
	g.mu.RUnlock()

	if coords, ok := cityCenters[key]; ok {
		return coords[0], coords[1], true
	}

	if g.remote == nil {
		return 0, 0, false
	}

	lat, lon, err := g.remote.Geocode(ctx, city, country)
	if err != nil {
		// Never block venue creation on a geocoding failure.
		g.logger.Warn("remote geocode failed",
			"city", city,
			"error", err,
		)
		return 0, 0, false
	}

	g.mu.Lock()
	g.cache[key] = [2]float64{lat, lon}
	g.mu.Unlock()
	return lat, lon, true
}

// cityCenters covers the metros the current source set lists events in.
// Keys are slugs so "São Paulo" and "sao paulo" hit the same row.
var cityCenters = map[string][2]float64{
	"berlin":     {52.5200, 13.4050},
	"hamburg":    {53.5511, 9.9937},
	"munich":     {48.1351, 11.5820},
	"muenchen":   {48.1351, 11.5820},
	"munchen":    {48.1351, 11.5820}, // "München" slugs with the umlaut folded
	"cologne":    {50.9375, 6.9603},
	"koeln":      {50.9375, 6.9603},
	"koln":       {50.9375, 6.9603},
	"london":     {51.5074, -0.1278},
	"manchester": {53.4808, -2.2426},
	"amsterdam":  {52.3676, 4.9041},
	"paris":      {48.8566, 2.3522},
	"vienna":     {48.2082, 16.3738},
	"wien":       {48.2082, 16.3738},
	"zurich":     {47.3769, 8.5417},
	"new-york":   {40.7128, -74.0060},
	"chicago":    {41.8781, -87.6298},
	"austin":     {30.2672, -97.7431},
	"sao-paulo":  {-23.5505, -46.6333},
}

// KnownCity reports whether the static gazetteer covers the city.
func KnownCity(city string) bool {
	_, ok := cityCenters[match.Slug(city)]
	return ok
}
