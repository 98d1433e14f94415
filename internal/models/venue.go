package models

import (
	"time"
)

// Venue is a canonical place where events happen. Venues are created lazily
// on first reference by a candidate event and never deleted; later candidates
// may enrich an existing row in place.
type Venue struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	NormalizedName string        `json:"normalized_name"`
	Address        string        `json:"address,omitempty"`
	City           string        `json:"city,omitempty"`
	Country        string        `json:"country,omitempty"`
	Latitude       float64       `json:"latitude"`
	Longitude      float64       `json:"longitude"`
	Metadata       VenueMetadata `json:"metadata"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// VenueMetadata records how the venue's coordinates were obtained.
type VenueMetadata struct {
	// Placeholder marks venues created with no usable location data at all.
	// Downstream spatial dedup treats them as a last resort.
	Placeholder bool `json:"placeholder,omitempty"`

	// GeocodeSource is one of "provided", "city_center" or "none".
	GeocodeSource string `json:"geocode_source,omitempty"`
}

// IsPlaceholder reports whether the venue carries no real location data.
func (v *Venue) IsPlaceholder() bool {
	return v.Metadata.Placeholder
}

// Performer is a canonical artist/act. Unlike venues there is no spatial
// dimension; normalized-name uniqueness is the only dedup invariant.
type Performer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	CreatedAt      time.Time `json:"created_at"`
}
