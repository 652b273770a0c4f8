package domain

import (
	"time"

	"github.com/google/uuid"
)

// City is the owning entity for all saved travel records. Cities are
// resolved by exact Chinese name and created on demand with placeholder
// descriptions, to be enriched later by a city-overview run.
type City struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	NameEN        string    `json:"name_en,omitempty"`
	Description   string    `json:"description,omitempty"`
	DescriptionEN string    `json:"description_en,omitempty"`
	ImageURL      string    `json:"image_url,omitempty"`
	Location      string    `json:"location,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Attraction is a sightseeing spot owned by exactly one city.
type Attraction struct {
	ID            uuid.UUID `json:"id"`
	CityID        uuid.UUID `json:"city_id"`
	Name          string    `json:"name"`
	NameEN        string    `json:"name_en,omitempty"`
	Description   string    `json:"description,omitempty"`
	DescriptionEN string    `json:"description_en,omitempty"`
	Address       string    `json:"address,omitempty"`
	OpeningHours  string    `json:"opening_hours,omitempty"`

	// TicketPrice is the scrubbed numeric admission price. Nil when the
	// source record carried no price at all; zero when it carried one that
	// could not be parsed.
	TicketPrice *float64 `json:"ticket_price,omitempty"`

	Category  string    `json:"category,omitempty"`
	ImageURL  string    `json:"image_url,omitempty"`
	Images    []string  `json:"images,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Restaurant is a dining venue owned by exactly one city.
type Restaurant struct {
	ID            uuid.UUID `json:"id"`
	CityID        uuid.UUID `json:"city_id"`
	Name          string    `json:"name"`
	NameEN        string    `json:"name_en,omitempty"`
	Description   string    `json:"description,omitempty"`
	DescriptionEN string    `json:"description_en,omitempty"`
	Address       string    `json:"address,omitempty"`
	OpeningHours  string    `json:"opening_hours,omitempty"`

	// PriceRange is the scrubbed numeric average cost per person.
	PriceRange *float64 `json:"price_range,omitempty"`

	Cuisine     string    `json:"cuisine,omitempty"`
	Specialties []string  `json:"specialties,omitempty"`
	Category    string    `json:"category,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Images      []string  `json:"images,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Hotel is a lodging venue owned by exactly one city.
type Hotel struct {
	ID            uuid.UUID `json:"id"`
	CityID        uuid.UUID `json:"city_id"`
	Name          string    `json:"name"`
	NameEN        string    `json:"name_en,omitempty"`
	Description   string    `json:"description,omitempty"`
	DescriptionEN string    `json:"description_en,omitempty"`
	Address       string    `json:"address,omitempty"`

	// PriceRange is the scrubbed numeric nightly rate.
	PriceRange *float64 `json:"price_range,omitempty"`

	StarRating *float64  `json:"star_rating,omitempty"`
	Amenities  []string  `json:"amenities,omitempty"`
	Category   string    `json:"category,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Images     []string  `json:"images,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CityOverview holds long-form city content in named sections. One row per
// city, replaced wholesale on upsert.
type CityOverview struct {
	ID     uuid.UUID `json:"id"`
	CityID uuid.UUID `json:"city_id"`

	// Sections maps section names ("history", "culture", ...) to their
	// content blocks as produced by the collection pipeline.
	Sections map[string]interface{} `json:"sections"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
