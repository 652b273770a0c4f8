package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// PlaceRepository persists approved travel records: the city table plus the
// per-type destination tables. Attractions, restaurants, and hotels are
// create-only from the pipeline; the city overview is an upsert.
type PlaceRepository interface {
	// GetOrCreateCity resolves a city by exact name, creating it with a
	// placeholder description when absent.
	GetOrCreateCity(ctx context.Context, name string) (*domain.City, error)

	// GetCity retrieves a city by ID.
	// Returns domain.ErrNotFound if no matching city exists.
	GetCity(ctx context.Context, id uuid.UUID) (*domain.City, error)

	// ListCities returns cities ordered by name with a total count.
	ListCities(ctx context.Context, limit, offset int) ([]*domain.City, int64, error)

	// CreateAttraction inserts an attraction owned by an existing city.
	CreateAttraction(ctx context.Context, a *domain.Attraction) error

	// CreateRestaurant inserts a restaurant owned by an existing city.
	CreateRestaurant(ctx context.Context, rest *domain.Restaurant) error

	// CreateHotel inserts a hotel owned by an existing city.
	CreateHotel(ctx context.Context, h *domain.Hotel) error

	// ListAttractions returns a city's attractions ordered by creation time.
	ListAttractions(ctx context.Context, cityID uuid.UUID) ([]*domain.Attraction, error)

	// ListRestaurants returns a city's restaurants ordered by creation time.
	ListRestaurants(ctx context.Context, cityID uuid.UUID) ([]*domain.Restaurant, error)

	// ListHotels returns a city's hotels ordered by creation time.
	ListHotels(ctx context.Context, cityID uuid.UUID) ([]*domain.Hotel, error)

	// UpsertCityOverview inserts or wholesale-replaces the city's overview
	// sections.
	UpsertCityOverview(ctx context.Context, o *domain.CityOverview) error

	// GetCityOverview retrieves a city's overview.
	// Returns domain.ErrNotFound if the city has no overview yet.
	GetCityOverview(ctx context.Context, cityID uuid.UUID) (*domain.CityOverview, error)
}
