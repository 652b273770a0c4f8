package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// placeholderDescription marks cities created implicitly by the pipeline,
// before an overview run fills in real content.
const placeholderDescription = "待完善"

// Compile-time interface verification.
var _ PlaceRepository = (*PgPlaceRepository)(nil)

// PgPlaceRepository is a PostgreSQL implementation of PlaceRepository.
type PgPlaceRepository struct {
	db DBTX
}

// NewPgPlaceRepository creates a new PostgreSQL place repository.
func NewPgPlaceRepository(db DBTX) *PgPlaceRepository {
	return &PgPlaceRepository{db: db}
}

const cityColumns = `id, name, name_en, description, description_en,
	image_url, location, created_at, updated_at`

// GetOrCreateCity resolves a city by exact name, creating a placeholder row
// when absent. A concurrent create losing the unique-name race falls back
// to reading the winner's row.
func (r *PgPlaceRepository) GetOrCreateCity(ctx context.Context, name string) (*domain.City, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "city name is required")
	}

	city, err := r.getCityByName(ctx, name)
	if err == nil {
		return city, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	city = &domain.City{
		ID:          uuid.New(),
		Name:        name,
		Description: placeholderDescription,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO cities (id, name, name_en, description, description_en,
			image_url, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		city.ID, city.Name, nullString(city.NameEN), city.Description, nullString(city.DescriptionEN),
		nullString(city.ImageURL), nullString(city.Location), city.CreatedAt, city.UpdatedAt,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return r.getCityByName(ctx, name)
		}
		return nil, fmt.Errorf("failed to create city: %w", err)
	}

	return city, nil
}

// GetCity retrieves a city by ID.
func (r *PgPlaceRepository) GetCity(ctx context.Context, id uuid.UUID) (*domain.City, error) {
	query := fmt.Sprintf(`SELECT %s FROM cities WHERE id = $1`, cityColumns)

	city, err := scanCity(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("city", id.String())
		}
		return nil, fmt.Errorf("failed to get city: %w", err)
	}

	return city, nil
}

// ListCities returns cities ordered by name.
func (r *PgPlaceRepository) ListCities(ctx context.Context, limit, offset int) ([]*domain.City, int64, error) {
	applyPaginationDefaults(&limit, &offset)

	var totalCount int64
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM cities").Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count cities: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM cities ORDER BY name LIMIT $1 OFFSET $2`, cityColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cities: %w", err)
	}
	defer rows.Close()

	cities := make([]*domain.City, 0, limit)
	for rows.Next() {
		city, err := scanCityFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, city)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating cities: %w", err)
	}

	return cities, totalCount, nil
}

// CreateAttraction inserts an attraction.
func (r *PgPlaceRepository) CreateAttraction(ctx context.Context, a *domain.Attraction) error {
	if a == nil {
		return domain.NewValidationError("attraction", "attraction cannot be nil")
	}
	if a.CityID == uuid.Nil {
		return domain.NewValidationError("city_id", "city ID is required")
	}
	if a.Name == "" {
		return domain.NewValidationError("name", "attraction name is required")
	}

	imagesJSON, err := json.Marshal(a.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	query := `
		INSERT INTO attractions (id, city_id, name, name_en, description, description_en,
			address, opening_hours, ticket_price, category, image_url, images,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		a.ID, a.CityID, a.Name, nullString(a.NameEN), nullString(a.Description), nullString(a.DescriptionEN),
		nullString(a.Address), nullString(a.OpeningHours), a.TicketPrice, nullString(a.Category),
		nullString(a.ImageURL), imagesJSON,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("city", a.CityID.String())
		}
		return fmt.Errorf("failed to create attraction: %w", err)
	}

	return nil
}

// CreateRestaurant inserts a restaurant.
func (r *PgPlaceRepository) CreateRestaurant(ctx context.Context, rest *domain.Restaurant) error {
	if rest == nil {
		return domain.NewValidationError("restaurant", "restaurant cannot be nil")
	}
	if rest.CityID == uuid.Nil {
		return domain.NewValidationError("city_id", "city ID is required")
	}
	if rest.Name == "" {
		return domain.NewValidationError("name", "restaurant name is required")
	}

	specialtiesJSON, err := json.Marshal(rest.Specialties)
	if err != nil {
		return fmt.Errorf("failed to marshal specialties: %w", err)
	}
	imagesJSON, err := json.Marshal(rest.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	query := `
		INSERT INTO restaurants (id, city_id, name, name_en, description, description_en,
			address, opening_hours, price_range, cuisine, specialties, category,
			image_url, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err = r.db.Exec(ctx, query,
		rest.ID, rest.CityID, rest.Name, nullString(rest.NameEN), nullString(rest.Description), nullString(rest.DescriptionEN),
		nullString(rest.Address), nullString(rest.OpeningHours), rest.PriceRange, nullString(rest.Cuisine),
		specialtiesJSON, nullString(rest.Category),
		nullString(rest.ImageURL), imagesJSON, rest.CreatedAt, rest.UpdatedAt,
	)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("city", rest.CityID.String())
		}
		return fmt.Errorf("failed to create restaurant: %w", err)
	}

	return nil
}

// CreateHotel inserts a hotel.
func (r *PgPlaceRepository) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	if h == nil {
		return domain.NewValidationError("hotel", "hotel cannot be nil")
	}
	if h.CityID == uuid.Nil {
		return domain.NewValidationError("city_id", "city ID is required")
	}
	if h.Name == "" {
		return domain.NewValidationError("name", "hotel name is required")
	}

	amenitiesJSON, err := json.Marshal(h.Amenities)
	if err != nil {
		return fmt.Errorf("failed to marshal amenities: %w", err)
	}
	imagesJSON, err := json.Marshal(h.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	query := `
		INSERT INTO hotels (id, city_id, name, name_en, description, description_en,
			address, price_range, star_rating, amenities, category,
			image_url, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.Exec(ctx, query,
		h.ID, h.CityID, h.Name, nullString(h.NameEN), nullString(h.Description), nullString(h.DescriptionEN),
		nullString(h.Address), h.PriceRange, h.StarRating, amenitiesJSON, nullString(h.Category),
		nullString(h.ImageURL), imagesJSON, h.CreatedAt, h.UpdatedAt,
	)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("city", h.CityID.String())
		}
		return fmt.Errorf("failed to create hotel: %w", err)
	}

	return nil
}

// ListAttractions returns a city's attractions ordered by creation time.
func (r *PgPlaceRepository) ListAttractions(ctx context.Context, cityID uuid.UUID) ([]*domain.Attraction, error) {
	query := `
		SELECT id, city_id, name, name_en, description, description_en,
			address, opening_hours, ticket_price, category, image_url, images,
			created_at, updated_at
		FROM attractions
		WHERE city_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attractions: %w", err)
	}
	defer rows.Close()

	var attractions []*domain.Attraction
	for rows.Next() {
		var a domain.Attraction
		var nameEN, description, descriptionEN, address, openingHours, category, imageURL *string
		var imagesJSON []byte

		err := rows.Scan(&a.ID, &a.CityID, &a.Name, &nameEN, &description, &descriptionEN,
			&address, &openingHours, &a.TicketPrice, &category, &imageURL, &imagesJSON,
			&a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attraction: %w", err)
		}

		a.NameEN = deref(nameEN)
		a.Description = deref(description)
		a.DescriptionEN = deref(descriptionEN)
		a.Address = deref(address)
		a.OpeningHours = deref(openingHours)
		a.Category = deref(category)
		a.ImageURL = deref(imageURL)
		if err := unmarshalStringSlice(imagesJSON, &a.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}

		attractions = append(attractions, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attractions: %w", err)
	}

	return attractions, nil
}

// ListRestaurants returns a city's restaurants ordered by creation time.
func (r *PgPlaceRepository) ListRestaurants(ctx context.Context, cityID uuid.UUID) ([]*domain.Restaurant, error) {
	query := `
		SELECT id, city_id, name, name_en, description, description_en,
			address, opening_hours, price_range, cuisine, specialties, category,
			image_url, images, created_at, updated_at
		FROM restaurants
		WHERE city_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*domain.Restaurant
	for rows.Next() {
		var rest domain.Restaurant
		var nameEN, description, descriptionEN, address, openingHours, cuisine, category, imageURL *string
		var specialtiesJSON, imagesJSON []byte

		err := rows.Scan(&rest.ID, &rest.CityID, &rest.Name, &nameEN, &description, &descriptionEN,
			&address, &openingHours, &rest.PriceRange, &cuisine, &specialtiesJSON, &category,
			&imageURL, &imagesJSON, &rest.CreatedAt, &rest.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}

		rest.NameEN = deref(nameEN)
		rest.Description = deref(description)
		rest.DescriptionEN = deref(descriptionEN)
		rest.Address = deref(address)
		rest.OpeningHours = deref(openingHours)
		rest.Cuisine = deref(cuisine)
		rest.Category = deref(category)
		rest.ImageURL = deref(imageURL)
		if err := unmarshalStringSlice(specialtiesJSON, &rest.Specialties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal specialties: %w", err)
		}
		if err := unmarshalStringSlice(imagesJSON, &rest.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}

		restaurants = append(restaurants, &rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restaurants: %w", err)
	}

	return restaurants, nil
}

// ListHotels returns a city's hotels ordered by creation time.
func (r *PgPlaceRepository) ListHotels(ctx context.Context, cityID uuid.UUID) ([]*domain.Hotel, error) {
	query := `
		SELECT id, city_id, name, name_en, description, description_en,
			address, price_range, star_rating, amenities, category,
			image_url, images, created_at, updated_at
		FROM hotels
		WHERE city_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, cityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list hotels: %w", err)
	}
	defer rows.Close()

	var hotels []*domain.Hotel
	for rows.Next() {
		var h domain.Hotel
		var nameEN, description, descriptionEN, address, category, imageURL *string
		var amenitiesJSON, imagesJSON []byte

		err := rows.Scan(&h.ID, &h.CityID, &h.Name, &nameEN, &description, &descriptionEN,
			&address, &h.PriceRange, &h.StarRating, &amenitiesJSON, &category,
			&imageURL, &imagesJSON, &h.CreatedAt, &h.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hotel: %w", err)
		}

		h.NameEN = deref(nameEN)
		h.Description = deref(description)
		h.DescriptionEN = deref(descriptionEN)
		h.Address = deref(address)
		h.Category = deref(category)
		h.ImageURL = deref(imageURL)
		if err := unmarshalStringSlice(amenitiesJSON, &h.Amenities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal amenities: %w", err)
		}
		if err := unmarshalStringSlice(imagesJSON, &h.Images); err != nil {
			return nil, fmt.Errorf("failed to unmarshal images: %w", err)
		}

		hotels = append(hotels, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hotels: %w", err)
	}

	return hotels, nil
}

// UpsertCityOverview inserts or replaces the city's overview sections.
func (r *PgPlaceRepository) UpsertCityOverview(ctx context.Context, o *domain.CityOverview) error {
	if o == nil {
		return domain.NewValidationError("overview", "overview cannot be nil")
	}
	if o.CityID == uuid.Nil {
		return domain.NewValidationError("city_id", "city ID is required")
	}

	sectionsJSON, err := json.Marshal(o.Sections)
	if err != nil {
		return fmt.Errorf("failed to marshal sections: %w", err)
	}

	// One overview row per city; a repeat run replaces the sections
	// wholesale.
	query := `
		INSERT INTO city_overviews (id, city_id, sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (city_id) DO UPDATE SET
			sections = EXCLUDED.sections,
			updated_at = EXCLUDED.updated_at`

	_, err = r.db.Exec(ctx, query, o.ID, o.CityID, sectionsJSON, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isPgForeignKeyViolation(err) {
			return domain.NewNotFoundError("city", o.CityID.String())
		}
		return fmt.Errorf("failed to upsert city overview: %w", err)
	}

	return nil
}

// GetCityOverview retrieves a city's overview.
func (r *PgPlaceRepository) GetCityOverview(ctx context.Context, cityID uuid.UUID) (*domain.CityOverview, error) {
	query := `
		SELECT id, city_id, sections, created_at, updated_at
		FROM city_overviews
		WHERE city_id = $1`

	var o domain.CityOverview
	var sectionsJSON []byte
	err := r.db.QueryRow(ctx, query, cityID).Scan(&o.ID, &o.CityID, &sectionsJSON, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("city overview", cityID.String())
		}
		return nil, fmt.Errorf("failed to get city overview: %w", err)
	}

	if len(sectionsJSON) > 0 && string(sectionsJSON) != "null" {
		if err := json.Unmarshal(sectionsJSON, &o.Sections); err != nil {
			return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
		}
	}

	return &o, nil
}

// getCityByName retrieves a city by its exact name.
func (r *PgPlaceRepository) getCityByName(ctx context.Context, name string) (*domain.City, error) {
	query := fmt.Sprintf(`SELECT %s FROM cities WHERE name = $1`, cityColumns)

	city, err := scanCity(r.db.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("city", name)
		}
		return nil, fmt.Errorf("failed to get city by name: %w", err)
	}

	return city, nil
}

// cityScanDest holds the destination pointers for scanning a City row.
type cityScanDest struct {
	city          domain.City
	nameEN        *string
	description   *string
	descriptionEN *string
	imageURL      *string
	location      *string
}

func (d *cityScanDest) destinations() []interface{} {
	return []interface{}{
		&d.city.ID, &d.city.Name, &d.nameEN, &d.description, &d.descriptionEN,
		&d.imageURL, &d.location, &d.city.CreatedAt, &d.city.UpdatedAt,
	}
}

func (d *cityScanDest) finalize() *domain.City {
	d.city.NameEN = deref(d.nameEN)
	d.city.Description = deref(d.description)
	d.city.DescriptionEN = deref(d.descriptionEN)
	d.city.ImageURL = deref(d.imageURL)
	d.city.Location = deref(d.location)
	return &d.city
}

func scanCity(row pgx.Row) (*domain.City, error) {
	var dest cityScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}

func scanCityFromRows(rows pgx.Rows) (*domain.City, error) {
	var dest cityScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize(), nil
}

// deref returns the pointed-to string or "" for nil.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// unmarshalStringSlice decodes a JSONB string array, tolerating NULL.
func unmarshalStringSlice(data []byte, dst *[]string) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}
