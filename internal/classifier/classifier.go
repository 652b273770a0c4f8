// Package classifier decides which destination table a collected record
// belongs to and persists it under its owning city.
//
// Records arrive as loosely-structured maps from the content parser, so
// classification works by presence of characteristic fields rather than by a
// declared type: an admission price marks an attraction, a cuisine marks a
// restaurant, a star rating marks a hotel. Records matching nothing are kept
// as attractions so no collected data is silently dropped.
package classifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
	"github.com/hgj2025/cityinfo-sub001/internal/repository"
)

// Category is the destination a record classifies into.
type Category string

const (
	CategoryAttraction Category = "attraction"
	CategoryRestaurant Category = "restaurant"
	CategoryHotel      Category = "hotel"
)

// Placeholder names used when an upstream record carries no name at all.
const (
	unnamedAttraction   = "未命名景点"
	unnamedAttractionEN = "Unnamed Attraction"
	unnamedRestaurant   = "未命名餐厅"
	unnamedRestaurantEN = "Unnamed Restaurant"
	unnamedHotel        = "未命名酒店"
	unnamedHotelEN      = "Unnamed Hotel"
)

// nonNumericRe strips everything but digits and decimal points from price
// strings like "¥80起" or "80-120元".
var nonNumericRe = regexp.MustCompile(`[^0-9.]`)

// Classify applies the classification rules in order and returns the first
// matching category. Attraction is checked before restaurant before hotel,
// so a record satisfying two rules lands in the earlier one.
func Classify(rec domain.Record) Category {
	category := rec.StringField("category")

	if strings.Contains(category, "景点") || strings.Contains(category, "景区") || rec.HasField("ticketPrice") {
		return CategoryAttraction
	}

	// A star rating or amenity list is a structural hotel signal and wins
	// over a cuisine field, so mixed hotel-with-restaurant records land in
	// hotels.
	hotelSignal := rec.HasField("starRating") || rec.HasField("amenities")

	if !hotelSignal && (rec.HasField("cuisine") || rec.HasField("specialties") || strings.Contains(category, "餐")) {
		return CategoryRestaurant
	}
	if hotelSignal || strings.Contains(category, "酒店") {
		return CategoryHotel
	}

	return CategoryAttraction
}

// Saver classifies records and writes them to their destination tables.
type Saver struct {
	places repository.PlaceRepository
	logger zerolog.Logger
}

// NewSaver creates a Saver over the given place repository. Passing a
// transaction-scoped repository makes the whole save participate in that
// transaction.
func NewSaver(places repository.PlaceRepository, logger zerolog.Logger) *Saver {
	return &Saver{
		places: places,
		logger: logger.With().Str("component", "classifier").Logger(),
	}
}

// Save resolves or creates the owning city, then classifies and persists
// each record. Records are independent writes: the first failing record
// stops the batch and propagates, leaving earlier records committed unless
// the repository is transaction-scoped.
func (s *Saver) Save(ctx context.Context, records []domain.Record, cityName string) error {
	if cityName == "" {
		return domain.NewValidationError("city_name", "city name is required")
	}

	city, err := s.places.GetOrCreateCity(ctx, cityName)
	if err != nil {
		return fmt.Errorf("failed to resolve city %q: %w", cityName, err)
	}

	for i, rec := range records {
		category := Classify(rec)

		switch category {
		case CategoryRestaurant:
			err = s.places.CreateRestaurant(ctx, buildRestaurant(city.ID, rec))
		case CategoryHotel:
			err = s.places.CreateHotel(ctx, buildHotel(city.ID, rec))
		default:
			err = s.places.CreateAttraction(ctx, buildAttraction(city.ID, rec))
		}
		if err != nil {
			return fmt.Errorf("failed to save record %d as %s: %w", i, category, err)
		}

		s.logger.Debug().
			Str("city", cityName).
			Str("category", string(category)).
			Str("name", rec.StringField("name")).
			Msg("record saved")
	}

	return nil
}

// SaveOverview persists a city-overview payload. The record's keys become
// the overview sections, replacing any previous overview for the city.
func (s *Saver) SaveOverview(ctx context.Context, rec domain.Record, cityName string) error {
	if cityName == "" {
		return domain.NewValidationError("city_name", "city name is required")
	}

	city, err := s.places.GetOrCreateCity(ctx, cityName)
	if err != nil {
		return fmt.Errorf("failed to resolve city %q: %w", cityName, err)
	}

	sections := make(map[string]interface{}, len(rec))
	for k, v := range rec {
		// The city name is addressing, not content.
		if k == "city" {
			continue
		}
		sections[k] = v
	}

	now := time.Now().UTC()
	overview := &domain.CityOverview{
		ID:        uuid.New(),
		CityID:    city.ID,
		Sections:  sections,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.places.UpsertCityOverview(ctx, overview); err != nil {
		return fmt.Errorf("failed to save overview for %q: %w", cityName, err)
	}

	s.logger.Debug().
		Str("city", cityName).
		Int("sections", len(sections)).
		Msg("overview saved")

	return nil
}

func buildAttraction(cityID uuid.UUID, rec domain.Record) *domain.Attraction {
	now := time.Now().UTC()
	name, nameEN := recordNames(rec, unnamedAttraction, unnamedAttractionEN)

	return &domain.Attraction{
		ID:            uuid.New(),
		CityID:        cityID,
		Name:          name,
		NameEN:        nameEN,
		Description:   rec.StringField("description"),
		DescriptionEN: rec.StringField("descriptionEn"),
		Address:       rec.StringField("address"),
		OpeningHours:  rec.StringField("openingHours"),
		TicketPrice:   scrubPrice(rec, "ticketPrice"),
		Category:      rec.StringField("category"),
		ImageURL:      rec.StringField("imageUrl"),
		Images:        stringSlice(rec, "images"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func buildRestaurant(cityID uuid.UUID, rec domain.Record) *domain.Restaurant {
	now := time.Now().UTC()
	name, nameEN := recordNames(rec, unnamedRestaurant, unnamedRestaurantEN)

	return &domain.Restaurant{
		ID:            uuid.New(),
		CityID:        cityID,
		Name:          name,
		NameEN:        nameEN,
		Description:   rec.StringField("description"),
		DescriptionEN: rec.StringField("descriptionEn"),
		Address:       rec.StringField("address"),
		OpeningHours:  rec.StringField("openingHours"),
		PriceRange:    scrubPrice(rec, "priceRange"),
		Cuisine:       rec.StringField("cuisine"),
		Specialties:   stringSlice(rec, "specialties"),
		Category:      rec.StringField("category"),
		ImageURL:      rec.StringField("imageUrl"),
		Images:        stringSlice(rec, "images"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func buildHotel(cityID uuid.UUID, rec domain.Record) *domain.Hotel {
	now := time.Now().UTC()
	name, nameEN := recordNames(rec, unnamedHotel, unnamedHotelEN)

	return &domain.Hotel{
		ID:            uuid.New(),
		CityID:        cityID,
		Name:          name,
		NameEN:        nameEN,
		Description:   rec.StringField("description"),
		DescriptionEN: rec.StringField("descriptionEn"),
		Address:       rec.StringField("address"),
		PriceRange:    scrubPrice(rec, "priceRange"),
		StarRating:    numericField(rec, "starRating"),
		Amenities:     stringSlice(rec, "amenities"),
		Category:      rec.StringField("category"),
		ImageURL:      rec.StringField("imageUrl"),
		Images:        stringSlice(rec, "images"),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// recordNames returns the record's name and nameEn, substituting the
// placeholders when the upstream record carries none.
func recordNames(rec domain.Record, fallback, fallbackEN string) (string, string) {
	name := rec.StringField("name")
	if name == "" {
		name = fallback
	}
	nameEN := rec.StringField("nameEn")
	if nameEN == "" {
		nameEN = fallbackEN
	}
	return name, nameEN
}

// scrubPrice extracts a numeric price from the record. An absent field is
// nil; a present price that cannot be parsed after scrubbing is zero, so a
// record claiming a price never loses that claim entirely.
func scrubPrice(rec domain.Record, key string) *float64 {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}

	switch p := v.(type) {
	case float64:
		return &p
	case string:
		cleaned := nonNumericRe.ReplaceAllString(p, "")
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			zero := 0.0
			return &zero
		}
		return &parsed
	default:
		zero := 0.0
		return &zero
	}
}

// numericField returns the field as a float when it parses, nil otherwise.
func numericField(rec domain.Record, key string) *float64 {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}

	switch n := v.(type) {
	case float64:
		return &n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

// stringSlice extracts a list of strings, tolerating the []interface{}
// shape JSON decoding produces. Non-string elements are skipped.
func stringSlice(rec domain.Record, key string) []string {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}

	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return nil
	}
}
