package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// cityRows builds a mock result set for the city columns.
func cityRows(cities ...*domain.City) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{
		"id", "name", "name_en", "description", "description_en",
		"image_url", "location", "created_at", "updated_at",
	})
	for _, c := range cities {
		rows.AddRow(
			c.ID, c.Name, nullString(c.NameEN), nullString(c.Description), nullString(c.DescriptionEN),
			nullString(c.ImageURL), nullString(c.Location), c.CreatedAt, c.UpdatedAt,
		)
	}
	return rows
}

func TestPgPlaceRepository_GetOrCreateCity(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns existing city", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		existing := &domain.City{ID: uuid.New(), Name: "杭州", Description: "江南水乡", CreatedAt: now, UpdatedAt: now}

		mock.ExpectQuery("SELECT .* FROM cities WHERE name = \\$1").
			WithArgs("杭州").
			WillReturnRows(cityRows(existing))

		city, err := repo.GetOrCreateCity(ctx, "杭州")
		require.NoError(t, err)
		assert.Equal(t, existing.ID, city.ID)
		assert.Equal(t, "江南水乡", city.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates placeholder city when absent", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)

		mock.ExpectQuery("SELECT .* FROM cities WHERE name = \\$1").
			WithArgs("绍兴").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec("INSERT INTO cities").
			WithArgs(
				pgxmock.AnyArg(), "绍兴", pgxmock.AnyArg(), placeholderDescription, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		city, err := repo.GetOrCreateCity(ctx, "绍兴")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, city.ID)
		assert.Equal(t, "绍兴", city.Name)
		assert.Equal(t, placeholderDescription, city.Description)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing the create race reads the winner", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		winner := &domain.City{ID: uuid.New(), Name: "苏州", Description: placeholderDescription, CreatedAt: now, UpdatedAt: now}

		mock.ExpectQuery("SELECT .* FROM cities WHERE name = \\$1").
			WithArgs("苏州").
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectExec("INSERT INTO cities").
			WithArgs(
				pgxmock.AnyArg(), "苏州", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectQuery("SELECT .* FROM cities WHERE name = \\$1").
			WithArgs("苏州").
			WillReturnRows(cityRows(winner))

		city, err := repo.GetOrCreateCity(ctx, "苏州")
		require.NoError(t, err)
		assert.Equal(t, winner.ID, city.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty name is a validation error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)

		city, err := repo.GetOrCreateCity(ctx, "")
		assert.Nil(t, city)

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestPgPlaceRepository_GetCity(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns city by id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		city := &domain.City{ID: uuid.New(), Name: "杭州", CreatedAt: now, UpdatedAt: now}

		mock.ExpectQuery("SELECT .* FROM cities WHERE id = \\$1").
			WithArgs(city.ID).
			WillReturnRows(cityRows(city))

		got, err := repo.GetCity(ctx, city.ID)
		require.NoError(t, err)
		assert.Equal(t, city.ID, got.ID)
	})

	t.Run("returns not found for missing city", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		id := uuid.New()

		mock.ExpectQuery("SELECT .* FROM cities WHERE id = \\$1").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetCity(ctx, id)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgPlaceRepository_ListCities(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("lists with count", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		city := &domain.City{ID: uuid.New(), Name: "杭州", CreatedAt: now, UpdatedAt: now}

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cities").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery("SELECT .* FROM cities ORDER BY name").
			WithArgs(10, 0).
			WillReturnRows(cityRows(city))

		cities, total, err := repo.ListCities(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, cities, 1)
		assert.Equal(t, "杭州", cities[0].Name)
	})

	t.Run("clamps invalid pagination to defaults", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM cities").
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
		mock.ExpectQuery("SELECT .* FROM cities ORDER BY name").
			WithArgs(defaultFilterLimit, 0).
			WillReturnRows(cityRows())

		_, _, err = repo.ListCities(ctx, -5, -3)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgPlaceRepository_CreateAttraction(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	price := 80.0

	t.Run("creates attraction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		a := &domain.Attraction{
			ID:          uuid.New(),
			CityID:      uuid.New(),
			Name:        "西湖",
			TicketPrice: &price,
			Category:    "景点",
			Images:      []string{"https://example.com/xihu.jpg"},
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		mock.ExpectExec("INSERT INTO attractions").
			WithArgs(
				a.ID, a.CityID, a.Name, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), &price, pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.CreateAttraction(ctx, a))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing city maps the foreign key violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		a := &domain.Attraction{ID: uuid.New(), CityID: uuid.New(), Name: "西湖", CreatedAt: now, UpdatedAt: now}

		mock.ExpectExec("INSERT INTO attractions").
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err = repo.CreateAttraction(ctx, a)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("validation errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)

		var validationErr *domain.ValidationError

		err = repo.CreateAttraction(ctx, nil)
		assert.True(t, errors.As(err, &validationErr))

		err = repo.CreateAttraction(ctx, &domain.Attraction{ID: uuid.New(), Name: "西湖"})
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "city_id", validationErr.Field)

		err = repo.CreateAttraction(ctx, &domain.Attraction{ID: uuid.New(), CityID: uuid.New()})
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "name", validationErr.Field)
	})
}

func TestPgPlaceRepository_CreateRestaurant(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPlaceRepository(mock)
	rest := &domain.Restaurant{
		ID:          uuid.New(),
		CityID:      uuid.New(),
		Name:        "楼外楼",
		Cuisine:     "杭帮菜",
		Specialties: []string{"西湖醋鱼", "东坡肉"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO restaurants").
		WithArgs(
			rest.ID, rest.CityID, rest.Name, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.CreateRestaurant(ctx, rest))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPlaceRepository_CreateHotel(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	stars := 5.0

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPlaceRepository(mock)
	h := &domain.Hotel{
		ID:         uuid.New(),
		CityID:     uuid.New(),
		Name:       "西子湖四季酒店",
		StarRating: &stars,
		Amenities:  []string{"泳池", "健身房"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	mock.ExpectExec("INSERT INTO hotels").
		WithArgs(
			h.ID, h.CityID, h.Name, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), &stars, pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.CreateHotel(ctx, h))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPlaceRepository_ListAttractions(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgPlaceRepository(mock)
	cityID := uuid.New()
	price := 80.0
	imagesJSON, err := json.Marshal([]string{"https://example.com/a.jpg"})
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"id", "city_id", "name", "name_en", "description", "description_en",
		"address", "opening_hours", "ticket_price", "category", "image_url", "images",
		"created_at", "updated_at",
	}).AddRow(
		uuid.New(), cityID, "西湖", nullString(""), nullString("湖光山色"), nullString(""),
		nullString(""), nullString("全天开放"), &price, nullString("景点"), nullString(""), imagesJSON,
		now, now,
	)

	mock.ExpectQuery("SELECT .* FROM attractions WHERE city_id = \\$1").
		WithArgs(cityID).
		WillReturnRows(rows)

	attractions, err := repo.ListAttractions(ctx, cityID)
	require.NoError(t, err)
	require.Len(t, attractions, 1)
	assert.Equal(t, "西湖", attractions[0].Name)
	assert.Equal(t, "湖光山色", attractions[0].Description)
	require.NotNil(t, attractions[0].TicketPrice)
	assert.Equal(t, 80.0, *attractions[0].TicketPrice)
	assert.Equal(t, []string{"https://example.com/a.jpg"}, attractions[0].Images)
}

func TestPgPlaceRepository_UpsertCityOverview(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("inserts or replaces sections", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		o := &domain.CityOverview{
			ID:     uuid.New(),
			CityID: uuid.New(),
			Sections: map[string]interface{}{
				"history": map[string]interface{}{"content": "古都"},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}

		mock.ExpectExec("INSERT INTO city_overviews .* ON CONFLICT \\(city_id\\) DO UPDATE").
			WithArgs(o.ID, o.CityID, pgxmock.AnyArg(), o.CreatedAt, o.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		assert.NoError(t, repo.UpsertCityOverview(ctx, o))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing city maps the foreign key violation", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		o := &domain.CityOverview{ID: uuid.New(), CityID: uuid.New(), CreatedAt: now, UpdatedAt: now}

		mock.ExpectExec("INSERT INTO city_overviews").
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: "23503"})

		err = repo.UpsertCityOverview(ctx, o)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgPlaceRepository_GetCityOverview(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns overview with sections", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		cityID := uuid.New()
		sectionsJSON, err := json.Marshal(map[string]interface{}{"culture": map[string]interface{}{"content": "茶文化"}})
		require.NoError(t, err)

		rows := pgxmock.NewRows([]string{"id", "city_id", "sections", "created_at", "updated_at"}).
			AddRow(uuid.New(), cityID, sectionsJSON, now, now)

		mock.ExpectQuery("SELECT .* FROM city_overviews WHERE city_id = \\$1").
			WithArgs(cityID).
			WillReturnRows(rows)

		o, err := repo.GetCityOverview(ctx, cityID)
		require.NoError(t, err)
		assert.Equal(t, cityID, o.CityID)
		assert.Contains(t, o.Sections, "culture")
	})

	t.Run("returns not found for missing overview", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgPlaceRepository(mock)
		cityID := uuid.New()

		mock.ExpectQuery("SELECT .* FROM city_overviews WHERE city_id = \\$1").
			WithArgs(cityID).
			WillReturnError(pgx.ErrNoRows)

		o, err := repo.GetCityOverview(ctx, cityID)
		assert.Nil(t, o)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
