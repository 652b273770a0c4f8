package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

// fakePlaces is an in-memory PlaceRepository recording every write.
type fakePlaces struct {
	cities      map[string]*domain.City
	attractions []*domain.Attraction
	restaurants []*domain.Restaurant
	hotels      []*domain.Hotel
	overviews   []*domain.CityOverview

	failCreateAfter int // fail the Nth create call (1-based), 0 disables
	creates         int
}

func newFakePlaces() *fakePlaces {
	return &fakePlaces{cities: make(map[string]*domain.City)}
}

func (f *fakePlaces) GetOrCreateCity(_ context.Context, name string) (*domain.City, error) {
	if city, ok := f.cities[name]; ok {
		return city, nil
	}
	now := time.Now().UTC()
	city := &domain.City{ID: uuid.New(), Name: name, Description: "待完善", CreatedAt: now, UpdatedAt: now}
	f.cities[name] = city
	return city, nil
}

func (f *fakePlaces) GetCity(context.Context, uuid.UUID) (*domain.City, error) {
	return nil, domain.ErrNotFound
}

func (f *fakePlaces) ListCities(context.Context, int, int) ([]*domain.City, int64, error) {
	return nil, 0, nil
}

func (f *fakePlaces) createErr() error {
	f.creates++
	if f.failCreateAfter > 0 && f.creates >= f.failCreateAfter {
		return errors.New("write failed")
	}
	return nil
}

func (f *fakePlaces) CreateAttraction(_ context.Context, a *domain.Attraction) error {
	if err := f.createErr(); err != nil {
		return err
	}
	f.attractions = append(f.attractions, a)
	return nil
}

func (f *fakePlaces) CreateRestaurant(_ context.Context, rest *domain.Restaurant) error {
	if err := f.createErr(); err != nil {
		return err
	}
	f.restaurants = append(f.restaurants, rest)
	return nil
}

func (f *fakePlaces) CreateHotel(_ context.Context, h *domain.Hotel) error {
	if err := f.createErr(); err != nil {
		return err
	}
	f.hotels = append(f.hotels, h)
	return nil
}

func (f *fakePlaces) ListAttractions(context.Context, uuid.UUID) ([]*domain.Attraction, error) {
	return f.attractions, nil
}

func (f *fakePlaces) ListRestaurants(context.Context, uuid.UUID) ([]*domain.Restaurant, error) {
	return f.restaurants, nil
}

func (f *fakePlaces) ListHotels(context.Context, uuid.UUID) ([]*domain.Hotel, error) {
	return f.hotels, nil
}

func (f *fakePlaces) UpsertCityOverview(_ context.Context, o *domain.CityOverview) error {
	f.overviews = append(f.overviews, o)
	return nil
}

func (f *fakePlaces) GetCityOverview(context.Context, uuid.UUID) (*domain.CityOverview, error) {
	return nil, domain.ErrNotFound
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		rec      domain.Record
		expected Category
	}{
		{
			name:     "category 景点 is an attraction",
			rec:      domain.Record{"name": "西湖", "category": "景点"},
			expected: CategoryAttraction,
		},
		{
			name:     "category 景区 is an attraction",
			rec:      domain.Record{"name": "西溪湿地", "category": "5A景区"},
			expected: CategoryAttraction,
		},
		{
			name:     "ticket price alone is an attraction",
			rec:      domain.Record{"name": "灵隐寺", "ticketPrice": "75元"},
			expected: CategoryAttraction,
		},
		{
			name:     "ticket price without cuisine or star rating stays an attraction",
			rec:      domain.Record{"name": "雷峰塔", "ticketPrice": 40.0, "address": "南山路"},
			expected: CategoryAttraction,
		},
		{
			name:     "cuisine is a restaurant",
			rec:      domain.Record{"name": "楼外楼", "cuisine": "杭帮菜"},
			expected: CategoryRestaurant,
		},
		{
			name:     "specialties is a restaurant",
			rec:      domain.Record{"name": "知味观", "specialties": []interface{}{"小笼包"}},
			expected: CategoryRestaurant,
		},
		{
			name:     "category 餐 is a restaurant",
			rec:      domain.Record{"name": "绿茶", "category": "连锁餐厅"},
			expected: CategoryRestaurant,
		},
		{
			name:     "star rating is a hotel",
			rec:      domain.Record{"name": "四季酒店", "starRating": 5.0},
			expected: CategoryHotel,
		},
		{
			name:     "amenities is a hotel",
			rec:      domain.Record{"name": "君悦", "amenities": []interface{}{"泳池"}},
			expected: CategoryHotel,
		},
		{
			name:     "star rating beats cuisine",
			rec:      domain.Record{"name": "安缦法云", "starRating": 5.0, "cuisine": "素食"},
			expected: CategoryHotel,
		},
		{
			name:     "ticket price beats star rating",
			rec:      domain.Record{"name": "某处", "ticketPrice": "30", "starRating": 4.0},
			expected: CategoryAttraction,
		},
		{
			name:     "unclassifiable record defaults to attraction",
			rec:      domain.Record{"name": "未知地点", "description": "?"},
			expected: CategoryAttraction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.rec))
		})
	}
}

func TestSaver_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("classifies and saves mixed records", func(t *testing.T) {
		places := newFakePlaces()
		saver := NewSaver(places, zerolog.Nop())

		records := []domain.Record{
			{"name": "西湖", "category": "景点", "ticketPrice": "免费", "images": []interface{}{"https://example.com/xihu.jpg"}},
			{"name": "楼外楼", "cuisine": "杭帮菜", "specialties": []interface{}{"西湖醋鱼"}},
			{"name": "四季酒店", "starRating": 5.0, "amenities": []interface{}{"泳池", "健身房"}},
		}

		err := saver.Save(ctx, records, "杭州")
		require.NoError(t, err)

		require.Len(t, places.attractions, 1)
		require.Len(t, places.restaurants, 1)
		require.Len(t, places.hotels, 1)

		city := places.cities["杭州"]
		require.NotNil(t, city)
		assert.Equal(t, city.ID, places.attractions[0].CityID)
		assert.Equal(t, city.ID, places.restaurants[0].CityID)
		assert.Equal(t, city.ID, places.hotels[0].CityID)

		assert.Equal(t, []string{"https://example.com/xihu.jpg"}, places.attractions[0].Images)
		assert.Equal(t, []string{"西湖醋鱼"}, places.restaurants[0].Specialties)
		assert.Equal(t, []string{"泳池", "健身房"}, places.hotels[0].Amenities)
	})

	t.Run("missing names get placeholders", func(t *testing.T) {
		places := newFakePlaces()
		saver := NewSaver(places, zerolog.Nop())

		err := saver.Save(ctx, []domain.Record{{"description": "无名"}}, "杭州")
		require.NoError(t, err)

		require.Len(t, places.attractions, 1)
		assert.Equal(t, "未命名景点", places.attractions[0].Name)
		assert.Equal(t, "Unnamed Attraction", places.attractions[0].NameEN)
	})

	t.Run("mid-batch failure keeps earlier writes", func(t *testing.T) {
		places := newFakePlaces()
		places.failCreateAfter = 2
		saver := NewSaver(places, zerolog.Nop())

		records := []domain.Record{
			{"name": "西湖", "category": "景点"},
			{"name": "楼外楼", "cuisine": "杭帮菜"},
			{"name": "四季酒店", "starRating": 5.0},
		}

		err := saver.Save(ctx, records, "杭州")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "record 1")

		assert.Len(t, places.attractions, 1)
		assert.Empty(t, places.restaurants)
		assert.Empty(t, places.hotels)
	})

	t.Run("empty city name is a validation error", func(t *testing.T) {
		saver := NewSaver(newFakePlaces(), zerolog.Nop())

		err := saver.Save(ctx, nil, "")

		var validationErr *domain.ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestSaver_SaveOverview(t *testing.T) {
	ctx := context.Background()

	places := newFakePlaces()
	saver := NewSaver(places, zerolog.Nop())

	rec := domain.Record{
		"city":    "杭州",
		"history": map[string]interface{}{"content": "古都"},
		"culture": map[string]interface{}{"content": "茶文化"},
	}

	err := saver.SaveOverview(ctx, rec, "杭州")
	require.NoError(t, err)

	require.Len(t, places.overviews, 1)
	overview := places.overviews[0]
	assert.Equal(t, places.cities["杭州"].ID, overview.CityID)
	assert.Contains(t, overview.Sections, "history")
	assert.Contains(t, overview.Sections, "culture")
	assert.NotContains(t, overview.Sections, "city")
}

func TestScrubPrice(t *testing.T) {
	tests := []struct {
		name     string
		rec      domain.Record
		expected *float64
	}{
		{"absent price is nil", domain.Record{}, nil},
		{"nil price is nil", domain.Record{"ticketPrice": nil}, nil},
		{"numeric price passes through", domain.Record{"ticketPrice": 80.0}, ptr(80.0)},
		{"currency prefix is scrubbed", domain.Record{"ticketPrice": "¥80起"}, ptr(80.0)},
		{"suffix unit is scrubbed", domain.Record{"ticketPrice": "75元"}, ptr(75.0)},
		{"decimal survives scrubbing", domain.Record{"ticketPrice": "12.5元"}, ptr(12.5)},
		{"unparseable explicit price is zero", domain.Record{"ticketPrice": "免费"}, ptr(0.0)},
		{"non-numeric non-string price is zero", domain.Record{"ticketPrice": true}, ptr(0.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scrubPrice(tt.rec, "ticketPrice")
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.expected, *got)
		})
	}
}

func ptr(f float64) *float64 { return &f }
