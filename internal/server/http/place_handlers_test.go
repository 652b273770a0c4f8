package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hgj2025/cityinfo-sub001/internal/domain"
)

func TestListCities(t *testing.T) {
	f := newTestFixture(t)

	cities := []*domain.City{
		{ID: uuid.New(), Name: "北京", CreatedAt: time.Now().UTC()},
		{ID: uuid.New(), Name: "杭州", CreatedAt: time.Now().UTC()},
	}
	f.places.On("ListCities", mock.Anything, defaultPageSize, 0).Return(cities, int64(2), nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp listCitiesResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(2), resp.TotalCount)
	require.Len(t, resp.Cities, 2)
	assert.Equal(t, "北京", resp.Cities[0].Name)
}

func TestListCityAttractions(t *testing.T) {
	f := newTestFixture(t)

	city := &domain.City{ID: uuid.New(), Name: "杭州"}
	price := 80.0
	attractions := []*domain.Attraction{
		{ID: uuid.New(), CityID: city.ID, Name: "西湖", TicketPrice: &price},
	}
	f.places.On("GetCity", mock.Anything, city.ID).Return(city, nil)
	f.places.On("ListAttractions", mock.Anything, city.ID).Return(attractions, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities/"+city.ID.String()+"/attractions", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Attractions []*domain.Attraction `json:"attractions"`
		Count       int                  `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Attractions, 1)
	assert.Equal(t, "西湖", resp.Attractions[0].Name)
	require.NotNil(t, resp.Attractions[0].TicketPrice)
	assert.Equal(t, 80.0, *resp.Attractions[0].TicketPrice)
}

func TestListCityAttractions_UnknownCity(t *testing.T) {
	f := newTestFixture(t)

	cityID := uuid.New()
	f.places.On("GetCity", mock.Anything, cityID).Return(nil, domain.ErrNotFound)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities/"+cityID.String()+"/attractions", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.places.AssertNotCalled(t, "ListAttractions", mock.Anything, mock.Anything)
}

func TestListCityRestaurants(t *testing.T) {
	f := newTestFixture(t)

	city := &domain.City{ID: uuid.New(), Name: "杭州"}
	restaurants := []*domain.Restaurant{
		{ID: uuid.New(), CityID: city.ID, Name: "楼外楼", Cuisine: "杭帮菜"},
	}
	f.places.On("GetCity", mock.Anything, city.ID).Return(city, nil)
	f.places.On("ListRestaurants", mock.Anything, city.ID).Return(restaurants, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities/"+city.ID.String()+"/restaurants", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Restaurants []*domain.Restaurant `json:"restaurants"`
		Count       int                  `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "楼外楼", resp.Restaurants[0].Name)
}

func TestListCityHotels(t *testing.T) {
	f := newTestFixture(t)

	city := &domain.City{ID: uuid.New(), Name: "杭州"}
	f.places.On("GetCity", mock.Anything, city.ID).Return(city, nil)
	f.places.On("ListHotels", mock.Anything, city.ID).Return([]*domain.Hotel{}, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities/"+city.ID.String()+"/hotels", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Hotels []*domain.Hotel `json:"hotels"`
		Count  int             `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 0, resp.Count)
}

func TestGetCityOverview(t *testing.T) {
	f := newTestFixture(t)

	city := &domain.City{ID: uuid.New(), Name: "杭州"}
	overview := &domain.CityOverview{
		ID:     uuid.New(),
		CityID: city.ID,
		Sections: map[string]interface{}{
			"history": map[string]interface{}{"content": "历史悠久"},
		},
	}
	f.places.On("GetCity", mock.Anything, city.ID).Return(city, nil)
	f.places.On("GetCityOverview", mock.Anything, city.ID).Return(overview, nil)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities/"+city.ID.String()+"/overview", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.CityOverview
	decodeBody(t, rec, &resp)
	assert.Equal(t, city.ID, resp.CityID)
	assert.Contains(t, resp.Sections, "history")
}

func TestGetCityOverview_NoneYet(t *testing.T) {
	f := newTestFixture(t)

	city := &domain.City{ID: uuid.New(), Name: "杭州"}
	f.places.On("GetCity", mock.Anything, city.ID).Return(city, nil)
	f.places.On("GetCityOverview", mock.Anything, city.ID).Return(nil, domain.ErrNotFound)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/cities/"+city.ID.String()+"/overview", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
