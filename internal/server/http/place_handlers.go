package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/google/uuid"
)

// listCities handles GET /api/v1/cities.
func (s *Server) listCities(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePageParams(r)

	cities, totalCount, err := s.places.ListCities(r.Context(), limit, offset)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	responses := make([]cityResponse, len(cities))
	for i, city := range cities {
		responses[i] = cityToResponse(city)
	}

	writeJSON(w, http.StatusOK, listCitiesResponse{
		Cities:     responses,
		TotalCount: totalCount,
		Page:       pageFromOffset(offset, limit),
		Limit:      limit,
	})
}

// cityID parses the cityID URL parameter and verifies the city exists, so
// place listings on unknown cities return 404 rather than an empty list.
func (s *Server) cityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := parseUUID(w, chi.URLParam(r, "cityID"), "city_id")
	if !ok {
		return uuid.Nil, false
	}
	if _, err := s.places.GetCity(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return uuid.Nil, false
	}
	return id, true
}

// listCityAttractions handles GET /api/v1/cities/{cityID}/attractions.
func (s *Server) listCityAttractions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cityID(w, r)
	if !ok {
		return
	}

	attractions, err := s.places.ListAttractions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"attractions": attractions,
		"count":       len(attractions),
	})
}

// listCityRestaurants handles GET /api/v1/cities/{cityID}/restaurants.
func (s *Server) listCityRestaurants(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cityID(w, r)
	if !ok {
		return
	}

	restaurants, err := s.places.ListRestaurants(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"restaurants": restaurants,
		"count":       len(restaurants),
	})
}

// listCityHotels handles GET /api/v1/cities/{cityID}/hotels.
func (s *Server) listCityHotels(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cityID(w, r)
	if !ok {
		return
	}

	hotels, err := s.places.ListHotels(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hotels": hotels,
		"count":  len(hotels),
	})
}

// getCityOverview handles GET /api/v1/cities/{cityID}/overview.
func (s *Server) getCityOverview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.cityID(w, r)
	if !ok {
		return
	}

	overview, err := s.places.GetCityOverview(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, overview)
}
