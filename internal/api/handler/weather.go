// Package handler provides HTTP handlers for the Nimbus API.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/api/middleware"
	"github.com/nimbuswx/nimbus/internal/api/models"
	"github.com/nimbuswx/nimbus/internal/api/response"
	"github.com/nimbuswx/nimbus/internal/weather"
)

// maxBatchBodyBytes bounds the POST /v1/weather/batch body.
const maxBatchBodyBytes = 64 << 10

// WeatherHandler handles observation and forecast endpoints.
type WeatherHandler struct {
	service    *weather.Service
	log        zerolog.Logger
	retryAfter int
}

// NewWeatherHandler creates a new WeatherHandler. retryAfterSeconds is sent
// with 503 responses when positive.
func NewWeatherHandler(service *weather.Service, log zerolog.Logger, retryAfterSeconds int) *WeatherHandler {
	return &WeatherHandler{
		service:    service,
		log:        log,
		retryAfter: retryAfterSeconds,
	}
}

// GetCurrent handles GET /v1/weather/current - fresh observation with cache
// fallback. Query: lat, lon, city, country, fallback (default true).
func (h *WeatherHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	loc, errs := locationFromQuery(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid location", errs)
		return
	}

	useFallback := true
	if raw := r.URL.Query().Get("fallback"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(w, r, "invalid fallback flag", []models.FieldError{
				{Field: "fallback", Message: "must be true or false", Code: "INVALID"},
			})
			return
		}
		useFallback = v
	}

	obs, outcome := h.service.FetchWithFallback(r.Context(), loc, useFallback)
	w.Header().Set(middleware.CacheOutcomeHeader, string(toCacheOutcome(outcome)))

	if obs == nil {
		response.NoData(w, r, fmt.Sprintf("no observation available for %s", loc), h.retryAfter)
		return
	}
	response.JSON(w, r, http.StatusOK, toObservation(obs, outcome))
}

// GetCached handles GET /v1/weather/cached - cache read without touching the
// upstream.
func (h *WeatherHandler) GetCached(w http.ResponseWriter, r *http.Request) {
	loc, errs := locationFromQuery(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid location", errs)
		return
	}

	obs, ok := h.service.GetCachedData(loc)
	if !ok {
		response.NotFound(w, r, fmt.Sprintf("no cached observation for %s", loc))
		return
	}
	response.JSON(w, r, http.StatusOK, toObservation(obs, weather.OutcomeStale))
}

// Batch handles POST /v1/weather/batch - fresh observations for several
// locations. Locations that could not be fetched are omitted.
func (h *WeatherHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var input models.BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, r, "validation failed", fieldErrors(err))
		return
	}

	locs := make([]weather.Location, 0, len(input.Locations))
	var errs []models.FieldError
	for i, in := range input.Locations {
		loc, err := weather.NewLocation(*in.Lat, *in.Lon, in.City, in.Country)
		if err != nil {
			errs = append(errs, models.FieldError{
				Field:   fmt.Sprintf("locations[%d]", i),
				Message: err.Error(),
				Code:    "INVALID_LOCATION",
			})
			continue
		}
		locs = append(locs, loc)
	}
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid location", errs)
		return
	}

	observations := h.service.FetchMany(r.Context(), locs)

	out := models.BatchResponse{
		Requested:    len(locs),
		Observations: make([]models.Observation, 0, len(observations)),
	}
	for _, obs := range observations {
		out.Observations = append(out.Observations, toObservation(obs, weather.OutcomeFresh))
	}
	response.JSON(w, r, http.StatusOK, out)
}

// GetForecast handles GET /v1/weather/forecast - forecast window for a
// location. Forecasts are not cached.
func (h *WeatherHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	loc, errs := locationFromQuery(r)
	if len(errs) > 0 {
		response.BadRequest(w, r, "invalid location", errs)
		return
	}

	fc, err := h.service.FetchForecast(r.Context(), loc)
	if err != nil {
		if !errors.Is(err, weather.ErrNoForecast) {
			h.log.Error().Err(err).Str("location", loc.Key()).Msg("forecast failed")
		}
		response.NoData(w, r, fmt.Sprintf("no forecast available for %s", loc), h.retryAfter)
		return
	}
	response.JSON(w, r, http.StatusOK, toForecast(fc))
}

// locationFromQuery reads lat, lon, city and country from the query string.
func locationFromQuery(r *http.Request) (weather.Location, []models.FieldError) {
	q := r.URL.Query()
	var errs []models.FieldError

	lat, err := parseCoordinate(q.Get("lat"))
	if err != nil {
		errs = append(errs, models.FieldError{Field: "lat", Message: err.Error(), Code: "INVALID"})
	}
	lon, err := parseCoordinate(q.Get("lon"))
	if err != nil {
		errs = append(errs, models.FieldError{Field: "lon", Message: err.Error(), Code: "INVALID"})
	}
	city := strings.TrimSpace(q.Get("city"))
	if city == "" {
		errs = append(errs, models.FieldError{Field: "city", Message: "is required", Code: "REQUIRED"})
	}
	country := strings.TrimSpace(q.Get("country"))
	if country == "" {
		errs = append(errs, models.FieldError{Field: "country", Message: "is required", Code: "REQUIRED"})
	}
	if len(errs) > 0 {
		return weather.Location{}, errs
	}

	loc, err := weather.NewLocation(lat, lon, city, country)
	if err != nil {
		return weather.Location{}, []models.FieldError{{Field: "location", Message: err.Error(), Code: "INVALID_LOCATION"}}
	}
	return loc, nil
}

func parseCoordinate(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	return v, nil
}
