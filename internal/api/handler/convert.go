package handler

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nimbuswx/nimbus/internal/api/models"
	"github.com/nimbuswx/nimbus/internal/weather"
)

var validate = validator.New()

func toLocation(loc weather.Location) models.Location {
	return models.Location{
		Lat:     loc.Latitude,
		Lon:     loc.Longitude,
		City:    loc.City,
		Country: loc.Country,
	}
}

func toObservation(obs *weather.Observation, outcome weather.Outcome) models.Observation {
	return models.Observation{
		Location:      toLocation(obs.Location()),
		ObservedAt:    models.Timestamp(obs.ObservedAt()),
		FetchedAt:     models.Timestamp(obs.FetchedAt()),
		Temperature:   obs.Temperature(),
		Humidity:      obs.Humidity(),
		Pressure:      obs.Pressure(),
		WindSpeed:     obs.WindSpeed(),
		WindDirection: obs.WindDirection(),
		Precipitation: obs.Precipitation(),
		CloudCover:    obs.CloudCover(),
		Condition:     obs.Condition(),
		Outcome:       toCacheOutcome(outcome),
	}
}

func toCacheOutcome(outcome weather.Outcome) models.CacheOutcome {
	switch outcome {
	case weather.OutcomeFresh:
		return models.CacheOutcomeFresh
	case weather.OutcomeStale:
		return models.CacheOutcomeStale
	case weather.OutcomeMiss:
		return models.CacheOutcomeMiss
	default:
		return ""
	}
}

func toForecast(fc *weather.Forecast) models.Forecast {
	points := make([]models.ForecastPoint, 0, len(fc.Points))
	for _, p := range fc.Points {
		points = append(points, models.ForecastPoint{
			Time:          models.Timestamp(p.Time),
			Temperature:   p.Temperature,
			Humidity:      p.Humidity,
			Pressure:      p.Pressure,
			WindSpeed:     p.WindSpeed,
			WindDirection: p.WindDirection,
			CloudCover:    p.CloudCover,
			Precipitation: p.Precipitation,
			PrecipProb:    p.PrecipProb,
			Condition:     p.Condition,
		})
	}
	return models.Forecast{
		Location:  toLocation(fc.Location),
		FetchedAt: models.Timestamp(fc.FetchedAt),
		Points:    points,
	}
}

func toCacheStats(stats weather.CacheStats, fallbackEnabled bool) models.CacheStats {
	return models.CacheStats{
		Total:           stats.Total,
		Active:          stats.Active,
		Expired:         stats.Expired,
		TTLSeconds:      stats.TTL.Seconds(),
		Hits:            stats.Hits,
		Misses:          stats.Misses,
		Evictions:       stats.Evictions,
		FallbackEnabled: fallbackEnabled,
	}
}

// fieldErrors converts validator errors into API field errors. Other errors
// yield nil.
func fieldErrors(err error) []models.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   jsonPath(fe.Namespace()),
			Message: fieldMessage(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

// jsonPath turns "BatchRequest.Locations[0].Lat" into "locations[0].lat".
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " item(s)"
	case "max":
		return "must have at most " + fe.Param() + " item(s)"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
