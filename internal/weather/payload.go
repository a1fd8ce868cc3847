package weather

import (
	"encoding/json"
	"math"
	"time"
)

// RawPayload is an unvalidated upstream response body, decoded into nested
// maps and slices as encoding/json produces them.
type RawPayload map[string]any

// Object returns the nested object under key, or nil.
func (p RawPayload) Object(key string) RawPayload {
	if p == nil {
		return nil
	}
	m, ok := p[key].(map[string]any)
	if !ok {
		return nil
	}
	return RawPayload(m)
}

// List returns the nested array under key, or nil.
func (p RawPayload) List(key string) []any {
	if p == nil {
		return nil
	}
	l, _ := p[key].([]any)
	return l
}

// Has reports whether key is present, even with a null value.
func (p RawPayload) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p[key]
	return ok
}

// Number returns the numeric value under key. ok is false when the key is
// missing or the value is not a finite number.
func (p RawPayload) Number(key string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	var f float64
	switch v := p[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		n, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// String returns the string value under key.
func (p RawPayload) String(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	s, ok := p[key].(string)
	return s, ok
}

// condition returns weather[0].main.
func (p RawPayload) condition() string {
	list := p.List("weather")
	if len(list) == 0 {
		return ""
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := RawPayload(first).String("main")
	return s
}

// precipitation returns rain.1h, then rain.3h, else 0.
func (p RawPayload) precipitation() float64 {
	rain := p.Object("rain")
	if v, ok := rain.Number("1h"); ok {
		return v
	}
	if v, ok := rain.Number("3h"); ok {
		return v
	}
	return 0
}

// timestamp returns the unix "dt" field, or fallback.
func (p RawPayload) timestamp(fallback time.Time) time.Time {
	if dt, ok := p.Number("dt"); ok && dt > 0 {
		return time.Unix(int64(dt), 0).UTC()
	}
	return fallback
}

// observationFromPayload converts a validated current-conditions payload.
func observationFromPayload(loc Location, p RawPayload, fetchedAt time.Time) (*Observation, error) {
	main := p.Object("main")
	wind := p.Object("wind")
	clouds := p.Object("clouds")

	temp, _ := main.Number("temp")
	humidity, _ := main.Number("humidity")
	pressure, _ := main.Number("pressure")
	speed, _ := wind.Number("speed")
	deg, _ := wind.Number("deg")
	cover, _ := clouds.Number("all")

	return NewObservation(ObservationParams{
		Location:      loc,
		ObservedAt:    p.timestamp(fetchedAt),
		FetchedAt:     fetchedAt,
		Temperature:   temp,
		Humidity:      humidity,
		Pressure:      pressure,
		WindSpeed:     speed,
		WindDirection: deg,
		Precipitation: p.precipitation(),
		CloudCover:    cover,
		Condition:     p.condition(),
	})
}

// forecastFromPayload converts a forecast window payload. Entries that are
// incomplete or out of range are skipped; an empty result is rejected.
func forecastFromPayload(loc Location, p RawPayload, fetchedAt time.Time) (*Forecast, error) {
	if len(p) == 0 {
		return nil, rejectf("payload is empty")
	}
	list := p.List("list")
	if len(list) == 0 {
		return nil, rejectf("missing forecast list")
	}

	check := PayloadValidator{}
	forecast := &Forecast{
		Location:  loc,
		Points:    make([]ForecastPoint, 0, len(list)),
		FetchedAt: fetchedAt,
	}

	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		entry := RawPayload(m)
		if err := check.Validate(entry); err != nil {
			continue
		}

		main := entry.Object("main")
		wind := entry.Object("wind")
		pt := ForecastPoint{
			Time:          entry.timestamp(time.Time{}),
			Precipitation: entry.precipitation(),
			Condition:     entry.condition(),
		}
		pt.Temperature, _ = main.Number("temp")
		pt.Humidity, _ = main.Number("humidity")
		pt.Pressure, _ = main.Number("pressure")
		pt.WindSpeed, _ = wind.Number("speed")
		pt.WindDirection, _ = wind.Number("deg")
		pt.CloudCover, _ = entry.Object("clouds").Number("all")
		if pop, ok := entry.Number("pop"); ok && pop >= 0 && pop <= 1 {
			pt.PrecipProb = pop
		}
		if pt.Time.IsZero() {
			continue
		}

		forecast.Points = append(forecast.Points, pt)
	}

	if len(forecast.Points) == 0 {
		return nil, rejectf("no valid forecast entries")
	}
	return forecast, nil
}
