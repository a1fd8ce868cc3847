package weather

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Weather errors.
var (
	ErrInvalidLocation    = errors.New("invalid location")
	ErrInvalidObservation = errors.New("invalid observation")
)

// validate is shared by the constructors; validator caches struct metadata
// and is safe for concurrent use.
var validate = validator.New()

// Location identifies a point on the globe. City and Country are informational
// and do not take part in key equality.
type Location struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	City      string  `json:"city" validate:"required,max=255"`
	Country   string  `json:"country" validate:"required,max=100"`
}

// NewLocation builds a Location, rejecting out-of-range coordinates and empty names.
func NewLocation(lat, lon float64, city, country string) (Location, error) {
	loc := Location{
		Latitude:  lat,
		Longitude: lon,
		City:      strings.TrimSpace(city),
		Country:   strings.TrimSpace(country),
	}
	if err := validate.Struct(loc); err != nil {
		return Location{}, fmt.Errorf("%w: %s", ErrInvalidLocation, describe(err))
	}
	return loc, nil
}

// Key returns the cache key for the location. Coordinates are rounded to four
// decimal places (~11 m).
func (l Location) Key() string {
	return fmt.Sprintf("%.4f,%.4f", l.Latitude, l.Longitude)
}

// SameKey reports whether two locations share a cache entry.
func (l Location) SameKey(other Location) bool {
	return l.Key() == other.Key()
}

func (l Location) String() string {
	return fmt.Sprintf("%s, %s (%s)", l.City, l.Country, l.Key())
}

// ObservationParams carries the raw values for NewObservation.
type ObservationParams struct {
	Location      Location
	ObservedAt    time.Time `validate:"required"`
	FetchedAt     time.Time
	Temperature   float64 `validate:"gte=-100,lte=60"`
	Humidity      float64 `validate:"gte=0,lte=100"`
	Pressure      float64 `validate:"gt=0"`
	WindSpeed     float64 `validate:"gte=0,lte=150"`
	WindDirection float64 `validate:"gte=0,lte=360"`
	Precipitation float64 `validate:"gte=0"`
	CloudCover    float64 `validate:"gte=0,lte=100"`
	Condition     string  `validate:"required,max=100"`
}

// Observation is a validated, immutable weather reading. The only way to get
// one is NewObservation, so every value in circulation satisfies the physical
// range invariants.
type Observation struct {
	location      Location
	observedAt    time.Time
	fetchedAt     time.Time
	temperature   float64
	humidity      float64
	pressure      float64
	windSpeed     float64
	windDirection float64
	precipitation float64
	cloudCover    float64
	condition     string
}

// NewObservation validates p and returns the observation, or an error wrapping
// ErrInvalidObservation naming every violated field.
func NewObservation(p ObservationParams) (*Observation, error) {
	p.Condition = strings.TrimSpace(p.Condition)
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidObservation, describe(err))
	}
	if p.FetchedAt.IsZero() {
		p.FetchedAt = p.ObservedAt
	}

	return &Observation{
		location:      p.Location,
		observedAt:    p.ObservedAt,
		fetchedAt:     p.FetchedAt,
		temperature:   p.Temperature,
		humidity:      p.Humidity,
		pressure:      p.Pressure,
		windSpeed:     p.WindSpeed,
		windDirection: p.WindDirection,
		precipitation: p.Precipitation,
		cloudCover:    p.CloudCover,
		condition:     p.Condition,
	}, nil
}

func (o *Observation) Location() Location     { return o.location }
func (o *Observation) ObservedAt() time.Time  { return o.observedAt }
func (o *Observation) FetchedAt() time.Time   { return o.fetchedAt }
func (o *Observation) Temperature() float64   { return o.temperature }
func (o *Observation) Humidity() float64      { return o.humidity }
func (o *Observation) Pressure() float64      { return o.pressure }
func (o *Observation) WindSpeed() float64     { return o.windSpeed }
func (o *Observation) WindDirection() float64 { return o.windDirection }
func (o *Observation) Precipitation() float64 { return o.precipitation }
func (o *Observation) CloudCover() float64    { return o.cloudCover }
func (o *Observation) Condition() string      { return o.condition }

// Forecast is a parsed forecast window for a location.
type Forecast struct {
	Location  Location
	Points    []ForecastPoint
	FetchedAt time.Time
}

// ForecastPoint is a single step of a forecast window.
type ForecastPoint struct {
	Time          time.Time
	Temperature   float64
	Humidity      float64
	Pressure      float64
	WindSpeed     float64
	WindDirection float64
	CloudCover    float64
	Precipitation float64 // mm over the step
	PrecipProb    float64 // 0-1
	Condition     string
}

// describe flattens validator errors into "field tag=param" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		part := fe.Field() + " " + fe.Tag()
		if fe.Param() != "" {
			part += "=" + fe.Param()
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}
