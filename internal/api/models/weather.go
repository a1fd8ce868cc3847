package models

// Location identifies the place a reading belongs to.
type Location struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// LocationInput is a location in a request body.
type LocationInput struct {
	Lat     *float64 `json:"lat" validate:"required"`
	Lon     *float64 `json:"lon" validate:"required"`
	City    string   `json:"city" validate:"required"`
	Country string   `json:"country" validate:"required"`
}

// CacheOutcome tells the client where an observation came from.
type CacheOutcome string

const (
	CacheOutcomeFresh CacheOutcome = "FRESH"
	CacheOutcomeStale CacheOutcome = "STALE"
	CacheOutcomeMiss  CacheOutcome = "MISS"
)

// Observation is a weather reading as returned by the API.
type Observation struct {
	Location      Location     `json:"location"`
	ObservedAt    Timestamp    `json:"observedAt"`
	FetchedAt     Timestamp    `json:"fetchedAt"`
	Temperature   float64      `json:"temperatureC"`
	Humidity      float64      `json:"humidityPct"`
	Pressure      float64      `json:"pressureHpa"`
	WindSpeed     float64      `json:"windSpeedMps"`
	WindDirection float64      `json:"windDirectionDeg"`
	Precipitation float64      `json:"precipitationMm"`
	CloudCover    float64      `json:"cloudCoverPct"`
	Condition     string       `json:"condition"`
	Outcome       CacheOutcome `json:"outcome,omitempty"`
}

// BatchRequest asks for current observations at several locations.
type BatchRequest struct {
	Locations []LocationInput `json:"locations" validate:"required,min=1,max=50,dive"`
}

// BatchResponse holds the observations that could be fetched. Locations that
// failed are simply absent.
type BatchResponse struct {
	Requested    int           `json:"requested"`
	Observations []Observation `json:"observations"`
}

// ForecastPoint is one step of a forecast window.
type ForecastPoint struct {
	Time          Timestamp `json:"time"`
	Temperature   float64   `json:"temperatureC"`
	Humidity      float64   `json:"humidityPct"`
	Pressure      float64   `json:"pressureHpa"`
	WindSpeed     float64   `json:"windSpeedMps"`
	WindDirection float64   `json:"windDirectionDeg"`
	CloudCover    float64   `json:"cloudCoverPct"`
	Precipitation float64   `json:"precipitationMm"`
	PrecipProb    float64   `json:"precipitationProbability"`
	Condition     string    `json:"condition"`
}

// Forecast is a forecast window for a location.
type Forecast struct {
	Location  Location        `json:"location"`
	FetchedAt Timestamp       `json:"fetchedAt"`
	Points    []ForecastPoint `json:"points"`
}

// CacheStats reports the state of the observation cache.
type CacheStats struct {
	Total           int     `json:"total"`
	Active          int     `json:"active"`
	Expired         int     `json:"expired"`
	TTLSeconds      float64 `json:"ttlSeconds"`
	Hits            uint64  `json:"hits"`
	Misses          uint64  `json:"misses"`
	Evictions       uint64  `json:"evictions"`
	FallbackEnabled bool    `json:"fallbackEnabled"`
}

// CacheClearResult reports how many entries a clear or sweep removed.
type CacheClearResult struct {
	Removed int `json:"removed"`
}

// FallbackSetting is the body of GET and PUT /v1/cache/fallback.
type FallbackSetting struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
