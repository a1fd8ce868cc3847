// Package openweathermap fetches raw payloads from the OpenWeatherMap 2.5 API.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/provider/resilience"
	"github.com/nimbuswx/nimbus/internal/weather"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "openweathermap"

	// DefaultBaseURL is the OpenWeatherMap API base URL.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 1 << 20
)

// ErrNoAPIKey is wrapped in the unconfigured failure returned when no key is set.
var ErrNoAPIKey = errors.New("openweathermap API key not configured")

// ClientConfig holds configuration for the OpenWeatherMap client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key. Empty makes every call fail as
	// unconfigured without touching the network.
	APIKey string

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient sends the requests (optional). If nil, a resilient client
	// with defaults is used.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeatherMap API client. Every method makes at most one
// HTTP request; retrying is the caller's concern.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new OpenWeatherMap client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// FetchCurrent fetches the current conditions payload for loc.
func (c *Client) FetchCurrent(ctx context.Context, loc weather.Location) (weather.RawPayload, error) {
	return c.get(ctx, "fetch current", "/weather", loc)
}

// FetchForecastWindow fetches the 5 day / 3 hour forecast payload for loc.
func (c *Client) FetchForecastWindow(ctx context.Context, loc weather.Location) (weather.RawPayload, error) {
	return c.get(ctx, "fetch forecast", "/forecast", loc)
}

func (c *Client) get(ctx context.Context, op, path string, loc weather.Location) (weather.RawPayload, error) {
	if c.apiKey == "" {
		c.logger.Warn().Str("op", op).Msg("API key not configured")
		return nil, weather.NewFetchError(weather.KindUnconfigured, op, ErrNoAPIKey)
	}

	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	query.Set("appid", c.apiKey)
	query.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, weather.NewFetchError(weather.KindUnexpected, op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, weather.NewFetchError(weather.KindNetwork, op, fmt.Errorf("executing request: %w", err))
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)

	if resp.StatusCode != http.StatusOK {
		return nil, weather.NewFetchError(weather.KindRemote, op, statusError(resp.StatusCode, body))
	}

	var payload weather.RawPayload
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return nil, weather.NewFetchError(weather.KindRemote, op, fmt.Errorf("decoding response: %w", err))
	}

	c.logger.Debug().Str("op", op).Str("location", loc.Key()).Msg("fetched payload")
	return payload, nil
}

// statusError builds an error from a non-200 response, including the API's
// own message when the body carries one.
func statusError(status int, body io.Reader) error {
	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&apiErr); err == nil && apiErr.Message != "" {
		return fmt.Errorf("unexpected status code %d: %s", status, apiErr.Message)
	}
	return fmt.Errorf("unexpected status code %d", status)
}
