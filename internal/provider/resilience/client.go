package resilience

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned when the breaker rejects a request without
// sending it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the provider HTTP client.
type ClientConfig struct {
	// Name identifies the provider in the registry and breaker.
	Name string

	// Timeout bounds a single request, including reading headers.
	// Default: 10 seconds
	Timeout time.Duration

	// CircuitBreaker configures the breaker. Nil disables it.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client and its outcomes.
	Registry *Registry

	// Transport overrides the underlying round tripper (tests, tracing).
	Transport http.RoundTripper
}

// DefaultClientConfig returns the client settings used for weather providers.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:           name,
		Timeout:        10 * time.Second,
		CircuitBreaker: &cb,
	}
}

// Client sends exactly one HTTP request per Do call. Retrying is left to the
// caller (see Retry) so that every attempt is visible to the caller's policy.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	registry   *Registry
}

// NewClient creates a provider client and registers it when cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Client{
		name: cfg.Name,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		registry: cfg.Registry,
	}
	if cfg.CircuitBreaker != nil {
		c.breaker = NewCircuitBreaker[*http.Response](*cfg.CircuitBreaker) //nolint:bodyclose // type param, not response
	}
	if c.registry != nil {
		c.registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// Do sends req once. A 5xx response counts as a breaker failure but is still
// returned with a nil error so the caller can classify the status. When the
// breaker is open, Do returns ErrCircuitOpen without touching the network.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	send := func() (*http.Response, error) {
		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	}

	var (
		resp *http.Response
		err  error
	)
	if c.breaker != nil {
		resp, err = c.breaker.Execute(send) //nolint:bodyclose // returned to caller
	} else {
		resp, err = send() //nolint:bodyclose // returned to caller
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.recordFailure(ErrCircuitOpen)
		return nil, ErrCircuitOpen
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) && resp != nil {
		c.recordFailure(serverErr)
		return resp, nil
	}
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	c.recordSuccess()
	return resp, nil
}

func (c *Client) recordSuccess() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) recordFailure(err error) {
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}

// ServerError represents an HTTP 5xx response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the breaker state. A client without a breaker
// always reports closed.
func (c *Client) CircuitBreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// CircuitBreakerCounts returns the breaker counters.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	if c.breaker == nil {
		return gobreaker.Counts{}
	}
	return c.breaker.Counts()
}
