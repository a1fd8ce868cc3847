package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/weather"
)

// Job types accepted on the subscription.
const (
	JobObservationRefresh = "observation_refresh"
	JobCacheSweep         = "cache_sweep"
	JobHealthCheck        = "health_check"
)

// ErrUnknownJob is returned by Dispatch for a job type it does not handle.
// Such messages are acked so they are not redelivered.
var ErrUnknownJob = errors.New("unknown job type")

// errBadMessage marks payloads that will never parse; they are acked too.
var errBadMessage = errors.New("malformed job message")

// JobMessage is a job request published to the worker topic.
type JobMessage struct {
	JobType string `json:"job_type"`
	// Locations limits an observation_refresh to these locations. Empty
	// means every configured location.
	Locations []JobLocation `json:"locations,omitempty"`
}

// JobLocation is a location inside a JobMessage.
type JobLocation struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// Dispatcher executes job messages against a RefreshJob. It is independent of
// the transport so it can be driven by Pub/Sub or called directly.
type Dispatcher struct {
	job    *RefreshJob
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher for job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Dispatch parses data as a JobMessage and runs it.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: %w", errBadMessage, err)
	}

	switch msg.JobType {
	case JobObservationRefresh:
		return d.refresh(ctx, msg)
	case JobCacheSweep:
		d.job.Sweep()
		return nil
	case JobHealthCheck:
		return d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
}

func (d *Dispatcher) refresh(ctx context.Context, msg JobMessage) error {
	locs := d.job.Config().Locations
	if len(msg.Locations) > 0 {
		locs = make([]weather.Location, 0, len(msg.Locations))
		for _, l := range msg.Locations {
			loc, err := weather.NewLocation(l.Lat, l.Lon, l.City, l.Country)
			if err != nil {
				return fmt.Errorf("%w: %w", errBadMessage, err)
			}
			locs = append(locs, loc)
		}
	}

	result := d.job.RunFor(ctx, locs)

	// Redeliver when most of the batch failed; the cache keeps serving
	// stale entries meanwhile.
	if result.Failed > result.Refreshed {
		return fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Requested)
	}
	return nil
}

// healthCheck refreshes the first configured location to verify upstream
// connectivity end to end.
func (d *Dispatcher) healthCheck(ctx context.Context) error {
	locs := d.job.Config().Locations
	if len(locs) == 0 {
		return nil
	}

	result := d.job.RunFor(ctx, locs[:1])
	if result.Refreshed == 0 {
		return fmt.Errorf("health check failed for %s", locs[0])
	}
	d.logger.Debug().Msg("health check passed")
	return nil
}

// PubSubHandler receives job messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger.With().Str("component", "pubsub").Logger(),
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle runs one message and reports whether it should be acked.
func (h *PubSubHandler) handle(ctx context.Context, id string, data []byte) bool {
	start := time.Now()
	logger := h.logger.With().Str("message_id", id).Logger()

	err := h.dispatcher.Dispatch(ctx, data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(start)).Msg("job completed successfully")
		return true
	case errors.Is(err, ErrUnknownJob), errors.Is(err, errBadMessage):
		logger.Warn().Err(err).Msg("dropping message")
		return true
	default:
		logger.Error().Err(err).Msg("job failed")
		return false
	}
}
