package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/nimbuswx/nimbus/internal/api/middleware"
	"github.com/nimbuswx/nimbus/internal/api/models"
	"github.com/nimbuswx/nimbus/internal/api/response"
	"github.com/nimbuswx/nimbus/internal/provider/resilience"
	"github.com/nimbuswx/nimbus/internal/weather"
)

// Degradation flags reported by GET /v1/ops/status.
const (
	FlagFallbackDisabled = "CACHE_FALLBACK_DISABLED"
	FlagUpstreamOpen     = "UPSTREAM_CIRCUIT_OPEN"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	service   *weather.Service
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. registry may be nil when no
// provider clients are tracked.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, service *weather.Service) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		service:   service,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. The service is not ready when
// every upstream circuit is open and the cache has nothing live to serve.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	providers := h.providers()
	stats := h.service.CacheStats()

	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]any{
			"activeCacheEntries": stats.Active,
		},
	}

	if allOpen(providers) && stats.Active == 0 {
		health.Status = models.HealthStatusFail
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providers()
	stats := h.service.CacheStats()
	fallback := h.service.FallbackEnabled()

	status := models.SystemStatus{
		Status:    models.HealthStatusOK,
		Time:      models.Timestamp(h.now()),
		Providers: make([]models.ProviderStatus, 0, len(providers)),
		Cache:     toCacheStats(stats, fallback),
	}

	cacheDetail := fmt.Sprintf("%d active, %d expired, ttl %s", stats.Active, stats.Expired, stats.TTL)
	cacheStatus := models.SubsystemStatus{Name: "observation-cache", Status: models.HealthStatusOK, Detail: &cacheDetail}
	if !fallback {
		cacheStatus.Status = models.HealthStatusDegraded
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, FlagFallbackDisabled)
	}
	status.Subsystems = []models.SubsystemStatus{cacheStatus}

	anyOpen := false
	for _, p := range providers {
		ps := models.ProviderStatus{
			Provider:            p.Name,
			Status:              healthStatus(p),
			CircuitState:        p.CircuitState.String(),
			ConsecutiveFailures: p.Counts.ConsecutiveFailures,
		}
		if p.LastSuccessAt != nil {
			ts := models.Timestamp(*p.LastSuccessAt)
			ps.LastSuccessAt = &ts
		}
		if p.LastFailureAt != nil {
			ts := models.Timestamp(*p.LastFailureAt)
			ps.LastFailureAt = &ts
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		if p.IsUnhealthy() {
			anyOpen = true
		}
		status.Providers = append(status.Providers, ps)
	}
	if anyOpen {
		status.ActiveDegradationFlags = append(status.ActiveDegradationFlags, FlagUpstreamOpen)
	}

	switch {
	case allOpen(providers) && stats.Active == 0:
		status.Status = models.HealthStatusFail
	case len(status.ActiveDegradationFlags) > 0 || anyDegraded(providers):
		status.Status = models.HealthStatusDegraded
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providers() []*resilience.ProviderHealth {
	if h.registry == nil {
		return nil
	}
	return h.registry.All()
}

func healthStatus(p *resilience.ProviderHealth) models.HealthStatus {
	switch {
	case p.IsUnhealthy():
		return models.HealthStatusFail
	case p.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

// allOpen reports whether there is at least one provider and every one has an
// open circuit.
func allOpen(providers []*resilience.ProviderHealth) bool {
	if len(providers) == 0 {
		return false
	}
	for _, p := range providers {
		if !p.IsUnhealthy() {
			return false
		}
	}
	return true
}

func anyDegraded(providers []*resilience.ProviderHealth) bool {
	for _, p := range providers {
		if p.IsDegraded() {
			return true
		}
	}
	return false
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
