package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/nimbuswx/nimbus/internal/api/models"
	"github.com/nimbuswx/nimbus/internal/api/response"
	"github.com/nimbuswx/nimbus/internal/weather"
)

// CacheHandler handles observation cache management endpoints.
type CacheHandler struct {
	service *weather.Service
	log     zerolog.Logger
}

// NewCacheHandler creates a new CacheHandler.
func NewCacheHandler(service *weather.Service, log zerolog.Logger) *CacheHandler {
	return &CacheHandler{service: service, log: log}
}

// Stats handles GET /v1/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, toCacheStats(h.service.CacheStats(), h.service.FallbackEnabled()))
}

// Clear handles DELETE /v1/cache - drop every entry.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	removed := h.service.ClearCache()
	h.log.Info().Int("removed", removed).Str("request_id", requestID(r)).Msg("observation cache cleared")
	response.JSON(w, r, http.StatusOK, models.CacheClearResult{Removed: removed})
}

// Sweep handles POST /v1/cache/sweep - drop expired entries only.
func (h *CacheHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	removed := h.service.SweepExpired()
	response.JSON(w, r, http.StatusOK, models.CacheClearResult{Removed: removed})
}

// GetFallback handles GET /v1/cache/fallback.
func (h *CacheHandler) GetFallback(w http.ResponseWriter, r *http.Request) {
	enabled := h.service.FallbackEnabled()
	response.JSON(w, r, http.StatusOK, models.FallbackSetting{Enabled: &enabled})
}

// SetFallback handles PUT /v1/cache/fallback - switch stale reads on or off.
func (h *CacheHandler) SetFallback(w http.ResponseWriter, r *http.Request) {
	var input models.FallbackSetting
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, r, "validation failed", fieldErrors(err))
		return
	}

	if *input.Enabled {
		h.service.EnableFallback()
	} else {
		h.service.DisableFallback()
	}
	enabled := h.service.FallbackEnabled()
	response.JSON(w, r, http.StatusOK, models.FallbackSetting{Enabled: &enabled})
}
