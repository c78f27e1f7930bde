package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mr1hm/go-shelter-finder/internal/config"
	"github.com/mr1hm/go-shelter-finder/internal/location"
	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/observability"
	"github.com/mr1hm/go-shelter-finder/internal/repository"
	"github.com/mr1hm/go-shelter-finder/internal/settings"
	"github.com/mr1hm/go-shelter-finder/internal/shelter"
	"github.com/mr1hm/go-shelter-finder/internal/stream"
)

const maxListLimit = 500

type Handler struct {
	store       repository.Store
	settings    settings.Store
	broadcaster *stream.Broadcaster
	metrics     *observability.Metrics
	resolver    config.ResolverConfig
	location    config.LocationConfig
}

func NewHandler(
	store repository.Store,
	settingsStore settings.Store,
	broadcaster *stream.Broadcaster,
	metrics *observability.Metrics,
	resolver config.ResolverConfig,
	loc config.LocationConfig,
) *Handler {
	return &Handler{
		store:       store,
		settings:    settingsStore,
		broadcaster: broadcaster,
		metrics:     metrics,
		resolver:    resolver,
		location:    loc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/api/shelters", h.getShelters)
	r.GET("/api/shelters/nearest", h.getNearest)
	r.GET("/api/shelters/stream", h.streamDatasets)
	r.GET("/api/shelters/:source/:id", h.getShelter)
	r.GET("/api/datasets", h.getDatasets)
	r.GET("/api/settings", h.getSettings)
	r.PUT("/api/settings", h.putSettings)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getShelters(c *gin.Context) {
	filter := repository.Filter{
		Limit: 100, // Default to 100 shelters if limit param not supplied
	}
	applyFilter(c, &filter)
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off > 0 {
			filter.Offset = off
		}
	}

	shelters, err := h.store.ListShelters(c.Request.Context(), filter)
	if err != nil {
		slog.Error("error listing shelters", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch shelters",
		})
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, toGeoJSON(shelters))
}

func (h *Handler) getNearest(c *gin.Context) {
	start := time.Now()
	defer func() {
		h.metrics.ResolveDuration.Observe(time.Since(start).Seconds())
	}()
	ctx := c.Request.Context()

	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		h.rejectNearest(c, http.StatusBadRequest, "invalid", "lat and lng are required numbers")
		return
	}

	limit := h.resolver.DefaultLimit
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 || n > h.resolver.MaxLimit {
			h.rejectNearest(c, http.StatusBadRequest, "invalid", "limit must be between 0 and "+strconv.Itoa(h.resolver.MaxLimit))
			return
		}
		limit = n
	}

	filter := repository.Filter{}
	applyFilter(c, &filter)

	provider := location.NewGated(location.Static{Coordinate: models.Coordinate{Latitude: lat, Longitude: lng}}, h.settings)
	perm, err := provider.RequestPermission(ctx)
	if err != nil {
		slog.Error("error requesting location permission", "error", err)
		h.rejectNearest(c, http.StatusInternalServerError, "error", "failed to load settings")
		return
	}
	if perm != location.PermissionGranted {
		h.rejectNearest(c, http.StatusForbidden, "denied", "location services are disabled")
		return
	}
	locCtx, cancel := context.WithTimeout(ctx, h.location.Timeout)
	ref, err := provider.CurrentCoordinate(locCtx)
	timedOut := locCtx.Err() != nil
	cancel()
	if err != nil {
		if timedOut {
			h.rejectNearest(c, http.StatusGatewayTimeout, "error", "timed out acquiring location")
			return
		}
		h.rejectNearest(c, http.StatusBadRequest, "invalid", "invalid coordinate")
		return
	}

	shelters, err := h.store.ListShelters(ctx, filter)
	if err != nil {
		slog.Error("error listing shelters", "error", err)
		h.rejectNearest(c, http.StatusInternalServerError, "error", "failed to fetch shelters")
		return
	}

	// the same shelter may be listed by more than one source
	ranked, err := shelter.ResolveNearest(ref, shelter.Dedupe(shelters), limit)
	if err != nil {
		slog.Error("error ranking shelters", "error", err)
		h.rejectNearest(c, http.StatusInternalServerError, "error", "failed to rank shelters")
		return
	}
	h.metrics.ResolveRequests.WithLabelValues("success").Inc()

	if c.Query("format") == "geojson" {
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, toGeoJSON(ranked))
		return
	}

	out := make([]ShelterResponse, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, toResponse(s))
	}
	c.JSON(http.StatusOK, gin.H{
		"reference": gin.H{"latitude": ref.Latitude, "longitude": ref.Longitude},
		"shelters":  out,
	})
}

func (h *Handler) rejectNearest(c *gin.Context, status int, outcome, msg string) {
	h.metrics.ResolveRequests.WithLabelValues(outcome).Inc()
	c.JSON(status, gin.H{"error": msg})
}

func (h *Handler) getShelter(c *gin.Context) {
	s, err := h.store.GetShelter(c.Request.Context(), c.Param("source"), c.Param("id"))
	if err != nil {
		slog.Error("error fetching shelter", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch shelter"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "shelter not found"})
		return
	}
	c.JSON(http.StatusOK, toResponse(*s))
}

func (h *Handler) getDatasets(c *gin.Context) {
	statuses, err := h.store.ListSyncStatus(c.Request.Context())
	if err != nil {
		slog.Error("error listing dataset syncs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch datasets"})
		return
	}
	if statuses == nil {
		statuses = []models.SyncStatus{}
	}
	c.JSON(http.StatusOK, gin.H{"datasets": statuses})
}

func (h *Handler) getSettings(c *gin.Context) {
	s, err := h.settings.Load(c.Request.Context())
	if err != nil {
		slog.Error("error loading settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// settingsPatch leaves fields the client omitted untouched.
type settingsPatch struct {
	Notifications    *bool `json:"notifications"`
	LocationServices *bool `json:"locationServices"`
	OfflineMode      *bool `json:"offlineMode"`
}

func (h *Handler) putSettings(c *gin.Context) {
	var patch settingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings document"})
		return
	}

	ctx := c.Request.Context()
	s, err := h.settings.Load(ctx)
	if err != nil {
		slog.Error("error loading settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	if patch.Notifications != nil {
		s.Notifications = *patch.Notifications
	}
	if patch.LocationServices != nil {
		s.LocationServices = *patch.LocationServices
	}
	if patch.OfflineMode != nil {
		s.OfflineMode = *patch.OfflineMode
	}

	if err := h.settings.Save(ctx, s); err != nil {
		slog.Error("error saving settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) streamDatasets(c *gin.Context) {
	ctx := c.Request.Context()

	s, err := h.settings.Load(ctx)
	if err != nil {
		slog.Error("error loading settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}
	if !s.Notifications {
		c.JSON(http.StatusForbidden, gin.H{"error": "notifications are disabled"})
		return
	}
	if h.broadcaster == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "streaming unavailable"})
		return
	}

	id, events := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(id)
	h.metrics.StreamSubscribers.Inc()
	defer h.metrics.StreamSubscribers.Dec()

	slog.Info("new stream subscriber", "id", id)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stream subscriber disconnected", "id", id)
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent("dataset", e)
			c.Writer.Flush()
		}
	}
}

// applyFilter reads the shared source and type query params.
func applyFilter(c *gin.Context, filter *repository.Filter) {
	filter.Source = c.Query("source")
	if t := strings.ToLower(strings.TrimSpace(c.Query("type"))); t != "" {
		ht := models.HazardType(t)
		filter.Type = &ht
	}
}
