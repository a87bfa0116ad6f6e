package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/terminaltab/internal/terminal/appearance"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/registry"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers contains the REST handlers for terminal management.
type Handlers struct {
	registry   *registry.Registry
	appearance *appearance.Source
	logger     *zap.Logger
	startedAt  time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(reg *registry.Registry, source *appearance.Source, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry:   reg,
		appearance: source,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Register mounts the routes on r.
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/terminals", h.ListTerminals)
	r.GET("/terminals/restorable", h.ListRestorable)
	r.GET("/terminals/:id", h.GetTerminal)
	r.DELETE("/terminals/:id", h.CloseTerminal)
	r.POST("/terminals/:id/visibility", h.SetVisibility)
	r.GET("/appearance", h.GetAppearance)
	r.POST("/appearance/refresh", h.RefreshAppearance)
}

// Health handles health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"terminals": h.registry.Len(),
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// ListTerminals lists live terminal sessions
func (h *Handlers) ListTerminals(c *gin.Context) {
	terminals := h.registry.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"terminals": terminals,
		"count":     len(terminals),
	})
}

// ListRestorable lists persisted sessions that can be reattached
func (h *Handlers) ListRestorable(c *gin.Context) {
	items, err := h.registry.Restorable(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list restorable sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"terminals": items,
		"count":     len(items),
	})
}

// GetTerminal returns one live session
func (h *Handlers) GetTerminal(c *gin.Context) {
	s, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "terminal not found"})
		return
	}
	c.JSON(http.StatusOK, s.Info(c.Request.Context()))
}

// CloseTerminal explicitly closes a session, ending its process
func (h *Handlers) CloseTerminal(c *gin.Context) {
	if err := h.registry.Close(c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "closing"})
}

type visibilityRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// SetVisibility records whether the session's surface is foregrounded
func (h *Handlers) SetVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.registry.SetVisible(c.Param("id"), *req.Visible); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visible": *req.Visible})
}

// GetAppearance returns the current font and color settings
func (h *Handlers) GetAppearance(c *gin.Context) {
	c.JSON(http.StatusOK, h.appearance.Current())
}

// RefreshAppearance reloads the appearance file and tells every surface to
// re-read it
func (h *Handlers) RefreshAppearance(c *gin.Context) {
	changed, err := h.appearance.Reload()
	if err != nil {
		h.logger.Warn("Failed to reload appearance", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.registry.BroadcastThemeChange()
	c.JSON(http.StatusOK, gin.H{
		"changed":    changed,
		"appearance": h.appearance.Current(),
	})
}

func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
