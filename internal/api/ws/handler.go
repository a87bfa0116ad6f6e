package ws

import (
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/terminaltab/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/terminaltab/internal/terminal/registry"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler attaches WebSocket surfaces to terminal sessions.
type Handler struct {
	registry *registry.Registry
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(reg *registry.Registry, logger *zap.Logger, metrics *monitoring.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: reg,
		logger:   logger,
		metrics:  metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // host binds to loopback by default
			},
		},
	}
}

// HandleConnection upgrades the request and binds the surface to a new
// session, or to a restored one when ?restore=<id> is given.
//
//	GET /terminals/ws?cwd=<path>&persistent=<bool>&visible=<bool>
//	GET /terminals/ws?restore=<id>
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	ctx := c.Request.Context()
	logger := h.logger.With(tracing.Field(ctx))

	panel := NewPanel(conn, logger, h.metrics)
	panel.Start()

	if restoreID := c.Query("restore"); restoreID != "" {
		s, err := h.registry.Restore(ctx, panel, restoreID)
		if err != nil {
			logger.Warn("Restore rejected",
				zap.String("session_id", restoreID),
				zap.String("surface_id", panel.ID().String()),
				zap.Error(err))
			return
		}
		logger.Info("Surface attached to restored session",
			zap.String("session_id", s.ID()),
			zap.String("surface_id", panel.ID().String()))
		return
	}

	s, err := h.registry.Create(ctx, panel, registry.CreateRequest{
		Cwd:        c.Query("cwd"),
		Persistent: queryBool(c, "persistent", false),
		Visible:    queryBool(c, "visible", true),
	})
	if err != nil {
		logger.Warn("Create rejected", zap.Error(err))
		return
	}
	logger.Info("Surface attached to new session",
		zap.String("session_id", s.ID()),
		zap.String("surface_id", panel.ID().String()))
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetQuery(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
