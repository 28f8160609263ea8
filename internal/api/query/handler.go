package query

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/domain"
	"github.com/yuhao-w/deepquery/internal/protocol"
	"github.com/yuhao-w/deepquery/internal/repository"
	"github.com/yuhao-w/deepquery/internal/service"
)

// Handler handles query API requests.
type Handler struct {
	orchestrator *service.Orchestrator
	history      *repository.QueryRepository
	logger       *zap.Logger
}

// NewHandler creates a new query handler. history may be nil.
func NewHandler(orchestrator *service.Orchestrator, history *repository.QueryRepository, logger *zap.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, history: history, logger: logger}
}

// RegisterRoutes registers query routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/query", h.Query)
	r.GET("/history", h.ListHistory)
	r.GET("/history/:id", h.GetHistory)
}

// Query runs the answer pipeline and streams events over SSE.
func (h *Handler) Query(c *gin.Context) {
	var req domain.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrEmptyQuery.Error()})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	events := h.orchestrator.Run(ctx, req.Query)
	enc := protocol.NewEncoder(c.Writer)

	for ev := range events {
		// Client gone: stop writing, let the pipeline wind down on its own.
		if ctx.Err() != nil {
			h.logger.Info("client disconnected, stopping stream")
			return
		}
		if err := enc.Encode(ev); err != nil {
			h.logger.Warn("failed to write event", zap.Error(err))
			return
		}
	}
}

// ListHistory returns recent query records.
func (h *Handler) ListHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusOK, gin.H{"records": []*domain.QueryRecord{}})
		return
	}

	records, err := h.history.List(50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*domain.QueryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// GetHistory returns a single query record by ID.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()})
		return
	}

	record, err := h.history.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}
