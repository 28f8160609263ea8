package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yuhao-w/deepquery/internal/api/middleware"
	"github.com/yuhao-w/deepquery/internal/api/query"
	"github.com/yuhao-w/deepquery/internal/repository"
	"github.com/yuhao-w/deepquery/internal/service"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	AllowOrigins []string
}

// SetupRouter sets up the Gin router.
func SetupRouter(
	orchestrator *service.Orchestrator,
	history *repository.QueryRepository,
	logger *zap.Logger,
	cfg RouterConfig,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middleware.CORS(cfg.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	queryHandler := query.NewHandler(orchestrator, history, logger)
	v2 := r.Group("/api/v2")
	queryHandler.RegisterRoutes(v2)

	return r
}
