package v1

import (
	"github.com/gin-gonic/gin"

	"sitesync/internal/infrastructure/http/v1/handlers"
	"sitesync/internal/infrastructure/http/v1/middleware"
	"sitesync/pkg/logger"
)

// RouterConfig holds router configuration. Sync and hub routes are only
// registered when their backing service is set.
type RouterConfig struct {
	// App and Version are reported by /health/info
	App     string
	Version string

	// Logger for request logging
	Logger *logger.Logger

	// Checks are pinged by the readiness probe, keyed by check name
	Checks map[string]handlers.Pinger

	// Scheduler serves /sync/status and /sync/trigger
	Scheduler handlers.Scheduler

	// Hub serves /sync/v1/push and /sync/v1/pull
	Hub handlers.Hub
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	RegisterHealthRoutes(router.Group("/health"),
		handlers.NewHealthHandler(cfg.App, cfg.Version, cfg.Checks))

	syncGroup := router.Group("/sync")
	if cfg.Scheduler != nil {
		RegisterSyncRoutes(syncGroup, handlers.NewSyncHandler(base, cfg.Scheduler))
	}
	if cfg.Hub != nil {
		RegisterHubRoutes(syncGroup.Group("/v1"), handlers.NewHubHandler(base, cfg.Hub))
	}

	return router
}
