// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"sitesync/internal/infrastructure/http/v1/handlers"
	"sitesync/internal/infrastructure/http/v1/middleware"
)

// RegisterHealthRoutes registers the liveness, readiness and info probes.
func RegisterHealthRoutes(group *gin.RouterGroup, handler *handlers.HealthHandler) {
	group.GET("/live", handler.Live)
	group.GET("/ready", handler.Ready)
	group.GET("/info", handler.Info)
}

// RegisterSyncRoutes registers the local status and trigger endpoints.
func RegisterSyncRoutes(group *gin.RouterGroup, handler *handlers.SyncHandler) {
	group.GET("/status", handler.Status)
	group.POST("/trigger", handler.Trigger)
}

// RegisterHubRoutes registers the site-facing push and pull endpoints.
// Push bodies may arrive zstd compressed.
func RegisterHubRoutes(group *gin.RouterGroup, handler *handlers.HubHandler) {
	group.POST("/push", middleware.Decompress(), handler.Push)
	group.GET("/pull", handler.Pull)
}
