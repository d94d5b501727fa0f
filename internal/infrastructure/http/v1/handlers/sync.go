package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sitesync/internal/infrastructure/http/v1/dto"
	"sitesync/internal/sync/status"
)

// Scheduler is the part of driver.Scheduler the status endpoint uses.
type Scheduler interface {
	Sites() []string
	Trigger(siteID string) error
	Statuses(ctx context.Context) ([]*status.RunStatus, error)
}

// SyncHandler exposes the state of the local sync cycles.
type SyncHandler struct {
	*BaseHandler
	scheduler Scheduler
}

// NewSyncHandler creates a sync handler.
func NewSyncHandler(base *BaseHandler, scheduler Scheduler) *SyncHandler {
	return &SyncHandler{BaseHandler: base, scheduler: scheduler}
}

// Status returns the last run status of every site.
// GET /sync/status
func (h *SyncHandler) Status(c *gin.Context) {
	statuses, err := h.scheduler.Statuses(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.StatusResponse{Sites: statuses})
}

// Trigger requests a cycle. Requests arriving while a cycle runs collapse
// into one follow-up cycle.
// POST /sync/trigger
func (h *SyncHandler) Trigger(c *gin.Context) {
	var req dto.TriggerRequest
	if c.Request.ContentLength > 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	} else {
		req.SiteID = c.Query("siteId")
	}

	if err := h.scheduler.Trigger(req.SiteID); err != nil {
		h.Error(c, err)
		return
	}

	triggered := []string{req.SiteID}
	if req.SiteID == "" {
		triggered = h.scheduler.Sites()
	}
	h.Accepted(c, dto.TriggerResponse{Triggered: triggered})
}
