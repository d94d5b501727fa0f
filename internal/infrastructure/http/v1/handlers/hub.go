package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"sitesync/internal/core/apperror"
	"sitesync/internal/infrastructure/http/v1/dto"
	"sitesync/internal/infrastructure/http/v1/middleware"
	"sitesync/internal/sync/wire"
)

// Hub is the central record exchange served to sites.
type Hub interface {
	Push(ctx context.Context, siteID string, records []wire.Record) (int64, error)
	Pull(ctx context.Context, siteID string, since int64, limit int) ([]wire.Record, int64, error)
}

// HubHandler serves the site-facing sync protocol.
type HubHandler struct {
	*BaseHandler
	hub Hub
}

// NewHubHandler creates a hub handler.
func NewHubHandler(base *BaseHandler, hub Hub) *HubHandler {
	return &HubHandler{BaseHandler: base, hub: hub}
}

// Push accepts changed records from the calling site.
// POST /sync/v1/push
func (h *HubHandler) Push(c *gin.Context) {
	siteID, ok := h.siteID(c)
	if !ok {
		return
	}
	var req wire.PushRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ack, err := h.hub.Push(c.Request.Context(), siteID, req.Records)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Wire(c, wire.PushResponse{AckCursor: ack})
}

// Pull returns the records addressed to the calling site.
// GET /sync/v1/pull?since=&limit=
func (h *HubHandler) Pull(c *gin.Context) {
	siteID, ok := h.siteID(c)
	if !ok {
		return
	}
	var q dto.PullQuery
	if !h.BindQuery(c, &q) {
		return
	}
	q.Defaults()

	records, next, err := h.hub.Pull(c.Request.Context(), siteID, q.Since, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	if records == nil {
		records = []wire.Record{}
	}
	h.Wire(c, wire.PullResponse{Records: records, Cursor: next})
}

func (h *HubHandler) siteID(c *gin.Context) (string, bool) {
	siteID := c.GetString(middleware.KeySiteID)
	if siteID == "" {
		h.Error(c, apperror.NewValidation("missing "+middleware.HeaderSiteID+" header"))
		return "", false
	}
	return siteID, true
}
