package dto

import "sitesync/internal/sync/status"

// DefaultPullLimit is used when a pull request carries no limit.
const DefaultPullLimit = 500

// MaxPullLimit caps a single pull page.
const MaxPullLimit = 5000

// PullQuery holds the query parameters of GET /sync/v1/pull.
type PullQuery struct {
	Since int64 `form:"since" binding:"min=0"`
	Limit int   `form:"limit" binding:"min=0"`
}

// Defaults sets the default page size and caps oversized pages.
func (q *PullQuery) Defaults() {
	if q.Limit == 0 {
		q.Limit = DefaultPullLimit
	}
	if q.Limit > MaxPullLimit {
		q.Limit = MaxPullLimit
	}
}

// TriggerRequest asks for a sync cycle. An empty SiteID triggers every site.
type TriggerRequest struct {
	SiteID string `json:"siteId"`
}

// TriggerResponse lists the sites a cycle was requested for.
type TriggerResponse struct {
	Triggered []string `json:"triggered"`
}

// StatusResponse carries the last run status of every site.
type StatusResponse struct {
	Sites []*status.RunStatus `json:"sites"`
}
