// Package context provides scoped values carried through a sync cycle or an
// HTTP request.
package context

import (
	"context"

	"github.com/google/uuid"
)

// RunScope identifies the sync cycle a piece of work belongs to.
type RunScope struct {
	SiteID string
	RunID  string
	Phase  string
}

type runScopeKey struct{}

// WithRun adds RunScope to context.
func WithRun(ctx context.Context, scope *RunScope) context.Context {
	return context.WithValue(ctx, runScopeKey{}, scope)
}

// GetRun returns RunScope from context.
func GetRun(ctx context.Context) *RunScope {
	if v, ok := ctx.Value(runScopeKey{}).(*RunScope); ok {
		return v
	}
	return nil
}

// WithPhase returns a copy of the current scope with Phase replaced.
// The original scope is left untouched so concurrent readers stay consistent.
func WithPhase(ctx context.Context, phase string) context.Context {
	cur := GetRun(ctx)
	if cur == nil {
		return WithRun(ctx, &RunScope{Phase: phase})
	}
	next := *cur
	next.Phase = phase
	return WithRun(ctx, &next)
}

// GetSiteID returns the site of the current run or empty string.
func GetSiteID(ctx context.Context) string {
	if s := GetRun(ctx); s != nil {
		return s.SiteID
	}
	return ""
}

// RequestContext carries HTTP request correlation data.
type RequestContext struct {
	RequestID string
	SiteID    string // X-Site-ID of the calling peer, if any
}

type requestContextKey struct{}

// WithRequest adds RequestContext to context.
func WithRequest(ctx context.Context, req *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, req)
}

// GetRequest returns RequestContext from context.
func GetRequest(ctx context.Context) *RequestContext {
	if v, ok := ctx.Value(requestContextKey{}).(*RequestContext); ok {
		return v
	}
	return nil
}

// NewRequestID generates a request correlation id.
func NewRequestID() string {
	return uuid.New().String()
}
