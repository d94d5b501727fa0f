// Package status tracks the state of sync cycles. Operators observe sync
// health through the persisted RunStatus of each site.
package status

import (
	"context"
	"fmt"
	"time"
)

// Counters are the progress counters of a cycle.
type Counters struct {
	Pushed            int `json:"pushed"`
	Pulled            int `json:"pulled"`
	Integrated        int `json:"integrated"`
	IntegrationErrors int `json:"integrationErrors"`
	Derived           int `json:"derived"`
	ProcessorErrors   int `json:"processorErrors"`
}

// RunStatus is the live state of one sync cycle.
type RunStatus struct {
	RunID      string     `json:"runId"`
	SiteID     string     `json:"siteId"`
	Phase      Phase      `json:"phase"`
	Counters   Counters   `json:"counters"`
	Error      *string    `json:"error,omitempty"`
	ErrorCode  *string    `json:"errorCode,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// New creates an idle run.
func New(runID, siteID string, now time.Time) *RunStatus {
	return &RunStatus{
		RunID:     runID,
		SiteID:    siteID,
		Phase:     PhaseIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the run to phase to.
func (s *RunStatus) Transition(to Phase, now time.Time) error {
	if !s.Phase.CanTransition(to) {
		return fmt.Errorf("sync phase transition %s -> %s not allowed", s.Phase, to)
	}
	s.Phase = to
	s.UpdatedAt = now
	if to.Terminal() {
		s.FinishedAt = &now
	}
	return nil
}

// Fail moves the run to PhaseError and records the cause.
func (s *RunStatus) Fail(code string, err error, now time.Time) {
	msg := err.Error()
	s.Error = &msg
	s.ErrorCode = &code
	if !s.Phase.Terminal() {
		s.Phase = PhaseError
		s.FinishedAt = &now
	}
	s.UpdatedAt = now
}

// Clone returns a copy safe to hand to other goroutines.
func (s *RunStatus) Clone() *RunStatus {
	if s == nil {
		return nil
	}
	c := *s
	if s.Error != nil {
		e := *s.Error
		c.Error = &e
	}
	if s.ErrorCode != nil {
		e := *s.ErrorCode
		c.ErrorCode = &e
	}
	if s.FinishedAt != nil {
		f := *s.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

// Store persists the latest run status per site.
type Store interface {
	// Save upserts the status row of s.SiteID.
	Save(ctx context.Context, s *RunStatus) error

	// Latest returns the last saved status of siteID or NOT_FOUND.
	Latest(ctx context.Context, siteID string) (*RunStatus, error)
}
