// Package id provides UUIDv7 generation for synced records and sync runs.
// UUIDv7 is time-ordered, so ids generated on different sites never collide
// and still sort by creation time.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID.
type ID = uuid.UUID

// New generates a new UUIDv7, or a random v4 when the clock source fails.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// NewString returns a fresh id in canonical string form. Records travel
// between sites with string ids.
func NewString() string {
	return New().String()
}
