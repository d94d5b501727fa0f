// Package processor derives local mutations from newly integrated records.
//
// Each processor covers one transition of a document pair:
//
//	New (unlinked) -> Linked -> StatusSynced -> Finalised
//
// and fires only while its record is in the source state of that
// transition. The mutation it performs moves the record out of that state,
// so running the pipeline again over the same records changes nothing.
package processor

import (
	"context"

	"sitesync/internal/domain"
)

// Input is what a processor sees for one record.
type Input[T any] struct {
	// Record is the freshly loaded integrated row
	Record T
	// Linked is the counterpart row on the other side of the link, nil
	// when none exists yet
	Linked T
	// RecordIsActive is true when the record's store belongs to this site
	RecordIsActive bool
	// OtherPartyIsActive is true when the store trading under the record's
	// name belongs to this site
	OtherPartyIsActive bool
	// LinkedIsActive is true when the counterpart's store belongs to this
	// site
	LinkedIsActive bool
	// SiteID is the local site
	SiteID string
}

// Processor is one derivation rule over rows of type T.
type Processor[T any] interface {
	// Name identifies the processor in reports and logs.
	Name() string

	// TryProcess checks the precondition and, when it holds, performs the
	// mutation through repos and returns a description of it. An empty
	// description means the precondition did not hold and nothing was
	// written.
	TryProcess(ctx context.Context, repos domain.Repositories, in Input[T]) (string, error)
}
