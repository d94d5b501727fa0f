// Package numerator provides domain contracts for document auto-numbering.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"fmt"
)

// Kind names a number sequence. Every store has its own sequence per kind.
type Kind string

const (
	KindInboundShipment     Kind = "inbound_shipment"
	KindOutboundShipment    Kind = "outbound_shipment"
	KindRequestRequisition  Kind = "request_requisition"
	KindResponseRequisition Kind = "response_requisition"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindInboundShipment, KindOutboundShipment, KindRequestRequisition, KindResponseRequisition:
		return true
	}
	return false
}

// Generator hands out sequential document numbers.
//
// Next joins the transaction carried by ctx, so a number taken by a rolled
// back transaction is handed out again.
type Generator interface {
	// Next returns the next number of kind for storeID, starting at 1.
	Next(ctx context.Context, kind Kind, storeID string) (int64, error)
}

// CheckKey validates the arguments of Generator.Next.
func CheckKey(kind Kind, storeID string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown number kind %q", kind)
	}
	if storeID == "" {
		return fmt.Errorf("number of kind %s needs a store id", kind)
	}
	return nil
}
