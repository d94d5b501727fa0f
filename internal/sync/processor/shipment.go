package processor

import (
	"context"
	"fmt"

	"sitesync/internal/core/entity"
	"sitesync/internal/core/numerator"
	"sitesync/internal/domain"
	"sitesync/internal/domain/documents/invoice"
)

// ShipmentProcessors returns the shipment processors in firing order.
func ShipmentProcessors() []Processor[*invoice.Invoice] {
	return []Processor[*invoice.Invoice]{
		CreateInboundShipment{},
		UpdateInboundShipment{},
		UpdateOutboundShipmentStatus{},
	}
}

// CreateInboundShipment creates the inbound shipment for an outbound
// shipment addressed to a store of this site.
type CreateInboundShipment struct{}

func (CreateInboundShipment) Name() string { return "create_inbound_shipment" }

func (CreateInboundShipment) TryProcess(ctx context.Context, repos domain.Repositories, in Input[*invoice.Invoice]) (string, error) {
	outbound := in.Record
	if !outbound.IsOutbound() ||
		(outbound.Status != invoice.StatusPicked && outbound.Status != invoice.StatusShipped) ||
		in.RecordIsActive ||
		!in.OtherPartyIsActive ||
		in.Linked != nil ||
		outbound.IsLinked() {
		return "", nil
	}

	receiving, err := repos.Stores().FindByNameID(ctx, outbound.NameID)
	if err != nil {
		return "", fmt.Errorf("find receiving store: %w", err)
	}
	supplying, err := repos.Stores().GetByID(ctx, outbound.StoreID)
	if err != nil {
		return "", fmt.Errorf("find supplying store: %w", err)
	}

	inbound := invoice.NewInvoice(receiving.ID, supplying.NameID, invoice.TypeInboundShipment)
	number, err := repos.Numbers().Next(ctx, numerator.KindInboundShipment, receiving.ID)
	if err != nil {
		return "", err
	}
	inbound.InvoiceNumber = number
	inbound.LinkedInvoiceID = &outbound.ID
	inbound.TheirReference = outbound.TheirReference
	if outbound.Status == invoice.StatusShipped {
		inbound.SetStatus(invoice.StatusShipped, now())
	}
	if err := repos.Invoices().Upsert(ctx, inbound); err != nil {
		return "", err
	}

	n, err := copyLines(ctx, repos, outbound.ID, inbound.ID)
	if err != nil {
		return "", err
	}

	outbound.LinkedInvoiceID = &inbound.ID
	if err := repos.Invoices().Upsert(ctx, outbound); err != nil {
		return "", err
	}

	return fmt.Sprintf("created inbound shipment %s with %d lines for outbound shipment %s", inbound.ID, n, outbound.ID), nil
}

// UpdateInboundShipment mirrors the shipped status of an outbound shipment
// onto its inbound shipment and refreshes the inbound lines.
type UpdateInboundShipment struct{}

func (UpdateInboundShipment) Name() string { return "update_inbound_shipment" }

func (UpdateInboundShipment) TryProcess(ctx context.Context, repos domain.Repositories, in Input[*invoice.Invoice]) (string, error) {
	outbound, inbound := in.Record, in.Linked
	if !outbound.IsOutbound() ||
		outbound.Status != invoice.StatusShipped ||
		inbound == nil ||
		!in.LinkedIsActive ||
		!inbound.IsInbound() ||
		(inbound.Status != invoice.StatusNew && inbound.Status != invoice.StatusPicked) {
		return "", nil
	}

	existing, err := repos.InvoiceLines().ListByInvoice(ctx, inbound.ID)
	if err != nil {
		return "", err
	}
	for _, line := range existing {
		if err := repos.InvoiceLines().Delete(ctx, line.ID); err != nil {
			return "", err
		}
	}
	n, err := copyLines(ctx, repos, outbound.ID, inbound.ID)
	if err != nil {
		return "", err
	}

	shippedAt := now()
	if outbound.ShippedDatetime != nil {
		shippedAt = *outbound.ShippedDatetime
	}
	inbound.SetStatus(invoice.StatusShipped, shippedAt)
	if err := repos.Invoices().Upsert(ctx, inbound); err != nil {
		return "", err
	}

	return fmt.Sprintf("marked inbound shipment %s shipped and refreshed %d lines", inbound.ID, n), nil
}

// UpdateOutboundShipmentStatus mirrors delivered and verified statuses of
// an inbound shipment back onto the outbound shipment it receives.
type UpdateOutboundShipmentStatus struct{}

func (UpdateOutboundShipmentStatus) Name() string { return "update_outbound_shipment_status" }

func (UpdateOutboundShipmentStatus) TryProcess(ctx context.Context, repos domain.Repositories, in Input[*invoice.Invoice]) (string, error) {
	inbound, outbound := in.Record, in.Linked
	if !inbound.IsInbound() ||
		(inbound.Status != invoice.StatusDelivered && inbound.Status != invoice.StatusVerified) ||
		outbound == nil ||
		!in.LinkedIsActive ||
		!outbound.IsOutbound() ||
		!outbound.Status.Before(inbound.Status) {
		return "", nil
	}

	at := now()
	switch inbound.Status {
	case invoice.StatusDelivered:
		if inbound.DeliveredDatetime != nil {
			at = *inbound.DeliveredDatetime
		}
	case invoice.StatusVerified:
		if inbound.VerifiedDatetime != nil {
			at = *inbound.VerifiedDatetime
		}
	}
	from := outbound.Status
	outbound.SetStatus(inbound.Status, at)
	outbound.LinkedInvoiceID = &inbound.ID
	if err := repos.Invoices().Upsert(ctx, outbound); err != nil {
		return "", err
	}

	return fmt.Sprintf("moved outbound shipment %s from %s to %s", outbound.ID, from, outbound.Status), nil
}

// copyLines creates a line on target for every line of source. Cost price
// on the receiving side is the sell price of the supplier.
func copyLines(ctx context.Context, repos domain.Repositories, sourceID, targetID string) (int, error) {
	lines, err := repos.InvoiceLines().ListByInvoice(ctx, sourceID)
	if err != nil {
		return 0, err
	}
	for _, src := range lines {
		line := &invoice.Line{
			BaseRow:       entity.NewBaseRow(),
			InvoiceID:     targetID,
			ItemID:        src.ItemID,
			ItemCode:      src.ItemCode,
			ItemName:      src.ItemName,
			Batch:         src.Batch,
			PackSize:      src.PackSize,
			NumberOfPacks: src.NumberOfPacks,
			CostPrice:     src.SellPrice,
			SellPrice:     src.SellPrice,
			Note:          src.Note,
		}
		if err := repos.InvoiceLines().Upsert(ctx, line); err != nil {
			return 0, err
		}
	}
	return len(lines), nil
}
