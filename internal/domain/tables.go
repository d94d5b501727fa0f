package domain

// Synced table names. They name both the storage tables and the wire tables
// so changelog entries can be dispatched to translators without mapping.
const (
	TableName            = "name"
	TableItem            = "item"
	TableStore           = "store"
	TableInvoice         = "invoice"
	TableInvoiceLine     = "invoice_line"
	TableRequisition     = "requisition"
	TableRequisitionLine = "requisition_line"
)
