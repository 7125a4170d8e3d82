package models

import (
	"time"

	"sqr/internal/money"
)

// Fallbacks used when an invoice document omits a field.
const (
	UnknownSupplier = "PROVEEDOR DESCONOCIDO"
	NoReference     = "SIN-REFERENCIA"
)

// InvoiceRecord is the normalized content of one supplier invoice. It is created by the
// extractor, never mutated, and either copied into an expense entry or discarded.
type InvoiceRecord struct {
	// Supplier registration name (UnknownSupplier when absent)
	Supplier string
	// Reference is the external invoice identifier used for deduplication
	Reference string
	// IssueDate is zero when the document has none
	IssueDate time.Time

	// Amounts in minor units. Total is authoritative and TaxBase = Total - Tax.
	TaxBase money.Amount
	Tax     money.Amount
	Total   money.Amount

	// Filename of the document (or archive member) the record came from
	Filename string
}

// Consistent reports whether Total == TaxBase + Tax.
func (r *InvoiceRecord) Consistent() bool {
	return r.TaxBase+r.Tax == r.Total
}
