package invoice

import (
	"fmt"
	"time"

	"sqr/internal/logger"
	"sqr/internal/money"
	"sqr/pkg/models"
)

// Root element local names accepted by ParseXML.
const (
	rootInvoice          = "Invoice"
	rootAttachedDocument = "AttachedDocument"
)

const issueDateLayout = "2006-01-02"

// ParseXML extracts an InvoiceRecord from a UBL invoice document. Elements are resolved by
// local name so any namespace prefix binding is accepted. An AttachedDocument container is
// unwrapped to the invoice it carries. No schema validation is performed.
func ParseXML(data []byte) (*models.InvoiceRecord, error) {
	const op = "ParseXML"

	root, err := parseTree(data)
	if err != nil {
		return nil, wrapExtractionError(op, "", err)
	}

	if root.name() == rootAttachedDocument {
		root, err = unwrapAttached(root)
		if err != nil {
			return nil, wrapExtractionError(op, "", err)
		}
	}

	if root.name() != rootInvoice {
		return nil, wrapExtractionError(op, "", fmt.Errorf("%w: root element is %q", ErrNotInvoice, root.name()))
	}

	return recordFromInvoice(root), nil
}

// unwrapAttached returns the invoice embedded as character data in an AttachedDocument.
func unwrapAttached(container *node) (*node, error) {
	embedded := container.path("Attachment", "ExternalReference", "Description")
	if embedded.text() == "" {
		return nil, fmt.Errorf("%w: attached document carries no embedded invoice", ErrNotInvoice)
	}

	inner, err := parseTree([]byte(embedded.text()))
	if err != nil {
		return nil, err
	}
	if inner.name() == rootAttachedDocument {
		return nil, fmt.Errorf("%w: nested attached documents", ErrNotInvoice)
	}
	return inner, nil
}

// recordFromInvoice applies the field lookups and fallbacks to an Invoice element.
func recordFromInvoice(inv *node) *models.InvoiceRecord {
	log := logger.WithComponent("invoice")

	record := &models.InvoiceRecord{
		Supplier:  models.UnknownSupplier,
		Reference: models.NoReference,
	}

	if party := inv.child("AccountingSupplierParty"); party != nil {
		if name := party.find("RegistrationName"); name != nil {
			record.Supplier = name.text()
		} else if name := party.find("Name"); name != nil {
			record.Supplier = name.text()
		}
	}

	if id := inv.child("ID").text(); id != "" {
		record.Reference = id
	}

	if raw := inv.child("IssueDate").text(); raw != "" {
		if date, err := time.Parse(issueDateLayout, raw); err == nil {
			record.IssueDate = date
		} else {
			log.Warn().Str("reference", record.Reference).Str("issue_date", raw).Msg("Unparseable issue date, leaving it empty")
		}
	}

	for _, total := range inv.children("TaxTotal") {
		record.Tax += amountOf(total.child("TaxAmount"))
	}

	monetary := inv.child("LegalMonetaryTotal")
	record.Total = amountOf(monetary.child("PayableAmount"))

	if record.Tax > record.Total {
		log.Warn().
			Str("reference", record.Reference).
			Int64("tax", int64(record.Tax)).
			Int64("total", int64(record.Total)).
			Msg("Tax exceeds payable total, treating the whole total as tax")
		record.Tax = record.Total
	}
	record.TaxBase = record.Total - record.Tax

	if declared := monetary.child("TaxExclusiveAmount"); declared.text() != "" {
		if base := amountOf(declared); base != record.TaxBase {
			log.Warn().
				Str("reference", record.Reference).
				Int64("declared_base", int64(base)).
				Int64("derived_base", int64(record.TaxBase)).
				Msg("Declared tax base disagrees with total minus tax, using derived base")
		}
	}

	return record
}

// amountOf reads an xs:decimal amount element. Non-canonical text goes through the
// normalizer, so a hand-edited "1.190.000" still yields a value.
func amountOf(n *node) money.Amount {
	text := n.text()
	if text == "" {
		return 0
	}
	if amount, ok := money.ParseCanonical(text); ok {
		return amount
	}
	return money.Normalize(text)
}
