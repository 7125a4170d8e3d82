package models

import (
	"time"

	"sqr/internal/money"
	"sqr/internal/projectkey"
)

// Provenance records how an expense entered the ledger.
type Provenance string

const (
	ProvenanceManual    Provenance = "manual"
	ProvenanceAutomatic Provenance = "automatic"
)

// ClassificationState of an expense. Unclassified expenses sit in the unassigned bucket
// until a person attributes them to a project.
type ClassificationState string

const (
	Unclassified ClassificationState = "unclassified"
	Classified   ClassificationState = "classified"
)

// CategoryPending is the category given to automatically ingested expenses.
const CategoryPending = "POR CLASIFICAR"

// Categories offered for manual expenses.
var Categories = []string{"Materiales", "Mano de Obra", "Transporte", "Varios"}

// PaymentStatus is derived from the outstanding balance, never stored.
type PaymentStatus string

const (
	StatusOpen          PaymentStatus = "open"
	StatusPartiallyPaid PaymentStatus = "partially_paid"
	StatusSettled       PaymentStatus = "settled"
	// StatusOverpaid marks a negative outstanding balance: accepted, but flagged for review.
	StatusOverpaid PaymentStatus = "overpaid"
)

// StatusOf derives the payment status of an agreed amount and what was paid against it.
func StatusOf(agreed, paid money.Amount) PaymentStatus {
	switch outstanding := agreed - paid; {
	case outstanding < 0:
		return StatusOverpaid
	case outstanding == 0:
		return StatusSettled
	case paid == 0:
		return StatusOpen
	default:
		return StatusPartiallyPaid
	}
}

// SaleEntry is one project sale (receivable). Row is the store position of the entry,
// zero until it has been written.
type SaleEntry struct {
	ID          string
	Row         int
	Date        time.Time
	Client      string
	ProjectName string
	Project     projectkey.Key
	Gross       money.Amount
	Tax         money.Amount
	Collected   money.Amount
	State       string
	Invoiced    bool
}

// Outstanding is Gross - Collected; negative when more was collected than billed.
func (s *SaleEntry) Outstanding() money.Amount {
	return s.Gross - s.Collected
}

// Status derives the collection status.
func (s *SaleEntry) Status() PaymentStatus {
	return StatusOf(s.Gross, s.Collected)
}

// ExpenseEntry is one cost. Expenses are paid in full at registration.
type ExpenseEntry struct {
	ID          string
	Row         int
	Date        time.Time
	ProjectName string
	Project     projectkey.Key
	Supplier    string
	Concept     string
	// Reference is the supplier invoice reference for ingested expenses
	Reference  string
	TaxBase    money.Amount
	Tax        money.Amount
	Total      money.Amount
	Category   string
	Provenance Provenance
	State      ClassificationState
}

// PayrollEntry assigns a specialist to a project for an agreed amount.
type PayrollEntry struct {
	ID          string
	Row         int
	Date        time.Time
	ProjectName string
	Project     projectkey.Key
	Specialist  string
	Role        string
	Agreed      money.Amount
	Paid        money.Amount
}

// Outstanding is Agreed - Paid; negative on overpayment.
func (p *PayrollEntry) Outstanding() money.Amount {
	return p.Agreed - p.Paid
}

// Status derives the payment status.
func (p *PayrollEntry) Status() PaymentStatus {
	return StatusOf(p.Agreed, p.Paid)
}
