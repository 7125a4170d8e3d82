// Package reconciliation keeps the sales, expenses and payroll ledgers of every project
// consistent and derives project balances from them.
//
// The ledgers are loaded from a Store into Books at the start of a unit of work, mutated
// only through the Reconciler and written back with Store.Flush, which touches only the
// entries created or changed in between. Project matching always compares canonical keys.
package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sqr/internal/logger"
	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// DefaultSaleState is the state given to new sales.
const DefaultSaleState = "Activo"

// Options tunes a Reconciler.
type Options struct {
	// Now dates new entries without an explicit date.
	Now func() time.Time
	// NewID generates entry ids.
	NewID func() string
}

// Reconciler applies ledger operations to Books.
type Reconciler struct {
	books *Books
	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// NewReconciler wraps books. A nil books starts empty.
func NewReconciler(books *Books, opts Options) *Reconciler {
	if books == nil {
		books = NewBooks()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}

	return &Reconciler{
		books: books,
		now:   opts.Now,
		newID: opts.NewID,
		log:   logger.WithComponent("reconciliation"),
	}
}

// Books returns the underlying ledgers.
func (r *Reconciler) Books() *Books {
	return r.books
}

// SaleInput registers a sale.
type SaleInput struct {
	Date    time.Time
	Project string
	Client  string
	Gross   money.Amount
	Tax     money.Amount
}

// RegisterSale creates a sale with nothing collected.
func (r *Reconciler) RegisterSale(in SaleInput) (*models.SaleEntry, error) {
	const op = "RegisterSale"

	key := projectkey.Canonicalize(in.Project)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingProject)
	}
	if in.Gross < 0 || in.Tax < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNegativeAmount)
	}
	if in.Tax > in.Gross {
		r.log.Warn().Str("project", string(key)).Int64("gross", int64(in.Gross)).Int64("tax", int64(in.Tax)).Msg("Sale tax exceeds gross amount")
	}

	entry := &models.SaleEntry{
		ID:          r.newID(),
		Date:        r.dateOr(in.Date),
		Client:      strings.TrimSpace(in.Client),
		ProjectName: r.displayName(in.Project, key),
		Project:     key,
		Gross:       in.Gross,
		Tax:         in.Tax,
		State:       DefaultSaleState,
	}
	if err := r.books.addSale(entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.log.Info().Str("id", entry.ID).Str("project", string(key)).Int64("gross", int64(entry.Gross)).Msg("Sale registered")
	return entry, nil
}

// ExpenseInput registers an expense. A blank project files it as unassigned and
// unclassified.
type ExpenseInput struct {
	Date       time.Time
	Project    string
	Supplier   string
	Concept    string
	Reference  string
	TaxBase    money.Amount
	Tax        money.Amount
	Category   string
	Provenance models.Provenance
}

// RegisterExpense creates an expense with Total = TaxBase + Tax.
func (r *Reconciler) RegisterExpense(in ExpenseInput) (*models.ExpenseEntry, error) {
	const op = "RegisterExpense"

	if in.TaxBase < 0 || in.Tax < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNegativeAmount)
	}

	key := projectkey.OrUnassigned(in.Project)
	entry := &models.ExpenseEntry{
		ID:         r.newID(),
		Date:       r.dateOr(in.Date),
		Project:    key,
		Supplier:   strings.TrimSpace(in.Supplier),
		Concept:    strings.TrimSpace(in.Concept),
		Reference:  strings.TrimSpace(in.Reference),
		TaxBase:    in.TaxBase,
		Tax:        in.Tax,
		Total:      in.TaxBase + in.Tax,
		Category:   strings.TrimSpace(in.Category),
		Provenance: in.Provenance,
		State:      models.Classified,
	}
	if entry.Provenance == "" {
		entry.Provenance = models.ProvenanceManual
	}
	if key.IsUnassigned() {
		entry.ProjectName = projectkey.UnassignedLabel
		entry.State = models.Unclassified
	} else {
		entry.ProjectName = r.displayName(in.Project, key)
	}
	if entry.Category == "" {
		entry.Category = models.CategoryPending
	}

	if err := r.books.addExpense(entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.log.Info().Str("id", entry.ID).Str("project", string(key)).Int64("total", int64(entry.Total)).Msg("Expense registered")
	return entry, nil
}

// AdoptIngested appends expenses produced by an ingestion pass.
func (r *Reconciler) AdoptIngested(entries []*models.ExpenseEntry) error {
	const op = "AdoptIngested"

	for _, entry := range entries {
		if err := r.books.addExpense(entry); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if len(entries) > 0 {
		r.log.Info().Int("entries", len(entries)).Msg("Ingested expenses adopted")
	}
	return nil
}

// PayrollInput registers a specialist on a project.
type PayrollInput struct {
	Date       time.Time
	Project    string
	Specialist string
	Role       string
	Agreed     money.Amount
}

// RegisterPayrollAssignment creates a payroll entry with nothing paid.
func (r *Reconciler) RegisterPayrollAssignment(in PayrollInput) (*models.PayrollEntry, error) {
	const op = "RegisterPayrollAssignment"

	key := projectkey.Canonicalize(in.Project)
	if key == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingProject)
	}
	if in.Agreed < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNegativeAmount)
	}

	entry := &models.PayrollEntry{
		ID:          r.newID(),
		Date:        r.dateOr(in.Date),
		ProjectName: r.displayName(in.Project, key),
		Project:     key,
		Specialist:  strings.TrimSpace(in.Specialist),
		Role:        strings.TrimSpace(in.Role),
		Agreed:      in.Agreed,
	}
	if err := r.books.addPayroll(entry); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.log.Info().Str("id", entry.ID).Str("project", string(key)).Str("specialist", entry.Specialist).Int64("agreed", int64(entry.Agreed)).Msg("Payroll assignment registered")
	return entry, nil
}

// Payment is the state of an entry after a payment was applied.
type Payment struct {
	ID          string
	Kind        Kind
	Agreed      money.Amount
	Paid        money.Amount
	Outstanding money.Amount
	Status      models.PaymentStatus
	// Overpaid flags a negative outstanding balance for operator review.
	Overpaid bool
}

// ApplyPayment adds amount to what was collected on a sale or paid on a payroll entry.
// Zero is a no-op. Overpayment is accepted and flagged, never clamped.
func (r *Reconciler) ApplyPayment(id string, amount money.Amount) (*Payment, error) {
	const op = "ApplyPayment"

	if amount < 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNegativeAmount)
	}

	var payment *Payment
	if sale, ok := r.books.Sale(id); ok {
		if amount > 0 {
			sale.Collected += amount
			r.books.MarkDirty(id)
		}
		payment = &Payment{ID: id, Kind: KindSale, Agreed: sale.Gross, Paid: sale.Collected, Outstanding: sale.Outstanding(), Status: sale.Status()}
	} else if entry, ok := r.books.PayrollEntry(id); ok {
		if amount > 0 {
			entry.Paid += amount
			r.books.MarkDirty(id)
		}
		payment = &Payment{ID: id, Kind: KindPayroll, Agreed: entry.Agreed, Paid: entry.Paid, Outstanding: entry.Outstanding(), Status: entry.Status()}
	} else if _, ok := r.books.Expense(id); ok {
		return nil, fmt.Errorf("%s: %s: %w", op, id, ErrNotPayable)
	} else {
		return nil, fmt.Errorf("%s: %s: %w", op, id, ErrEntryNotFound)
	}

	payment.Overpaid = payment.Outstanding < 0
	if payment.Overpaid {
		r.log.Warn().
			Str("id", id).
			Str("kind", string(payment.Kind)).
			Int64("agreed", int64(payment.Agreed)).
			Int64("paid", int64(payment.Paid)).
			Int64("outstanding", int64(payment.Outstanding)).
			Msg("Overpayment recorded, review required")
	} else if amount > 0 {
		r.log.Info().Str("id", id).Int64("amount", int64(amount)).Str("status", string(payment.Status)).Msg("Payment applied")
	}
	return payment, nil
}

// ReclassifyExpense attributes an expense to a real project and marks it classified. A
// blank category keeps the current one. Repeating the same reclassification changes
// nothing; a classified expense may still be moved to another project.
func (r *Reconciler) ReclassifyExpense(id, project, category string) (*models.ExpenseEntry, error) {
	const op = "ReclassifyExpense"

	entry, ok := r.books.Expense(id)
	if !ok {
		if _, other := r.books.KindOf(id); other {
			return nil, fmt.Errorf("%s: %s is not an expense: %w", op, id, ErrEntryNotFound)
		}
		return nil, fmt.Errorf("%s: %s: %w", op, id, ErrEntryNotFound)
	}

	key := projectkey.Canonicalize(project)
	if key.IsUnassigned() {
		return nil, fmt.Errorf("%s: %w", op, ErrUnassignedTarget)
	}

	category = strings.TrimSpace(category)
	if category == "" {
		category = entry.Category
	}

	if entry.Project.Matches(key) && entry.Category == category && entry.State == models.Classified {
		return entry, nil
	}

	previous := entry.Project
	entry.Project = key
	entry.ProjectName = r.displayName(project, key)
	entry.Category = category
	entry.State = models.Classified
	r.books.MarkDirty(id)

	r.log.Info().Str("id", id).Str("from", string(previous)).Str("to", string(key)).Str("category", category).Msg("Expense reclassified")
	return entry, nil
}

// displayName prefers the name a sale already uses for the project so every ledger
// shows the same spelling.
func (r *Reconciler) displayName(raw string, key projectkey.Key) string {
	for _, sale := range r.books.sales {
		if sale.Project.Matches(key) && strings.TrimSpace(sale.ProjectName) != "" {
			return sale.ProjectName
		}
	}
	return strings.Join(strings.Fields(raw), " ")
}

func (r *Reconciler) dateOr(date time.Time) time.Time {
	if date.IsZero() {
		return r.now()
	}
	return date
}
