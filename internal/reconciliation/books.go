package reconciliation

import (
	"fmt"

	"sqr/pkg/models"
)

// Kind names the ledger an entry belongs to.
type Kind string

const (
	KindSale    Kind = "sale"
	KindExpense Kind = "expense"
	KindPayroll Kind = "payroll"
)

type locator struct {
	kind Kind
	pos  int
}

// Books holds the three ledgers of one unit of work in store order, indexed by entry id.
// Entries created or mutated since loading are tracked so a store writes back only those.
type Books struct {
	sales    []*models.SaleEntry
	expenses []*models.ExpenseEntry
	payroll  []*models.PayrollEntry

	index map[string]locator
	dirty map[string]struct{}
}

// NewBooks returns empty books.
func NewBooks() *Books {
	return &Books{
		index: make(map[string]locator),
		dirty: make(map[string]struct{}),
	}
}

// LoadSale adds a sale read from a store. Loaded entries start clean.
func (b *Books) LoadSale(e *models.SaleEntry) error {
	if err := b.claim(e.ID, KindSale, len(b.sales)); err != nil {
		return err
	}
	b.sales = append(b.sales, e)
	return nil
}

// LoadExpense adds an expense read from a store.
func (b *Books) LoadExpense(e *models.ExpenseEntry) error {
	if err := b.claim(e.ID, KindExpense, len(b.expenses)); err != nil {
		return err
	}
	b.expenses = append(b.expenses, e)
	return nil
}

// LoadPayroll adds a payroll entry read from a store.
func (b *Books) LoadPayroll(e *models.PayrollEntry) error {
	if err := b.claim(e.ID, KindPayroll, len(b.payroll)); err != nil {
		return err
	}
	b.payroll = append(b.payroll, e)
	return nil
}

func (b *Books) claim(id string, kind Kind, pos int) error {
	if id == "" {
		return fmt.Errorf("%w: empty id in %s ledger", ErrDuplicateID, kind)
	}
	if existing, ok := b.index[id]; ok {
		return fmt.Errorf("%w: %s already used by a %s entry", ErrDuplicateID, id, existing.kind)
	}
	b.index[id] = locator{kind: kind, pos: pos}
	return nil
}

// addSale appends a new sale and marks it dirty.
func (b *Books) addSale(e *models.SaleEntry) error {
	if err := b.LoadSale(e); err != nil {
		return err
	}
	b.MarkDirty(e.ID)
	return nil
}

func (b *Books) addExpense(e *models.ExpenseEntry) error {
	if err := b.LoadExpense(e); err != nil {
		return err
	}
	b.MarkDirty(e.ID)
	return nil
}

func (b *Books) addPayroll(e *models.PayrollEntry) error {
	if err := b.LoadPayroll(e); err != nil {
		return err
	}
	b.MarkDirty(e.ID)
	return nil
}

// Sales returns the sales ledger in store order.
func (b *Books) Sales() []*models.SaleEntry {
	return append([]*models.SaleEntry(nil), b.sales...)
}

// Expenses returns the expenses ledger in store order.
func (b *Books) Expenses() []*models.ExpenseEntry {
	return append([]*models.ExpenseEntry(nil), b.expenses...)
}

// Payroll returns the payroll ledger in store order.
func (b *Books) Payroll() []*models.PayrollEntry {
	return append([]*models.PayrollEntry(nil), b.payroll...)
}

// KindOf reports which ledger holds id.
func (b *Books) KindOf(id string) (Kind, bool) {
	loc, ok := b.index[id]
	return loc.kind, ok
}

// Sale returns the sale with the given id.
func (b *Books) Sale(id string) (*models.SaleEntry, bool) {
	if loc, ok := b.index[id]; ok && loc.kind == KindSale {
		return b.sales[loc.pos], true
	}
	return nil, false
}

// Expense returns the expense with the given id.
func (b *Books) Expense(id string) (*models.ExpenseEntry, bool) {
	if loc, ok := b.index[id]; ok && loc.kind == KindExpense {
		return b.expenses[loc.pos], true
	}
	return nil, false
}

// PayrollEntry returns the payroll entry with the given id.
func (b *Books) PayrollEntry(id string) (*models.PayrollEntry, bool) {
	if loc, ok := b.index[id]; ok && loc.kind == KindPayroll {
		return b.payroll[loc.pos], true
	}
	return nil, false
}

// MarkDirty flags id for write-back.
func (b *Books) MarkDirty(id string) {
	b.dirty[id] = struct{}{}
}

// IsDirty reports whether id was created or changed since loading.
func (b *Books) IsDirty(id string) bool {
	_, ok := b.dirty[id]
	return ok
}

// HasChanges reports whether anything needs writing.
func (b *Books) HasChanges() bool {
	return len(b.dirty) > 0
}

// ClearDirty forgets pending changes, normally after a successful flush.
func (b *Books) ClearDirty() {
	b.dirty = make(map[string]struct{})
}

// DirtySales returns changed sales in ledger order.
func (b *Books) DirtySales() []*models.SaleEntry {
	var out []*models.SaleEntry
	for _, e := range b.sales {
		if b.IsDirty(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// DirtyExpenses returns changed expenses in ledger order.
func (b *Books) DirtyExpenses() []*models.ExpenseEntry {
	var out []*models.ExpenseEntry
	for _, e := range b.expenses {
		if b.IsDirty(e.ID) {
			out = append(out, e)
		}
	}
	return out
}

// DirtyPayroll returns changed payroll entries in ledger order.
func (b *Books) DirtyPayroll() []*models.PayrollEntry {
	var out []*models.PayrollEntry
	for _, e := range b.payroll {
		if b.IsDirty(e.ID) {
			out = append(out, e)
		}
	}
	return out
}
