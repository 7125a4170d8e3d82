package reconciliation

import (
	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// ProjectView aggregates every ledger entry of one project. It is derived on read and
// never stored.
type ProjectView struct {
	Project projectkey.Key
	Name    string

	GrossSales   money.Amount
	TaxCollected money.Amount
	Collected    money.Amount
	Receivable   money.Amount

	ExpenseTotal money.Amount
	ExpenseTax   money.Amount

	PayrollTotal       money.Amount
	PayrollPaid        money.Amount
	PayrollOutstanding money.Amount

	// NetMargin = GrossSales - ExpenseTotal - PayrollTotal
	NetMargin money.Amount

	Sales    int
	Expenses int
	Payroll  int
}

func (v *ProjectView) addSale(e *models.SaleEntry) {
	v.GrossSales += e.Gross
	v.TaxCollected += e.Tax
	v.Collected += e.Collected
	v.Receivable += e.Outstanding()
	v.Sales++
}

func (v *ProjectView) addExpense(e *models.ExpenseEntry) {
	v.ExpenseTotal += e.Total
	v.ExpenseTax += e.Tax
	v.Expenses++
}

func (v *ProjectView) addPayroll(e *models.PayrollEntry) {
	v.PayrollTotal += e.Agreed
	v.PayrollPaid += e.Paid
	v.PayrollOutstanding += e.Outstanding()
	v.Payroll++
}

func (v *ProjectView) finish() {
	v.NetMargin = v.GrossSales - v.ExpenseTotal - v.PayrollTotal
}

// ProjectView aggregates the entries whose canonical key matches project.
func (r *Reconciler) ProjectView(project string) ProjectView {
	key := projectkey.Canonicalize(project)
	view := ProjectView{Project: key, Name: r.displayName(project, key)}

	for _, e := range r.books.sales {
		if e.Project.Matches(key) {
			view.addSale(e)
		}
	}
	for _, e := range r.books.expenses {
		if e.Project.Matches(key) {
			view.addExpense(e)
		}
	}
	for _, e := range r.books.payroll {
		if e.Project.Matches(key) {
			view.addPayroll(e)
		}
	}

	view.finish()
	return view
}

// Rentability returns one view per sale project in order of first appearance, followed by
// an unassigned bucket collecting expenses and payroll whose project matches no sale.
// The bucket is omitted when empty.
func (r *Reconciler) Rentability() []ProjectView {
	var order []projectkey.Key
	views := make(map[projectkey.Key]*ProjectView)

	for _, e := range r.books.sales {
		key := projectkey.Canonicalize(string(e.Project))
		view, ok := views[key]
		if !ok {
			view = &ProjectView{Project: key, Name: e.ProjectName}
			views[key] = view
			order = append(order, key)
		}
		view.addSale(e)
	}

	bucket := &ProjectView{Project: projectkey.Unassigned, Name: projectkey.UnassignedLabel}
	resolve := func(project projectkey.Key) *ProjectView {
		key := projectkey.Canonicalize(string(project))
		if view, ok := views[key]; ok && !key.IsUnassigned() {
			return view
		}
		if !key.IsUnassigned() {
			r.log.Debug().Str("project", string(project)).Msg("Project matches no sale, counting it as unassigned")
		}
		return bucket
	}

	for _, e := range r.books.expenses {
		resolve(e.Project).addExpense(e)
	}
	for _, e := range r.books.payroll {
		resolve(e.Project).addPayroll(e)
	}

	out := make([]ProjectView, 0, len(order)+1)
	for _, key := range order {
		views[key].finish()
		out = append(out, *views[key])
	}
	if bucket.Expenses > 0 || bucket.Payroll > 0 {
		bucket.finish()
		out = append(out, *bucket)
	}
	return out
}

// TaxPosition is the VAT balance across the ledgers.
type TaxPosition struct {
	// Generated is the tax billed on sales.
	Generated money.Amount
	// Deductible is the tax paid on expenses.
	Deductible money.Amount
	// NetPayable = Generated - Deductible; positive is owed to the authority, negative is
	// a credit in favor.
	NetPayable money.Amount
}

// TaxPosition sums tax across sales and expenses.
func (r *Reconciler) TaxPosition() TaxPosition {
	var pos TaxPosition
	for _, e := range r.books.sales {
		pos.Generated += e.Tax
	}
	for _, e := range r.books.expenses {
		pos.Deductible += e.Tax
	}
	pos.NetPayable = pos.Generated - pos.Deductible
	return pos
}

// Summary totals every ledger.
type Summary struct {
	Sales      money.Amount
	Collected  money.Amount
	Receivable money.Amount

	Expenses     money.Amount
	Unclassified int

	Payroll            money.Amount
	PayrollPaid        money.Amount
	PayrollOutstanding money.Amount

	// Profit = Sales - Expenses - Payroll
	Profit money.Amount
}

// Summary totals the three ledgers.
func (r *Reconciler) Summary() Summary {
	var all ProjectView
	var s Summary

	for _, e := range r.books.sales {
		all.addSale(e)
	}
	for _, e := range r.books.expenses {
		all.addExpense(e)
		if e.State == models.Unclassified {
			s.Unclassified++
		}
	}
	for _, e := range r.books.payroll {
		all.addPayroll(e)
	}
	all.finish()

	s.Sales = all.GrossSales
	s.Collected = all.Collected
	s.Receivable = all.Receivable
	s.Expenses = all.ExpenseTotal
	s.Payroll = all.PayrollTotal
	s.PayrollPaid = all.PayrollPaid
	s.PayrollOutstanding = all.PayrollOutstanding
	s.Profit = all.NetMargin
	return s
}

// Anomaly is an entry whose outstanding balance went negative.
type Anomaly struct {
	ID          string
	Kind        Kind
	Project     projectkey.Key
	Party       string
	Agreed      money.Amount
	Paid        money.Amount
	Outstanding money.Amount
}

// Anomalies lists overpaid sales and payroll entries for operator review.
func (r *Reconciler) Anomalies() []Anomaly {
	var out []Anomaly
	for _, e := range r.books.sales {
		if e.Outstanding() < 0 {
			out = append(out, Anomaly{ID: e.ID, Kind: KindSale, Project: e.Project, Party: e.Client, Agreed: e.Gross, Paid: e.Collected, Outstanding: e.Outstanding()})
		}
	}
	for _, e := range r.books.payroll {
		if e.Outstanding() < 0 {
			out = append(out, Anomaly{ID: e.ID, Kind: KindPayroll, Project: e.Project, Party: e.Specialist, Agreed: e.Agreed, Paid: e.Paid, Outstanding: e.Outstanding()})
		}
	}
	return out
}

// UnclassifiedExpenses lists expenses still waiting for a project.
func (r *Reconciler) UnclassifiedExpenses() []*models.ExpenseEntry {
	var out []*models.ExpenseEntry
	for _, e := range r.books.expenses {
		if e.State == models.Unclassified {
			out = append(out, e)
		}
	}
	return out
}

// Projects lists the display names of the sale projects, one per canonical key.
func (r *Reconciler) Projects() []string {
	seen := make(map[projectkey.Key]bool)
	var out []string
	for _, e := range r.books.sales {
		key := projectkey.Canonicalize(string(e.Project))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e.ProjectName)
	}
	return out
}
