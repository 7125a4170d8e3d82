package reconciliation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func newTestReconciler() *Reconciler {
	n := 0
	return NewReconciler(nil, Options{
		Now: func() time.Time { return testNow },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func units(n int64) money.Amount {
	return money.FromUnits(n)
}

func TestProjectMarginFromSalesAndExpenses(t *testing.T) {
	r := newTestReconciler()

	_, err := r.RegisterSale(SaleInput{Project: "Casa Lopez", Client: "Lopez", Gross: units(1000000), Tax: units(190000)})
	require.NoError(t, err)
	_, err = r.RegisterExpense(ExpenseInput{Project: "  casa   lopez ", Supplier: "Ferreteria", TaxBase: units(300000)})
	require.NoError(t, err)

	view := r.ProjectView("CASA LOPEZ")
	assert.Equal(t, units(1000000), view.GrossSales)
	assert.Equal(t, units(300000), view.ExpenseTotal)
	assert.Equal(t, units(700000), view.NetMargin)
	assert.Equal(t, "Casa Lopez", view.Name)
	assert.Equal(t, 1, view.Sales)
	assert.Equal(t, 1, view.Expenses)
}

func TestRegisterSaleValidation(t *testing.T) {
	r := newTestReconciler()

	_, err := r.RegisterSale(SaleInput{Project: "   ", Gross: units(10)})
	assert.ErrorIs(t, err, ErrMissingProject)

	_, err = r.RegisterSale(SaleInput{Project: "Obra", Gross: -1})
	assert.ErrorIs(t, err, ErrNegativeAmount)

	sale, err := r.RegisterSale(SaleInput{Project: "Obra", Gross: units(100)})
	require.NoError(t, err)
	assert.Equal(t, testNow, sale.Date)
	assert.Equal(t, DefaultSaleState, sale.State)
	assert.Equal(t, models.StatusOpen, sale.Status())
	assert.True(t, r.Books().IsDirty(sale.ID))
}

func TestRegisterExpenseUnassigned(t *testing.T) {
	r := newTestReconciler()

	e, err := r.RegisterExpense(ExpenseInput{Supplier: "Papeleria", TaxBase: units(1000), Tax: units(190)})
	require.NoError(t, err)

	assert.Equal(t, projectkey.Unassigned, e.Project)
	assert.Equal(t, projectkey.UnassignedLabel, e.ProjectName)
	assert.Equal(t, models.Unclassified, e.State)
	assert.Equal(t, models.CategoryPending, e.Category)
	assert.Equal(t, models.ProvenanceManual, e.Provenance)
	assert.Equal(t, units(1190), e.Total)

	_, err = r.RegisterExpense(ExpenseInput{Project: "Obra", TaxBase: -5})
	assert.ErrorIs(t, err, ErrNegativeAmount)
}

func TestPayrollOverpaymentIsFlagged(t *testing.T) {
	r := newTestReconciler()

	entry, err := r.RegisterPayrollAssignment(PayrollInput{Project: "Obra", Specialist: "Ana", Agreed: units(1000000)})
	require.NoError(t, err)

	payment, err := r.ApplyPayment(entry.ID, units(1200000))
	require.NoError(t, err)

	assert.Equal(t, KindPayroll, payment.Kind)
	assert.Equal(t, units(-200000), payment.Outstanding)
	assert.True(t, payment.Overpaid)
	assert.Equal(t, models.StatusOverpaid, payment.Status)

	anomalies := r.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Equal(t, entry.ID, anomalies[0].ID)
	assert.Equal(t, "Ana", anomalies[0].Party)
	assert.Equal(t, units(-200000), anomalies[0].Outstanding)
}

func TestPaymentsSettleSale(t *testing.T) {
	r := newTestReconciler()

	sale, err := r.RegisterSale(SaleInput{Project: "Obra", Gross: units(1000)})
	require.NoError(t, err)
	r.Books().ClearDirty()

	p, err := r.ApplyPayment(sale.ID, units(400))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartiallyPaid, p.Status)
	assert.True(t, r.Books().IsDirty(sale.ID))

	p, err = r.ApplyPayment(sale.ID, units(600))
	require.NoError(t, err)
	assert.Equal(t, money.Amount(0), p.Outstanding)
	assert.Equal(t, models.StatusSettled, p.Status)
	assert.False(t, p.Overpaid)
	assert.Empty(t, r.Anomalies())
}

func TestApplyPaymentErrors(t *testing.T) {
	r := newTestReconciler()

	expense, err := r.RegisterExpense(ExpenseInput{Project: "Obra", TaxBase: units(10)})
	require.NoError(t, err)
	sale, err := r.RegisterSale(SaleInput{Project: "Obra", Gross: units(10)})
	require.NoError(t, err)

	_, err = r.ApplyPayment(expense.ID, units(1))
	assert.ErrorIs(t, err, ErrNotPayable)

	_, err = r.ApplyPayment("missing", units(1))
	assert.ErrorIs(t, err, ErrEntryNotFound)

	_, err = r.ApplyPayment(sale.ID, -1)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	r.Books().ClearDirty()
	p, err := r.ApplyPayment(sale.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, units(10), p.Outstanding)
	assert.False(t, r.Books().HasChanges())
}

func TestReclassifyExpense(t *testing.T) {
	r := newTestReconciler()

	_, err := r.RegisterSale(SaleInput{Project: "Edificio Norte", Gross: units(500)})
	require.NoError(t, err)
	e, err := r.RegisterExpense(ExpenseInput{Supplier: "Cementos", TaxBase: units(100), Category: "Materiales"})
	require.NoError(t, err)
	r.Books().ClearDirty()

	got, err := r.ReclassifyExpense(e.ID, "edificio  norte", "")
	require.NoError(t, err)
	assert.Equal(t, projectkey.Key("EDIFICIO NORTE"), got.Project)
	assert.Equal(t, "Edificio Norte", got.ProjectName)
	assert.Equal(t, "Materiales", got.Category)
	assert.Equal(t, models.Classified, got.State)
	assert.True(t, r.Books().IsDirty(e.ID))

	r.Books().ClearDirty()
	_, err = r.ReclassifyExpense(e.ID, "EDIFICIO NORTE", "Materiales")
	require.NoError(t, err)
	assert.False(t, r.Books().HasChanges(), "repeating a reclassification changes nothing")

	_, err = r.ReclassifyExpense(e.ID, "gasto general", "")
	assert.ErrorIs(t, err, ErrUnassignedTarget)

	_, err = r.ReclassifyExpense("nope", "Obra", "")
	assert.ErrorIs(t, err, ErrEntryNotFound)

	view := r.ProjectView("Edificio Norte")
	assert.Equal(t, units(100), view.ExpenseTotal)
	assert.Empty(t, r.UnclassifiedExpenses())
}

func TestRentabilityUnassignedBucket(t *testing.T) {
	r := newTestReconciler()

	_, err := r.RegisterSale(SaleInput{Project: "Obra A", Gross: units(1000), Tax: units(190)})
	require.NoError(t, err)
	_, err = r.RegisterSale(SaleInput{Project: "obra a", Gross: units(500)})
	require.NoError(t, err)
	_, err = r.RegisterSale(SaleInput{Project: "Obra B", Gross: units(200)})
	require.NoError(t, err)
	_, err = r.RegisterExpense(ExpenseInput{Project: "OBRA A", TaxBase: units(300)})
	require.NoError(t, err)
	_, err = r.RegisterExpense(ExpenseInput{TaxBase: units(50)})
	require.NoError(t, err)
	_, err = r.RegisterPayrollAssignment(PayrollInput{Project: "Obra Fantasma", Specialist: "Luis", Agreed: units(70)})
	require.NoError(t, err)

	views := r.Rentability()
	require.Len(t, views, 3)

	assert.Equal(t, projectkey.Key("OBRA A"), views[0].Project)
	assert.Equal(t, "Obra A", views[0].Name)
	assert.Equal(t, units(1500), views[0].GrossSales)
	assert.Equal(t, units(1200), views[0].NetMargin)
	assert.Equal(t, 2, views[0].Sales)

	assert.Equal(t, projectkey.Key("OBRA B"), views[1].Project)
	assert.Equal(t, units(200), views[1].NetMargin)

	assert.Equal(t, projectkey.Unassigned, views[2].Project)
	assert.Equal(t, units(50), views[2].ExpenseTotal)
	assert.Equal(t, units(70), views[2].PayrollTotal)
	assert.Equal(t, units(-120), views[2].NetMargin)

	assert.Equal(t, []string{"Obra A", "Obra B"}, r.Projects())
}

func TestTaxPositionAndSummary(t *testing.T) {
	r := newTestReconciler()

	sale, err := r.RegisterSale(SaleInput{Project: "Obra", Gross: units(1190), Tax: units(190)})
	require.NoError(t, err)
	_, err = r.RegisterExpense(ExpenseInput{Project: "Obra", TaxBase: units(100), Tax: units(19)})
	require.NoError(t, err)
	_, err = r.RegisterExpense(ExpenseInput{TaxBase: units(10), Tax: units(1)})
	require.NoError(t, err)
	p, err := r.RegisterPayrollAssignment(PayrollInput{Project: "Obra", Specialist: "Ana", Agreed: units(500)})
	require.NoError(t, err)
	_, err = r.ApplyPayment(sale.ID, units(1000))
	require.NoError(t, err)
	_, err = r.ApplyPayment(p.ID, units(200))
	require.NoError(t, err)

	pos := r.TaxPosition()
	assert.Equal(t, units(190), pos.Generated)
	assert.Equal(t, units(20), pos.Deductible)
	assert.Equal(t, units(170), pos.NetPayable)

	s := r.Summary()
	assert.Equal(t, units(1190), s.Sales)
	assert.Equal(t, units(1000), s.Collected)
	assert.Equal(t, units(190), s.Receivable)
	assert.Equal(t, units(130), s.Expenses)
	assert.Equal(t, 1, s.Unclassified)
	assert.Equal(t, units(500), s.Payroll)
	assert.Equal(t, units(200), s.PayrollPaid)
	assert.Equal(t, units(300), s.PayrollOutstanding)
	assert.Equal(t, units(560), s.Profit)
}

func TestAdoptIngested(t *testing.T) {
	r := newTestReconciler()

	entries := []*models.ExpenseEntry{
		{ID: "ing-1", Project: projectkey.Unassigned, Reference: "FE-1", Total: units(10), State: models.Unclassified},
		{ID: "ing-2", Project: projectkey.Unassigned, Reference: "FE-2", Total: units(20), State: models.Unclassified},
	}
	require.NoError(t, r.AdoptIngested(entries))
	assert.Len(t, r.UnclassifiedExpenses(), 2)
	assert.True(t, r.Books().IsDirty("ing-2"))

	err := r.AdoptIngested([]*models.ExpenseEntry{{ID: "ing-1"}})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestBooksRejectDuplicateIDs(t *testing.T) {
	b := NewBooks()
	require.NoError(t, b.LoadSale(&models.SaleEntry{ID: "a"}))

	assert.ErrorIs(t, b.LoadPayroll(&models.PayrollEntry{ID: "a"}), ErrDuplicateID)
	assert.ErrorIs(t, b.LoadExpense(&models.ExpenseEntry{}), ErrDuplicateID)

	kind, ok := b.KindOf("a")
	assert.True(t, ok)
	assert.Equal(t, KindSale, kind)
	assert.False(t, b.HasChanges())

	_, ok = b.Expense("a")
	assert.False(t, ok)
}
