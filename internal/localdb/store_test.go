package localdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/internal/reconciliation"
	"sqr/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	store, err := Open("sqlite", dsn, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newReconciler(books *reconciliation.Books) *reconciliation.Reconciler {
	n := 0
	return reconciliation.NewReconciler(books, reconciliation.Options{
		Now: func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	})
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "", false)
	assert.Error(t, err)
}

func TestFlushAndReload(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	books, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, books.Sales())

	r := newReconciler(books)
	sale, err := r.RegisterSale(reconciliation.SaleInput{Project: "Casa Lopez", Client: "Lopez", Gross: money.FromUnits(1000000), Tax: money.FromUnits(190000)})
	require.NoError(t, err)
	expense, err := r.RegisterExpense(reconciliation.ExpenseInput{Supplier: "Ferreteria", Reference: "FE-1", TaxBase: money.FromUnits(100), Tax: money.FromUnits(19)})
	require.NoError(t, err)
	assignment, err := r.RegisterPayrollAssignment(reconciliation.PayrollInput{Project: "casa lopez", Specialist: "Ana", Role: "Oficial", Agreed: money.FromUnits(500)})
	require.NoError(t, err)

	require.NoError(t, store.Flush(ctx, books))
	assert.False(t, books.HasChanges())
	assert.Equal(t, 1, sale.Row)
	assert.Equal(t, 1, expense.Row)
	assert.Equal(t, 1, assignment.Row)

	reloaded, err := store.Load(ctx)
	require.NoError(t, err)

	s, ok := reloaded.Sale(sale.ID)
	require.True(t, ok)
	assert.Equal(t, projectkey.Key("CASA LOPEZ"), s.Project)
	assert.Equal(t, money.FromUnits(1000000), s.Gross)
	assert.Equal(t, reconciliation.DefaultSaleState, s.State)

	e, ok := reloaded.Expense(expense.ID)
	require.True(t, ok)
	assert.Equal(t, projectkey.Unassigned, e.Project)
	assert.Equal(t, models.Unclassified, e.State)
	assert.Equal(t, money.FromUnits(119), e.Total)
	assert.Equal(t, "FE-1", e.Reference)

	p, ok := reloaded.PayrollEntry(assignment.ID)
	require.True(t, ok)
	assert.Equal(t, "Casa Lopez", p.ProjectName)
	assert.Equal(t, "Oficial", p.Role)
}

func TestFlushUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	books, err := store.Load(ctx)
	require.NoError(t, err)
	r := newReconciler(books)
	sale, err := r.RegisterSale(reconciliation.SaleInput{Project: "Obra", Gross: money.FromUnits(1000)})
	require.NoError(t, err)
	_, err = r.RegisterSale(reconciliation.SaleInput{Project: "Obra B", Gross: money.FromUnits(50)})
	require.NoError(t, err)
	require.NoError(t, store.Flush(ctx, books))

	books, err = store.Load(ctx)
	require.NoError(t, err)
	r = newReconciler(books)
	_, err = r.ApplyPayment(sale.ID, money.FromUnits(1200))
	require.NoError(t, err)
	require.NoError(t, store.Flush(ctx, books))

	books, err = store.Load(ctx)
	require.NoError(t, err)
	sales := books.Sales()
	require.Len(t, sales, 2)
	assert.Equal(t, sale.ID, sales[0].ID)
	assert.Equal(t, money.FromUnits(1200), sales[0].Collected)
	assert.Equal(t, money.FromUnits(-200), sales[0].Outstanding())
	assert.Equal(t, 2, sales[1].Row)

	var count int64
	require.NoError(t, store.db.Model(&Sale{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestFlushWithoutChanges(t *testing.T) {
	store := openTestStore(t)
	books := reconciliation.NewBooks()
	assert.NoError(t, store.Flush(context.Background(), books))
}
