package reconciliation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqr/internal/config"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// fakeSheets keeps sheets in memory; row 1 of every sheet is its header row.
type fakeSheets struct {
	sheets  map[string][][]interface{}
	updates int
	appends int
	failOn  string
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{sheets: make(map[string][][]interface{})}
}

func (f *fakeSheets) name(rangeSpec string) string {
	name := strings.SplitN(rangeSpec, "!", 2)[0]
	name = strings.TrimSuffix(strings.TrimPrefix(name, "'"), "'")
	return strings.ReplaceAll(name, "''", "'")
}

func (f *fakeSheets) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	return f.sheets[f.name(rangeSpec)], nil
}

func (f *fakeSheets) EnsureSheetWithHeaders(ctx context.Context, sheet string, headers []string) error {
	if len(f.sheets[sheet]) > 0 {
		return nil
	}
	row := make([]interface{}, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	f.sheets[sheet] = [][]interface{}{row}
	return nil
}

func (f *fakeSheets) UpdateRows(ctx context.Context, sheet string, rows map[int][]interface{}) error {
	if f.failOn == "update" {
		return errors.New("quota exceeded")
	}
	f.updates++
	for rowNum, values := range rows {
		f.sheets[sheet][rowNum-1] = values
	}
	return nil
}

func (f *fakeSheets) AppendRows(ctx context.Context, sheet string, rows [][]interface{}) (int, error) {
	if f.failOn == "append" {
		return 0, errors.New("quota exceeded")
	}
	f.appends++
	first := len(f.sheets[sheet]) + 1
	f.sheets[sheet] = append(f.sheets[sheet], rows...)
	return first, nil
}

func row(cells ...interface{}) []interface{} {
	return cells
}

func TestSheetStoreLoad(t *testing.T) {
	fake := newFakeSheets()
	fake.sheets["proyectos"] = [][]interface{}{
		row("Fecha", "Cliente", " proyecto ", "TOTAL VENTA", "IVA", "Abonado", "Saldo", "Estado", "Facturado", "ID", "Notas"),
		row("2024-03-01", "Lopez", "Casa  Lopez", "$1.000.000", "$190.000", "$400.000", "$600.000", "Activo", "Si", "s-1", "llamar"),
		row(),
		row("15/03/2024", "Perez", "Obra B", "500000", "", "", "", "", "No"),
	}
	fake.sheets["gastos"] = [][]interface{}{
		row("Fecha", "Proyecto Asignado", "Proveedor", "Concepto", "Base", "IVA", "Total Gasto", "Categoria", "Origen", "Referencia"),
		row("2024-03-02", "Gasto General", "Ferreteria", "Factura FE-1", "", "$19.000", "$119.000", "POR CLASIFICAR", "Automatico", "FE-1"),
		row("2024-03-03", "Casa Lopez", "Cementos", "Cemento", "$200.000", "$38.000", "", "Materiales", "Manual", ""),
	}

	store := NewSheetStore(fake, nil)
	books, err := store.Load(context.Background())
	require.NoError(t, err)

	sales := books.Sales()
	require.Len(t, sales, 2)
	assert.Equal(t, "s-1", sales[0].ID)
	assert.Equal(t, 2, sales[0].Row)
	assert.Equal(t, projectkey.Key("CASA LOPEZ"), sales[0].Project)
	assert.Equal(t, units(1000000), sales[0].Gross)
	assert.Equal(t, units(400000), sales[0].Collected)
	assert.True(t, sales[0].Invoiced)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), sales[0].Date)

	assert.Equal(t, "proyectos:4", sales[1].ID)
	assert.Equal(t, 4, sales[1].Row)
	assert.Equal(t, DefaultSaleState, sales[1].State)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), sales[1].Date)

	expenses := books.Expenses()
	require.Len(t, expenses, 2)
	assert.Equal(t, projectkey.Unassigned, expenses[0].Project)
	assert.Equal(t, models.Unclassified, expenses[0].State)
	assert.Equal(t, models.ProvenanceAutomatic, expenses[0].Provenance)
	assert.Equal(t, units(100000), expenses[0].TaxBase)
	assert.Equal(t, models.Classified, expenses[1].State)
	assert.Equal(t, units(238000), expenses[1].Total)

	assert.Empty(t, books.Payroll())
	assert.Len(t, fake.sheets["nomina"], 1, "missing sheet is created with headers")
	assert.False(t, books.HasChanges())
}

func TestSheetStoreLoadAddsMissingColumns(t *testing.T) {
	fake := newFakeSheets()
	// Headers as the first version of the spreadsheet wrote them.
	fake.sheets["proyectos"] = [][]interface{}{
		row("Fecha", "Cliente", "Proyecto", "Total Venta", "IVA", "Abonado", "Saldo", "Estado", "Facturado"),
		row("2024-03-01", "Lopez", "Casa Lopez", "1000000", "190000", "0", "1000000", "Activo", "No"),
	}
	fake.sheets["gastos"] = [][]interface{}{
		row("Fecha", "Proyecto Asignado", "Proveedor", "Concepto", "Base", "IVA", "Total Gasto", "Categoria", "Origen"),
		row("2024-03-02", "Casa Lopez", "Cementos", "Cemento", "200000", "38000", "238000", "Materiales", "Manual"),
		row("2024-03-03", "Gasto General", "Papeleria", "Resmas", "10000", "0", "10000", "Varios", "Manual"),
	}
	fake.sheets["nomina"] = [][]interface{}{
		row("Fecha", "Proyecto", "Nombre", "Rol", "Valor", "Pagado", "Saldo"),
		row("2024-03-04", "casa lopez", "Ana", "Oficial", "300000", "100000", "200000"),
	}

	store := NewSheetStore(fake, nil)
	books, err := store.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, row("Fecha", "Cliente", "Proyecto", "Total Venta", "IVA", "Abonado", "Saldo", "Estado", "Facturado", "ID"), fake.sheets["proyectos"][0])
	assert.Equal(t, row("Fecha", "Proyecto Asignado", "Proveedor", "Concepto", "Base", "IVA", "Total Gasto", "Categoria", "Origen", "Referencia", "Clasificacion", "ID"), fake.sheets["gastos"][0])
	assert.Equal(t, row("Fecha", "Proyecto", "Nombre", "Rol", "Valor", "Pagado", "Saldo", "ID"), fake.sheets["nomina"][0])

	require.Len(t, books.Sales(), 1)
	assert.Equal(t, "proyectos:2", books.Sales()[0].ID)
	require.Len(t, books.Expenses(), 2)
	assert.Equal(t, "", books.Expenses()[0].Reference)
	assert.Equal(t, models.Classified, books.Expenses()[0].State)
	assert.Equal(t, models.Unclassified, books.Expenses()[1].State)
	require.Len(t, books.Payroll(), 1)
	assert.Equal(t, units(200000), books.Payroll()[0].Outstanding())

	r := NewReconciler(books, Options{})
	assert.Equal(t, units(1000000-238000-300000), r.ProjectView("Casa Lopez").NetMargin)

	// A sheet already carrying every column is left alone.
	updates := fake.updates
	_, err = NewSheetStore(fake, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, updates, fake.updates)

	_, err = r.ApplyPayment("proyectos:2", units(100000))
	require.NoError(t, err)
	require.NoError(t, store.Flush(context.Background(), books))
	assert.Equal(t, "proyectos:2", fake.sheets["proyectos"][1][9])
}

func TestSheetStoreHeaderUpdateFailure(t *testing.T) {
	fake := newFakeSheets()
	fake.sheets["proyectos"] = [][]interface{}{row("Fecha", "Cliente", "Proyecto")}
	fake.failOn = "update"

	_, err := NewSheetStore(fake, nil).Load(context.Background())
	assert.Error(t, err)
	assert.Len(t, fake.sheets["proyectos"][0], 3)
}

func TestSheetStoreDuplicateIDReassigned(t *testing.T) {
	fake := newFakeSheets()
	fake.sheets["nomina"] = [][]interface{}{
		row("Fecha", "Proyecto", "Nombre", "Rol", "Valor", "Pagado", "Saldo", "ID"),
		row("", "Obra", "Ana", "", "100", "0", "", "p-1"),
		row("", "Obra", "Luis", "", "200", "0", "", "p-1"),
	}

	store := NewSheetStore(fake, nil)
	books, err := store.Load(context.Background())
	require.NoError(t, err)

	payroll := books.Payroll()
	require.Len(t, payroll, 2)
	assert.Equal(t, "p-1", payroll[0].ID)
	assert.Equal(t, "nomina:3", payroll[1].ID)
	assert.True(t, books.IsDirty("nomina:3"))

	require.NoError(t, store.Flush(context.Background(), books))
	assert.Equal(t, "nomina:3", fake.sheets["nomina"][2][7])
}

func TestSheetStoreFlush(t *testing.T) {
	fake := newFakeSheets()
	fake.sheets["proyectos"] = [][]interface{}{
		row("Fecha", "Cliente", "Proyecto", "Total Venta", "IVA", "Abonado", "Saldo", "Estado", "Facturado", "ID", "Notas"),
		row("2024-03-01", "Lopez", "Casa Lopez", "$1.000.000", "$190.000", "$0", "$1.000.000", "Activo", "No", "s-1", "llamar"),
	}

	store := NewSheetStore(fake, nil)
	books, err := store.Load(context.Background())
	require.NoError(t, err)

	r := NewReconciler(books, Options{NewID: func() string { return "e-1" }, Now: func() time.Time { return testNow }})
	_, err = r.ApplyPayment("s-1", units(250000))
	require.NoError(t, err)
	expense, err := r.RegisterExpense(ExpenseInput{Project: "casa lopez", Supplier: "Cementos", TaxBase: units(1000), Tax: units(190)})
	require.NoError(t, err)

	require.NoError(t, store.Flush(context.Background(), books))
	assert.False(t, books.HasChanges())

	updated := fake.sheets["proyectos"][1]
	assert.Equal(t, "$250.000", updated[5])
	assert.Equal(t, "$750.000", updated[6])
	assert.Equal(t, "llamar", updated[10], "cells outside the layout survive updates")

	gastos := fake.sheets["gastos"]
	require.Len(t, gastos, 2)
	assert.Equal(t, 2, expense.Row)
	header := gastos[0]
	written := gastos[1]
	cell := func(title string) interface{} {
		for i, h := range header {
			if h == title {
				return written[i]
			}
		}
		return nil
	}
	assert.Equal(t, "2024-06-01", cell("Fecha"))
	assert.Equal(t, "Casa Lopez", cell("Proyecto Asignado"))
	assert.Equal(t, "$1.190", cell("Total Gasto"))
	assert.Equal(t, "Manual", cell("Origen"))
	assert.Equal(t, "Clasificado", cell("Clasificacion"))
	assert.Equal(t, "e-1", cell("ID"))

	// A second flush of the now-persisted expense updates its row instead of appending.
	_, err = r.ReclassifyExpense("e-1", "Casa Lopez", "Materiales")
	require.NoError(t, err)
	require.NoError(t, store.Flush(context.Background(), books))
	assert.Len(t, fake.sheets["gastos"], 2)
	assert.Equal(t, 1, fake.appends)

	reloaded, err := NewSheetStore(fake, nil).Load(context.Background())
	require.NoError(t, err)
	e, ok := reloaded.Expense("e-1")
	require.True(t, ok)
	assert.Equal(t, "Materiales", e.Category)
	assert.Equal(t, units(1190), e.Total)
	s, ok := reloaded.Sale("s-1")
	require.True(t, ok)
	assert.Equal(t, units(250000), s.Collected)
}

func TestSheetStoreFlushFailureKeepsDirty(t *testing.T) {
	fake := newFakeSheets()
	store := NewSheetStore(fake, config.DefaultLayout())
	books, err := store.Load(context.Background())
	require.NoError(t, err)

	r := NewReconciler(books, Options{})
	_, err = r.RegisterSale(SaleInput{Project: "Obra", Gross: units(10)})
	require.NoError(t, err)

	fake.failOn = "append"
	assert.Error(t, store.Flush(context.Background(), books))
	assert.True(t, books.HasChanges())
}

func TestQuoteSheet(t *testing.T) {
	assert.Equal(t, "'gastos'", quoteSheet("gastos"))
	assert.Equal(t, "'O''Brien'", quoteSheet("O'Brien"))
}
