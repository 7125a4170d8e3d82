package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Ledger field names used in the column layout.
const (
	FieldID          = "id"
	FieldDate        = "date"
	FieldClient      = "client"
	FieldProject     = "project"
	FieldGross       = "gross"
	FieldTax         = "tax"
	FieldCollected   = "collected"
	FieldOutstanding = "outstanding"
	FieldState       = "state"
	FieldInvoiced    = "invoiced"
	FieldSupplier    = "supplier"
	FieldConcept     = "concept"
	FieldReference   = "reference"
	FieldTaxBase     = "tax_base"
	FieldTotal       = "total"
	FieldCategory    = "category"
	FieldProvenance  = "provenance"
	FieldSpecialist  = "specialist"
	FieldRole        = "role"
	FieldAgreed      = "agreed"
	FieldPaid        = "paid"
)

// Layout describes where the three ledgers live and how their columns are titled.
type Layout struct {
	Sales    SheetLayout `yaml:"sales"`
	Expenses SheetLayout `yaml:"expenses"`
	Payroll  SheetLayout `yaml:"payroll"`
}

// SheetLayout is one ledger: a sheet (or table) name and its columns in write order.
type SheetLayout struct {
	Sheet   string   `yaml:"sheet"`
	Columns []Column `yaml:"columns"`
}

// Column binds a ledger field to a header title.
type Column struct {
	Field  string `yaml:"field"`
	Header string `yaml:"header"`
}

// DefaultLayout matches the spreadsheet the ledgers were first kept in, with an ID column
// appended to every sheet and reference and classification columns added to expenses.
func DefaultLayout() *Layout {
	return &Layout{
		Sales: SheetLayout{
			Sheet: "proyectos",
			Columns: []Column{
				{FieldDate, "Fecha"},
				{FieldClient, "Cliente"},
				{FieldProject, "Proyecto"},
				{FieldGross, "Total Venta"},
				{FieldTax, "IVA"},
				{FieldCollected, "Abonado"},
				{FieldOutstanding, "Saldo"},
				{FieldState, "Estado"},
				{FieldInvoiced, "Facturado"},
				{FieldID, "ID"},
			},
		},
		Expenses: SheetLayout{
			Sheet: "gastos",
			Columns: []Column{
				{FieldDate, "Fecha"},
				{FieldProject, "Proyecto Asignado"},
				{FieldSupplier, "Proveedor"},
				{FieldConcept, "Concepto"},
				{FieldTaxBase, "Base"},
				{FieldTax, "IVA"},
				{FieldTotal, "Total Gasto"},
				{FieldCategory, "Categoria"},
				{FieldProvenance, "Origen"},
				{FieldReference, "Referencia"},
				{FieldState, "Clasificacion"},
				{FieldID, "ID"},
			},
		},
		Payroll: SheetLayout{
			Sheet: "nomina",
			Columns: []Column{
				{FieldDate, "Fecha"},
				{FieldProject, "Proyecto"},
				{FieldSpecialist, "Nombre"},
				{FieldRole, "Rol"},
				{FieldAgreed, "Valor"},
				{FieldPaid, "Pagado"},
				{FieldOutstanding, "Saldo"},
				{FieldID, "ID"},
			},
		},
	}
}

// Required fields per ledger. Other fields are optional and written when present.
var (
	RequiredSalesFields   = []string{FieldProject, FieldGross, FieldTax, FieldCollected}
	RequiredExpenseFields = []string{FieldProject, FieldTaxBase, FieldTax, FieldTotal, FieldReference}
	RequiredPayrollFields = []string{FieldProject, FieldSpecialist, FieldAgreed, FieldPaid}
)

// LoadLayout reads a YAML layout from path. A blank path or a missing file yields the
// default layout. Ledgers omitted from the file keep their defaults.
func LoadLayout(path string) (*Layout, error) {
	if path == "" {
		return DefaultLayout(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultLayout(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout %s: %w", path, err)
	}

	layout := DefaultLayout()
	if err := yaml.Unmarshal(data, layout); err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", path, err)
	}
	return layout, nil
}

// Save writes the layout as YAML, creating parent directories.
func (l *Layout) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that every ledger names a sheet, carries its required fields and has
// no duplicated field or header.
func (l *Layout) Validate() error {
	checks := []struct {
		name     string
		sheet    SheetLayout
		required []string
	}{
		{"sales", l.Sales, RequiredSalesFields},
		{"expenses", l.Expenses, RequiredExpenseFields},
		{"payroll", l.Payroll, RequiredPayrollFields},
	}

	for _, c := range checks {
		if strings.TrimSpace(c.sheet.Sheet) == "" {
			return fmt.Errorf("%s: sheet name is required", c.name)
		}
		fields := make(map[string]bool)
		headers := make(map[string]bool)
		for _, col := range c.sheet.Columns {
			header := HeaderKey(col.Header)
			if col.Field == "" || header == "" {
				return fmt.Errorf("%s: column needs both field and header", c.name)
			}
			if fields[col.Field] {
				return fmt.Errorf("%s: field %q listed twice", c.name, col.Field)
			}
			if headers[header] {
				return fmt.Errorf("%s: header %q listed twice", c.name, col.Header)
			}
			fields[col.Field] = true
			headers[header] = true
		}
		for _, field := range c.required {
			if !fields[field] {
				return fmt.Errorf("%s: required field %q missing", c.name, field)
			}
		}
	}
	return nil
}

// Headers returns the header titles in column order.
func (s SheetLayout) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		out[i] = col.Header
	}
	return out
}

// HeaderFor returns the header title of field, or "" when the layout omits it.
func (s SheetLayout) HeaderFor(field string) string {
	for _, col := range s.Columns {
		if col.Field == field {
			return col.Header
		}
	}
	return ""
}

// HeaderKey is the comparison form of a header title: trimmed, whitespace collapsed,
// upper-cased. Sheets edited by hand drift in casing and spacing.
func HeaderKey(header string) string {
	return strings.ToUpper(strings.Join(strings.Fields(header), " "))
}
