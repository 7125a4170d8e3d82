package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"sqr/internal/config"
	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// Cell labels written to the sheet.
const (
	labelYes          = "Si"
	labelNo           = "No"
	labelManual       = "Manual"
	labelAutomatic    = "Automatico"
	labelClassified   = "Clasificado"
	labelUnclassified = "Sin clasificar"
)

const dateLayout = "2006-01-02"

// Date formats accepted when reading cells, most specific first.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
}

// table maps layout fields to the positions found in one sheet's header row, so columns
// may be reordered or renamed in case and spacing without breaking the ledger.
type table struct {
	sheet   string
	columns map[string]int
	width   int
}

func newTable(layout config.SheetLayout, header []interface{}, required []string) (*table, error) {
	byHeader := make(map[string]string, len(layout.Columns))
	for _, col := range layout.Columns {
		byHeader[config.HeaderKey(col.Header)] = col.Field
	}

	t := &table{sheet: layout.Sheet, columns: make(map[string]int), width: len(header)}
	for i, cell := range header {
		if field, ok := byHeader[config.HeaderKey(cellString(cell))]; ok {
			if _, dup := t.columns[field]; !dup {
				t.columns[field] = i
			}
		}
	}

	for _, field := range required {
		if _, ok := t.columns[field]; !ok {
			return nil, fmt.Errorf("%w: %s has no %q column", ErrLayoutMismatch, layout.Sheet, layout.HeaderFor(field))
		}
	}
	return t, nil
}

func (t *table) get(row []interface{}, field string) string {
	i, ok := t.columns[field]
	if !ok {
		return ""
	}
	if i >= len(row) {
		return ""
	}
	return cellString(row[i])
}

func (t *table) amount(row []interface{}, field string) money.Amount {
	return money.Normalize(t.get(row, field))
}

func (t *table) set(row []interface{}, field string, value interface{}) {
	if i, ok := t.columns[field]; ok && i < len(row) {
		row[i] = value
	}
}

// base returns a row of the table width, starting from the previously read cells so
// columns outside the layout are preserved on update.
func (t *table) base(previous []interface{}) []interface{} {
	row := make([]interface{}, t.width)
	for i := range row {
		row[i] = ""
	}
	copy(row, previous)
	return row
}

func (t *table) blank(row []interface{}) bool {
	for _, cell := range row {
		if cellString(cell) != "" {
			return false
		}
	}
	return true
}

// syntheticID identifies rows written before the ID column existed.
func syntheticID(sheet string, row int) string {
	return fmt.Sprintf("%s:%d", sheet, row)
}

func (t *table) id(row []interface{}, rowNum int) string {
	if id := t.get(row, config.FieldID); id != "" {
		return id
	}
	return syntheticID(t.sheet, rowNum)
}

func (t *table) decodeSale(row []interface{}, rowNum int) *models.SaleEntry {
	name := t.get(row, config.FieldProject)
	e := &models.SaleEntry{
		ID:          t.id(row, rowNum),
		Row:         rowNum,
		Date:        parseDate(t.get(row, config.FieldDate)),
		Client:      t.get(row, config.FieldClient),
		ProjectName: name,
		Project:     projectkey.Canonicalize(name),
		Gross:       t.amount(row, config.FieldGross),
		Tax:         t.amount(row, config.FieldTax),
		Collected:   t.amount(row, config.FieldCollected),
		State:       t.get(row, config.FieldState),
		Invoiced:    parseYes(t.get(row, config.FieldInvoiced)),
	}
	if e.State == "" {
		e.State = DefaultSaleState
	}
	return e
}

func (t *table) encodeSale(e *models.SaleEntry, previous []interface{}) []interface{} {
	row := t.base(previous)
	t.set(row, config.FieldID, e.ID)
	t.set(row, config.FieldDate, formatDate(e.Date))
	t.set(row, config.FieldClient, e.Client)
	t.set(row, config.FieldProject, e.ProjectName)
	t.set(row, config.FieldGross, money.Format(e.Gross))
	t.set(row, config.FieldTax, money.Format(e.Tax))
	t.set(row, config.FieldCollected, money.Format(e.Collected))
	t.set(row, config.FieldOutstanding, money.Format(e.Outstanding()))
	t.set(row, config.FieldState, e.State)
	t.set(row, config.FieldInvoiced, formatYes(e.Invoiced))
	return row
}

func (t *table) decodeExpense(row []interface{}, rowNum int) *models.ExpenseEntry {
	name := t.get(row, config.FieldProject)
	e := &models.ExpenseEntry{
		ID:          t.id(row, rowNum),
		Row:         rowNum,
		Date:        parseDate(t.get(row, config.FieldDate)),
		ProjectName: name,
		Project:     projectkey.OrUnassigned(name),
		Supplier:    t.get(row, config.FieldSupplier),
		Concept:     t.get(row, config.FieldConcept),
		Reference:   t.get(row, config.FieldReference),
		TaxBase:     t.amount(row, config.FieldTaxBase),
		Tax:         t.amount(row, config.FieldTax),
		Total:       t.amount(row, config.FieldTotal),
		Category:    t.get(row, config.FieldCategory),
		Provenance:  parseProvenance(t.get(row, config.FieldProvenance)),
	}
	if e.ProjectName == "" {
		e.ProjectName = projectkey.UnassignedLabel
	}

	switch {
	case e.Total == 0:
		e.Total = e.TaxBase + e.Tax
	case e.TaxBase == 0 && e.Total >= e.Tax:
		e.TaxBase = e.Total - e.Tax
	}

	e.State = parseState(t.get(row, config.FieldState), e.Project)
	return e
}

func (t *table) encodeExpense(e *models.ExpenseEntry, previous []interface{}) []interface{} {
	row := t.base(previous)
	t.set(row, config.FieldID, e.ID)
	t.set(row, config.FieldDate, formatDate(e.Date))
	t.set(row, config.FieldProject, e.ProjectName)
	t.set(row, config.FieldSupplier, e.Supplier)
	t.set(row, config.FieldConcept, e.Concept)
	t.set(row, config.FieldReference, e.Reference)
	t.set(row, config.FieldTaxBase, money.Format(e.TaxBase))
	t.set(row, config.FieldTax, money.Format(e.Tax))
	t.set(row, config.FieldTotal, money.Format(e.Total))
	t.set(row, config.FieldCategory, e.Category)
	t.set(row, config.FieldProvenance, formatProvenance(e.Provenance))
	t.set(row, config.FieldState, formatState(e.State))
	return row
}

func (t *table) decodePayroll(row []interface{}, rowNum int) *models.PayrollEntry {
	name := t.get(row, config.FieldProject)
	return &models.PayrollEntry{
		ID:          t.id(row, rowNum),
		Row:         rowNum,
		Date:        parseDate(t.get(row, config.FieldDate)),
		ProjectName: name,
		Project:     projectkey.Canonicalize(name),
		Specialist:  t.get(row, config.FieldSpecialist),
		Role:        t.get(row, config.FieldRole),
		Agreed:      t.amount(row, config.FieldAgreed),
		Paid:        t.amount(row, config.FieldPaid),
	}
}

func (t *table) encodePayroll(e *models.PayrollEntry, previous []interface{}) []interface{} {
	row := t.base(previous)
	t.set(row, config.FieldID, e.ID)
	t.set(row, config.FieldDate, formatDate(e.Date))
	t.set(row, config.FieldProject, e.ProjectName)
	t.set(row, config.FieldSpecialist, e.Specialist)
	t.set(row, config.FieldRole, e.Role)
	t.set(row, config.FieldAgreed, money.Format(e.Agreed))
	t.set(row, config.FieldPaid, money.Format(e.Paid))
	t.set(row, config.FieldOutstanding, money.Format(e.Outstanding()))
	return row
}

// cellString safely renders a cell value
func cellString(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", v))
}

func parseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, format := range dateFormats {
		if date, err := time.Parse(format, s); err == nil {
			return date
		}
	}
	return time.Time{}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "si", "sí", "yes", "true", "x", "1":
		return true
	}
	return false
}

func formatYes(b bool) string {
	if b {
		return labelYes
	}
	return labelNo
}

func parseProvenance(s string) models.Provenance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automatico", "automático", "automatic", "auto", "correo", "email":
		return models.ProvenanceAutomatic
	}
	return models.ProvenanceManual
}

func formatProvenance(p models.Provenance) string {
	if p == models.ProvenanceAutomatic {
		return labelAutomatic
	}
	return labelManual
}

// parseState reads the classification column. Without one, an expense is classified
// exactly when it names a project.
func parseState(s string, project projectkey.Key) models.ClassificationState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clasificado", "classified":
		return models.Classified
	case "sin clasificar", "unclassified", "pendiente":
		return models.Unclassified
	}
	if project.IsUnassigned() {
		return models.Unclassified
	}
	return models.Classified
}

func formatState(s models.ClassificationState) string {
	if s == models.Classified {
		return labelClassified
	}
	return labelUnclassified
}
