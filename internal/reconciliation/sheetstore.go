package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"sqr/internal/config"
	"sqr/internal/logger"
)

// SheetClient is the spreadsheet surface the ledgers need. Row numbers are 1-based sheet
// rows; row 1 holds the headers.
type SheetClient interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
	EnsureSheetWithHeaders(ctx context.Context, sheet string, headers []string) error
	UpdateRows(ctx context.Context, sheet string, rows map[int][]interface{}) error
	AppendRows(ctx context.Context, sheet string, rows [][]interface{}) (int, error)
}

// SheetStore keeps the three ledgers in one spreadsheet, one sheet per ledger.
type SheetStore struct {
	client SheetClient
	layout *config.Layout
	tables map[Kind]*table
	// raw holds the last cells read or written per sheet row, so updates keep columns
	// outside the layout intact.
	raw map[string][]interface{}
	log zerolog.Logger
}

// NewSheetStore returns a store over client. A nil layout uses the default one.
func NewSheetStore(client SheetClient, layout *config.Layout) *SheetStore {
	if layout == nil {
		layout = config.DefaultLayout()
	}
	return &SheetStore{
		client: client,
		layout: layout,
		tables: make(map[Kind]*table),
		raw:    make(map[string][]interface{}),
		log:    logger.WithComponent("sheetstore"),
	}
}

func (s *SheetStore) sheetLayout(kind Kind) (config.SheetLayout, []string) {
	switch kind {
	case KindSale:
		return s.layout.Sales, config.RequiredSalesFields
	case KindExpense:
		return s.layout.Expenses, config.RequiredExpenseFields
	default:
		return s.layout.Payroll, config.RequiredPayrollFields
	}
}

// Load reads all three sheets, creating missing sheets with the layout headers and adding
// absent layout columns to existing ones. Rows with
// no id get a synthetic one derived from their position; a row repeating an id already
// seen is given its synthetic id and marked for write-back.
func (s *SheetStore) Load(ctx context.Context) (*Books, error) {
	const op = "SheetStore.Load"

	books := NewBooks()
	for _, kind := range []Kind{KindSale, KindExpense, KindPayroll} {
		if err := s.loadSheet(ctx, kind, books); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info().
		Int("sales", len(books.sales)).
		Int("expenses", len(books.expenses)).
		Int("payroll", len(books.payroll)).
		Msg("Ledgers loaded from spreadsheet")
	return books, nil
}

func (s *SheetStore) loadSheet(ctx context.Context, kind Kind, books *Books) error {
	layout, required := s.sheetLayout(kind)

	if err := s.client.EnsureSheetWithHeaders(ctx, layout.Sheet, layout.Headers()); err != nil {
		return fmt.Errorf("prepare sheet %s: %w", layout.Sheet, err)
	}

	values, err := s.client.ReadRange(ctx, quoteSheet(layout.Sheet))
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", layout.Sheet, err)
	}

	header := layoutHeader(layout)
	if len(values) > 0 && len(values[0]) > 0 {
		if header, err = s.extendHeader(ctx, layout, values[0]); err != nil {
			return err
		}
	}
	t, err := newTable(layout, header, required)
	if err != nil {
		return err
	}
	s.tables[kind] = t

	for i := 1; i < len(values); i++ {
		row := values[i]
		if t.blank(row) {
			continue
		}
		rowNum := i + 1
		s.raw[rawKey(layout.Sheet, rowNum)] = row

		var id string
		var load func(string) error
		switch kind {
		case KindSale:
			e := t.decodeSale(row, rowNum)
			id, load = e.ID, func(id string) error { e.ID = id; return books.LoadSale(e) }
		case KindExpense:
			e := t.decodeExpense(row, rowNum)
			id, load = e.ID, func(id string) error { e.ID = id; return books.LoadExpense(e) }
		default:
			e := t.decodePayroll(row, rowNum)
			id, load = e.ID, func(id string) error { e.ID = id; return books.LoadPayroll(e) }
		}

		err := load(id)
		if errors.Is(err, ErrDuplicateID) {
			synthetic := syntheticID(layout.Sheet, rowNum)
			if synthetic == id {
				return err
			}
			s.log.Warn().Str("sheet", layout.Sheet).Int("row", rowNum).Str("id", id).Str("reassigned", synthetic).Msg("Duplicate entry id, reassigning")
			if err := load(synthetic); err != nil {
				return err
			}
			books.MarkDirty(synthetic)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush writes the dirty entries of books. Entries with a row are updated in place; new
// entries are appended in ledger order and receive their row numbers.
func (s *SheetStore) Flush(ctx context.Context, books *Books) error {
	const op = "SheetStore.Flush"

	if !books.HasChanges() {
		s.log.Debug().Msg("No ledger changes to flush")
		return nil
	}

	sales := books.DirtySales()
	if err := s.flushSheet(ctx, KindSale, len(sales), func(i int) (*int, func(*table, []interface{}) []interface{}) {
		e := sales[i]
		return &e.Row, func(t *table, prev []interface{}) []interface{} { return t.encodeSale(e, prev) }
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	expenses := books.DirtyExpenses()
	if err := s.flushSheet(ctx, KindExpense, len(expenses), func(i int) (*int, func(*table, []interface{}) []interface{}) {
		e := expenses[i]
		return &e.Row, func(t *table, prev []interface{}) []interface{} { return t.encodeExpense(e, prev) }
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	payroll := books.DirtyPayroll()
	if err := s.flushSheet(ctx, KindPayroll, len(payroll), func(i int) (*int, func(*table, []interface{}) []interface{}) {
		e := payroll[i]
		return &e.Row, func(t *table, prev []interface{}) []interface{} { return t.encodePayroll(e, prev) }
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	books.ClearDirty()
	s.log.Info().Int("sales", len(sales)).Int("expenses", len(expenses)).Int("payroll", len(payroll)).Msg("Ledger changes flushed")
	return nil
}

// flushSheet writes n dirty entries of one ledger. entry returns the row pointer of the
// i-th entry and its encoder.
func (s *SheetStore) flushSheet(ctx context.Context, kind Kind, n int, entry func(i int) (*int, func(*table, []interface{}) []interface{})) error {
	if n == 0 {
		return nil
	}

	t, err := s.table(ctx, kind)
	if err != nil {
		return err
	}

	updates := make(map[int][]interface{})
	var appended [][]interface{}
	var rows []*int

	for i := 0; i < n; i++ {
		row, encode := entry(i)
		if *row > 0 {
			updates[*row] = encode(t, s.raw[rawKey(t.sheet, *row)])
			continue
		}
		appended = append(appended, encode(t, nil))
		rows = append(rows, row)
	}

	if len(updates) > 0 {
		if err := s.client.UpdateRows(ctx, t.sheet, updates); err != nil {
			return fmt.Errorf("update sheet %s: %w", t.sheet, err)
		}
		for rowNum, values := range updates {
			s.raw[rawKey(t.sheet, rowNum)] = values
		}
	}

	if len(appended) > 0 {
		first, err := s.client.AppendRows(ctx, t.sheet, appended)
		if err != nil {
			return fmt.Errorf("append to sheet %s: %w", t.sheet, err)
		}
		for i, row := range rows {
			*row = first + i
			s.raw[rawKey(t.sheet, *row)] = appended[i]
		}
	}

	s.log.Debug().Str("sheet", t.sheet).Int("updated", len(updates)).Int("appended", len(appended)).Msg("Sheet flushed")
	return nil
}

// table returns the column map of a ledger, preparing the sheet when Load has not run.
func (s *SheetStore) table(ctx context.Context, kind Kind) (*table, error) {
	if t, ok := s.tables[kind]; ok {
		return t, nil
	}

	layout, required := s.sheetLayout(kind)
	if err := s.client.EnsureSheetWithHeaders(ctx, layout.Sheet, layout.Headers()); err != nil {
		return nil, fmt.Errorf("prepare sheet %s: %w", layout.Sheet, err)
	}
	t, err := newTable(layout, layoutHeader(layout), required)
	if err != nil {
		return nil, err
	}
	s.tables[kind] = t
	return t, nil
}

// extendHeader appends the layout columns a sheet lacks to the end of its header row.
// Sheets kept before the ID, reference or classification columns existed gain them here;
// their existing rows read those cells as blank.
func (s *SheetStore) extendHeader(ctx context.Context, layout config.SheetLayout, header []interface{}) ([]interface{}, error) {
	present := make(map[string]bool, len(header))
	for _, cell := range header {
		present[config.HeaderKey(cellString(cell))] = true
	}

	extended := append([]interface{}(nil), header...)
	var added []string
	for _, col := range layout.Columns {
		if !present[config.HeaderKey(col.Header)] {
			extended = append(extended, col.Header)
			added = append(added, col.Header)
		}
	}
	if len(added) == 0 {
		return header, nil
	}

	if err := s.client.UpdateRows(ctx, layout.Sheet, map[int][]interface{}{1: extended}); err != nil {
		return nil, fmt.Errorf("extend header of %s: %w", layout.Sheet, err)
	}
	s.log.Info().Str("sheet", layout.Sheet).Strs("columns", added).Msg("Added missing ledger columns to sheet header")
	return extended, nil
}

func layoutHeader(layout config.SheetLayout) []interface{} {
	headers := layout.Headers()
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}

func rawKey(sheet string, row int) string {
	return fmt.Sprintf("%s\x00%d", sheet, row)
}

// quoteSheet renders a sheet name as an A1 range covering the whole sheet.
func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}
