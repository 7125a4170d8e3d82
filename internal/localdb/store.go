// Package localdb keeps the ledgers in a relational database through gorm, as an
// alternative to the spreadsheet for offline use and tests. SQLite and PostgreSQL are
// supported.
package localdb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"sqr/internal/logger"
	"sqr/internal/reconciliation"
)

// Store implements reconciliation.Store on a gorm database.
type Store struct {
	db  *gorm.DB
	log zerolog.Logger
}

var _ reconciliation.Store = (*Store)(nil)

// Open connects to driver ("sqlite" or "postgres") at dsn and migrates the ledger tables.
// SQL statements are logged only when debug is set.
func Open(driver, dsn string, debug bool) (*Store, error) {
	const op = "Open"

	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%s: unknown driver %q", op, driver)
	}

	logLevel := gormlogger.Silent
	if debug {
		logLevel = gormlogger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(logLevel)})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect %s database: %w", op, driver, err)
	}

	return New(db)
}

// New wraps an open database, migrating the ledger tables.
func New(db *gorm.DB) (*Store, error) {
	const op = "New"

	for _, m := range []interface{}{&Sale{}, &Expense{}, &Payroll{}} {
		if err := db.AutoMigrate(m); err != nil {
			return nil, fmt.Errorf("%s: automigrate %T: %w", op, m, err)
		}
	}

	return &Store{db: db, log: logger.WithComponent("localdb")}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load reads the three ledgers in position order.
func (s *Store) Load(ctx context.Context) (*reconciliation.Books, error) {
	const op = "localdb.Load"

	db := s.db.WithContext(ctx)
	books := reconciliation.NewBooks()

	var sales []Sale
	if err := db.Order("position").Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("%s: read sales: %w", op, err)
	}
	for i := range sales {
		if err := books.LoadSale(sales[i].entry()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var expenses []Expense
	if err := db.Order("position").Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("%s: read expenses: %w", op, err)
	}
	for i := range expenses {
		if err := books.LoadExpense(expenses[i].entry()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	var payroll []Payroll
	if err := db.Order("position").Find(&payroll).Error; err != nil {
		return nil, fmt.Errorf("%s: read payroll: %w", op, err)
	}
	for i := range payroll {
		if err := books.LoadPayroll(payroll[i].entry()); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	s.log.Info().
		Int("sales", len(sales)).
		Int("expenses", len(expenses)).
		Int("payroll", len(payroll)).
		Msg("Ledgers loaded from database")
	return books, nil
}

// Flush upserts the dirty entries in one transaction. New entries get the next free
// position of their table; positions are only assigned once the transaction commits.
func (s *Store) Flush(ctx context.Context, books *reconciliation.Books) error {
	const op = "localdb.Flush"

	if !books.HasChanges() {
		return nil
	}

	sales := books.DirtySales()
	expenses := books.DirtyExpenses()
	payroll := books.DirtyPayroll()
	assigned := make(map[*int]int)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := nextPosition(tx, &Sale{})
		if err != nil {
			return err
		}
		for _, e := range sales {
			row := saleFromEntry(e)
			if row.Position == 0 {
				row.Position = next
				assigned[&e.Row] = next
				next++
			}
			if err := upsert(tx, row); err != nil {
				return err
			}
		}

		if next, err = nextPosition(tx, &Expense{}); err != nil {
			return err
		}
		for _, e := range expenses {
			row := expenseFromEntry(e)
			if row.Position == 0 {
				row.Position = next
				assigned[&e.Row] = next
				next++
			}
			if err := upsert(tx, row); err != nil {
				return err
			}
		}

		if next, err = nextPosition(tx, &Payroll{}); err != nil {
			return err
		}
		for _, e := range payroll {
			row := payrollFromEntry(e)
			if row.Position == 0 {
				row.Position = next
				assigned[&e.Row] = next
				next++
			}
			if err := upsert(tx, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for row, position := range assigned {
		*row = position
	}
	books.ClearDirty()

	s.log.Info().Int("sales", len(sales)).Int("expenses", len(expenses)).Int("payroll", len(payroll)).Msg("Ledger changes flushed")
	return nil
}

func nextPosition(tx *gorm.DB, model interface{}) (int, error) {
	var last int
	if err := tx.Model(model).Select("COALESCE(MAX(position), 0)").Scan(&last).Error; err != nil {
		return 0, fmt.Errorf("read last position: %w", err)
	}
	return last + 1, nil
}

func upsert(tx *gorm.DB, row interface{}) error {
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
		return fmt.Errorf("write %T: %w", row, err)
	}
	return nil
}
