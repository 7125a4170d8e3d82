package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sqr/internal/config"
	"sqr/internal/gauth"
	"sqr/internal/localdb"
	"sqr/internal/logger"
	"sqr/internal/money"
	"sqr/internal/reconciliation"
	"sqr/internal/sheets"
)

// ledger is one unit of work: the books loaded from the configured store and the
// reconciler operating on them.
type ledger struct {
	cfg   *config.Config
	store reconciliation.Store
	rec   *reconciliation.Reconciler
	close func() error
	log   zerolog.Logger
}

// openLedger loads configuration, connects the configured store and reads the books.
func openLedger(ctx context.Context) (*ledger, error) {
	const op = "openLedger"

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	books, err := store.Load(ctx)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &ledger{
		cfg:   cfg,
		store: store,
		rec:   reconciliation.NewReconciler(books, reconciliation.Options{}),
		close: closeStore,
		log:   logger.WithComponent("ledger"),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (reconciliation.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreDriver {
	case config.DriverSheets:
		layout, err := config.LoadLayout(cfg.LedgerLayoutFile)
		if err != nil {
			return nil, nil, err
		}
		creds := gauth.Source{File: cfg.GoogleCredentialsFile, JSON: cfg.GoogleCredentialsJSON}
		service, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, creds)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		return reconciliation.NewSheetStore(service, layout), noop, nil

	case config.DriverSQLite, config.DriverPostgres:
		dsn := cfg.DatabaseDSN
		if cfg.StoreDriver == config.DriverSQLite {
			dsn = cfg.SQLitePath
		}
		store, err := localdb.Open(cfg.StoreDriver, dsn, cfg.LogLevel == "debug" || cfg.LogLevel == "trace")
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// commit writes pending changes back to the store.
func (l *ledger) commit(ctx context.Context) error {
	books := l.rec.Books()
	if !books.HasChanges() {
		l.log.Debug().Msg("Nothing to write")
		return nil
	}
	if err := l.store.Flush(ctx, books); err != nil {
		return fmt.Errorf("failed to write ledger changes: %w", err)
	}
	return nil
}

func (l *ledger) Close() {
	if err := l.close(); err != nil {
		l.log.Warn().Err(err).Msg("Failed to close store")
	}
}

// parseAmount reads a user supplied amount. Unlike sheet cells, arguments that cannot be
// read exactly are rejected.
func parseAmount(name, text string) (money.Amount, error) {
	amount, warnings := money.Parse(text)
	for _, w := range warnings {
		if w.Kind != money.WarnAmbiguous {
			return 0, fmt.Errorf("invalid %s %q: %s", name, text, w.Detail)
		}
	}
	return amount, nil
}

// parseDate reads an optional YYYY-MM-DD date; blank means today.
func parseDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", text)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format. Use YYYY-MM-DD: %w", err)
	}
	return date, nil
}
