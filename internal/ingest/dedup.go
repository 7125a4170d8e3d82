// Package ingest turns candidate invoice documents into new expense entries, exactly once
// per invoice reference.
//
// An ingestion pass has two stages:
//   - extraction runs concurrently over all candidates (bounded by Config.Workers)
//   - deduplication then walks the results sequentially in candidate order, adding every
//     accepted reference to the working set before the next candidate is judged
//
// Nothing is persisted. The caller writes Result.Entries back to the expenses ledger; a
// result that is dropped leaves no trace. Two passes that read the same reference set and
// both write back can duplicate an invoice: callers must serialize passes against the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"sqr/internal/invoice"
	"sqr/internal/logger"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// DefaultWorkers bounds concurrent extractions when Config.Workers is unset.
const DefaultWorkers = 8

// Extractor is the invoice extraction stage.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string) (*models.InvoiceRecord, error)
}

// Disposition is the outcome of one candidate.
type Disposition string

const (
	Accepted  Disposition = "accepted"
	Duplicate Disposition = "duplicate"
	Failed    Disposition = "failed"
)

// Outcome is one line of the ingestion log, in candidate order.
type Outcome struct {
	Index       int
	Filename    string
	Origin      string
	Disposition Disposition
	Reference   string
	// CoveredBy is the stored reference that made the candidate a duplicate
	CoveredBy string
	// EntryID of the expense created for an accepted candidate
	EntryID string
	Err     error
}

// Result of one ingestion pass.
type Result struct {
	Entries    []*models.ExpenseEntry
	References *ReferenceSet
	Log        []Outcome

	Accepted   int
	Duplicates int
	Failed     int
}

// Config tunes a Deduplicator.
type Config struct {
	Workers int
	Rule    Rule
	// Now dates expenses whose invoice carries no issue date.
	Now func() time.Time
	// NewID generates expense entry ids.
	NewID func() string
}

// Deduplicator runs ingestion passes.
type Deduplicator struct {
	extractor Extractor
	cfg       Config
	log       zerolog.Logger
}

// NewDeduplicator creates a deduplicator, filling unset config with defaults.
func NewDeduplicator(extractor Extractor, cfg Config) *Deduplicator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Rule == "" {
		cfg.Rule = RuleContains
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Deduplicator{
		extractor: extractor,
		cfg:       cfg,
		log:       logger.WithComponent("ingest"),
	}
}

type extraction struct {
	record *models.InvoiceRecord
	err    error
}

// Ingest judges every candidate against existing, which is never modified. Per-candidate
// failures are recorded in the log; only cancellation of ctx is returned as an error.
func (d *Deduplicator) Ingest(ctx context.Context, candidates []models.Document, existing *ReferenceSet) (*Result, error) {
	const op = "Ingest"

	if existing == nil {
		existing = NewReferenceSet()
	}

	extracted, err := d.extractAll(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result := &Result{References: existing.Clone()}
	for i, candidate := range candidates {
		outcome := Outcome{Index: i, Filename: candidate.Filename, Origin: candidate.Origin}
		ex := extracted[i]

		switch {
		case ex.err != nil:
			outcome.Disposition = Failed
			outcome.Err = ex.err
			result.Failed++
			d.log.Warn().Err(ex.err).Str("filename", candidate.Filename).Str("origin", candidate.Origin).Msg("Skipping unreadable candidate")

		default:
			outcome.Reference = ex.record.Reference
			if covered, ok := result.References.Covers(ex.record.Reference, d.cfg.Rule); ok {
				outcome.Disposition = Duplicate
				outcome.CoveredBy = covered
				result.Duplicates++
				d.log.Info().Str("reference", ex.record.Reference).Str("covered_by", covered).Str("filename", candidate.Filename).Msg("Duplicate invoice skipped")
				break
			}

			entry := NewExpense(ex.record, d.cfg.NewID(), d.cfg.Now())
			result.Entries = append(result.Entries, entry)
			result.References.Add(ex.record.Reference)
			outcome.Disposition = Accepted
			outcome.EntryID = entry.ID
			result.Accepted++
			d.log.Info().Str("reference", entry.Reference).Str("supplier", entry.Supplier).Int64("total", int64(entry.Total)).Msg("Invoice accepted")
		}

		result.Log = append(result.Log, outcome)
	}

	d.log.Info().
		Int("candidates", len(candidates)).
		Int("accepted", result.Accepted).
		Int("duplicates", result.Duplicates).
		Int("failed", result.Failed).
		Msg("Ingestion pass completed")
	return result, nil
}

// extractAll runs the extractor over every candidate, keeping results in candidate order.
func (d *Deduplicator) extractAll(ctx context.Context, candidates []models.Document) ([]extraction, error) {
	results := make([]extraction, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for i, candidate := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record, err := d.extractor.Extract(gctx, candidate.Data, candidate.Filename)
			if err != nil && !errors.Is(err, invoice.ErrExtraction) {
				err = &invoice.ExtractionError{Op: "Extract", Filename: candidate.Filename, Err: err}
			}
			results[i] = extraction{record: record, err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// NewExpense copies an accepted invoice into an unclassified, unassigned expense entry.
func NewExpense(record *models.InvoiceRecord, id string, now time.Time) *models.ExpenseEntry {
	date := record.IssueDate
	if date.IsZero() {
		date = now
	}

	return &models.ExpenseEntry{
		ID:          id,
		Date:        date,
		ProjectName: projectkey.UnassignedLabel,
		Project:     projectkey.Unassigned,
		Supplier:    record.Supplier,
		Concept:     "Factura " + record.Reference,
		Reference:   record.Reference,
		TaxBase:     record.TaxBase,
		Tax:         record.Tax,
		Total:       record.Total,
		Category:    models.CategoryPending,
		Provenance:  models.ProvenanceAutomatic,
		State:       models.Unclassified,
	}
}
