package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqr/internal/invoice"
	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

// fakeExtractor reads "REF|SUPPLIER|TOTAL" payloads; "bad" payloads fail.
type fakeExtractor struct {
	calls atomic.Int32
	delay func(filename string) time.Duration
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, filename string) (*models.InvoiceRecord, error) {
	f.calls.Add(1)
	if f.delay != nil {
		time.Sleep(f.delay(filename))
	}
	parts := strings.Split(string(data), "|")
	if len(parts) != 3 {
		return nil, &invoice.ExtractionError{Op: "Extract", Filename: filename, Err: invoice.ErrMalformedXML}
	}
	return &models.InvoiceRecord{
		Reference: parts[0],
		Supplier:  parts[1],
		Total:     money.Normalize(parts[2]),
		TaxBase:   money.Normalize(parts[2]),
		Filename:  filename,
	}, nil
}

func doc(name, payload string) models.Document {
	return models.Document{Filename: name, Data: []byte(payload), Origin: "test"}
}

func newTestDeduplicator(rule Rule) (*Deduplicator, *fakeExtractor) {
	extractor := &fakeExtractor{}
	n := 0
	d := NewDeduplicator(extractor, Config{
		Workers: 4,
		Rule:    rule,
		Now:     func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("exp-%d", n)
		},
	})
	return d, extractor
}

func TestIngestRevisionSuffixIsDuplicate(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)

	result, err := d.Ingest(context.Background(), []models.Document{
		doc("a.xml", "FE-100|Ferreteria|1.190.000"),
		doc("b.xml", "FE-100-R1|Ferreteria|1.190.000"),
	}, NewReferenceSet())
	require.NoError(t, err)

	require.Len(t, result.Entries, 1)
	assert.Equal(t, "FE-100", result.Entries[0].Reference)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, Duplicate, result.Log[1].Disposition)
	assert.Equal(t, "FE-100", result.Log[1].CoveredBy)
}

func TestIngestExactRule(t *testing.T) {
	d, _ := newTestDeduplicator(RuleExact)

	result, err := d.Ingest(context.Background(), []models.Document{
		doc("a.xml", "FE-100|Ferreteria|100"),
		doc("b.xml", "FE-100-R1|Ferreteria|100"),
		doc("c.xml", "FE-100|Ferreteria|100"),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 1, result.Duplicates)
}

func TestIngestStoredReferenceContainsCandidate(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)

	result, err := d.Ingest(context.Background(), []models.Document{
		doc("a.xml", "FE-7|Maderas|100"),
	}, NewReferenceSet("SETP-FE-7"))
	require.NoError(t, err)

	assert.Empty(t, result.Entries)
	assert.Equal(t, "SETP-FE-7", result.Log[0].CoveredBy)
}

func TestIngestIsIdempotent(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)
	candidates := []models.Document{
		doc("a.xml", "FE-1|A|100"),
		doc("b.zip", "FE-2|B|200"),
		doc("c.xml", "bad"),
		doc("d.xml", "FE-3|C|300"),
	}

	first, err := d.Ingest(context.Background(), candidates, NewReferenceSet())
	require.NoError(t, err)
	assert.Equal(t, 3, first.Accepted)
	assert.Equal(t, 1, first.Failed)

	second, err := d.Ingest(context.Background(), candidates, first.References)
	require.NoError(t, err)
	assert.Empty(t, second.Entries)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, 1, second.Failed)
}

func TestIngestDoesNotMutateInput(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)
	existing := NewReferenceSet("OLD-1")

	result, err := d.Ingest(context.Background(), []models.Document{doc("a.xml", "NEW-1|A|100")}, existing)
	require.NoError(t, err)

	assert.Equal(t, 1, existing.Len())
	assert.False(t, existing.Contains("NEW-1"))
	assert.Equal(t, []string{"OLD-1", "NEW-1"}, result.References.References())
}

func TestIngestKeepsCandidateOrder(t *testing.T) {
	d, extractor := newTestDeduplicator(RuleContains)
	// Later candidates finish first; the earlier one must still win.
	extractor.delay = func(filename string) time.Duration {
		if filename == "first.xml" {
			return 30 * time.Millisecond
		}
		return 0
	}

	result, err := d.Ingest(context.Background(), []models.Document{
		doc("first.xml", "FE-9|A|100"),
		doc("second.xml", "FE-9|A|100"),
		doc("third.xml", "FE-9|A|100"),
	}, nil)
	require.NoError(t, err)

	require.Len(t, result.Log, 3)
	assert.Equal(t, Accepted, result.Log[0].Disposition)
	assert.Equal(t, "first.xml", result.Log[0].Filename)
	assert.Equal(t, Duplicate, result.Log[1].Disposition)
	assert.Equal(t, Duplicate, result.Log[2].Disposition)
	assert.Equal(t, int32(3), extractor.calls.Load())
}

func TestIngestNewExpenseShape(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)

	result, err := d.Ingest(context.Background(), []models.Document{doc("a.xml", "FE-5|Cementos|$238.000")}, nil)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	entry := result.Entries[0]
	assert.Equal(t, "exp-1", entry.ID)
	assert.Equal(t, projectkey.Unassigned, entry.Project)
	assert.Equal(t, models.Unclassified, entry.State)
	assert.Equal(t, models.ProvenanceAutomatic, entry.Provenance)
	assert.Equal(t, models.CategoryPending, entry.Category)
	assert.Equal(t, "Factura FE-5", entry.Concept)
	assert.Equal(t, money.FromUnits(238000), entry.Total)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), entry.Date)
	assert.Equal(t, "exp-1", result.Log[0].EntryID)
}

// Two passes reading the same reference set before either writes back both accept the
// invoice. Serializing passes against the store is the caller's job.
func TestIngestInterleavedPassesDuplicate(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)
	stored := NewReferenceSet("FE-1")
	candidates := []models.Document{doc("new.xml", "FE-2|A|100")}

	passA, err := d.Ingest(context.Background(), candidates, stored)
	require.NoError(t, err)
	passB, err := d.Ingest(context.Background(), candidates, stored)
	require.NoError(t, err)

	assert.Equal(t, 1, passA.Accepted)
	assert.Equal(t, 1, passB.Accepted, "stale read lets the second pass accept the same invoice")

	// A pass that reads after the first write-back sees the reference.
	passC, err := d.Ingest(context.Background(), candidates, passA.References)
	require.NoError(t, err)
	assert.Equal(t, 0, passC.Accepted)
}

func TestIngestCanceled(t *testing.T) {
	d, _ := newTestDeduplicator(RuleContains)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := d.Ingest(ctx, []models.Document{doc("a.xml", "FE-1|A|100")}, nil)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestIngestWrapsForeignErrors(t *testing.T) {
	d := NewDeduplicator(extractorFunc(func(context.Context, []byte, string) (*models.InvoiceRecord, error) {
		return nil, errors.New("boom")
	}), Config{})

	result, err := d.Ingest(context.Background(), []models.Document{doc("a.xml", "x")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.ErrorIs(t, result.Log[0].Err, invoice.ErrExtraction)
}

type extractorFunc func(ctx context.Context, data []byte, filename string) (*models.InvoiceRecord, error)

func (f extractorFunc) Extract(ctx context.Context, data []byte, filename string) (*models.InvoiceRecord, error) {
	return f(ctx, data, filename)
}

func TestParseRule(t *testing.T) {
	rule, err := ParseRule("")
	require.NoError(t, err)
	assert.Equal(t, RuleContains, rule)

	rule, err = ParseRule(" EXACT ")
	require.NoError(t, err)
	assert.Equal(t, RuleExact, rule)

	_, err = ParseRule("fuzzy")
	assert.Error(t, err)
}

func TestReferencesFrom(t *testing.T) {
	set := ReferencesFrom([]*models.ExpenseEntry{
		{Reference: "FE-1"},
		{Reference: ""},
		{Reference: " FE-2 "},
		{Reference: "FE-1"},
	})
	assert.Equal(t, []string{"FE-1", "FE-2"}, set.References())
}
