package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqr/internal/invoice"
	"sqr/internal/money"
	"sqr/internal/projectkey"
	"sqr/pkg/models"
)

func ublInvoice(ref, supplier, tax, total string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
         xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
         xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2">
  <cbc:ID>%s</cbc:ID>
  <cbc:IssueDate>2024-03-15</cbc:IssueDate>
  <cac:AccountingSupplierParty><cac:Party><cac:PartyName><cbc:Name>%s</cbc:Name></cac:PartyName></cac:Party></cac:AccountingSupplierParty>
  <cac:TaxTotal><cbc:TaxAmount currencyID="COP">%s</cbc:TaxAmount></cac:TaxTotal>
  <cac:LegalMonetaryTotal><cbc:PayableAmount currencyID="COP">%s</cbc:PayableAmount></cac:LegalMonetaryTotal>
</Invoice>`, ref, supplier, tax, total)
}

func zipped(t *testing.T, name, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIngestWithInvoiceExtractor(t *testing.T) {
	d := NewDeduplicator(invoice.NewExtractor(nil), Config{
		Workers: 2,
		Now:     func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
	})

	candidates := []models.Document{
		{Filename: "fe-100.xml", Data: []byte(ublInvoice("FE-100", "Ferreteria Central", "190000.00", "1190000.00")), Origin: "dir:fe-100.xml"},
		{Filename: "fe-100-r1.zip", Data: zipped(t, "fe-100-r1.xml", ublInvoice("FE-100-R1", "Ferreteria Central", "190000.00", "1190000.00")), Origin: "dir:fe-100-r1.zip"},
		{Filename: "fe-300.zip", Data: zipped(t, "invoice.xml", ublInvoice("FE-300", "Maderas del Sur", "0", "300000")), Origin: "dir:fe-300.zip"},
		{Filename: "broken.xml", Data: []byte("<Invoice><ID>FE-400</ID></Invoice><junk"), Origin: "dir:broken.xml"},
	}

	first, err := d.Ingest(context.Background(), candidates, ReferencesFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, 2, first.Accepted)
	assert.Equal(t, 1, first.Duplicates)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, Duplicate, first.Log[1].Disposition)
	assert.Equal(t, "FE-100", first.Log[1].CoveredBy)
	assert.Equal(t, Failed, first.Log[3].Disposition)
	assert.ErrorIs(t, first.Log[3].Err, invoice.ErrMalformedXML)

	require.Len(t, first.Entries, 2)
	fe100 := first.Entries[0]
	assert.Equal(t, "FE-100", fe100.Reference)
	assert.Equal(t, "Ferreteria Central", fe100.Supplier)
	assert.Equal(t, money.FromUnits(1000000), fe100.TaxBase)
	assert.Equal(t, money.FromUnits(190000), fe100.Tax)
	assert.Equal(t, money.FromUnits(1190000), fe100.Total)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), fe100.Date)
	assert.Equal(t, projectkey.Unassigned, fe100.Project)
	assert.Equal(t, models.Unclassified, fe100.State)
	assert.Equal(t, models.ProvenanceAutomatic, fe100.Provenance)
	assert.Equal(t, "FE-300", first.Entries[1].Reference)

	// Running the same documents against the written-back ledger adds nothing.
	second, err := d.Ingest(context.Background(), candidates, ReferencesFrom(first.Entries))
	require.NoError(t, err)
	assert.Empty(t, second.Entries)
	assert.Equal(t, 0, second.Accepted)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, 1, second.Failed)
}
