// Package invoice turns supplier invoice documents into InvoiceRecords.
//
// Supported inputs:
//   - UBL 2.1 electronic invoices (Invoice root element)
//   - DIAN AttachedDocument containers that embed a UBL invoice as character data
//   - zip archives carrying one of the above (the first .xml member wins)
//   - PDF invoices, when a PDFProcessor such as the Document AI processor is configured
//
// Extraction never panics on hostile input. Every failure matches ErrExtraction so
// ingestion can skip the candidate and move on.
//
// PDF support reads GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION and
// DOCUMENT_AI_PROCESSOR_ID, authenticating with GOOGLE_APPLICATION_CREDENTIALS or
// GOOGLE_CREDENTIALS. Synchronous processing accepts documents up to 20MB.
package invoice

import (
	"context"
	"time"

	"sqr/pkg/models"
)

// PDFProcessor extracts an invoice record from a PDF document.
type PDFProcessor interface {
	// ProcessPDF returns the record found in the PDF. Missing fields carry the same
	// fallbacks as structured invoices.
	ProcessPDF(ctx context.Context, data []byte) (*models.InvoiceRecord, error)
}

// DocumentAIConfig holds configuration for Google Document AI processing.
type DocumentAIConfig struct {
	ProjectID   string
	Location    string // "us" or "eu"
	ProcessorID string
	// ProcessorVersion pins a processor version; empty uses the processor default.
	ProcessorVersion string

	// CredentialsFile and CredentialsJSON select the service account. JSON wins.
	CredentialsFile string
	CredentialsJSON string

	// Timeout bounds one ProcessDocument call.
	Timeout time.Duration
}

// DefaultConfig processes in the US region with a one minute timeout.
func DefaultConfig() DocumentAIConfig {
	return DocumentAIConfig{
		Location: "us",
		Timeout:  60 * time.Second,
	}
}

// Enabled reports whether enough configuration is present to call Document AI.
func (c DocumentAIConfig) Enabled() bool {
	return c.ProjectID != "" && c.ProcessorID != ""
}
