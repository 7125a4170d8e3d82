package invoice

import (
	"errors"
	"fmt"
)

// Common extraction errors. Every failure returned by an extractor matches ErrExtraction.
var (
	// ErrExtraction is the single outcome callers check for: the candidate is skipped.
	ErrExtraction = errors.New("invoice extraction failed")

	// ErrMalformedXML is returned when the payload is not well-formed XML.
	ErrMalformedXML = errors.New("malformed XML document")

	// ErrNotInvoice is returned when the root element is not an invoice document.
	ErrNotInvoice = errors.New("document is not an invoice")

	// ErrNoInvoiceMember is returned when an archive holds no document member.
	ErrNoInvoiceMember = errors.New("archive contains no invoice document")

	// ErrInvalidArchive is returned when a zip payload cannot be opened.
	ErrInvalidArchive = errors.New("invalid or corrupted archive")

	// ErrUnsupportedFormat is returned for payloads no configured extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrInvalidPDF is returned when the data is not a PDF or Document AI rejects it.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrProcessingFailed is returned when Document AI processing fails.
	ErrProcessingFailed = errors.New("document AI processing failed")

	// ErrDocumentTooLarge is returned when a document exceeds the processor size limit.
	ErrDocumentTooLarge = errors.New("document exceeds maximum size limit")

	// ErrMissingCredentials is returned when Google Cloud credentials are not configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	// ErrInvalidConfiguration is returned when the Document AI configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid Document AI configuration")
)

// ExtractionError wraps a failure with the operation and the document it concerned.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "Extract", "openArchive").
	Op string

	// Filename is the candidate filename hint.
	Filename string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("invoice: %s %q: %v", e.Op, e.Filename, e.Err)
	}
	return fmt.Sprintf("invoice: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is makes every ExtractionError match ErrExtraction in addition to its cause.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// wrapExtractionError wraps err as an ExtractionError unless it already is one, in which
// case only a missing filename is filled in.
func wrapExtractionError(op, filename string, err error) error {
	if err == nil {
		return nil
	}

	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		if extractionErr.Filename == "" {
			extractionErr.Filename = filename
		}
		return err
	}

	return &ExtractionError{Op: op, Filename: filename, Err: err}
}
