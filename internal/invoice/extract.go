package invoice

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"sqr/internal/logger"
	"sqr/pkg/models"
)

// MaxMemberSizeBytes caps how much of a single archive member is read.
const MaxMemberSizeBytes = MaxDocumentSizeBytes

// Extractor turns one candidate document into an InvoiceRecord. XML and zip payloads are
// handled locally; PDFs are delegated to the optional PDF processor.
type Extractor struct {
	pdf PDFProcessor
	log zerolog.Logger
}

// NewExtractor creates an extractor. pdf may be nil, in which case PDF candidates fail.
func NewExtractor(pdf PDFProcessor) *Extractor {
	return &Extractor{
		pdf: pdf,
		log: logger.WithComponent("invoice"),
	}
}

// Extract returns the invoice carried by data. The filename hint selects the container
// handling: ".zip" opens the archive, ".pdf" goes to the PDF processor, anything else is
// parsed as XML. Every returned error matches ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, data []byte, filename string) (*models.InvoiceRecord, error) {
	const op = "Extract"

	if err := ctx.Err(); err != nil {
		return nil, wrapExtractionError(op, filename, err)
	}

	var (
		record *models.InvoiceRecord
		err    error
	)
	switch extensionOf(filename) {
	case ".zip":
		record, err = e.extractArchive(ctx, data)
	case ".pdf":
		record, err = e.extractPDF(ctx, data)
	default:
		record, err = ParseXML(data)
	}
	if err != nil {
		return nil, wrapExtractionError(op, filename, err)
	}

	record.Filename = filename
	e.log.Debug().
		Str("filename", filename).
		Str("reference", record.Reference).
		Str("supplier", record.Supplier).
		Int64("total", int64(record.Total)).
		Msg("Invoice extracted")
	return record, nil
}

// extractArchive uses the first XML member in archive order. Without one, the first PDF
// member is used when a PDF processor is configured.
func (e *Extractor) extractArchive(ctx context.Context, data []byte) (*models.InvoiceRecord, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	var pdfMember *zip.File
	for _, member := range archive.File {
		if member.FileInfo().IsDir() || strings.HasPrefix(member.Name, "__MACOSX/") {
			continue
		}

		switch extensionOf(member.Name) {
		case ".xml":
			content, err := readMember(member)
			if err != nil {
				return nil, err
			}
			e.log.Debug().Str("member", member.Name).Msg("Using archive member")
			return ParseXML(content)
		case ".pdf":
			if pdfMember == nil {
				pdfMember = member
			}
		}
	}

	if pdfMember != nil && e.pdf != nil {
		content, err := readMember(pdfMember)
		if err != nil {
			return nil, err
		}
		e.log.Debug().Str("member", pdfMember.Name).Msg("Using PDF archive member")
		return e.pdf.ProcessPDF(ctx, content)
	}

	return nil, ErrNoInvoiceMember
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (*models.InvoiceRecord, error) {
	if e.pdf == nil {
		return nil, fmt.Errorf("%w: no PDF processor configured", ErrUnsupportedFormat)
	}
	return e.pdf.ProcessPDF(ctx, data)
}

func readMember(member *zip.File) ([]byte, error) {
	rc, err := member.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, member.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, MaxMemberSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidArchive, member.Name, err)
	}
	if len(content) > MaxMemberSizeBytes {
		return nil, fmt.Errorf("%w: member %s", ErrDocumentTooLarge, member.Name)
	}
	return content, nil
}

func extensionOf(name string) string {
	return strings.ToLower(path.Ext(name))
}
