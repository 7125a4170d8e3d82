package invoice

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"sqr/internal/logger"
	"sqr/internal/money"
	"sqr/pkg/models"
)

const (
	// MaxDocumentSizeBytes is the maximum document size for processing (20MB)
	MaxDocumentSizeBytes = 20 * 1024 * 1024
)

// documentClient is the slice of the Document AI client the processor uses.
type documentClient interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIProcessor implements PDFProcessor using a Document AI invoice parser.
type DocumentAIProcessor struct {
	client documentClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIProcessor creates a processor for the configured Document AI invoice parser.
func NewDocumentAIProcessor(ctx context.Context, config DocumentAIConfig) (*DocumentAIProcessor, error) {
	const op = "NewDocumentAIProcessor"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, fmt.Errorf("%s: %w: project and processor id are required", op, ErrInvalidConfiguration)
	}
	if config.Location == "" {
		config.Location = "us"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	var clientOptions []option.ClientOption
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	switch {
	case config.CredentialsJSON != "":
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	case config.CredentialsFile != "":
		clientOptions = append(clientOptions, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if config.CredentialsJSON == "" && config.CredentialsFile == "" {
			return nil, fmt.Errorf("%s: %w: %v", op, ErrMissingCredentials, err)
		}
		return nil, fmt.Errorf("%s: failed to create Document AI client for location %s: %w", op, config.Location, err)
	}

	return newDocumentAIProcessor(config, client), nil
}

func newDocumentAIProcessor(config DocumentAIConfig, client documentClient) *DocumentAIProcessor {
	return &DocumentAIProcessor{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// ProcessPDF sends the PDF to Document AI and maps the returned entities to a record.
func (p *DocumentAIProcessor) ProcessPDF(ctx context.Context, data []byte) (*models.InvoiceRecord, error) {
	const op = "ProcessPDF"

	if len(data) > MaxDocumentSizeBytes {
		return nil, fmt.Errorf("%s: %w: file size %d bytes", op, ErrDocumentTooLarge, len(data))
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		return nil, fmt.Errorf("%s: %w: missing PDF header", op, ErrInvalidPDF)
	}

	processCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req := &documentaipb.ProcessRequest{
		Name: p.processorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "application/pdf",
			},
		},
	}

	start := time.Now()
	resp, err := p.client.ProcessDocument(processCtx, req)
	if err != nil {
		return nil, p.processingError(op, err)
	}
	if resp.GetDocument() == nil {
		return nil, fmt.Errorf("%s: %w: no document in response", op, ErrProcessingFailed)
	}

	record := p.recordFromDocument(resp.GetDocument())
	p.log.Info().
		Str("reference", record.Reference).
		Str("supplier", record.Supplier).
		Int64("tax", int64(record.Tax)).
		Int64("total", int64(record.Total)).
		Dur("duration", time.Since(start)).
		Msg("Document AI extraction completed")
	return record, nil
}

// Close closes the underlying Document AI client.
func (p *DocumentAIProcessor) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func (p *DocumentAIProcessor) processorName() string {
	if p.config.ProcessorVersion != "" {
		return fmt.Sprintf("projects/%s/locations/%s/processors/%s/processorVersions/%s",
			p.config.ProjectID, p.config.Location, p.config.ProcessorID, p.config.ProcessorVersion)
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		p.config.ProjectID, p.config.Location, p.config.ProcessorID)
}

// processingError converts Document AI errors to package errors.
func (p *DocumentAIProcessor) processingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return fmt.Errorf("%s: %w: document format not supported or corrupted", op, ErrInvalidPDF)
	case strings.Contains(errStr, "PERMISSION_DENIED"), strings.Contains(errStr, "UNAUTHENTICATED"):
		return fmt.Errorf("%s: %w: %v", op, ErrMissingCredentials, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrProcessingFailed, err)
	}
}

// recordFromDocument maps invoice parser entities. Amounts prefer the normalized money value
// and fall back to the mention text through the normalizer.
func (p *DocumentAIProcessor) recordFromDocument(doc *documentaipb.Document) *models.InvoiceRecord {
	record := &models.InvoiceRecord{
		Supplier:  models.UnknownSupplier,
		Reference: models.NoReference,
	}

	var net money.Amount
	for _, entity := range doc.GetEntities() {
		value := strings.TrimSpace(entity.GetMentionText())

		p.log.Debug().
			Str("entity_type", entity.GetType()).
			Str("value", value).
			Float32("confidence", entity.GetConfidence()).
			Msg("Processing Document AI entity")

		switch entity.GetType() {
		case "invoice_id", "invoice_number":
			if value != "" {
				record.Reference = value
			}
		case "supplier_name", "vendor_name":
			if value != "" {
				record.Supplier = value
			}
		case "invoice_date":
			if date, ok := entityDate(entity); ok {
				record.IssueDate = date
			}
		case "net_amount", "subtotal_amount":
			net = entityAmount(entity)
		case "total_tax_amount", "vat_amount":
			record.Tax = entityAmount(entity)
		case "total_amount", "gross_amount":
			record.Total = entityAmount(entity)
		}
	}

	if record.Reference == models.NoReference {
		if fallback := referenceFromText(doc.GetText()); fallback != "" {
			p.log.Info().Str("fallback_reference", fallback).Msg("Invoice reference extracted from OCR text")
			record.Reference = fallback
		}
	}

	if record.Total == 0 && net > 0 {
		record.Total = net + record.Tax
	}
	if record.Tax > record.Total {
		record.Tax = record.Total
	}
	record.TaxBase = record.Total - record.Tax
	return record
}

func entityDate(entity *documentaipb.Document_Entity) (time.Time, bool) {
	if d := entity.GetNormalizedValue().GetDateValue(); d != nil {
		return time.Date(int(d.GetYear()), time.Month(d.GetMonth()), int(d.GetDay()), 0, 0, 0, 0, time.UTC), true
	}

	text := strings.TrimSpace(entity.GetMentionText())
	for _, layout := range []string{"2006-01-02", "02/01/2006", "02-01-2006", "2006/01/02"} {
		if date, err := time.Parse(layout, text); err == nil {
			return date, true
		}
	}
	return time.Time{}, false
}

func entityAmount(entity *documentaipb.Document_Entity) money.Amount {
	if m := entity.GetNormalizedValue().GetMoneyValue(); m != nil && m.GetUnits() >= 0 {
		return money.FromUnits(m.GetUnits()) + money.Amount(m.GetNanos()/10_000_000)
	}
	return money.Normalize(entity.GetMentionText())
}

// DIAN electronic invoice numbers: prefix letters followed by the consecutive number.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)factura\s+electr[oó]nica\s+de\s+venta\s*(?:no\.?|n[º°])?\s*[:\-]?\s*([A-Z]{1,6}-?\d{1,12})`),
	regexp.MustCompile(`(?i)(?:factura|invoice)\s*(?:no\.?|n[º°]|number|#)\s*[:\-]?\s*([A-Z0-9][A-Z0-9\-]{2,20})`),
}

func referenceFromText(text string) string {
	for _, re := range referencePatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			return strings.ToUpper(strings.TrimSpace(m[1]))
		}
	}
	return ""
}
