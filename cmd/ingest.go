package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sqr/internal/gauth"
	"sqr/internal/ingest"
	"sqr/internal/invoice"
	"sqr/internal/logger"
	"sqr/internal/source"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest supplier invoices as unclassified expenses",
	Long: `Collect supplier invoices, extract them and file every new one as an unclassified
expense in the unassigned bucket ("Gasto General").

Documents come from a drop folder (default INGEST_DIR) or, with --gmail, from the
mailbox GMAIL_USER filtered by GMAIL_QUERY. UBL XML files and zip archives holding
one are supported; PDFs are read through Document AI when GOOGLE_CLOUD_PROJECT and
DOCUMENT_AI_PROCESSOR_ID are set.

An invoice whose reference is already on the ledger is skipped. With the default
DEDUP_RULE=contains a reference also counts as known when it contains, or is
contained in, a stored one (FE-100 and FE-100-R1).`,
	Example: `  # Ingest everything dropped into ./inbox
  sqr ingest

  # Ingest a specific folder without writing to the ledger
  sqr ingest --dir ~/Descargas/facturas --dry-run

  # Ingest from the mailbox with 4 extraction workers
  sqr ingest --gmail --workers 4`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("dir", "", "Folder to read documents from (default: INGEST_DIR)")
	ingestCmd.Flags().Bool("gmail", false, "Read attachments from the configured Gmail mailbox")
	ingestCmd.Flags().Bool("dry-run", false, "Report what would be ingested without writing")
	ingestCmd.Flags().Int("workers", 0, "Parallel extraction workers (default: INGEST_WORKERS)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("ingest-cmd")
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir, _ := cmd.Flags().GetString("dir")
	useGmail, _ := cmd.Flags().GetBool("gmail")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	workers, _ := cmd.Flags().GetInt("workers")

	if useGmail && dir != "" {
		return fmt.Errorf("--dir and --gmail are mutually exclusive")
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()
	cfg := l.cfg

	rule, err := ingest.ParseRule(cfg.DedupRule)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.IngestWorkers
	}

	var src source.Source
	if useGmail {
		creds := gauth.Source{File: cfg.GoogleCredentialsFile, JSON: cfg.GoogleCredentialsJSON}
		src, err = source.NewGmail(ctx, creds, cfg.GmailUser, cfg.GmailQuery, cfg.GmailMax)
		if err != nil {
			return err
		}
	} else {
		if dir == "" {
			dir = cfg.InboxDir
		}
		src = source.NewDirectory(dir)
	}

	var pdf invoice.PDFProcessor
	if cfg.DocumentAIEnabled() {
		daiConfig := invoice.DefaultConfig()
		daiConfig.ProjectID = cfg.GoogleCloudProject
		daiConfig.Location = cfg.GoogleCloudLocation
		daiConfig.ProcessorID = cfg.DocumentAIProcessorID
		daiConfig.ProcessorVersion = cfg.DocumentAIProcessorVersion
		daiConfig.CredentialsFile = cfg.GoogleCredentialsFile
		daiConfig.CredentialsJSON = cfg.GoogleCredentialsJSON

		processor, err := invoice.NewDocumentAIProcessor(ctx, daiConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize Document AI: %w", err)
		}
		defer processor.Close()
		pdf = processor
	}

	docs, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect documents: %w", err)
	}

	log.Info().
		Int("documents", len(docs)).
		Str("rule", string(rule)).
		Int("workers", workers).
		Bool("dry_run", dryRun).
		Bool("pdf", pdf != nil).
		Msg("Starting ingestion")

	existing := ingest.ReferencesFrom(l.rec.Books().Expenses())
	dedup := ingest.NewDeduplicator(invoice.NewExtractor(pdf), ingest.Config{Workers: workers, Rule: rule})

	result, err := dedup.Ingest(ctx, docs, existing)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(result.Log))
	for _, o := range result.Log {
		detail := o.EntryID
		switch {
		case o.Err != nil:
			detail = o.Err.Error()
		case o.CoveredBy != "":
			detail = "ya registrada: " + o.CoveredBy
		}
		rows = append(rows, []string{o.Origin, string(o.Disposition), o.Reference, detail})
	}
	if len(rows) > 0 {
		printTable(out, []string{"Documento", "Resultado", "Referencia", "Detalle"}, rows)
	}
	fmt.Fprintf(out, "accepted=%d duplicates=%d failed=%d\n", result.Accepted, result.Duplicates, result.Failed)

	if dryRun {
		log.Info().Msg("Dry run mode: ledger left untouched")
		return nil
	}

	if err := l.rec.AdoptIngested(result.Entries); err != nil {
		return err
	}
	if err := l.commit(ctx); err != nil {
		return err
	}

	log.Info().Int("accepted", result.Accepted).Msg("Ingestion completed successfully")
	return nil
}
