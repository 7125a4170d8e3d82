package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sqr/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "sqr",
	Short: "SQR - project ledger for sales, expenses and payroll",
	Long: `SQR keeps the sales, expenses and payroll ledgers of every project in one
spreadsheet (or a local database) and derives project margins, receivables and the
VAT position from them.

Supplier invoices (UBL XML, zip archives, optionally PDF) are ingested from a drop
folder or a mailbox, deduplicated by reference and filed as unclassified expenses
until someone attributes them to a project.

Configuration comes from the environment (a .env file is loaded when present).`,
	Version:      version,
	SilenceUsage: true,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
