package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sqr/internal/reconciliation"
)

var viewCmd = &cobra.Command{
	Use:   "view [PROJECT]",
	Short: "Show project rentability",
	Long: `Without PROJECT, list every sale project with its sales, expenses, payroll and net
margin, followed by the unassigned bucket. With PROJECT, show that project alone
together with its ledger entries. Project names match regardless of case and spacing.`,
	Example: `  sqr view
  sqr view "casa lopez"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

var taxCmd = &cobra.Command{
	Use:   "tax",
	Short: "Show the VAT position",
	Args:  cobra.NoArgs,
	RunE:  runTax,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show totals across all ledgers",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var anomaliesCmd = &cobra.Command{
	Use:   "anomalies",
	Short: "List overpaid sales and payroll entries",
	Args:  cobra.NoArgs,
	RunE:  runAnomalies,
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List expenses waiting for a project",
	Args:  cobra.NoArgs,
	RunE:  runPending,
}

func init() {
	rootCmd.AddCommand(viewCmd, taxCmd, summaryCmd, anomaliesCmd, pendingCmd)
}

func runView(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	headers := []string{"Proyecto", "Ventas", "Cobrado", "Por cobrar", "Gastos", "Nomina", "Margen"}
	row := func(v reconciliation.ProjectView) []string {
		return []string{v.Name, fm(v.GrossSales), fm(v.Collected), fm(v.Receivable), fm(v.ExpenseTotal), fm(v.PayrollTotal), fm(v.NetMargin)}
	}

	if len(args) == 0 {
		views := l.rec.Rentability()
		if len(views) == 0 {
			fmt.Fprintln(out, "No projects yet")
			return nil
		}
		rows := make([][]string, 0, len(views))
		for _, v := range views {
			rows = append(rows, row(v))
		}
		printTable(out, headers, rows, 1, 2, 3, 4, 5, 6)
		return nil
	}

	view := l.rec.ProjectView(args[0])
	if view.Sales+view.Expenses+view.Payroll == 0 {
		return fmt.Errorf("no entries for project %q", args[0])
	}
	printTable(out, headers, [][]string{row(view)}, 1, 2, 3, 4, 5, 6)

	books := l.rec.Books()
	var entries [][]string
	for _, e := range books.Sales() {
		if e.Project.Matches(view.Project) {
			entries = append(entries, []string{e.ID, "venta", e.Date.Format("2006-01-02"), e.Client, fm(e.Gross), string(e.Status())})
		}
	}
	for _, e := range books.Expenses() {
		if e.Project.Matches(view.Project) {
			entries = append(entries, []string{e.ID, "gasto", e.Date.Format("2006-01-02"), e.Supplier + " " + e.Concept, fm(e.Total), e.Category})
		}
	}
	for _, e := range books.Payroll() {
		if e.Project.Matches(view.Project) {
			entries = append(entries, []string{e.ID, "nomina", e.Date.Format("2006-01-02"), e.Specialist + " " + e.Role, fm(e.Agreed), string(e.Status())})
		}
	}
	printTitle(out, "Detalle")
	printTable(out, []string{"ID", "Tipo", "Fecha", "Descripcion", "Valor", "Estado"}, entries, 4)
	return nil
}

func runTax(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	pos := l.rec.TaxPosition()
	printTable(cmd.OutOrStdout(), []string{"IVA generado", "IVA descontable", "Neto a pagar"},
		[][]string{{fm(pos.Generated), fm(pos.Deductible), fm(pos.NetPayable)}}, 0, 1, 2)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	s := l.rec.Summary()
	printTable(cmd.OutOrStdout(), []string{"Concepto", "Valor"}, [][]string{
		{"Ventas", fm(s.Sales)},
		{"Cobrado", fm(s.Collected)},
		{"Por cobrar", fm(s.Receivable)},
		{"Gastos", fm(s.Expenses)},
		{"Nomina", fm(s.Payroll)},
		{"Nomina pagada", fm(s.PayrollPaid)},
		{"Nomina pendiente", fm(s.PayrollOutstanding)},
		{"Utilidad", fm(s.Profit)},
		{"Gastos sin clasificar", strconv.Itoa(s.Unclassified)},
	}, 1)
	return nil
}

func runAnomalies(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	anomalies := l.rec.Anomalies()
	if len(anomalies) == 0 {
		fmt.Fprintln(out, "No anomalies")
		return nil
	}

	rows := make([][]string, 0, len(anomalies))
	for _, a := range anomalies {
		rows = append(rows, []string{a.ID, string(a.Kind), string(a.Project), a.Party, fm(a.Agreed), fm(a.Paid), fm(a.Outstanding)})
	}
	printTable(out, []string{"ID", "Tipo", "Proyecto", "Tercero", "Acordado", "Pagado", "Saldo"}, rows, 4, 5, 6)
	return nil
}

func runPending(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	out := cmd.OutOrStdout()
	pending := l.rec.UnclassifiedExpenses()
	if len(pending) == 0 {
		fmt.Fprintln(out, "Every expense is classified")
		return nil
	}

	rows := make([][]string, 0, len(pending))
	for _, e := range pending {
		rows = append(rows, []string{e.ID, e.Date.Format("2006-01-02"), e.Supplier, e.Reference, fm(e.Total), string(e.Provenance)})
	}
	printTable(out, []string{"ID", "Fecha", "Proveedor", "Referencia", "Total", "Origen"}, rows, 4)
	return nil
}
