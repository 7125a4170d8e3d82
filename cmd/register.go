package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sqr/internal/money"
	"sqr/internal/reconciliation"
)

var saleCmd = &cobra.Command{
	Use:   "sale PROJECT GROSS",
	Short: "Register a project sale",
	Long: `Register a sale (receivable) for a project with nothing collected yet.

GROSS is the amount billed, written the way the spreadsheet shows it ("$1.190.000",
"1190000", "1.190.000,50"). Use --tax for the VAT included in it, or --vat to
derive it from VAT_RATE.`,
	Example: `  sqr sale "Casa Lopez" 1.190.000 --client "Familia Lopez" --tax 190.000
  sqr sale "Casa Lopez" 1.190.000 --client "Familia Lopez" --vat`,
	Args: cobra.ExactArgs(2),
	RunE: runSale,
}

var expenseCmd = &cobra.Command{
	Use:   "expense BASE",
	Short: "Register an expense",
	Long: `Register a manual expense. Total = BASE + tax.

Without --project the expense goes to the unassigned bucket as unclassified until it is
reclassified. --vat computes the tax on BASE with VAT_RATE.`,
	Example: `  sqr expense 300.000 --project "Casa Lopez" --supplier Ferreteria --concept Cemento --vat
  sqr expense 45.000 --supplier Papeleria --category Varios`,
	Args: cobra.ExactArgs(1),
	RunE: runExpense,
}

var payrollCmd = &cobra.Command{
	Use:     "payroll PROJECT SPECIALIST AGREED",
	Short:   "Assign a specialist to a project",
	Example: `  sqr payroll "Casa Lopez" "Ana Ruiz" 1.000.000 --role Oficial`,
	Args:    cobra.ExactArgs(3),
	RunE:    runPayroll,
}

func init() {
	rootCmd.AddCommand(saleCmd, expenseCmd, payrollCmd)

	saleCmd.Flags().String("client", "", "Client name")
	saleCmd.Flags().String("tax", "", "VAT included in the gross amount")
	saleCmd.Flags().Bool("vat", false, "Derive the included VAT from VAT_RATE")
	saleCmd.Flags().String("date", "", "Sale date (format: YYYY-MM-DD, default: today)")

	expenseCmd.Flags().String("project", "", "Project the expense belongs to (default: unassigned)")
	expenseCmd.Flags().String("supplier", "", "Supplier name")
	expenseCmd.Flags().String("concept", "", "What was bought")
	expenseCmd.Flags().String("reference", "", "Supplier invoice reference")
	expenseCmd.Flags().String("category", "", "Expense category (Materiales, Mano de Obra, Transporte, Varios)")
	expenseCmd.Flags().String("tax", "", "VAT paid on top of the base")
	expenseCmd.Flags().Bool("vat", false, "Compute the VAT on the base with VAT_RATE")
	expenseCmd.Flags().String("date", "", "Expense date (format: YYYY-MM-DD, default: today)")

	payrollCmd.Flags().String("role", "", "Role on the project (Oficial, Ayudante)")
	payrollCmd.Flags().String("date", "", "Assignment date (format: YYYY-MM-DD, default: today)")
}

func runSale(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	gross, err := parseAmount("gross amount", args[1])
	if err != nil {
		return err
	}
	client, _ := cmd.Flags().GetString("client")
	taxText, _ := cmd.Flags().GetString("tax")
	vat, _ := cmd.Flags().GetBool("vat")
	dateText, _ := cmd.Flags().GetString("date")

	date, err := parseDate(dateText)
	if err != nil {
		return err
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	var tax money.Amount
	switch {
	case taxText != "" && vat:
		return fmt.Errorf("--tax and --vat are mutually exclusive")
	case taxText != "":
		if tax, err = parseAmount("tax", taxText); err != nil {
			return err
		}
	case vat:
		tax = money.VATPortion(gross, l.cfg.VATRate)
	}

	sale, err := l.rec.RegisterSale(reconciliation.SaleInput{
		Date:    date,
		Project: args[0],
		Client:  client,
		Gross:   gross,
		Tax:     tax,
	})
	if err != nil {
		return err
	}
	if err := l.commit(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s sale %s: %s (IVA %s)\n", sale.ID, sale.ProjectName, fm(sale.Gross), fm(sale.Tax))
	return nil
}

func runExpense(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	base, err := parseAmount("base amount", args[0])
	if err != nil {
		return err
	}
	project, _ := cmd.Flags().GetString("project")
	supplier, _ := cmd.Flags().GetString("supplier")
	concept, _ := cmd.Flags().GetString("concept")
	reference, _ := cmd.Flags().GetString("reference")
	category, _ := cmd.Flags().GetString("category")
	taxText, _ := cmd.Flags().GetString("tax")
	vat, _ := cmd.Flags().GetBool("vat")
	dateText, _ := cmd.Flags().GetString("date")

	date, err := parseDate(dateText)
	if err != nil {
		return err
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	var tax money.Amount
	switch {
	case taxText != "" && vat:
		return fmt.Errorf("--tax and --vat are mutually exclusive")
	case taxText != "":
		if tax, err = parseAmount("tax", taxText); err != nil {
			return err
		}
	case vat:
		tax = money.TaxOn(base, l.cfg.VATRate)
	}

	expense, err := l.rec.RegisterExpense(reconciliation.ExpenseInput{
		Date:      date,
		Project:   project,
		Supplier:  supplier,
		Concept:   concept,
		Reference: reference,
		TaxBase:   base,
		Tax:       tax,
		Category:  category,
	})
	if err != nil {
		return err
	}
	if err := l.commit(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s expense %s: %s (%s)\n", expense.ID, expense.ProjectName, fm(expense.Total), expense.State)
	return nil
}

func runPayroll(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	agreed, err := parseAmount("agreed amount", args[2])
	if err != nil {
		return err
	}
	role, _ := cmd.Flags().GetString("role")
	dateText, _ := cmd.Flags().GetString("date")

	date, err := parseDate(dateText)
	if err != nil {
		return err
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	entry, err := l.rec.RegisterPayrollAssignment(reconciliation.PayrollInput{
		Date:       date,
		Project:    args[0],
		Specialist: args[1],
		Role:       role,
		Agreed:     agreed,
	})
	if err != nil {
		return err
	}
	if err := l.commit(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s payroll %s: %s %s\n", entry.ID, entry.ProjectName, entry.Specialist, fm(entry.Agreed))
	return nil
}
