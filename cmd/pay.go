package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var payCmd = &cobra.Command{
	Use:   "pay ID AMOUNT",
	Short: "Record a payment against a sale or payroll entry",
	Long: `Record money collected on a sale or paid to a specialist.

Payments add up; paying more than agreed is accepted and reported as an anomaly so it
can be reviewed. Expenses are settled when registered and take no payments.`,
	Example: `  sqr pay 3f0c... 400.000`,
	Args:    cobra.ExactArgs(2),
	RunE:    runPay,
}

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify ID PROJECT [CATEGORY]",
	Short: "Attribute an expense to a project",
	Long: `Move an expense to a project and mark it classified. Without CATEGORY the current
category is kept. Repeating the same reclassification changes nothing.`,
	Example: `  sqr reclassify 3f0c... "Casa Lopez" Materiales`,
	Args:    cobra.RangeArgs(2, 3),
	RunE:    runReclassify,
}

func init() {
	rootCmd.AddCommand(payCmd, reclassifyCmd)
}

func runPay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	amount, err := parseAmount("payment", args[1])
	if err != nil {
		return err
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	payment, err := l.rec.ApplyPayment(args[0], amount)
	if err != nil {
		return err
	}
	if err := l.commit(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s: paid %s of %s, outstanding %s (%s)\n",
		payment.Kind, payment.ID, fm(payment.Paid), fm(payment.Agreed), fm(payment.Outstanding), payment.Status)
	if payment.Overpaid {
		fmt.Fprintln(out, alertStyle.Render("overpaid, review required"))
	}
	return nil
}

func runReclassify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	category := ""
	if len(args) == 3 {
		category = args[2]
	}

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	expense, err := l.rec.ReclassifyExpense(args[0], args[1], category)
	if err != nil {
		return err
	}
	if err := l.commit(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%s)\n", expense.ID, expense.ProjectName, expense.Category)
	return nil
}
