package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sqr/internal/classify"
	"sqr/internal/logger"
	"sqr/pkg/models"
	"sqr/pkg/services"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Propose projects for unclassified expenses",
	Long: `Ask an OpenAI model where each unclassified expense probably belongs, offering the
sale projects (those the supplier already billed first) and the expense categories.

Proposals are only printed; apply one with "sqr reclassify".

Required environment variables:
  OPENAI_API_KEY - OpenAI API key
  OPENAI_MODEL   - Model name (default: gpt-4o-mini)`,
	Example: `  sqr suggest
  sqr suggest --limit 5`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

func init() {
	rootCmd.AddCommand(suggestCmd)

	suggestCmd.Flags().Int("limit", 20, "Maximum number of expenses to ask about")
}

func runSuggest(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("suggest")
	ctx := context.Background()

	limit, _ := cmd.Flags().GetInt("limit")

	l, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	config := classify.DefaultConfig()
	config.Model = l.cfg.OpenAIModel
	var suggester services.CategorySuggester
	suggester, err = classify.NewOpenAISuggester(l.cfg.OpenAIAPIKey, config)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pending := l.rec.UnclassifiedExpenses()
	if len(pending) == 0 {
		fmt.Fprintln(out, "Every expense is classified")
		return nil
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	history := l.rec.Books().Expenses()
	projects := l.rec.Projects()

	var rows [][]string
	for _, expense := range pending {
		candidates := classify.RankProjects(expense, history, projects)
		suggestion, err := suggester.Suggest(ctx, expense, candidates, models.Categories)
		if err != nil {
			log.Warn().Err(err).Str("expense", expense.ID).Msg("No suggestion, skipping")
			continue
		}
		if suggestion.Empty() {
			continue
		}
		rows = append(rows, []string{
			expense.ID,
			expense.Supplier,
			fm(expense.Total),
			suggestion.Project,
			suggestion.Category,
			fmt.Sprintf("%.0f%%", suggestion.Confidence*100),
			suggestion.Reason,
		})
	}

	printTable(out, []string{"ID", "Proveedor", "Total", "Proyecto", "Categoria", "Confianza", "Motivo"}, rows, 2)
	return nil
}
