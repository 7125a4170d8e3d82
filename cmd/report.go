package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"sqr/internal/money"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	amountStyle = cellStyle.Align(lipgloss.Right)
	alertStyle  = amountStyle.Foreground(lipgloss.Color("196"))
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// printTable renders rows under headers. Columns listed in amountCols are right-aligned
// and negative amounts are highlighted.
func printTable(w io.Writer, headers []string, rows [][]string, amountCols ...int) {
	amount := make(map[int]bool, len(amountCols))
	for _, c := range amountCols {
		amount[c] = true
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if !amount[col] {
				return cellStyle
			}
			if row >= 0 && row < len(rows) && col < len(rows[row]) && len(rows[row][col]) > 0 && rows[row][col][0] == '-' {
				return alertStyle
			}
			return amountStyle
		})

	fmt.Fprintln(w, t.Render())
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func fm(a money.Amount) string {
	return money.Format(a)
}
