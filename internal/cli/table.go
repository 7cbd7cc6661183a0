package cli

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var ledgerHeaders = []string{"Date", "Payer", "Description", "Amount", "Rate", "KRW"}

// amount columns
var rightAligned = map[int]bool{3: true, 4: true, 5: true}

// RenderLedger renders a report as a table followed by totals.
func RenderLedger(report workflow.Report) string {
	if len(report.Records) == 0 {
		return FormatInfo("No expenses recorded yet.")
	}

	rows := make([][]string, 0, len(report.Records))
	for _, r := range report.Records {
		rows = append(rows, ledgerRow(r))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtleStyle).
		Headers(ledgerHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			if rightAligned[col] {
				return AmountCellStyle
			}
			return TableCellStyle
		})

	var b strings.Builder
	b.WriteString(t.String())
	b.WriteString("\n")
	b.WriteString(RenderTotals(report))
	return b.String()
}

// RenderTotals renders the grand total and, when more than one payer
// appears, a line per payer.
func RenderTotals(report workflow.Report) string {
	var b strings.Builder
	b.WriteString(BoldStyle.Render(fmt.Sprintf("Total: %s", FormatKRW(report.Total))))
	b.WriteString(SubtleStyle.Render(fmt.Sprintf("  (%d expenses)", len(report.Records))))

	payers := report.Payers()
	if len(payers) > 1 {
		for _, p := range payers {
			name := p
			if name == "" {
				name = "(unassigned)"
			}
			b.WriteString(fmt.Sprintf("\n  %s: %s", name, FormatKRW(report.ByPayer[p])))
		}
	}
	return b.String()
}

// RenderRecord summarizes a single record on one line.
func RenderRecord(r model.ExpenseRecord) string {
	line := fmt.Sprintf("%s %s  %s → %s", r.DateString(), r.Description,
		FormatAmount(r.ForeignAmount, r.Currency), FormatKRW(r.LocalAmount))
	if r.Payer != "" {
		line += SubtleStyle.Render(" (" + r.Payer + ")")
	}
	return line
}

func ledgerRow(r model.ExpenseRecord) []string {
	return []string{
		r.DateString(),
		r.Payer,
		r.Description,
		FormatAmount(r.ForeignAmount, r.Currency),
		r.Rate.String(),
		FormatKRW(r.LocalAmount),
	}
}
