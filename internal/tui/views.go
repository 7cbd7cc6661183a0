package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var labels = map[field]string{
	fieldDescription: "Description",
	fieldAmount:      "Amount",
	fieldCurrency:    "Currency",
	fieldDate:        "Date",
	fieldPayer:       "Payer",
}

// View implements tea.Model.
func (m Model) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	rows := []string{m.theme.Title.Render("New expense")}
	for f := fieldDescription; f <= fieldPayer; f++ {
		rows = append(rows, m.renderRow(f))
	}

	if m.err != nil {
		rows = append(rows, m.theme.StatusError.Render(m.err.Error()))
	}

	rows = append(rows, m.theme.Help.Render(m.helpLine()))
	return m.theme.BorderedBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) renderRow(f field) string {
	label := m.theme.Label
	if f == m.focus {
		label = m.theme.FocusLabel
	}

	var value string
	if f == fieldCurrency {
		value = m.renderCurrencies()
	} else {
		value = m.inputs[f].View()
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, label.Render(labels[f]), value)
}

func (m Model) renderCurrencies() string {
	opts := make([]string, len(m.currencies))
	for i, code := range m.currencies {
		if i == m.selected {
			opts[i] = m.theme.Selected.Render(string(code))
		} else {
			opts[i] = m.theme.Option.Render(string(code))
		}
	}
	return strings.Join(opts, "")
}

func (m Model) helpLine() string {
	bindings := []struct{ key, desc string }{
		{m.keys.Next.Help().Key, m.keys.Next.Help().Desc},
		{m.keys.Submit.Help().Key, m.keys.Submit.Help().Desc},
		{m.keys.Cancel.Help().Key, m.keys.Cancel.Help().Desc},
	}
	if m.focus == fieldCurrency {
		bindings = append([]struct{ key, desc string }{{"←/→", "change currency"}}, bindings...)
	}

	parts := make([]string, len(bindings))
	for i, b := range bindings {
		parts[i] = b.key + " " + b.desc
	}
	return strings.Join(parts, " • ")
}
