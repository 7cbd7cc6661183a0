// Package tui provides the interactive expense form.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/tui/themes"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
)

// ErrCancelled is returned when the user leaves the form without saving.
var ErrCancelled = errors.New("form canceled")

type field int

const (
	fieldDescription field = iota
	fieldAmount
	fieldCurrency
	fieldDate
	fieldPayer
)

// Config customizes a new form.
type Config struct {
	Now      func() time.Time
	Currency currency.Code // initially selected
	Members  []string
}

// Model is the bubbletea model for entering one expense.
type Model struct {
	err        error
	theme      themes.Theme
	keys       KeyMap
	inputs     map[field]*textinput.Model
	currencies []currency.Code
	members    []string
	submission workflow.Submission
	focus      field
	selected   int
	submitted  bool
	cancelled  bool
}

// New creates a form model.
func New(cfg Config) Model {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := Model{
		theme:      themes.Default,
		keys:       DefaultKeyMap(),
		currencies: currency.Supported(),
		members:    append([]string(nil), cfg.Members...),
		inputs:     make(map[field]*textinput.Model),
	}

	for i, code := range m.currencies {
		if code == cfg.Currency {
			m.selected = i
		}
	}

	m.inputs[fieldDescription] = newInput("coffee, taxi, museum...", 80)
	m.inputs[fieldAmount] = newInput("0.00", 20)
	m.inputs[fieldDate] = newInput(model.DateFormat, len(model.DateFormat))
	m.inputs[fieldDate].SetValue(cfg.Now().Format(model.DateFormat))

	payerHint := "optional"
	if len(m.members) > 0 {
		payerHint = strings.Join(m.members, " / ")
	}
	m.inputs[fieldPayer] = newInput(payerHint, 40)
	if len(m.members) == 1 {
		m.inputs[fieldPayer].SetValue(m.members[0])
	}

	m.inputs[fieldDescription].Focus()
	return m
}

func newInput(placeholder string, limit int) *textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.CharLimit = limit
	return &in
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, m.updateFocused(msg)
	}

	switch {
	case key.Matches(keyMsg, m.keys.Cancel):
		m.cancelled = true
		return m, tea.Quit

	case key.Matches(keyMsg, m.keys.Submit):
		if m.focus < fieldPayer {
			return m, m.setFocus(m.focus + 1)
		}
		sub, err := m.build()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.submission = sub
		m.submitted = true
		return m, tea.Quit

	case key.Matches(keyMsg, m.keys.Next):
		return m, m.setFocus((m.focus + 1) % (fieldPayer + 1))

	case key.Matches(keyMsg, m.keys.Prev):
		return m, m.setFocus((m.focus + fieldPayer) % (fieldPayer + 1))

	case m.focus == fieldCurrency && key.Matches(keyMsg, m.keys.Left):
		m.selected = (m.selected + len(m.currencies) - 1) % len(m.currencies)
		return m, nil

	case m.focus == fieldCurrency && key.Matches(keyMsg, m.keys.Right):
		m.selected = (m.selected + 1) % len(m.currencies)
		return m, nil
	}

	m.err = nil
	return m, m.updateFocused(msg)
}

func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	in, ok := m.inputs[m.focus]
	if !ok {
		return nil
	}
	updated, cmd := in.Update(msg)
	*in = updated
	return cmd
}

func (m *Model) setFocus(f field) tea.Cmd {
	if in, ok := m.inputs[m.focus]; ok {
		in.Blur()
	}
	m.focus = f
	if in, ok := m.inputs[f]; ok {
		return in.Focus()
	}
	return nil
}

// build parses the inputs. Business rules such as a non-empty description
// are left to the workflow so both paths report them the same way.
func (m Model) build() (workflow.Submission, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(m.inputs[fieldAmount].Value()), ",", "")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return workflow.Submission{}, fmt.Errorf("amount %q is not a number", m.inputs[fieldAmount].Value())
	}

	var date time.Time
	if s := strings.TrimSpace(m.inputs[fieldDate].Value()); s != "" {
		date, err = time.Parse(model.DateFormat, s)
		if err != nil {
			return workflow.Submission{}, fmt.Errorf("date must look like %s", model.DateFormat)
		}
	}

	return workflow.Submission{
		Date:        date,
		Amount:      amount,
		Payer:       strings.TrimSpace(m.inputs[fieldPayer].Value()),
		Description: strings.TrimSpace(m.inputs[fieldDescription].Value()),
		Currency:    m.currencies[m.selected],
	}, nil
}

// Submission returns the entered expense and whether the form was submitted.
func (m Model) Submission() (workflow.Submission, bool) {
	return m.submission, m.submitted
}

// Cancelled reports whether the user left without saving.
func (m Model) Cancelled() bool {
	return m.cancelled
}
