package tui

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/tripwallet/internal/workflow"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the form on the terminal and returns the entered submission.
// in and out default to the process's stdin and stdout when nil.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) (workflow.Submission, error) {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	final, err := tea.NewProgram(New(cfg), opts...).Run()
	if err != nil {
		return workflow.Submission{}, fmt.Errorf("failed to run form: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return workflow.Submission{}, fmt.Errorf("unexpected model type %T", final)
	}

	sub, submitted := m.Submission()
	if !submitted {
		return workflow.Submission{}, ErrCancelled
	}
	return sub, nil
}
