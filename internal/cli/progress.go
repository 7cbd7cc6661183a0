package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/schollz/progressbar/v3"
)

// StageSpinner shows an indeterminate spinner described by the current
// workflow stage.
type StageSpinner struct {
	bar  *progressbar.ProgressBar
	mu   sync.Mutex
	done bool
}

// NewStageSpinner creates a spinner writing to w.
func NewStageSpinner(w io.Writer) *StageSpinner {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetDescription("[cyan]Starting...[reset]"),
		progressbar.OptionClearOnFinish(),
	)
	return &StageSpinner{bar: bar}
}

// Observe implements workflow.Observer.
func (s *StageSpinner) Observe(stage workflow.Stage, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}

	if stage == workflow.StageReporting {
		s.done = true
		if err := s.bar.Finish(); err != nil {
			slog.Warn("Failed to finish spinner", "error", err)
		}
		return
	}

	s.bar.Describe(fmt.Sprintf("[cyan]%s...[reset]", stageLabel(stage)))
	if err := s.bar.Add(1); err != nil {
		slog.Warn("Failed to update spinner", "error", err)
	}
}

func stageLabel(stage workflow.Stage) string {
	switch stage {
	case workflow.StageValidating:
		return "Checking input"
	case workflow.StageFetching:
		return "Fetching exchange rate"
	case workflow.StageConverting:
		return "Converting"
	case workflow.StagePersisting:
		return "Saving to ledger"
	default:
		return stage.String()
	}
}
