package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tripwallet/internal/cli"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/spf13/cobra"
)

func undoCmd() *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Remove the last expense, or a specific one with --id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var removed model.ExpenseRecord
			if id != "" {
				removed, err = a.workflow.Remove(cmd.Context(), id)
			} else {
				removed, err = a.workflow.Undo(cmd.Context())
			}

			out := cmd.OutOrStdout()
			switch {
			case errors.Is(err, ledger.ErrEmptyLedger):
				_, err = fmt.Fprintln(out, cli.FormatWarning("Nothing to undo: the ledger is empty."))
				return err
			case errors.Is(err, ledger.ErrRecordNotFound):
				_, err = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("No expense with id %q.", id)))
				return err
			case err != nil:
				return explain(err)
			}

			_, err = fmt.Fprintln(out, cli.FormatSuccess(cli.UndoIcon+" Removed "+cli.RenderRecord(removed)))
			return err
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "remove the expense with this id")
	return cmd
}
