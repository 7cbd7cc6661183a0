package main

import (
	"errors"
	"fmt"

	"github.com/Veraticus/tripwallet/internal/cli"
	"github.com/Veraticus/tripwallet/internal/ledger"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/spf13/cobra"
)

func resetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every expense in the ledger",
		Long: `Reset removes every expense. The local file backend deletes the file;
hosted backends keep an empty ledger with only the header row.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if force {
				if err := a.workflow.Reset(ctx); err != nil {
					return explain(err)
				}
				_, err = fmt.Fprintln(out, cli.FormatSuccess("Ledger reset."))
				return err
			}

			var prompt string
			report, err := a.workflow.List(ctx, workflow.Filter{})
			switch {
			case errors.Is(err, ledger.ErrStorageUnavailable):
				// An unreadable ledger can still be wiped.
				if _, err := fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("The ledger could not be read: %v", err))); err != nil {
					return err
				}
				prompt = "Delete it anyway?"
			case err != nil:
				return explain(err)
			case len(report.Records) == 0:
				_, err = fmt.Fprintln(out, cli.FormatInfo("No expenses found. Nothing to reset."))
				return err
			default:
				prompt = fmt.Sprintf("This will delete %d expenses totaling %s. Continue?",
					len(report.Records), cli.FormatKRW(report.Total))
			}

			ok, err := cli.NewLineReader(cmd.InOrStdin()).Confirm(ctx, out, prompt)
			if err != nil {
				return err
			}
			if !ok {
				_, err = fmt.Fprintln(out, cli.FormatInfo("Reset canceled."))
				return err
			}

			if err := a.workflow.Reset(ctx); err != nil {
				return explain(err)
			}
			msg := "Ledger reset."
			if n := len(report.Records); n > 0 {
				msg = fmt.Sprintf("Deleted %d expenses.", n)
			}
			_, err = fmt.Fprintln(out, cli.FormatSuccess(msg))
			return err
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}
