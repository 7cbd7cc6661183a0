package main

import (
	"fmt"

	"github.com/Veraticus/tripwallet/internal/cli"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var payer string

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the ledger with totals",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.workflow.List(cmd.Context(), workflow.Filter{Payer: payer})
			if err != nil {
				return explain(err)
			}

			title := "Expenses"
			if payer != "" {
				title += " paid by " + payer
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", cli.TitleStyle.Render(cli.LedgerIcon+" "+title), cli.RenderLedger(report))
			return err
		},
	}

	cmd.Flags().StringVarP(&payer, "payer", "p", "", "only show expenses paid by this member")
	return cmd
}
