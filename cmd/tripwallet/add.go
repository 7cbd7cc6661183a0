package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/tripwallet/internal/cli"
	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/Veraticus/tripwallet/internal/model"
	"github.com/Veraticus/tripwallet/internal/tui"
	"github.com/Veraticus/tripwallet/internal/workflow"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func addCmd() *cobra.Command {
	var (
		description string
		amount      string
		code        string
		date        string
		payer       string
		interactive bool
		quiet       bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense at the current rate",
		Example: `  tripwallet add -d coffee -a 4.5 -c usd -p minji
  tripwallet add -i`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var opts []workflow.Option
			if !quiet && !interactive {
				opts = append(opts, workflow.WithObserver(cli.NewStageSpinner(cmd.ErrOrStderr()).Observe))
			}

			a, err := newApp(ctx, opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			var sub workflow.Submission
			if interactive {
				initial, parseErr := parseCurrency(code)
				if parseErr != nil {
					return parseErr
				}
				sub, err = tui.Run(ctx, tui.Config{Currency: initial, Members: a.workflow.Members()}, cmd.InOrStdin(), out)
				if errors.Is(err, tui.ErrCancelled) {
					_, err = fmt.Fprintln(out, cli.FormatInfo("Canceled; nothing recorded."))
					return err
				}
				if err != nil {
					return err
				}
			} else {
				sub, err = submissionFromFlags(description, amount, code, date, payer)
				if err != nil {
					return err
				}
			}

			rec, err := a.workflow.Record(ctx, sub)
			if err != nil {
				return explain(err)
			}

			if _, err := fmt.Fprintln(out, cli.FormatSuccess("Recorded "+cli.RenderRecord(rec))); err != nil {
				return err
			}

			report, err := a.workflow.List(ctx, workflow.Filter{Payer: rec.Payer})
			if err != nil {
				return explain(err)
			}
			_, err = fmt.Fprintln(out, cli.RenderTotals(report))
			return err
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "what the expense was for")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "amount in the foreign currency")
	cmd.Flags().StringVarP(&code, "currency", "c", "usd", "currency (usd, eur, jpy, krw)")
	cmd.Flags().StringVar(&date, "date", "", "expense date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVarP(&payer, "payer", "p", "", "who paid")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "enter the expense in a form")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress spinner")

	return cmd
}

func submissionFromFlags(description, amount, code, date, payer string) (workflow.Submission, error) {
	cur, err := parseCurrency(code)
	if err != nil {
		return workflow.Submission{}, err
	}

	sub := workflow.Submission{
		Description: description,
		Payer:       payer,
		Currency:    cur,
	}

	if amount != "" {
		sub.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return workflow.Submission{}, common.NewUserError(fmt.Sprintf("amount %q is not a number", amount), err)
		}
	}

	if date != "" {
		sub.Date, err = time.Parse(model.DateFormat, date)
		if err != nil {
			return workflow.Submission{}, common.NewUserError("date must look like "+model.DateFormat, err)
		}
	}

	return sub, nil
}
