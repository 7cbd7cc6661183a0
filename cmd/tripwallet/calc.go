package main

import (
	"fmt"

	"github.com/Veraticus/tripwallet/internal/cli"
	"github.com/Veraticus/tripwallet/internal/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func calcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calc AMOUNT [CURRENCY]",
		Short: "Convert an amount to won without recording it",
		Example: `  tripwallet calc 10 usd
  tripwallet calc 1500 jpy`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return common.NewUserError(fmt.Sprintf("amount %q is not a number", args[0]), err)
			}

			code := "usd"
			if len(args) == 2 {
				code = args[1]
			}
			cur, err := parseCurrency(code)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := a.workflow.Calculate(cmd.Context(), amount, cur)
			if err != nil {
				return explain(err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s → %s  %s\n",
				cli.RateIcon,
				cli.FormatAmount(conv.Amount, cur),
				cli.BoldStyle.Render(cli.FormatKRW(conv.Local)),
				cli.SubtleStyle.Render("("+cli.FormatRate(conv.Quote.Rate, cur)+")"))
			return err
		},
	}
}
