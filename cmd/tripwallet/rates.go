package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/tripwallet/internal/cli"
	"github.com/Veraticus/tripwallet/internal/currency"
	"github.com/spf13/cobra"
)

func ratesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rates [CURRENCY...]",
		Short: "Show current exchange rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			codes := make([]currency.Code, 0, len(args))
			for _, arg := range args {
				code, err := parseCurrency(arg)
				if err != nil {
					return err
				}
				codes = append(codes, code)
			}
			if len(codes) == 0 {
				for _, code := range currency.Supported() {
					if !code.IsHome() {
						codes = append(codes, code)
					}
				}
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var b strings.Builder
			b.WriteString(cli.FormatTitle("Exchange rates"))
			b.WriteString("\n")
			for _, code := range codes {
				quote, err := a.fetcher.Fetch(cmd.Context(), code)
				if err != nil {
					b.WriteString(cli.FormatWarning(fmt.Sprintf("%s: %v", code, err)))
				} else {
					b.WriteString(fmt.Sprintf("%s %s %s", cli.RateIcon, cli.FormatRate(quote.Rate, code),
						cli.SubtleStyle.Render("("+quote.Source+", "+quote.FetchedAt.Format("15:04")+")")))
				}
				b.WriteString("\n")
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
}
