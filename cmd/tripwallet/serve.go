package main

import (
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/Veraticus/tripwallet/internal/certs"
	"github.com/Veraticus/tripwallet/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `Serve exposes conversion and the ledger over HTTP. With --tls it serves
HTTPS using a self-signed localhost certificate kept in server.cert_dir.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			var tlsConfig *tls.Config
			if a.cfg.ServerTLS {
				tlsConfig, err = certs.NewStore(a.cfg.CertDir).TLSConfig()
				if err != nil {
					return fmt.Errorf("failed to prepare TLS certificate: %w", err)
				}
			}

			return server.New(a.workflow, a.fetcher, slog.Default()).
				ListenAndServe(cmd.Context(), a.cfg.ServerAddr, tlsConfig)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8080)")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed localhost certificate")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))
	return cmd
}
