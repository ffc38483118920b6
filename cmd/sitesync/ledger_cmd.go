package main

import (
	"log/slog"

	"github.com/openmined/sitesync/internal/ledger"
	"github.com/openmined/sitesync/internal/server"
	"github.com/spf13/cobra"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Development ledger",
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory ledger over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg server.Config
			cfg.Addr, _ = cmd.Flags().GetString("bind")
			cfg.RateLimit, _ = cmd.Flags().GetString("rate-limit")
			cfg.CertFile, _ = cmd.Flags().GetString("cert")
			cfg.KeyFile, _ = cmd.Flags().GetString("key")

			var opts []ledger.MemOption
			if maxOps, _ := cmd.Flags().GetInt("max-ops"); maxOps > 0 {
				opts = append(opts, ledger.WithMaxOps(maxOps))
			}

			srv, err := server.New(&cfg, ledger.NewMemLedger(opts...))
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			defer slog.Info("Bye!")
			return srv.Start(cmd.Context())
		},
	}

	serve.Flags().StringP("bind", "b", server.DefaultAddr, "address to bind")
	serve.Flags().String("rate-limit", server.DefaultRateLimit, "per-client request rate, e.g. 50-S")
	serve.Flags().Int("max-ops", 0, "reject batches with more operations (0 = no limit)")
	serve.Flags().String("cert", "", "TLS certificate file")
	serve.Flags().String("key", "", "TLS key file")

	cmd.AddCommand(serve)
	return cmd
}
