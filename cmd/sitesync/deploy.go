package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/openmined/sitesync/internal/batch"
	"github.com/openmined/sitesync/internal/blob"
	"github.com/openmined/sitesync/internal/config"
	"github.com/openmined/sitesync/internal/ledger"
	"github.com/openmined/sitesync/internal/publish"
	"github.com/spf13/cobra"
)

var deployBindings = map[string]string{
	"domain":             "domain",
	"ledger_url":         "ledger",
	"upload_concurrency": "concurrency",
	"max_batch_ops":      "max-batch-ops",
	"blob_backend":       "blob-backend",
}

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy [dir]",
		Short: "Publish a directory, uploading and submitting only what changed",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, deployBindings)
			if err != nil {
				return err
			}

			dryRun, _ := cmd.Flags().GetBool("dry-run")
			opts, err := publishOptions(cmd, cfg, args)
			if err != nil {
				return err
			}
			opts.DryRun = dryRun

			var (
				store blob.Store
				l     ledger.Ledger
			)
			if !dryRun {
				if err := cfg.RequireLedger(); err != nil {
					return err
				}
				if store, err = newBlobStore(cmd.Context(), cfg); err != nil {
					return err
				}
				if l, err = ledger.NewClient(cfg.LedgerURL); err != nil {
					return err
				}
			}

			deployer, err := publish.New(opts, store, l)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			report, err := deployer.Deploy(cmd.Context())
			if report != nil {
				printReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				var subErr *batch.SubmissionError
				if errors.As(err, &subErr) {
					return fmt.Errorf("%w\nrerun deploy to resume from batch %d", err, subErr.BatchIndex)
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().Bool("dry-run", false, "plan and hash uploads without touching the ledger or manifest")
	cmd.Flags().String("name", "", "site name used when creating the site (default: directory name)")
	cmd.Flags().String("state-dir", "", "where the manifest and journal live (default: <dir>/.sitesync)")
	addSharedFlags(cmd)
	cmd.Flags().String("ledger", "", "ledger URL")
	cmd.Flags().Int("concurrency", 0, "parallel uploads")
	cmd.Flags().String("blob-backend", "", "blob storage backend: memory or s3")
	return cmd
}

func addSharedFlags(cmd *cobra.Command) {
	cmd.Flags().String("domain", "", "public domain sites are served under")
	cmd.Flags().Int("max-batch-ops", 0, "maximum operations per ledger batch")
}

func publishOptions(cmd *cobra.Command, cfg *config.Config, args []string) (*publish.Options, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	name, _ := cmd.Flags().GetString("name")
	stateDir, _ := cmd.Flags().GetString("state-dir")

	return &publish.Options{
		Root:              root,
		StateDir:          stateDir,
		SiteName:          name,
		Domain:            cfg.Domain,
		Retention:         cfg.Retention,
		UploadConcurrency: cfg.UploadConcurrency,
		Batch:             cfg.BatchConfig(),
	}, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case config.BlobBackendS3:
		return blob.NewS3StoreWithConfig(ctx, &cfg.S3)
	default:
		slog.Warn("blob backend is in-memory; uploaded content will not outlive this process")
		return blob.NewMemStore(), nil
	}
}

func printReport(w io.Writer, r *publish.Report) {
	title := "deploy"
	if r.DryRun {
		title = "deploy (dry run)"
	}
	fmt.Fprintln(w, bold(title), cyan(r.RunID))
	for _, line := range r.Summary() {
		fmt.Fprintln(w, " ", line)
	}
	if r.SiteID != "" {
		fmt.Fprintln(w, " ", "site:", green(r.SiteID))
	}
}
