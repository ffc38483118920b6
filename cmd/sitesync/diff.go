package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/openmined/sitesync/internal/publish"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [dir]",
		Short: "Show what the next deploy would add, update and delete",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			if output != "text" && output != "yaml" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}

			cfg, err := loadConfig(cmd, map[string]string{
				"domain":        "domain",
				"max_batch_ops": "max-batch-ops",
			})
			if err != nil {
				return err
			}

			opts, err := publishOptions(cmd, cfg, args)
			if err != nil {
				return err
			}

			// diff never uploads or submits
			opts.DryRun = true
			deployer, err := publish.New(opts, nil, nil)
			if err != nil {
				return err
			}

			cmd.SilenceUsage = true
			preview, err := deployer.Diff(cmd.Context())
			if err != nil {
				return err
			}

			return writePreview(cmd.OutOrStdout(), preview, output)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "output format: text, yaml or json")
	cmd.Flags().String("state-dir", "", "where the manifest and journal live (default: <dir>/.sitesync)")
	addSharedFlags(cmd)
	return cmd
}

func writePreview(w io.Writer, p *publish.Preview, output string) error {
	switch output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	for _, path := range p.Delta.Added {
		fmt.Fprintln(w, green("+ "+path))
	}
	for _, path := range p.Delta.Modified {
		fmt.Fprintln(w, cyan("~ "+path))
	}
	for _, path := range p.Delta.Removed {
		fmt.Fprintln(w, red("- "+path))
	}
	for _, path := range p.Delta.Drifted {
		fmt.Fprintln(w, "! "+path+" (metadata changed, content identical)")
	}

	added, modified, removed, unchanged := p.Delta.Counts()
	fmt.Fprintf(w, "%d added, %d modified, %d removed, %d unchanged; %d batches, budget %d\n",
		added, modified, removed, unchanged, len(p.Batches), p.Budget)
	return nil
}
