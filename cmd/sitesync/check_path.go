package main

import (
	"fmt"

	"github.com/openmined/sitesync/internal/pathguard"
	"github.com/spf13/cobra"
)

func newCheckPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-path <path>...",
		Short: "Check site paths against the path safety rules",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			rejected := 0
			for _, p := range args {
				if err := pathguard.Validate(p); err != nil {
					rejected++
					fmt.Fprintf(w, "%s %q %s\n", red("reject"), p, pathguard.FailedRule(err))
					continue
				}
				normalized, _ := pathguard.Normalize(p)
				fmt.Fprintf(w, "%s %q -> %q\n", green("ok"), p, normalized)
			}

			cmd.SilenceUsage = true
			if rejected > 0 {
				return fmt.Errorf("%d of %d paths rejected", rejected, len(args))
			}
			return nil
		},
	}
}
