package main

import (
	"fmt"

	"github.com/openmined/sitesync/internal/siteid"
	"github.com/spf13/cobra"
)

func newIDCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Convert site identifiers between hex and base-36",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "encode <hex>",
			Short: "Print the base-36 form of a hex site id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := siteid.Encode(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			},
		},
		&cobra.Command{
			Use:   "decode <base36>",
			Short: "Print the canonical hex form of a base-36 site id",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := siteid.Decode(args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			},
		},
		newAddressCmd(),
	)
	return cmd
}

func newAddressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address <hex>",
		Short: "Print the public host name of a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, map[string]string{"domain": "domain"})
			if err != nil {
				return err
			}
			addr, err := siteid.Address(args[0], cfg.Domain)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), addr)
			return err
		},
	}
	cmd.Flags().String("domain", "", "public domain sites are served under")
	return cmd
}
