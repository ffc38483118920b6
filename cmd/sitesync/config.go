package main

import (
	"github.com/openmined/sitesync/internal/config"
	"github.com/spf13/cobra"
)

// loadConfig reads the config and lets the named flags of cmd override their keys.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	v := config.New()

	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	var configFile string
	if f := cmd.Flag("config"); f != nil {
		configFile = f.Value.String()
	}
	return config.Load(v, configFile)
}
