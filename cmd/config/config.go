// Package config implements the config command for inspecting the effective
// settings.
package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/passby-go/internal/conf"
)

// Command creates the config parent command.
func Command(settings *conf.Settings) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Commands for inspecting the configuration",
	}

	configCmd.AddCommand(dumpCommand(settings))

	return configCmd
}

// dumpCommand prints the effective settings as YAML: the config file, env
// overrides and command line flags merged.
func dumpCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the effective settings as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			yamlData, err := yaml.Marshal(settings)
			if err != nil {
				return fmt.Errorf("error marshaling settings to YAML: %w", err)
			}

			if configFile, err := conf.FindConfigFile(); err == nil {
				fmt.Printf("# config file: %s\n", configFile)
			}
			fmt.Print(string(yamlData))

			return nil
		},
	}
}
