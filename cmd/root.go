package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/passby-go/cmd/archive"
	"github.com/tphakala/passby-go/cmd/config"
	"github.com/tphakala/passby-go/cmd/serve"
	"github.com/tphakala/passby-go/internal/buildinfo"
	"github.com/tphakala/passby-go/internal/conf"
)

// RootCommand creates and returns the root command. Running it without a
// subcommand starts the HTTP server, same as "serve".
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "passby-go",
		Short:   "Vehicle pass-by annotation backend",
		Long:    "Serve the audio collection, ingestion and pass-by event annotation API.",
		Version: buildinfo.String(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve.Run(settings)
		},
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	subcommands := []*cobra.Command{
		serve.Command(settings),
		config.Command(settings),
		archive.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Data.Path, "data", viper.GetString("data.path"), "Path to the data directory")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
