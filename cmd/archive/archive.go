// Package archive implements the archive command for on-demand event
// archiving.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tphakala/passby-go/internal/archive"
	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/observability"
)

// runTimeout bounds one archive run including remote pushes.
const runTimeout = 10 * time.Minute

// Command creates the archive parent command.
func Command(settings *conf.Settings) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Bundle events and snapshots into an archive",
	}

	archiveCmd.AddCommand(runCommand(settings))

	return archiveCmd
}

func runCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform an immediate archive run to the configured targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchive(settings)
		},
	}
}

func runArchive(settings *conf.Settings) error {
	if !settings.Archive.Enabled {
		return fmt.Errorf("archiving is not enabled in configuration")
	}

	dataStore := datastore.New(settings)
	if err := dataStore.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer dataStore.Close()

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	manager, err := archive.New(settings, dataStore, metrics)
	if err != nil {
		return fmt.Errorf("failed to configure archive targets: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	result, err := manager.Run(ctx)
	if err != nil {
		if result != nil {
			for name, targetErr := range result.Failures {
				fmt.Printf("target %s failed: %v\n", name, targetErr)
			}
		}
		return fmt.Errorf("archive run failed: %w", err)
	}

	fmt.Printf("Archive %s (%d events, %d snapshots, %d bytes) stored on %d target(s)\n",
		result.Archive, result.Events, result.Snapshots, result.SizeBytes, len(result.Stored))

	return nil
}
