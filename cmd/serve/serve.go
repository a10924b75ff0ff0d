// Package serve implements the serve command, the long-running HTTP mode of
// the annotation backend.
package serve

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/passby-go/internal/api"
	"github.com/tphakala/passby-go/internal/buildinfo"
	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/datastore"
	"github.com/tphakala/passby-go/internal/events"
	"github.com/tphakala/passby-go/internal/notify"
	"github.com/tphakala/passby-go/internal/observability"
)

const (
	// brokerConnectTimeout bounds the initial MQTT connection attempt; the
	// client keeps retrying in the background after it.
	brokerConnectTimeout = 30 * time.Second

	// shutdownTimeout bounds the drain of in-flight requests.
	shutdownTimeout = 10 * time.Second
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the annotation backend HTTP server",
		Long:  "Serve the audio query, ingestion, event annotation and vehicle catalog API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(settings)
		},
	}

	// Set up flags specific to the 'serve' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVarP(&settings.WebServer.Port, "port", "p", viper.GetString("webserver.port"), "Port for the HTTP server")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}

// Run wires the datastore, services and HTTP server together and blocks
// until an interrupt or termination signal arrives.
func Run(settings *conf.Settings) error {
	fmt.Printf("PassBy-Go %s\n", buildinfo.String())

	dataStore := datastore.New(settings)
	if err := dataStore.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeDataStore(dataStore)

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	var notifier events.Notifier
	if settings.MQTT.Enabled {
		eventNotifier, err := notify.NewEventNotifier(settings, metrics)
		if err != nil {
			return fmt.Errorf("error initializing MQTT notifier: %w", err)
		}

		connectCtx, cancel := context.WithTimeout(context.Background(), brokerConnectTimeout)
		if err := eventNotifier.Connect(connectCtx); err != nil {
			// The server is useful without the broker and the client keeps
			// reconnecting in the background.
			log.Printf("⚠️  MQTT broker not reachable, continuing without it: %v", err)
		}
		cancel()

		defer eventNotifier.Close()
		notifier = eventNotifier
	}

	server, err := api.NewServer(settings, dataStore, metrics, notifier)
	if err != nil {
		return fmt.Errorf("error initializing HTTP server: %w", err)
	}
	server.Start()

	quitChan := make(chan os.Signal, 1)
	signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
	<-quitChan

	log.Println("Received shutdown signal, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}

	return nil
}

// closeDataStore attempts to close the database connection and logs the result.
func closeDataStore(store datastore.Interface) {
	if err := store.Close(); err != nil {
		log.Printf("Failed to close database: %v", err)
	} else {
		log.Println("Successfully closed database")
	}
}
