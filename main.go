package main

import (
	"fmt"
	"os"

	"github.com/tphakala/passby-go/cmd"
	"github.com/tphakala/passby-go/internal/conf"
	"github.com/tphakala/passby-go/internal/logging"
)

func main() {
	// Structured logging must be up before anything else writes a line.
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
