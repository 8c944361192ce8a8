// Package main provides the modeladmin CLI: an HTTP server exposing form
// descriptors and relation-aware upserts for metadata-defined entities, plus
// commands to inspect that metadata offline.
//
// Usage:
//
//	modeladmin serve                 # Start the HTTP API
//	modeladmin migrate               # Create missing tables and exit
//	modeladmin form <entity>         # Print input descriptors as JSON
//	modeladmin columns <entity>      # Print list columns as JSON
//	modeladmin token <subject>       # Mint a bearer token for the API
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set via ldflags during build: -ldflags="-X main.version=v1.0.0"
var version = "dev"

// Global flags
var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "modeladmin",
		Short:         "Metadata-driven admin API",
		Long:          `modeladmin serves form descriptors and relation-aware upserts for entities declared in YAML or in the definition tables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./app.yaml)")

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		formCmd(),
		columnsCmd(),
		tokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
