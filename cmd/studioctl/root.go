package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL   string
	outputFmt   string
	identityArg string
	tokenArg    string
)

var rootCmd = &cobra.Command{
	Use:   "studioctl",
	Short: "CLI for the registry studio server",
	Long: `studioctl manages component registries hosted on a registry studio server.

It covers the full authoring lifecycle: creating registries, items, and
files, exporting a registry to GitHub, pushing incremental updates, and
importing existing registry repositories. Sync operations can run
synchronously or as background jobs.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Studio server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&identityArg, "user", "", "User identity for header auth (default: STUDIO_USER env)")
	rootCmd.PersistentFlags().StringVar(&tokenArg, "token", "", "Bearer token for JWT auth (default: STUDIO_TOKEN env)")

	rootCmd.AddCommand(registriesCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(filesCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolvedUser returns the identity sent as X-Remote-User.
// Priority: --user flag > STUDIO_USER env var.
func resolvedUser() string {
	if identityArg != "" {
		return identityArg
	}
	return os.Getenv("STUDIO_USER")
}

// resolvedToken returns the bearer token, if any.
// Priority: --token flag > STUDIO_TOKEN env var.
func resolvedToken() string {
	if tokenArg != "" {
		return tokenArg
	}
	return os.Getenv("STUDIO_TOKEN")
}
