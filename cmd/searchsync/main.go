// Package main is the entry point for the searchsync service.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/northmedia/searchsync/internal/app"
)

var (
	// version can be set at build time via -ldflags
	version = "dev"

	cfgFile string
)

const cleanupTimeout = time.Hour

func main() {
	if err := execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	// Load .env early so environment overrides are visible to the config
	// loader regardless of subcommand.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "searchsync",
		Short: "Search index and cache propagation pipeline",
		Long: `searchsync keeps a search index and read cache consistent with an
authoritative content store by consuming change events, running durable
index jobs, and sweeping expired soft-deleted content.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yml", "path to configuration file")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(reindexCommand())
	rootCmd.AddCommand(cleanupCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("searchsync version %s\n", version)
		},
	})

	return rootCmd.ExecuteContext(context.Background())
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the full pipeline: listener, workers, scheduler, admin API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer closeApp(application)

			return application.Run(cmd.Context())
		},
	}
}

func reindexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Request a full reindex of all active content",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer closeApp(application)

			application.Reindex(cmd.Context())
			application.Logger().Info("full reindex requested")
			return nil
		},
	}
}

func cleanupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Purge soft-deleted content past its retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			application, err := newApp()
			if err != nil {
				return err
			}
			defer closeApp(application)

			ctx, cancel := context.WithTimeout(cmd.Context(), cleanupTimeout)
			defer cancel()

			return application.Cleanup(ctx)
		},
	}
}

func newApp() (*app.App, error) {
	application, err := app.New(app.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize application: %w", err)
	}
	return application, nil
}

func closeApp(application *app.App) {
	if err := application.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close application: %v\n", err)
	}
}
