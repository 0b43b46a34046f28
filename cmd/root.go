// Package cmd defines the starcrawl CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stellargo/starcrawl/internal/app"
	"github.com/stellargo/starcrawl/internal/config"
)

var cfgFile string

// appKeyType keys the App in the command context.
type appKeyType struct{}

var appKey appKeyType

// newApp is the application factory; a variable so tests can swap in a
// prebuilt container.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd wires config loading, app construction, and teardown around
// every subcommand.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "starcrawl",
		Short: "Harvests GitHub repository star counts into a local store",
		Long: `starcrawl continuously harvests repository records from the GitHub
GraphQL search API and persists them under idempotent upsert semantics.
It partitions the search space by star count to defeat the API's
per-query result cap, and paces itself against the API's rate limit.`,
		SilenceUsage: true,

		// Runs after flags are parsed but before the subcommand: load
		// config, build services, and hand both down via the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: environment only)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// resolveApp pulls the App container out of the command context.
func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI with the given base context.
func Execute(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
