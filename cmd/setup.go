package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newSetupCmd creates the 'setup' subcommand: run the store's schema DDL.
// SQLite runs Setup automatically at startup; Postgres deployments run this
// once before the first crawl.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Creates the record store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Store().Setup(cmd.Context()); err != nil {
				return fmt.Errorf("setup schema: %w", err)
			}
			fmt.Println("Schema setup complete")
			return nil
		},
	}
}
