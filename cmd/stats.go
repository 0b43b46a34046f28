package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/github"
)

// newStatsCmd creates the 'stats' subcommand: report the stored record
// count and, when a token is configured, the live API quota.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Shows store and API quota statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()

			count, err := appInstance.Store().Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("count records: %w", err)
			}
			fmt.Printf("Stored records: %d\n", count)

			if cfg.GitHub.Token == "" {
				fmt.Println("API quota: unavailable (no token configured)")
				return nil
			}

			client, err := github.NewClient(github.Config{
				Token:     cfg.GitHub.Token,
				Endpoint:  cfg.GitHub.APIURL,
				UserAgent: cfg.GitHub.UserAgent,
				Timeout:   cfg.RequestTimeout(),
			}, appInstance.Logger())
			if err != nil {
				return fmt.Errorf("init github client: %w", err)
			}

			report, err := client.RateLimit(cmd.Context())
			if err != nil {
				appInstance.Logger().Warn("quota probe failed", zap.Error(err))
				fmt.Println("API quota: unavailable")
				return nil
			}
			fmt.Printf("API quota: %d/%d remaining, resets %s\n",
				report.Remaining, report.Limit, report.ResetAt.Format("15:04:05 MST"))
			return nil
		},
	}
}
