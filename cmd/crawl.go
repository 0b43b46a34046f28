package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/stellargo/starcrawl/internal/api"
	"github.com/stellargo/starcrawl/internal/app"
	"github.com/stellargo/starcrawl/internal/crawler"
	"github.com/stellargo/starcrawl/internal/github"
	"github.com/stellargo/starcrawl/internal/notify"
)

// newCrawlCmd creates the 'crawl' subcommand: run the orchestration engine
// until the target record count is reached or the shards are exhausted.
func newCrawlCmd() *cobra.Command {
	var (
		target    int
		criterion string
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs a crawl against the GitHub search API",
		Long: `Partitions the search space into star-count shards, pages through
each shard, and upserts every batch into the record store. Stops once the
configured target count has been fetched or every shard is drained.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runCrawl(cmd.Context(), appInstance, criterion, target)
		},
	}

	cmd.Flags().IntVar(&target, "target", 0, "total records to crawl (overrides crawler.target)")
	cmd.Flags().StringVar(&criterion, "criterion", "", "base search criterion (overrides crawler.criterion)")
	return cmd
}

func runCrawl(ctx context.Context, appInstance *app.App, criterion string, target int) error {
	cfg := appInstance.Config()
	logger := appInstance.Logger()

	if target <= 0 {
		target = cfg.Crawler.Target
	}
	if criterion == "" {
		criterion = cfg.Crawler.Criterion
	}

	client, err := github.NewClient(github.Config{
		Token:     cfg.GitHub.Token,
		Endpoint:  cfg.GitHub.APIURL,
		UserAgent: cfg.GitHub.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, logger)
	if err != nil {
		return fmt.Errorf("init github client: %w", err)
	}

	// Pre-flight: surfaces bad credentials before any shard work starts.
	report, err := client.RateLimit(ctx)
	if err != nil {
		return fmt.Errorf("probe rate limit: %w", err)
	}
	logger.Info("api quota before crawl",
		zap.Int("remaining", report.Remaining),
		zap.Int("limit", report.Limit),
		zap.Time("reset_at", report.ResetAt),
	)

	governor := crawler.NewRateGovernor(crawler.GovernorConfig{
		Buffer:      cfg.Crawler.Quota.Buffer,
		ResetMargin: cfg.Crawler.Quota.ResetMargin(),
	}, nil, logger)
	governor.Observe(report)

	retry := crawler.NewRetryPolicy(crawler.RetryConfig{
		MaxAttempts:  cfg.Crawler.Retry.MaxAttempts,
		InitialDelay: cfg.Crawler.Retry.InitialBackoff(),
		MaxDelay:     cfg.Crawler.Retry.MaxBackoff(),
		Jitter:       cfg.Crawler.Retry.Jitter,
	}, logger)

	var pacer crawler.Pacer
	if cfg.Crawler.PolitenessRPS > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.Crawler.PolitenessRPS), 1)
	}

	fetcher := crawler.NewPagingFetcher(client, governor, retry, pacer, nil,
		crawler.FetcherConfig{BatchSize: cfg.Crawler.BatchSize}, logger)
	partitioner := crawler.NewQueryPartitioner(cfg.Crawler.ShardCap)
	orchestrator := crawler.NewCrawlOrchestrator(partitioner, fetcher, appInstance.Store(), logger)

	stopServer := startStatusServer(cfg.Server.Enabled, cfg.Server.Port, orchestrator, logger)
	defer stopServer()

	result := orchestrator.Run(ctx, criterion, target)
	publishCompletion(ctx, appInstance.Notifier(), result, logger)

	if result.Err != nil {
		if errors.Is(result.Err, context.Canceled) {
			logger.Warn("crawl interrupted",
				zap.Int("total_crawled", result.TotalCrawled),
				zap.Int("total_batches", result.TotalBatches),
			)
			return nil
		}
		return fmt.Errorf("crawl run %s: %w", result.RunID, result.Err)
	}

	fmt.Printf("Crawl complete: %d records in %d batches (%d new, %d total stored)\n",
		result.TotalCrawled, result.TotalBatches, result.NewRecords, result.FinalCount)
	return nil
}

// startStatusServer launches the optional HTTP status surface and returns
// a stop function, a no-op when the server is disabled.
func startStatusServer(enabled bool, port int, source api.StatusSource, logger *zap.Logger) func() {
	if !enabled {
		return func() {}
	}
	server := api.NewServer(port, source, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}
}

func publishCompletion(ctx context.Context, notifier notify.Notifier, result crawler.RunResult, logger *zap.Logger) {
	msg := notify.RunCompletion{
		RunID:        result.RunID,
		Success:      result.Success,
		TotalCrawled: result.TotalCrawled,
		TotalBatches: result.TotalBatches,
		NewRecords:   result.NewRecords,
	}
	if result.Err != nil {
		msg.Error = result.Err.Error()
	}
	// Publishing rides on a fresh context so an interrupt that stopped the
	// crawl does not also drop the completion message.
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}
	if err := notifier.Publish(ctx, msg); err != nil {
		logger.Warn("publish run completion", zap.Error(err))
	}
}
