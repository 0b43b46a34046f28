package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stellargo/starcrawl/internal/app"
	"github.com/stellargo/starcrawl/internal/config"
)

// withMemoryApp points the factory at an in-memory service stack for the
// duration of one test.
func withMemoryApp(t *testing.T) {
	t.Helper()
	orig := newApp
	newApp = func(ctx context.Context, _ config.Config) (*app.App, error) {
		return app.New(ctx, config.Config{
			Database: config.DatabaseConfig{Driver: "memory"},
			Archive:  config.ArchiveConfig{Provider: "noop"},
			Notify:   config.NotifyConfig{Provider: "noop"},
			Logging:  config.LoggingConfig{Level: "error"},
		})
	}
	t.Cleanup(func() { newApp = orig })
}

func executeCommand(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestStatsRunsAgainstMemoryStore(t *testing.T) {
	withMemoryApp(t)
	require.NoError(t, executeCommand(t, "stats"))
}

func TestSetupRunsAgainstMemoryStore(t *testing.T) {
	withMemoryApp(t)
	require.NoError(t, executeCommand(t, "setup"))
}

func TestExportWritesArtifacts(t *testing.T) {
	withMemoryApp(t)
	dir := t.TempDir()
	require.NoError(t, executeCommand(t, "export", "--dir", dir))
}

func TestCrawlFailsWithoutToken(t *testing.T) {
	withMemoryApp(t)
	err := executeCommand(t, "crawl", "--target", "10")
	require.ErrorContains(t, err, "token")
}

func TestResolveAppMissing(t *testing.T) {
	t.Parallel()
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
