package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/app"
	"github.com/stellargo/starcrawl/internal/archive"
	"github.com/stellargo/starcrawl/internal/export"
)

// newExportCmd creates the 'export' subcommand: dump the store to CSV and
// JSON files, optionally pushing them to the configured archive.
func newExportCmd() *cobra.Command {
	var (
		dir       string
		doArchive bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports stored records to CSV and JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return runExport(cmd.Context(), appInstance, dir, doArchive)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "output directory (overrides export.dir)")
	cmd.Flags().BoolVar(&doArchive, "archive", false, "upload artifacts to the configured archive provider")
	return cmd
}

func runExport(ctx context.Context, appInstance *app.App, dir string, doArchive bool) error {
	cfg := appInstance.Config()
	logger := appInstance.Logger()
	if dir == "" {
		dir = cfg.Export.Dir
	}

	exporter := export.New(appInstance.Store(), dir, nil, logger)
	res, err := exporter.Export(ctx)
	if err != nil {
		return fmt.Errorf("export records: %w", err)
	}

	fmt.Printf("Exported %d records\n  %s\n  %s\n", res.Records, res.CSVPath, res.JSONPath)

	if doArchive {
		for _, path := range []string{res.CSVPath, res.JSONPath} {
			if err := archiveArtifact(ctx, appInstance.Archive(), path); err != nil {
				return err
			}
			logger.Info("artifact archived", zap.String("path", path))
		}
	}
	return nil
}

func archiveArtifact(ctx context.Context, provider archive.Provider, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read artifact %s: %w", path, err)
	}
	if err := provider.Save(ctx, filepath.Base(path), data); err != nil {
		return fmt.Errorf("archive artifact %s: %w", path, err)
	}
	return nil
}
