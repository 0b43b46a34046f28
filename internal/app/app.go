// Package app initializes and holds the long-lived services shared by the
// CLI commands: logger, record store, archive provider, and notifier.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/stellargo/starcrawl/internal/archive"
	"github.com/stellargo/starcrawl/internal/config"
	"github.com/stellargo/starcrawl/internal/logging"
	"github.com/stellargo/starcrawl/internal/notify"
	"github.com/stellargo/starcrawl/internal/store"
	"github.com/stellargo/starcrawl/internal/store/memory"
	"github.com/stellargo/starcrawl/internal/store/postgres"
	"github.com/stellargo/starcrawl/internal/store/sqlite"
)

// App is the dependency container built once at startup and passed to the
// commands that need it.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    store.Store
	archive  archive.Provider
	notifier notify.Notifier
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store returns the configured record store.
func (a *App) Store() store.Store {
	return a.store
}

// Archive returns the configured artifact archive provider.
func (a *App) Archive() archive.Provider {
	return a.archive
}

// Notifier returns the configured run-completion notifier.
func (a *App) Notifier() notify.Notifier {
	return a.notifier
}

// New builds every service from cfg, failing fast if any cannot be
// initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	arch, err := newArchive(ctx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notifier, err := newNotifier(ctx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		archive:  arch,
		notifier: notifier,
	}, nil
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		logger.Info("using postgres record store")
		st, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Database.Postgres.DSN,
			MaxConns: cfg.Database.Postgres.MaxConns,
			MinConns: cfg.Database.Postgres.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return st, nil
	case "sqlite":
		logger.Info("using sqlite record store", zap.String("path", cfg.Database.SQLite.Path))
		st, err := sqlite.New(cfg.Database.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		if err := st.Setup(ctx); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("setup sqlite schema: %w", err)
		}
		return st, nil
	case "memory":
		logger.Info("using in-memory record store; records are discarded on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func newArchive(ctx context.Context, cfg config.Config, logger *zap.Logger) (archive.Provider, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		logger.Info("archiving exports to gcs", zap.String("bucket", cfg.Archive.GCS.Bucket))
		p, err := archive.NewGCSProvider(ctx, cfg.Archive.GCS.Bucket, cfg.Archive.GCS.Prefix, logger)
		if err != nil {
			return nil, fmt.Errorf("init gcs archive: %w", err)
		}
		return p, nil
	case "local":
		logger.Info("archiving exports locally", zap.String("dir", cfg.Archive.Local.Dir))
		p, err := archive.NewLocalProvider(cfg.Archive.Local.Dir)
		if err != nil {
			return nil, fmt.Errorf("init local archive: %w", err)
		}
		return p, nil
	case "noop":
		return archive.NoOpProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}

func newNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (notify.Notifier, error) {
	switch cfg.Notify.Provider {
	case "pubsub":
		logger.Info("publishing run completions to pubsub",
			zap.String("project", cfg.Notify.ProjectID),
			zap.String("topic", cfg.Notify.TopicID),
		)
		n, err := notify.NewPubSubNotifier(ctx, cfg.Notify.ProjectID, cfg.Notify.TopicID, logger)
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		return n, nil
	case "noop":
		return notify.NoOpNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown notify provider %q", cfg.Notify.Provider)
	}
}

// Close shuts every service down, logging rather than failing on errors.
func (a *App) Close() {
	if err := a.notifier.Close(); err != nil {
		a.logger.Warn("close notifier", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	if closer, ok := a.archive.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("close archive", zap.Error(err))
		}
	}
	// Best effort; stderr syncing fails on some platforms.
	_ = a.logger.Sync()
}
