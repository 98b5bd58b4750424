// Package app initializes and runs the server: it selects the storage
// backend from config, wires the cache and HTTP surface, and handles
// graceful shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/youthforge/forge/internal/adapter"
	"github.com/youthforge/forge/internal/adapter/memory"
	"github.com/youthforge/forge/internal/adapter/postgres"
	"github.com/youthforge/forge/internal/api"
	"github.com/youthforge/forge/internal/cache"
	"github.com/youthforge/forge/internal/config"
	"github.com/youthforge/forge/internal/logging"
	"github.com/youthforge/forge/internal/media"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	provider *adapter.Provider
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	provider := adapter.NewProvider(func() (adapter.ProjectsAdapter, error) {
		return buildAdapter(context.Background(), c, logger)
	})

	return &App{config: c, logger: logger, provider: provider}, nil
}

// buildAdapter resolves the configured backend.
func buildAdapter(ctx context.Context, c *config.Config, logger logging.Logger) (adapter.ProjectsAdapter, error) {
	switch c.Backend {
	case config.BackendPostgres:
		uploader, err := media.NewS3Uploader(ctx, media.S3Settings{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		a, err := postgres.Open(ctx, c.DatabaseDSN, uploader, logger)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		return a, nil

	case config.BackendMemory:
		a := memory.New()
		if c.SeedDemoData {
			if err := a.Seed(ctx); err != nil {
				return nil, fmt.Errorf("seed error: %w", err)
			}
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.Backend)

	app.initSignalHandler(cancelFunc)

	backend, err := app.provider.Get()
	if err != nil {
		return err
	}

	store := cache.New(backend, app.logger)
	router := api.NewRouter(api.Options{
		Backend:       backend,
		Store:         store,
		SecretKey:     []byte(app.config.SecretKey),
		TokenValidity: app.config.TokenValidityDuration,
		Logger:        app.logger,
	})

	server := &http.Server{
		Addr:    app.config.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", app.config.ListenAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if closer, ok := backend.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error(ctx, "closing backend", "error", err)
		}
	}
	return nil
}
