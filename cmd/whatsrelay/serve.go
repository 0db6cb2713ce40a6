package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"whatsrelay/internal/config"
	"whatsrelay/internal/constants"
	"whatsrelay/internal/database"
	"whatsrelay/internal/eventbus"
	"whatsrelay/internal/models"
	"whatsrelay/internal/realtime"
	"whatsrelay/internal/retry"
	"whatsrelay/internal/service"
	"whatsrelay/internal/tracing"
)

func newServeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook receiver and realtime channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *cliOptions) error {
	ctx := cmd.Context()

	cfg, configPath, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, opts.verbose)

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting WhatsRelay")

	tracingManager := tracing.NewTracingManager(cfg.Tracing, Version, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	applied, err := database.Migrate(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.WithField("versions", applied).Info("Applied database migrations")
	}

	hub := realtime.NewHub(logger)
	publishers := service.MultiPublisher{hub}

	if cfg.Events.NatsURL != "" {
		forwarder, err := eventbus.Connect(cfg.Events.NatsURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, realtime events will not be forwarded")
		} else {
			publishers = append(publishers, forwarder)
			defer func() {
				if err := forwarder.Close(); err != nil {
					logger.WithError(err).Warn("Failed to drain NATS connection")
				}
			}()
		}
	}

	dispatcher := service.NewDispatcher(publishers)
	outbound := service.NewOutboundService(store, dispatcher, cfg.Business, logger)

	server := NewServer(serverDeps{
		cfg:           cfg,
		logger:        logger,
		verbose:       opts.verbose,
		store:         store,
		hub:           hub,
		dispatcher:    dispatcher,
		ingestion:     service.NewIngestionService(store, logger),
		conversations: service.NewConversationService(store, cfg.Database.QueryTimeoutSec, logger),
		outbound:      outbound,
	})

	scheduler := service.NewScheduler(store, cfg.RetentionDays, cfg.Server.CleanupIntervalHours, logger)
	go scheduler.Start(ctx)
	defer scheduler.Stop()

	if configPath != "" {
		watcher := config.NewConfigWatcher(configPath, logger)
		watcher.OnConfigChange(func(c *models.Config) {
			if !opts.verbose {
				config.ApplyLogLevel(logger, c.LogLevel, false)
			}
		})
		go func() {
			if err := watcher.Start(ctx); err != nil {
				logger.WithError(err).Warn("Configuration watcher stopped")
			}
		}()
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		hub.Close()
		return err
	}

	// Websocket connections are hijacked and invisible to http.Server.Shutdown.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// openStore connects to the configured database, retrying with exponential
// backoff while it comes up.
func openStore(ctx context.Context, cfg *models.Config, logger *logrus.Logger) (database.Store, error) {
	var store database.Store
	backoff := retry.NewBackoff(retry.FromConfig(cfg.Retry))

	err := backoff.Retry(ctx, func() error {
		var openErr error
		store, openErr = database.Open(ctx, cfg.Database)
		if openErr != nil {
			logger.WithError(openErr).WithField("driver", cfg.Database.Driver).Warn("Failed to open database")
		}
		return openErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database after retries: %w", err)
	}

	logger.WithField("driver", store.Driver()).Info("Database ready")
	return store, nil
}
