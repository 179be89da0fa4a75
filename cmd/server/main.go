package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mmamrila/aiquoting-sub001/internal/catalog"
	"github.com/mmamrila/aiquoting-sub001/internal/config"
	"github.com/mmamrila/aiquoting-sub001/internal/db"
	"github.com/mmamrila/aiquoting-sub001/internal/eventlog"
	"github.com/mmamrila/aiquoting-sub001/internal/learning"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quoted",
		Short:        "Radio system quote engine",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSeedCmd(), newFlushPatternsCmd())
	return root
}

// bootstrap loads configuration, builds the logger and connects the database.
func bootstrap() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg := config.Load()
	log, err := logging.New(cfg.App.LogLevel, cfg.App.Dev)
	if err != nil {
		return nil, nil, nil, err
	}
	conn, err := db.Connect(cfg.Database, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, log, conn, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			return serve(cmd.Context(), cfg, conn, log)
		},
	}
}

func serve(parent context.Context, cfg *config.Config, conn *gorm.DB, log *zap.Logger) error {
	if err := db.Migrate(conn, cfg.Database, cfg.App.Migrations, log); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if cfg.App.Dev {
		seedCatalog(conn, cfg.App.SeedFile, log)
	}

	events, err := eventlog.Open(cfg.App.EventLogDir)
	if err != nil {
		return fmt.Errorf("open event logs: %w", err)
	}
	defer func() { _ = events.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app, err := NewApp(cfg, conn, events, reg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	app.Start(ctx)

	// Create server with config timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      withLogging(log, app),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			stop()
			app.Close()
			return fmt.Errorf("server error: %w", err)
		}
	}
	stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	app.Close()
	log.Info("server stopped gracefully")
	return nil
}

func newMigrateCmd() *cobra.Command {
	var useSQL bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run DB migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sql") {
				cfg.App.Migrations = useSQL
			}
			if err := db.Migrate(conn, cfg.Database, cfg.App.Migrations, log); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Info("migrations completed")
			return nil
		},
	}
	cmd.Flags().BoolVar(&useSQL, "sql", false, "apply the versioned SQL migrations instead of AutoMigrate")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the parts catalog seed file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.App.SeedFile
			}
			f, err := db.LoadCatalogFile(file)
			if err != nil {
				return err
			}
			n, err := db.SeedCatalog(conn, f)
			if err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			log.Info("catalog seeded", zap.String("file", file), zap.Int("inserted", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog YAML file (defaults to SEED_FILE)")
	return cmd
}

func newFlushPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush-patterns",
		Short: "Publish learning aggregates with enough samples and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, conn, err := bootstrap()
			if err != nil {
				return err
			}
			cat := catalog.New(conn, cfg.Store.Timeout, log)
			engine := learning.New(conn, cat, cfg.Store.Timeout, log)
			n, err := engine.StorePatterns(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("patterns flushed", zap.Int("patterns", n))
			return nil
		},
	}
}

// seedCatalog loads the dev catalog when the seed file exists.
func seedCatalog(conn *gorm.DB, path string, log *zap.Logger) {
	if _, err := os.Stat(path); err != nil {
		log.Debug("no seed file, skipping catalog seed", zap.String("file", path))
		return
	}
	f, err := db.LoadCatalogFile(path)
	if err != nil {
		log.Warn("invalid seed file", zap.String("file", path), zap.Error(err))
		return
	}
	n, err := db.SeedCatalog(conn, f)
	if err != nil {
		log.Warn("catalog seed failed", zap.Error(err))
		return
	}
	log.Info("catalog seeded", zap.Int("inserted", n))
}
