package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jmylchreest/ffmpegfarm/internal/config"
	"github.com/jmylchreest/ffmpegfarm/internal/database"
	"github.com/jmylchreest/ffmpegfarm/internal/database/migrations"
	"github.com/jmylchreest/ffmpegfarm/internal/dispatcher"
	internalhttp "github.com/jmylchreest/ffmpegfarm/internal/http"
	"github.com/jmylchreest/ffmpegfarm/internal/http/handlers"
	"github.com/jmylchreest/ffmpegfarm/internal/mediaprobe"
	"github.com/jmylchreest/ffmpegfarm/internal/repository"
	"github.com/jmylchreest/ffmpegfarm/internal/service"
	"github.com/jmylchreest/ffmpegfarm/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ffmpegfarmd server",
	Long: `Start the ffmpegfarmd HTTP server and API.

The server provides:
- A job submission API for transcode and mux requests (§6)
- A dispatch API polling workers use to claim jobs (a claim also records the worker's liveness)
- Health, liveness, and readiness endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("database-driver", "sqlite", "Database driver (sqlite, postgres, mysql)")
	serveCmd.Flags().String("database-dsn", "ffmpegfarm.db", "Database connection string")
	serveCmd.Flags().String("ffprobe-path", "", "Path to the ffprobe binary (auto-detected if empty)")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.driver", serveCmd.Flags().Lookup("database-driver"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database-dsn"))
	mustBindPFlag("mediaprobe.binary_path", serveCmd.Flags().Lookup("ffprobe-path"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.New(cfg.Database, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	if err := runMigrations(db.DB, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	jobRepo := repository.NewJobRepository(db.DB)

	probe, err := newMediaProbe(cfg.MediaProbe)
	if err != nil {
		return fmt.Errorf("initializing media probe: %w", err)
	}

	requestService := service.NewRequestService(jobRepo, probe, cfg.Dispatch.EnableCrf).WithLogger(logger)
	leaseTimeout := cfg.Dispatch.TimeoutSeconds.Duration()
	jobDispatcher := dispatcher.New(jobRepo, leaseTimeout).WithLogger(logger)

	serverConfig := internalhttp.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	docsHandler := handlers.NewDocsHandler("ffmpegfarmd API", "/openapi.yaml", handlers.WithSystemTheme())
	server.Router().Get("/docs", docsHandler.ServeHTTP)

	healthHandler := handlers.NewHealthHandler(version.Version).WithDB(db.DB)
	healthHandler.Register(server.API())

	jobHandler := handlers.NewJobHandler(requestService, jobDispatcher)
	jobHandler.Register(server.API())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting ffmpegfarmd server",
		slog.String("host", serverConfig.Host),
		slog.Int("port", serverConfig.Port),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("lease_timeout", leaseTimeout.String()),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}

// newMediaProbe builds the MediaProbe collaborator from configuration,
// falling back to PATH discovery when no binary path is configured.
func newMediaProbe(cfg config.MediaProbeConfig) (mediaprobe.MediaProbe, error) {
	if cfg.BinaryPath == "" {
		probe, err := mediaprobe.DiscoverFFProbe()
		if err != nil {
			return nil, err
		}
		if cfg.Timeout > 0 {
			probe.WithTimeout(cfg.Timeout)
		}
		return probe, nil
	}

	probe := mediaprobe.NewFFProbe(cfg.BinaryPath)
	if cfg.Timeout > 0 {
		probe.WithTimeout(cfg.Timeout)
	}
	return probe, nil
}

func runMigrations(db *gorm.DB, logger *slog.Logger) error {
	migrator := migrations.NewMigrator(db, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	return migrator.Up(context.Background())
}
