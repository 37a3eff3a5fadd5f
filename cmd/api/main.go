package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"lms-media/internal/adapters/eventbroker/nats"
	"lms-media/internal/adapters/handlers/http/chi"
	"lms-media/internal/adapters/handlers/http/chi/auth"
	"lms-media/internal/adapters/handlers/http/chi/v1/video"
	"lms-media/internal/adapters/repository/postgres"
	"lms-media/internal/adapters/storage/minio"
	"lms-media/internal/config"
	"lms-media/internal/core/port"
	"lms-media/internal/core/service/cleanup"
	"lms-media/internal/core/service/progress"
	videoservice "lms-media/internal/core/service/video"
	"lms-media/internal/observability"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		logger.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	logger.Info("db connection established")

	//storage
	minioAdapter, err := minio.NewAdapter(ctx, cfg.Minio, logger)
	if err != nil {
		logger.Error("failed to init minio", "error", err)
		os.Exit(1)
	}

	//metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	//progress events, only when writes are asynchronous
	var publisher port.EventPublisher
	if cfg.Progress.AsyncWrites {
		if !cfg.NATS.Enabled() {
			logger.Error("PROGRESS_ASYNC_WRITES requires NATS_URL")
			os.Exit(1)
		}
		natsPublisher, err := nats.NewNATSPublisher(ctx, cfg.NATS, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := natsPublisher.Close(); err != nil {
				logger.Error("failed to close NATS publisher", "error", err)
			}
		}()
		publisher = natsPublisher
		logger.Info("progress writes are queued", "subject", cfg.Progress.Subject)
	}

	//services
	unitOfWork := postgres.NewUnitOfWork(db)
	videoService := videoservice.NewVideoService(unitOfWork, minioAdapter, cfg.Minio.PlaybackURLTTL)
	progressService := progress.NewProgressService(unitOfWork, publisher, cfg.Progress, logger, metrics)
	cleanupService := cleanup.NewCleanupService(minioAdapter, cfg.Cleanup.ChunkMaxAge, logger, metrics)

	//http
	videoHandler := video.NewVideoHandlerV1(videoService, progressService, logger)
	router := chi.NewRouter(
		logger,
		videoHandler,
		auth.Middleware([]byte(cfg.Auth.JWTSecret), logger),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		cfg.Env.Env,
	)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("starting server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		servErr := server.ListenAndServe()
		if servErr != nil && !errors.Is(servErr, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", servErr)
			stop()
		}
	}()

	// stale chunk sweeper
	wg.Add(1)
	go func() {
		defer wg.Done()
		initCleanupTask(ctx, cleanupService, cfg.Cleanup.Every, logger)
	}()

	//wait for context cancel
	<-ctx.Done()
	logger.Info("gracefully shutting down app")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	} else {
		logger.Info("server gracefully shutdown complete")
	}

	wg.Wait()
	logger.Info("app shutdown complete")

}

func initDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenCons)
	db.SetMaxIdleConns(cfg.MaxIdleCons)
	db.SetConnMaxLifetime(cfg.ConMaxLifeTime)

	return db, nil
}

func initCleanupTask(ctx context.Context, service port.CleanupService, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	logger.Info("cleanup task initialized", "interval", every)

	for {
		select {
		case now := <-ticker.C:
			removed, err := service.CleanupStaleChunks(ctx, now)
			if err != nil {
				logger.Error("failed to sweep stale chunks", "error", err)
			} else {
				logger.Info("cleanup task completed", "removed", removed)
			}
		case <-ctx.Done():
			logger.Info("cleanup task stopped")
			return
		}
	}

}
