package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"lms-media/internal/adapters/repository/postgres"
	"lms-media/internal/adapters/storage/memory"
	"lms-media/internal/adapters/storage/minio"
	"lms-media/internal/config"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"lms-media/internal/core/service/upload"
	"lms-media/internal/observability"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

func main() {
	var (
		filePath string
		courseID string
		title    string
		mimeType string
		duration int
		dryRun   bool
	)

	flag.StringVar(&filePath, "file", "", "Path to the video file")
	flag.StringVar(&courseID, "course", "", "Course id (uuid)")
	flag.StringVar(&title, "title", "", "Video title (defaults to the file name)")
	flag.StringVar(&mimeType, "mime", "", "MIME type (defaults to the one matching the file extension)")
	flag.IntVar(&duration, "duration", 0, "Video duration in seconds")
	flag.BoolVar(&dryRun, "dry-run", false, "Upload to an in-memory store and skip the videos table")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if err := run(logger, filePath, courseID, title, mimeType, duration, dryRun); err != nil {
		logger.Error("upload failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, filePath, courseID, title, mimeType string, duration int, dryRun bool) error {
	if filePath == "" {
		return errors.New("-file flag is required")
	}
	course, err := uuid.Parse(courseID)
	if err != nil {
		return fmt.Errorf("invalid -course: %w", err)
	}

	cfg, err := config.LoadUploader(dryRun)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()
	stat, err := f.Stat()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, uow, closeBackends, err := initBackends(ctx, cfg, dryRun, logger)
	if err != nil {
		return err
	}
	defer closeBackends()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	defer pushMetrics(cfg.Upload.PushgatewayURL, registry, logger)

	manager := upload.NewManager(storage, uow, cfg.Upload, logger, upload.WithMetrics(metrics))

	file := domain.SourceFile{
		CourseID: course,
		Title:    title,
		FileName: filepath.Base(filePath),
		MimeType: mimeType,
		Size:     stat.Size(),
		Duration: duration,
	}
	if file.Title == "" {
		file.Title = strings.TrimSuffix(file.FileName, filepath.Ext(file.FileName))
	}
	header := make([]byte, upload.HeaderSize)
	n, err := f.ReadAt(header, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	file.MimeType, err = upload.DetectMimeType(header[:n], file.MimeType, file.FileName)
	if err != nil {
		return err
	}

	session, err := manager.Begin(ctx, file)
	if err != nil {
		return err
	}
	info := session.Info()
	fmt.Printf("%s upload of %s in %d chunk(s)\n", info.Strategy, units.HumanSize(float64(info.SourceFileSize)), len(session.Chunks()))

	stopControl := controlSignals(session, logger)
	defer stopControl()

	// a cancelled ctx aborts in-flight requests, Cancel only stops claiming new chunks
	transferCtx, cancelTransfer := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelTransfer()
	go func() {
		select {
		case <-ctx.Done():
			logger.Info("cancelling upload")
			session.Cancel()
			cancelTransfer()
		case <-transferCtx.Done():
		}
	}()

	err = manager.Transfer(transferCtx, session, f, printProgress)
	fmt.Println()
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Printf("dry run finished: %s transferred, object key %s\n", units.HumanSize(float64(session.BytesTransferred())), info.ObjectKey)
		return nil
	}

	video, err := manager.Complete(context.WithoutCancel(ctx), session)
	if err != nil {
		return err
	}
	fmt.Printf("video %s stored at %s (order %d)\n", video.ID, video.FileURL, video.OrderIndex)
	return nil
}

func initBackends(ctx context.Context, cfg *config.Config, dryRun bool, logger *slog.Logger) (port.ObjectStorage, port.UnitOfWork, func(), error) {
	if dryRun {
		return memory.New("memory://dry-run", memory.WithoutData()), nil, func() {}, nil
	}

	storage, err := minio.NewAdapter(ctx, cfg.Minio, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
	return storage, postgres.NewUnitOfWork(db), closeDB, nil
}

// controlSignals pauses the session on SIGUSR1 and resumes it on SIGUSR2
func controlSignals(session *upload.Session, logger *slog.Logger) func() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1, syscall.SIGUSR2)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-signals:
				var err error
				if sig == syscall.SIGUSR1 {
					err = session.Pause()
				} else {
					err = session.Resume()
				}
				if err != nil {
					logger.Warn("ignoring signal", "signal", sig, "error", err)
					continue
				}
				logger.Info("upload state changed", "status", session.Status())
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}

func printProgress(p domain.TransferProgress) {
	eta := "--"
	if p.EstimatedSecondsRemaining != nil {
		eta = (time.Duration(*p.EstimatedSecondsRemaining) * time.Second).String()
	}
	fmt.Printf("\r%5.1f%%  %s / %s  %s/s  eta %s   ",
		p.Percent(),
		units.HumanSize(float64(p.BytesTransferred)),
		units.HumanSize(float64(p.TotalBytes)),
		units.HumanSize(p.SpeedBytesPerSec),
		eta,
	)
}

// pushMetrics sends the run's counters to a Prometheus Pushgateway. Failures are logged only.
func pushMetrics(url string, registry *prometheus.Registry, logger *slog.Logger) {
	if url == "" {
		return
	}
	if err := push.New(url, "lms_uploader").Gatherer(registry).Push(); err != nil {
		logger.Warn("failed to push upload metrics", "url", url, "error", err)
		return
	}
	logger.Info("upload metrics pushed", "url", url)
}
