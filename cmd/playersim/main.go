package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"lms-media/internal/adapters/handlers/http/chi/auth"
	"lms-media/internal/adapters/media/simulated"
	"lms-media/internal/adapters/progressclient"
	"lms-media/internal/config"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/service/playback"
	"lms-media/internal/debounce"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
)

type options struct {
	videoID   uuid.UUID
	duration  time.Duration
	watch     time.Duration
	speed     float64
	seekTo    float64
	seekAfter time.Duration
	userID    string
	role      string
	jwtSecret string
}

func main() {
	var (
		opts    options
		videoID string
	)
	flag.StringVar(&videoID, "video", "", "Video id (uuid)")
	flag.DurationVar(&opts.duration, "duration", 10*time.Minute, "Video length")
	flag.DurationVar(&opts.watch, "watch", 0, "Stop after watching this long (0 plays to the end)")
	flag.Float64Var(&opts.speed, "speed", 10, "Simulated seconds per real second")
	flag.Float64Var(&opts.seekTo, "seek-to", -1, "Try to seek to this position (seconds)")
	flag.DurationVar(&opts.seekAfter, "seek-after", 30*time.Second, "When to try the seek")
	flag.StringVar(&opts.userID, "user", "", "User id used to sign a token when PLAYBACK_API_TOKEN is empty")
	flag.StringVar(&opts.role, "role", string(domain.RoleStudent), "Role used to sign a token")
	flag.StringVar(&opts.jwtSecret, "jwt-secret", os.Getenv("AUTH_JWT_SECRET"), "Secret used to sign a token")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	id, err := uuid.Parse(videoID)
	if err != nil {
		logger.Error("invalid -video", "error", err)
		os.Exit(1)
	}
	opts.videoID = id

	cfg, err := config.LoadPlayer()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *cfg, opts, logger); err != nil {
		logger.Error("playback simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.PlaybackConfig, opts options, logger *slog.Logger) error {
	token, err := apiToken(cfg, opts)
	if err != nil {
		return err
	}

	client := progressclient.New(cfg.APIBaseURL, token, logger)
	resume, err := client.Load(ctx, opts.videoID)
	if err != nil {
		return fmt.Errorf("failed to load progress: %w", err)
	}
	logger.Info("resuming",
		"position", resume.Position,
		"percent", resume.ProgressPercent,
		"completed", resume.Completed,
	)

	reporter := progressclient.NewAsyncReporter(context.WithoutCancel(ctx), client, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := reporter.Close(closeCtx); err != nil {
			logger.Error("failed to flush progress", "error", err)
		}
		logger.Info("reporter closed", "superseded", reporter.Superseded())
	}()

	clock := debounce.NewManualClock(time.Now())
	player := simulated.NewPlayer(clock, opts.duration)
	tracker := playback.NewTracker(ctx, opts.videoID, player, reporter, resume, cfg, logger,
		playback.WithClock(clock),
		playback.WithOnCompleted(func(s domain.PlaybackProgressState) {
			logger.Info("video completed", "watched", s.TotalWatchedSeconds, "percent", s.ProgressPercent)
		}),
	)
	defer tracker.Close()

	player.Load()
	player.Play()

	if opts.speed <= 0 {
		opts.speed = 1
	}
	step := simulated.DefaultTickInterval
	realStep := time.Duration(float64(step) / opts.speed)
	ticker := time.NewTicker(realStep)
	defer ticker.Stop()

	var elapsed time.Duration
	seekTried := opts.seekTo < 0
	for {
		select {
		case <-ctx.Done():
			player.Hide()
			return nil
		case <-ticker.C:
		}

		clock.Advance(step)
		elapsed += step

		if !seekTried && elapsed >= opts.seekAfter {
			seekTried = true
			decision := tracker.Seek(opts.seekTo)
			logger.Info("seek requested", "target", opts.seekTo, "allowed", decision.Allowed, "message", decision.Message)
		}

		if player.Paused() {
			state := tracker.Snapshot()
			logger.Info("playback ended", "status", state.Status, "percent", state.ProgressPercent)
			return nil
		}
		if opts.watch > 0 && elapsed >= opts.watch {
			player.Pause()
			state := tracker.Snapshot()
			logger.Info("stopped watching", "position", state.CurrentPositionSeconds, "percent", state.ProgressPercent)
			return nil
		}
	}
}

func apiToken(cfg config.PlaybackConfig, opts options) (string, error) {
	if cfg.APIToken != "" {
		return cfg.APIToken, nil
	}
	if opts.userID == "" || opts.jwtSecret == "" {
		return "", errors.New("set PLAYBACK_API_TOKEN or both -user and -jwt-secret")
	}
	return auth.IssueToken([]byte(opts.jwtSecret), opts.userID, domain.Role(opts.role), time.Hour)
}
