package playback

import (
	"context"
	"lms-media/internal/config"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"lms-media/internal/debounce"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultCompletionThreshold = 90
	defaultReportInterval      = 15 * time.Second
	defaultMaxTickGap          = 2 * time.Second
)

// Tracker follows one viewer's playback of one video. It keeps the furthest watched position,
// accumulates active watch time and performs the not_started -> in_progress -> completed transitions.
// Progress writes are throttled to one per report interval during continuous play and forced on
// pause, seek, end, visibility loss and Close.
type Tracker struct {
	mu       sync.Mutex
	videoID  uuid.UUID
	media    MediaHandle
	guard    *SkipGuard
	reporter port.ProgressReporter
	cfg      config.PlaybackConfig
	clock    debounce.Clock
	logger   *slog.Logger
	ctx      context.Context

	state      domain.PlaybackProgressState
	resumeAt   float64
	playing    bool
	ticking    bool
	lastTick   time.Time
	closed     bool
	onComplete func(domain.PlaybackProgressState)

	writes *debounce.Debouncer[domain.ProgressReport]
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithClock replaces the real clock
func WithClock(c debounce.Clock) TrackerOption {
	return func(t *Tracker) {
		t.clock = c
	}
}

// WithOnCompleted is called once, when the video becomes completed for the first time
func WithOnCompleted(fn func(domain.PlaybackProgressState)) TrackerOption {
	return func(t *Tracker) {
		t.onComplete = fn
	}
}

// NewTracker creates a tracker and subscribes it to media events. resume is the last persisted progress,
// nil for a first viewing.
func NewTracker(ctx context.Context, videoID uuid.UUID, media MediaHandle, reporter port.ProgressReporter, resume *domain.VideoProgress, cfg config.PlaybackConfig, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	if cfg.CompletionThreshold <= 0 || cfg.CompletionThreshold > 100 {
		cfg.CompletionThreshold = defaultCompletionThreshold
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = defaultReportInterval
	}
	if cfg.MaxTickGap <= 0 {
		cfg.MaxTickGap = defaultMaxTickGap
	}

	t := &Tracker{
		videoID:  videoID,
		media:    media,
		guard:    NewSkipGuard(cfg.SkipPreventionDisabled, cfg.RewindStep),
		reporter: reporter,
		cfg:      cfg,
		clock:    debounce.RealClock(),
		logger:   logger,
		ctx:      ctx,
		state:    domain.PlaybackProgressState{Status: domain.PlaybackStatusNotStarted},
	}
	for _, opt := range opts {
		opt(t)
	}

	if resume != nil {
		t.resumeAt = resume.Position
		t.state.CurrentPositionSeconds = resume.Position
		t.state.MaxWatchedPositionSeconds = resume.Position
		t.state.TotalWatchedSeconds = resume.TotalWatched
		t.state.ProgressPercent = resume.ProgressPercent
		switch {
		case resume.Completed:
			t.state.Status = domain.PlaybackStatusCompleted
			t.state.HasCompletedOnce = true
		case resume.ProgressPercent > 0 || resume.Position > 0:
			t.state.Status = domain.PlaybackStatusInProgress
		}
	}

	t.writes = debounce.New(cfg.ReportInterval, cfg.ReportInterval, t.send, debounce.WithClock(t.clock))
	t.playing = !media.Paused()
	media.OnEvent(t.HandleEvent)
	if media.Duration() > 0 {
		t.resume()
	}
	return t
}

// HandleEvent processes one media event. Events must be delivered sequentially.
func (t *Tracker) HandleEvent(ev MediaEvent) {
	switch ev {
	case EventLoadedMetadata:
		t.resume()
	case EventTimeUpdate:
		t.observe(ev, false)
	case EventPlay:
		t.mu.Lock()
		t.playing = true
		t.ticking = true
		t.lastTick = t.clock.Now()
		t.mu.Unlock()
	case EventPause, EventEnded, EventSeeked, EventHidden:
		t.observe(ev, true)
	}
}

// Seek moves playback to target if the skip guard allows it
func (t *Tracker) Seek(target float64) SeekDecision {
	return t.guard.RequestSeek(t.media, target, t.Snapshot())
}

// Rewind jumps back by the rewind step
func (t *Tracker) Rewind() float64 {
	return t.guard.Rewind(t.media)
}

// CanSeek reports whether target may be reached from the current state
func (t *Tracker) CanSeek(target float64) bool {
	return t.guard.CanSeek(target, t.Snapshot())
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() domain.PlaybackProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Close writes the final state and detaches the tracker. Later events are ignored.
func (t *Tracker) Close() {
	t.observe(EventPause, true)
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

func (t *Tracker) resume() {
	t.mu.Lock()
	at := t.resumeAt
	t.resumeAt = 0
	t.mu.Unlock()

	if duration := t.media.Duration(); at > 0 && at < duration {
		t.media.SetCurrentTime(at)
	}
}

// observe folds the media's current position into the state and schedules a write.
// force bypasses the throttle.
func (t *Tracker) observe(ev MediaEvent, force bool) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	counting := t.playing
	if ev == EventTimeUpdate {
		counting = counting && !t.media.Paused()
	}
	if counting && t.ticking {
		if delta := now.Sub(t.lastTick); delta > 0 {
			t.state.TotalWatchedSeconds += min(delta, t.cfg.MaxTickGap).Seconds()
		}
	}
	t.lastTick = now
	t.ticking = true
	if ev == EventPause || ev == EventEnded {
		t.playing = false
	}

	position := t.media.CurrentTime()
	percent := progressPercent(position, t.media.Duration())
	t.state.CurrentPositionSeconds = position
	t.state.ProgressPercent = percent
	if !t.state.HasCompletedOnce {
		t.state.MaxWatchedPositionSeconds = max(t.state.MaxWatchedPositionSeconds, position)
	}

	if t.state.Status == domain.PlaybackStatusNotStarted && percent > 0 {
		t.state.Status = domain.PlaybackStatusInProgress
	}
	newlyCompleted := false
	if !t.state.HasCompletedOnce && percent >= t.cfg.CompletionThreshold {
		t.state.Status = domain.PlaybackStatusCompleted
		t.state.HasCompletedOnce = true
		newlyCompleted = true
	}

	report := domain.ProgressReport{
		VideoID:         t.videoID,
		Position:        position,
		TotalWatched:    t.state.TotalWatchedSeconds,
		ProgressPercent: percent,
		IsComplete:      t.state.HasCompletedOnce,
		ClientTsMs:      now.UnixMilli(),
	}
	state := t.state
	onComplete := t.onComplete
	t.mu.Unlock()

	if newlyCompleted {
		t.logger.Info("video completed", "video_id", t.videoID, "percent", percent)
		if onComplete != nil {
			onComplete(state)
		}
		force = true
	}

	t.writes.Call(report)
	if force {
		t.writes.Flush()
	}
}

func (t *Tracker) send(report domain.ProgressReport) {
	if err := t.reporter.Report(t.ctx, report); err != nil {
		t.logger.Warn("progress write failed, next write supersedes it",
			"video_id", t.videoID,
			"position", report.Position,
			"error", err,
		)
	}
}

// progressPercent is round(position/duration*100) clamped to [0, 100]
func progressPercent(position, duration float64) int {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) || math.IsNaN(position) {
		return 0
	}
	p := math.Round(position / duration * 100)
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return int(p)
	}
}
