package progressclient

import (
	"context"
	"errors"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"log/slog"
	"sync"
)

// ErrClosed is returned by AsyncReporter.Report after Close
var ErrClosed = errors.New("progress reporter closed")

// AsyncReporter sends reports from a background goroutine. At most one report is in flight; while it is,
// newer reports replace each other so only the latest is sent next. A report whose ClientTsMs is older
// than one already accepted is dropped.
type AsyncReporter struct {
	next   port.ProgressReporter
	ctx    context.Context
	logger *slog.Logger

	mu         sync.Mutex
	pending    *domain.ProgressReport
	latestTs   int64
	closed     bool
	superseded int

	wake chan struct{}
	done chan struct{}
}

// NewAsyncReporter starts the sender. ctx bounds every send made on behalf of callers.
func NewAsyncReporter(ctx context.Context, next port.ProgressReporter, logger *slog.Logger) *AsyncReporter {
	a := &AsyncReporter{
		next:   next,
		ctx:    ctx,
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Report queues report and returns immediately
func (a *AsyncReporter) Report(_ context.Context, report domain.ProgressReport) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if report.ClientTsMs < a.latestTs {
		a.superseded++
		return nil
	}
	if a.pending != nil {
		a.superseded++
	}
	a.latestTs = report.ClientTsMs
	a.pending = &report
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Superseded returns how many reports were replaced or dropped as stale before being sent
func (a *AsyncReporter) Superseded() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.superseded
}

// Close sends the last queued report and stops the sender, or gives up when ctx ends
func (a *AsyncReporter) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.wake)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncReporter) run() {
	defer close(a.done)
	for range a.wake {
		a.sendPending()
	}
	a.sendPending()
}

func (a *AsyncReporter) sendPending() {
	a.mu.Lock()
	report := a.pending
	a.pending = nil
	a.mu.Unlock()

	if report == nil {
		return
	}
	if err := a.next.Report(a.ctx, *report); err != nil {
		a.logger.Warn("progress write failed", "video_id", report.VideoID, "position", report.Position, "error", err)
	}
}
