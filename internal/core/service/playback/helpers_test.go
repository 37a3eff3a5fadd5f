package playback_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"lms-media/internal/core/domain"
	"lms-media/internal/core/service/playback"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingReporter struct {
	mu       sync.Mutex
	reports  []domain.ProgressReport
	failures int
	attempts int
}

func (r *recordingReporter) Report(_ context.Context, report domain.ProgressReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.failures > 0 {
		r.failures--
		return errors.New("progress endpoint unavailable")
	}
	r.reports = append(r.reports, report)
	return nil
}

func (r *recordingReporter) all() []domain.ProgressReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.ProgressReport(nil), r.reports...)
}

func (r *recordingReporter) last() domain.ProgressReport {
	all := r.all()
	return all[len(all)-1]
}

// fakeMedia is a media element whose position only moves when the test says so
type fakeMedia struct {
	position  float64
	duration  float64
	paused    bool
	sets      []float64
	listeners []func(playback.MediaEvent)
}

func (m *fakeMedia) CurrentTime() float64 { return m.position }
func (m *fakeMedia) Duration() float64    { return m.duration }
func (m *fakeMedia) Paused() bool         { return m.paused }

func (m *fakeMedia) SetCurrentTime(seconds float64) {
	m.sets = append(m.sets, seconds)
	m.position = seconds
	m.emit(playback.EventSeeked)
}

func (m *fakeMedia) OnEvent(fn func(playback.MediaEvent)) {
	m.listeners = append(m.listeners, fn)
}

func (m *fakeMedia) emit(ev playback.MediaEvent) {
	for _, fn := range m.listeners {
		fn(ev)
	}
}

// tickAt moves the playhead and emits a time update
func (m *fakeMedia) tickAt(position float64) {
	m.position = position
	m.emit(playback.EventTimeUpdate)
}
