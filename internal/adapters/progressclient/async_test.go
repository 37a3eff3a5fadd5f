package progressclient_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lms-media/internal/adapters/progressclient"
	"lms-media/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedReporter blocks its first Report until release is closed
type gatedReporter struct {
	mu      sync.Mutex
	sent    []domain.ProgressReport
	started chan struct{}
	release chan struct{}
	err     error
	once    sync.Once
}

func newGatedReporter() *gatedReporter {
	return &gatedReporter{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReporter) Report(_ context.Context, r domain.ProgressReport) error {
	g.mu.Lock()
	g.sent = append(g.sent, r)
	g.mu.Unlock()

	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	return g.err
}

func (g *gatedReporter) positions() []float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]float64, 0, len(g.sent))
	for _, r := range g.sent {
		out = append(out, r.Position)
	}
	return out
}

func closeWithin(t *testing.T, a *progressclient.AsyncReporter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))
}

func TestAsyncReporter_LatestWins(t *testing.T) {
	// Arrange
	next := newGatedReporter()
	a := progressclient.NewAsyncReporter(context.Background(), next, discardLogger)

	// Act: the first report is in flight while three more arrive
	require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 1}))
	<-next.started
	for _, p := range []float64{2, 3, 4} {
		require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: p}))
	}
	close(next.release)
	closeWithin(t, a)

	// Assert
	assert.Equal(t, []float64{1, 4}, next.positions())
	assert.Equal(t, 2, a.Superseded())
}

func TestAsyncReporter_CloseFlushesPending(t *testing.T) {
	next := newGatedReporter()
	close(next.release)
	a := progressclient.NewAsyncReporter(context.Background(), next, discardLogger)

	require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 9}))
	closeWithin(t, a)

	assert.Equal(t, []float64{9}, next.positions())
}

func TestAsyncReporter_ReportAfterClose(t *testing.T) {
	a := progressclient.NewAsyncReporter(context.Background(), newGatedReporter(), discardLogger)
	closeWithin(t, a)

	err := a.Report(context.Background(), domain.ProgressReport{Position: 1})

	assert.ErrorIs(t, err, progressclient.ErrClosed)
	assert.NoError(t, a.Close(context.Background()))
}

func TestAsyncReporter_FailuresAreSwallowed(t *testing.T) {
	next := newGatedReporter()
	next.err = errors.New("api down")
	close(next.release)
	a := progressclient.NewAsyncReporter(context.Background(), next, discardLogger)

	assert.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 1}))
	closeWithin(t, a)

	assert.Equal(t, []float64{1}, next.positions())
}

func TestAsyncReporter_CloseGivesUpWithContext(t *testing.T) {
	next := newGatedReporter()
	a := progressclient.NewAsyncReporter(context.Background(), next, discardLogger)
	require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 1}))
	<-next.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.Close(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(next.release)
}

func TestAsyncReporter_DropsOlderReports(t *testing.T) {
	// Arrange
	next := newGatedReporter()
	a := progressclient.NewAsyncReporter(context.Background(), next, discardLogger)
	require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 1, ClientTsMs: 100}))
	<-next.started

	// Act: a forced write is queued, then a stale periodic write arrives late
	require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 30, ClientTsMs: 300}))
	require.NoError(t, a.Report(context.Background(), domain.ProgressReport{Position: 20, ClientTsMs: 200}))
	close(next.release)
	closeWithin(t, a)

	// Assert
	assert.Equal(t, []float64{1, 30}, next.positions())
	assert.Equal(t, 1, a.Superseded())
}
