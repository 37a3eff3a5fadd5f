package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lms_media"

// Metrics holds all Prometheus metrics for the media core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChunkAttempts    *prometheus.CounterVec
	ChunkRetries     prometheus.Counter
	BytesUploaded    prometheus.Counter
	UploadSessions   *prometheus.CounterVec
	UploadDuration   *prometheus.HistogramVec
	ProgressWrites   *prometheus.CounterVec
	ChunksSwept      prometheus.Counter
	ProgressMessages *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChunkAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_attempts_total",
				Help:      "Total number of chunk upload attempts",
			},
			[]string{"result"},
		),
		ChunkRetries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chunk_retries_total",
				Help:      "Total number of chunk upload retries",
			},
		),
		BytesUploaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploaded_bytes_total",
				Help:      "Total number of bytes accounted to successful chunks",
			},
		),
		UploadSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_sessions_total",
				Help:      "Total number of finished upload sessions",
			},
			[]string{"strategy", "outcome"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Duration of upload transfers in seconds",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"strategy"},
		),
		ProgressWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_writes_total",
				Help:      "Total number of progress writes",
			},
			[]string{"mode", "result"},
		),
		ChunksSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_chunks_swept_total",
				Help:      "Total number of stale chunk objects removed",
			},
		),
		ProgressMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progress_messages_total",
				Help:      "Total number of queued progress messages handled",
			},
			[]string{"result"},
		),
	}
}

// ChunkAttempt records one chunk attempt
func (m *Metrics) ChunkAttempt(ok bool, retry bool) {
	if m == nil {
		return
	}
	m.ChunkAttempts.WithLabelValues(result(ok)).Inc()
	if retry {
		m.ChunkRetries.Inc()
	}
}

// ChunkUploaded records bytes accounted to a successful chunk
func (m *Metrics) ChunkUploaded(bytes int64) {
	if m == nil {
		return
	}
	m.BytesUploaded.Add(float64(bytes))
}

// SessionFinished records the terminal outcome of an upload session
func (m *Metrics) SessionFinished(strategy, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.UploadSessions.WithLabelValues(strategy, outcome).Inc()
	m.UploadDuration.WithLabelValues(strategy).Observe(seconds)
}

// ProgressWrite records one progress write; mode is "sync" or "async"
func (m *Metrics) ProgressWrite(mode string, ok bool) {
	if m == nil {
		return
	}
	m.ProgressWrites.WithLabelValues(mode, result(ok)).Inc()
}

// ProgressMessage records one consumed progress message
func (m *Metrics) ProgressMessage(ok bool) {
	if m == nil {
		return
	}
	m.ProgressMessages.WithLabelValues(result(ok)).Inc()
}

// Swept records removed stale chunks
func (m *Metrics) Swept(n int) {
	if m == nil {
		return
	}
	m.ChunksSwept.Add(float64(n))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
