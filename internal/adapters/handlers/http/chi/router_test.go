package chi_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"lms-media/internal/adapters/handlers/http/chi"
	"lms-media/internal/adapters/handlers/http/chi/auth"
	"lms-media/internal/adapters/handlers/http/chi/v1/video"
	"lms-media/internal/core/service/progress"
	videoservice "lms-media/internal/core/service/video"
	"lms-media/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(logger *slog.Logger) http.Handler {
	reg := prometheus.NewRegistry()
	observability.NewMetrics(reg)
	handler := video.NewVideoHandlerV1(videoservice.NewMockVideoService(), progress.NewMockProgressService(), logger)
	return chi.NewRouter(logger, handler, auth.Middleware([]byte("secret"), logger), promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), "dev")
}

func TestRouter_Health(t *testing.T) {
	var logs bytes.Buffer
	h := newTestRouter(slog.New(slog.NewTextHandler(&logs, nil)))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Empty(t, logs.String())
}

func TestRouter_Metrics(t *testing.T) {
	h := newTestRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "lms_media_stale_chunks_swept_total")
}

func TestRouter_APIRequiresAuthAndIsLogged(t *testing.T) {
	var logs bytes.Buffer
	h := newTestRouter(slog.New(slog.NewTextHandler(&logs, nil)))
	w := httptest.NewRecorder()

	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/videos/7f9c1f5e-3a59-4d8e-9a63-1f2b6f0d3c11", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, logs.String(), "http_request")
	assert.Contains(t, logs.String(), "status=401")
}

func TestRouter_CORSPreflightOutsideProd(t *testing.T) {
	h := newTestRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/videos/x/progress", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
