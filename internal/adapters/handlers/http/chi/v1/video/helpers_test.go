package video_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lms-media/internal/adapters/handlers/http/chi"
	"lms-media/internal/adapters/handlers/http/chi/auth"
	"lms-media/internal/adapters/handlers/http/chi/v1/video"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/service/progress"
	videoservice "lms-media/internal/core/service/video"

	"github.com/stretchr/testify/require"
)

var (
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	secret        = []byte("handler-secret")
)

type fixture struct {
	videos   *videoservice.MockVideoService
	progress *progress.MockProgressService
	router   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		videos:   videoservice.NewMockVideoService(),
		progress: progress.NewMockProgressService(),
	}
	handler := video.NewVideoHandlerV1(f.videos, f.progress, discardLogger)
	f.router = chi.NewRouter(discardLogger, handler, auth.Middleware(secret, discardLogger), nil, "")
	return f
}

func (f *fixture) do(t *testing.T, method, target, body, userID string, role domain.Role) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	token, err := auth.IssueToken(secret, userID, role, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}
