package video

import (
	"encoding/json"
	"lms-media/internal/core/port"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandlerV1 is the handler for v1 videos routes
type HandlerV1 struct {
	videoService    port.VideoService
	progressService port.ProgressService
	logger          *slog.Logger
}

// NewVideoHandlerV1 creates HandlerV1
func NewVideoHandlerV1(videoService port.VideoService, progressService port.ProgressService, logger *slog.Logger) *HandlerV1 {
	return &HandlerV1{
		videoService:    videoService,
		progressService: progressService,
		logger:          logger,
	}
}

// Routes exposes handler routes
func (h *HandlerV1) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/{videoID}", h.GetVideoV1)
	router.Put("/{videoID}/progress", h.RecordProgressV1)
	router.Get("/{videoID}/progress", h.GetProgressV1)

	return router
}

func videoIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	videoID, err := uuid.Parse(chi.URLParam(r, "videoID"))
	if err != nil {
		http.Error(w, "invalid video id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return videoID, true
}

func (h *HandlerV1) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("error encoding response", "error", err)
	}
}
