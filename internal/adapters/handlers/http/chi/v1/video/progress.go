package video

import (
	"encoding/json"
	"errors"
	"lms-media/internal/adapters/handlers/http/chi/auth"
	"lms-media/internal/core/domain"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// V1RecordProgressRequest is one progress write from a player
type V1RecordProgressRequest struct {
	Position        *float64 `json:"position"`
	TotalWatched    float64  `json:"total_watched"`
	ProgressPercent int      `json:"progress_percent"`
	IsComplete      bool     `json:"is_complete"`
	ClientTsMs      int64    `json:"client_ts_ms"`
}

// V1RecordProgressResponse tells whether the write was applied or queued
type V1RecordProgressResponse struct {
	Status string `json:"status"`
}

// V1ProgressResponse is the stored progress of one viewer
type V1ProgressResponse struct {
	UserID          string     `json:"user_id"`
	VideoID         uuid.UUID  `json:"video_id"`
	Position        float64    `json:"position"`
	TotalWatched    float64    `json:"total_watched"`
	ProgressPercent int        `json:"progress_percent"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ClientTsMs      int64      `json:"client_ts_ms"`
}

// RecordProgressV1 stores the caller's progress on a video
func (h *HandlerV1) RecordProgressV1(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req V1RecordProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Position == nil {
		http.Error(w, "missing param: position", http.StatusBadRequest)
		return
	}

	queued, err := h.progressService.Record(r.Context(), principal.UserID, domain.ProgressReport{
		VideoID:         videoID,
		Position:        *req.Position,
		TotalWatched:    req.TotalWatched,
		ProgressPercent: req.ProgressPercent,
		IsComplete:      req.IsComplete,
		ClientTsMs:      req.ClientTsMs,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, domain.ErrVideoNotFound):
		http.Error(w, "video not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("error recording progress", "video_id", videoID, "user_id", principal.UserID, "error", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	case queued:
		h.writeJSON(w, http.StatusAccepted, V1RecordProgressResponse{Status: "queued"})
	default:
		h.writeJSON(w, http.StatusOK, V1RecordProgressResponse{Status: "recorded"})
	}
}

// GetProgressV1 returns the caller's progress, or another user's for instructors and admins
func (h *HandlerV1) GetProgressV1(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	userID := principal.UserID
	if requested := r.URL.Query().Get("user_id"); requested != "" && requested != principal.UserID {
		if !principal.CanReadOthers() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		userID = requested
	}

	progress, err := h.progressService.Get(r.Context(), userID, videoID)
	if err != nil {
		h.logger.Error("error getting progress", "video_id", videoID, "user_id", userID, "error", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, http.StatusOK, V1ProgressResponse{
		UserID:          progress.UserID,
		VideoID:         progress.VideoID,
		Position:        progress.Position,
		TotalWatched:    progress.TotalWatched,
		ProgressPercent: progress.ProgressPercent,
		IsCompleted:     progress.Completed,
		CompletedAt:     progress.CompletedAt,
		ClientTsMs:      progress.ClientTsMs,
	})
}
