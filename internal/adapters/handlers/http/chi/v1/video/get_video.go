package video

import (
	"errors"
	"lms-media/internal/core/domain"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// V1GetVideoResponse is the response to get video
type V1GetVideoResponse struct {
	ID         uuid.UUID `json:"id"`
	CourseID   uuid.UUID `json:"course_id"`
	Title      string    `json:"title"`
	MimeType   string    `json:"mime_type"`
	FileSize   int64     `json:"file_size"`
	Duration   int       `json:"duration"`
	OrderIndex int       `json:"order_index"`
	Status     string    `json:"status"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// GetVideoV1 returns a video with a playback URL
func (h *HandlerV1) GetVideoV1(w http.ResponseWriter, r *http.Request) {
	videoID, ok := videoIDParam(w, r)
	if !ok {
		return
	}

	playback, err := h.videoService.GetVideo(r.Context(), videoID)
	switch {
	case errors.Is(err, domain.ErrVideoNotFound):
		http.Error(w, "video not found", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("error getting video", "video_id", videoID, "error", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	video := playback.Video
	h.writeJSON(w, http.StatusOK, V1GetVideoResponse{
		ID:         video.ID,
		CourseID:   video.CourseID,
		Title:      video.Title,
		MimeType:   video.MimeType,
		FileSize:   video.FileSize,
		Duration:   video.Duration,
		OrderIndex: video.OrderIndex,
		Status:     string(video.Status),
		URL:        playback.URL,
		ExpiresAt:  playback.ExpiresAt,
	})
}
