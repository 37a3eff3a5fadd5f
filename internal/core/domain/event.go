package domain

import "github.com/google/uuid"

// ProgressRecordedEvent is published when progress writes are queued.
// The consumer rebuilds a ProgressReport from it and applies the usual upsert rules.
type ProgressRecordedEvent struct {
	UserID          string    `json:"user_id"`
	VideoID         uuid.UUID `json:"video_id"`
	Position        float64   `json:"position"`
	TotalWatched    float64   `json:"total_watched"`
	ProgressPercent int       `json:"progress_percent"`
	IsComplete      bool      `json:"is_complete"`
	ClientTsMs      int64     `json:"client_ts_ms"`
}

// NewProgressRecordedEvent builds the event for userID's report
func NewProgressRecordedEvent(userID string, r ProgressReport) ProgressRecordedEvent {
	return ProgressRecordedEvent{
		UserID:          userID,
		VideoID:         r.VideoID,
		Position:        r.Position,
		TotalWatched:    r.TotalWatched,
		ProgressPercent: r.ProgressPercent,
		IsComplete:      r.IsComplete,
		ClientTsMs:      r.ClientTsMs,
	}
}

// Report returns the client report carried by the event
func (e ProgressRecordedEvent) Report() ProgressReport {
	return ProgressReport{
		VideoID:         e.VideoID,
		Position:        e.Position,
		TotalWatched:    e.TotalWatched,
		ProgressPercent: e.ProgressPercent,
		IsComplete:      e.IsComplete,
		ClientTsMs:      e.ClientTsMs,
	}
}
