package domain

import (
	"time"

	"github.com/google/uuid"
)

// PlaybackStatus is the completion status of a video for one viewer
type PlaybackStatus string

const (
	PlaybackStatusNotStarted PlaybackStatus = "not_started"
	PlaybackStatusInProgress PlaybackStatus = "in_progress"
	PlaybackStatusCompleted  PlaybackStatus = "completed"
)

// Role is the role carried by an authenticated session
type Role string

const (
	RoleStudent         Role = "student"
	RoleInstructor      Role = "instructor"
	RoleAdmin           Role = "admin"
	RoleLaborConsultant Role = "labor_consultant"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleInstructor, RoleAdmin, RoleLaborConsultant:
		return true
	default:
		return false
	}
}

// PlaybackProgressState is the advisory, in-memory view of a viewer's progress on one video
type PlaybackProgressState struct {
	CurrentPositionSeconds    float64
	MaxWatchedPositionSeconds float64
	TotalWatchedSeconds       float64
	ProgressPercent           int
	Status                    PlaybackStatus
	HasCompletedOnce          bool
}

// ProgressReport is one outbound progress write. Each report carries the full state.
type ProgressReport struct {
	VideoID         uuid.UUID `json:"-"`
	Position        float64   `json:"position"`
	TotalWatched    float64   `json:"total_watched"`
	ProgressPercent int       `json:"progress_percent"`
	IsComplete      bool      `json:"is_complete"`
	ClientTsMs      int64     `json:"client_ts_ms"`
}

// VideoProgress represents a video_progress row, the authoritative copy of a viewer's progress
type VideoProgress struct {
	UserID          string
	VideoID         uuid.UUID
	Position        float64
	TotalWatched    float64
	ProgressPercent int
	Completed       bool
	CompletedAt     *time.Time
	ClientTsMs      int64
	UpdatedAt       time.Time
}
