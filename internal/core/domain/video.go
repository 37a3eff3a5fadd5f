package domain

import (
	"time"

	"github.com/google/uuid"
)

// VideoStatus represents the status of a video row
type VideoStatus string

const (
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusProcessing VideoStatus = "processing"
)

// VideoMetadata is the json payload stored next to a video row
type VideoMetadata struct {
	SessionID   uuid.UUID `json:"session_id"`
	Chunked     bool      `json:"chunked"`
	TotalChunks int       `json:"total_chunks,omitempty"`
	TotalSize   int64     `json:"total_size"`
	ChunkSize   int64     `json:"chunk_size,omitempty"`
	StorageKey  string    `json:"storage_key"`
	ChunkPrefix string    `json:"chunk_prefix,omitempty"`
}

// VideoRecord represents a videos row, the durable outcome of an upload
type VideoRecord struct {
	ID         uuid.UUID
	CourseID   uuid.UUID
	Title      string
	FileURL    string
	FileSize   int64
	MimeType   string
	Duration   int
	OrderIndex int
	Status     VideoStatus
	Metadata   VideoMetadata
	CreatedAt  time.Time
}

// VideoPlayback is a video together with a short lived URL to stream it
type VideoPlayback struct {
	Video     VideoRecord
	URL       string
	ExpiresAt time.Time
}
