package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadStrategy is how the bytes of a file reach object storage
type UploadStrategy string

const (
	UploadStrategyDirect  UploadStrategy = "direct"
	UploadStrategyChunked UploadStrategy = "chunked"
)

// UploadSessionStatus represents the status of an upload session
type UploadSessionStatus string

const (
	UploadSessionStatusPending   UploadSessionStatus = "pending"
	UploadSessionStatusUploading UploadSessionStatus = "uploading"
	UploadSessionStatusPaused    UploadSessionStatus = "paused"
	UploadSessionStatusCompleted UploadSessionStatus = "completed"
	UploadSessionStatusFailed    UploadSessionStatus = "failed"
	UploadSessionStatusCancelled UploadSessionStatus = "cancelled"
)

// IsTerminal reports whether no further transition can leave the status
func (s UploadSessionStatus) IsTerminal() bool {
	switch s {
	case UploadSessionStatusCompleted, UploadSessionStatusFailed, UploadSessionStatusCancelled:
		return true
	default:
		return false
	}
}

// UploadSession represents one attempt at uploading one file. It lives in memory only.
type UploadSession struct {
	ID             uuid.UUID
	CourseID       uuid.UUID
	Title          string
	FileName       string
	MimeType       string
	SourceFileSize int64
	// Duration is the video length in seconds as reported by the caller, 0 when unknown.
	Duration       int
	ChunkSize      int64
	Strategy       UploadStrategy
	Status         UploadSessionStatus
	// ObjectKey is where the playable object ends up (direct object or compose target).
	ObjectKey      string
	CreatedAt      time.Time
}

// Chunk is a half-open byte range [ByteStart, ByteEnd) of the source file
type Chunk struct {
	Index      int
	ByteStart  int64
	ByteEnd    int64
	Uploaded   bool
	RetryCount int
}

// Size returns the number of bytes covered by the chunk
func (c Chunk) Size() int64 {
	return c.ByteEnd - c.ByteStart
}

// SourceFile describes the file a caller wants to upload
type SourceFile struct {
	CourseID uuid.UUID
	Title    string
	FileName string
	MimeType string
	Size     int64
	Duration int
}

// TransferProgress is a sample of an ongoing transfer.
// EstimatedSecondsRemaining is nil while the speed is unknown.
type TransferProgress struct {
	BytesTransferred          int64
	TotalBytes                int64
	SpeedBytesPerSec          float64
	EstimatedSecondsRemaining *float64
}

// Percent returns the transferred share in [0, 100]
func (p TransferProgress) Percent() float64 {
	if p.TotalBytes <= 0 {
		return 100
	}
	return float64(p.BytesTransferred) / float64(p.TotalBytes) * 100
}
