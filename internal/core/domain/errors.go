package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is an error thrown when an argument is out of its domain
var ErrInvalidArgument = errors.New("invalid argument")

// ErrFileSizeTooBig is an error thrown when file size is too big
var ErrFileSizeTooBig = errors.New("file size too big")

// ErrUnsupportedType is an error thrown when the MIME type is not an allowed video type
var ErrUnsupportedType = errors.New("unsupported file type")

// ErrChunkUploadFailed is an error thrown when a chunk exhausted its retries
var ErrChunkUploadFailed = errors.New("chunk upload failed")

// ErrUploadFailed is an error thrown when an upload session ends in failure
var ErrUploadFailed = errors.New("upload failed")

// ErrUploadCancelled is an error thrown when an upload session is cancelled
var ErrUploadCancelled = errors.New("upload cancelled")

// ErrMetadataPersist is an error thrown when bytes were stored but the videos row could not be written
var ErrMetadataPersist = errors.New("metadata persistence failed")

// ErrPlaybackPersist is an error thrown when a progress write fails
var ErrPlaybackPersist = errors.New("playback progress persistence failed")

// ErrInvalidSessionState is an error thrown when an operation does not fit the session status
var ErrInvalidSessionState = errors.New("invalid session state")

// ErrVideoNotFound is an error thrown when video is not found
var ErrVideoNotFound = errors.New("video not found")

// ErrProgressNotFound is an error thrown when no progress exists for a viewer and video
var ErrProgressNotFound = errors.New("progress not found")

// ErrForbidden is an error thrown when the caller's role does not allow the operation
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyExists is an error thrown when entity already exists
var ErrAlreadyExists = errors.New("already exists")

// ValidationError is returned when a file is rejected before any network call
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ChunkUploadError is returned when a chunk exhausted its retry budget
type ChunkUploadError struct {
	Index    int
	Attempts int
	Err      error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("chunk %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
}

func (e *ChunkUploadError) Is(target error) bool {
	return target == ErrChunkUploadFailed
}

func (e *ChunkUploadError) Unwrap() error {
	return e.Err
}
