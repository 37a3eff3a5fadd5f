package upload

import (
	"fmt"
	"lms-media/internal/core/domain"

	"github.com/google/uuid"
)

// SplitChunks divides [0, size) into ordered half-open ranges of at most chunkSize bytes
func SplitChunks(size, chunkSize int64) ([]domain.Chunk, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidArgument, chunkSize)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: file size must not be negative, got %d", domain.ErrInvalidArgument, size)
	}

	count := ChunkCount(size, chunkSize)
	chunks := make([]domain.Chunk, 0, count)
	for i := int64(0); i < count; i++ {
		start := i * chunkSize
		chunks = append(chunks, domain.Chunk{
			Index:     int(i),
			ByteStart: start,
			ByteEnd:   min(start+chunkSize, size),
		})
	}
	return chunks, nil
}

// ChunkCount returns ceil(size / chunkSize) without building the plan
func ChunkCount(size, chunkSize int64) int64 {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return (size + chunkSize - 1) / chunkSize
}

// ChunksRoot is the storage prefix under which every session keeps its chunks
const ChunksRoot = "chunks/"

// ChunkPrefix is the storage prefix holding every chunk of a session
func ChunkPrefix(sessionID uuid.UUID) string {
	return ChunksRoot + sessionID.String() + "/"
}

// ChunkKey is the destination key of one chunk. The zero padded index keeps lexical order equal to byte order.
func ChunkKey(sessionID uuid.UUID, index int) string {
	return fmt.Sprintf("%schunk_%06d", ChunkPrefix(sessionID), index)
}
