package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type sqlVideoRepository struct {
	db SQLQuerier
}

// NewSQLVideoRepository creates sqlVideoRepository that implements port.VideoRepository
func NewSQLVideoRepository(db SQLQuerier) port.VideoRepository {
	return &sqlVideoRepository{db: db}
}

// Create inserts a videos row
func (s *sqlVideoRepository) Create(ctx context.Context, video domain.VideoRecord) error {
	metadata, err := json.Marshal(video.Metadata)
	if err != nil {
		return fmt.Errorf("error encoding video metadata: %w", err)
	}

	query := `
		INSERT INTO videos (
			id, course_id, title, file_url, file_size, mime_type, duration, order_index, status, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	createdAt := video.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(
		ctx,
		query,
		video.ID,
		video.CourseID,
		video.Title,
		video.FileURL,
		video.FileSize,
		video.MimeType,
		video.Duration,
		video.OrderIndex,
		video.Status,
		metadata,
		createdAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("video %s : %w", video.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("error inserting video: %w", err)
	}
	return nil
}

// NextOrderIndex returns the order index following the last video of the course. Inside a transaction
// concurrent callers for the same course are serialised until commit.
func (s *sqlVideoRepository) NextOrderIndex(ctx context.Context, courseID uuid.UUID) (int, error) {
	if _, err := s.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, courseID); err != nil {
		return 0, fmt.Errorf("error locking course order: %w", err)
	}

	var next int
	query := `SELECT COALESCE(MAX(order_index) + 1, 0) FROM videos WHERE course_id = $1`
	if err := s.db.QueryRowContext(ctx, query, courseID).Scan(&next); err != nil {
		return 0, fmt.Errorf("error reading order index: %w", err)
	}
	return next, nil
}

func (s *sqlVideoRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.VideoRecord, error) {
	query := `
		SELECT id, course_id, title, file_url, file_size, mime_type, duration, order_index, status, metadata, created_at
		FROM videos
		WHERE id = $1`

	var row dbVideo
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&row.ID,
		&row.CourseID,
		&row.Title,
		&row.FileURL,
		&row.FileSize,
		&row.MimeType,
		&row.Duration,
		&row.OrderIndex,
		&row.Status,
		&row.Metadata,
		&row.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVideoNotFound
		}
		return nil, err
	}

	return row.ToDomain()
}

type dbVideo struct {
	ID         uuid.UUID `db:"id"`
	CourseID   uuid.UUID `db:"course_id"`
	Title      string    `db:"title"`
	FileURL    string    `db:"file_url"`
	FileSize   int64     `db:"file_size"`
	MimeType   string    `db:"mime_type"`
	Duration   int       `db:"duration"`
	OrderIndex int       `db:"order_index"`
	Status     string    `db:"status"`
	Metadata   []byte    `db:"metadata"`
	CreatedAt  time.Time `db:"created_at"`
}

// ToDomain converts db obj to domain
func (v *dbVideo) ToDomain() (*domain.VideoRecord, error) {
	var metadata domain.VideoMetadata
	if len(v.Metadata) > 0 {
		if err := json.Unmarshal(v.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata of video %s: %w", v.ID, err)
		}
	}
	return &domain.VideoRecord{
		ID:         v.ID,
		CourseID:   v.CourseID,
		Title:      v.Title,
		FileURL:    v.FileURL,
		FileSize:   v.FileSize,
		MimeType:   v.MimeType,
		Duration:   v.Duration,
		OrderIndex: v.OrderIndex,
		Status:     domain.VideoStatus(v.Status),
		Metadata:   metadata,
		CreatedAt:  v.CreatedAt,
	}, nil
}
