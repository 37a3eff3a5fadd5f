package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type sqlProgressRepository struct {
	db SQLQuerier
}

// NewSQLProgressRepository creates sqlProgressRepository that implements port.ProgressRepository
func NewSQLProgressRepository(db SQLQuerier) port.ProgressRepository {
	return &sqlProgressRepository{db: db}
}

// Upsert is last-write-wins on client_ts_ms. completed never goes back to false, total_watched never
// decreases and completed_at keeps its first value.
func (s *sqlProgressRepository) Upsert(ctx context.Context, p domain.VideoProgress) (bool, error) {
	query := `
		INSERT INTO video_progress (
			user_id, video_id, position, total_watched, progress_percent, completed, completed_at, client_ts_ms, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, video_id) DO UPDATE SET
			position         = EXCLUDED.position,
			total_watched    = GREATEST(video_progress.total_watched, EXCLUDED.total_watched),
			progress_percent = EXCLUDED.progress_percent,
			completed        = video_progress.completed OR EXCLUDED.completed,
			completed_at     = COALESCE(video_progress.completed_at, EXCLUDED.completed_at),
			client_ts_ms     = EXCLUDED.client_ts_ms,
			updated_at       = now()
		WHERE video_progress.client_ts_ms <= EXCLUDED.client_ts_ms`

	var completedAt *time.Time
	if p.CompletedAt != nil {
		at := p.CompletedAt.UTC()
		completedAt = &at
	}

	result, err := s.db.ExecContext(
		ctx,
		query,
		p.UserID,
		p.VideoID,
		p.Position,
		p.TotalWatched,
		p.ProgressPercent,
		p.Completed,
		completedAt,
		p.ClientTsMs,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return false, fmt.Errorf("video %s : %w", p.VideoID, domain.ErrVideoNotFound)
		}
		return false, fmt.Errorf("error upserting video progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *sqlProgressRepository) Find(ctx context.Context, userID string, videoID uuid.UUID) (*domain.VideoProgress, error) {
	query := `
		SELECT user_id, video_id, position, total_watched, progress_percent, completed, completed_at, client_ts_ms, updated_at
		FROM video_progress
		WHERE user_id = $1 AND video_id = $2`

	var row dbVideoProgress
	err := s.db.QueryRowContext(ctx, query, userID, videoID).Scan(
		&row.UserID,
		&row.VideoID,
		&row.Position,
		&row.TotalWatched,
		&row.ProgressPercent,
		&row.Completed,
		&row.CompletedAt,
		&row.ClientTsMs,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, err
	}

	return row.ToDomain(), nil
}

type dbVideoProgress struct {
	UserID          string       `db:"user_id"`
	VideoID         uuid.UUID    `db:"video_id"`
	Position        float64      `db:"position"`
	TotalWatched    float64      `db:"total_watched"`
	ProgressPercent int          `db:"progress_percent"`
	Completed       bool         `db:"completed"`
	CompletedAt     sql.NullTime `db:"completed_at"`
	ClientTsMs      int64        `db:"client_ts_ms"`
	UpdatedAt       time.Time    `db:"updated_at"`
}

// ToDomain converts db obj to domain
func (p *dbVideoProgress) ToDomain() *domain.VideoProgress {
	progress := &domain.VideoProgress{
		UserID:          p.UserID,
		VideoID:         p.VideoID,
		Position:        p.Position,
		TotalWatched:    p.TotalWatched,
		ProgressPercent: p.ProgressPercent,
		Completed:       p.Completed,
		ClientTsMs:      p.ClientTsMs,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.CompletedAt.Valid {
		at := p.CompletedAt.Time
		progress.CompletedAt = &at
	}
	return progress
}
