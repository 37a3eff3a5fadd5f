package progress

import (
	"fmt"
	"lms-media/internal/config"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
	"lms-media/internal/observability"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	modeSync  = "sync"
	modeAsync = "async"
)

type progressService struct {
	uow       port.UnitOfWork
	publisher port.EventPublisher
	cfg       config.ProgressConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// NewProgressService creates a new progress service. Writes are queued through publisher when
// cfg.AsyncWrites is set and publisher is not nil, and applied directly otherwise.
func NewProgressService(uow port.UnitOfWork, publisher port.EventPublisher, cfg config.ProgressConfig, logger *slog.Logger, metrics *observability.Metrics) port.ProgressService {
	return newService(uow, publisher, cfg, logger, metrics)
}

// NewMessageService creates the handler applying queued progress events
func NewMessageService(uow port.UnitOfWork, logger *slog.Logger, metrics *observability.Metrics) port.MessageService {
	return newService(uow, nil, config.ProgressConfig{}, logger, metrics)
}

func newService(uow port.UnitOfWork, publisher port.EventPublisher, cfg config.ProgressConfig, logger *slog.Logger, metrics *observability.Metrics) *progressService {
	return &progressService{
		uow:       uow,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (p *progressService) async() bool {
	return p.cfg.AsyncWrites && p.publisher != nil
}

func validateReport(userID string, report domain.ProgressReport) error {
	invalid := func(field, reason string) error {
		return &domain.ValidationError{Field: field, Reason: reason, Err: domain.ErrInvalidArgument}
	}

	switch {
	case userID == "":
		return invalid("user_id", "is required")
	case report.VideoID == uuid.Nil:
		return invalid("video_id", "is required")
	case math.IsNaN(report.Position) || math.IsInf(report.Position, 0) || report.Position < 0:
		return invalid("position", fmt.Sprintf("must be a non-negative number, got %v", report.Position))
	case math.IsNaN(report.TotalWatched) || math.IsInf(report.TotalWatched, 0) || report.TotalWatched < 0:
		return invalid("total_watched", fmt.Sprintf("must be a non-negative number, got %v", report.TotalWatched))
	case report.ProgressPercent < 0 || report.ProgressPercent > 100:
		return invalid("progress_percent", fmt.Sprintf("must be between 0 and 100, got %d", report.ProgressPercent))
	case report.ClientTsMs < 0:
		return invalid("client_ts_ms", "must not be negative")
	}
	return nil
}

// toRow builds the row written for a report. completed_at is only kept the first time.
func (p *progressService) toRow(userID string, report domain.ProgressReport) domain.VideoProgress {
	row := domain.VideoProgress{
		UserID:          userID,
		VideoID:         report.VideoID,
		Position:        report.Position,
		TotalWatched:    report.TotalWatched,
		ProgressPercent: report.ProgressPercent,
		Completed:       report.IsComplete,
		ClientTsMs:      report.ClientTsMs,
	}
	if report.IsComplete {
		at := p.now().UTC()
		row.CompletedAt = &at
	}
	if row.ClientTsMs == 0 {
		row.ClientTsMs = p.now().UnixMilli()
	}
	return row
}
