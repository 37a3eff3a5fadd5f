package progress

import (
	"context"
	"errors"
	"fmt"
	"lms-media/internal/core/domain"
	"lms-media/internal/core/port"
)

func (p *progressService) Record(ctx context.Context, userID string, report domain.ProgressReport) (bool, error) {
	if err := validateReport(userID, report); err != nil {
		return false, err
	}

	if p.async() {
		err := p.publish(ctx, userID, report)
		p.metrics.ProgressWrite(modeAsync, err == nil)
		if err != nil {
			return false, fmt.Errorf("%w: %w", domain.ErrPlaybackPersist, err)
		}
		return true, nil
	}

	err := p.apply(ctx, p.toRow(userID, report))
	p.metrics.ProgressWrite(modeSync, err == nil)
	return false, err
}

func (p *progressService) publish(ctx context.Context, userID string, report domain.ProgressReport) error {
	if report.ClientTsMs == 0 {
		report.ClientTsMs = p.now().UnixMilli()
	}
	return p.publisher.PublishJSON(ctx, p.cfg.Subject, domain.NewProgressRecordedEvent(userID, report))
}

// apply upserts the row. A stale write is not an error.
func (p *progressService) apply(ctx context.Context, row domain.VideoProgress) error {
	var applied bool
	err := p.uow.Execute(ctx, func(uow port.UnitOfWork) error {
		var upsertErr error
		applied, upsertErr = uow.ProgressRepo().Upsert(ctx, row)
		return upsertErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrVideoNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrPlaybackPersist, err)
	}
	if !applied {
		p.logger.Debug("stale progress write ignored",
			"user_id", row.UserID,
			"video_id", row.VideoID,
			"client_ts_ms", row.ClientTsMs,
		)
	}
	return nil
}
