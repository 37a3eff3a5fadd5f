package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"lms-media/internal/core/domain"
)

// HandleMessage applies one queued progress event. Malformed events match domain.ErrInvalidArgument
// and will never succeed on redelivery.
func (p *progressService) HandleMessage(ctx context.Context, data []byte) error {
	var event domain.ProgressRecordedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		p.metrics.ProgressMessage(false)
		return fmt.Errorf("%w: could not unmarshal progress event: %v", domain.ErrInvalidArgument, err)
	}

	report := event.Report()
	if err := validateReport(event.UserID, report); err != nil {
		p.metrics.ProgressMessage(false)
		return err
	}

	err := p.apply(ctx, p.toRow(event.UserID, report))
	p.metrics.ProgressMessage(err == nil)
	if err != nil {
		p.logger.Warn("failed to apply progress event", "user_id", event.UserID, "video_id", event.VideoID, "error", err)
	}
	return err
}
