package upload

import (
	"lms-media/internal/core/domain"
	"time"
)

// TransferMeter turns successive byte counts into speed and ETA samples
type TransferMeter struct {
	total     int64
	lastBytes int64
	lastAt    time.Time
}

// NewTransferMeter starts measuring at start with nothing transferred
func NewTransferMeter(total int64, start time.Time) *TransferMeter {
	return &TransferMeter{total: total, lastAt: start}
}

// Sample computes progress since the previous sample
func (m *TransferMeter) Sample(bytes int64, now time.Time) domain.TransferProgress {
	p := domain.TransferProgress{
		BytesTransferred: bytes,
		TotalBytes:       m.total,
	}

	if elapsed := now.Sub(m.lastAt).Seconds(); elapsed > 0 {
		p.SpeedBytesPerSec = float64(bytes-m.lastBytes) / elapsed
	}
	if p.SpeedBytesPerSec > 0 {
		eta := float64(m.total-bytes) / p.SpeedBytesPerSec
		p.EstimatedSecondsRemaining = &eta
	}

	m.lastBytes = bytes
	m.lastAt = now
	return p
}
