package domain_test

import (
	"encoding/json"
	"testing"

	"lms-media/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressRecordedEvent_CarriesReport(t *testing.T) {
	report := domain.ProgressReport{
		VideoID:         uuid.New(),
		Position:        42.5,
		TotalWatched:    40,
		ProgressPercent: 7,
		IsComplete:      false,
		ClientTsMs:      1700000000000,
	}

	event := domain.NewProgressRecordedEvent("user-1", report)
	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded domain.ProgressRecordedEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "user-1", decoded.UserID)
	assert.Equal(t, report, decoded.Report())
	assert.Contains(t, string(data), `"video_id":"`+report.VideoID.String()+`"`)
}
