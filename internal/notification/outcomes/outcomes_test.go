package outcomes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushcast/internal/notification/models"
)

func sampleResult() *models.BroadcastResult {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	return &models.BroadcastResult{
		ID:        "5f0c7b55-8d1e-4d0e-9a55-0b7d7e1f2a10",
		StartedAt: started,
		Payload:   models.NewPayload("Hi", "", ""),
		Addressed: 2,
		Delivered: 1,
		Failed:    1,
		Pruned:    1,
		Outcomes: []models.Outcome{
			{Endpoint: "https://push.example/A", StatusCode: 201, Duration: 42 * time.Millisecond},
			{Endpoint: "https://push.example/B", StatusCode: 410, Err: errors.New("gone"), Gone: true, Pruned: true},
		},
	}
}

func TestNewBroadcastRecord(t *testing.T) {
	rec := NewBroadcastRecord(sampleResult())

	assert.Equal(t, "5f0c7b55-8d1e-4d0e-9a55-0b7d7e1f2a10", rec.ID)
	assert.Equal(t, time.UTC, rec.StartedAt.Location())
	require.Len(t, rec.Outcomes, 2)

	assert.Equal(t, OutcomeRecord{
		Endpoint:   "https://push.example/A",
		Result:     models.ResultDelivered,
		StatusCode: 201,
		DurationMs: 42,
	}, rec.Outcomes[0])
	assert.Equal(t, OutcomeRecord{
		Endpoint:   "https://push.example/B",
		Result:     models.ResultGone,
		StatusCode: 410,
		Error:      "gone",
		Pruned:     true,
	}, rec.Outcomes[1])
}

func TestBroadcastRecordJSON(t *testing.T) {
	rec := NewBroadcastRecord(&models.BroadcastResult{ID: "b1", Payload: models.NewPayload("", "", "")})

	raw, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "b1", decoded["id"])
	assert.Equal(t, []any{}, decoded["outcomes"])
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), BroadcastRecord{}))
	assert.NoError(t, p.Close())
}
