// Package outcomes publishes per-destination delivery results of a broadcast.
// Records are informational: nothing in the service consumes them back.
package outcomes

import (
	"context"
	"time"

	"pushcast/internal/notification/models"
)

// Publisher accepts the settled outcomes of a broadcast.
type Publisher interface {
	Publish(ctx context.Context, rec BroadcastRecord) error
	Close() error
}

// OutcomeRecord is the settled result for one destination.
type OutcomeRecord struct {
	Endpoint   string `json:"endpoint"`
	Result     string `json:"result"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
	Pruned     bool   `json:"pruned,omitempty"`
	DurationMs int64  `json:"durationMs"`
}

// BroadcastRecord describes one broadcast and everything it produced.
type BroadcastRecord struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"startedAt"`
	Payload   models.Payload  `json:"payload"`
	Outcomes  []OutcomeRecord `json:"outcomes"`
}

// NewBroadcastRecord converts a dispatcher result into its published form.
func NewBroadcastRecord(res *models.BroadcastResult) BroadcastRecord {
	rec := BroadcastRecord{
		ID:        res.ID,
		StartedAt: res.StartedAt.UTC(),
		Payload:   res.Payload,
		Outcomes:  make([]OutcomeRecord, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		or := OutcomeRecord{
			Endpoint:   o.Endpoint,
			Result:     o.Result(),
			StatusCode: o.StatusCode,
			Pruned:     o.Pruned,
			DurationMs: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			or.Error = o.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, or)
	}
	return rec
}

// NopPublisher discards every record.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, BroadcastRecord) error { return nil }

func (NopPublisher) Close() error { return nil }
