package outcomes

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"pushcast/internal/notification/models"
)

func TestBuildRecordsOnePerDestination(t *testing.T) {
	rec := NewBroadcastRecord(sampleResult())

	records, err := buildRecords(rec)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for i, r := range records {
		assert.Equal(t, rec.Outcomes[i].Endpoint, string(r.Key))
		require.Len(t, r.Headers, 1)
		assert.Equal(t, HeaderBroadcastID, r.Headers[0].Key)
		assert.Equal(t, rec.ID, string(r.Headers[0].Value))
		assert.Empty(t, r.Topic, "topic comes from the client default")
	}

	var event DeliveryEvent
	require.NoError(t, json.Unmarshal(records[1].Value, &event))
	assert.Equal(t, rec.ID, event.BroadcastID)
	assert.Equal(t, "Hi", event.Payload.Title)
	assert.Equal(t, models.ResultGone, event.Result)
	assert.True(t, event.Pruned)
}

func TestDeliveryEventFlattensOutcome(t *testing.T) {
	records, err := buildRecords(NewBroadcastRecord(sampleResult()))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &raw))
	assert.Equal(t, "https://push.example/A", raw["endpoint"])
	assert.Equal(t, "delivered", raw["result"])
	assert.EqualValues(t, 201, raw["statusCode"])
	assert.NotContains(t, raw, "error")
}

func TestBuildRecordsEmpty(t *testing.T) {
	records, err := buildRecords(BroadcastRecord{ID: "b"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestNewKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{}, nil)
	require.Error(t, err)
}

func TestNewKafkaPublisherDefaultsTopic(t *testing.T) {
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, nil)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, DefaultTopic, p.Topic())
}

func TestPublishDropsWhileCircuitOpen(t *testing.T) {
	breaker := NewBreaker(1, time.Hour)
	breaker.RecordFailure()
	m := NewMetrics(prometheus.NewRegistry())

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, nil,
		WithBreaker(breaker), WithMetrics(m))
	require.NoError(t, err)
	defer p.Close()

	err = p.Publish(context.Background(), NewBroadcastRecord(sampleResult()))
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Dropped))
	assert.Zero(t, testutil.ToFloat64(m.Published))
}

func TestPublishWithoutOutcomesSkipsBroker(t *testing.T) {
	breaker := NewBreaker(1, time.Hour)
	breaker.RecordFailure()

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, nil, WithBreaker(breaker))
	require.NoError(t, err)
	defer p.Close()

	assert.NoError(t, p.Publish(context.Background(), BroadcastRecord{ID: "empty"}))
}

// scriptedProducer answers ProduceSync with the next queued error, or blocks
// until the context ends when block is set.
type scriptedProducer struct {
	errs  []error
	block bool
	calls int
}

func (f *scriptedProducer) ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	f.calls++
	var err error
	if f.block {
		<-ctx.Done()
		err = ctx.Err()
	} else if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		results = append(results, kgo.ProduceResult{Record: r, Err: err})
	}
	return results
}

func newScriptedPublisher(t *testing.T, prod *scriptedProducer, breaker *Breaker) (*KafkaPublisher, *Metrics) {
	t.Helper()
	m := NewMetrics(prometheus.NewRegistry())
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, nil,
		WithBreaker(breaker), WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	p.producer = prod
	return p, m
}

func TestPublishRecoveryClearsBreakerGauge(t *testing.T) {
	ctx := context.Background()
	breaker, clock := newTestBreaker(1, time.Minute)
	prod := &scriptedProducer{errs: []error{errors.New("broker down")}}
	p, m := newScriptedPublisher(t, prod, breaker)
	rec := NewBroadcastRecord(sampleResult())

	require.Error(t, p.Publish(ctx, rec))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerState))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Failures))

	require.ErrorIs(t, p.Publish(ctx, rec), ErrCircuitOpen)
	assert.Equal(t, 1, prod.calls, "open breaker skips the broker")

	clock.t = clock.t.Add(2 * time.Minute)
	require.NoError(t, p.Publish(ctx, rec))
	assert.False(t, breaker.IsOpen())
	assert.Zero(t, testutil.ToFloat64(m.BreakerState))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Published))
}

func TestPublishFailedTrialReopensBreaker(t *testing.T) {
	ctx := context.Background()
	breaker, clock := newTestBreaker(5, time.Minute)
	failures := make([]error, 6)
	for i := range failures {
		failures[i] = errors.New("broker down")
	}
	prod := &scriptedProducer{errs: failures}
	p, m := newScriptedPublisher(t, prod, breaker)
	rec := NewBroadcastRecord(sampleResult())

	for range 5 {
		require.Error(t, p.Publish(ctx, rec))
	}
	require.True(t, breaker.IsOpen())

	clock.t = clock.t.Add(2 * time.Minute)
	require.Error(t, p.Publish(ctx, rec))
	assert.Equal(t, 6, prod.calls)

	require.ErrorIs(t, p.Publish(ctx, rec), ErrCircuitOpen)
	assert.Equal(t, 6, prod.calls, "failed trial reopens without another threshold of attempts")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerState))
}

func TestPublishStopsWaitingWhenContextEnds(t *testing.T) {
	prod := &scriptedProducer{block: true}
	p, _ := newScriptedPublisher(t, prod, NewBreaker(5, time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := p.Publish(ctx, NewBroadcastRecord(sampleResult()))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
