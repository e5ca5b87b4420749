package dispatcher

//go:generate mockgen -source=service.go -destination=mocks/dispatcher-mocks.go -package=mocks Registry,Transport,Publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"pushcast/internal/notification/metrics"
	"pushcast/internal/notification/models"
	"pushcast/internal/notification/outcomes"
	"pushcast/internal/notification/transport"
	submodels "pushcast/internal/subscription/models"
	dErrors "pushcast/pkg/domain-errors"
	"pushcast/pkg/requestcontext"
)

// ErrDispatch reports that a broadcast could not be carried out as a whole.
// Individual delivery failures never produce it.
var ErrDispatch = errors.New("broadcast dispatch failed")

const tracerName = "pushcast/notification/dispatcher"

// DefaultPublishTimeout bounds how long a broadcast waits for the outcome sink.
const DefaultPublishTimeout = 2 * time.Second

// Registry is the subset of the subscription registry used for broadcasting.
type Registry interface {
	List(ctx context.Context) ([]submodels.Subscription, error)
	Remove(ctx context.Context, endpoint string) error
}

// Transport hands one encrypted message to a push service.
type Transport interface {
	Send(ctx context.Context, sub submodels.Subscription, payload []byte) (int, error)
}

// Publisher receives the settled outcomes of every broadcast.
type Publisher interface {
	Publish(ctx context.Context, rec outcomes.BroadcastRecord) error
}

// Service fans a payload out to every registered subscription.
type Service struct {
	registry       Registry
	transport      Transport
	logger         *slog.Logger
	metrics        *metrics.Metrics
	publisher      Publisher
	tracer         trace.Tracer
	maxConcurrency int
	pruneGone      bool
	publishTimeout time.Duration
	now            func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPublisher sets the outcome sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithPublishTimeout bounds the outcome publish that follows every broadcast.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithMaxConcurrency bounds in-flight deliveries. Zero or less is unbounded.
func WithMaxConcurrency(n int) Option {
	return func(s *Service) {
		s.maxConcurrency = n
	}
}

// WithPruning controls removal of subscriptions reported gone (404/410).
func WithPruning(enabled bool) Option {
	return func(s *Service) {
		s.pruneGone = enabled
	}
}

// New creates the dispatcher. Pruning is enabled by default.
func New(registry Registry, tr Transport, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		registry:       registry,
		transport:      tr,
		logger:         logger,
		publisher:      outcomes.NopPublisher{},
		tracer:         otel.Tracer(tracerName),
		pruneGone:      true,
		publishTimeout: DefaultPublishTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Broadcast delivers payload to a snapshot of the registry, waits for every
// attempt to settle, and reports how many subscriptions were addressed.
// Only a failure of the broadcast itself returns an error wrapping ErrDispatch.
func (s *Service) Broadcast(ctx context.Context, payload models.Payload) (*models.BroadcastResult, error) {
	ctx, span := s.tracer.Start(ctx, "notification.broadcast")
	defer span.End()

	result := &models.BroadcastResult{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
		Payload:   payload,
	}
	span.SetAttributes(attribute.String("broadcast.id", result.ID))

	res, err := s.broadcast(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "broadcast failed")
		s.metrics.IncBroadcast(metrics.BroadcastError)
		s.logger.ErrorContext(ctx, "broadcast failed",
			"request_id", requestcontext.RequestID(ctx),
			"broadcast_id", result.ID,
			"error", err,
		)
		return nil, err
	}
	s.metrics.IncBroadcast(metrics.BroadcastOK)
	span.SetAttributes(
		attribute.Int("broadcast.addressed", res.Addressed),
		attribute.Int("broadcast.delivered", res.Delivered),
		attribute.Int("broadcast.failed", res.Failed),
	)
	return res, nil
}

func (s *Service) broadcast(ctx context.Context, result *models.BroadcastResult) (*models.BroadcastResult, error) {
	snapshot, err := s.registry.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot registry: %w", ErrDispatch, err)
	}
	body, err := result.Payload.Encode()
	if err != nil {
		return nil, fmt.Errorf("%w: encode payload: %w", ErrDispatch, err)
	}

	result.Addressed = len(snapshot)
	result.Outcomes = make([]models.Outcome, len(snapshot))

	// Tasks report only panics; delivery errors live in the outcome slots and
	// never cancel siblings.
	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, sub := range snapshot {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: delivery to %s panicked: %v", ErrDispatch, sub.Endpoint, r)
				}
			}()
			result.Outcomes[i] = s.deliver(ctx, sub, body)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, o := range result.Outcomes {
		if o.Delivered() {
			result.Delivered++
		} else {
			result.Failed++
		}
	}
	if s.pruneGone {
		s.prune(ctx, result)
	}
	s.publish(ctx, result)

	s.logger.InfoContext(ctx, "broadcast completed",
		"request_id", requestcontext.RequestID(ctx),
		"broadcast_id", result.ID,
		"addressed", result.Addressed,
		"delivered", result.Delivered,
		"failed", result.Failed,
		"pruned", result.Pruned,
	)
	return result, nil
}

func (s *Service) deliver(ctx context.Context, sub submodels.Subscription, body []byte) models.Outcome {
	ctx, span := s.tracer.Start(ctx, "notification.deliver",
		trace.WithAttributes(attribute.String("push.endpoint", sub.Endpoint)))
	defer span.End()

	start := time.Now()
	status, err := s.transport.Send(ctx, sub, body)
	out := models.Outcome{
		Endpoint:   sub.Endpoint,
		StatusCode: status,
		Err:        err,
		Gone:       err != nil && transport.IsGone(err),
		Duration:   time.Since(start),
	}
	span.SetAttributes(attribute.Int("http.response.status_code", status))
	s.metrics.ObserveDelivery(out.Result(), out.Duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		s.logger.WarnContext(ctx, "push delivery failed",
			"request_id", requestcontext.RequestID(ctx),
			"endpoint", sub.Endpoint,
			"status", status,
			"gone", out.Gone,
			"error", err,
		)
	}
	return out
}

func (s *Service) prune(ctx context.Context, result *models.BroadcastResult) {
	for i := range result.Outcomes {
		o := &result.Outcomes[i]
		if !o.Gone {
			continue
		}
		err := s.registry.Remove(ctx, o.Endpoint)
		switch {
		case err == nil:
			o.Pruned = true
			result.Pruned++
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			// Removed concurrently.
		default:
			s.logger.WarnContext(ctx, "failed to prune subscription",
				"broadcast_id", result.ID,
				"endpoint", o.Endpoint,
				"error", err,
			)
		}
	}
	s.metrics.AddPruned(result.Pruned)
}

func (s *Service) publish(ctx context.Context, result *models.BroadcastResult) {
	if s.publisher == nil {
		return
	}
	// Outlives request cancellation; bounded by publishTimeout.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, outcomes.NewBroadcastRecord(result)); err != nil {
		s.logger.WarnContext(ctx, "failed to publish delivery outcomes",
			"broadcast_id", result.ID,
			"error", err,
		)
	}
}
