package service

import (
	"context"
	"errors"
	"log/slog"

	"pushcast/internal/subscription/metrics"
	"pushcast/internal/subscription/models"
	dErrors "pushcast/pkg/domain-errors"
	"pushcast/pkg/platform/sentinel"
	"pushcast/pkg/requestcontext"
)

// Store is the registry persistence contract.
type Store interface {
	Add(ctx context.Context, sub models.Subscription) (bool, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context) ([]models.Subscription, error)
	Remove(ctx context.Context, endpoint string) error
}

// Service exposes the registry operations: register, count, list and the
// internal removal used to prune endpoints the push service reports as gone.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates the registry service.
func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds sub to the registry. Registering an endpoint that is already
// known is a successful no-op; added reports whether the registry changed.
func (s *Service) Register(ctx context.Context, sub models.Subscription) (bool, error) {
	added, err := s.store.Add(ctx, sub)
	if err != nil {
		return false, translate(err, "failed to register subscription")
	}

	requestID := requestcontext.RequestID(ctx)
	if !added {
		s.metrics.IncDuplicate()
		s.logger.DebugContext(ctx, "subscription already registered",
			"request_id", requestID,
			"endpoint", sub.Endpoint,
		)
		return false, nil
	}

	browser := requestcontext.Browser(ctx)
	if browser == "" {
		browser = "unknown"
	}
	s.metrics.IncRegistered(browser)
	s.refreshSize(ctx)
	s.logger.InfoContext(ctx, "subscription registered",
		"request_id", requestID,
		"endpoint", sub.Endpoint,
		"browser", browser,
	)
	return true, nil
}

// Count returns the number of registered subscriptions.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, translate(err, "failed to count subscriptions")
	}
	return n, nil
}

// List returns a snapshot of the registry for broadcasting.
func (s *Service) List(ctx context.Context) ([]models.Subscription, error) {
	subs, err := s.store.List(ctx)
	if err != nil {
		return nil, translate(err, "failed to list subscriptions")
	}
	return subs, nil
}

// Remove drops the subscription for endpoint. Removing an unknown endpoint
// returns a not_found domain error.
func (s *Service) Remove(ctx context.Context, endpoint string) error {
	if err := s.store.Remove(ctx, endpoint); err != nil {
		return translate(err, "failed to remove subscription")
	}
	s.metrics.IncRemoved()
	s.refreshSize(ctx)
	s.logger.InfoContext(ctx, "subscription removed",
		"request_id", requestcontext.RequestID(ctx),
		"endpoint", endpoint,
	)
	return nil
}

func (s *Service) refreshSize(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.store.Count(ctx); err == nil {
		s.metrics.SetSize(n)
	}
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "subscription not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "subscription registry unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
