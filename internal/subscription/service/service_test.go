package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"pushcast/internal/subscription/metrics"
	"pushcast/internal/subscription/models"
	"pushcast/internal/subscription/store"
	dErrors "pushcast/pkg/domain-errors"
	"pushcast/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *store.InMemoryStore
	metrics *metrics.Metrics
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.store, logger, WithMetrics(s.metrics))
}

func subscription(endpoint string) models.Subscription {
	return models.Subscription{Endpoint: endpoint, Keys: models.Keys{P256dh: "p", Auth: "a"}}
}

func (s *ServiceSuite) TestRegisterIsIdempotent() {
	added, err := s.service.Register(s.ctx, subscription("https://push.example/A"))
	s.Require().NoError(err)
	s.True(added)

	added, err = s.service.Register(s.ctx, subscription("https://push.example/A"))
	s.Require().NoError(err)
	s.False(added)

	count, err := s.service.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Duplicates))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Subscriptions))
}

func (s *ServiceSuite) TestRegisterLabelsBrowser() {
	ctx := requestcontext.WithBrowser(s.ctx, "Chrome")
	_, err := s.service.Register(ctx, subscription("https://push.example/chrome"))
	s.Require().NoError(err)
	_, err = s.service.Register(s.ctx, subscription("https://push.example/anon"))
	s.Require().NoError(err)

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Registered.WithLabelValues("Chrome")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Registered.WithLabelValues("unknown")))
}

func (s *ServiceSuite) TestCountDistinctConcurrent() {
	const n = 100
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			_, err := s.service.Register(s.ctx, subscription(fmt.Sprintf("https://push.example/%d", i)))
			s.NoError(err)
		})
	}
	wg.Wait()

	count, err := s.service.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(n, count)
}

func (s *ServiceSuite) TestRemove() {
	_, err := s.service.Register(s.ctx, subscription("https://push.example/A"))
	s.Require().NoError(err)

	s.Require().NoError(s.service.Remove(s.ctx, "https://push.example/A"))
	s.Equal(float64(0), testutil.ToFloat64(s.metrics.Subscriptions))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Removed))

	err = s.service.Remove(s.ctx, "https://push.example/A")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestClosedStoreIsUnavailable() {
	s.Require().NoError(s.store.Close())

	_, err := s.service.Register(s.ctx, subscription("https://push.example/A"))
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = s.service.Count(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = s.service.List(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestNilMetricsIsSafe() {
	svc := New(store.NewInMemoryStore(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := svc.Register(s.ctx, subscription("https://push.example/A"))
	s.Require().NoError(err)
	s.Require().NoError(svc.Remove(s.ctx, "https://push.example/A"))
}
