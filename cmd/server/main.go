package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pushcast/internal/notification/dispatcher"
	notificationhandler "pushcast/internal/notification/handler"
	notificationmetrics "pushcast/internal/notification/metrics"
	"pushcast/internal/notification/outcomes"
	"pushcast/internal/notification/transport"
	"pushcast/internal/platform/config"
	"pushcast/internal/platform/httpserver"
	"pushcast/internal/platform/logger"
	"pushcast/internal/platform/metrics"
	subhandler "pushcast/internal/subscription/handler"
	submetrics "pushcast/internal/subscription/metrics"
	subservice "pushcast/internal/subscription/service"
	"pushcast/internal/subscription/store"
	httptransport "pushcast/internal/transport/http"
)

const topicSetupTimeout = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	vapid, err := resolveVAPID(cfg.VAPID, log)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	subscriptions := store.NewInMemoryStore()
	registry := subservice.New(subscriptions, log, subservice.WithMetrics(submetrics.New(reg)))

	publisher, err := newPublisher(cfg.Outcomes, reg, log)
	if err != nil {
		return err
	}

	pusher := transport.NewWebPush(transport.WebPushConfig{
		PublicKey:  vapid.PublicKey,
		PrivateKey: vapid.PrivateKey,
		Subject:    vapid.Subject,
		TTL:        cfg.Push.TTL,
		Urgency:    cfg.Push.Urgency,
		Timeout:    cfg.Push.Timeout,
	})
	broadcaster := dispatcher.New(registry, pusher, log,
		dispatcher.WithMetrics(notificationmetrics.New(reg)),
		dispatcher.WithPublisher(publisher),
		dispatcher.WithMaxConcurrency(cfg.Dispatch.MaxConcurrency),
		dispatcher.WithPruning(cfg.Dispatch.PruneGone),
		dispatcher.WithPublishTimeout(cfg.Outcomes.PublishTimeout),
	)

	router := httptransport.NewRouter(
		httptransport.RouterConfig{Logger: log, Metrics: metrics.New(reg), Gatherer: reg},
		subhandler.New(registry, log),
		notificationhandler.New(broadcaster, vapid.PublicKey, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting pushcast", "addr", cfg.Addr, "outcomes_kafka", cfg.Outcomes.Enabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if err := publisher.Close(); err != nil {
		log.Warn("failed to close outcome publisher", "error", err)
	}
	if err := subscriptions.Close(); err != nil {
		log.Warn("failed to close subscription store", "error", err)
	}
	return nil
}

// resolveVAPID returns the configured key pair, or an ephemeral one when none
// is configured. Ephemeral keys invalidate every subscription on restart.
func resolveVAPID(v config.VAPID, log *slog.Logger) (config.VAPID, error) {
	if v.Configured() {
		return v, nil
	}
	pub, priv, err := transport.GenerateVAPIDKeys()
	if err != nil {
		return v, err
	}
	log.Warn("VAPID keys not configured; generated an ephemeral pair",
		"public_key", pub,
	)
	v.PublicKey, v.PrivateKey = pub, priv
	return v, nil
}

func newPublisher(cfg config.Outcomes, reg prometheus.Registerer, log *slog.Logger) (outcomes.Publisher, error) {
	if !cfg.Enabled() {
		return outcomes.NopPublisher{}, nil
	}
	p, err := outcomes.NewKafkaPublisher(
		outcomes.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic},
		log,
		outcomes.WithMetrics(outcomes.NewMetrics(reg)),
	)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), topicSetupTimeout)
	defer cancel()
	if err := p.EnsureTopic(ctx, 1, 1); err != nil {
		// The broker may forbid topic creation; producing still works if the topic exists.
		log.Warn("could not ensure outcome topic", "topic", p.Topic(), "error", err)
	}
	return p, nil
}
