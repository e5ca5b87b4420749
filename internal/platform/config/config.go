package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "pushcast/pkg/platform/strings"
)

const (
	defaultPort          = "5000"
	defaultVAPIDSubject  = "mailto:admin@example.com"
	defaultPushTTL       = 2419200 // four weeks, in seconds
	defaultPushTimeout   = 10 * time.Second
	defaultOutcomesTopic = "pushcast.delivery-outcomes"
	defaultPublishWait   = 2 * time.Second
	defaultShutdown      = 10 * time.Second
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
	VAPID           VAPID
	Push            Push
	Dispatch        Dispatch
	Outcomes        Outcomes
}

// VAPID identifies this application server to push services.
type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subject    string
}

// Configured reports whether both halves of the key pair are present.
func (v VAPID) Configured() bool {
	return v.PublicKey != "" && v.PrivateKey != ""
}

// Push tunes each delivery handed to the push service.
type Push struct {
	TTL     int
	Urgency string
	Timeout time.Duration
}

// Dispatch tunes broadcast fan-out.
type Dispatch struct {
	// MaxConcurrency bounds in-flight deliveries; 0 means one goroutine per subscription.
	MaxConcurrency int
	PruneGone      bool
}

// Outcomes configures the optional delivery outcome sink.
type Outcomes struct {
	KafkaBrokers []string
	KafkaTopic   string
	// PublishTimeout bounds how long a broadcast waits for the sink.
	PublishTimeout time.Duration
}

// Enabled reports whether outcomes are shipped to Kafka.
func (o Outcomes) Enabled() bool {
	return len(o.KafkaBrokers) > 0
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	addr := os.Getenv("PUSHCAST_ADDR")
	if addr == "" {
		addr = ":" + envOr("PORT", defaultPort)
	}

	ttl, err := envInt("PUSH_TTL", defaultPushTTL)
	if err != nil {
		return Server{}, err
	}
	timeout, err := envDuration("PUSH_TIMEOUT", defaultPushTimeout)
	if err != nil {
		return Server{}, err
	}
	shutdown, err := envDuration("SHUTDOWN_TIMEOUT", defaultShutdown)
	if err != nil {
		return Server{}, err
	}
	maxConcurrency, err := envInt("DISPATCH_MAX_CONCURRENCY", 0)
	if err != nil {
		return Server{}, err
	}
	publishTimeout, err := envDuration("OUTCOMES_PUBLISH_TIMEOUT", defaultPublishWait)
	if err != nil {
		return Server{}, err
	}
	prune, err := envBool("PRUNE_GONE_SUBSCRIPTIONS", true)
	if err != nil {
		return Server{}, err
	}

	cfg := Server{
		Addr:            addr,
		ShutdownTimeout: shutdown,
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		VAPID: VAPID{
			PublicKey:  strings.TrimSpace(os.Getenv("VAPID_PUBLIC_KEY")),
			PrivateKey: strings.TrimSpace(os.Getenv("VAPID_PRIVATE_KEY")),
			Subject:    envOr("VAPID_SUBJECT", defaultVAPIDSubject),
		},
		Push: Push{
			TTL:     ttl,
			Urgency: os.Getenv("PUSH_URGENCY"),
			Timeout: timeout,
		},
		Dispatch: Dispatch{
			MaxConcurrency: maxConcurrency,
			PruneGone:      prune,
		},
		Outcomes: Outcomes{
			KafkaBrokers:   pstrings.SplitList(os.Getenv("OUTCOMES_KAFKA_BROKERS")),
			KafkaTopic:     envOr("OUTCOMES_KAFKA_TOPIC", defaultOutcomesTopic),
			PublishTimeout: publishTimeout,
		},
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Server) Validate() error {
	if (c.VAPID.PublicKey == "") != (c.VAPID.PrivateKey == "") {
		return errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY must be set together")
	}
	if c.Push.TTL < 0 {
		return fmt.Errorf("PUSH_TTL must be >= 0, got %d", c.Push.TTL)
	}
	switch c.Push.Urgency {
	case "", "very-low", "low", "normal", "high":
	default:
		return fmt.Errorf("PUSH_URGENCY %q is not one of very-low, low, normal, high", c.Push.Urgency)
	}
	if c.Outcomes.PublishTimeout <= 0 {
		return fmt.Errorf("OUTCOMES_PUBLISH_TIMEOUT must be > 0, got %s", c.Outcomes.PublishTimeout)
	}
	if c.Dispatch.MaxConcurrency < 0 {
		return fmt.Errorf("DISPATCH_MAX_CONCURRENCY must be >= 0, got %d", c.Dispatch.MaxConcurrency)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
