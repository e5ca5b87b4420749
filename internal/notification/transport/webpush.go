package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"pushcast/internal/subscription/models"
)

// maxErrorBody bounds how much of a failed response body is kept for logs.
const maxErrorBody = 4 << 10

// WebPushConfig configures VAPID signing and per-message options.
type WebPushConfig struct {
	PublicKey  string
	PrivateKey string
	Subject    string
	TTL        int
	Urgency    string
	Timeout    time.Duration
}

// WebPush sends encrypted, VAPID-signed messages through webpush-go.
type WebPush struct {
	cfg    WebPushConfig
	client webpush.HTTPClient
}

// WebPushOption configures a WebPush transport.
type WebPushOption func(*WebPush)

// WithHTTPClient overrides the HTTP client used to reach push services.
func WithHTTPClient(client webpush.HTTPClient) WebPushOption {
	return func(w *WebPush) {
		w.client = client
	}
}

// NewWebPush constructs the transport. The default client times out after
// cfg.Timeout; individual delivery timeouts are owned here, not by the dispatcher.
func NewWebPush(cfg WebPushConfig, opts ...WebPushOption) *WebPush {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &WebPush{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Send encrypts payload for sub and posts it to the subscription endpoint.
// Any non-2xx answer is returned as a *DeliveryError. The library adds the
// mailto: scheme to e-mail subjects itself.
func (w *WebPush) Send(ctx context.Context, sub models.Subscription, payload []byte) (int, error) {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, target, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      strings.TrimPrefix(w.cfg.Subject, "mailto:"),
		TTL:             w.cfg.TTL,
		Urgency:         webpush.Urgency(w.cfg.Urgency),
		VAPIDPublicKey:  w.cfg.PublicKey,
		VAPIDPrivateKey: w.cfg.PrivateKey,
	})
	if err != nil {
		return 0, &DeliveryError{Endpoint: sub.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &DeliveryError{
			Endpoint:   sub.Endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// GenerateVAPIDKeys creates a fresh VAPID key pair, base64url encoded.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("generate vapid keys: %w", err)
	}
	return publicKey, privateKey, nil
}
