package models

import (
	"net/url"
	"strings"

	dErrors "pushcast/pkg/domain-errors"
)

// Keys is the encryption material a browser hands out with its subscription.
// The registry never inspects it; only the delivery transport does.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is one registered push destination, in the shape produced by
// PushSubscription.toJSON() in the browser. Endpoint is the natural key.
type Subscription struct {
	Endpoint       string `json:"endpoint"`
	ExpirationTime *int64 `json:"expirationTime,omitempty"`
	Keys           Keys   `json:"keys"`
}

// SubscribeRequest is the HTTP request body for POST /api/subscribe.
type SubscribeRequest struct {
	Subscription
}

// Validate normalizes and checks the subscription.
func (r *SubscribeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Endpoint = strings.TrimSpace(r.Endpoint)
	if r.Endpoint == "" {
		return dErrors.New(dErrors.CodeValidation, "endpoint is required")
	}
	if len(r.Endpoint) > 2048 {
		return dErrors.New(dErrors.CodeValidation, "endpoint must be at most 2048 characters")
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return dErrors.New(dErrors.CodeValidation, "endpoint must be an absolute http(s) URL")
	}
	r.Keys.P256dh = strings.TrimSpace(r.Keys.P256dh)
	r.Keys.Auth = strings.TrimSpace(r.Keys.Auth)
	if r.Keys.P256dh == "" || r.Keys.Auth == "" {
		return dErrors.New(dErrors.CodeValidation, "keys.p256dh and keys.auth are required")
	}
	return nil
}

// MessageResponse is the generic {"message": ...} envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// CountResponse is returned by GET /api/subscriptions/count.
type CountResponse struct {
	Count int `json:"count"`
}
