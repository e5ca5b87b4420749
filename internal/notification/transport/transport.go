// Package transport adapts the Web Push protocol library to the dispatcher.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"pushcast/internal/subscription/models"
)

// Transport delivers one serialized payload to one subscription.
type Transport interface {
	Send(ctx context.Context, sub models.Subscription, payload []byte) (statusCode int, err error)
}

// DeliveryError carries the push service response for a failed delivery.
// StatusCode is 0 when the request never got a response.
type DeliveryError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("push delivery to %s failed: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("push delivery to %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// StatusCode extracts the push service status code from err, or 0.
func StatusCode(err error) int {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.StatusCode
	}
	return 0
}

// IsGone reports whether the push service declared the subscription permanently
// invalid (404 Not Found or 410 Gone). Such endpoints never recover.
func IsGone(err error) bool {
	switch StatusCode(err) {
	case http.StatusNotFound, http.StatusGone:
		return true
	default:
		return false
	}
}
