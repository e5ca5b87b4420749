package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Fallbacks applied when a broadcast request omits a field.
const (
	DefaultTitle = "Test Notification"
	DefaultBody  = "This is a test notification"
	DefaultIcon  = "/logo192.png"
)

// Payload is the notification shown by the browser. Field order is the wire order.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

// NewPayload builds a payload, substituting fallbacks for empty fields.
func NewPayload(title, body, icon string) Payload {
	return Payload{
		Title: orDefault(title, DefaultTitle),
		Body:  orDefault(body, DefaultBody),
		Icon:  orDefault(icon, DefaultIcon),
	}
}

// Encode serializes the payload exactly as it is handed to the push service.
// HTML characters are left unescaped so titles reach the browser verbatim.
func (p Payload) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// SendRequest is the HTTP request body for POST /api/send-notification.
// Every field is optional.
type SendRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
}

// Validate implements httputil.Validatable. Nothing is required.
func (r *SendRequest) Validate() error {
	return nil
}

// Payload converts the request into a payload with fallbacks applied.
func (r *SendRequest) Payload() Payload {
	return NewPayload(r.Title, r.Body, r.Icon)
}

// Outcome is the settled result of one delivery attempt.
type Outcome struct {
	Endpoint   string
	StatusCode int
	Err        error
	// Gone marks endpoints the push service reported as permanently invalid.
	Gone     bool
	Pruned   bool
	Duration time.Duration
}

// Delivered reports whether the push service accepted the message.
func (o Outcome) Delivered() bool {
	return o.Err == nil
}

// Outcome results.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultGone      = "gone"
)

// Result classifies the outcome as delivered, gone or failed.
func (o Outcome) Result() string {
	switch {
	case o.Delivered():
		return ResultDelivered
	case o.Gone:
		return ResultGone
	default:
		return ResultFailed
	}
}

// BroadcastResult aggregates a broadcast. Only Addressed is part of the HTTP
// contract; the rest feeds logs, metrics and the outcome sink.
type BroadcastResult struct {
	ID        string
	StartedAt time.Time
	Payload   Payload
	Addressed int
	Delivered int
	Failed    int
	Pruned    int
	Outcomes  []Outcome
}

// MessageResponse is the {"message": ...} envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// PublicKeyResponse is returned by GET /api/vapid-public-key.
type PublicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// ErrorResponse is the opaque failure envelope of POST /api/send-notification.
type ErrorResponse struct {
	Error string `json:"error"`
}
