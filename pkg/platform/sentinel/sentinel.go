package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services decide how to surface them:
// - ErrNotFound: no subscription is stored under the endpoint
// - ErrUnavailable: the store has been closed or a backend is unreachable
// - ErrInvalidState: a component was used before it was configured
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
)
