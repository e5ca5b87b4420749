package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pushcast/internal/subscription/models"
	"pushcast/pkg/platform/httputil"
	"pushcast/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, sub models.Subscription) (bool, error)
	Count(ctx context.Context) (int, error)
}

// Handler serves subscription registration and the registry count.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a subscription handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the subscription endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/subscribe", h.HandleSubscribe)
	r.Get("/api/subscriptions/count", h.HandleCount)
}

// HandleSubscribe handles POST /api/subscribe. Re-subscribing a known endpoint
// answers 201 as well.
func (h *Handler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SubscribeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if _, err := h.service.Register(ctx, req.Subscription); err != nil {
		h.logger.ErrorContext(ctx, "failed to register subscription",
			"request_id", requestID,
			"endpoint", req.Endpoint,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, models.MessageResponse{Message: "Subscription added successfully"})
}

// HandleCount handles GET /api/subscriptions/count.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	count, err := h.service.Count(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to count subscriptions",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.CountResponse{Count: count})
}
