package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pushcast/internal/notification/models"
	"pushcast/pkg/platform/httputil"
	"pushcast/pkg/requestcontext"
)

// Service defines the broadcast operation the HTTP layer needs.
type Service interface {
	Broadcast(ctx context.Context, payload models.Payload) (*models.BroadcastResult, error)
}

// Handler serves the VAPID public key and the broadcast trigger.
type Handler struct {
	service   Service
	publicKey string
	logger    *slog.Logger
}

// New constructs a notification handler. publicKey is the VAPID application
// server key browsers need to subscribe.
func New(service Service, publicKey string, logger *slog.Logger) *Handler {
	return &Handler{service: service, publicKey: publicKey, logger: logger}
}

// Register mounts the notification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/vapid-public-key", h.HandlePublicKey)
	r.Post("/api/send-notification", h.HandleSend)
}

// HandlePublicKey handles GET /api/vapid-public-key.
func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, models.PublicKeyResponse{PublicKey: h.publicKey})
}

// HandleSend handles POST /api/send-notification. Individual delivery failures
// still answer 200; only a failed broadcast answers 500.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.SendRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.service.Broadcast(ctx, req.Payload())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to send notifications",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to send notifications"})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, models.MessageResponse{
		Message: fmt.Sprintf("Notification sent to %d subscribers", res.Addressed),
	})
}
