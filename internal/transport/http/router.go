package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pushcast/internal/platform/metrics"
	"pushcast/internal/platform/middleware"
	"pushcast/pkg/platform/httputil"
	"pushcast/pkg/platform/middleware/metadata"
)

// requestTimeout bounds every request, broadcasts included.
const requestTimeout = 30 * time.Second

// Registrar is implemented by domain handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the shared dependencies of the router.
type RouterConfig struct {
	Logger *slog.Logger
	// Metrics records request latency; nil disables it.
	Metrics *metrics.Metrics
	// Gatherer backs GET /metrics; nil leaves the route unmounted.
	Gatherer prometheus.Gatherer
}

// NewRouter wires the middleware chain, the liveness route, /metrics and every
// domain handler. Handlers stay thin and delegate to their services.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/", handleRoot)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

// RootResponse is the liveness body of GET /.
type RootResponse struct {
	Message string `json:"message"`
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, RootResponse{Message: "Push Notification Server Running"})
}
