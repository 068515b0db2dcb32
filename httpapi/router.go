// Package httpapi exposes the appointment service over HTTP.
//
// All responses are JSON envelopes of the form {message, data}; errors carry
// only a message and take their status from the error, defaulting to 500.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// RouterDeps holds what NewRouter needs.
type RouterDeps struct {
	Service     AppointmentService
	Roster      RangeFetcher
	Logger      *slog.Logger
	RateLimiter *RateLimiter // nil disables rate limiting
	Metrics     *Metrics     // nil disables request metrics
	Gatherer    prometheus.Gatherer

	TracerProvider trace.TracerProvider // nil uses the global provider
}

// NewRouter builds the API router.
//
// Middleware order:
//
//	CORS → Tracing → Logging → Recovery → RateLimit (tenant routes only)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	h := NewHandler(deps.Service, deps.Roster, deps.Metrics, logger)

	r := chi.NewRouter()

	r.Use(NewCORSMiddleware())
	r.Use(NewTracingMiddleware(deps.TracerProvider))
	r.Use(NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(NewRecoveryMiddleware(logger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "Not found"})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "Method not allowed"})
	})

	r.Get("/healthz", h.Health)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", MetricsHandler(deps.Gatherer))
	}

	r.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.CreateAppointment)
			r.Put("/", h.UpdateAppointment)
			r.Delete("/", h.DeleteAppointment)
			r.Get("/{date}", h.GetAppointmentsByDate)
		})

		r.Get("/customers", h.ListCustomers)
	})

	return r
}
