// Package api assembles the HTTP surface from the per-domain handlers.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brightderm/booking-platform/internal/audit"
	"github.com/brightderm/booking-platform/internal/clinic"
	"github.com/brightderm/booking-platform/internal/confirmation"
	"github.com/brightderm/booking-platform/internal/messaging"
	"github.com/brightderm/booking-platform/internal/payments"
	"github.com/brightderm/booking-platform/internal/slots"
	"github.com/brightderm/booking-platform/internal/waitlist"
	"github.com/brightderm/booking-platform/pkg/logging"
)

// Dependencies are the handlers the router mounts.
type Dependencies struct {
	Slots         *slots.Handler
	Confirmations *confirmation.Handler
	Waitlist      *waitlist.Handler
	Payments      *payments.Handler
	Messages      *messaging.Handler
	Clinics       *clinic.Handler
	Audit         *audit.Handler
	Logger        *logging.Logger
}

// NewRouter builds the service router.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Mount("/appointments/slots", deps.Slots.Routes())
		r.Mount("/confirmations", deps.Confirmations.Routes())
		r.Mount("/waitlist", deps.Waitlist.Routes())
		r.Mount("/payments", deps.Payments.Routes())
		r.Mount("/messages", deps.Messages.Routes())
	})
	r.Mount("/admin/clinics", deps.Clinics.Routes())
	r.Mount("/admin/audit", deps.Audit.Routes())

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		return
	}
}

// requestLogger emits one structured line per request.
func requestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
