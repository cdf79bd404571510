package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type EventRouterConfig struct {
	Service EventService
	Health  *HealthHandler
	Logger  logrus.FieldLogger
}

func NewEventRouter(cfg EventRouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware("event-service"))
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)

	h := NewEventHandler(cfg.Service, cfg.Logger)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListOpen)
		r.Get("/can-view", h.CanView)
		r.Get("/{id}", h.Get)

		// service to service transitions
		r.Put("/{id}/lock", h.Lock)
		r.Put("/{id}/book", h.Book)
		r.Put("/{id}/unlock", h.Unlock)
		r.Put("/{id}/unbook", h.Unbook)

		r.Group(func(r chi.Router) {
			r.Use(CallerIDMiddleware)
			r.Post("/", h.Create)
			r.Get("/user/{userId}", h.ListByOwner)
		})
	})

	return r
}

type AppointmentRouterConfig struct {
	Service AppointmentService
	Health  *HealthHandler
	Logger  logrus.FieldLogger
}

func NewAppointmentRouter(cfg AppointmentRouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware("appointment-service"))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health/live", cfg.Health.Liveness)
	r.Get("/health/ready", cfg.Health.Readiness)

	h := NewAppointmentHandler(cfg.Service, cfg.Logger)

	r.Route("/appointments", func(r chi.Router) {
		r.Use(CallerIDMiddleware)

		r.Post("/", h.Create)
		r.Get("/my", h.ListMine)
		r.Get("/requests", h.ListRequests)
		r.Get("/{id}", h.Get)
		r.Put("/{id}/approve", h.Approve)
		r.Put("/{id}/reject", h.Reject)
		r.Delete("/{id}", h.Cancel)
	})

	return r
}
