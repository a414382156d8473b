/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, echoed in logs
  2. RequestLogger: One logrus line per request
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. otelhttp:      One server span per request
  5. CORS:          Cross-origin requests for the frontend
  6. RequireAuth:   Bearer JWT on everything under /api

ROUTE GROUPS:
  /healthz              Liveness (no auth)
  /api/calendar/*       Working-day calendar
  /api/shifts/*         Plan and exchange workflow
  /api/plans/*          Plan copy
  /api/attendance/*     Recorded work
  /api/summary/*        Monthly balances
  /api/reports/*        Yearly report
  /api/admin/*          Maintenance jobs

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RouterOptions configure NewRouter.
type RouterOptions struct {
	JWTSecret   []byte
	CORSOrigins []string
	Log         logrus.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&requestLogFormatter{log: log}))
	r.Use(middleware.Recoverer)
	r.Use(otelhttp.NewMiddleware("worktrack"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(opts.JWTSecret))

		r.Get("/calendar/{year}/{month}", h.GetCalendar)

		// Shift routes
		r.Route("/shifts", func(r chi.Router) {
			r.Get("/", h.ListShifts)
			r.Post("/", h.CreateShift)
			r.Put("/{id}", h.UpdateShift)
			r.Delete("/{id}", h.HideShift)
			r.Delete("/{id}/hard", h.DeleteShift)
			r.Get("/{id}/audit", h.ShiftAudit)
			r.Post("/{id}/exchange", h.RequestExchange)
			r.Post("/{id}/exchange/decision", h.DecideExchange)
		})

		r.Post("/plans/copy", h.CopyPlan)

		// Attendance routes
		r.Route("/attendance", func(r chi.Router) {
			r.Get("/", h.ListAttendance)
			r.Post("/", h.RecordAttendance)
			r.Delete("/{id}", h.DeleteAttendance)
		})

		// Summary routes
		r.Route("/summary/{employee}/{year}/{month}", func(r chi.Router) {
			r.Get("/", h.MonthlySummary)
			r.Get("/planned", h.PlannedSummary)
		})
		r.Get("/reports/yearly", h.YearlyReport)

		// Catalog routes
		r.Get("/employees", h.ListEmployees)
		r.Get("/shift-types", h.ListShiftTypes)
		r.Get("/change-reasons", h.ListChangeReasons)

		// Admin routes
		r.Post("/admin/missing-attendance", h.RunMissingAttendance)

		// Demo scenarios
		r.Get("/scenarios", h.ListScenarios)
		r.Post("/scenarios/load", h.LoadScenario)
	})

	return r
}

// =============================================================================
// REQUEST LOGGING
// =============================================================================

type requestLogFormatter struct {
	log logrus.FieldLogger
}

func (f *requestLogFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &requestLogEntry{log: f.log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       r.URL.Path,
		"remote":     r.RemoteAddr,
	})}
}

type requestLogEntry struct {
	log logrus.FieldLogger
}

func (e *requestLogEntry) Write(status, bytes int, _ http.Header, elapsed time.Duration, _ interface{}) {
	entry := e.log.WithFields(logrus.Fields{
		"status":     status,
		"bytes":      bytes,
		"elapsed_ms": float64(elapsed.Microseconds()) / 1000,
	})
	if status >= http.StatusInternalServerError {
		entry.Warn("Request completed")
		return
	}
	entry.Info("Request completed")
}

func (e *requestLogEntry) Panic(v interface{}, stack []byte) {
	e.log.WithFields(logrus.Fields{
		"panic": v,
		"stack": string(stack),
	}).Error("Request panicked")
}
