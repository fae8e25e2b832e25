// Package ingestapi implements the Ingest API's HTTP surface: device
// registration, upload (single and bulk), video listing/filtering,
// annotations, the staff review queue, presigned playback, tag
// management, the integrity report export, user-account management, and
// the access-log view (spec.md §4.1, §6).
package ingestapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/opentestimony/internal/audit"
	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/authz"
	"github.com/tomtom215/opentestimony/internal/bridgehook"
	"github.com/tomtom215/opentestimony/internal/bulkimport"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/devices"
	"github.com/tomtom215/opentestimony/internal/media"
	"github.com/tomtom215/opentestimony/internal/middleware"
	"github.com/tomtom215/opentestimony/internal/objectstore"
)

// Handler holds every collaborator the ingest API's handlers need. It
// carries no per-request state, matching the teacher's
// handler-struct-holds-dependencies pattern (internal/api/handlers.go).
type Handler struct {
	Devices     *devices.Store
	Media       *media.Store
	Ledger      *audit.Ledger
	Objects     *objectstore.Store
	Bulk        *bulkimport.Processor
	Hook        *bridgehook.Notifier
	Users       *auth.UserStore
	Sessions    *auth.SessionIssuer
	Enforcer    *authz.Enforcer
	SpoolThresh int64
}

// NewRouter builds the chi router for the ingest API, grouping routes
// by auth requirement the same way the teacher's chi_router.go does:
// public routes first, then an authenticated device group, then a
// staff/admin web group.
func NewRouter(h *Handler, authenticator *auth.SessionAuthenticator, cfg *config.SecurityConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	rateLimit := httprateLimiter(cfg)

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit)

		// Device-facing endpoints: checked inside the handler itself,
		// not by a session cookie — a capture device has no web session
		// (spec.md §4.1 steps 1-2). Upload matches device id + key;
		// the annotation update matches the owning device id only.
		r.Post("/devices/register", h.RegisterDevice)
		r.Post("/upload", h.Upload)
		r.Put("/videos/{id}/annotations", h.UpdateAnnotationsDevice)

		r.Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Get("/videos", h.ListVideos)
		r.Get("/videos/{id}", h.GetVideo)
		r.Get("/videos/{id}/playback-url", h.PlaybackURL)
		r.Get("/tags", h.ListTags)

		// Staff/admin web console endpoints.
		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Put("/videos/{id}/annotations/web", auth.RequireStaff(h.UpdateAnnotationsWeb))
			r.Get("/queue", auth.RequireStaff(h.ReviewQueue))
			r.Put("/videos/{id}/review", auth.RequireStaff(h.SetReviewStatus))
			r.Post("/tags", auth.RequireStaff(h.AddTag))

			r.Post("/bulk-upload", h.Enforcer.Require("bulk_import", "create", h.BulkUpload))
			r.Delete("/tags", h.Enforcer.Require("tags", "delete", h.DeleteTag))
			r.Delete("/videos/{id}", auth.RequireAdmin(h.SoftDeleteVideo))
			r.Get("/integrity-report", h.Enforcer.Require("integrity_report", "read", h.IntegrityReport))

			r.Post("/users", h.Enforcer.Require("users", "create", h.CreateUser))
			r.Put("/users/{id}/active", h.Enforcer.Require("users", "update", h.SetUserActive))
			r.Put("/users/{id}/password", h.Enforcer.Require("users", "update", h.ResetUserPassword))
			r.Get("/access-log", h.Enforcer.Require("access_log", "read", h.AccessLog))
		})
	})

	return r
}

// chiMiddleware adapts the package's legacy func(http.HandlerFunc)
// http.HandlerFunc middleware shape onto chi's func(http.Handler)
// http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}
}

func httprateLimiter(cfg *config.SecurityConfig) func(http.Handler) http.Handler {
	reqs := cfg.RateLimitReqs
	if reqs <= 0 {
		reqs = 120
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(reqs, window)
}

// Health reports liveness for container orchestration probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
