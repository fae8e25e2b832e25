// Package bridgeapi implements the AI bridge's HTTP surface: the
// video-uploaded webhook, indexing status, admin reindex operations,
// the per-modality search endpoints, thumbnail serving, and the
// websocket notification upgrade (spec.md §4.3, §4.6, §6).
package bridgeapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/opentestimony/internal/auth"
	"github.com/tomtom215/opentestimony/internal/config"
	"github.com/tomtom215/opentestimony/internal/middleware"
	"github.com/tomtom215/opentestimony/internal/queue"
	"github.com/tomtom215/opentestimony/internal/search"
	"github.com/tomtom215/opentestimony/internal/wsnotify"
)

// Handler holds every collaborator the bridge's handlers need.
type Handler struct {
	Queue            *queue.Store
	Search           *search.Dispatcher
	Hub              *wsnotify.Hub
	ThumbnailDir     string
	FaceThumbnailDir string
	CORSOrigins      []string
}

// chiMiddleware adapts the legacy func(http.HandlerFunc) http.HandlerFunc
// middleware shape onto chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the chi router for the bridge. The webhook is
// unauthenticated (an internal call from the Ingest API); reindex
// operations require the staff/admin session cookie the Ingest API
// issued, validated statelessly (the bridge keeps no revocation store,
// since its own session never needs instance-local logout).
func NewRouter(h *Handler, authenticator *auth.SessionAuthenticator, cfg *config.SecurityConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", h.WebSocket)

	reqs := cfg.RateLimitReqs
	if reqs <= 0 {
		reqs = 120
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(reqs, window))

		r.Post("/hooks/video-uploaded", h.VideoUploadedHook)

		r.Get("/indexing/status", h.IndexingStatusSummary)
		r.Get("/indexing/status/{id}", h.IndexingStatus)

		r.Get("/search/visual", h.SearchVisualText)
		r.Post("/search/visual", h.SearchVisualImage)
		r.Get("/search/transcript", h.SearchTranscriptSemantic)
		r.Get("/search/transcript/exact", h.SearchTranscriptExact)
		r.Get("/search/captions", h.SearchCaptions)
		r.Get("/search/clip", h.SearchClip)
		r.Get("/search/action", h.SearchAction)
		r.Get("/search/combined", h.SearchCombined)

		r.Get("/thumbnails/{video_id}/{ts_ms}.jpg", h.Thumbnail)

		r.Group(func(r chi.Router) {
			r.Use(authenticator.Middleware)

			r.Post("/admin/reindex/{id}/pending", auth.RequireAdmin(h.ReindexPending))
			r.Post("/admin/reindex/{id}/pending-visual", auth.RequireAdmin(h.ReindexPendingVisual))
			r.Post("/admin/reindex/{id}/pending-fix", auth.RequireAdmin(h.ReindexPendingFix))
			r.Get("/admin/search-analytics", auth.RequireAdmin(h.SearchAnalytics))
		})
	})

	return r
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
}

// Health reports liveness for container orchestration probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// WebSocket upgrades the connection and registers it with the hub for
// review-queue and indexing-progress push notifications (spec.md §6),
// grounded on the teacher's internal/api WebSocket handler.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := wsUpgrader
	upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return false
		}
		for _, allowed := range h.CORSOrigins {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := wsnotify.NewClient(h.Hub, conn)
	h.Hub.Register <- client
	client.Start()
}
