package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/alfagnish/preview-server/internal/config"
	"github.com/alfagnish/preview-server/internal/handlers"
	mw "github.com/alfagnish/preview-server/internal/middleware"
	"github.com/alfagnish/preview-server/internal/preview"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// New creates a fully-configured chi router with the preview and system
// routes, middleware, and handlers wired together.
func New(cfg *config.Config, v *preview.Validator) (http.Handler, error) {
	if cfg.PreviewRoute == "" || cfg.PreviewRoute == "/" {
		return nil, fmt.Errorf("preview route %q must not be the site root", cfg.PreviewRoute)
	}

	r := chi.NewRouter()

	// ── Middleware ───────────────────────────────────────────
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Range", "If-Modified-Since", mw.HeaderRequestID},
		ExposedHeaders: []string{"Content-Length", "Content-Range", mw.HeaderRequestID},
		MaxAge:         cfg.MaxAgeSeconds,
	}))
	r.Use(mw.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// ── Handlers ────────────────────────────────────────────
	systemH := handlers.NewSystemHandler(v)
	previewH := handlers.NewPreviewHandler(v)

	// ── Route groups ────────────────────────────────────────
	r.Route("/api/system", systemH.Routes)
	r.Route(cfg.PreviewRoute, previewH.Routes)

	return r, nil
}

// requestLogger is a simple middleware that logs each HTTP request with
// method, path, status code, duration, and request ID. The query string is
// left out so untrusted file parameters never reach the log verbatim.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.Printf("%s %s %d %s id=%s",
			r.Method,
			r.URL.Path,
			status,
			time.Since(start).Round(time.Millisecond),
			mw.RequestIDFromContext(r.Context()),
		)
	})
}
