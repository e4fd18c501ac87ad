// Package web exposes the report API over HTTP.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/web/handlers"
)

// Deps are the services behind the routes.
type Deps struct {
	// Ctx bounds background runs started over HTTP; it should live as long as the process.
	Ctx      context.Context
	Reports  handlers.ReportAPI
	Analyzer handlers.AnalyzeStarter
	DB       handlers.Pinger
	Logger   logrus.FieldLogger
}

// SetupRouter builds the chi router.
func SetupRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	if d.Ctx == nil {
		d.Ctx = context.Background()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Method(http.MethodGet, "/healthz", handlers.NewHealthHandler(d.DB, d.Logger))

	reports := handlers.NewReportHandler(d.Reports, d.Logger)
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodPost, "/process", handlers.NewTriggerAnalysisHandler(d.Ctx, d.Analyzer, d.Logger))
		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reports.Create)
			r.Get("/", reports.List)
			r.Method(http.MethodGet, "/export", handlers.NewExportHandler(d.Reports, d.Logger))
			r.Get("/{id}", reports.Get)
			r.Get("/{id}/raw", reports.Raw)
			r.Post("/{id}/retry", reports.Retry)
		})
	})

	d.Logger.Info("[Web] routes registered")
	return r
}

// requestLogger logs one line per request with its status and latency.
func requestLogger(logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			entry := logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			})
			if ww.Status() >= http.StatusInternalServerError {
				entry.Warn("[Web] request failed")
				return
			}
			entry.Debug("[Web] request served")
		})
	}
}
