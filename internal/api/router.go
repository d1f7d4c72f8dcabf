// internal/api/router.go
package api

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// requestLogger is middleware.Logger writing through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("http request",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func baseRouter(apiHandler *APIHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(apiHandler.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", apiHandler.HandleHealth)
	r.Handle("/metrics", apiHandler.Metrics.Handler())
	return r
}

// SetupDataRouter serves sensor bridges.
func SetupDataRouter(apiHandler *APIHandler) *chi.Mux {
	r := baseRouter(apiHandler)
	r.Post("/data", apiHandler.HandleDataIngest)
	return r
}

// SetupUIRouter serves the dashboard: JSON API, live stream and static files.
func SetupUIRouter(apiHandler *APIHandler) *chi.Mux {
	r := baseRouter(apiHandler)

	r.Get("/", apiHandler.ServeWebUI)
	r.Get("/ws", apiHandler.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/apiary", apiHandler.HandleApiary)
		r.Get("/alerts", apiHandler.HandleAlerts)
		r.Get("/thresholds", apiHandler.HandleThresholds)

		r.Get("/selection", apiHandler.HandleGetSelection)
		r.Delete("/selection", apiHandler.HandleClearSelection)

		r.Route("/beehives/{id}", func(r chi.Router) {
			r.Get("/", apiHandler.HandleBeehive)
			r.Get("/evaluation", apiHandler.HandleEvaluation)
			r.Get("/history", apiHandler.HandleHistory)
			r.Post("/select", apiHandler.HandleSelect)
			r.Post("/alerts/{alertID}/resolve", apiHandler.HandleResolveAlert)
		})
	})

	// Serve static files (CSS, JS)
	if apiHandler.WebDir != "" {
		staticPath := filepath.Join(apiHandler.WebDir, "static")
		fs := http.FileServer(http.Dir(staticPath))
		r.Handle("/static/*", http.StripPrefix("/static/", fs))
	}

	return r
}
