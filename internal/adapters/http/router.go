// Package http exposes the callback ingress: delivery providers report
// opens, replies and failures here, and the handlers fold them back into the
// touch ledger and lead statuses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nearmiss1193-afk/outreach/internal/metrics"
)

func NewRouter(handler *Handler, registry *metrics.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(handler.loggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		registry.WritePrometheus(w)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/callbacks/{channel}", handler.deliveryCallback)
	})
	return r
}
