package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(h.logger),
		Logging(h.logger),
		Metrics(),
	)

	// Schedules
	mux.Handle("GET /schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /schedules/{id}/update", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /schedules/{id}/delete", chain(http.HandlerFunc(h.DeleteSchedule)))

	// Service
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}
