package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/knsan189/imageLabeler/internal/middleware"
)

// NewRouter registers the ops endpoints on a new router wrapped in the
// request observation middleware.
func (h *Handlers) NewRouter(cfg middleware.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Observe(cfg))

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet).Name("health")
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("livez")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet).Name("readyz")
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Compression(middleware.DefaultCompressionConfig()))
	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet).Name("status")
	api.HandleFunc("/scan", h.TriggerScan).Methods(http.MethodPost).Name("scan")

	return r
}
