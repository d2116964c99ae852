// Package handlers exposes the prediction pipeline over HTTP.
package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the server mux. gatherer backs /metrics and may be nil.
func (h *Handler) Routes(corsOrigins []string, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/submit", h.Submit)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return Chain(
		h.logRequests,
		h.recoverPanics,
		enableCORS(corsOrigins),
	)(mux)
}
