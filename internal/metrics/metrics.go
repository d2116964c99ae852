// Package metrics defines the prometheus collectors the server exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for Predictions.
const (
	OutcomeSuccess    = "success"
	OutcomeBadImage   = "bad_image"
	OutcomeFailure    = "failure"
	OutcomeMisaligned = "misaligned"
	OutcomeBadRequest = "bad_request"
)

type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Predictions     *prometheus.CounterVec
	Inference       prometheus.Histogram
	Classes         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			}, []string{"path", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"path"},
		),
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantdoc_predictions_total",
				Help: "Prediction requests by outcome",
			}, []string{"outcome"},
		),
		Inference: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plantdoc_inference_duration_seconds",
				Help:    "Classifier forward pass latency",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
		),
		Classes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plantdoc_predicted_class_total",
				Help: "Predicted class indices",
			}, []string{"class"},
		),
	}
	reg.MustRegister(m.Requests, m.RequestDuration, m.Predictions, m.Inference, m.Classes)
	return m
}
