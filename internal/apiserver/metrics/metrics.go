/*
Copyright 2026 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// The file defines Prometheus metrics and provides functions for recording HTTP request,
// completion call and diagnosis response metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// labels definition
const (
	// result labels
	ResultSuccess = "success"
	ResultFailed  = "failed"

	// category label for successful completions
	CategoryNone = "none"

	// diagnosis response shapes
	ShapeError      = "error"      // completion failed, placeholder returned
	ShapeStructured = "structured" // both section markers found
	ShapeFallback   = "fallback"   // markers missing, whole text returned
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the api server",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds for the api server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed by the api server",
		},
	)

	completionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_requests_total",
			Help: "Total number of completion provider calls",
		},
		[]string{"result", "category"},
	)
	// Buckets: 0.25s .. ~128s, completions of a few hundred tokens usually land in 1-20s
	completionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "completion_request_duration_seconds",
			Help:    "Completion provider call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"result"},
	)
	diagnoseResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diagnose_responses_total",
			Help: "Total number of diagnosis responses by shape",
		},
		[]string{"shape"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(httpRequestsInFlight)
	prometheus.MustRegister(completionRequestsTotal)
	prometheus.MustRegister(completionRequestDuration)
	prometheus.MustRegister(diagnoseResponsesTotal)
}

func RecordRequestStart() {
	httpRequestsInFlight.Inc()
}

func RecordRequestFinish(method, path, status string, durationSeconds float64) {
	httpRequestsInFlight.Dec()
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
}

// RecordCompletion counts one completion call. category is CategoryNone on success.
func RecordCompletion(result, category string, duration time.Duration) {
	completionRequestsTotal.WithLabelValues(result, category).Inc()
	completionRequestDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordDiagnoseResponse counts one diagnosis response by shape.
func RecordDiagnoseResponse(shape string) {
	diagnoseResponsesTotal.WithLabelValues(shape).Inc()
}
