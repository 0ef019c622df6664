// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts calls to the attendance API by endpoint and outcome.
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_api_requests_total",
		Help: "Attendance API calls issued by the console.",
	}, []string{"endpoint", "outcome"})

	// APILatency tracks attendance API round trips.
	APILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_api_request_seconds",
		Help:    "Attendance API request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// WorkflowOutcomes counts finished submissions by flow and message level.
	WorkflowOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_workflow_outcomes_total",
		Help: "Capture workflow submissions by flow and message level.",
	}, []string{"flow", "level"})

	// FramesReceived counts camera frames pushed by operator browsers.
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "console_camera_frames_total",
		Help: "Camera frames received over the camera socket.",
	})

	// ActiveSessions is the number of live operator sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "console_sessions_active",
		Help: "Operator sessions currently held in memory.",
	})

	// EventsPublished counts attendance events handed to the bus.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "console_events_published_total",
		Help: "Events published on the console event bus.",
	}, []string{"type", "outcome"})
)
