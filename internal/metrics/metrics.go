// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// Ingestion metrics
	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_ingest_runs_total",
			Help: "Ingestion runs by result code (ok or a run error code)",
		},
		[]string{"result"},
	)

	MessagesSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_messages_total",
			Help: "Candidate messages by outcome",
		},
		[]string{"outcome"}, // ingested, duplicate, not_complaint, no_attachment, error
	)

	ComplaintsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_complaints_resolved_total",
			Help: "Complaints transitioned to closed",
		},
	)

	QueuePublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_queue_publish_failures_total",
			Help: "Complaint events that could not be published",
		},
	)
)
