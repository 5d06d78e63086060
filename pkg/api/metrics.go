// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

// Registered on the default registry; exposed when the process serves
// the prometheus handler from pkg/telemetry.
var (
	chatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budul_chat_requests_total",
		Help: "Synchronous chat requests by outcome",
	}, []string{"outcome"})

	chatLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "budul_chat_request_seconds",
		Help:    "Latency of successful synchronous chat requests",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	streamEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budul_stream_events_total",
		Help: "Decoded stream events by type",
	}, []string{"type"})

	healthChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "budul_health_checks_total",
		Help: "Health checks by outcome",
	}, []string{"outcome"})
)
