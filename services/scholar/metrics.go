// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scholar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// queriesTotal counts answered queries by outcome ("ok" / "error").
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholar_queries_total",
			Help: "Total queries processed, by outcome.",
		},
		[]string{"outcome"},
	)

	// queryDuration tracks end-to-end query latency, including model
	// calls and tool dispatch.
	queryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "scholar_query_duration_seconds",
			Help: "End-to-end query latency in seconds.",
			// Model round-trips dominate; buckets reach a minute.
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)

	// coursesIndexed reports the current catalog size.
	coursesIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scholar_courses_indexed",
			Help: "Number of courses currently in the catalog.",
		},
	)
)
