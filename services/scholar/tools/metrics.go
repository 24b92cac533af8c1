// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// toolExecutions counts tool dispatches by tool name and outcome.
	// Outcome "ok" covers successful retrievals including empty ones;
	// "domain_error" covers resolution misses and unknown tools;
	// "infra_error" covers backend failures surfaced as result text.
	toolExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholar_tool_executions_total",
			Help: "Total tool dispatches by tool name and outcome.",
		},
		[]string{"tool", "outcome"},
	)

	// toolDuration tracks tool execution latency per tool.
	toolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scholar_tool_duration_seconds",
			Help:    "Tool execution latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)
)

const (
	outcomeOK          = "ok"
	outcomeDomainError = "domain_error"
	outcomeInfraError  = "infra_error"
)
