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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AleutianAI/Scholar/services/llm"
)

// Registry holds the tools offered to the model and dispatches calls
// by name.
//
// Description:
//
//	Registration order is preserved in Definitions so the model always
//	sees a stable tool list. Registering a tool whose name is already
//	taken replaces the previous registration.
//
// Thread Safety: Register is not safe to call concurrently with
// dispatch; register everything during startup, then treat the registry
// as read-only.
type Registry struct {
	byName map[string]Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger selects
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]Tool),
		logger: logger,
	}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = t
	r.logger.Debug("Tool registered", "tool", name)
}

// Definitions returns every tool definition in registration order.
func (r *Registry) Definitions() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.byName[name].Definition())
	}
	return defs
}

// Execute dispatches one tool call and returns its result text.
//
// Description:
//
//	An unknown tool name produces "Tool '<name>' not found" as result
//	text — the model asked for it, so the model gets to read the
//	refusal. Panics inside a tool are not recovered; a panicking tool
//	is a bug, not a model-recoverable condition.
func (r *Registry) Execute(ctx context.Context, dc *DispatchContext, name string, args map[string]any) string {
	tool, ok := r.byName[name]
	if !ok {
		r.logger.Warn("Unknown tool requested", "tool", name)
		toolExecutions.WithLabelValues(name, outcomeDomainError).Inc()
		return fmt.Sprintf("Tool '%s' not found", name)
	}

	start := time.Now()
	result := tool.Execute(ctx, dc, args)
	elapsed := time.Since(start)

	toolDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	toolExecutions.WithLabelValues(name, outcomeForResult(result)).Inc()

	r.logger.Debug("Tool executed",
		"tool", name,
		"duration_ms", elapsed.Milliseconds(),
		"result_length", len(result),
	)
	return result
}

// outcomeForResult classifies result text for the execution counter.
// Tools encode failures as text, so the text is the only signal.
func outcomeForResult(result string) string {
	switch {
	case strings.HasPrefix(result, "Search error:"):
		return outcomeInfraError
	case strings.HasPrefix(result, "No course found matching"),
		strings.HasPrefix(result, "No outline data found"):
		return outcomeDomainError
	default:
		return outcomeOK
	}
}
