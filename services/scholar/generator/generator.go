// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package generator runs the two-phase tool-calling protocol that turns
// a user query into an answer.
//
// Phase one offers the model the registered tools. If the model
// requests calls, every call is dispatched and the results are fed back
// in a second model call that offers no tools, which structurally caps
// the protocol at one tool round.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/Scholar/services/llm"
	"github.com/AleutianAI/Scholar/services/scholar/tools"
)

var tracer = otel.Tracer("scholar/generator")

// Generation is pinned for deterministic, short educational answers.
const (
	generationTemperature float32 = 0
	generationMaxTokens           = 800
)

// Generator orchestrates model calls and tool dispatch for one query
// at a time.
//
// Thread Safety: Safe for concurrent use; per-query state lives on the
// stack and in the caller's DispatchContext.
type Generator struct {
	client   llm.ToolCaller
	registry *tools.Registry
	logger   *slog.Logger
}

// NewGenerator creates a generator over the given provider client and
// tool registry. A nil logger selects slog.Default().
func NewGenerator(client llm.ToolCaller, registry *tools.Registry, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:   client,
		registry: registry,
		logger:   logger,
	}
}

// GenerateResponse answers one query, optionally via one tool round.
//
// Description:
//
//	History is prior conversation text folded into the system prompt,
//	not replayed as messages. Tool failures never abort the query —
//	they reach the model as tool-result text. Provider failures on
//	either call are fatal and propagate to the caller.
//
// Inputs:
//   - ctx: Context for cancellation and timeout.
//   - query: The user's question.
//   - history: Formatted prior exchanges, or "" for a fresh session.
//   - dc: Per-query dispatch context collecting citation sources.
//
// Outputs:
//   - string: The final answer text.
//   - error: Non-nil on provider failure.
func (g *Generator) GenerateResponse(ctx context.Context, query, history string, dc *tools.DispatchContext) (string, error) {
	ctx, span := tracer.Start(ctx, "generator.GenerateResponse")
	defer span.End()

	temperature := generationTemperature
	maxTokens := generationMaxTokens
	params := llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	messages := []llm.ChatMessage{
		{Role: "system", Content: composeSystemPrompt(history)},
		{Role: "user", Content: query},
	}

	toolDefs := g.registry.Definitions()
	first, err := g.client.ChatWithTools(ctx, messages, params, toolDefs)
	if err != nil {
		return "", fmt.Errorf("initial model call: %w", err)
	}
	if !first.WantsTools() {
		return first.Content, nil
	}

	span.SetAttributes(attribute.Int("tool_calls", len(first.ToolCalls)))
	g.logger.Debug("Model requested tools", "calls", len(first.ToolCalls))

	messages = append(messages, llm.ChatMessage{
		Role:      "assistant",
		Content:   first.Content,
		ToolCalls: first.ToolCalls,
	})
	for _, call := range first.ToolCalls {
		messages = append(messages, llm.ChatMessage{
			Role:       "tool",
			Content:    g.dispatch(ctx, dc, call),
			ToolCallID: call.ID,
		})
	}

	// No tools on the second call: the model must answer from the
	// results it already has.
	final, err := g.client.ChatWithTools(ctx, messages, params, nil)
	if err != nil {
		return "", fmt.Errorf("final model call: %w", err)
	}
	return final.Content, nil
}

// dispatch runs one tool call, converting argument decode failures into
// result text the model can read.
func (g *Generator) dispatch(ctx context.Context, dc *tools.DispatchContext, call llm.ToolCallResponse) string {
	ctx, span := tracer.Start(ctx, "generator.dispatch")
	span.SetAttributes(attribute.String("tool", call.Name))
	defer span.End()

	args, err := call.ArgumentsMap()
	if err != nil {
		g.logger.Warn("Tool arguments failed to decode", "tool", call.Name, "error", err)
		return fmt.Sprintf("Tool argument error: %v", err)
	}
	return g.registry.Execute(ctx, dc, call.Name, args)
}
