// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm provides the LLM provider client used by the Scholar
// answer generator, plus the provider-agnostic tool-calling types that
// bridge Scholar's tool registry to the Anthropic messages API.
package llm

import "encoding/json"

// StopReasonEnd indicates the model completed its answer normally.
const StopReasonEnd = "end"

// StopReasonToolUse indicates the model stopped to request tool calls.
const StopReasonToolUse = "tool_use"

// ToolDef is a declarative tool contract offered to the model.
//
// Description:
//
//	Provider-agnostic tool definition. The Anthropic client converts it
//	to the wire format (name, description, input_schema) when building
//	a request.
//
// Thread Safety: ToolDef is immutable and safe for concurrent read access.
type ToolDef struct {
	// Name is the tool name the model will call.
	Name string `json:"name"`

	// Description explains what the tool does and when to use it.
	Description string `json:"description"`

	// InputSchema is the JSON Schema for the tool's arguments.
	InputSchema ToolInputSchema `json:"input_schema"`
}

// ToolInputSchema is the JSON Schema describing a tool's arguments.
type ToolInputSchema struct {
	// Type is always "object" for tool parameters.
	Type string `json:"type"`

	// Properties maps argument names to their definitions.
	Properties map[string]ToolParamDef `json:"properties,omitempty"`

	// Required lists argument names that must be provided.
	Required []string `json:"required,omitempty"`
}

// ToolParamDef defines a single tool argument in JSON Schema format.
type ToolParamDef struct {
	// Type is the JSON Schema type (string, integer, boolean, number).
	Type string `json:"type"`

	// Description explains what the argument is for.
	Description string `json:"description,omitempty"`
}

// ChatMessage is a conversation message that carries tool call metadata.
//
// Description:
//
//	Regular messages use Role + Content. Assistant messages that
//	requested tools include ToolCalls. Tool results use Role "tool"
//	with ToolCallID linking back to the originating call.
//
// Thread Safety: ChatMessage is safe for concurrent read access.
type ChatMessage struct {
	// Role is "system", "user", "assistant", or "tool".
	Role string `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content,omitempty"`

	// ToolCalls contains tool invocations (for assistant messages).
	ToolCalls []ToolCallResponse `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-result message back to a specific call.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCallResponse is a single tool call requested by the model.
//
// Thread Safety: ToolCallResponse is safe for concurrent read access.
type ToolCallResponse struct {
	// ID is the provider-assigned identifier for this call. Results
	// must echo it back as tool_use_id.
	ID string `json:"id"`

	// Name is the tool name to invoke.
	Name string `json:"name"`

	// Arguments is the raw JSON arguments object.
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentsMap decodes the call arguments into a generic map.
//
// Returns an empty map for nil/empty arguments. Decoding failures
// return the error so the dispatcher can surface it as tool-result text.
func (t *ToolCallResponse) ArgumentsMap() (map[string]any, error) {
	if len(t.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(t.Arguments, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// ChatWithToolsResult is the provider-agnostic result of one model call.
//
// Thread Safety: ChatWithToolsResult is safe for concurrent read access.
type ChatWithToolsResult struct {
	// Content is the text response. May be empty when the model only
	// requested tool calls.
	Content string

	// ToolCalls contains tool calls from the model, in request order.
	ToolCalls []ToolCallResponse

	// StopReason is StopReasonEnd or StopReasonToolUse.
	StopReason string
}

// WantsTools reports whether the model stopped to request tool calls.
func (r *ChatWithToolsResult) WantsTools() bool {
	return r.StopReason == StopReasonToolUse && len(r.ToolCalls) > 0
}

// GenerationParams holds per-request generation options.
//
// The zero value requests the provider defaults; Scholar's generator
// pins Temperature 0 and MaxTokens 800 for deterministic short answers.
type GenerationParams struct {
	// Temperature controls randomness. Nil omits the field.
	Temperature *float32

	// MaxTokens limits the response length. Nil uses the client default.
	MaxTokens *int
}
