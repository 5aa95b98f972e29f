//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"encoding/json"
	"fmt"
)

// Request is an OpenAI-compatible chat-completion request.
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	// Stream asks for incremental delivery. Adapters that cannot stream a
	// given model fall back to a single response.
	Stream bool `json:"stream,omitempty"`
	// N is the number of candidates. Only one is generated by Gemini.
	N *int `json:"n,omitempty"`

	MaxTokens        *int          `json:"max_tokens,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	TopK             *int          `json:"top_k,omitempty"`
	Stop             StopSequences `json:"stop,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	Seed             *int64        `json:"seed,omitempty"`

	Tools      []Tool      `json:"tools,omitempty"`
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// SafetySettings is passed through to the provider, overriding client defaults.
	SafetySettings []SafetySetting `json:"safety_settings,omitempty"`
}

// StopSequences is "stop" which the wire format allows as a string or a list.
type StopSequences []string

// UnmarshalJSON accepts a single string or an array of strings.
func (s *StopSequences) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = StopSequences{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("stop must be a string or an array of strings: %w", err)
	}
	*s = many
	return nil
}

// Tool declares a callable function.
type Tool struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a function with a JSON schema for its parameters.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// NewFunctionTool returns a function tool declaration.
func NewFunctionTool(name, description string, parameters map[string]any) Tool {
	return Tool{
		Type:     ToolTypeFunction,
		Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters},
	}
}

// Tool choice modes.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// ToolChoice is "auto", "none", "required" or a named function.
type ToolChoice struct {
	Mode string
	// Function forces a call to this function when set.
	Function string
}

type namedToolChoice struct {
	Type     string `json:"type"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
}

// MarshalJSON implements json.Marshaler.
func (c ToolChoice) MarshalJSON() ([]byte, error) {
	if c.Function == "" {
		return json.Marshal(c.Mode)
	}
	n := namedToolChoice{Type: ToolTypeFunction}
	n.Function.Name = c.Function
	return json.Marshal(n)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ToolChoice) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		*c = ToolChoice{Mode: mode}
		return nil
	}
	var n namedToolChoice
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid tool_choice: %w", err)
	}
	*c = ToolChoice{Mode: ToolChoiceRequired, Function: n.Function.Name}
	return nil
}

// SafetySetting is a provider harm category and block threshold pair, e.g.
// {"category": "HARM_CATEGORY_HARASSMENT", "threshold": "BLOCK_ONLY_HIGH"}.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}
