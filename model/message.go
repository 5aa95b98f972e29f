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
	"bytes"
	"encoding/json"
	"fmt"
)

// Role is the author of a chat message.
type Role string

// Role constants.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleModel is the provider-native name for RoleAssistant.
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// ContentPartType identifies the kind of a structured content part.
type ContentPartType string

// Content part types accepted in message content arrays.
const (
	ContentPartText     ContentPartType = "text"
	ContentPartImageURL ContentPartType = "image_url"
)

// ImageURL references an image by http(s)/gs URL or by data: URL.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ContentPart is one element of a structured message content array.
type ContentPart struct {
	Type     ContentPartType `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *ImageURL       `json:"image_url,omitempty"`
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: ContentPartText, Text: text}
}

// ImagePart returns an image_url content part.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: ContentPartImageURL, ImageURL: &ImageURL{URL: url}}
}

// Message is a chat message in the OpenAI chat-completion shape. Content is
// either the plain string in Content or the structured ContentParts; on the
// wire both map to the "content" field.
type Message struct {
	Role         Role
	Content      string
	ContentParts []ContentPart
	// Name is the function name for tool messages.
	Name       string
	ToolCallID string
	ToolCalls  []ToolCall
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewUserMessageParts creates a user message with structured content.
func NewUserMessageParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, ContentParts: parts}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewToolMessage creates a tool result message answering toolCallID.
func NewToolMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Name: name, Content: content}
}

type wireMessage struct {
	Role       Role            `json:"role"`
	Content    json.RawMessage `json:"content"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall      `json:"tool_calls,omitempty"`
}

// MarshalJSON encodes content as an array when ContentParts is set, as null
// for content-less tool-call messages, and as a string otherwise.
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Role:       m.Role,
		Name:       m.Name,
		ToolCallID: m.ToolCallID,
		ToolCalls:  m.ToolCalls,
	}
	var err error
	switch {
	case len(m.ContentParts) > 0:
		w.Content, err = json.Marshal(m.ContentParts)
	case m.Content == "" && len(m.ToolCalls) > 0:
		w.Content = json.RawMessage("null")
	default:
		w.Content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts content as a string, an array of parts or null.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{
		Role:       w.Role,
		Name:       w.Name,
		ToolCallID: w.ToolCallID,
		ToolCalls:  w.ToolCalls,
	}
	raw := bytes.TrimSpace(w.Content)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		return json.Unmarshal(raw, &m.Content)
	case raw[0] == '[':
		return json.Unmarshal(raw, &m.ContentParts)
	default:
		return fmt.Errorf("message content must be a string or an array, got %s", raw)
	}
	return nil
}

// Text returns the string content, or the text parts joined by newlines.
func (m Message) Text() string {
	if len(m.ContentParts) == 0 {
		return m.Content
	}
	var buf bytes.Buffer
	for _, p := range m.ContentParts {
		if p.Type != ContentPartText {
			continue
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(p.Text)
	}
	return buf.String()
}
