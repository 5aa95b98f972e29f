//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"google.golang.org/genai"

	"github.com/robraux/autogen/model"
)

// continueText is appended as a user turn when a conversation ends on a model
// turn, since Gemini only answers user turns.
const continueText = "continue"

const defaultImageMIMEType = "image/jpeg"

var (
	// ErrUnsupportedContent is returned for content parts other than text and image_url.
	ErrUnsupportedContent = fmt.Errorf("gemini: unsupported content part type: %w", model.ErrInvalidRequest)
	// ErrUnsupportedRole is returned for roles with no Gemini equivalent.
	ErrUnsupportedRole = fmt.Errorf("gemini: unsupported message role: %w", model.ErrInvalidRequest)
)

// EffectiveRole maps a chat role onto the two Gemini roles. System and tool
// messages become user turns; assistant is the same as model.
func EffectiveRole(role model.Role) (string, error) {
	switch role {
	case model.RoleSystem, model.RoleUser, model.RoleTool:
		return genai.RoleUser, nil
	case model.RoleAssistant, model.RoleModel:
		return genai.RoleModel, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedRole, role)
	}
}

// ToContents converts chat messages into Gemini contents. Consecutive
// messages with the same effective role are merged into one content whose
// parts keep input order, so the result holds one content per run of equal
// effective roles. Empty input yields an empty, non-nil slice.
func ToContents(messages []model.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(messages))
	toolNames := make(map[string]string)
	for i, msg := range messages {
		role, err := EffectiveRole(msg.Role)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		parts, err := messageParts(msg, toolNames)
		if err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, parts...)
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.Role(role)))
	}
	return contents, nil
}

// ensureUserTurn appends a "continue" user turn when contents is empty or
// ends on a model turn.
func ensureUserTurn(contents []*genai.Content) []*genai.Content {
	if n := len(contents); n > 0 && contents[n-1].Role == genai.RoleUser {
		return contents
	}
	return append(contents, genai.NewContentFromText(continueText, genai.RoleUser))
}

func messageParts(msg model.Message, toolNames map[string]string) ([]*genai.Part, error) {
	switch {
	case msg.Role == model.RoleTool:
		return toolResultParts(msg, toolNames)
	case len(msg.ToolCalls) > 0:
		return toolCallParts(msg, toolNames)
	default:
		return ContentParts(msg)
	}
}

// ContentParts converts the content of one message into Gemini parts. String
// content becomes a single text part.
func ContentParts(msg model.Message) ([]*genai.Part, error) {
	if len(msg.ContentParts) == 0 {
		return []*genai.Part{genai.NewPartFromText(msg.Content)}, nil
	}
	parts := make([]*genai.Part, 0, len(msg.ContentParts))
	for _, p := range msg.ContentParts {
		switch p.Type {
		case model.ContentPartText:
			parts = append(parts, genai.NewPartFromText(p.Text))
		case model.ContentPartImageURL:
			if p.ImageURL == nil || p.ImageURL.URL == "" {
				return nil, fmt.Errorf("gemini: image_url part without url: %w", model.ErrInvalidRequest)
			}
			part, err := imagePart(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, part)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedContent, p.Type)
		}
	}
	return parts, nil
}

func toolCallParts(msg model.Message, toolNames map[string]string) ([]*genai.Part, error) {
	var parts []*genai.Part
	if text := msg.Text(); text != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if s := strings.TrimSpace(tc.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return nil, fmt.Errorf("gemini: decode arguments of %s: %w: %w", tc.Function.Name, model.ErrInvalidRequest, err)
			}
		}
		if tc.ID != "" {
			toolNames[tc.ID] = tc.Function.Name
		}
		parts = append(parts, genai.NewPartFromFunctionCall(tc.Function.Name, args))
	}
	return parts, nil
}

func toolResultParts(msg model.Message, toolNames map[string]string) ([]*genai.Part, error) {
	name := msg.Name
	if name == "" {
		name = toolNames[msg.ToolCallID]
	}
	if name == "" {
		return nil, fmt.Errorf("gemini: tool result %q has no function name: %w", msg.ToolCallID, model.ErrInvalidRequest)
	}
	text := msg.Text()
	response := map[string]any{}
	if err := json.Unmarshal([]byte(text), &response); err != nil {
		response = map[string]any{"content": text}
	}
	return []*genai.Part{genai.NewPartFromFunctionResponse(name, response)}, nil
}

// imagePart turns a data: URL into inline bytes and a remote URL into a file
// reference.
func imagePart(rawURL string) (*genai.Part, error) {
	if strings.HasPrefix(rawURL, "data:") {
		data, mimeType, err := decodeDataURL(rawURL)
		if err != nil {
			return nil, err
		}
		return genai.NewPartFromBytes(data, mimeType), nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("gemini: invalid image url: %w: %w", model.ErrInvalidRequest, err)
	}
	switch u.Scheme {
	case "http", "https", "gs":
	default:
		return nil, fmt.Errorf("gemini: unsupported image url scheme %q: %w", u.Scheme, model.ErrInvalidRequest)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(path.Ext(u.Path)))
	if mimeType == "" {
		mimeType = defaultImageMIMEType
	}
	return genai.NewPartFromURI(rawURL, mimeType), nil
}

// decodeDataURL parses "data:[<mime>][;base64],<payload>".
func decodeDataURL(rawURL string) ([]byte, string, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(rawURL, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("gemini: malformed data url: %w", model.ErrInvalidRequest)
	}
	mimeType, isBase64 := header, false
	if before, found := strings.CutSuffix(header, ";base64"); found {
		mimeType, isBase64 = before, true
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = defaultImageMIMEType
	}
	if !isBase64 {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("gemini: decode data url: %w: %w", model.ErrInvalidRequest, err)
		}
		return []byte(s), mimeType, nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: decode data url: %w: %w", model.ErrInvalidRequest, err)
	}
	return data, mimeType, nil
}
