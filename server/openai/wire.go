//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//


package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openaigo "github.com/openai/openai-go"
	"google.golang.org/genai"

	"github.com/robraux/autogen/log"
	"github.com/robraux/autogen/model"
)

// statusClientClosedRequest is reported when the caller went away.
const statusClientClosedRequest = 499

type modelList struct {
	Object string      `json:"object"`
	Data   []modelCard `json:"data"`
}

type modelCard struct {
	ID            string `json:"id"`
	Object        string `json:"object"`
	Created       int64  `json:"created"`
	OwnedBy       string `json:"owned_by"`
	ContextWindow int    `json:"context_window"`
}

type batchRequest struct {
	Requests []*model.Request `json:"requests"`
}

type batchResponse struct {
	Object string      `json:"object"`
	Data   []batchItem `json:"data"`
}

type batchItem struct {
	Index    int             `json:"index"`
	Response *model.Response `json:"response,omitempty"`
	Error    *errorBody      `json:"error,omitempty"`
}

type errorEnvelope struct {
	Error *errorBody `json:"error"`
}

type errorBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

func newErrorBody(status int, err error) *errorBody {
	body := &errorBody{Message: err.Error(), Type: errorType(status)}
	if errors.Is(err, ErrModelNotFound) {
		code := "model_not_found"
		body.Code = &code
	}
	return body
}

func errorType(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "authentication_error"
	case status == http.StatusTooManyRequests:
		return "rate_limit_error"
	case status >= 400 && status < 500:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorEnvelope{Error: newErrorBody(status, err)})
}

// statusCode maps an error to an HTTP status, keeping provider status codes.
func statusCode(err error) int {
	var gerr genai.APIError
	if errors.As(err, &gerr) && isHTTPStatus(gerr.Code) {
		return gerr.Code
	}
	var oerr *openaigo.Error
	if errors.As(err, &oerr) && isHTTPStatus(oerr.StatusCode) {
		return oerr.StatusCode
	}
	switch {
	case errors.Is(err, ErrModelNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func isHTTPStatus(code int) bool {
	return code >= 400 && code < 600
}

type chunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
	Usage   *model.Usage  `json:"usage,omitempty"`
}

type chunkChoice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Role      model.Role      `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []deltaToolCall `json:"tool_calls,omitempty"`
}

type deltaToolCall struct {
	Index int `json:"index"`
	model.ToolCall
}

// writeStream sends a complete response as server-sent chat completion
// chunks: one delta per choice, a finish chunk with usage, then [DONE].
func writeStream(w http.ResponseWriter, rsp *model.Response) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	base := chunk{ID: rsp.ID, Object: "chat.completion.chunk", Created: rsp.Created, Model: rsp.Model}
	for _, ch := range rsp.Choices {
		c := base
		d := delta{Role: model.RoleAssistant, Content: ch.Message.Content}
		for i, tc := range ch.Message.ToolCalls {
			d.ToolCalls = append(d.ToolCalls, deltaToolCall{Index: i, ToolCall: tc})
		}
		c.Choices = []chunkChoice{{Index: ch.Index, Delta: d}}
		writeEvent(w, c)
	}
	final := base
	for _, ch := range rsp.Choices {
		reason := ch.FinishReason
		final.Choices = append(final.Choices, chunkChoice{Index: ch.Index, FinishReason: &reason})
	}
	usage := rsp.Usage
	final.Usage = &usage
	writeEvent(w, final)
	fmt.Fprint(w, "data: [DONE]\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func writeEvent(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to encode stream chunk: %v", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
