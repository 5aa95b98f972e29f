//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the OpenAI-compatible chat-completion types shared by
// provider adapters, plus client registration, config lists and batching.
package model

import (
	"context"
	"errors"
)

// ErrInvalidRequest is wrapped by errors caused by the request itself rather
// than by the provider.
var ErrInvalidRequest = errors.New("invalid request")

// Client turns chat-completion requests into responses from one provider.
type Client interface {
	// Create sends req and returns the complete response.
	Create(ctx context.Context, req *Request) (*Response, error)
	// Cost returns the USD cost recorded on rsp.
	Cost(rsp *Response) float64
	// Usage reports token counts, cost and model for rsp.
	Usage(rsp *Response) UsageSummary
	// RetrieveMessages returns the message of every choice in rsp.
	RetrieveMessages(rsp *Response) []Message
}
