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
	"context"
)

// BeforeModelCallback runs before the provider is called and may mutate req.
// A non-nil response short-circuits the provider call; a non-nil error aborts it.
type BeforeModelCallback func(ctx context.Context, req *Request) (*Response, error)

// AfterModelCallback runs after the provider call with its outcome.
// A non-nil response replaces rsp; a non-nil error is returned to the caller.
type AfterModelCallback func(ctx context.Context, req *Request, rsp *Response, modelErr error) (*Response, error)

// Callbacks holds the hooks a Client runs around each Create.
type Callbacks struct {
	BeforeModel []BeforeModelCallback
	AfterModel  []AfterModelCallback
}

// NewCallbacks creates an empty Callbacks.
func NewCallbacks() *Callbacks {
	return &Callbacks{}
}

// RegisterBeforeModel appends a before-model hook and returns c for chaining.
func (c *Callbacks) RegisterBeforeModel(cb BeforeModelCallback) *Callbacks {
	c.BeforeModel = append(c.BeforeModel, cb)
	return c
}

// RegisterAfterModel appends an after-model hook and returns c for chaining.
func (c *Callbacks) RegisterAfterModel(cb AfterModelCallback) *Callbacks {
	c.AfterModel = append(c.AfterModel, cb)
	return c
}

// RunBeforeModel runs the before hooks in order, stopping at the first that
// returns a response or an error. A nil receiver is a no-op.
func (c *Callbacks) RunBeforeModel(ctx context.Context, req *Request) (*Response, error) {
	if c == nil {
		return nil, nil
	}
	for _, cb := range c.BeforeModel {
		rsp, err := cb(ctx, req)
		if err != nil {
			return nil, err
		}
		if rsp != nil {
			return rsp, nil
		}
	}
	return nil, nil
}

// RunAfterModel runs the after hooks in order, stopping at the first that
// returns a response or an error. A nil receiver is a no-op.
func (c *Callbacks) RunAfterModel(ctx context.Context, req *Request, rsp *Response, modelErr error) (*Response, error) {
	if c == nil {
		return nil, nil
	}
	for _, cb := range c.AfterModel {
		custom, err := cb(ctx, req, rsp, modelErr)
		if err != nil {
			return nil, err
		}
		if custom != nil {
			return custom, nil
		}
	}
	return nil, nil
}
