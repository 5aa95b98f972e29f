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
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallbacks_BeforeModel(t *testing.T) {
	callbacks := NewCallbacks()
	custom := &Response{ID: "custom-response", Model: "test-model"}
	callbacks.RegisterBeforeModel(func(ctx context.Context, req *Request) (*Response, error) {
		return custom, nil
	})

	rsp, err := callbacks.RunBeforeModel(context.Background(), &Request{
		Messages: []Message{NewUserMessage("Hello")},
	})
	require.NoError(t, err)
	require.NotNil(t, rsp)
	require.Equal(t, "custom-response", rsp.ID)
}

func TestCallbacks_BeforeModelMutatesRequest(t *testing.T) {
	callbacks := NewCallbacks().RegisterBeforeModel(func(ctx context.Context, req *Request) (*Response, error) {
		req.Model = "gemini-1.5-flash"
		return nil, nil
	})
	req := &Request{Model: "gemini-pro"}
	rsp, err := callbacks.RunBeforeModel(context.Background(), req)
	require.NoError(t, err)
	require.Nil(t, rsp)
	require.Equal(t, "gemini-1.5-flash", req.Model)
}

func TestCallbacks_AfterModelSeesError(t *testing.T) {
	modelErr := errors.New("provider down")
	var seen error
	callbacks := NewCallbacks().RegisterAfterModel(
		func(ctx context.Context, req *Request, rsp *Response, err error) (*Response, error) {
			seen = err
			return &Response{ID: "fallback"}, nil
		})

	rsp, err := callbacks.RunAfterModel(context.Background(), &Request{}, nil, modelErr)
	require.NoError(t, err)
	require.Equal(t, "fallback", rsp.ID)
	require.ErrorIs(t, seen, modelErr)
}

func TestCallbacks_FirstResponseWins(t *testing.T) {
	callbacks := NewCallbacks().
		RegisterBeforeModel(func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{ID: "first"}, nil
		}).
		RegisterBeforeModel(func(ctx context.Context, req *Request) (*Response, error) {
			return &Response{ID: "second"}, nil
		})

	rsp, err := callbacks.RunBeforeModel(context.Background(), &Request{})
	require.NoError(t, err)
	require.Equal(t, "first", rsp.ID)
}

func TestCallbacks_ErrorStops(t *testing.T) {
	called := false
	callbacks := NewCallbacks().
		RegisterAfterModel(func(ctx context.Context, req *Request, rsp *Response, err error) (*Response, error) {
			return nil, errors.New("rejected")
		}).
		RegisterAfterModel(func(ctx context.Context, req *Request, rsp *Response, err error) (*Response, error) {
			called = true
			return nil, nil
		})

	_, err := callbacks.RunAfterModel(context.Background(), &Request{}, &Response{}, nil)
	require.EqualError(t, err, "rejected")
	require.False(t, called)
}

func TestCallbacks_NilReceiver(t *testing.T) {
	var callbacks *Callbacks
	rsp, err := callbacks.RunBeforeModel(context.Background(), &Request{})
	require.NoError(t, err)
	require.Nil(t, rsp)
	rsp, err = callbacks.RunAfterModel(context.Background(), &Request{}, nil, nil)
	require.NoError(t, err)
	require.Nil(t, rsp)
}
