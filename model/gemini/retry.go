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
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"google.golang.org/genai"

	"github.com/robraux/autogen/log"
)

// IsRetryable reports whether err is a provider internal server error.
func IsRetryable(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusInternalServerError
	}
	return false
}

// withRetry runs op until it succeeds, fails with a non-retryable error, or
// the configured number of tries is used up.
func (c *Client) withRetry(
	ctx context.Context,
	modelName string,
	op func() (*genai.GenerateContentResponse, error),
) (*genai.GenerateContentResponse, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.retryInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.maxInterval

	attempt := 0
	rsp, err := backoff.Retry(ctx, func() (*genai.GenerateContentResponse, error) {
		attempt++
		rsp, err := op()
		if err == nil {
			return rsp, nil
		}
		if IsRetryable(err) {
			return nil, err
		}
		return nil, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.opts.maxTries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warnf("gemini: %s attempt %d failed with an internal server error, retrying in %s: %v",
				modelName, attempt, next, err)
		}),
	)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return rsp, err
}
