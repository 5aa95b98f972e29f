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
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

const defaultBatchParallelism = 4

// BatchResult is the outcome of one request in a batch.
type BatchResult struct {
	Response *Response
	Err      error
}

// CreateBatch runs every request through c on a pool of at most parallelism
// workers. Results are indexed like reqs. The returned error covers only pool
// setup; per-request failures are reported in BatchResult.Err.
func CreateBatch(ctx context.Context, c Client, reqs []*Request, parallelism int) ([]BatchResult, error) {
	if parallelism <= 0 {
		parallelism = defaultBatchParallelism
	}
	pool, err := ants.NewPool(parallelism)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]BatchResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		idx, r := i, req
		task := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				results[idx].Err = err
				return
			}
			rsp, err := c.Create(ctx, r)
			results[idx] = BatchResult{Response: rsp, Err: err}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			results[idx].Err = fmt.Errorf("submit request %d: %w", idx, err)
		}
	}
	wg.Wait()
	return results, nil
}
