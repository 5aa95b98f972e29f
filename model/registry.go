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
	"sort"
	"strings"
	"sync"

	imodel "github.com/robraux/autogen/model/internal/model"
)

// Factory builds a Client from one config list entry.
type Factory func(ctx context.Context, cfg Config) (Client, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterClient makes a provider available under apiType. Provider packages
// call it from init.
func RegisterClient(apiType string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[strings.ToLower(apiType)] = f
}

// RegisteredAPITypes lists the registered api types in sorted order.
func RegisteredAPITypes() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewClient builds a Client for cfg using the factory registered for cfg.APIType.
func NewClient(ctx context.Context, cfg Config) (Client, error) {
	factoriesMu.RLock()
	f, ok := factories[strings.ToLower(cfg.APIType)]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model: no client registered for api_type %q", cfg.APIType)
	}
	return f(ctx, cfg)
}

const defaultContextWindow = 32768

var contextWindows = imodel.NewTable(map[string]int{
	"gemini-2.5-pro":        1048576,
	"gemini-2.5-flash":      1048576,
	"gemini-2.0-flash":      1048576,
	"gemini-1.5-pro":        2097152,
	"gemini-1.5-flash":      1048576,
	"gemini-1.5-flash-8b":   1048576,
	"gemini-1.0-pro":        32760,
	"gemini-pro":            32760,
	"gemini-pro-vision":     16384,
	"gemini-1.0-pro-vision": 16384,
	"gemma-3":               128000,
	"gpt-4o":                128000,
	"gpt-4o-mini":           128000,
	"gpt-4.1":               1047576,
	"gpt-4-turbo":           128000,
	"gpt-4":                 8192,
	"gpt-3.5-turbo":         16385,
	"o3-mini":               200000,
})

// RegisterModelContextWindow registers a model's context window size.
// This allows users to add custom models or override existing mappings.
func RegisterModelContextWindow(modelName string, contextWindowSize int) {
	contextWindows.Set(modelName, contextWindowSize)
}

// RegisterModelContextWindows registers multiple models' context window sizes in batch.
func RegisterModelContextWindows(models map[string]int) {
	contextWindows.SetAll(models)
}

// ResolveContextWindow returns the context window of modelName by exact,
// then longest-prefix match, falling back to a conservative default.
func ResolveContextWindow(modelName string) int {
	if w, ok := contextWindows.Lookup(modelName); ok {
		return w
	}
	return defaultContextWindow
}
