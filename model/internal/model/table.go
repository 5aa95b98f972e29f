//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model provides the model-name keyed lookup tables shared by the
// public model packages.
package model

import (
	"strings"
	"sync"
)

// Table maps model names to values. Lookups are case-insensitive, ignore a
// leading "models/" resource prefix, and fall back from an exact match to the
// longest registered prefix.
type Table[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewTable returns a table seeded with entries.
func NewTable[V any](entries map[string]V) *Table[V] {
	t := &Table[V]{entries: make(map[string]V, len(entries))}
	for k, v := range entries {
		t.entries[NormalizeName(k)] = v
	}
	return t
}

// NormalizeName lowercases name and strips the "models/" prefix.
func NormalizeName(name string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "models/")
}

// Set adds or replaces the value for name.
func (t *Table[V]) Set(name string, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[NormalizeName(name)] = v
}

// SetAll adds or replaces several values under one lock.
func (t *Table[V]) SetAll(entries map[string]V) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range entries {
		t.entries[NormalizeName(k)] = v
	}
}

// Lookup returns the value for name and whether one was found.
func (t *Table[V]) Lookup(name string) (V, bool) {
	key := NormalizeName(name)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if v, ok := t.entries[key]; ok {
		return v, true
	}
	best, found := "", false
	for k := range t.entries {
		if strings.HasPrefix(key, k) && len(k) > len(best) {
			best, found = k, true
		}
	}
	if !found {
		var zero V
		return zero, false
	}
	return t.entries[best], true
}

// Snapshot returns a copy of every entry.
func (t *Table[V]) Snapshot() map[string]V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]V, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}
