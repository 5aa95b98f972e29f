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
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is one entry of a config list: the model to call and how to reach it.
type Config struct {
	Model          string          `json:"model" yaml:"model"`
	APIKey         string          `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIType        string          `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	BaseURL        string          `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ProjectID      string          `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Location       string          `json:"location,omitempty" yaml:"location,omitempty"`
	Tags           []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
	SafetySettings []SafetySetting `json:"safety_settings,omitempty" yaml:"safety_settings,omitempty"`
}

// ConfigFilter keeps the entries for which it returns true.
type ConfigFilter func(Config) bool

// FilterModels keeps entries whose model is one of names.
func FilterModels(names ...string) ConfigFilter {
	return func(c Config) bool { return slices.Contains(names, c.Model) }
}

// FilterAPIType keeps entries of the given api type, case-insensitively.
func FilterAPIType(apiType string) ConfigFilter {
	return func(c Config) bool { return strings.EqualFold(c.APIType, apiType) }
}

// FilterTags keeps entries carrying at least one of tags.
func FilterTags(tags ...string) ConfigFilter {
	return func(c Config) bool {
		for _, t := range c.Tags {
			if slices.Contains(tags, t) {
				return true
			}
		}
		return false
	}
}

// ParseConfigList decodes a JSON array or a YAML sequence of Config.
func ParseConfigList(data []byte) ([]Config, error) {
	var list []Config
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode json config list: %w", err)
		}
		return list, nil
	}
	if err := yaml.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("decode yaml config list: %w", err)
	}
	return list, nil
}

// LoadConfigList loads a config list from envOrFile. If an environment
// variable of that name is set, its value is read as a file path when such a
// file exists and as inline JSON/YAML otherwise. Without the variable,
// envOrFile itself is the file path. Entries must pass every filter.
func LoadConfigList(envOrFile string, filters ...ConfigFilter) ([]Config, error) {
	var data []byte
	if v, ok := os.LookupEnv(envOrFile); ok {
		if b, err := os.ReadFile(v); err == nil {
			data = b
		} else {
			data = []byte(v)
		}
	} else {
		b, err := os.ReadFile(envOrFile)
		if err != nil {
			return nil, fmt.Errorf("read config list: %w", err)
		}
		data = b
	}
	list, err := ParseConfigList(data)
	if err != nil {
		return nil, err
	}
	return FilterConfigList(list, filters...), nil
}

// FilterConfigList returns the entries of list that pass every filter.
func FilterConfigList(list []Config, filters ...ConfigFilter) []Config {
	out := make([]Config, 0, len(list))
	for _, c := range list {
		keep := true
		for _, f := range filters {
			if !f(c) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}
