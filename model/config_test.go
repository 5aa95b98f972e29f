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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonConfigList = `[
  {"model": "gemini-pro", "api_key": "k1", "api_type": "google", "tags": ["chat"]},
  {"model": "gemini-pro-vision", "api_key": "k1", "api_type": "google", "tags": ["vision"]},
  {"model": "gpt-4", "api_key": "k2"}
]`

const yamlConfigList = `
- model: gemini-1.5-pro
  api_type: google
  project_id: my-project
  location: us-west1
  safety_settings:
    - category: HARM_CATEGORY_HARASSMENT
      threshold: BLOCK_ONLY_HIGH
`

func TestParseConfigList(t *testing.T) {
	list, err := ParseConfigList([]byte(jsonConfigList))
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "k2", list[2].APIKey)

	list, err = ParseConfigList([]byte(yamlConfigList))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "my-project", list[0].ProjectID)
	assert.Equal(t, []SafetySetting{{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_ONLY_HIGH"}},
		list[0].SafetySettings)

	_, err = ParseConfigList([]byte("[{"))
	require.Error(t, err)
}

func TestLoadConfigList_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "OAI_CONFIG_LIST.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlConfigList), 0o600))

	list, err := LoadConfigList(path)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "gemini-1.5-pro", list[0].Model)

	_, err = LoadConfigList(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestLoadConfigList_FromEnv(t *testing.T) {
	t.Setenv("TEST_CONFIG_LIST", jsonConfigList)
	list, err := LoadConfigList("TEST_CONFIG_LIST", FilterAPIType("GOOGLE"), FilterTags("vision"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "gemini-pro-vision", list[0].Model)

	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonConfigList), 0o600))
	t.Setenv("TEST_CONFIG_LIST", path)
	list, err = LoadConfigList("TEST_CONFIG_LIST", FilterModels("gpt-4"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "k2", list[0].APIKey)
}
