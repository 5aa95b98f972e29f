//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini adapts OpenAI-style chat completions to the Google Gemini
// SDK, on either the Gemini API (API key) or Vertex AI (project/location).
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/robraux/autogen/model"
)

// Verify that Client implements the model.Client interface.
var _ model.Client = (*Client)(nil)

const (
	// DefaultModel is used when a request names no model.
	DefaultModel = "gemini-pro"
	// APIType is the config list api_type served by this package.
	APIType = "google"

	// GoogleAPIKeyEnv is the environment variable name for the Google API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
	// GoogleCloudProjectEnv names the Vertex AI project when no API key is set.
	GoogleCloudProjectEnv = "GOOGLE_CLOUD_PROJECT"
	// GoogleCloudLocationEnv names the Vertex AI location when no API key is set.
	GoogleCloudLocationEnv = "GOOGLE_CLOUD_LOCATION"
	// DefaultLocation is the Vertex AI location used when none is configured.
	DefaultLocation = "us-central1"

	defaultMaxTries      = 5
	defaultRetryInterval = 5 * time.Second
	defaultMaxInterval   = 2 * time.Minute
)

var (
	// ErrAPIKeyWithProject is returned when an API key is combined with a
	// Google Cloud project or location.
	ErrAPIKeyWithProject = errors.New(
		"gemini: Google Cloud project and compute location cannot be set when using an API key")
	// ErrMissingCredentials is returned when neither an API key nor a project is configured.
	ErrMissingCredentials = errors.New(
		"gemini: GOOGLE_API_KEY is not provided and no Google Cloud project is set")
	// ErrEmptyMessages is returned for requests without messages.
	ErrEmptyMessages = fmt.Errorf("gemini: request has no messages: %w", model.ErrInvalidRequest)
	// ErrNoCandidates is returned when the provider answers without candidates.
	ErrNoCandidates = errors.New("gemini: response has no candidates")
)

// Client implements model.Client on top of the genai SDK.
type Client struct {
	client *genai.Client
	opts   options
}

type options struct {
	apiKey         string
	project        string
	location       string
	clientOptions  *genai.ClientConfig
	defaultModel   string
	maxTries       uint
	retryInterval  time.Duration
	maxInterval    time.Duration
	callbacks      *model.Callbacks
	safetySettings []model.SafetySetting
	// systemInstruction lifts system messages into the system instruction.
	systemInstruction bool
}

// Option represents a functional option for configuring the Client.
type Option func(*options)

// WithAPIKey sets the Google API key.
// If not provided, will use GOOGLE_API_KEY environment variable.
// APIKey priority: WithClientOptions > WithAPIKey > GOOGLE_API_KEY environment variable.
func WithAPIKey(apiKey string) Option {
	return func(o *options) { o.apiKey = apiKey }
}

// WithProject selects Vertex AI with the given Google Cloud project.
// It cannot be combined with an API key.
func WithProject(project string) Option {
	return func(o *options) { o.project = project }
}

// WithLocation sets the Vertex AI compute location.
// It cannot be combined with an API key.
func WithLocation(location string) Option {
	return func(o *options) { o.location = location }
}

// WithClientOptions sets additional options for the Gemini client config,
// such as HTTPClient or HTTPOptions.BaseURL.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(o *options) {
		c := *clientOptions
		o.clientOptions = &c
	}
}

// WithDefaultModel overrides DefaultModel.
func WithDefaultModel(name string) Option {
	return func(o *options) { o.defaultModel = name }
}

// WithRetry sets how often a request failing with an internal server error
// is tried in total, and the first backoff interval. The interval doubles
// after each attempt.
func WithRetry(maxTries uint, initialInterval time.Duration) Option {
	return func(o *options) {
		o.maxTries = maxTries
		o.retryInterval = initialInterval
	}
}

// WithCallbacks installs before/after model hooks.
func WithCallbacks(callbacks *model.Callbacks) Option {
	return func(o *options) { o.callbacks = callbacks }
}

// WithSafetySettings sets the default safety settings. Settings on a request
// replace them.
func WithSafetySettings(settings ...model.SafetySetting) Option {
	return func(o *options) { o.safetySettings = settings }
}

// WithSystemInstruction sends system messages as the Gemini system
// instruction instead of folding them into user turns.
func WithSystemInstruction() Option {
	return func(o *options) { o.systemInstruction = true }
}

// New creates a Gemini client. With an API key the Gemini API is used;
// without one, Vertex AI is used with the configured project and location.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	o := options{
		defaultModel:  DefaultModel,
		maxTries:      defaultMaxTries,
		retryInterval: defaultRetryInterval,
		maxInterval:   defaultMaxInterval,
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxTries == 0 {
		o.maxTries = 1
	}

	cfg := o.clientOptions
	if cfg.APIKey == "" {
		cfg.APIKey = o.apiKey
	}
	if cfg.APIKey == "" && o.project == "" && o.location == "" {
		cfg.APIKey = os.Getenv(GoogleAPIKeyEnv)
	}
	if cfg.APIKey != "" {
		if o.project != "" || o.location != "" || cfg.Project != "" || cfg.Location != "" {
			return nil, ErrAPIKeyWithProject
		}
		if cfg.Backend == genai.BackendUnspecified {
			cfg.Backend = genai.BackendGeminiAPI
		}
	} else {
		cfg.Backend = genai.BackendVertexAI
		cfg.Project = firstNonEmpty(o.project, cfg.Project, os.Getenv(GoogleCloudProjectEnv))
		cfg.Location = firstNonEmpty(o.location, cfg.Location, os.Getenv(GoogleCloudLocationEnv), DefaultLocation)
		if cfg.Project == "" {
			return nil, ErrMissingCredentials
		}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: client, opts: o}, nil
}

// NewFromConfig builds a Client from a config list entry.
func NewFromConfig(ctx context.Context, cfg model.Config, opts ...Option) (*Client, error) {
	base := []Option{}
	if cfg.APIKey != "" {
		base = append(base, WithAPIKey(cfg.APIKey))
	}
	if cfg.ProjectID != "" {
		base = append(base, WithProject(cfg.ProjectID))
	}
	if cfg.Location != "" {
		base = append(base, WithLocation(cfg.Location))
	}
	if cfg.Model != "" {
		base = append(base, WithDefaultModel(cfg.Model))
	}
	if len(cfg.SafetySettings) > 0 {
		base = append(base, WithSafetySettings(cfg.SafetySettings...))
	}
	if cfg.BaseURL != "" {
		base = append(base, WithClientOptions(&genai.ClientConfig{
			HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
		}))
	}
	return New(ctx, append(base, opts...)...)
}

func init() {
	model.RegisterClient(APIType, func(ctx context.Context, cfg model.Config) (model.Client, error) {
		return NewFromConfig(ctx, cfg)
	})
}

// IsVisionModel reports whether name is a single-turn vision model.
func IsVisionModel(name string) bool {
	return strings.Contains(strings.ToLower(name), "vision")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
