//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//


// Package openai implements model.Client for OpenAI-compatible chat
// completion endpoints.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	openai "github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	itelemetry "github.com/robraux/autogen/internal/telemetry"
	"github.com/robraux/autogen/log"
	"github.com/robraux/autogen/model"
	"github.com/robraux/autogen/telemetry/metric"
	atrace "github.com/robraux/autogen/telemetry/trace"
)

// Verify that Client implements the model.Client interface.
var _ model.Client = (*Client)(nil)

const (
	// APIType is the config list api_type served by this package.
	APIType = "openai"
	// DefaultModel is used when neither the request nor the config names a model.
	DefaultModel = "gpt-4o-mini"
)

// HTTPClient is the interface for the HTTP client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClientNewFunc is the function type for creating a new HTTP client.
type HTTPClientNewFunc func(opts ...HTTPClientOption) HTTPClient

// DefaultNewHTTPClient is the default HTTP client for OpenAI.
var DefaultNewHTTPClient HTTPClientNewFunc = func(opts ...HTTPClientOption) HTTPClient {
	options := &HTTPClientOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return &http.Client{
		Transport: options.Transport,
		Timeout:   options.Timeout,
	}
}

// HTTPClientOption is the option for the HTTP client.
type HTTPClientOption func(*HTTPClientOptions)

// WithHTTPClientTransport is the option for the HTTP client transport.
func WithHTTPClientTransport(transport http.RoundTripper) HTTPClientOption {
	return func(options *HTTPClientOptions) {
		options.Transport = transport
	}
}

// WithHTTPClientTimeout bounds every HTTP round trip.
func WithHTTPClientTimeout(timeout time.Duration) HTTPClientOption {
	return func(options *HTTPClientOptions) {
		options.Timeout = timeout
	}
}

// HTTPClientOptions is the options for the HTTP client.
type HTTPClientOptions struct {
	Transport http.RoundTripper
	Timeout   time.Duration
}

// Client implements model.Client for the OpenAI chat completions API.
type Client struct {
	client openai.Client
	opts   options
}

type options struct {
	apiKey            string
	baseURL           string
	defaultModel      string
	httpClientOptions []HTTPClientOption
	openAIOptions     []openaiopt.RequestOption
	extraFields       map[string]any
	callbacks         *model.Callbacks
}

// Option is a function that configures a Client.
type Option func(*options)

// WithAPIKey sets the API key. Without it OPENAI_API_KEY is used.
func WithAPIKey(key string) Option {
	return func(opts *options) { opts.apiKey = key }
}

// WithBaseURL sets the base URL of an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(opts *options) { opts.baseURL = url }
}

// WithDefaultModel overrides DefaultModel.
func WithDefaultModel(name string) Option {
	return func(opts *options) { opts.defaultModel = name }
}

// WithHTTPClientOptions sets the HTTP client options for the OpenAI client.
func WithHTTPClientOptions(httpOpts ...HTTPClientOption) Option {
	return func(opts *options) { opts.httpClientOptions = httpOpts }
}

// WithOpenAIOptions appends raw openai-go request options, e.g. a middleware
// or openaiopt.WithMaxRetries.
func WithOpenAIOptions(openaiOpts ...openaiopt.RequestOption) Option {
	return func(opts *options) {
		opts.openAIOptions = append(opts.openAIOptions, openaiOpts...)
	}
}

// WithExtraFields sets extra fields to be added to every request body.
func WithExtraFields(extraFields map[string]any) Option {
	return func(opts *options) {
		if opts.extraFields == nil {
			opts.extraFields = make(map[string]any)
		}
		for k, v := range extraFields {
			opts.extraFields[k] = v
		}
	}
}

// WithCallbacks installs before/after model hooks.
func WithCallbacks(callbacks *model.Callbacks) Option {
	return func(opts *options) { opts.callbacks = callbacks }
}

// New creates an OpenAI client.
func New(opts ...Option) *Client {
	o := options{defaultModel: DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	var clientOpts []openaiopt.RequestOption
	if o.apiKey != "" {
		clientOpts = append(clientOpts, openaiopt.WithAPIKey(o.apiKey))
	}
	if o.baseURL != "" {
		clientOpts = append(clientOpts, openaiopt.WithBaseURL(o.baseURL))
	}
	clientOpts = append(clientOpts, openaiopt.WithHTTPClient(DefaultNewHTTPClient(o.httpClientOptions...)))
	clientOpts = append(clientOpts, o.openAIOptions...)
	return &Client{client: openai.NewClient(clientOpts...), opts: o}
}

// NewFromConfig builds a Client from a config list entry.
func NewFromConfig(cfg model.Config, opts ...Option) *Client {
	base := []Option{}
	if cfg.APIKey != "" {
		base = append(base, WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		base = append(base, WithBaseURL(cfg.BaseURL))
	}
	if cfg.Model != "" {
		base = append(base, WithDefaultModel(cfg.Model))
	}
	return New(append(base, opts...)...)
}

func init() {
	model.RegisterClient(APIType, func(_ context.Context, cfg model.Config) (model.Client, error) {
		return NewFromConfig(cfg), nil
	})
}

// Create sends req to the chat completions endpoint.
func (c *Client) Create(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("openai: request is nil: %w", model.ErrInvalidRequest)
	}
	r := *req
	if r.Model == "" {
		r.Model = c.opts.defaultModel
	}

	ctx, span := atrace.Tracer.Start(ctx, itelemetry.NewChatSpanName(r.Model))
	defer span.End()
	start := time.Now()

	rsp, err := c.opts.callbacks.RunBeforeModel(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("openai: before model callback: %w", err)
	}
	if rsp != nil {
		return rsp, nil
	}

	rsp, err = c.create(ctx, &r)
	custom, cbErr := c.opts.callbacks.RunAfterModel(ctx, &r, rsp, err)
	if cbErr != nil {
		err = fmt.Errorf("openai: after model callback: %w", cbErr)
		rsp = nil
	} else if custom != nil {
		rsp, err = custom, nil
	}

	itelemetry.TraceChatCompletion(span, &r, rsp, err)
	itelemetry.RecordChatCompletion(ctx, metric.Meter, r.Model, rsp, err, time.Since(start))
	return rsp, err
}

func (c *Client) create(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("openai: request has no messages: %w", model.ErrInvalidRequest)
	}
	params, err := chatParams(req)
	if err != nil {
		return nil, err
	}
	var opts []openaiopt.RequestOption
	for key, value := range c.opts.extraFields {
		opts = append(opts, openaiopt.WithJSONSet(key, value))
	}

	var completion *openai.ChatCompletion
	if req.Stream {
		params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
		completion, err = c.stream(ctx, params, opts...)
	} else {
		completion, err = c.client.Chat.Completions.New(ctx, params, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("openai: %s: %w", req.Model, err)
	}
	return toResponse(completion), nil
}

// stream accumulates a streamed completion into one response.
func (c *Client) stream(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	opts ...openaiopt.RequestOption,
) (*openai.ChatCompletion, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, params, opts...)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		if !acc.AddChunk(stream.Current()) {
			log.Warnf("openai: dropped a stream chunk that does not belong to completion %s", acc.ID)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}
	return &acc.ChatCompletion, nil
}

func chatParams(req *model.Request) (openai.ChatCompletionNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
		Tools:    convertTools(req.Tools),
	}
	// MaxTokens is deprecated and not compatible with o-series models.
	if req.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.N != nil {
		params.N = openai.Int(int64(*req.N))
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if req.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*req.PresencePenalty)
	}
	if req.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*req.FrequencyPenalty)
	}
	if req.Seed != nil {
		params.Seed = openai.Int(*req.Seed)
	}
	switch len(req.Stop) {
	case 0:
	case 1:
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfString: openai.String(req.Stop[0])}
	default:
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if req.TopK != nil {
		log.Debugf("openai: top_k is not supported and is ignored")
	}
	if req.ToolChoice != nil && len(req.Tools) > 0 {
		params.ToolChoice = convertToolChoice(req.ToolChoice)
	}
	return params, nil
}

// Cost returns the USD cost recorded on rsp.
func (c *Client) Cost(rsp *model.Response) float64 {
	if rsp == nil {
		return 0
	}
	return rsp.Cost
}

// Usage reports token counts, cost and model of rsp.
func (c *Client) Usage(rsp *model.Response) model.UsageSummary {
	if rsp == nil {
		return model.UsageSummary{}
	}
	return model.UsageSummary{
		PromptTokens:     rsp.Usage.PromptTokens,
		CompletionTokens: rsp.Usage.CompletionTokens,
		TotalTokens:      rsp.Usage.TotalTokens,
		Cost:             rsp.Cost,
		Model:            rsp.Model,
	}
}

// RetrieveMessages returns the message of every choice in rsp.
func (c *Client) RetrieveMessages(rsp *model.Response) []model.Message {
	if rsp == nil {
		return nil
	}
	out := make([]model.Message, 0, len(rsp.Choices))
	for _, ch := range rsp.Choices {
		out = append(out, ch.Message)
	}
	return out
}
