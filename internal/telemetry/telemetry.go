//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the span and metric conventions shared by the
// public telemetry packages and the provider adapters.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/robraux/autogen/model"
)

// telemetry service constants.
const (
	ServiceName      = "gemini-adapter"
	ServiceVersion   = "v0.1.0"
	ServiceNamespace = "autogen"
	InstrumentName   = "github.com/robraux/autogen"

	SystemGemini = "gemini"

	spanNamePrefixChat = "chat"
)

const (
	// ProtocolGRPC uses gRPC protocol for OTLP exporter.
	ProtocolGRPC string = "grpc"
	// ProtocolHTTP uses HTTP protocol for OTLP exporter.
	ProtocolHTTP string = "http"
)

// telemetry attributes constants.
var (
	KeyGenAISystem         = "gen_ai.system"
	KeyGenAIRequestModel   = "gen_ai.request.model"
	KeyGenAIResponseID     = "gen_ai.response.id"
	KeyGenAIInputTokens    = "gen_ai.usage.input_tokens"
	KeyGenAIOutputTokens   = "gen_ai.usage.output_tokens"
	KeyGenAIFinishReasons  = "gen_ai.response.finish_reasons"
	KeyChatCompletionCost  = "autogen.chat_completion.cost"
	KeyLLMRequest          = "autogen.llm_request"
	KeyLLMResponse         = "autogen.llm_response"
	KeyErrorType           = "error.type"
	MetricRequests         = "gen_ai.client.requests"
	MetricTokenUsage       = "gen_ai.client.token.usage"
	MetricOperationSeconds = "gen_ai.client.operation.duration"
	MetricCost             = "autogen.client.cost"
)

// NewChatSpanName returns "chat <model>", or "chat" without a model.
func NewChatSpanName(modelName string) string {
	if modelName == "" {
		return spanNamePrefixChat
	}
	return spanNamePrefixChat + " " + modelName
}

// TraceChatCompletion records a chat completion on span.
func TraceChatCompletion(span trace.Span, req *model.Request, rsp *model.Response, err error) {
	span.SetAttributes(
		attribute.String(KeyGenAISystem, SystemGemini),
		attribute.String(KeyGenAIRequestModel, req.Model),
	)
	if bts, mErr := json.Marshal(req); mErr == nil {
		span.SetAttributes(attribute.String(KeyLLMRequest, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyLLMRequest, "<not json serializable>"))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	if rsp == nil {
		return
	}
	reasons := make([]string, 0, len(rsp.Choices))
	for _, c := range rsp.Choices {
		reasons = append(reasons, c.FinishReason)
	}
	span.SetAttributes(
		attribute.String(KeyGenAIResponseID, rsp.ID),
		attribute.Int(KeyGenAIInputTokens, rsp.Usage.PromptTokens),
		attribute.Int(KeyGenAIOutputTokens, rsp.Usage.CompletionTokens),
		attribute.StringSlice(KeyGenAIFinishReasons, reasons),
		attribute.Float64(KeyChatCompletionCost, rsp.Cost),
	)
	if bts, mErr := json.Marshal(rsp); mErr == nil {
		span.SetAttributes(attribute.String(KeyLLMResponse, string(bts)))
	} else {
		span.SetAttributes(attribute.String(KeyLLMResponse, "<not json serializable>"))
	}
}

// RecordChatCompletion adds one request, its token usage, cost and latency to meter.
func RecordChatCompletion(
	ctx context.Context,
	meter metric.Meter,
	modelName string,
	rsp *model.Response,
	err error,
	elapsed time.Duration,
) {
	attrs := []attribute.KeyValue{
		attribute.String(KeyGenAISystem, SystemGemini),
		attribute.String(KeyGenAIRequestModel, modelName),
	}
	if err != nil {
		attrs = append(attrs, attribute.String(KeyErrorType, fmt.Sprintf("%T", err)))
	}
	set := metric.WithAttributes(attrs...)

	if requests, mErr := meter.Int64Counter(MetricRequests); mErr == nil {
		requests.Add(ctx, 1, set)
	}
	if duration, mErr := meter.Float64Histogram(MetricOperationSeconds, metric.WithUnit("s")); mErr == nil {
		duration.Record(ctx, elapsed.Seconds(), set)
	}
	if err != nil || rsp == nil {
		return
	}
	if tokens, mErr := meter.Int64Counter(MetricTokenUsage, metric.WithUnit("{token}")); mErr == nil {
		tokens.Add(ctx, int64(rsp.Usage.PromptTokens),
			metric.WithAttributes(append(attrs, attribute.String("gen_ai.token.type", "input"))...))
		tokens.Add(ctx, int64(rsp.Usage.CompletionTokens),
			metric.WithAttributes(append(attrs, attribute.String("gen_ai.token.type", "output"))...))
	}
	if cost, mErr := meter.Float64Counter(MetricCost, metric.WithUnit("USD")); mErr == nil {
		cost.Add(ctx, rsp.Cost, set)
	}
}

// NewGRPCConn creates a new gRPC connection to the OpenTelemetry Collector.
func NewGRPCConn(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(endpoint,
		// Note the use of insecure transport here. TLS is recommended in production.
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to collector: %w", err)
	}
	return conn, nil
}

// NewResource describes the service emitting telemetry.
func NewResource(ctx context.Context, name, version, namespace string) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(namespace),
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
