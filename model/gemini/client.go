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
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	itelemetry "github.com/robraux/autogen/internal/telemetry"
	"github.com/robraux/autogen/log"
	"github.com/robraux/autogen/model"
	"github.com/robraux/autogen/telemetry/metric"
	atrace "github.com/robraux/autogen/telemetry/trace"
)

// Create sends req to Gemini and returns an OpenAI-compatible response.
//
// Vision models get a single-turn call on the last message. Other models get
// a chat session whose history is every normalized turn but the last, which
// is then sent. Internal server errors are retried with exponential backoff.
func (c *Client) Create(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("gemini: request is nil: %w", model.ErrInvalidRequest)
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
		return nil, fmt.Errorf("gemini: before model callback: %w", err)
	}
	if rsp != nil {
		return rsp, nil
	}

	rsp, err = c.create(ctx, &r)
	custom, cbErr := c.opts.callbacks.RunAfterModel(ctx, &r, rsp, err)
	if cbErr != nil {
		err = fmt.Errorf("gemini: after model callback: %w", cbErr)
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
		return nil, ErrEmptyMessages
	}
	if req.N != nil && *req.N > 1 {
		log.Warnf("gemini: n=%d requested but only one candidate is generated", *req.N)
	}
	cfg := c.generateConfig(req)
	messages := req.Messages
	if c.opts.systemInstruction {
		cfg.SystemInstruction, messages = splitSystem(messages)
		if len(messages) == 0 {
			return nil, ErrEmptyMessages
		}
	}

	var (
		prompt []*genai.Content
		gr     *genai.GenerateContentResponse
		err    error
	)
	if IsVisionModel(req.Model) {
		prompt, gr, err = c.createVision(ctx, req, messages, cfg)
	} else {
		prompt, gr, err = c.createChat(ctx, req, messages, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("gemini: %s: %w", req.Model, err)
	}
	return c.toResponse(ctx, req.Model, prompt, gr)
}

func (c *Client) createVision(
	ctx context.Context,
	req *model.Request,
	messages []model.Message,
	cfg *genai.GenerateContentConfig,
) ([]*genai.Content, *genai.GenerateContentResponse, error) {
	if req.Stream {
		log.Warnf("gemini: streaming is not supported for vision model %s, sending a single request", req.Model)
	}
	if len(messages) > 2 {
		log.Warnf("gemini: vision model %s is single-turn, only the last of %d messages is sent",
			req.Model, len(messages))
	}
	parts, err := ContentParts(messages[len(messages)-1])
	if err != nil {
		return nil, nil, err
	}
	prompt := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	gr, err := c.withRetry(ctx, req.Model, func() (*genai.GenerateContentResponse, error) {
		return c.client.Models.GenerateContent(ctx, req.Model, prompt, cfg)
	})
	return prompt, gr, err
}

func (c *Client) createChat(
	ctx context.Context,
	req *model.Request,
	messages []model.Message,
	cfg *genai.GenerateContentConfig,
) ([]*genai.Content, *genai.GenerateContentResponse, error) {
	contents, err := ToContents(messages)
	if err != nil {
		return nil, nil, err
	}
	contents = ensureUserTurn(contents)
	history, last := contents[:len(contents)-1], contents[len(contents)-1]

	gr, err := c.withRetry(ctx, req.Model, func() (*genai.GenerateContentResponse, error) {
		// A fresh session per attempt keeps failed turns out of the history.
		chat, err := c.client.Chats.Create(ctx, req.Model, cfg, history)
		if err != nil {
			return nil, err
		}
		if req.Stream {
			return sendStream(ctx, chat, last.Parts)
		}
		return chat.Send(ctx, last.Parts...)
	})
	return contents, gr, err
}

// sendStream drains a streamed reply into one response.
func sendStream(ctx context.Context, chat *genai.Chat, parts []*genai.Part) (*genai.GenerateContentResponse, error) {
	merged := &genai.GenerateContentResponse{}
	cand := &genai.Candidate{Content: &genai.Content{Role: genai.RoleModel}}
	for chunk, err := range chat.SendStream(ctx, parts...) {
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			continue
		}
		if chunk.UsageMetadata != nil {
			merged.UsageMetadata = chunk.UsageMetadata
		}
		if chunk.ResponseID != "" {
			merged.ResponseID = chunk.ResponseID
		}
		if chunk.ModelVersion != "" {
			merged.ModelVersion = chunk.ModelVersion
		}
		if chunk.PromptFeedback != nil {
			merged.PromptFeedback = chunk.PromptFeedback
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0] == nil {
			continue
		}
		if fr := chunk.Candidates[0].FinishReason; fr != "" {
			cand.FinishReason = fr
		}
		if content := chunk.Candidates[0].Content; content != nil {
			cand.Content.Parts = append(cand.Content.Parts, content.Parts...)
		}
	}
	if len(cand.Content.Parts) > 0 || cand.FinishReason != "" {
		merged.Candidates = []*genai.Candidate{cand}
	}
	return merged, nil
}

func (c *Client) generateConfig(req *model.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{StopSequences: req.Stop}
	if req.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*req.MaxTokens)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*req.TopP))
	}
	if req.TopK != nil {
		cfg.TopK = genai.Ptr(float32(*req.TopK))
	}
	if req.PresencePenalty != nil {
		cfg.PresencePenalty = genai.Ptr(float32(*req.PresencePenalty))
	}
	if req.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = genai.Ptr(float32(*req.FrequencyPenalty))
	}
	if req.Seed != nil {
		cfg.Seed = genai.Ptr(int32(*req.Seed))
	}
	safety := req.SafetySettings
	if len(safety) == 0 {
		safety = c.opts.safetySettings
	}
	for _, s := range safety {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}
	if tools := toolsToGemini(req.Tools); tools != nil {
		cfg.Tools = tools
		cfg.ToolConfig = toolConfig(req.ToolChoice)
	}
	return cfg
}

// splitSystem moves system messages into a system instruction.
func splitSystem(messages []model.Message) (*genai.Content, []model.Message) {
	var parts []*genai.Part
	rest := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			parts = append(parts, genai.NewPartFromText(m.Text()))
			continue
		}
		rest = append(rest, m)
	}
	if len(parts) == 0 {
		return nil, rest
	}
	return &genai.Content{Parts: parts}, rest
}

func (c *Client) toResponse(
	ctx context.Context,
	modelName string,
	prompt []*genai.Content,
	gr *genai.GenerateContentResponse,
) (*model.Response, error) {
	if gr == nil || len(gr.Candidates) == 0 {
		if gr != nil && gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blocked: %s", ErrNoCandidates, gr.PromptFeedback.BlockReason)
		}
		return nil, ErrNoCandidates
	}
	rsp := &model.Response{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  model.ObjectTypeChatCompletion,
		Created: time.Now().Unix(),
		Model:   modelName,
		Choices: make([]model.Choice, 0, len(gr.Candidates)),
	}
	for i, cand := range gr.Candidates {
		if cand == nil {
			continue
		}
		msg, err := candidateMessage(cand)
		if err != nil {
			return nil, err
		}
		rsp.Choices = append(rsp.Choices, model.Choice{
			Index:        i,
			Message:      msg,
			FinishReason: finishReason(cand.FinishReason, len(msg.ToolCalls) > 0),
		})
	}
	rsp.Usage = c.usage(ctx, modelName, prompt, gr)
	rsp.Cost = CalculateCost(modelName, rsp.Usage.PromptTokens, rsp.Usage.CompletionTokens)
	return rsp, nil
}

// candidateMessage concatenates text parts and turns every function call
// into a tool call with JSON-encoded arguments.
func candidateMessage(cand *genai.Candidate) (model.Message, error) {
	msg := model.Message{Role: model.RoleAssistant}
	if cand.Content == nil {
		return msg, nil
	}
	var text strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			tc, err := toolCall(part.FunctionCall)
			if err != nil {
				return msg, err
			}
			msg.ToolCalls = append(msg.ToolCalls, tc)
			continue
		}
		text.WriteString(part.Text)
	}
	msg.Content = text.String()
	return msg, nil
}

func toolCall(fc *genai.FunctionCall) (model.ToolCall, error) {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return model.ToolCall{}, fmt.Errorf("gemini: encode arguments of %s: %w", fc.Name, err)
	}
	id := fc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
	}
	return model.ToolCall{
		ID:       id,
		Type:     model.ToolTypeFunction,
		Function: model.FunctionCall{Name: fc.Name, Arguments: string(b)},
	}, nil
}

func finishReason(fr genai.FinishReason, hasToolCalls bool) string {
	if hasToolCalls {
		return model.FinishReasonToolCalls
	}
	switch fr {
	case genai.FinishReasonMaxTokens:
		return model.FinishReasonLength
	case genai.FinishReasonSafety, genai.FinishReasonRecitation, genai.FinishReasonBlocklist,
		genai.FinishReasonProhibitedContent, genai.FinishReasonSPII, genai.FinishReasonImageSafety:
		return model.FinishReasonContentFilter
	default:
		return model.FinishReasonStop
	}
}

// usage reads token counts from the response, counting them with the
// CountTokens endpoint when the provider did not report them.
func (c *Client) usage(
	ctx context.Context,
	modelName string,
	prompt []*genai.Content,
	gr *genai.GenerateContentResponse,
) model.Usage {
	if um := gr.UsageMetadata; um != nil && um.TotalTokenCount > 0 {
		return model.Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
		}
	}
	u := model.Usage{PromptTokens: c.countTokens(ctx, modelName, prompt)}
	if cand := gr.Candidates[0]; cand != nil && cand.Content != nil && len(cand.Content.Parts) > 0 {
		u.CompletionTokens = c.countTokens(ctx, modelName, []*genai.Content{cand.Content})
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

func (c *Client) countTokens(ctx context.Context, modelName string, contents []*genai.Content) int {
	if len(contents) == 0 {
		return 0
	}
	rsp, err := c.client.Models.CountTokens(ctx, modelName, contents, nil)
	if err != nil {
		log.Warnf("gemini: count tokens for %s: %v", modelName, err)
		return 0
	}
	return int(rsp.TotalTokens)
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
