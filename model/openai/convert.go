//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//


package openai

import (
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/robraux/autogen/model"
)

// convertMessages converts chat messages into OpenAI message params.
func convertMessages(messages []model.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			p := &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{OfString: openai.String(msg.Text())},
			}
			if msg.Name != "" {
				p.Name = openai.String(msg.Name)
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfSystem: p})
		case model.RoleUser:
			p := &openai.ChatCompletionUserMessageParam{Content: convertUserContent(msg)}
			if msg.Name != "" {
				p.Name = openai.String(msg.Name)
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfUser: p})
		case model.RoleAssistant, model.RoleModel:
			p := &openai.ChatCompletionAssistantMessageParam{ToolCalls: convertToolCalls(msg.ToolCalls)}
			if text := msg.Text(); text != "" || len(msg.ToolCalls) == 0 {
				p.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
			}
			if msg.Name != "" {
				p.Name = openai.String(msg.Name)
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: p})
		case model.RoleTool:
			result = append(result, openai.ToolMessage(msg.Text(), msg.ToolCallID))
		default:
			return nil, fmt.Errorf("openai: message %d: unsupported role %q: %w", i, msg.Role, model.ErrInvalidRequest)
		}
	}
	return result, nil
}

func convertUserContent(msg model.Message) openai.ChatCompletionUserMessageParamContentUnion {
	if len(msg.ContentParts) == 0 {
		return openai.ChatCompletionUserMessageParamContentUnion{OfString: openai.String(msg.Content)}
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.ContentParts))
	for _, part := range msg.ContentParts {
		switch {
		case part.Type == model.ContentPartText:
			parts = append(parts, openai.TextContentPart(part.Text))
		case part.Type == model.ContentPartImageURL && part.ImageURL != nil:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    part.ImageURL.URL,
				Detail: part.ImageURL.Detail,
			}))
		}
	}
	return openai.ChatCompletionUserMessageParamContentUnion{OfArrayOfContentParts: parts}
}

func convertToolCalls(toolCalls []model.ToolCall) []openai.ChatCompletionMessageToolCallParam {
	var result []openai.ChatCompletionMessageToolCallParam
	for _, toolCall := range toolCalls {
		result = append(result, openai.ChatCompletionMessageToolCallParam{
			ID: toolCall.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments,
			},
		})
	}
	return result
}

func convertTools(tools []model.Tool) []openai.ChatCompletionToolParam {
	var result []openai.ChatCompletionToolParam
	for _, t := range tools {
		fn := shared.FunctionDefinitionParam{
			Name:       t.Function.Name,
			Parameters: shared.FunctionParameters(t.Function.Parameters),
		}
		if t.Function.Description != "" {
			fn.Description = openai.String(t.Function.Description)
		}
		result = append(result, openai.ChatCompletionToolParam{Function: fn})
	}
	return result
}

func convertToolChoice(choice *model.ToolChoice) openai.ChatCompletionToolChoiceOptionUnionParam {
	if choice.Function != "" {
		return openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: choice.Function},
			},
		}
	}
	return openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(choice.Mode)}
}

// toResponse converts an OpenAI completion into a model.Response.
func toResponse(completion *openai.ChatCompletion) *model.Response {
	rsp := &model.Response{
		ID:      completion.ID,
		Object:  model.ObjectTypeChatCompletion,
		Created: completion.Created,
		Model:   completion.Model,
		Choices: make([]model.Choice, 0, len(completion.Choices)),
		Usage: model.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
	}
	for _, choice := range completion.Choices {
		msg := model.Message{Role: model.RoleAssistant, Content: choice.Message.Content}
		for j, toolCall := range choice.Message.ToolCalls {
			id := toolCall.ID
			if id == "" {
				// Some compatible providers omit tool call ids.
				id = fmt.Sprintf("auto_call_%d", j)
			}
			msg.ToolCalls = append(msg.ToolCalls, model.ToolCall{
				ID:   id,
				Type: model.ToolTypeFunction,
				Function: model.FunctionCall{
					Name:      toolCall.Function.Name,
					Arguments: toolCall.Function.Arguments,
				},
			})
		}
		rsp.Choices = append(rsp.Choices, model.Choice{
			Index:        int(choice.Index),
			Message:      msg,
			FinishReason: choice.FinishReason,
		})
	}
	rsp.Cost = CalculateCost(rsp.Model, rsp.Usage.PromptTokens, rsp.Usage.CompletionTokens)
	return rsp
}
