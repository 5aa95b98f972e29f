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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/robraux/autogen/model"
)

// fakeGemini is a minimal Gemini API server. It answers generateContent with
// reply after failing the first failures calls with failStatus.
type fakeGemini struct {
	mu         sync.Mutex
	calls      map[string]int
	bodies     []map[string]any
	paths      []string
	reply      map[string]any
	chunks     []map[string]any
	failures   int
	failStatus int
	tokens     int
}

func newFakeGemini(reply map[string]any) *fakeGemini {
	return &fakeGemini{calls: map[string]int{}, reply: reply, failStatus: http.StatusInternalServerError}
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, ":")+1:]
	body := map[string]any{}
	raw, _ := io.ReadAll(r.Body)
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.calls[method]++
	n := f.calls[method]
	if method != "countTokens" {
		f.bodies = append(f.bodies, body)
		f.paths = append(f.paths, r.URL.Path)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "countTokens":
		_ = json.NewEncoder(w).Encode(map[string]any{"totalTokens": f.tokens})
	case "generateContent", "streamGenerateContent":
		if n <= f.failures {
			w.WriteHeader(f.failStatus)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{
				"code":    f.failStatus,
				"message": "backend failure",
				"status":  http.StatusText(f.failStatus),
			}})
			return
		}
		if method == "generateContent" {
			_ = json.NewEncoder(w).Encode(f.reply)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range f.chunks {
			b, _ := json.Marshal(c)
			fmt.Fprintf(w, "data: %s\n\n", b)
		}
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeGemini) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeGemini) lastBody(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.bodies)
	return f.bodies[len(f.bodies)-1]
}

func textReply(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{
			"promptTokenCount":     12,
			"candidatesTokenCount": 5,
			"totalTokenCount":      17,
		},
	}
}

func newTestClient(t *testing.T, fake *fakeGemini, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	base := []Option{
		WithAPIKey("test-key"),
		WithClientOptions(&genai.ClientConfig{HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL}}),
		WithRetry(3, time.Millisecond),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	return c
}

// roles extracts the role sequence of a request body's contents.
func roles(body map[string]any) []string {
	var out []string
	contents, _ := body["contents"].([]any)
	for _, c := range contents {
		role, _ := c.(map[string]any)["role"].(string)
		out = append(out, role)
	}
	return out
}

func TestCreate_Chat(t *testing.T) {
	fake := newFakeGemini(textReply("Paris is the capital of France."))
	c := newTestClient(t, fake)

	rsp, err := c.Create(context.Background(), &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("Answer briefly."),
			model.NewAssistantMessage("Ready."),
			model.NewUserMessage("Capital of France?"),
			model.NewUserMessage("One sentence please."),
		},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rsp.ID, "chatcmpl-"))
	assert.Equal(t, model.ObjectTypeChatCompletion, rsp.Object)
	assert.Equal(t, DefaultModel, rsp.Model)
	require.Len(t, rsp.Choices, 1)
	assert.Equal(t, model.RoleAssistant, rsp.Choices[0].Message.Role)
	assert.Equal(t, "Paris is the capital of France.", rsp.Text())
	assert.Equal(t, model.FinishReasonStop, rsp.Choices[0].FinishReason)
	assert.Equal(t, model.Usage{PromptTokens: 12, CompletionTokens: 5, TotalTokens: 17}, rsp.Usage)
	assert.Greater(t, rsp.Cost, 0.0)
	assert.Equal(t, rsp.Cost, c.Cost(rsp))

	body := fake.lastBody(t)
	assert.Equal(t, []string{"user", "model", "user"}, roles(body))
	last := body["contents"].([]any)[2].(map[string]any)
	assert.Len(t, last["parts"], 2)
	assert.Equal(t, 0, fake.count("countTokens"))
}

func TestCreate_ContinuesAfterModelTurn(t *testing.T) {
	fake := newFakeGemini(textReply("more"))
	c := newTestClient(t, fake)

	_, err := c.Create(context.Background(), &model.Request{
		Model: "gemini-1.5-flash",
		Messages: []model.Message{
			model.NewUserMessage("Tell me a story."),
			model.NewAssistantMessage("Once upon a time"),
		},
	})
	require.NoError(t, err)

	body := fake.lastBody(t)
	assert.Equal(t, []string{"user", "model", "user"}, roles(body))
	last := body["contents"].([]any)[2].(map[string]any)
	assert.Equal(t, continueText, last["parts"].([]any)[0].(map[string]any)["text"])
	assert.Contains(t, fake.paths[0], "models/gemini-1.5-flash:generateContent")
}

func TestCreate_Vision(t *testing.T) {
	fake := newFakeGemini(textReply("A small red square."))
	c := newTestClient(t, fake)

	img := []byte("fake-png-bytes")
	rsp, err := c.Create(context.Background(), &model.Request{
		Model: "gemini-pro-vision",
		Messages: []model.Message{
			model.NewUserMessage("ignored earlier turn"),
			model.NewUserMessageParts(
				model.TextPart("What is in this image?"),
				model.ImagePart("data:image/png;base64,"+base64.StdEncoding.EncodeToString(img)),
			),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "A small red square.", rsp.Text())

	body := fake.lastBody(t)
	contents := body["contents"].([]any)
	require.Len(t, contents, 1)
	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "What is in this image?", parts[0].(map[string]any)["text"])
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	assert.Equal(t, "image/png", inline["mimeType"])
	assert.Equal(t, base64.StdEncoding.EncodeToString(img), inline["data"])
}

func TestCreate_FunctionCall(t *testing.T) {
	fake := newFakeGemini(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{
				map[string]any{"functionCall": map[string]any{
					"name": "get_weather",
					"args": map[string]any{"city": "Paris", "days": 3},
				}},
				map[string]any{"functionCall": map[string]any{"id": "fc-2", "name": "now"}},
			}},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 20, "candidatesTokenCount": 8, "totalTokenCount": 28},
	})
	c := newTestClient(t, fake)

	rsp, err := c.Create(context.Background(), &model.Request{
		Messages:   []model.Message{model.NewUserMessage("Weather in Paris for 3 days?")},
		Tools:      []model.Tool{model.NewFunctionTool("get_weather", "weather", map[string]any{"type": "object"})},
		ToolChoice: &model.ToolChoice{Mode: model.ToolChoiceAuto},
	})
	require.NoError(t, err)
	require.True(t, rsp.IsToolCallResponse())

	msg := rsp.Choices[0].Message
	assert.Equal(t, model.FinishReasonToolCalls, rsp.Choices[0].FinishReason)
	require.Len(t, msg.ToolCalls, 2)

	first := msg.ToolCalls[0]
	assert.Equal(t, model.ToolTypeFunction, first.Type)
	assert.True(t, strings.HasPrefix(first.ID, "call_"))
	assert.Equal(t, "get_weather", first.Function.Name)
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(first.Function.Arguments), &args))
	assert.Equal(t, map[string]any{"city": "Paris", "days": float64(3)}, args)

	assert.Equal(t, "fc-2", msg.ToolCalls[1].ID)
	assert.Equal(t, "{}", msg.ToolCalls[1].Function.Arguments)

	body := fake.lastBody(t)
	tools := body["tools"].([]any)
	decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
	assert.Equal(t, "get_weather", decls[0].(map[string]any)["name"])
	mode := body["toolConfig"].(map[string]any)["functionCallingConfig"].(map[string]any)["mode"]
	assert.Equal(t, string(genai.FunctionCallingConfigModeAuto), mode)
}

func TestCreate_RetriesInternalServerError(t *testing.T) {
	fake := newFakeGemini(textReply("recovered"))
	fake.failures = 2
	c := newTestClient(t, fake)

	rsp, err := c.Create(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", rsp.Text())
	assert.Equal(t, 3, fake.count("generateContent"))
}

func TestCreate_RetriesExhausted(t *testing.T) {
	fake := newFakeGemini(textReply("never"))
	fake.failures = 10
	c := newTestClient(t, fake)

	_, err := c.Create(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.Error(t, err)
	var apiErr genai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 3, fake.count("generateContent"))
}

func TestCreate_DoesNotRetryOtherErrors(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fake := newFakeGemini(textReply("never"))
			fake.failures = 10
			fake.failStatus = status
			c := newTestClient(t, fake)

			_, err := c.Create(context.Background(), &model.Request{
				Messages: []model.Message{model.NewUserMessage("hi")},
			})
			require.Error(t, err)
			assert.False(t, IsRetryable(err))
			var apiErr genai.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, status, apiErr.Code)
			assert.Equal(t, 1, fake.count("generateContent"))
		})
	}
}

func TestCreate_CountsTokensWithoutUsage(t *testing.T) {
	reply := textReply("no usage here")
	delete(reply, "usageMetadata")
	fake := newFakeGemini(reply)
	fake.tokens = 7
	c := newTestClient(t, fake)

	rsp, err := c.Create(context.Background(), &model.Request{
		Model:    "gemini-1.0-pro",
		Messages: []model.Message{model.NewUserMessage("count me")},
	})
	require.NoError(t, err)
	assert.Equal(t, model.Usage{PromptTokens: 7, CompletionTokens: 7, TotalTokens: 14}, rsp.Usage)
	assert.InDelta(t, 7*0.5e-6+7*1.5e-6, rsp.Cost, 1e-12)
	assert.Equal(t, 2, fake.count("countTokens"))

	summary := c.Usage(rsp)
	assert.Equal(t, 14, summary.TotalTokens)
	assert.Equal(t, "gemini-1.0-pro", summary.Model)
	assert.Equal(t, rsp.Cost, summary.Cost)
}

func TestCreate_Stream(t *testing.T) {
	fake := newFakeGemini(nil)
	fake.chunks = []map[string]any{
		{"candidates": []any{map[string]any{
			"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": "Hel"}}},
		}}},
		{
			"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": "lo!"}}},
				"finishReason": "MAX_TOKENS",
			}},
			"usageMetadata": map[string]any{"promptTokenCount": 3, "candidatesTokenCount": 2, "totalTokenCount": 5},
		},
	}
	c := newTestClient(t, fake)

	rsp, err := c.Create(context.Background(), &model.Request{
		Stream:   true,
		Messages: []model.Message{model.NewUserMessage("greet")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", rsp.Text())
	assert.Equal(t, model.FinishReasonLength, rsp.Choices[0].FinishReason)
	assert.Equal(t, 5, rsp.Usage.TotalTokens)
	assert.Equal(t, 1, fake.count("streamGenerateContent"))
}

func TestCreate_GenerationConfig(t *testing.T) {
	fake := newFakeGemini(textReply("ok"))
	c := newTestClient(t, fake,
		WithSafetySettings(model.SafetySetting{
			Category:  "HARM_CATEGORY_HARASSMENT",
			Threshold: "BLOCK_ONLY_HIGH",
		}),
	)
	maxTokens, topK := 64, 40
	temperature := 0.5
	_, err := c.Create(context.Background(), &model.Request{
		Messages:    []model.Message{model.NewUserMessage("hi")},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		TopK:        &topK,
		Stop:        model.StopSequences{"END"},
	})
	require.NoError(t, err)

	body := fake.lastBody(t)
	gen := body["generationConfig"].(map[string]any)
	assert.Equal(t, float64(64), gen["maxOutputTokens"])
	assert.Equal(t, 0.5, gen["temperature"])
	assert.Equal(t, float64(40), gen["topK"])
	assert.Equal(t, []any{"END"}, gen["stopSequences"])
	safety := body["safetySettings"].([]any)
	require.Len(t, safety, 1)
	assert.Equal(t, "HARM_CATEGORY_HARASSMENT", safety[0].(map[string]any)["category"])
	assert.NotContains(t, body, "tools")
}

func TestCreate_SystemInstruction(t *testing.T) {
	fake := newFakeGemini(textReply("ok"))
	c := newTestClient(t, fake, WithSystemInstruction())

	_, err := c.Create(context.Background(), &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("Be terse."),
			model.NewUserMessage("hi"),
		},
	})
	require.NoError(t, err)

	body := fake.lastBody(t)
	assert.Equal(t, []string{"user"}, roles(body))
	sys := body["systemInstruction"].(map[string]any)
	assert.Equal(t, "Be terse.", sys["parts"].([]any)[0].(map[string]any)["text"])

	_, err = c.Create(context.Background(), &model.Request{
		Messages: []model.Message{model.NewSystemMessage("only system")},
	})
	assert.ErrorIs(t, err, ErrEmptyMessages)
}

func TestCreate_Errors(t *testing.T) {
	fake := newFakeGemini(map[string]any{
		"promptFeedback": map[string]any{"blockReason": "SAFETY"},
	})
	c := newTestClient(t, fake)

	_, err := c.Create(context.Background(), nil)
	assert.Error(t, err)

	_, err = c.Create(context.Background(), &model.Request{})
	assert.ErrorIs(t, err, ErrEmptyMessages)

	_, err = c.Create(context.Background(), &model.Request{
		Messages: []model.Message{{Role: "narrator", Content: "x"}},
	})
	assert.ErrorIs(t, err, ErrUnsupportedRole)

	_, err = c.Create(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("blocked")},
	})
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestCreate_Callbacks(t *testing.T) {
	fake := newFakeGemini(textReply("from gemini"))
	cached := &model.Response{ID: "cached", Choices: []model.Choice{{Message: model.NewAssistantMessage("cached")}}}
	var afterErr error
	callbacks := model.NewCallbacks().
		RegisterBeforeModel(func(ctx context.Context, req *model.Request) (*model.Response, error) {
			if req.Messages[0].Content == "use cache" {
				return cached, nil
			}
			return nil, nil
		}).
		RegisterAfterModel(func(ctx context.Context, req *model.Request, rsp *model.Response, modelErr error) (*model.Response, error) {
			afterErr = modelErr
			if rsp != nil {
				rsp.Choices[0].Message.Content += " (checked)"
			}
			return nil, nil
		})
	c := newTestClient(t, fake, WithCallbacks(callbacks))

	rsp, err := c.Create(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("use cache")},
	})
	require.NoError(t, err)
	assert.Same(t, cached, rsp)
	assert.Equal(t, 0, fake.count("generateContent"))

	rsp, err = c.Create(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("ask")},
	})
	require.NoError(t, err)
	assert.NoError(t, afterErr)
	assert.Equal(t, "from gemini (checked)", rsp.Text())
}

func TestRetrieveMessages(t *testing.T) {
	c := &Client{}
	assert.Nil(t, c.RetrieveMessages(nil))
	assert.Zero(t, c.Cost(nil))
	assert.Equal(t, model.UsageSummary{}, c.Usage(nil))

	rsp := &model.Response{Choices: []model.Choice{
		{Message: model.NewAssistantMessage("a")},
		{Index: 1, Message: model.NewAssistantMessage("b")},
	}}
	msgs := c.RetrieveMessages(rsp)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[1].Content)
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, model.FinishReasonStop, finishReason(genai.FinishReasonStop, false))
	assert.Equal(t, model.FinishReasonStop, finishReason("", false))
	assert.Equal(t, model.FinishReasonLength, finishReason(genai.FinishReasonMaxTokens, false))
	assert.Equal(t, model.FinishReasonContentFilter, finishReason(genai.FinishReasonSafety, false))
	assert.Equal(t, model.FinishReasonToolCalls, finishReason(genai.FinishReasonStop, true))
}
