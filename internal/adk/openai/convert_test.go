package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func sampleRequest() *model.LLMRequest {
	return &model.LLMRequest{
		Contents: []*genai.Content{
			{Role: "user", Parts: []*genai.Part{{Text: "price of AAPL?"}}},
			{Role: "model", Parts: []*genai.Part{
				{Text: "checking", Thought: true},
				{FunctionCall: &genai.FunctionCall{ID: "c1", Name: "get_price", Args: map[string]any{"ticker": "AAPL"}}},
				{FunctionCall: &genai.FunctionCall{ID: "c2", Name: "get_price", Args: map[string]any{RawArgsKey: "{bad"}}},
			}},
			{Role: "user", Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{ID: "c1", Name: "get_price", Response: map[string]any{"output": "AAPL: $100.00"}}}}},
			{Role: "user", Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{ID: "c2", Name: "get_price", Response: map[string]any{"error": "invalid"}}}}},
		},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: "You manage portfolios."}}},
			Tools: []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:                 "get_price",
				Description:          "[LOCAL] Latest price",
				ParametersJsonSchema: map[string]any{"type": "object"},
			}}}},
		},
	}
}

func TestToChatCompletionRequest(t *testing.T) {
	req, err := toChatCompletionRequest(sampleRequest(), "gpt-4o", false)
	require.NoError(t, err)

	require.Len(t, req.Messages, 5)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "You manage portfolios.", req.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[1].Role)

	assistant := req.Messages[2]
	assert.Equal(t, openai.ChatMessageRoleAssistant, assistant.Role)
	assert.Equal(t, "checking", assistant.ReasoningContent)
	require.Len(t, assistant.ToolCalls, 2)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, assistant.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "{bad", assistant.ToolCalls[1].Function.Arguments)

	assert.Equal(t, openai.ChatMessageRoleTool, req.Messages[3].Role)
	assert.Equal(t, "c1", req.Messages[3].ToolCallID)
	assert.Equal(t, "AAPL: $100.00", req.Messages[3].Content)
	assert.Equal(t, "invalid", req.Messages[4].Content)

	require.Len(t, req.Tools, 1)
	assert.Equal(t, "get_price", req.Tools[0].Function.Name)
}

func TestNoSystemRole(t *testing.T) {
	req, err := toChatCompletionRequest(sampleRequest(), "m", true)
	require.NoError(t, err)
	assert.Equal(t, openai.ChatMessageRoleUser, req.Messages[0].Role)
	assert.Equal(t, "You manage portfolios.", req.Messages[0].Content)
}

func TestParseJSONArgs(t *testing.T) {
	assert.Equal(t, map[string]any{}, parseJSONArgs(""))
	assert.Equal(t, map[string]any{"a": 1.0}, parseJSONArgs(`{"a":1}`))
	assert.Equal(t, map[string]any{RawArgsKey: "os.system('x')"}, parseJSONArgs("os.system('x')"))
	assert.Equal(t, map[string]any{RawArgsKey: "[1]"}, parseJSONArgs("[1]"))
}

func TestGenerateContent(t *testing.T) {
	var got openai.ChatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"gpt-4o",
"choices":[{"index":0,"finish_reason":"tool_calls","message":{"role":"assistant","content":"",
"tool_calls":[{"id":"call_9","type":"function","function":{"name":"get_price","arguments":"{\"ticker\":\"MSFT\"}"}}]}}],
"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer srv.Close()

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL
	m := NewOpenAIModel("gpt-4o", cfg, false)
	assert.Equal(t, "gpt-4o", m.Name())

	var responses []*model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), sampleRequest(), false) {
		require.NoError(t, err)
		responses = append(responses, resp)
	}
	require.Len(t, responses, 1)
	assert.Equal(t, "gpt-4o", got.Model)

	parts := responses[0].Content.Parts
	require.Len(t, parts, 1)
	require.NotNil(t, parts[0].FunctionCall)
	assert.Equal(t, "call_9", parts[0].FunctionCall.ID)
	assert.Equal(t, "MSFT", parts[0].FunctionCall.Args["ticker"])
	assert.Equal(t, int32(15), responses[0].UsageMetadata.TotalTokenCount)
}

func TestNoChoices(t *testing.T) {
	_, err := convertChatCompletionResponse(&openai.ChatCompletionResponse{})
	assert.ErrorIs(t, err, ErrNoChoicesInResponse)
}
