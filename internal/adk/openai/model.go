// Package openai adapts OpenAI-compatible chat completion endpoints to the
// adk model.LLM interface.
package openai

import (
	"context"
	"iter"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"

	"github.com/run-bigpig/watchdog/internal/logger"
)

var modelLog = logger.New("openai:model")

var _ model.LLM = &OpenAIModel{}

var ErrNoChoicesInResponse = goerr.New("no choices in OpenAI response")

// OpenAIModel model.LLM over chat completions
type OpenAIModel struct {
	Client       *openai.Client
	ModelName    string
	NoSystemRole bool // endpoint rejects the system role; instruction is sent as a user message
}

// NewOpenAIModel creates an OpenAI-compatible model
func NewOpenAIModel(modelName string, cfg openai.ClientConfig, noSystemRole bool) *OpenAIModel {
	return &OpenAIModel{
		Client:       openai.NewClientWithConfig(cfg),
		ModelName:    modelName,
		NoSystemRole: noSystemRole,
	}
}

// Name model name
func (o *OpenAIModel) Name() string {
	return o.ModelName
}

// GenerateContent issues one chat completion. Streaming requests get the
// complete response as a single final chunk.
func (o *OpenAIModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		openaiReq, err := toChatCompletionRequest(req, o.ModelName, o.NoSystemRole)
		if err != nil {
			yield(nil, err)
			return
		}

		resp, err := o.Client.CreateChatCompletion(ctx, openaiReq)
		if err != nil {
			yield(nil, goerr.Wrap(err, "chat completion failed", goerr.V("model", o.ModelName)))
			return
		}

		llmResp, err := convertChatCompletionResponse(&resp)
		if err != nil {
			yield(nil, err)
			return
		}
		modelLog.Debug("completion: finish=%s tokens=%d", llmResp.FinishReason, resp.Usage.TotalTokens)
		yield(llmResp, nil)
	}
}
