package adk

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/run-bigpig/watchdog/internal/adk/openai"
	"github.com/run-bigpig/watchdog/internal/logger"
	"github.com/run-bigpig/watchdog/internal/models"
)

var log = logger.New("adk")

var ErrEmptyResponse = goerr.New("model returned no content")

// LLMBackend serves agent turns from an adk model.LLM
type LLMBackend struct {
	llm model.LLM
}

// NewLLMBackend wraps an adk model
func NewLLMBackend(llm model.LLM) *LLMBackend {
	return &LLMBackend{llm: llm}
}

// Next sends the transcript and tools and converts the final response
func (b *LLMBackend) Next(ctx context.Context, instruction string, messages []models.Message, tools []models.ToolDescriptor) (*models.AssistantMessage, error) {
	req, err := BuildRequest(instruction, messages, tools)
	if err != nil {
		return nil, err
	}

	var final *model.LLMResponse
	for resp, err := range b.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return nil, goerr.Wrap(err, "model call failed", goerr.V("model", b.llm.Name()))
		}
		if resp != nil && !resp.Partial {
			final = resp
		}
	}
	if final == nil {
		return nil, goerr.Wrap(ErrEmptyResponse, "no final response", goerr.V("model", b.llm.Name()))
	}
	if final.ErrorCode != "" {
		return nil, goerr.New("model reported an error",
			goerr.V("model", b.llm.Name()), goerr.V("code", final.ErrorCode), goerr.V("message", final.ErrorMessage))
	}
	return ToAssistantMessage(final.Content), nil
}

// BuildRequest converts the transcript into an adk request
func BuildRequest(instruction string, messages []models.Message, tools []models.ToolDescriptor) (*model.LLMRequest, error) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch m := msg.(type) {
		case *models.UserMessage:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case *models.AssistantMessage:
			content := &genai.Content{Role: "model"}
			if m.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: m.Content})
			}
			for _, call := range m.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Name,
					Args: decodeArgs(call.Arguments),
				}})
			}
			contents = append(contents, content)
		case *models.ToolResultMessage:
			key := "output"
			if m.IsError {
				key = "error"
			}
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       m.CallID,
					Name:     m.ToolName,
					Response: map[string]any{key: m.Content},
				}}},
			})
		default:
			return nil, goerr.New("unsupported message type", goerr.V("role", msg.Role()))
		}
	}

	config := &genai.GenerateContentConfig{}
	if instruction != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: instruction}}}
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			schema, err := decodeSchema(t.InputSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "invalid tool schema", goerr.V("tool", t.Name))
			}
			decls = append(decls, &genai.FunctionDeclaration{
				Name:                 t.Name,
				Description:          t.Description,
				ParametersJsonSchema: schema,
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	return &model.LLMRequest{Contents: contents, Config: config}, nil
}

// ToAssistantMessage converts model output, dropping thought parts
func ToAssistantMessage(content *genai.Content) *models.AssistantMessage {
	if content == nil {
		return models.NewAssistantMessage("")
	}
	var text strings.Builder
	var calls []models.ToolCallRequest
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil {
			calls = append(calls, models.ToolCallRequest{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: encodeArgs(part.FunctionCall.Args),
			})
			continue
		}
		text.WriteString(part.Text)
	}
	return models.NewAssistantMessage(strings.TrimSpace(text.String()), calls...)
}

// encodeArgs restores raw arguments the adapter could not decode
func encodeArgs(args map[string]any) json.RawMessage {
	if raw, ok := args[openai.RawArgsKey].(string); ok && len(args) == 1 {
		return json.RawMessage(raw)
	}
	if len(args) == 0 {
		return json.RawMessage("{}")
	}
	body, err := json.Marshal(args)
	if err != nil {
		log.Warn("cannot encode tool arguments: %v", err)
		return json.RawMessage("{}")
	}
	return body
}

func decodeArgs(raw json.RawMessage) map[string]any {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil || args == nil {
		if len(strings.TrimSpace(string(raw))) == 0 {
			return map[string]any{}
		}
		return map[string]any{openai.RawArgsKey: string(raw)}
	}
	return args
}

func decodeSchema(raw json.RawMessage) (map[string]any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]any{"type": "object", "properties": map[string]any{}}, nil
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, err
	}
	return schema, nil
}
