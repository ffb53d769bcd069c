package openai

import (
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// RawArgsKey carries tool call arguments that were not a JSON object, so the
// caller can reject them instead of running the tool with empty input.
const RawArgsKey = "__raw_arguments"

// toChatCompletionRequest converts an adk request into a chat completion request
func toChatCompletionRequest(req *model.LLMRequest, modelName string, noSystemRole bool) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)

	if req.Config != nil && req.Config.SystemInstruction != nil {
		if instruction := extractTextFromContent(req.Config.SystemInstruction); instruction != "" {
			role := openai.ChatMessageRoleSystem
			if noSystemRole {
				role = openai.ChatMessageRoleUser
			}
			messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: instruction})
		}
	}

	for _, content := range req.Contents {
		msgs, err := toChatCompletionMessages(content)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		messages = append(messages, msgs...)
	}

	openaiReq := openai.ChatCompletionRequest{
		Model:    modelName,
		Messages: messages,
	}

	if req.Config == nil {
		return openaiReq, nil
	}

	if len(req.Config.Tools) > 0 {
		tools, err := convertTools(req.Config.Tools)
		if err != nil {
			return openai.ChatCompletionRequest{}, err
		}
		openaiReq.Tools = tools
	}
	if req.Config.Temperature != nil {
		openaiReq.Temperature = *req.Config.Temperature
	}
	if req.Config.MaxOutputTokens > 0 {
		openaiReq.MaxTokens = int(req.Config.MaxOutputTokens)
	}
	if req.Config.TopP != nil {
		openaiReq.TopP = *req.Config.TopP
	}
	if len(req.Config.StopSequences) > 0 {
		openaiReq.Stop = req.Config.StopSequences
	}
	return openaiReq, nil
}

// toChatCompletionMessages converts one content. Every function response
// becomes its own tool message; the remaining parts form one message.
func toChatCompletionMessages(content *genai.Content) ([]openai.ChatCompletionMessage, error) {
	var out []openai.ChatCompletionMessage
	var text, reasoning strings.Builder
	var toolCalls []openai.ToolCall

	for _, part := range content.Parts {
		switch {
		case part.FunctionResponse != nil:
			body, err := functionResponseText(part.FunctionResponse)
			if err != nil {
				return nil, err
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: part.FunctionResponse.ID,
				Content:    body,
			})
		case part.FunctionCall != nil:
			args, err := functionCallArguments(part.FunctionCall.Args)
			if err != nil {
				return nil, err
			}
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   part.FunctionCall.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: args,
				},
			})
		case part.Thought:
			reasoning.WriteString(part.Text)
		default:
			text.WriteString(part.Text)
		}
	}

	if text.Len() == 0 && reasoning.Len() == 0 && len(toolCalls) == 0 {
		return out, nil
	}
	return append(out, openai.ChatCompletionMessage{
		Role:             convertRoleToOpenAI(content.Role),
		Content:          text.String(),
		ReasoningContent: reasoning.String(),
		ToolCalls:        toolCalls,
	}), nil
}

// functionResponseText plain text for the "output" or "error" key, JSON otherwise
func functionResponseText(resp *genai.FunctionResponse) (string, error) {
	for _, key := range []string{"output", "error"} {
		if s, ok := resp.Response[key].(string); ok && len(resp.Response) == 1 {
			return s, nil
		}
	}
	body, err := json.Marshal(resp.Response)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal function response", goerr.V("tool", resp.Name))
	}
	return string(body), nil
}

func functionCallArguments(args map[string]any) (string, error) {
	if raw, ok := args[RawArgsKey].(string); ok && len(args) == 1 {
		return raw, nil
	}
	if args == nil {
		return "{}", nil
	}
	body, err := json.Marshal(args)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal function args")
	}
	return string(body), nil
}

func convertRoleToOpenAI(role string) string {
	switch role {
	case "model":
		return openai.ChatMessageRoleAssistant
	case "system":
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}

func extractTextFromContent(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var texts []string
	for _, part := range content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// convertTools function declarations to OpenAI tools
func convertTools(genaiTools []*genai.Tool) ([]openai.Tool, error) {
	var openaiTools []openai.Tool
	for _, genaiTool := range genaiTools {
		if genaiTool == nil {
			continue
		}
		for _, decl := range genaiTool.FunctionDeclarations {
			var params any = decl.ParametersJsonSchema
			if params == nil && decl.Parameters != nil {
				params = decl.Parameters
			}
			if params == nil {
				return nil, goerr.New("tool has no parameter schema", goerr.V("tool", decl.Name))
			}
			openaiTools = append(openaiTools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return openaiTools, nil
}

// convertChatCompletionResponse first choice to an adk response
func convertChatCompletionResponse(resp *openai.ChatCompletionResponse) (*model.LLMResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	choice := resp.Choices[0]
	content := &genai.Content{Role: "model"}

	if choice.Message.ReasoningContent != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.ReasoningContent, Thought: true})
	}
	if choice.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: choice.Message.Content})
	}
	for _, toolCall := range choice.Message.ToolCalls {
		if toolCall.Type != "" && toolCall.Type != openai.ToolTypeFunction {
			continue
		}
		content.Parts = append(content.Parts, &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   toolCall.ID,
				Name: toolCall.Function.Name,
				Args: parseJSONArgs(toolCall.Function.Arguments),
			},
		})
	}

	var usage *genai.GenerateContentResponseUsageMetadata
	if resp.Usage.TotalTokens > 0 {
		usage = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.Usage.PromptTokens),
			CandidatesTokenCount: int32(resp.Usage.CompletionTokens),
			TotalTokenCount:      int32(resp.Usage.TotalTokens),
		}
	}

	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: usage,
		FinishReason:  convertFinishReason(string(choice.FinishReason)),
		TurnComplete:  true,
	}, nil
}

func convertFinishReason(reason string) genai.FinishReason {
	switch reason {
	case "stop", "tool_calls", "function_call":
		return genai.FinishReasonStop
	case "length":
		return genai.FinishReasonMaxTokens
	case "content_filter":
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonUnspecified
	}
}

// parseJSONArgs decodes arguments; anything that is not a JSON object is
// kept verbatim under RawArgsKey
func parseJSONArgs(argsJSON string) map[string]any {
	if strings.TrimSpace(argsJSON) == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil || args == nil {
		return map[string]any{RawArgsKey: argsJSON}
	}
	return args
}
