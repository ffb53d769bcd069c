// Package adk bridges the agent orchestrator to adk model.LLM implementations.
package adk

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	go_openai "github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/run-bigpig/watchdog/internal/adk/openai"
	"github.com/run-bigpig/watchdog/internal/models"
)

var ErrUnsupportedProvider = goerr.New("unsupported AI provider")

// ModelFactory builds the adk model for an AI configuration
type ModelFactory struct{}

// NewModelFactory creates a model factory
func NewModelFactory() *ModelFactory {
	return &ModelFactory{}
}

// CreateModel picks the model implementation by provider
func (f *ModelFactory) CreateModel(ctx context.Context, config *models.AIConfig) (model.LLM, error) {
	switch config.Provider {
	case models.AIProviderGemini:
		return f.createGeminiModel(ctx, config)
	case models.AIProviderOpenAI, "":
		return f.createOpenAIModel(config), nil
	default:
		return nil, goerr.Wrap(ErrUnsupportedProvider, "cannot create model", goerr.V("provider", config.Provider))
	}
}

func (f *ModelFactory) createGeminiModel(ctx context.Context, config *models.AIConfig) (model.LLM, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = config.BaseURL
	}

	llm, err := gemini.NewModel(ctx, config.ModelName, clientConfig)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create gemini model", goerr.V("model", config.ModelName))
	}
	return llm, nil
}

func (f *ModelFactory) createOpenAIModel(config *models.AIConfig) model.LLM {
	openaiCfg := go_openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		openaiCfg.BaseURL = config.BaseURL
	}
	return openai.NewOpenAIModel(config.ModelName, openaiCfg, config.NoSystemRole)
}
